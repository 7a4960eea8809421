package farmlogix

import (
	"fmt"
	"sort"
)

// DefinitionScope distinguishes always-on catalog entries from entries that
// only apply inside a live event instance.
type DefinitionScope string

const (
	ScopeGlobal DefinitionScope = "global"
	ScopeEvent  DefinitionScope = "event"
)

// DefinitionClassification carries player-facing grouping metadata.
type DefinitionClassification struct {
	Category string `json:"category,omitempty"`
	Rarity   string `json:"rarity,omitempty"`
	// Hidden definitions are omitted from player-facing listings until the
	// player has unlocked them, to avoid spoilers.
	Hidden bool `json:"hidden,omitempty"`
}

// Definition is an immutable catalog entry describing an unlockable outcome:
// an achievement, an event task, or a mini-game rank threshold.
type Definition struct {
	Id             string                    `json:"id,omitempty"`
	Name           string                    `json:"name,omitempty"`
	Description    string                    `json:"description,omitempty"`
	Requirements   RequirementSet            `json:"requirements,omitempty"`
	RewardTiers    map[string]*RewardPayload `json:"reward_tiers,omitempty"`
	Classification DefinitionClassification  `json:"classification,omitempty"`
	Scope          DefinitionScope           `json:"scope,omitempty"`
}

// DefaultReward returns the "default" tier payload, or nil when the
// definition grants nothing on unlock.
func (d *Definition) DefaultReward() *RewardPayload {
	return d.RewardTiers[RewardTierDefault]
}

// CatalogConfig is the data definition for the CatalogSystem type.
type CatalogConfig struct {
	Definitions map[string]*Definition `json:"definitions,omitempty"`
}

// The CatalogSystem is the static registry of unlockable definitions, loaded
// once at start. There is no mutation API at runtime; catalog updates require
// a new deployment.
type CatalogSystem interface {
	System

	// Get returns the definition with the given ID, or ErrDefinitionNotFound.
	Get(id string) (*Definition, error)

	// ListByCategory returns all definitions in a classification category.
	ListByCategory(category string) []*Definition

	// ListVisible returns all definitions visible to a player: every
	// non-hidden definition plus the hidden ones the player has unlocked.
	ListVisible(unlocked map[string]bool) []*Definition

	// ListByScope returns all definitions with the given scope.
	ListByScope(scope DefinitionScope) []*Definition
}

// NakamaCatalogSystem implements the CatalogSystem interface.
type NakamaCatalogSystem struct {
	config *CatalogConfig
}

func NewNakamaCatalogSystem(config *CatalogConfig) (*NakamaCatalogSystem, error) {
	for id, def := range config.Definitions {
		if def.Id == "" {
			def.Id = id
		} else if def.Id != id {
			return nil, fmt.Errorf("definition %q declares mismatched id %q", id, def.Id)
		}
		if len(def.Requirements) == 0 {
			return nil, fmt.Errorf("definition %q has no requirements", id)
		}
		if def.Scope == "" {
			def.Scope = ScopeGlobal
		}
	}
	return &NakamaCatalogSystem{config: config}, nil
}

func (s *NakamaCatalogSystem) GetType() SystemType {
	return SystemTypeCatalog
}

func (s *NakamaCatalogSystem) GetConfig() any {
	return s.config
}

func (s *NakamaCatalogSystem) Get(id string) (*Definition, error) {
	def, ok := s.config.Definitions[id]
	if !ok {
		return nil, ErrDefinitionNotFound
	}
	return def, nil
}

func (s *NakamaCatalogSystem) ListByCategory(category string) []*Definition {
	return s.list(func(def *Definition) bool {
		return def.Classification.Category == category
	})
}

func (s *NakamaCatalogSystem) ListVisible(unlocked map[string]bool) []*Definition {
	return s.list(func(def *Definition) bool {
		return !def.Classification.Hidden || unlocked[def.Id]
	})
}

func (s *NakamaCatalogSystem) ListByScope(scope DefinitionScope) []*Definition {
	return s.list(func(def *Definition) bool {
		return def.Scope == scope
	})
}

func (s *NakamaCatalogSystem) list(match func(*Definition) bool) []*Definition {
	defs := make([]*Definition, 0, len(s.config.Definitions))
	for _, def := range s.config.Definitions {
		if match(def) {
			defs = append(defs, def)
		}
	}
	// Stable output order for listings and tests.
	sort.Slice(defs, func(i, j int) bool { return defs[i].Id < defs[j].Id })
	return defs
}

package farmlogix

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

// AchievementsConfig is the data definition for the AchievementsSystem type.
// Achievements are ordinary catalog definitions; this config only scopes
// which categories the achievements surface lists.
type AchievementsConfig struct {
	Categories []string `json:"categories,omitempty"`
}

// AchievementStatus is the player-facing view of one achievement definition.
type AchievementStatus struct {
	Id            string            `json:"id,omitempty"`
	Name          string            `json:"name,omitempty"`
	Description   string            `json:"description,omitempty"`
	Category      string            `json:"category,omitempty"`
	Rarity        string            `json:"rarity,omitempty"`
	UnlockedAtSec int64             `json:"unlocked_at_sec,omitempty"`
	Progress      *EvaluationResult `json:"progress,omitempty"`
	Reward        *RewardPayload    `json:"reward,omitempty"`
}

// The AchievementsSystem is a thin read surface over the shared progress
// engine: achievements unlock automatically when their requirements are met,
// so the adapter only names the signals and lists state.
type AchievementsSystem interface {
	System

	// ListAchievements returns the player's view of all visible achievement
	// definitions with live progress detail.
	ListAchievements(ctx context.Context, logger runtime.Logger, playerID string) []*AchievementStatus

	// GetAchievement returns one achievement's view, hidden-unseen ones
	// included so gameplay code can probe, or ErrDefinitionNotFound.
	GetAchievement(ctx context.Context, logger runtime.Logger, playerID, achievementID string) (*AchievementStatus, error)
}

// NakamaAchievementsSystem implements the AchievementsSystem interface.
type NakamaAchievementsSystem struct {
	config  *AchievementsConfig
	engine  Engine
	catalog CatalogSystem
	unlocks UnlocksSystem
}

func NewNakamaAchievementsSystem(config *AchievementsConfig, engine Engine, catalog CatalogSystem, unlocks UnlocksSystem) *NakamaAchievementsSystem {
	return &NakamaAchievementsSystem{
		config:  config,
		engine:  engine,
		catalog: catalog,
		unlocks: unlocks,
	}
}

func (s *NakamaAchievementsSystem) GetType() SystemType {
	return SystemTypeAchievements
}

func (s *NakamaAchievementsSystem) GetConfig() any {
	return s.config
}

func (s *NakamaAchievementsSystem) ListAchievements(ctx context.Context, logger runtime.Logger, playerID string) []*AchievementStatus {
	inScope := make(map[string]bool, len(s.config.Categories))
	for _, category := range s.config.Categories {
		inScope[category] = true
	}

	defs := s.engine.GetActiveDefinitionsFor(ctx, logger, playerID)
	statuses := make([]*AchievementStatus, 0, len(defs))
	for _, def := range defs {
		if len(inScope) > 0 && !inScope[def.Classification.Category] {
			continue
		}
		statuses = append(statuses, s.status(ctx, logger, playerID, def))
	}
	return statuses
}

func (s *NakamaAchievementsSystem) GetAchievement(ctx context.Context, logger runtime.Logger, playerID, achievementID string) (*AchievementStatus, error) {
	def, err := s.catalog.Get(achievementID)
	if err != nil {
		return nil, err
	}
	return s.status(ctx, logger, playerID, def), nil
}

func (s *NakamaAchievementsSystem) status(ctx context.Context, logger runtime.Logger, playerID string, def *Definition) *AchievementStatus {
	progress, err := s.engine.GetPlayerProgress(ctx, logger, playerID, def.Id)
	if err != nil {
		logger.Error("Failed to evaluate achievement %s for player %s: %v", def.Id, playerID, err)
	}
	return &AchievementStatus{
		Id:            def.Id,
		Name:          def.Name,
		Description:   def.Description,
		Category:      def.Classification.Category,
		Rarity:        def.Classification.Rarity,
		UnlockedAtSec: s.unlocks.UnlockedAt(ctx, logger, playerID, def.Id, RewardTierDefault),
		Progress:      progress,
		Reward:        def.DefaultReward(),
	}
}

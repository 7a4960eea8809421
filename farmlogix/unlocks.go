package farmlogix

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	unlocksStorageCollection = "unlocks"
	unlocksStorageKey        = "ledger"

	// RewardTierDefault is the tier used for single-reward definitions.
	RewardTierDefault = "default"
)

// UnlocksConfig is the data definition for the UnlocksSystem type.
type UnlocksConfig struct{}

// The UnlocksSystem is the per-player ledger of granted definitions. A
// (player, definition, tier) triple unlocks at most once; the reward
// dispatcher is never invoked twice for the same triple.
type UnlocksSystem interface {
	System

	// TryUnlock records the unlock if no record exists yet and reports whether
	// this call created it. Callers dispatch rewards only on true.
	TryUnlock(ctx context.Context, logger runtime.Logger, playerID, definitionID, tier string) bool

	// IsUnlocked reports whether the triple has already been unlocked.
	IsUnlocked(ctx context.Context, logger runtime.Logger, playerID, definitionID, tier string) bool

	// ListUnlocked returns the set of definition IDs with at least one
	// unlocked tier for the player.
	ListUnlocked(ctx context.Context, logger runtime.Logger, playerID string) map[string]bool

	// UnlockedAt returns the unlock timestamp for the triple, or zero when the
	// triple has not been unlocked.
	UnlockedAt(ctx context.Context, logger runtime.Logger, playerID, definitionID, tier string) int64
}

// playerLedger maps definition ID to tier to unix unlock time. Records are
// never mutated after creation.
type playerLedger map[string]map[string]int64

// NakamaUnlocksSystem implements the UnlocksSystem interface.
type NakamaUnlocksSystem struct {
	sync.Mutex

	config      *UnlocksConfig
	persistence PersistenceCollaborator
	clock       ClockCollaborator

	players map[string]playerLedger
}

func NewNakamaUnlocksSystem(config *UnlocksConfig, persistence PersistenceCollaborator, clock ClockCollaborator) *NakamaUnlocksSystem {
	return &NakamaUnlocksSystem{
		config:      config,
		persistence: persistence,
		clock:       clock,
		players:     make(map[string]playerLedger),
	}
}

func (s *NakamaUnlocksSystem) GetType() SystemType {
	return SystemTypeUnlocks
}

func (s *NakamaUnlocksSystem) GetConfig() any {
	return s.config
}

func (s *NakamaUnlocksSystem) getLedgerLocked(ctx context.Context, logger runtime.Logger, playerID string) playerLedger {
	if ledger, ok := s.players[playerID]; ok {
		return ledger
	}

	ledger := make(playerLedger)
	value, found, err := s.persistence.Get(ctx, unlocksStorageCollection, unlocksStorageKey, playerID)
	if err != nil {
		logger.Error("Failed to load unlock ledger for player %s: %v", playerID, err)
	} else if found {
		if err := json.Unmarshal([]byte(value), &ledger); err != nil {
			logger.Error("Failed to parse unlock ledger for player %s: %v", playerID, err)
			ledger = make(playerLedger)
		}
	}
	s.players[playerID] = ledger
	return ledger
}

func (s *NakamaUnlocksSystem) TryUnlock(ctx context.Context, logger runtime.Logger, playerID, definitionID, tier string) bool {
	if tier == "" {
		tier = RewardTierDefault
	}

	s.Lock()
	ledger := s.getLedgerLocked(ctx, logger, playerID)
	tiers, ok := ledger[definitionID]
	if !ok {
		tiers = make(map[string]int64)
		ledger[definitionID] = tiers
	}
	if _, exists := tiers[tier]; exists {
		s.Unlock()
		return false
	}
	tiers[tier] = s.clock.Now().Unix()
	data, err := json.Marshal(ledger)
	s.Unlock()

	// The unlock sticks in memory even when the persisted form fails; the
	// write is re-attempted the next time any tier unlocks for this player.
	if err != nil {
		logger.Error("Failed to serialize unlock ledger for player %s: %v", playerID, err)
		return true
	}
	if err := s.persistence.Set(ctx, unlocksStorageCollection, unlocksStorageKey, playerID, string(data)); err != nil {
		logger.Error("Failed to persist unlock of %s (%s) for player %s: %v", definitionID, tier, playerID, err)
	}
	return true
}

func (s *NakamaUnlocksSystem) IsUnlocked(ctx context.Context, logger runtime.Logger, playerID, definitionID, tier string) bool {
	return s.UnlockedAt(ctx, logger, playerID, definitionID, tier) != 0
}

func (s *NakamaUnlocksSystem) UnlockedAt(ctx context.Context, logger runtime.Logger, playerID, definitionID, tier string) int64 {
	if tier == "" {
		tier = RewardTierDefault
	}

	s.Lock()
	defer s.Unlock()

	ledger := s.getLedgerLocked(ctx, logger, playerID)
	return ledger[definitionID][tier]
}

func (s *NakamaUnlocksSystem) ListUnlocked(ctx context.Context, logger runtime.Logger, playerID string) map[string]bool {
	s.Lock()
	defer s.Unlock()

	ledger := s.getLedgerLocked(ctx, logger, playerID)
	unlocked := make(map[string]bool, len(ledger))
	for definitionID, tiers := range ledger {
		if len(tiers) > 0 {
			unlocked[definitionID] = true
		}
	}
	return unlocked
}

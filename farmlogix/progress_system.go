package farmlogix

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	progressStorageCollection = "progress"
	progressStorageKey        = "signals"

	defaultSaveIntervalSec = 30

	// uniqueCounterPrefix names the derived cardinality counter paired with a
	// set-valued signal.
	uniqueCounterPrefix = "unique_"
)

// playerProgress is the persisted per-player signal state.
type playerProgress struct {
	Counters map[string]int64           `json:"counters,omitempty"`
	Flags    map[string]bool            `json:"flags,omitempty"`
	Sets     map[string]map[string]bool `json:"sets,omitempty"`
}

func newPlayerProgress() *playerProgress {
	return &playerProgress{
		Counters: make(map[string]int64),
		Flags:    make(map[string]bool),
		Sets:     make(map[string]map[string]bool),
	}
}

// NakamaProgressSystem implements the ProgressSystem interface.
type NakamaProgressSystem struct {
	sync.Mutex

	config      *ProgressConfig
	persistence PersistenceCollaborator

	players map[string]*playerProgress
	dirty   map[string]bool

	onProgressChanged OnProgressChangedFn

	stopSweep chan struct{}
	stopOnce  sync.Once
}

func NewNakamaProgressSystem(config *ProgressConfig, persistence PersistenceCollaborator) *NakamaProgressSystem {
	return &NakamaProgressSystem{
		config:      config,
		persistence: persistence,
		players:     make(map[string]*playerProgress),
		dirty:       make(map[string]bool),
		stopSweep:   make(chan struct{}),
	}
}

func (s *NakamaProgressSystem) GetType() SystemType {
	return SystemTypeProgress
}

func (s *NakamaProgressSystem) GetConfig() any {
	return s.config
}

func (s *NakamaProgressSystem) SetOnProgressChanged(fn OnProgressChangedFn) {
	s.onProgressChanged = fn
}

// StartSweep launches the periodic persistence sweep. The sweep re-attempts
// failed writes naturally on the next tick since dirty players stay marked
// until a write succeeds.
func (s *NakamaProgressSystem) StartSweep(ctx context.Context, logger runtime.Logger) {
	interval := s.config.SaveIntervalSec
	if interval <= 0 {
		interval = defaultSaveIntervalSec
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.flushDirty(ctx, logger)
			case <-s.stopSweep:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StopSweep terminates the background persistence sweep.
func (s *NakamaProgressSystem) StopSweep() {
	s.stopOnce.Do(func() { close(s.stopSweep) })
}

// getPlayerLocked returns the player's live state, loading it from persistence
// on first access. Callers must hold the system lock.
func (s *NakamaProgressSystem) getPlayerLocked(ctx context.Context, logger runtime.Logger, playerID string) *playerProgress {
	if state, ok := s.players[playerID]; ok {
		return state
	}

	state := newPlayerProgress()
	value, found, err := s.persistence.Get(ctx, progressStorageCollection, progressStorageKey, playerID)
	if err != nil {
		// Start empty; the sweep persists whatever accumulates in memory.
		logger.Error("Failed to load progress for player %s: %v", playerID, err)
	} else if found {
		if err := json.Unmarshal([]byte(value), state); err != nil {
			logger.Error("Failed to parse stored progress for player %s: %v", playerID, err)
			state = newPlayerProgress()
		}
	}
	s.players[playerID] = state
	return state
}

func (s *NakamaProgressSystem) Increment(ctx context.Context, logger runtime.Logger, playerID, signal string, amount int64) {
	if amount <= 0 {
		logger.Warn("Ignoring non-positive progress increment %d for signal %s, player %s", amount, signal, playerID)
		return
	}

	s.Lock()
	state := s.getPlayerLocked(ctx, logger, playerID)
	state.Counters[signal] += amount
	s.dirty[playerID] = true
	s.Unlock()

	s.notifyChanged(ctx, logger, playerID, signal)
}

func (s *NakamaProgressSystem) RecordSetMember(ctx context.Context, logger runtime.Logger, playerID, signal, key string) {
	s.Lock()
	state := s.getPlayerLocked(ctx, logger, playerID)
	members, ok := state.Sets[signal]
	if !ok {
		members = make(map[string]bool)
		state.Sets[signal] = members
	}
	if members[key] {
		s.Unlock()
		return
	}
	members[key] = true
	state.Counters[uniqueCounterPrefix+signal] = int64(len(members))
	s.dirty[playerID] = true
	s.Unlock()

	// The derived cardinality counter is a signal in its own right; threshold
	// requirements reference it by the unique_ name.
	s.notifyChanged(ctx, logger, playerID, signal)
	s.notifyChanged(ctx, logger, playerID, uniqueCounterPrefix+signal)
}

func (s *NakamaProgressSystem) SetFlag(ctx context.Context, logger runtime.Logger, playerID, signal string) {
	s.Lock()
	state := s.getPlayerLocked(ctx, logger, playerID)
	if state.Flags[signal] {
		s.Unlock()
		return
	}
	state.Flags[signal] = true
	s.dirty[playerID] = true
	s.Unlock()

	s.notifyChanged(ctx, logger, playerID, signal)
}

func (s *NakamaProgressSystem) Snapshot(ctx context.Context, logger runtime.Logger, playerID string) *ProgressSnapshot {
	s.Lock()
	defer s.Unlock()

	state := s.getPlayerLocked(ctx, logger, playerID)
	snapshot := &ProgressSnapshot{
		Counters: make(map[string]int64, len(state.Counters)),
		Flags:    make(map[string]bool, len(state.Flags)),
		Sets:     make(map[string]map[string]bool, len(state.Sets)),
	}
	for k, v := range state.Counters {
		snapshot.Counters[k] = v
	}
	for k, v := range state.Flags {
		snapshot.Flags[k] = v
	}
	for signal, members := range state.Sets {
		copied := make(map[string]bool, len(members))
		for m := range members {
			copied[m] = true
		}
		snapshot.Sets[signal] = copied
	}
	return snapshot
}

func (s *NakamaProgressSystem) FlushPlayer(ctx context.Context, logger runtime.Logger, playerID string) {
	s.Lock()
	state, ok := s.players[playerID]
	if !ok {
		s.Unlock()
		return
	}
	data, err := json.Marshal(state)
	delete(s.players, playerID)
	delete(s.dirty, playerID)
	s.Unlock()

	if err != nil {
		logger.Error("Failed to serialize progress for player %s: %v", playerID, err)
		return
	}
	if err := s.persistence.Set(ctx, progressStorageCollection, progressStorageKey, playerID, string(data)); err != nil {
		logger.Error("Failed to persist progress for player %s on leave: %v", playerID, err)
	}
}

// flushDirty persists all players with unsaved changes. Failed writes leave
// the player marked dirty so the next sweep retries from current memory state.
func (s *NakamaProgressSystem) flushDirty(ctx context.Context, logger runtime.Logger) {
	s.Lock()
	pending := make(map[string]string, len(s.dirty))
	for playerID := range s.dirty {
		state, ok := s.players[playerID]
		if !ok {
			delete(s.dirty, playerID)
			continue
		}
		data, err := json.Marshal(state)
		if err != nil {
			logger.Error("Failed to serialize progress for player %s: %v", playerID, err)
			continue
		}
		pending[playerID] = string(data)
	}
	s.Unlock()

	for playerID, data := range pending {
		if err := s.persistence.Set(ctx, progressStorageCollection, progressStorageKey, playerID, data); err != nil {
			logger.Error("Failed to persist progress for player %s: %v", playerID, err)
			continue
		}
		s.Lock()
		delete(s.dirty, playerID)
		s.Unlock()
	}
}

func (s *NakamaProgressSystem) notifyChanged(ctx context.Context, logger runtime.Logger, playerID, signal string) {
	if s.onProgressChanged != nil {
		s.onProgressChanged(ctx, logger, playerID, signal)
	}
}

package farmlogix

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

// ProgressConfig is the data definition for the ProgressSystem type.
type ProgressConfig struct {
	// SaveIntervalSec is how often the background sweep persists dirty player
	// state. Defaults to 30 seconds when unset.
	SaveIntervalSec int64 `json:"save_interval_sec,omitempty"`
}

// The ProgressSystem accumulates named progress signals per player: counters
// that only increase, boolean flags that are set and never cleared, and sets
// whose members are never removed during a session. Every mutation schedules
// the player's state for batched persistence.
type ProgressSystem interface {
	System

	// Increment adds amount to the player's named counter, creating it at zero
	// if absent. Non-positive amounts are rejected with a logged warning and
	// leave state unchanged.
	Increment(ctx context.Context, logger runtime.Logger, playerID, signal string, amount int64)

	// RecordSetMember adds key to the player's named set if absent and keeps
	// the paired "unique_<signal>" cardinality counter in step. Idempotent on
	// repeat keys.
	RecordSetMember(ctx context.Context, logger runtime.Logger, playerID, signal, key string)

	// SetFlag marks the player's boolean signal true. Idempotent.
	SetFlag(ctx context.Context, logger runtime.Logger, playerID, signal string)

	// Snapshot returns an immutable read of the player's current signal values.
	Snapshot(ctx context.Context, logger runtime.Logger, playerID string) *ProgressSnapshot

	// FlushPlayer persists the player's state immediately and drops it from the
	// in-memory cache. Called when a player leaves.
	FlushPlayer(ctx context.Context, logger runtime.Logger, playerID string)

	// SetOnProgressChanged registers the hook invoked after each successful
	// mutation, before persistence. The engine uses it to re-evaluate the
	// player's eligible definitions.
	SetOnProgressChanged(fn OnProgressChangedFn)
}

// OnProgressChangedFn is invoked after a signal mutation has been applied.
type OnProgressChangedFn func(ctx context.Context, logger runtime.Logger, playerID, signal string)

// ProgressSnapshot is a point-in-time copy of one player's signals. It is
// detached from the live store; later mutations do not show through.
type ProgressSnapshot struct {
	Counters map[string]int64           `json:"counters,omitempty"`
	Flags    map[string]bool            `json:"flags,omitempty"`
	Sets     map[string]map[string]bool `json:"sets,omitempty"`
}

// Counter returns the named counter value, zero when absent.
func (s *ProgressSnapshot) Counter(signal string) int64 {
	if s == nil {
		return 0
	}
	return s.Counters[signal]
}

// Flag returns whether the named boolean signal is set.
func (s *ProgressSnapshot) Flag(signal string) bool {
	if s == nil {
		return false
	}
	return s.Flags[signal]
}

// SetContains returns whether key is a member of the named set signal.
func (s *ProgressSnapshot) SetContains(signal, key string) bool {
	if s == nil {
		return false
	}
	return s.Sets[signal][key]
}

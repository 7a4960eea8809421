package farmlogix

import (
	"context"
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"
)

// The Engine is the shared evaluate-unlock-grant pipeline behind the
// achievements, events and mini-games systems. It reacts to progress signal
// changes, evaluates the requirement sets of eligible definitions, records
// one-shot unlocks and dispatches their rewards.
type Engine interface {
	// EvaluateSignal re-evaluates the global-scope definitions that reference
	// the changed signal for the player. Safe to call any number of times;
	// unlocks and grants happen at most once per (player, definition, tier).
	EvaluateSignal(ctx context.Context, logger runtime.Logger, playerID, signal string)

	// EvaluateAll re-evaluates every global-scope definition for the player.
	// The hub calls it on player join to pick up progress accumulated while
	// the engine was not observing.
	EvaluateAll(ctx context.Context, logger runtime.Logger, playerID string)

	// GetPlayerProgress returns the per-requirement evaluation detail for one
	// definition.
	GetPlayerProgress(ctx context.Context, logger runtime.Logger, playerID, definitionID string) (*EvaluationResult, error)

	// GetUnlockedSet returns the definition IDs the player has unlocked.
	GetUnlockedSet(ctx context.Context, logger runtime.Logger, playerID string) map[string]bool

	// GetActiveDefinitionsFor lists the definitions currently visible to the
	// player, with hidden ones filtered until unlocked.
	GetActiveDefinitionsFor(ctx context.Context, logger runtime.Logger, playerID string) []*Definition
}

type progressEngine struct {
	progress   ProgressSystem
	catalog    CatalogSystem
	unlocks    UnlocksSystem
	dispatcher *RewardDispatcher
	notifier   NotificationCollaborator

	// bySignal indexes global-scope definitions by the signals their
	// requirements read, so a signal change only re-evaluates definitions
	// that could have flipped.
	bySignal map[string][]*Definition
}

func NewProgressEngine(progress ProgressSystem, catalog CatalogSystem, unlocks UnlocksSystem, dispatcher *RewardDispatcher, notifier NotificationCollaborator) Engine {
	e := &progressEngine{
		progress:   progress,
		catalog:    catalog,
		unlocks:    unlocks,
		dispatcher: dispatcher,
		notifier:   notifier,
		bySignal:   make(map[string][]*Definition),
	}
	for _, def := range catalog.ListByScope(ScopeGlobal) {
		for signal := range def.Requirements {
			e.bySignal[signal] = append(e.bySignal[signal], def)
		}
	}
	return e
}

func (e *progressEngine) EvaluateSignal(ctx context.Context, logger runtime.Logger, playerID, signal string) {
	defs := e.bySignal[signal]
	if len(defs) == 0 {
		return
	}
	e.evaluate(ctx, logger, playerID, defs)
}

func (e *progressEngine) EvaluateAll(ctx context.Context, logger runtime.Logger, playerID string) {
	e.evaluate(ctx, logger, playerID, e.catalog.ListByScope(ScopeGlobal))
}

func (e *progressEngine) evaluate(ctx context.Context, logger runtime.Logger, playerID string, defs []*Definition) {
	snapshot := e.progress.Snapshot(ctx, logger, playerID)

	for _, def := range defs {
		// Cheap pre-check before the snapshot evaluation short-circuits the
		// common case of an already-unlocked definition.
		if e.unlocks.IsUnlocked(ctx, logger, playerID, def.Id, RewardTierDefault) {
			continue
		}
		if !Satisfied(def.Requirements, snapshot) {
			continue
		}
		if !e.unlocks.TryUnlock(ctx, logger, playerID, def.Id, RewardTierDefault) {
			continue
		}

		if reward := def.DefaultReward(); !reward.Empty() {
			e.dispatcher.Grant(ctx, logger, playerID, reward)
		}
		subject := def.Name
		if subject == "" {
			subject = def.Id
		}
		if err := e.notifier.Notify(ctx, playerID, subject, fmt.Sprintf("Unlocked: %s", subject), NotificationCodeUnlock); err != nil {
			logger.Error("Failed to send unlock notification for %s to player %s: %v", def.Id, playerID, err)
		}
	}
}

func (e *progressEngine) GetPlayerProgress(ctx context.Context, logger runtime.Logger, playerID, definitionID string) (*EvaluationResult, error) {
	def, err := e.catalog.Get(definitionID)
	if err != nil {
		return nil, err
	}
	snapshot := e.progress.Snapshot(ctx, logger, playerID)
	return Evaluate(def.Requirements, snapshot), nil
}

func (e *progressEngine) GetUnlockedSet(ctx context.Context, logger runtime.Logger, playerID string) map[string]bool {
	return e.unlocks.ListUnlocked(ctx, logger, playerID)
}

func (e *progressEngine) GetActiveDefinitionsFor(ctx context.Context, logger runtime.Logger, playerID string) []*Definition {
	unlocked := e.unlocks.ListUnlocked(ctx, logger, playerID)
	return e.catalog.ListVisible(unlocked)
}

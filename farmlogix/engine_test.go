package farmlogix

import (
	"context"
	"fmt"
	"testing"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	persistence *memoryPersistence
	progress    *NakamaProgressSystem
	catalog     *NakamaCatalogSystem
	unlocks     *NakamaUnlocksSystem
	economy     *mockEconomy
	inventory   *mockInventory
	identity    *mockIdentity
	notifier    *mockNotifier
	engine      Engine
}

// newEngineFixture wires the engine the way Init does: progress mutations feed
// straight into signal re-evaluation.
func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	persistence := newMemoryPersistence()
	catalog, err := NewNakamaCatalogSystem(testCatalogConfig())
	require.NoError(t, err)

	f := &engineFixture{
		persistence: persistence,
		progress:    NewNakamaProgressSystem(&ProgressConfig{}, persistence),
		catalog:     catalog,
		unlocks:     NewNakamaUnlocksSystem(&UnlocksConfig{}, persistence, newFakeClock()),
		economy:     &mockEconomy{},
		inventory:   &mockInventory{},
		identity:    &mockIdentity{},
		notifier:    &mockNotifier{},
	}
	dispatcher := NewRewardDispatcher(f.economy, f.inventory, f.identity)
	f.engine = NewProgressEngine(f.progress, f.catalog, f.unlocks, dispatcher, f.notifier)
	f.progress.SetOnProgressChanged(func(ctx context.Context, logger runtime.Logger, playerID, signal string) {
		f.engine.EvaluateSignal(ctx, logger, playerID, signal)
	})
	return f
}

func TestEngineUnlocksAndGrantsOnce(t *testing.T) {
	f := newEngineFixture(t)
	logger := newTestLogger()
	ctx := context.Background()

	f.economy.On("AddCurrency", ctx, "farmer_1", int64(50)).Return(nil).Once()
	f.notifier.On("Notify", ctx, "farmer_1", "First Harvest", "Unlocked: First Harvest", NotificationCodeUnlock).Return(nil).Once()

	f.progress.Increment(ctx, logger, "farmer_1", "crops_harvested", 1)
	assert.True(t, f.unlocks.IsUnlocked(ctx, logger, "farmer_1", "first_harvest", RewardTierDefault))

	// Further progress on the same signal never re-grants.
	f.progress.Increment(ctx, logger, "farmer_1", "crops_harvested", 10)

	f.economy.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestEngineUnlocksOnUniqueSetCardinality(t *testing.T) {
	f := newEngineFixture(t)
	logger := newTestLogger()
	ctx := context.Background()

	f.notifier.On("Notify", ctx, "farmer_1", "Variety Farmer", mock.Anything, NotificationCodeUnlock).Return(nil).Once()

	// Thresholds on the derived unique_ counter unlock straight off set
	// mutations; no raw counter increment is involved.
	f.progress.RecordSetMember(ctx, logger, "farmer_1", "crop_types", "carrot")
	assert.False(t, f.unlocks.IsUnlocked(ctx, logger, "farmer_1", "variety_farmer", RewardTierDefault))

	f.progress.RecordSetMember(ctx, logger, "farmer_1", "crop_types", "potato")
	assert.True(t, f.unlocks.IsUnlocked(ctx, logger, "farmer_1", "variety_farmer", RewardTierDefault))

	// Repeat members change no cardinality and re-grant nothing.
	f.progress.RecordSetMember(ctx, logger, "farmer_1", "crop_types", "carrot")
	f.notifier.AssertExpectations(t)
}

func TestEngineIgnoresUnrelatedSignals(t *testing.T) {
	f := newEngineFixture(t)
	logger := newTestLogger()
	ctx := context.Background()

	f.progress.Increment(ctx, logger, "farmer_1", "fish_caught", 500)

	assert.Empty(t, f.unlocks.ListUnlocked(ctx, logger, "farmer_1"))
	f.economy.AssertNotCalled(t, "AddCurrency", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngineDoesNotUnlockBelowThreshold(t *testing.T) {
	f := newEngineFixture(t)
	logger := newTestLogger()
	ctx := context.Background()

	f.economy.On("AddCurrency", ctx, "farmer_1", int64(50)).Return(nil).Once()
	f.notifier.On("Notify", ctx, "farmer_1", "First Harvest", mock.Anything, NotificationCodeUnlock).Return(nil).Once()

	f.progress.Increment(ctx, logger, "farmer_1", "crops_harvested", 999)
	assert.False(t, f.unlocks.IsUnlocked(ctx, logger, "farmer_1", "master_harvester", RewardTierDefault))

	f.notifier.On("Notify", ctx, "farmer_1", "Master Harvester", mock.Anything, NotificationCodeUnlock).Return(nil).Once()
	f.progress.Increment(ctx, logger, "farmer_1", "crops_harvested", 1)
	assert.True(t, f.unlocks.IsUnlocked(ctx, logger, "farmer_1", "master_harvester", RewardTierDefault))

	f.notifier.AssertExpectations(t)
}

func TestGrantFailureKeepsUnlock(t *testing.T) {
	f := newEngineFixture(t)
	logger := newTestLogger()
	ctx := context.Background()

	f.economy.On("AddCurrency", ctx, "farmer_1", int64(50)).Return(fmt.Errorf("wallet offline")).Once()
	f.notifier.On("Notify", ctx, "farmer_1", "First Harvest", mock.Anything, NotificationCodeUnlock).Return(nil).Once()

	f.progress.Increment(ctx, logger, "farmer_1", "crops_harvested", 1)

	// The unlock is permanent even though the grant failed; subsequent signal
	// changes never retry the grant.
	assert.True(t, f.unlocks.IsUnlocked(ctx, logger, "farmer_1", "first_harvest", RewardTierDefault))
	f.progress.Increment(ctx, logger, "farmer_1", "crops_harvested", 1)

	f.economy.AssertExpectations(t)
}

func TestEngineEvaluateAll(t *testing.T) {
	f := newEngineFixture(t)
	logger := newTestLogger()
	ctx := context.Background()

	// Accumulate without the hook, as if progress arrived while the engine was
	// not observing, then sweep everything.
	f.progress.SetOnProgressChanged(nil)
	f.progress.Increment(ctx, logger, "farmer_1", "crops_harvested", 5)
	f.progress.Increment(ctx, logger, "farmer_1", "night_waterings", 10)
	assert.Empty(t, f.unlocks.ListUnlocked(ctx, logger, "farmer_1"))

	f.economy.On("AddCurrency", ctx, "farmer_1", int64(50)).Return(nil).Once()
	f.notifier.On("Notify", ctx, "farmer_1", mock.Anything, mock.Anything, NotificationCodeUnlock).Return(nil).Times(2)

	f.engine.EvaluateAll(ctx, logger, "farmer_1")

	unlocked := f.unlocks.ListUnlocked(ctx, logger, "farmer_1")
	assert.True(t, unlocked["first_harvest"])
	assert.True(t, unlocked["secret_gardener"])
	f.notifier.AssertExpectations(t)
}

func TestEngineSkipsEventScopedDefinitions(t *testing.T) {
	f := newEngineFixture(t)
	logger := newTestLogger()
	ctx := context.Background()

	// festival_regular is event-scoped; global signal evaluation ignores it.
	f.progress.Increment(ctx, logger, "farmer_1", "festivals_attended", 3)
	assert.False(t, f.unlocks.IsUnlocked(ctx, logger, "farmer_1", "festival_regular", RewardTierDefault))
}

func TestEngineGetPlayerProgressDetail(t *testing.T) {
	f := newEngineFixture(t)
	logger := newTestLogger()
	ctx := context.Background()

	f.progress.SetOnProgressChanged(nil)
	f.progress.Increment(ctx, logger, "farmer_1", "crops_harvested", 400)

	result, err := f.engine.GetPlayerProgress(ctx, logger, "farmer_1", "master_harvester")
	require.NoError(t, err)
	assert.False(t, result.Satisfied)
	assert.Equal(t, int64(400), result.Detail["crops_harvested"].Current)
	assert.InDelta(t, 40.0, result.Detail["crops_harvested"].Percent, 0.001)

	_, err = f.engine.GetPlayerProgress(ctx, logger, "farmer_1", "does_not_exist")
	assert.ErrorIs(t, err, ErrDefinitionNotFound)
}

func TestEngineHiddenDefinitionVisibility(t *testing.T) {
	f := newEngineFixture(t)
	logger := newTestLogger()
	ctx := context.Background()

	visibleIDs := func() []string {
		defs := f.engine.GetActiveDefinitionsFor(ctx, logger, "farmer_1")
		ids := make([]string, 0, len(defs))
		for _, def := range defs {
			ids = append(ids, def.Id)
		}
		return ids
	}

	assert.NotContains(t, visibleIDs(), "secret_gardener")

	f.notifier.On("Notify", ctx, "farmer_1", mock.Anything, mock.Anything, NotificationCodeUnlock).Return(nil)
	f.progress.Increment(ctx, logger, "farmer_1", "night_waterings", 10)

	assert.Contains(t, visibleIDs(), "secret_gardener")
}

package farmlogix

import (
	"context"
	"encoding/json"
	"io"

	"github.com/heroiclabs/nakama-common/runtime"
)

// farmlogixImpl implements the Farmlogix interface.
type farmlogixImpl struct {
	systems map[SystemType]System
	engine  Engine

	persistence PersistenceCollaborator
	economy     EconomyCollaborator
	inventory   InventoryCollaborator
	identity    IdentityCollaborator
	notifier    NotificationCollaborator
	clock       ClockCollaborator
	dispatcher  *RewardDispatcher
}

// Init initializes a Farmlogix type with the configurations provided, wiring
// every system to its collaborators and registering RPCs where requested.
// Collaborators default to the Nakama-backed implementations; tests construct
// systems directly with doubles instead.
func Init(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, initializer runtime.Initializer, configs ...SystemConfig) (Farmlogix, error) {
	fl := &farmlogixImpl{
		systems:     make(map[SystemType]System),
		persistence: NewNakamaPersistence(nk),
		economy:     NewNakamaEconomy(nk),
		inventory:   NewNakamaInventory(nk),
		identity:    NewNakamaIdentity(nk),
		notifier:    NewNakamaNotifier(nk),
		clock:       NewSystemClock(),
	}
	fl.dispatcher = NewRewardDispatcher(fl.economy, fl.inventory, fl.identity)

	// Read all config files up front so construction can run in dependency
	// order regardless of the order configs were passed in.
	configBytes := make(map[SystemType][]byte, len(configs))
	register := make(map[SystemType]bool, len(configs))
	for _, config := range configs {
		logger.Info("Initializing system type: %v, config file: %s", config.GetType(), config.GetConfigFile())

		file, err := nk.ReadFile(config.GetConfigFile())
		if err != nil {
			logger.Error("Failed to read config file %s: %v", config.GetConfigFile(), err)
			return nil, err
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			logger.Error("Failed to read config file contents: %v", err)
			return nil, err
		}
		configBytes[config.GetType()] = data
		register[config.GetType()] = config.GetRegister()
	}

	if data, ok := configBytes[SystemTypeProgress]; ok {
		progressConfig := &ProgressConfig{}
		if err := json.Unmarshal(data, progressConfig); err != nil {
			logger.Error("Failed to parse Progress system config: %v", err)
			return nil, err
		}
		system := NewNakamaProgressSystem(progressConfig, fl.persistence)
		system.StartSweep(ctx, logger)
		fl.systems[SystemTypeProgress] = system
	}

	if data, ok := configBytes[SystemTypeCatalog]; ok {
		catalogConfig := &CatalogConfig{}
		if err := json.Unmarshal(data, catalogConfig); err != nil {
			logger.Error("Failed to parse Catalog system config: %v", err)
			return nil, err
		}
		system, err := NewNakamaCatalogSystem(catalogConfig)
		if err != nil {
			logger.Error("Invalid catalog config: %v", err)
			return nil, err
		}
		fl.systems[SystemTypeCatalog] = system
	}

	if data, ok := configBytes[SystemTypeUnlocks]; ok {
		unlocksConfig := &UnlocksConfig{}
		if err := json.Unmarshal(data, unlocksConfig); err != nil {
			logger.Error("Failed to parse Unlocks system config: %v", err)
			return nil, err
		}
		fl.systems[SystemTypeUnlocks] = NewNakamaUnlocksSystem(unlocksConfig, fl.persistence, fl.clock)
	}

	// The engine needs progress, catalog and unlocks; it drives automatic
	// unlocks off the progress-changed hook.
	progress := fl.GetProgressSystem()
	catalog := fl.GetCatalogSystem()
	unlocks := fl.GetUnlocksSystem()
	if progress != nil && catalog != nil && unlocks != nil {
		fl.engine = NewProgressEngine(progress, catalog, unlocks, fl.dispatcher, fl.notifier)
		progress.SetOnProgressChanged(func(ctx context.Context, logger runtime.Logger, playerID, signal string) {
			fl.engine.EvaluateSignal(ctx, logger, playerID, signal)
		})
	}

	if data, ok := configBytes[SystemTypeAchievements]; ok {
		if fl.engine == nil {
			logger.Error("Achievements system requires the progress, catalog and unlocks systems")
			return nil, ErrSystemNotFound
		}
		achievementsConfig := &AchievementsConfig{}
		if err := json.Unmarshal(data, achievementsConfig); err != nil {
			logger.Error("Failed to parse Achievements system config: %v", err)
			return nil, err
		}
		fl.systems[SystemTypeAchievements] = NewNakamaAchievementsSystem(achievementsConfig, fl.engine, catalog, unlocks)
	}

	if data, ok := configBytes[SystemTypeEvents]; ok {
		if unlocks == nil {
			logger.Error("Events system requires the unlocks system")
			return nil, ErrSystemNotFound
		}
		eventsConfig := &EventsConfig{}
		if err := json.Unmarshal(data, eventsConfig); err != nil {
			logger.Error("Failed to parse Events system config: %v", err)
			return nil, err
		}
		system := NewNakamaEventsSystem(eventsConfig, fl.persistence, fl.dispatcher, fl.notifier, unlocks, fl.clock)
		system.LoadState(ctx, logger)
		system.StartSweeps(ctx, logger)
		fl.systems[SystemTypeEvents] = system
	}

	if data, ok := configBytes[SystemTypeMiniGames]; ok {
		if progress == nil {
			logger.Error("MiniGames system requires the progress system")
			return nil, ErrSystemNotFound
		}
		miniGamesConfig := &MiniGamesConfig{}
		if err := json.Unmarshal(data, miniGamesConfig); err != nil {
			logger.Error("Failed to parse MiniGames system config: %v", err)
			return nil, err
		}
		fl.systems[SystemTypeMiniGames] = NewNakamaMiniGamesSystem(miniGamesConfig, progress)
	}

	for systemType, reg := range register {
		if !reg {
			continue
		}
		if err := fl.registerSystemRpcs(initializer, systemType); err != nil {
			return nil, err
		}
	}

	return fl, nil
}

// registerSystemRpcs registers the appropriate RPCs for a given system type.
func (f *farmlogixImpl) registerSystemRpcs(initializer runtime.Initializer, systemType SystemType) error {
	switch systemType {
	case SystemTypeProgress:
		if err := initializer.RegisterRpc(RpcIdProgressGet, rpcProgressGet(f)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdProgressDefinitions, rpcProgressDefinitions(f)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdProgressUnlocked, rpcProgressUnlocked(f)); err != nil {
			return err
		}

	case SystemTypeAchievements:
		if err := initializer.RegisterRpc(RpcIdAchievementsList, rpcAchievementsList(f)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdAchievementsGet, rpcAchievementsGet(f)); err != nil {
			return err
		}

	case SystemTypeEvents:
		if err := initializer.RegisterRpc(RpcIdEventsList, rpcEventsList(f)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdEventsGet, rpcEventsGet(f)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdEventsJoin, rpcEventsJoin(f)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdEventsContribute, rpcEventsContribute(f)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdEventsClaim, rpcEventsClaim(f)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdEventsLeaderboard, rpcEventsLeaderboard(f)); err != nil {
			return err
		}

	case SystemTypeMiniGames:
		if err := initializer.RegisterRpc(RpcIdMiniGamesSubmit, rpcMiniGamesSubmit(f)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdMiniGamesRank, rpcMiniGamesRank(f)); err != nil {
			return err
		}

	default:
		// No RPCs for this system type.
	}

	return nil
}

func (f *farmlogixImpl) GetProgressSystem() ProgressSystem {
	if sys, ok := f.systems[SystemTypeProgress].(ProgressSystem); ok {
		return sys
	}
	return nil
}

func (f *farmlogixImpl) GetCatalogSystem() CatalogSystem {
	if sys, ok := f.systems[SystemTypeCatalog].(CatalogSystem); ok {
		return sys
	}
	return nil
}

func (f *farmlogixImpl) GetUnlocksSystem() UnlocksSystem {
	if sys, ok := f.systems[SystemTypeUnlocks].(UnlocksSystem); ok {
		return sys
	}
	return nil
}

func (f *farmlogixImpl) GetEngine() Engine {
	return f.engine
}

func (f *farmlogixImpl) GetAchievementsSystem() AchievementsSystem {
	if sys, ok := f.systems[SystemTypeAchievements].(AchievementsSystem); ok {
		return sys
	}
	return nil
}

func (f *farmlogixImpl) GetEventsSystem() EventsSystem {
	if sys, ok := f.systems[SystemTypeEvents].(EventsSystem); ok {
		return sys
	}
	return nil
}

func (f *farmlogixImpl) GetMiniGamesSystem() MiniGamesSystem {
	if sys, ok := f.systems[SystemTypeMiniGames].(MiniGamesSystem); ok {
		return sys
	}
	return nil
}

func (f *farmlogixImpl) GetPersistence() PersistenceCollaborator {
	return f.persistence
}

func (f *farmlogixImpl) GetEconomy() EconomyCollaborator {
	return f.economy
}

func (f *farmlogixImpl) GetInventory() InventoryCollaborator {
	return f.inventory
}

func (f *farmlogixImpl) GetIdentity() IdentityCollaborator {
	return f.identity
}

func (f *farmlogixImpl) GetNotifier() NotificationCollaborator {
	return f.notifier
}

func (f *farmlogixImpl) GetClock() ClockCollaborator {
	return f.clock
}

func (f *farmlogixImpl) OnPlayerJoin(ctx context.Context, logger runtime.Logger, playerID string) {
	if f.engine != nil {
		f.engine.EvaluateAll(ctx, logger, playerID)
	}
}

func (f *farmlogixImpl) OnPlayerLeave(ctx context.Context, logger runtime.Logger, playerID string) {
	if progress, ok := f.systems[SystemTypeProgress].(*NakamaProgressSystem); ok {
		progress.FlushPlayer(ctx, logger, playerID)
	}
}

func (f *farmlogixImpl) Shutdown() {
	if progress, ok := f.systems[SystemTypeProgress].(*NakamaProgressSystem); ok {
		progress.StopSweep()
	}
	if events, ok := f.systems[SystemTypeEvents].(*NakamaEventsSystem); ok {
		events.StopSweeps()
	}
}

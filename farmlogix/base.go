package farmlogix

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

var (
	ErrInternal          = runtime.NewError("internal error occurred", 13) // INTERNAL
	ErrBadInput          = runtime.NewError("bad input", 3)                // INVALID_ARGUMENT
	ErrNoSessionUser     = runtime.NewError("no user ID in session", 3)    // INVALID_ARGUMENT
	ErrNoSessionUsername = runtime.NewError("no username in session", 3)   // INVALID_ARGUMENT
	ErrPayloadDecode     = runtime.NewError("cannot decode json", 13)      // INTERNAL
	ErrPayloadEncode     = runtime.NewError("cannot encode json", 13)      // INTERNAL
	ErrSystemNotFound    = runtime.NewError("system not found", 13)        // INTERNAL

	ErrDefinitionNotFound = runtime.NewError("definition not found", 5) // NOT_FOUND
	ErrEventNotFound      = runtime.NewError("event not found", 5)      // NOT_FOUND
)

// The Farmlogix type combines the gameplay progress systems and provides each
// system with access to its collaborators. Systems locate each other through
// this hub rather than through process-wide globals.
type Farmlogix interface {
	GetProgressSystem() ProgressSystem
	GetCatalogSystem() CatalogSystem
	GetUnlocksSystem() UnlocksSystem
	GetEngine() Engine
	GetAchievementsSystem() AchievementsSystem
	GetEventsSystem() EventsSystem
	GetMiniGamesSystem() MiniGamesSystem

	// Collaborators implemented by out-of-scope subsystems.
	GetPersistence() PersistenceCollaborator
	GetEconomy() EconomyCollaborator
	GetInventory() InventoryCollaborator
	GetIdentity() IdentityCollaborator
	GetNotifier() NotificationCollaborator
	GetClock() ClockCollaborator

	// OnPlayerJoin re-evaluates every definition for the player so unlocks
	// earned from progress applied while the engine was not observing are
	// granted at session start.
	OnPlayerJoin(ctx context.Context, logger runtime.Logger, playerID string)

	// OnPlayerLeave stops periodic work for the player and forces one final
	// persistence flush of their progress state.
	OnPlayerLeave(ctx context.Context, logger runtime.Logger, playerID string)

	// Shutdown stops all background sweeps.
	Shutdown()
}

// The SystemType identifies each of the gameplay progress systems.
type SystemType uint

const (
	SystemTypeUnknown SystemType = iota
	SystemTypeProgress
	SystemTypeCatalog
	SystemTypeUnlocks
	SystemTypeAchievements
	SystemTypeEvents
	SystemTypeMiniGames
)

// A System is a base type for a gameplay progress system.
type System interface {
	// GetType provides the runtime type of the gameplay system.
	GetType() SystemType

	// GetConfig returns the configuration type of the gameplay system.
	GetConfig() any
}

// The SystemConfig describes the configuration that each gameplay system must
// use to configure itself.
type SystemConfig interface {
	// GetType returns the runtime type of the gameplay system.
	GetType() SystemType

	// GetConfigFile returns the configuration file used for the data definitions in the gameplay system.
	GetConfigFile() string

	// GetRegister returns true if the gameplay system's RPCs should be registered with the game server.
	GetRegister() bool
}

var _ SystemConfig = &systemConfig{}

type systemConfig struct {
	systemType SystemType
	configFile string
	register   bool
}

func (sc *systemConfig) GetType() SystemType {
	return sc.systemType
}
func (sc *systemConfig) GetConfigFile() string {
	return sc.configFile
}
func (sc *systemConfig) GetRegister() bool {
	return sc.register
}

// WithProgressSystem configures a ProgressSystem type and optionally registers its RPCs with the game server.
func WithProgressSystem(configFile string, register bool) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeProgress,
		configFile: configFile,
		register:   register,
	}
}

// WithCatalogSystem configures a CatalogSystem type. The catalog has no RPCs of
// its own; listings are exposed through the achievements and events systems.
func WithCatalogSystem(configFile string) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeCatalog,
		configFile: configFile,
	}
}

// WithUnlocksSystem configures an UnlocksSystem type.
func WithUnlocksSystem(configFile string) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeUnlocks,
		configFile: configFile,
	}
}

// WithAchievementsSystem configures an AchievementsSystem type and optionally registers its RPCs with the game server.
func WithAchievementsSystem(configFile string, register bool) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeAchievements,
		configFile: configFile,
		register:   register,
	}
}

// WithEventsSystem configures an EventsSystem type and optionally registers its RPCs with the game server.
func WithEventsSystem(configFile string, register bool) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeEvents,
		configFile: configFile,
		register:   register,
	}
}

// WithMiniGamesSystem configures a MiniGamesSystem type and optionally registers its RPCs with the game server.
func WithMiniGamesSystem(configFile string, register bool) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeMiniGames,
		configFile: configFile,
		register:   register,
	}
}

// ClaimResult is the structured outcome of reward-claim style operations.
// Eligibility failures are the expected common-path failure mode and are
// reported through this type, never as errors.
type ClaimResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Reward  *RewardPayload `json:"reward,omitempty"`
}

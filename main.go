package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"harvestforge/farmlogix"
)

// noinspection GoUnusedExportedFunction
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	initStart := time.Now()

	logger.Info("Loading Harvestforge Nakama plugin...")

	_, err := farmlogix.Init(ctx, logger, nk, initializer,
		farmlogix.WithProgressSystem("data/progress.json", true),
		farmlogix.WithCatalogSystem("data/catalog.json"),
		farmlogix.WithUnlocksSystem("data/unlocks.json"),
		farmlogix.WithAchievementsSystem("data/achievements.json", true),
		farmlogix.WithEventsSystem("data/events.json", true),
		farmlogix.WithMiniGamesSystem("data/minigames.json", true),
	)
	if err != nil {
		logger.Error("Failed to initialize Harvestforge systems: %v", err)
		return err
	}

	logger.Info("Harvestforge Nakama plugin loaded in '%d' msec.", time.Now().Sub(initStart).Milliseconds())
	return nil
}

// main is never called; Nakama loads this module as a plugin via InitModule.
func main() {}

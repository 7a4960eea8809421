package farmlogix

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"
)

// rpcAchievementsList returns the player's view of all visible achievements.
func rpcAchievementsList(f *farmlogixImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		achievementsSystem := f.GetAchievementsSystem()
		if achievementsSystem == nil {
			return "", ErrSystemNotFound
		}

		userID, err := sessionUserID(ctx)
		if err != nil {
			logger.Error("No user ID in context")
			return "", err
		}

		response := struct {
			Achievements []*AchievementStatus `json:"achievements"`
		}{
			Achievements: achievementsSystem.ListAchievements(ctx, logger, userID),
		}
		responseData, err := json.Marshal(response)
		if err != nil {
			logger.Error("Failed to marshal achievements list response: %v", err)
			return "", ErrPayloadEncode
		}
		return string(responseData), nil
	}
}

// rpcAchievementsGet returns a single achievement's state for the player.
func rpcAchievementsGet(f *farmlogixImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		achievementsSystem := f.GetAchievementsSystem()
		if achievementsSystem == nil {
			return "", ErrSystemNotFound
		}

		userID, err := sessionUserID(ctx)
		if err != nil {
			logger.Error("No user ID in context")
			return "", err
		}

		var request struct {
			AchievementId string `json:"achievement_id"`
		}
		if err := json.Unmarshal([]byte(payload), &request); err != nil {
			logger.Error("Failed to unmarshal achievement get request: %v", err)
			return "", ErrPayloadDecode
		}
		if request.AchievementId == "" {
			return "", ErrBadInput
		}

		status, err := achievementsSystem.GetAchievement(ctx, logger, userID, request.AchievementId)
		if err != nil {
			return "", err
		}

		responseData, err := json.Marshal(status)
		if err != nil {
			logger.Error("Failed to marshal achievement get response: %v", err)
			return "", ErrPayloadEncode
		}
		return string(responseData), nil
	}
}

package farmlogix

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"
)

// rpcMiniGamesSubmit records a finished mini-game round for the player.
func rpcMiniGamesSubmit(f *farmlogixImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		miniGamesSystem := f.GetMiniGamesSystem()
		if miniGamesSystem == nil {
			return "", ErrSystemNotFound
		}

		userID, err := sessionUserID(ctx)
		if err != nil {
			logger.Error("No user ID in context")
			return "", err
		}

		var request struct {
			GameId string `json:"game_id"`
			Score  int64  `json:"score"`
		}
		if err := json.Unmarshal([]byte(payload), &request); err != nil {
			logger.Error("Failed to unmarshal minigame submit request: %v", err)
			return "", ErrPayloadDecode
		}

		if err := miniGamesSystem.SubmitScore(ctx, logger, userID, request.GameId, request.Score); err != nil {
			return "", err
		}

		rank, err := miniGamesSystem.GetRank(ctx, logger, userID, request.GameId)
		if err != nil {
			return "", err
		}

		response := struct {
			Success bool   `json:"success"`
			Rank    string `json:"rank,omitempty"`
		}{Success: true, Rank: rank}
		responseData, err := json.Marshal(response)
		if err != nil {
			logger.Error("Failed to marshal minigame submit response: %v", err)
			return "", ErrPayloadEncode
		}
		return string(responseData), nil
	}
}

// rpcMiniGamesRank returns the player's current rank for a mini-game.
func rpcMiniGamesRank(f *farmlogixImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		miniGamesSystem := f.GetMiniGamesSystem()
		if miniGamesSystem == nil {
			return "", ErrSystemNotFound
		}

		userID, err := sessionUserID(ctx)
		if err != nil {
			logger.Error("No user ID in context")
			return "", err
		}

		var request struct {
			GameId string `json:"game_id"`
		}
		if err := json.Unmarshal([]byte(payload), &request); err != nil {
			logger.Error("Failed to unmarshal minigame rank request: %v", err)
			return "", ErrPayloadDecode
		}

		rank, err := miniGamesSystem.GetRank(ctx, logger, userID, request.GameId)
		if err != nil {
			return "", err
		}

		response := struct {
			Rank string `json:"rank,omitempty"`
		}{Rank: rank}
		responseData, err := json.Marshal(response)
		if err != nil {
			logger.Error("Failed to marshal minigame rank response: %v", err)
			return "", ErrPayloadEncode
		}
		return string(responseData), nil
	}
}

package farmlogix

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"
)

// rpcProgressGet returns the requirement evaluation detail for one definition.
func rpcProgressGet(f *farmlogixImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		engine := f.GetEngine()
		if engine == nil {
			return "", ErrSystemNotFound
		}

		userID, err := sessionUserID(ctx)
		if err != nil {
			logger.Error("No user ID in context")
			return "", err
		}

		var request struct {
			DefinitionId string `json:"definition_id"`
		}
		if err := json.Unmarshal([]byte(payload), &request); err != nil {
			logger.Error("Failed to unmarshal progress get request: %v", err)
			return "", ErrPayloadDecode
		}
		if request.DefinitionId == "" {
			return "", ErrBadInput
		}

		result, err := engine.GetPlayerProgress(ctx, logger, userID, request.DefinitionId)
		if err != nil {
			return "", err
		}

		responseData, err := json.Marshal(result)
		if err != nil {
			logger.Error("Failed to marshal progress get response: %v", err)
			return "", ErrPayloadEncode
		}
		return string(responseData), nil
	}
}

// rpcProgressDefinitions lists the definitions currently visible to the player.
func rpcProgressDefinitions(f *farmlogixImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		engine := f.GetEngine()
		if engine == nil {
			return "", ErrSystemNotFound
		}

		userID, err := sessionUserID(ctx)
		if err != nil {
			logger.Error("No user ID in context")
			return "", err
		}

		response := struct {
			Definitions []*Definition `json:"definitions"`
		}{
			Definitions: engine.GetActiveDefinitionsFor(ctx, logger, userID),
		}
		responseData, err := json.Marshal(response)
		if err != nil {
			logger.Error("Failed to marshal definitions response: %v", err)
			return "", ErrPayloadEncode
		}
		return string(responseData), nil
	}
}

// rpcProgressUnlocked returns the player's unlocked definition IDs.
func rpcProgressUnlocked(f *farmlogixImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		engine := f.GetEngine()
		if engine == nil {
			return "", ErrSystemNotFound
		}

		userID, err := sessionUserID(ctx)
		if err != nil {
			logger.Error("No user ID in context")
			return "", err
		}

		unlocked := engine.GetUnlockedSet(ctx, logger, userID)
		ids := make([]string, 0, len(unlocked))
		for id := range unlocked {
			ids = append(ids, id)
		}

		response := struct {
			Unlocked []string `json:"unlocked"`
		}{Unlocked: ids}
		responseData, err := json.Marshal(response)
		if err != nil {
			logger.Error("Failed to marshal unlocked response: %v", err)
			return "", ErrPayloadEncode
		}
		return string(responseData), nil
	}
}

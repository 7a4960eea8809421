package farmlogix

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"
)

// rpcEventsList returns all live and recently completed event instances.
func rpcEventsList(f *farmlogixImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		eventsSystem := f.GetEventsSystem()
		if eventsSystem == nil {
			return "", ErrSystemNotFound
		}

		response := struct {
			Events []*EventInstance `json:"events"`
		}{
			Events: eventsSystem.ListEvents(ctx, logger),
		}
		responseData, err := json.Marshal(response)
		if err != nil {
			logger.Error("Failed to marshal events list response: %v", err)
			return "", ErrPayloadEncode
		}
		return string(responseData), nil
	}
}

// rpcEventsGet returns one event instance.
func rpcEventsGet(f *farmlogixImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		eventsSystem := f.GetEventsSystem()
		if eventsSystem == nil {
			return "", ErrSystemNotFound
		}

		var request struct {
			EventId string `json:"event_id"`
		}
		if err := json.Unmarshal([]byte(payload), &request); err != nil {
			logger.Error("Failed to unmarshal event get request: %v", err)
			return "", ErrPayloadDecode
		}

		instance, err := eventsSystem.GetEvent(ctx, logger, request.EventId)
		if err != nil {
			return "", err
		}

		responseData, err := json.Marshal(instance)
		if err != nil {
			logger.Error("Failed to marshal event get response: %v", err)
			return "", ErrPayloadEncode
		}
		return string(responseData), nil
	}
}

// rpcEventsJoin adds the player to an active event.
func rpcEventsJoin(f *farmlogixImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		eventsSystem := f.GetEventsSystem()
		if eventsSystem == nil {
			return "", ErrSystemNotFound
		}

		userID, err := sessionUserID(ctx)
		if err != nil {
			logger.Error("No user ID in context")
			return "", err
		}

		var request struct {
			EventId string `json:"event_id"`
		}
		if err := json.Unmarshal([]byte(payload), &request); err != nil {
			logger.Error("Failed to unmarshal event join request: %v", err)
			return "", ErrPayloadDecode
		}

		result := eventsSystem.Join(ctx, logger, userID, request.EventId)
		responseData, err := json.Marshal(result)
		if err != nil {
			logger.Error("Failed to marshal event join response: %v", err)
			return "", ErrPayloadEncode
		}
		return string(responseData), nil
	}
}

// rpcEventsContribute applies a participant's metric contribution.
func rpcEventsContribute(f *farmlogixImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		eventsSystem := f.GetEventsSystem()
		if eventsSystem == nil {
			return "", ErrSystemNotFound
		}

		userID, err := sessionUserID(ctx)
		if err != nil {
			logger.Error("No user ID in context")
			return "", err
		}

		var request struct {
			EventId string `json:"event_id"`
			Metric  string `json:"metric"`
			Amount  int64  `json:"amount"`
		}
		if err := json.Unmarshal([]byte(payload), &request); err != nil {
			logger.Error("Failed to unmarshal event contribute request: %v", err)
			return "", ErrPayloadDecode
		}

		result := eventsSystem.RecordContribution(ctx, logger, userID, request.EventId, request.Metric, request.Amount)
		responseData, err := json.Marshal(result)
		if err != nil {
			logger.Error("Failed to marshal event contribute response: %v", err)
			return "", ErrPayloadEncode
		}
		return string(responseData), nil
	}
}

// rpcEventsClaim claims a reward tier for the player.
func rpcEventsClaim(f *farmlogixImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		eventsSystem := f.GetEventsSystem()
		if eventsSystem == nil {
			return "", ErrSystemNotFound
		}

		userID, err := sessionUserID(ctx)
		if err != nil {
			logger.Error("No user ID in context")
			return "", err
		}

		var request struct {
			EventId string `json:"event_id"`
			Tier    string `json:"tier"`
		}
		if err := json.Unmarshal([]byte(payload), &request); err != nil {
			logger.Error("Failed to unmarshal event claim request: %v", err)
			return "", ErrPayloadDecode
		}

		result := eventsSystem.ClaimReward(ctx, logger, userID, request.EventId, request.Tier)
		responseData, err := json.Marshal(result)
		if err != nil {
			logger.Error("Failed to marshal event claim response: %v", err)
			return "", ErrPayloadEncode
		}
		return string(responseData), nil
	}
}

// rpcEventsLeaderboard returns the ranked leaderboard and the caller's rank.
func rpcEventsLeaderboard(f *farmlogixImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		eventsSystem := f.GetEventsSystem()
		if eventsSystem == nil {
			return "", ErrSystemNotFound
		}

		userID, err := sessionUserID(ctx)
		if err != nil {
			logger.Error("No user ID in context")
			return "", err
		}

		var request struct {
			EventId string `json:"event_id"`
		}
		if err := json.Unmarshal([]byte(payload), &request); err != nil {
			logger.Error("Failed to unmarshal leaderboard request: %v", err)
			return "", ErrPayloadDecode
		}

		entries, err := eventsSystem.GetLeaderboard(ctx, logger, request.EventId)
		if err != nil {
			return "", err
		}

		response := struct {
			Entries []*LeaderboardEntry `json:"entries"`
			Rank    int                 `json:"rank,omitempty"`
		}{Entries: entries}
		if rank := eventsSystem.GetRank(ctx, logger, request.EventId, userID); rank != RankNotFound {
			response.Rank = rank
		}

		responseData, err := json.Marshal(response)
		if err != nil {
			logger.Error("Failed to marshal leaderboard response: %v", err)
			return "", ErrPayloadEncode
		}
		return string(responseData), nil
	}
}

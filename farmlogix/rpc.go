package farmlogix

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

// RPC identifiers registered with the game server.
const (
	RpcIdProgressGet         = "progress_get"
	RpcIdProgressDefinitions = "progress_definitions"
	RpcIdProgressUnlocked    = "progress_unlocked"

	RpcIdAchievementsList = "achievements_list"
	RpcIdAchievementsGet  = "achievements_get"

	RpcIdEventsList        = "events_list"
	RpcIdEventsGet         = "events_get"
	RpcIdEventsJoin        = "events_join"
	RpcIdEventsContribute  = "events_contribute"
	RpcIdEventsClaim       = "events_claim"
	RpcIdEventsLeaderboard = "events_leaderboard"

	RpcIdMiniGamesSubmit = "minigames_submit_score"
	RpcIdMiniGamesRank   = "minigames_rank"
)

// sessionUserID extracts the authenticated user from the RPC context.
func sessionUserID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if !ok || userID == "" {
		return "", ErrNoSessionUser
	}
	return userID, nil
}

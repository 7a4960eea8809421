package farmlogix

import (
	"context"
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"
)

// MiniGamesConfig is the data definition for the MiniGamesSystem type.
type MiniGamesConfig struct {
	Games map[string]*MiniGamesConfigGame `json:"games,omitempty"`
}

type MiniGamesConfigGame struct {
	Name string `json:"name,omitempty"`
	// Ranks maps rank name to the cumulative score threshold that earns it.
	Ranks map[string]int64 `json:"ranks,omitempty"`
}

// The MiniGamesSystem is a thin adapter feeding mini-game results into the
// shared progress engine. Scores accumulate on a per-game counter signal and
// rank-threshold definitions in the catalog unlock off that signal; played
// games feed a set signal for variety-style achievements.
type MiniGamesSystem interface {
	System

	// SubmitScore records a finished round. The score accumulates on the
	// game's score signal and re-evaluation of dependent definitions follows
	// through the progress hook.
	SubmitScore(ctx context.Context, logger runtime.Logger, playerID, gameID string, score int64) error

	// GetRank returns the highest rank the player's cumulative score has
	// earned for the game, or "" when below every threshold.
	GetRank(ctx context.Context, logger runtime.Logger, playerID, gameID string) (string, error)
}

// MiniGameScoreSignal names the cumulative score signal for a mini-game.
// Catalog rank-threshold definitions reference this name in requirements.
func MiniGameScoreSignal(gameID string) string {
	return fmt.Sprintf("minigame_%s_score", gameID)
}

// miniGamesPlayedSignal is the set signal of distinct games the player has
// finished at least once.
const miniGamesPlayedSignal = "minigames_played"

// NakamaMiniGamesSystem implements the MiniGamesSystem interface.
type NakamaMiniGamesSystem struct {
	config   *MiniGamesConfig
	progress ProgressSystem
}

func NewNakamaMiniGamesSystem(config *MiniGamesConfig, progress ProgressSystem) *NakamaMiniGamesSystem {
	return &NakamaMiniGamesSystem{
		config:   config,
		progress: progress,
	}
}

func (s *NakamaMiniGamesSystem) GetType() SystemType {
	return SystemTypeMiniGames
}

func (s *NakamaMiniGamesSystem) GetConfig() any {
	return s.config
}

func (s *NakamaMiniGamesSystem) SubmitScore(ctx context.Context, logger runtime.Logger, playerID, gameID string, score int64) error {
	if _, ok := s.config.Games[gameID]; !ok {
		return ErrBadInput
	}
	if score <= 0 {
		return ErrBadInput
	}

	s.progress.RecordSetMember(ctx, logger, playerID, miniGamesPlayedSignal, gameID)
	s.progress.Increment(ctx, logger, playerID, MiniGameScoreSignal(gameID), score)
	return nil
}

func (s *NakamaMiniGamesSystem) GetRank(ctx context.Context, logger runtime.Logger, playerID, gameID string) (string, error) {
	game, ok := s.config.Games[gameID]
	if !ok {
		return "", ErrBadInput
	}

	total := s.progress.Snapshot(ctx, logger, playerID).Counter(MiniGameScoreSignal(gameID))

	// Highest threshold the total has reached wins.
	best := ""
	var bestThreshold int64 = -1
	for rank, threshold := range game.Ranks {
		if total >= threshold && threshold > bestThreshold {
			best = rank
			bestThreshold = threshold
		}
	}
	return best, nil
}

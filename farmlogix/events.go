package farmlogix

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

// EventStatus is the coarse lifecycle state of an event instance. Transitions
// only move forward; cancelled is a parallel terminal reachable from any
// non-completed state.
type EventStatus string

const (
	EventStatusScheduled EventStatus = "scheduled"
	EventStatusActive    EventStatus = "active"
	EventStatusEnding    EventStatus = "ending"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

// forwardRank orders the forward chain for monotonic transition checks.
func (s EventStatus) forwardRank() int {
	switch s {
	case EventStatusScheduled:
		return 0
	case EventStatusActive:
		return 1
	case EventStatusEnding:
		return 2
	case EventStatusCompleted:
		return 3
	default:
		return -1
	}
}

// EventsConfig is the data definition for the EventsSystem type.
type EventsConfig struct {
	Templates map[string]*EventTemplate `json:"templates,omitempty"`

	// SweepIntervalSec controls the lifecycle sweep cadence. Defaults to 60.
	SweepIntervalSec int64 `json:"sweep_interval_sec,omitempty"`
	// ScheduleSweepIntervalSec controls how often recurring templates are
	// checked for instantiation. Defaults to 3600.
	ScheduleSweepIntervalSec int64 `json:"schedule_sweep_interval_sec,omitempty"`
	// RetentionSec is how long a completed event stays queryable before its
	// ledger is removed. Defaults to 24 hours. Rewards unclaimed at purge time
	// are forfeited.
	RetentionSec int64 `json:"retention_sec,omitempty"`
	// EndingWindowSec is how long before the end time an active event reports
	// the ending status. Defaults to 0 (no ending window).
	EndingWindowSec int64 `json:"ending_window_sec,omitempty"`
}

// EventTemplate describes a repeatable event an instance is stamped from.
type EventTemplate struct {
	Id          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Category    string `json:"category,omitempty"`
	DurationSec int64  `json:"duration_sec,omitempty"`

	// ScheduleCronexpr, when set, instantiates the template on the schedule.
	// Standard 5-field cron.
	ScheduleCronexpr string `json:"schedule_cronexpr,omitempty"`

	// Tasks are the per-player goals, keyed by the contribution metric name.
	Tasks map[string]*EventTask `json:"tasks,omitempty"`

	// ScoreMetric, when set, makes the event competitive: contributions to
	// this metric feed the leaderboard.
	ScoreMetric string `json:"score_metric,omitempty"`

	// CommunityGoal, when set, makes the event cooperative: contributions to
	// the goal metric accumulate across all participants.
	CommunityGoal *CommunityGoalConfig `json:"community_goal,omitempty"`

	// RewardTiers are the claimable checkpoints, keyed by tier name.
	RewardTiers map[string]*EventRewardTier `json:"reward_tiers,omitempty"`
}

// EventTask is a single per-player goal within an event.
type EventTask struct {
	Name   string `json:"name,omitempty"`
	Target int64  `json:"target,omitempty"`
}

// CommunityGoalConfig describes a shared target accumulated from all
// participants' contributions. Reward, when set, is granted to every
// participant at the moment the goal is reached; players joining afterwards
// get nothing.
type CommunityGoalConfig struct {
	Metric string         `json:"metric,omitempty"`
	Target int64          `json:"target,omitempty"`
	Reward *RewardPayload `json:"reward,omitempty"`
}

// EventRewardTier is a named reward checkpoint within an event.
type EventRewardTier struct {
	Reward *RewardPayload `json:"reward,omitempty"`
	// RequiredTasks is the number of completed tasks needed to claim the tier.
	// Zero means participation alone qualifies.
	RequiredTasks int `json:"required_tasks,omitempty"`
	// RequiresCommunityGoal gates the tier on the shared goal being reached.
	RequiresCommunityGoal bool `json:"requires_community_goal,omitempty"`
}

// EventParticipant tracks one player's membership in an event instance.
type EventParticipant struct {
	JoinTimeSec int64            `json:"join_time_sec,omitempty"`
	Progress    map[string]int64 `json:"progress,omitempty"`
}

// CommunityGoalState is the live shared-goal accumulator. Reached latches the
// single notification; contributions past the target keep accumulating
// without re-firing it.
type CommunityGoalState struct {
	Metric         string `json:"metric,omitempty"`
	Target         int64  `json:"target,omitempty"`
	Progress       int64  `json:"progress,omitempty"`
	Reached        bool   `json:"reached,omitempty"`
	ReachedTimeSec int64  `json:"reached_time_sec,omitempty"`
}

// LeaderboardEntry is one ranked row of an event leaderboard. Rank is derived
// on every update: score descending, ties broken by earliest join time, then
// player ID for determinism.
type LeaderboardEntry struct {
	PlayerId    string `json:"player_id,omitempty"`
	Score       int64  `json:"score,omitempty"`
	Rank        int    `json:"rank,omitempty"`
	JoinTimeSec int64  `json:"join_time_sec,omitempty"`
}

// EventInstance is the process-wide shared state of one running event.
type EventInstance struct {
	Id               string                       `json:"id,omitempty"`
	TemplateId       string                       `json:"template_id,omitempty"`
	StartTimeSec     int64                        `json:"start_time_sec,omitempty"`
	EndTimeSec       int64                        `json:"end_time_sec,omitempty"`
	Status           EventStatus                  `json:"status,omitempty"`
	Participants     map[string]*EventParticipant `json:"participants,omitempty"`
	CommunityGoal    *CommunityGoalState          `json:"community_goal,omitempty"`
	Leaderboard      []*LeaderboardEntry          `json:"leaderboard,omitempty"`
	CompletedTimeSec int64                        `json:"completed_time_sec,omitempty"`
}

// The EventsSystem owns event instances end to end: the lifecycle state
// machine, participant aggregation, the community goal, the leaderboard, and
// tier reward claims.
type EventsSystem interface {
	System

	// CreateEvent stamps a new instance from a template, starting at startTime.
	CreateEvent(ctx context.Context, logger runtime.Logger, templateID string, startTimeSec int64) (*EventInstance, error)

	// ListEvents returns all instances that have not been purged.
	ListEvents(ctx context.Context, logger runtime.Logger) []*EventInstance

	// GetEvent returns the instance, or ErrEventNotFound after purge.
	GetEvent(ctx context.Context, logger runtime.Logger, eventID string) (*EventInstance, error)

	// Join adds the player as a participant of an active event.
	Join(ctx context.Context, logger runtime.Logger, playerID, eventID string) *ClaimResult

	// RecordContribution applies a participant's metric contribution: task
	// progress, the community goal when the metric matches, and the
	// leaderboard when the metric is the event's score metric.
	RecordContribution(ctx context.Context, logger runtime.Logger, playerID, eventID, metric string, amount int64) *ClaimResult

	// ClaimReward claims a tier for the player. Eligibility failures are
	// reported in the result, not as errors.
	ClaimReward(ctx context.Context, logger runtime.Logger, playerID, eventID, tier string) *ClaimResult

	// GetLeaderboard returns the ranked leaderboard, best first.
	GetLeaderboard(ctx context.Context, logger runtime.Logger, eventID string) ([]*LeaderboardEntry, error)

	// GetRank returns the player's 1-based rank, or RankNotFound when the
	// player has no leaderboard entry.
	GetRank(ctx context.Context, logger runtime.Logger, eventID, playerID string) int

	// CancelEvent moves a non-completed event to the cancelled terminal state.
	CancelEvent(ctx context.Context, logger runtime.Logger, eventID string) error
}

package farmlogix

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/robfig/cron/v3"
)

const (
	eventsStorageCollection           = "events"
	eventsIndexStorageKey             = "index"
	eventLeaderboardStorageCollection = "event_leaderboards"

	defaultEventSweepIntervalSec    = 60
	defaultScheduleSweepIntervalSec = 3600
	defaultEventRetentionSec        = 24 * 60 * 60

	maxLeaderboardSize = 100

	// eventUnlockPrefix namespaces event tier claims in the unlock ledger so
	// instance IDs cannot collide with catalog definition IDs.
	eventUnlockPrefix = "event_"
)

// RankNotFound is returned by GetRank for players without a leaderboard entry.
const RankNotFound = math.MaxInt32

// NakamaEventsSystem implements the EventsSystem interface.
type NakamaEventsSystem struct {
	sync.Mutex

	config      *EventsConfig
	persistence PersistenceCollaborator
	dispatcher  *RewardDispatcher
	notifier    NotificationCollaborator
	unlocks     UnlocksSystem
	clock       ClockCollaborator

	cronParser cron.Parser
	instances  map[string]*EventInstance

	// pendingCompleted queues the completion side effects recorded under the
	// lock; flushCompleted performs them after release.
	pendingCompleted []*completedEvent

	lastScheduleSweepSec int64

	stopSweep chan struct{}
	stopOnce  sync.Once
}

func NewNakamaEventsSystem(config *EventsConfig, persistence PersistenceCollaborator, dispatcher *RewardDispatcher, notifier NotificationCollaborator, unlocks UnlocksSystem, clock ClockCollaborator) *NakamaEventsSystem {
	return &NakamaEventsSystem{
		config:      config,
		persistence: persistence,
		dispatcher:  dispatcher,
		notifier:    notifier,
		unlocks:     unlocks,
		clock:       clock,
		cronParser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		instances:   make(map[string]*EventInstance),
		stopSweep:   make(chan struct{}),
	}
}

func (s *NakamaEventsSystem) GetType() SystemType {
	return SystemTypeEvents
}

func (s *NakamaEventsSystem) GetConfig() any {
	return s.config
}

// LoadState restores persisted event instances. Called once at init.
func (s *NakamaEventsSystem) LoadState(ctx context.Context, logger runtime.Logger) {
	value, found, err := s.persistence.Get(ctx, eventsStorageCollection, eventsIndexStorageKey, "")
	if err != nil {
		logger.Error("Failed to load event index: %v", err)
		return
	}
	if !found {
		return
	}

	var ids []string
	if err := json.Unmarshal([]byte(value), &ids); err != nil {
		logger.Error("Failed to parse event index: %v", err)
		return
	}

	s.Lock()
	defer s.Unlock()
	for _, id := range ids {
		value, found, err := s.persistence.Get(ctx, eventsStorageCollection, id, "")
		if err != nil || !found {
			logger.Warn("Skipping unrecoverable event instance %s: %v", id, err)
			continue
		}
		instance := &EventInstance{}
		if err := json.Unmarshal([]byte(value), instance); err != nil {
			logger.Error("Failed to parse event instance %s: %v", id, err)
			continue
		}
		s.instances[id] = instance
	}
}

// StartSweeps launches the lifecycle and schedule sweeps. Neither blocks
// gameplay calls; persistence inside them is best-effort.
func (s *NakamaEventsSystem) StartSweeps(ctx context.Context, logger runtime.Logger) {
	sweepInterval := s.config.SweepIntervalSec
	if sweepInterval <= 0 {
		sweepInterval = defaultEventSweepIntervalSec
	}
	scheduleInterval := s.config.ScheduleSweepIntervalSec
	if scheduleInterval <= 0 {
		scheduleInterval = defaultScheduleSweepIntervalSec
	}

	s.lastScheduleSweepSec = s.clock.Now().Unix()

	lifecycle := time.NewTicker(time.Duration(sweepInterval) * time.Second)
	schedule := time.NewTicker(time.Duration(scheduleInterval) * time.Second)
	go func() {
		defer lifecycle.Stop()
		defer schedule.Stop()
		for {
			select {
			case <-lifecycle.C:
				s.LifecycleSweep(ctx, logger)
			case <-schedule.C:
				s.ScheduleSweep(ctx, logger)
			case <-s.stopSweep:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StopSweeps terminates the background sweeps.
func (s *NakamaEventsSystem) StopSweeps() {
	s.stopOnce.Do(func() { close(s.stopSweep) })
}

func (s *NakamaEventsSystem) CreateEvent(ctx context.Context, logger runtime.Logger, templateID string, startTimeSec int64) (*EventInstance, error) {
	template, ok := s.config.Templates[templateID]
	if !ok {
		return nil, ErrBadInput
	}
	defer s.flushCompleted(ctx, logger)

	now := s.clock.Now().Unix()
	if startTimeSec <= 0 {
		startTimeSec = now
	}

	instance := &EventInstance{
		Id:           uuid.NewString(),
		TemplateId:   templateID,
		StartTimeSec: startTimeSec,
		EndTimeSec:   startTimeSec + template.DurationSec,
		Status:       EventStatusScheduled,
		Participants: make(map[string]*EventParticipant),
	}
	if template.CommunityGoal != nil {
		instance.CommunityGoal = &CommunityGoalState{
			Metric: template.CommunityGoal.Metric,
			Target: template.CommunityGoal.Target,
		}
	}

	s.Lock()
	s.advanceLocked(ctx, logger, instance, now)
	s.instances[instance.Id] = instance
	s.Unlock()

	s.saveInstance(ctx, logger, instance)
	s.saveIndex(ctx, logger)
	return instance, nil
}

func (s *NakamaEventsSystem) ListEvents(ctx context.Context, logger runtime.Logger) []*EventInstance {
	now := s.clock.Now().Unix()
	defer s.flushCompleted(ctx, logger)

	s.Lock()
	defer s.Unlock()

	instances := make([]*EventInstance, 0, len(s.instances))
	for _, instance := range s.instances {
		s.advanceLocked(ctx, logger, instance, now)
		instances = append(instances, instance)
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i].StartTimeSec < instances[j].StartTimeSec })
	return instances
}

func (s *NakamaEventsSystem) GetEvent(ctx context.Context, logger runtime.Logger, eventID string) (*EventInstance, error) {
	now := s.clock.Now().Unix()
	defer s.flushCompleted(ctx, logger)

	s.Lock()
	defer s.Unlock()

	instance, ok := s.instances[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	s.advanceLocked(ctx, logger, instance, now)
	return instance, nil
}

func (s *NakamaEventsSystem) Join(ctx context.Context, logger runtime.Logger, playerID, eventID string) *ClaimResult {
	now := s.clock.Now().Unix()
	defer s.flushCompleted(ctx, logger)

	s.Lock()
	instance, ok := s.instances[eventID]
	if !ok {
		s.Unlock()
		return &ClaimResult{Message: "Event not found"}
	}
	s.advanceLocked(ctx, logger, instance, now)

	if instance.Status != EventStatusActive && instance.Status != EventStatusEnding {
		s.Unlock()
		return &ClaimResult{Message: "Event is not active"}
	}
	if _, joined := instance.Participants[playerID]; joined {
		s.Unlock()
		return &ClaimResult{Message: "Already participating"}
	}

	instance.Participants[playerID] = &EventParticipant{
		JoinTimeSec: now,
		Progress:    make(map[string]int64),
	}
	s.Unlock()

	s.saveInstance(ctx, logger, instance)
	return &ClaimResult{Success: true}
}

func (s *NakamaEventsSystem) RecordContribution(ctx context.Context, logger runtime.Logger, playerID, eventID, metric string, amount int64) *ClaimResult {
	if amount <= 0 {
		logger.Warn("Ignoring non-positive event contribution %d for metric %s, player %s", amount, metric, playerID)
		return &ClaimResult{Message: "Contribution amount must be positive"}
	}

	now := s.clock.Now().Unix()
	defer s.flushCompleted(ctx, logger)

	s.Lock()
	instance, ok := s.instances[eventID]
	if !ok {
		s.Unlock()
		return &ClaimResult{Message: "Event not found"}
	}
	template, ok := s.config.Templates[instance.TemplateId]
	if !ok {
		s.Unlock()
		logger.Error("Event %s references unknown template %s", eventID, instance.TemplateId)
		return &ClaimResult{Message: "Event not found"}
	}
	s.advanceLocked(ctx, logger, instance, now)

	if instance.Status != EventStatusActive && instance.Status != EventStatusEnding {
		s.Unlock()
		return &ClaimResult{Message: "Event is not active"}
	}
	participant, joined := instance.Participants[playerID]
	if !joined {
		s.Unlock()
		return &ClaimResult{Message: "Not participating in this event"}
	}

	participant.Progress[metric] += amount

	goalJustReached := false
	var goalParticipants []string
	if goal := instance.CommunityGoal; goal != nil && goal.Metric == metric {
		goal.Progress += amount
		// Latch: contributions past the target keep accumulating without
		// re-firing the notification or the reward.
		if !goal.Reached && goal.Progress >= goal.Target {
			goal.Reached = true
			goal.ReachedTimeSec = now
			goalJustReached = true
			goalParticipants = s.participantIDsLocked(instance)
		}
	}

	if template.ScoreMetric == metric {
		s.updateLeaderboardLocked(instance, playerID, participant.Progress[metric], participant.JoinTimeSec)
	}

	if s.allTasksCompleteLocked(template, instance) {
		s.completeLocked(ctx, logger, instance, now)
	}
	s.Unlock()

	if goalJustReached {
		if err := s.notifier.Broadcast(ctx, template.Name, "Community goal reached!", NotificationCodeCommunityGoal); err != nil {
			logger.Error("Failed to broadcast community goal notification for event %s: %v", eventID, err)
		}
		if goal := template.CommunityGoal; goal != nil && !goal.Reward.Empty() {
			for _, memberID := range goalParticipants {
				s.dispatcher.Grant(ctx, logger, memberID, goal.Reward)
			}
		}
	}

	s.saveInstance(ctx, logger, instance)
	return &ClaimResult{Success: true}
}

func (s *NakamaEventsSystem) ClaimReward(ctx context.Context, logger runtime.Logger, playerID, eventID, tier string) *ClaimResult {
	now := s.clock.Now().Unix()
	defer s.flushCompleted(ctx, logger)

	s.Lock()
	instance, ok := s.instances[eventID]
	if !ok {
		s.Unlock()
		return &ClaimResult{Message: "Event not found"}
	}
	template, ok := s.config.Templates[instance.TemplateId]
	if !ok {
		s.Unlock()
		return &ClaimResult{Message: "Event not found"}
	}
	s.advanceLocked(ctx, logger, instance, now)

	if instance.Status == EventStatusScheduled || instance.Status == EventStatusCancelled {
		s.Unlock()
		return &ClaimResult{Message: "Event rewards are not claimable"}
	}
	participant, joined := instance.Participants[playerID]
	if !joined {
		s.Unlock()
		return &ClaimResult{Message: "Not participating in this event"}
	}
	tierConfig, ok := template.RewardTiers[tier]
	if !ok {
		s.Unlock()
		return &ClaimResult{Message: "Unknown reward tier"}
	}

	completed := s.completedTaskCountLocked(template, participant)
	if completed < tierConfig.RequiredTasks {
		s.Unlock()
		return &ClaimResult{Message: fmt.Sprintf("Requires %d completed tasks, have %d", tierConfig.RequiredTasks, completed)}
	}
	if tierConfig.RequiresCommunityGoal && (instance.CommunityGoal == nil || !instance.CommunityGoal.Reached) {
		s.Unlock()
		return &ClaimResult{Message: "Community goal not reached"}
	}
	s.Unlock()

	if !s.unlocks.TryUnlock(ctx, logger, playerID, eventUnlockPrefix+eventID, tier) {
		return &ClaimResult{Message: "Reward already claimed"}
	}

	if !tierConfig.Reward.Empty() {
		s.dispatcher.Grant(ctx, logger, playerID, tierConfig.Reward)
	}
	if err := s.notifier.Notify(ctx, playerID, template.Name, fmt.Sprintf("Reward claimed: %s", tier), NotificationCodeReward); err != nil {
		logger.Error("Failed to send claim notification for event %s to player %s: %v", eventID, playerID, err)
	}
	return &ClaimResult{Success: true, Reward: tierConfig.Reward}
}

func (s *NakamaEventsSystem) GetLeaderboard(ctx context.Context, logger runtime.Logger, eventID string) ([]*LeaderboardEntry, error) {
	s.Lock()
	defer s.Unlock()

	instance, ok := s.instances[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	entries := make([]*LeaderboardEntry, len(instance.Leaderboard))
	copy(entries, instance.Leaderboard)
	return entries, nil
}

func (s *NakamaEventsSystem) GetRank(ctx context.Context, logger runtime.Logger, eventID, playerID string) int {
	s.Lock()
	defer s.Unlock()

	instance, ok := s.instances[eventID]
	if !ok {
		return RankNotFound
	}
	for _, entry := range instance.Leaderboard {
		if entry.PlayerId == playerID {
			return entry.Rank
		}
	}
	return RankNotFound
}

func (s *NakamaEventsSystem) CancelEvent(ctx context.Context, logger runtime.Logger, eventID string) error {
	now := s.clock.Now().Unix()

	s.Lock()
	instance, ok := s.instances[eventID]
	if !ok {
		s.Unlock()
		return ErrEventNotFound
	}
	if instance.Status == EventStatusCompleted || instance.Status == EventStatusCancelled {
		s.Unlock()
		return ErrBadInput
	}
	instance.Status = EventStatusCancelled
	instance.CompletedTimeSec = now
	participants := s.participantIDsLocked(instance)
	template := s.config.Templates[instance.TemplateId]
	s.Unlock()

	name := eventID
	if template != nil {
		name = template.Name
	}
	for _, playerID := range participants {
		if err := s.notifier.Notify(ctx, playerID, name, "Event cancelled", NotificationCodeEventLifecycle); err != nil {
			logger.Error("Failed to send cancellation notification for event %s to player %s: %v", eventID, playerID, err)
		}
	}
	s.saveInstance(ctx, logger, instance)
	return nil
}

// LifecycleSweep advances every instance by wall clock and purges completed
// and cancelled instances past the retention window.
func (s *NakamaEventsSystem) LifecycleSweep(ctx context.Context, logger runtime.Logger) {
	now := s.clock.Now().Unix()
	defer s.flushCompleted(ctx, logger)

	retention := s.config.RetentionSec
	if retention <= 0 {
		retention = defaultEventRetentionSec
	}

	s.Lock()
	var purged []string
	var changed []*EventInstance
	for id, instance := range s.instances {
		before := instance.Status
		s.advanceLocked(ctx, logger, instance, now)
		if instance.Status != before {
			changed = append(changed, instance)
		}
		if (instance.Status == EventStatusCompleted || instance.Status == EventStatusCancelled) &&
			instance.CompletedTimeSec > 0 && now >= instance.CompletedTimeSec+retention {
			delete(s.instances, id)
			purged = append(purged, id)
		}
	}
	s.Unlock()

	for _, instance := range changed {
		s.saveInstance(ctx, logger, instance)
	}
	for _, id := range purged {
		if err := s.persistence.Delete(ctx, eventsStorageCollection, id, ""); err != nil {
			logger.Error("Failed to delete purged event %s: %v", id, err)
		}
	}
	if len(purged) > 0 || len(changed) > 0 {
		s.saveIndex(ctx, logger)
	}
}

// ScheduleSweep instantiates recurring templates whose cron expression fired
// since the previous sweep, unless a live instance of the template exists.
func (s *NakamaEventsSystem) ScheduleSweep(ctx context.Context, logger runtime.Logger) {
	now := s.clock.Now()

	s.Lock()
	last := s.lastScheduleSweepSec
	s.lastScheduleSweepSec = now.Unix()

	var due []string
	for templateID, template := range s.config.Templates {
		if template.ScheduleCronexpr == "" {
			continue
		}
		sched, err := s.cronParser.Parse(template.ScheduleCronexpr)
		if err != nil {
			logger.Error("Invalid schedule cron expression for event template %s: %v", templateID, err)
			continue
		}
		next := sched.Next(time.Unix(last, 0))
		if next.After(now) {
			continue
		}
		if s.hasLiveInstanceLocked(templateID) {
			continue
		}
		due = append(due, templateID)
	}
	s.Unlock()

	for _, templateID := range due {
		if _, err := s.CreateEvent(ctx, logger, templateID, now.Unix()); err != nil {
			logger.Error("Failed to instantiate scheduled event template %s: %v", templateID, err)
		}
	}
}

func (s *NakamaEventsSystem) hasLiveInstanceLocked(templateID string) bool {
	for _, instance := range s.instances {
		if instance.TemplateId != templateID {
			continue
		}
		switch instance.Status {
		case EventStatusScheduled, EventStatusActive, EventStatusEnding:
			return true
		}
	}
	return false
}

// advanceLocked applies time-based forward transitions. Callers must hold the
// system lock.
func (s *NakamaEventsSystem) advanceLocked(ctx context.Context, logger runtime.Logger, instance *EventInstance, now int64) {
	if instance.Status == EventStatusCancelled || instance.Status == EventStatusCompleted {
		return
	}

	target := instance.Status
	if now >= instance.StartTimeSec {
		target = EventStatusActive
	}
	if s.config.EndingWindowSec > 0 && now >= instance.EndTimeSec-s.config.EndingWindowSec {
		target = EventStatusEnding
	}
	if now >= instance.EndTimeSec {
		s.completeLocked(ctx, logger, instance, now)
		return
	}
	if target.forwardRank() > instance.Status.forwardRank() {
		instance.Status = target
	}
}

// completedEvent carries one completion's side effects out of the lock.
type completedEvent struct {
	id           string
	name         string
	leaderboard  string
	participants []string
}

// completeLocked finishes the event under the lock: terminal status, completion
// time, and a queued completion record. The leaderboard snapshot write and the
// participant notifications run in flushCompleted after the lock is released so
// collaborator I/O never blocks gameplay calls. Idempotent.
func (s *NakamaEventsSystem) completeLocked(ctx context.Context, logger runtime.Logger, instance *EventInstance, now int64) {
	if instance.Status == EventStatusCompleted || instance.Status == EventStatusCancelled {
		return
	}
	instance.Status = EventStatusCompleted
	instance.CompletedTimeSec = now

	done := &completedEvent{
		id:           instance.Id,
		name:         instance.TemplateId,
		participants: s.participantIDsLocked(instance),
	}
	if template, ok := s.config.Templates[instance.TemplateId]; ok && template.Name != "" {
		done.name = template.Name
	}
	// The leaderboard snapshot outlives the instance's retention window.
	if data, err := json.Marshal(instance.Leaderboard); err != nil {
		logger.Error("Failed to serialize leaderboard snapshot for event %s: %v", instance.Id, err)
	} else {
		done.leaderboard = string(data)
	}
	s.pendingCompleted = append(s.pendingCompleted, done)
}

// flushCompleted performs the completion side effects queued by completeLocked.
// Safe to call with nothing pending.
func (s *NakamaEventsSystem) flushCompleted(ctx context.Context, logger runtime.Logger) {
	s.Lock()
	pending := s.pendingCompleted
	s.pendingCompleted = nil
	s.Unlock()

	for _, done := range pending {
		if done.leaderboard != "" {
			if err := s.persistence.Set(ctx, eventLeaderboardStorageCollection, done.id, "", done.leaderboard); err != nil {
				logger.Error("Failed to persist leaderboard snapshot for event %s: %v", done.id, err)
			}
		}
		for _, playerID := range done.participants {
			if err := s.notifier.Notify(ctx, playerID, done.name, "Event completed", NotificationCodeEventLifecycle); err != nil {
				logger.Error("Failed to send completion notification for event %s to player %s: %v", done.id, playerID, err)
			}
		}
	}
}

// allTasksCompleteLocked implements the early-completion rule: every
// participant has reached every task target. Events without tasks or without
// participants never early-complete.
func (s *NakamaEventsSystem) allTasksCompleteLocked(template *EventTemplate, instance *EventInstance) bool {
	if len(template.Tasks) == 0 || len(instance.Participants) == 0 {
		return false
	}
	for _, participant := range instance.Participants {
		if s.completedTaskCountLocked(template, participant) < len(template.Tasks) {
			return false
		}
	}
	return true
}

func (s *NakamaEventsSystem) completedTaskCountLocked(template *EventTemplate, participant *EventParticipant) int {
	completed := 0
	for metric, task := range template.Tasks {
		if participant.Progress[metric] >= task.Target {
			completed++
		}
	}
	return completed
}

// updateLeaderboardLocked replaces or inserts the player's score, re-sorts and
// re-ranks. Full re-sort per update is fine at tens-to-hundreds of
// participants; an incrementally maintained ordered index would be needed at
// larger cohort sizes.
func (s *NakamaEventsSystem) updateLeaderboardLocked(instance *EventInstance, playerID string, score, joinTimeSec int64) {
	found := false
	for _, entry := range instance.Leaderboard {
		if entry.PlayerId == playerID {
			entry.Score = score
			found = true
			break
		}
	}
	if !found {
		instance.Leaderboard = append(instance.Leaderboard, &LeaderboardEntry{
			PlayerId:    playerID,
			Score:       score,
			JoinTimeSec: joinTimeSec,
		})
	}

	// Score descending; ties break by earliest join, then player ID, so rank
	// order is deterministic.
	sort.Slice(instance.Leaderboard, func(i, j int) bool {
		a, b := instance.Leaderboard[i], instance.Leaderboard[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.JoinTimeSec != b.JoinTimeSec {
			return a.JoinTimeSec < b.JoinTimeSec
		}
		return a.PlayerId < b.PlayerId
	})
	if len(instance.Leaderboard) > maxLeaderboardSize {
		instance.Leaderboard = instance.Leaderboard[:maxLeaderboardSize]
	}
	for i, entry := range instance.Leaderboard {
		entry.Rank = i + 1
	}
}

func (s *NakamaEventsSystem) participantIDsLocked(instance *EventInstance) []string {
	ids := make([]string, 0, len(instance.Participants))
	for playerID := range instance.Participants {
		ids = append(ids, playerID)
	}
	sort.Strings(ids)
	return ids
}

func (s *NakamaEventsSystem) saveInstance(ctx context.Context, logger runtime.Logger, instance *EventInstance) {
	s.Lock()
	data, err := json.Marshal(instance)
	s.Unlock()
	if err != nil {
		logger.Error("Failed to serialize event instance %s: %v", instance.Id, err)
		return
	}
	if err := s.persistence.Set(ctx, eventsStorageCollection, instance.Id, "", string(data)); err != nil {
		logger.Error("Failed to persist event instance %s: %v", instance.Id, err)
	}
}

func (s *NakamaEventsSystem) saveIndex(ctx context.Context, logger runtime.Logger) {
	s.Lock()
	ids := make([]string, 0, len(s.instances))
	for id := range s.instances {
		ids = append(ids, id)
	}
	s.Unlock()
	sort.Strings(ids)

	data, err := json.Marshal(ids)
	if err != nil {
		logger.Error("Failed to serialize event index: %v", err)
		return
	}
	if err := s.persistence.Set(ctx, eventsStorageCollection, eventsIndexStorageKey, "", string(data)); err != nil {
		logger.Error("Failed to persist event index: %v", err)
	}
}

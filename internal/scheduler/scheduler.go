// Package scheduler admits, serializes, and executes analysis runs. Each
// group holds an exclusive run slot with a post-run cooldown; admitted runs
// share a bounded worker pool so a burst of groups cannot saturate the
// process.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/group-digest-bot/internal/analysis"
	"github.com/group-digest-bot/internal/database"
)

var (
	// ErrAlreadyRunning indicates an analysis run for the group is already
	// admitted or executing.
	ErrAlreadyRunning = errors.New("analysis already running for group")

	// ErrGroupNotEnabled indicates the group is not allowed to run analyses.
	ErrGroupNotEnabled = errors.New("group not enabled for analysis")

	// ErrCoolingDown indicates the group finished a run too recently.
	ErrCoolingDown = errors.New("group is cooling down")
)

// Trigger identifies what initiated a run.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerAutomatic Trigger = "automatic"
)

// GroupStatus is the externally visible state of a group's run slot.
type GroupStatus string

const (
	StatusIdle        GroupStatus = "idle"
	StatusRunning     GroupStatus = "running"
	StatusCoolingDown GroupStatus = "cooling_down"
)

// RunFunc executes one analysis run for a group. days > 0 overrides the
// group's configured window. The scheduler owns admission and concurrency;
// the pipeline owns everything else.
type RunFunc func(ctx context.Context, group *database.GroupConfig, trigger Trigger, days int) (*analysis.Result, error)

// GroupSource is the subset of the store the scheduler needs.
type GroupSource interface {
	GetGroupConfig(ctx context.Context, chatID int64) (*database.GroupConfig, error)
	ListEnabledGroups(ctx context.Context) ([]int64, error)
}

// Config holds the scheduler tunables.
type Config struct {
	// Workers bounds how many admitted runs execute concurrently.
	Workers int64
	// Cooldown is the minimum gap between two runs for the same group.
	Cooldown time.Duration
	// ManualOverridesCooldown lets manual triggers bypass the cooldown.
	ManualOverridesCooldown bool
	// AllowedGroups restricts analysis to these chat IDs; empty allows all.
	AllowedGroups []int64
}

// groupState tracks one group's run slot. Guarded by GroupScheduler.mu.
type groupState struct {
	running       bool
	cancel        context.CancelFunc
	cooldownUntil time.Time
	lastTrigger   Trigger
}

// GroupScheduler serializes runs per group and bounds them globally.
type GroupScheduler struct {
	cfg     Config
	groups  GroupSource
	run     RunFunc
	logger  *slog.Logger
	pool    *semaphore.Weighted
	allowed map[int64]struct{}
	nowFunc func() time.Time

	mu     sync.Mutex
	states map[int64]*groupState
}

// NewGroupScheduler creates a scheduler over the given group source and run
// function.
func NewGroupScheduler(cfg Config, groups GroupSource, run RunFunc, logger *slog.Logger) *GroupScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 2
	}

	var allowed map[int64]struct{}
	if len(cfg.AllowedGroups) > 0 {
		allowed = make(map[int64]struct{}, len(cfg.AllowedGroups))
		for _, id := range cfg.AllowedGroups {
			allowed[id] = struct{}{}
		}
	}

	return &GroupScheduler{
		cfg:     cfg,
		groups:  groups,
		run:     run,
		logger:  logger.With("component", "group_scheduler"),
		pool:    semaphore.NewWeighted(cfg.Workers),
		allowed: allowed,
		nowFunc: time.Now,
		states:  make(map[int64]*groupState),
	}
}

// Trigger admits and executes one run for the group, blocking until it
// completes. days > 0 overrides the group's analysis window. Admission is
// atomic: concurrent triggers for the same group see exactly one admission,
// the rest get ErrAlreadyRunning. Queueing for a free worker happens after
// admission, so a queued run still holds its group's slot.
func (s *GroupScheduler) Trigger(ctx context.Context, chatID int64, trigger Trigger, days int) (*analysis.Result, error) {
	group, err := s.admitGroup(ctx, chatID)
	if err != nil {
		return nil, err
	}

	runCtx, cancel, err := s.acquireSlot(ctx, chatID, trigger)
	if err != nil {
		return nil, err
	}
	defer s.releaseSlot(chatID)
	defer cancel()

	if err := s.pool.Acquire(runCtx, 1); err != nil {
		return nil, fmt.Errorf("waiting for worker: %w", err)
	}
	defer s.pool.Release(1)

	s.logger.InfoContext(ctx, "Starting analysis run", "chat_id", chatID, "trigger", trigger, "days", days)
	result, err := s.run(runCtx, group, trigger, days)
	if err != nil {
		s.logger.WarnContext(ctx, "Analysis run failed", "chat_id", chatID, "trigger", trigger, "error", err)
		return nil, err
	}
	return result, nil
}

// Cancel aborts the group's in-flight run, if any. Used when a group is
// disabled mid-run.
func (s *GroupScheduler) Cancel(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[chatID]
	if !ok || !state.running || state.cancel == nil {
		return false
	}
	state.cancel()
	return true
}

// Status reports the group's current slot state.
func (s *GroupScheduler) Status(chatID int64) GroupStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[chatID]
	switch {
	case !ok:
		return StatusIdle
	case state.running:
		return StatusRunning
	case s.nowFunc().Before(state.cooldownUntil):
		return StatusCoolingDown
	default:
		return StatusIdle
	}
}

// CooldownRemaining reports how long the group must wait before its next
// automatic run. Zero when not cooling down.
func (s *GroupScheduler) CooldownRemaining(chatID int64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[chatID]
	if !ok {
		return 0
	}
	if remaining := state.cooldownUntil.Sub(s.nowFunc()); remaining > 0 {
		return remaining
	}
	return 0
}

// admitGroup checks the allow-list and the stored group configuration.
func (s *GroupScheduler) admitGroup(ctx context.Context, chatID int64) (*database.GroupConfig, error) {
	if s.allowed != nil {
		if _, ok := s.allowed[chatID]; !ok {
			return nil, fmt.Errorf("%w: chat %d not in allow-list", ErrGroupNotEnabled, chatID)
		}
	}

	group, err := s.groups.GetGroupConfig(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("loading group config: %w", err)
	}
	if group == nil || !group.Enabled {
		return nil, fmt.Errorf("%w: chat %d", ErrGroupNotEnabled, chatID)
	}
	return group, nil
}

// acquireSlot atomically takes the group's exclusive run slot, enforcing the
// cooldown. The returned context is canceled by Cancel.
func (s *GroupScheduler) acquireSlot(ctx context.Context, chatID int64, trigger Trigger) (context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[chatID]
	if !ok {
		state = &groupState{}
		s.states[chatID] = state
	}

	if state.running {
		return nil, nil, fmt.Errorf("%w: chat %d", ErrAlreadyRunning, chatID)
	}

	now := s.nowFunc()
	if now.Before(state.cooldownUntil) {
		override := trigger == TriggerManual && s.cfg.ManualOverridesCooldown
		if !override {
			return nil, nil, fmt.Errorf("%w: chat %d for %s",
				ErrCoolingDown, chatID, state.cooldownUntil.Sub(now).Round(time.Second))
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	state.running = true
	state.cancel = cancel
	state.lastTrigger = trigger
	return runCtx, cancel, nil
}

// releaseSlot frees the group's slot and arms the cooldown.
func (s *GroupScheduler) releaseSlot(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[chatID]
	if !ok {
		return
	}
	state.running = false
	state.cancel = nil
	state.cooldownUntil = s.nowFunc().Add(s.cfg.Cooldown)
}

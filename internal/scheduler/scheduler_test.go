package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/group-digest-bot/internal/analysis"
	"github.com/group-digest-bot/internal/database"
	"github.com/group-digest-bot/internal/scheduler"
)

// fakeGroups serves group configs from a map.
type fakeGroups struct {
	mu      sync.Mutex
	configs map[int64]*database.GroupConfig
}

func newFakeGroups(enabled ...int64) *fakeGroups {
	f := &fakeGroups{configs: make(map[int64]*database.GroupConfig)}
	for _, id := range enabled {
		f.configs[id] = &database.GroupConfig{ChatID: id, Enabled: true}
	}
	return f
}

func (f *fakeGroups) GetGroupConfig(_ context.Context, chatID int64) (*database.GroupConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configs[chatID], nil
}

func (f *fakeGroups) ListEnabledGroups(_ context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id, cfg := range f.configs {
		if cfg.Enabled {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func blockingRun(release <-chan struct{}, started chan<- int64) scheduler.RunFunc {
	return func(ctx context.Context, group *database.GroupConfig, _ scheduler.Trigger, _ int) (*analysis.Result, error) {
		if started != nil {
			started <- group.ChatID
		}
		select {
		case <-release:
			return &analysis.Result{GroupID: group.ChatID}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func TestTriggerRejectsConcurrentRunForSameGroup(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan int64, 1)
	s := scheduler.NewGroupScheduler(scheduler.Config{Workers: 4},
		newFakeGroups(-100), blockingRun(release, started), nil)

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.Trigger(context.Background(), -100, scheduler.TriggerManual, 0)
		firstDone <- err
	}()

	<-started // first run is inside RunFunc and holds the slot

	if _, err := s.Trigger(context.Background(), -100, scheduler.TriggerManual, 0); !errors.Is(err, scheduler.ErrAlreadyRunning) {
		t.Errorf("second Trigger() error = %v, want ErrAlreadyRunning", err)
	}
	if got := s.Status(-100); got != scheduler.StatusRunning {
		t.Errorf("Status() = %q, want %q", got, scheduler.StatusRunning)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Errorf("first Trigger() error = %v", err)
	}
}

func TestTriggerConcurrentDuplicatesAdmitExactlyOne(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	s := scheduler.NewGroupScheduler(scheduler.Config{Workers: 8},
		newFakeGroups(-100), blockingRun(release, nil), nil)

	const attempts = 16
	var admitted, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Trigger(context.Background(), -100, scheduler.TriggerManual, 0)
			switch {
			case err == nil:
				admitted.Add(1)
			case errors.Is(err, scheduler.ErrAlreadyRunning), errors.Is(err, scheduler.ErrCoolingDown):
				rejected.Add(1)
			default:
				t.Errorf("Trigger() unexpected error = %v", err)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := admitted.Load(); got < 1 {
		t.Errorf("admitted = %d, want at least 1", got)
	}
	if admitted.Load()+rejected.Load() != attempts {
		t.Errorf("admitted %d + rejected %d != %d attempts", admitted.Load(), rejected.Load(), attempts)
	}
}

func TestTriggerRejectsDisabledGroups(t *testing.T) {
	t.Parallel()

	groups := newFakeGroups()
	groups.configs[-200] = &database.GroupConfig{ChatID: -200, Enabled: false}

	s := scheduler.NewGroupScheduler(scheduler.Config{Workers: 1}, groups,
		func(context.Context, *database.GroupConfig, scheduler.Trigger, int) (*analysis.Result, error) {
			t.Error("RunFunc called for a non-admitted group")
			return nil, nil
		}, nil)

	tests := []struct {
		name   string
		chatID int64
	}{
		{name: "no stored config", chatID: -100},
		{name: "explicitly disabled", chatID: -200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Trigger(context.Background(), tt.chatID, scheduler.TriggerManual, 0); !errors.Is(err, scheduler.ErrGroupNotEnabled) {
				t.Errorf("Trigger() error = %v, want ErrGroupNotEnabled", err)
			}
		})
	}
}

func TestTriggerHonorsAllowList(t *testing.T) {
	t.Parallel()

	s := scheduler.NewGroupScheduler(scheduler.Config{Workers: 1, AllowedGroups: []int64{-500}},
		newFakeGroups(-100),
		func(context.Context, *database.GroupConfig, scheduler.Trigger, int) (*analysis.Result, error) {
			t.Error("RunFunc called for a group outside the allow-list")
			return nil, nil
		}, nil)

	if _, err := s.Trigger(context.Background(), -100, scheduler.TriggerManual, 0); !errors.Is(err, scheduler.ErrGroupNotEnabled) {
		t.Errorf("Trigger() error = %v, want ErrGroupNotEnabled", err)
	}
}

func TestTriggerCooldown(t *testing.T) {
	t.Parallel()

	run := func(_ context.Context, group *database.GroupConfig, _ scheduler.Trigger, _ int) (*analysis.Result, error) {
		return &analysis.Result{GroupID: group.ChatID}, nil
	}
	s := scheduler.NewGroupScheduler(scheduler.Config{
		Workers:                 1,
		Cooldown:                time.Hour,
		ManualOverridesCooldown: true,
	}, newFakeGroups(-100), run, nil)

	if _, err := s.Trigger(context.Background(), -100, scheduler.TriggerAutomatic, 0); err != nil {
		t.Fatalf("first Trigger() error = %v", err)
	}

	if _, err := s.Trigger(context.Background(), -100, scheduler.TriggerAutomatic, 0); !errors.Is(err, scheduler.ErrCoolingDown) {
		t.Errorf("automatic Trigger() during cooldown error = %v, want ErrCoolingDown", err)
	}
	if got := s.Status(-100); got != scheduler.StatusCoolingDown {
		t.Errorf("Status() = %q, want %q", got, scheduler.StatusCoolingDown)
	}
	if got := s.CooldownRemaining(-100); got <= 0 || got > time.Hour {
		t.Errorf("CooldownRemaining() = %v, want within (0, 1h]", got)
	}

	// Manual triggers bypass the cooldown when the policy allows it.
	if _, err := s.Trigger(context.Background(), -100, scheduler.TriggerManual, 0); err != nil {
		t.Errorf("manual Trigger() during cooldown error = %v, want success", err)
	}
}

func TestTriggerCooldownBlocksManualWithoutOverride(t *testing.T) {
	t.Parallel()

	run := func(_ context.Context, group *database.GroupConfig, _ scheduler.Trigger, _ int) (*analysis.Result, error) {
		return &analysis.Result{GroupID: group.ChatID}, nil
	}
	s := scheduler.NewGroupScheduler(scheduler.Config{
		Workers:  1,
		Cooldown: time.Hour,
	}, newFakeGroups(-100), run, nil)

	if _, err := s.Trigger(context.Background(), -100, scheduler.TriggerManual, 0); err != nil {
		t.Fatalf("first Trigger() error = %v", err)
	}
	if _, err := s.Trigger(context.Background(), -100, scheduler.TriggerManual, 0); !errors.Is(err, scheduler.ErrCoolingDown) {
		t.Errorf("manual Trigger() during cooldown error = %v, want ErrCoolingDown", err)
	}
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	t.Parallel()

	var running, peak atomic.Int32
	release := make(chan struct{})
	run := func(ctx context.Context, group *database.GroupConfig, _ scheduler.Trigger, _ int) (*analysis.Result, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		defer running.Add(-1)
		select {
		case <-release:
			return &analysis.Result{GroupID: group.ChatID}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s := scheduler.NewGroupScheduler(scheduler.Config{Workers: 2},
		newFakeGroups(-1, -2, -3, -4, -5), run, nil)

	var wg sync.WaitGroup
	for _, id := range []int64{-1, -2, -3, -4, -5} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := s.Trigger(context.Background(), id, scheduler.TriggerAutomatic, 0); err != nil {
				t.Errorf("Trigger(%d) error = %v", id, err)
			}
		}(id)
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrent runs = %d, want at most 2", got)
	}
}

func TestCancelAbortsInFlightRun(t *testing.T) {
	t.Parallel()

	started := make(chan int64, 1)
	release := make(chan struct{}) // never closed; only cancellation ends the run
	s := scheduler.NewGroupScheduler(scheduler.Config{Workers: 1},
		newFakeGroups(-100), blockingRun(release, started), nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.Trigger(context.Background(), -100, scheduler.TriggerManual, 0)
		done <- err
	}()

	<-started
	if !s.Cancel(-100) {
		t.Fatal("Cancel() = false, want true for in-flight run")
	}

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Trigger() after Cancel error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Trigger() did not return after Cancel")
	}

	if s.Cancel(-100) {
		t.Error("Cancel() = true for idle group, want false")
	}
}

package scheduler

import (
	"testing"

	"github.com/ChrisCOJ/Trace/internal/task"
	"github.com/ChrisCOJ/Trace/internal/taskpool"
)

func TestTickAdoptsHighestScoringCandidate(t *testing.T) {
	pool := taskpool.New()
	pool.Add(0, task.ServeWater, 0) // base priority 5.0
	best := pool.Add(1, task.ServeOrder, 0) // base priority 8.0

	s := New(DefaultConfig())
	s.Tick(pool, 0)

	active, ok := s.ActiveTask()
	if !ok || active != best {
		t.Fatalf("expected adopt of highest-priority candidate %v, got %v (ok=%v)", best, active, ok)
	}
}

func TestTickTieBreaksByFirstSeen(t *testing.T) {
	pool := taskpool.New()
	first := pool.Add(0, task.ServeWater, 0)
	pool.Add(1, task.ServeWater, 0) // identical score, later slot

	s := New(DefaultConfig())
	s.Tick(pool, 0)

	active, _ := s.ActiveTask()
	if active != first {
		t.Fatalf("expected tie-break to favor first-seen candidate %v, got %v", first, active)
	}
}

func TestHoldsActiveWithinDwellEvenIfOutscored(t *testing.T) {
	pool := taskpool.New()
	low := pool.Add(0, task.ClearTable, 0) // base priority 3.0

	s := New(DefaultConfig())
	s.Tick(pool, 0)
	if active, _ := s.ActiveTask(); active != low {
		t.Fatalf("expected low-priority task adopted first, got %v", active)
	}

	// A much higher priority candidate appears, but dwell has not elapsed.
	high := pool.Add(1, task.ServeOrder, 1000)
	s.Tick(pool, 1000+5000) // well under MinDwellTime (20s)

	if active, _ := s.ActiveTask(); active != low {
		t.Fatalf("expected active task held during dwell, switched to %v instead of %v", active, low)
	}
	_ = high
}

func TestSwitchesAfterDwellWhenMarginExceeded(t *testing.T) {
	pool := taskpool.New()
	low := pool.Add(0, task.ClearTable, 0) // base priority 3.0

	s := New(DefaultConfig())
	s.Tick(pool, 0)

	high := pool.Add(1, task.ServeOrder, 0) // base priority 8.0, well beyond PreemptDelta

	dwell := DefaultConfig().MinDwellTime
	s.Tick(pool, dwell)

	active, _ := s.ActiveTask()
	if active != high {
		t.Fatalf("expected switch to higher-priority candidate %v after dwell elapsed, got %v (low=%v)", high, active, low)
	}
}

func TestNoSwitchWhenMarginWithinPreemptDelta(t *testing.T) {
	pool := taskpool.New()
	a := pool.Add(0, task.MonitorTable, 0) // base priority 4.0

	s := New(DefaultConfig())
	s.Tick(pool, 0)

	pool.Add(1, task.MonitorTable, 0) // identical priority, no margin at all

	dwell := DefaultConfig().MinDwellTime
	s.Tick(pool, dwell)

	active, _ := s.ActiveTask()
	if active != a {
		t.Fatalf("expected no switch when candidate does not exceed active by PreemptDelta, got %v want %v", active, a)
	}
}

func TestTickClearsActiveWhenPoolEmpties(t *testing.T) {
	pool := taskpool.New()
	id := pool.Add(0, task.ServeWater, 0)

	s := New(DefaultConfig())
	s.Tick(pool, 0)
	if _, ok := s.ActiveTask(); !ok {
		t.Fatal("expected an active task after first tick")
	}

	pool.Update(id, func(tk *task.Task) { task.MarkCompleted(tk) })
	s.Tick(pool, 1000)

	if _, ok := s.ActiveTask(); ok {
		t.Fatal("expected no active task once the pool has no eligible candidates")
	}
}

func TestTickSwitchesOffStaleActiveHandle(t *testing.T) {
	pool := taskpool.New()
	first := pool.Add(0, task.ServeWater, 0)

	s := New(DefaultConfig())
	s.Tick(pool, 0)
	if active, _ := s.ActiveTask(); active != first {
		t.Fatalf("expected %v active, got %v", first, active)
	}

	// Free the active slot directly (simulating external pool churn) and
	// add a replacement so a best candidate still exists.
	pool.Free(first)
	replacement := pool.Add(0, task.ServeWater, 0)

	s.Tick(pool, 1000)
	if active, ok := s.ActiveTask(); !ok || active != replacement {
		t.Fatalf("expected scheduler to recover onto %v after stale handle, got %v (ok=%v)", replacement, active, ok)
	}
}

func TestIgnoredTaskIsSkippedUntilSuppressExpires(t *testing.T) {
	pool := taskpool.New()
	low := pool.Add(0, task.ClearTable, 0)
	high := pool.Add(1, task.ServeOrder, 0)

	s := New(DefaultConfig())
	s.Tick(pool, 0)
	if active, _ := s.ActiveTask(); active != high {
		t.Fatalf("expected high-priority task adopted, got %v", active)
	}

	pool.Update(high, func(tk *task.Task) { task.ApplyIgnore(tk, 0) })
	s.Tick(pool, 100)

	if active, _ := s.ActiveTask(); active != low {
		t.Fatalf("expected fallback to %v while %v is suppressed, got %v", low, high, active)
	}
}

package tablefsm

import (
	"testing"

	"github.com/ChrisCOJ/Trace/internal/clock"
	"github.com/ChrisCOJ/Trace/internal/task"
)

func TestFullLifecycleTransitions(t *testing.T) {
	ctx := NewContext(0)

	steps := []struct {
		event   Event
		want    State
		changed bool
	}{
		{CustomersSeated, Seated, true},
		{MarkComplete, ReadyForOrder, true},
		{MarkComplete, WaitingForOrder, true},
		{MarkComplete, Dining, true},
		{TimeoutPeriodicCheckin, Checkup, true},
		{TableClosed, Done, true},
		{MarkComplete, Idle, true},
	}

	for i, step := range steps {
		changed := Apply(&ctx, step.event, clock.Millis(i*1000))
		if changed != step.changed {
			t.Fatalf("step %d: expected changed=%v, got %v", i, step.changed, changed)
		}
		if ctx.State != step.want {
			t.Fatalf("step %d: expected state %v, got %v", i, step.want, ctx.State)
		}
	}
}

func TestUnhandledEventIsNoOp(t *testing.T) {
	ctx := NewContext(0)
	ctx.StateEnteredAt = 5

	changed := Apply(&ctx, TableClosed, 100)
	if changed {
		t.Error("TableClosed from Idle must be a no-op")
	}
	if ctx.State != Idle || ctx.StateEnteredAt != 5 {
		t.Error("no-op transition must not touch state_entered_at")
	}
}

func TestOwedTaskMapping(t *testing.T) {
	cases := []struct {
		state State
		kind  task.Kind
		owes  bool
	}{
		{Idle, 0, false},
		{Seated, task.ServeWater, true},
		{ReadyForOrder, task.TakeOrder, true},
		{WaitingForOrder, task.ServeOrder, true},
		{Dining, 0, false},
		{Checkup, task.MonitorTable, true},
		{Done, task.ClearTable, true},
	}

	for _, c := range cases {
		ctx := Context{State: c.state}
		kind, ok := OwedTask(&ctx)
		if ok != c.owes {
			t.Errorf("state %v: expected owes=%v, got %v", c.state, c.owes, ok)
		}
		if ok && kind != c.kind {
			t.Errorf("state %v: expected kind %v, got %v", c.state, c.kind, kind)
		}
	}
}

func TestTickForcesDiningToCheckupAtThreshold(t *testing.T) {
	ctx := NewContext(2)
	ctx.State = Dining
	ctx.StateEnteredAt = 0

	if Tick(&ctx, 999, 1000) {
		t.Fatal("must not transition before threshold")
	}
	if ctx.State != Dining {
		t.Fatalf("expected still Dining, got %v", ctx.State)
	}

	if !Tick(&ctx, 1000, 1000) {
		t.Fatal("expected transition at threshold")
	}
	if ctx.State != Checkup {
		t.Fatalf("expected Checkup, got %v", ctx.State)
	}
}

func TestTickOnlyAppliesToDining(t *testing.T) {
	ctx := NewContext(1)
	ctx.State = Idle
	ctx.StateEnteredAt = 0

	if Tick(&ctx, 1_000_000, 1000) {
		t.Error("Tick must be a no-op outside Dining")
	}
}

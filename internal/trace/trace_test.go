package trace

import (
	"testing"

	"github.com/ChrisCOJ/Trace/internal/clock"
	"github.com/ChrisCOJ/Trace/internal/scheduler"
	"github.com/ChrisCOJ/Trace/internal/tablefsm"
	"github.com/ChrisCOJ/Trace/internal/task"
)

func TestApplyTableFSMEventAdmitsOwedTask(t *testing.T) {
	f := New(scheduler.DefaultConfig(), tablefsm.DiningCheckinMs)

	f.ApplyTableFSMEvent(0, tablefsm.CustomersSeated, 0)

	if got := f.GetTableState(0); got != tablefsm.Seated {
		t.Fatalf("expected table 0 Seated, got %v", got)
	}
	at, ok := f.ActiveTask()
	if !ok || at.Kind != task.ServeWater || at.TableNumber != 0 {
		t.Fatalf("expected ServeWater admitted and active, got %+v ok=%v", at, ok)
	}
}

func TestApplyUserActionOnStaleHandleReturnsFalse(t *testing.T) {
	f := New(scheduler.DefaultConfig(), tablefsm.DiningCheckinMs)
	applied := f.ApplyUserAction(task.ID{Index: 5, Generation: 0}, ActionComplete, 0)
	if applied {
		t.Fatal("expected false for a handle with nothing admitted")
	}
}

func TestApplyUserActionCompleteAdvancesTable(t *testing.T) {
	f := New(scheduler.DefaultConfig(), tablefsm.DiningCheckinMs)
	f.ApplyTableFSMEvent(1, tablefsm.CustomersSeated, 0)

	id, ok := f.ActiveTaskID()
	if !ok {
		t.Fatal("expected an active task after seating")
	}

	if !f.ApplyUserAction(id, ActionComplete, 1000) {
		t.Fatal("expected ActionComplete to apply")
	}

	if got := f.GetTableState(1); got != tablefsm.ReadyForOrder {
		t.Fatalf("expected table advanced to ReadyForOrder, got %v", got)
	}
	at, ok := f.ActiveTask()
	if !ok || at.Kind != task.TakeOrder {
		t.Fatalf("expected TakeOrder now active, got %+v ok=%v", at, ok)
	}
}

func TestApplyUserActionIgnoreToKillDropsTask(t *testing.T) {
	f := New(scheduler.DefaultConfig(), tablefsm.DiningCheckinMs)
	f.ApplyTableFSMEvent(2, tablefsm.CustomersSeated, 0)

	id, ok := f.ActiveTaskID()
	if !ok {
		t.Fatal("expected an active task after seating")
	}

	for i := 0; i < task.IgnoreKillThreshold; i++ {
		if !f.ApplyUserAction(id, ActionIgnore, clockTick(i)) {
			t.Fatalf("ignore %d: expected ApplyUserAction to succeed", i+1)
		}
	}

	if !f.ApplyUserAction(id, ActionIgnore, 1_000_000) {
		t.Fatal("expected the kill-triggering ignore to still report applied")
	}

	if _, ok := f.ActiveTask(); ok {
		t.Error("expected no active task once the only candidate was killed")
	}
}

func TestGetTableStateFallsBackToIdleOnInvalidIndex(t *testing.T) {
	f := New(scheduler.DefaultConfig(), tablefsm.DiningCheckinMs)
	if got := f.GetTableState(200); got != tablefsm.Idle {
		t.Fatalf("expected Idle fallback for out-of-range table, got %v", got)
	}
}

func TestTickDrivesDiningToCheckupAndAdmitsMonitorTable(t *testing.T) {
	f := New(scheduler.DefaultConfig(), tablefsm.DiningCheckinMs)
	f.ApplyTableFSMEvent(3, tablefsm.CustomersSeated, 0)
	f.ApplyTableFSMEvent(3, tablefsm.MarkComplete, 0) // Seated -> ReadyForOrder
	f.ApplyTableFSMEvent(3, tablefsm.MarkComplete, 0) // ReadyForOrder -> WaitingForOrder
	f.ApplyTableFSMEvent(3, tablefsm.MarkComplete, 0) // WaitingForOrder -> Dining

	if got := f.GetTableState(3); got != tablefsm.Dining {
		t.Fatalf("expected Dining, got %v", got)
	}

	f.Tick(tablefsm.DiningCheckinMs)

	if got := f.GetTableState(3); got != tablefsm.Checkup {
		t.Fatalf("expected Checkup after dining-checkin threshold, got %v", got)
	}
	at, ok := f.ActiveTask()
	if !ok || at.Kind != task.MonitorTable {
		t.Fatalf("expected MonitorTable admitted, got %+v ok=%v", at, ok)
	}
}

func TestHooksFireOnTerminalTaskAndTransition(t *testing.T) {
	f := New(scheduler.DefaultConfig(), tablefsm.DiningCheckinMs)

	var terminalKinds []task.Kind
	var transitions []tablefsm.State
	f.SetHooks(Hooks{
		OnTaskTerminal: func(t task.Task, now clock.Millis) {
			terminalKinds = append(terminalKinds, t.Kind)
		},
		OnTableTransition: func(table uint8, state tablefsm.State, now clock.Millis) {
			transitions = append(transitions, state)
		},
	})

	f.ApplyTableFSMEvent(4, tablefsm.CustomersSeated, 0)
	id, _ := f.ActiveTaskID()
	f.ApplyUserAction(id, ActionComplete, 1000)

	if len(terminalKinds) == 0 || terminalKinds[0] != task.ServeWater {
		t.Fatalf("expected ServeWater terminal hook fired, got %v", terminalKinds)
	}
	if len(transitions) == 0 {
		t.Fatal("expected at least one table transition hook call")
	}
}

// clockTick spaces successive ignores past task.SnoozeDuration so each one
// finds the task already refreshed back to Eligible.
func clockTick(i int) clock.Millis {
	return clock.Millis(i) * 40_000
}

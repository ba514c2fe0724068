// Package trace implements the façade that owns the tables, the task
// pool, and the scheduler, and routes external events and user actions
// into them. Grounded on main/src/trace_system.c and
// main/include/trace_system.h from the embedded original.
package trace

import (
	"log"
	"strconv"
	"sync"

	"github.com/ChrisCOJ/Trace/internal/clock"
	"github.com/ChrisCOJ/Trace/internal/scheduler"
	"github.com/ChrisCOJ/Trace/internal/tablefsm"
	"github.com/ChrisCOJ/Trace/internal/task"
	"github.com/ChrisCOJ/Trace/internal/taskpool"
	"github.com/ChrisCOJ/Trace/internal/telemetry"
)

// MaxTables is the fixed fleet size (spec.md §6).
const MaxTables = 28

// UserAction is an action a user applies to the currently shown task.
type UserAction int

const (
	ActionComplete UserAction = iota
	ActionIgnore
	ActionTakeOrder
	ActionCloseTable
)

// Facade owns tables[MaxTables], the pool, and the scheduler, and
// serializes calls into them — spec.md §5 notes the core itself has no
// lock discipline, but a service deployment fronted by concurrent
// callers (ticker loop, websocket hub, HTTP handlers) needs one; this
// mutex is that single serialization point, grounded on the teacher's
// habit of guarding all shared mutable state with sync.Mutex/RWMutex.
type Facade struct {
	mu sync.Mutex

	tables          [MaxTables]tablefsm.Context
	pool            *taskpool.Pool
	sched           *scheduler.Scheduler
	diningCheckinMs clock.Millis
	hooks           Hooks
}

// Hooks are best-effort, non-blocking sinks the façade fires on terminal
// task outcomes and table transitions. Both fields are optional; a nil
// hook is simply skipped. Kept as plain function values rather than a
// direct dependency on internal/audit or internal/eventexport so the
// façade never has to know how — or whether — a call is persisted or
// exported; the caller (cmd/traced) wires the concrete sinks in.
type Hooks struct {
	OnTaskTerminal    func(t task.Task, now clock.Millis)
	OnTableTransition func(table uint8, state tablefsm.State, now clock.Millis)
}

// New constructs a Facade with all tables Idle, an empty pool, and a
// scheduler configured from cfg (zero fields replaced by defaults).
func New(cfg scheduler.Config, diningCheckinMs clock.Millis) *Facade {
	f := &Facade{
		pool:            taskpool.New(),
		sched:           scheduler.New(cfg),
		diningCheckinMs: diningCheckinMs,
	}
	for i := range f.tables {
		f.tables[i] = tablefsm.NewContext(uint8(i))
	}
	return f
}

// SetHooks installs the façade's write-behind sinks. Call once during
// startup, before the tick loop and HTTP handlers begin dispatching.
func (f *Facade) SetHooks(h Hooks) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks = h
}

func (f *Facade) admit(table uint8, now clock.Millis) {
	kind, ok := tablefsm.OwedTask(&f.tables[table])
	if !ok {
		return
	}
	id := f.pool.Add(table, kind, now)
	if !id.Valid() {
		log.Printf("[trace] pool full: dropped admission table=%d kind=%s", table, kind)
		return
	}
	telemetry.TaskAdmissions.WithLabelValues(kind.String()).Inc()
}

// ApplyTableFSMEvent validates table, applies event, and — if the state
// changed — admits the newly owed task and runs one scheduler tick.
// No-op on an invalid table index.
func (f *Facade) ApplyTableFSMEvent(table uint8, event tablefsm.Event, now clock.Millis) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyTableFSMEventLocked(table, event, now)
}

func (f *Facade) applyTableFSMEventLocked(table uint8, event tablefsm.Event, now clock.Millis) {
	if int(table) >= MaxTables {
		return
	}
	changed := tablefsm.Apply(&f.tables[table], event, now)
	if changed {
		f.admit(table, now)
		f.fireTableTransition(table, now)
	}
	f.sched.Tick(f.pool, now)
	f.recordTableStateMetric(table)
}

func (f *Facade) fireTableTransition(table uint8, now clock.Millis) {
	if f.hooks.OnTableTransition != nil {
		f.hooks.OnTableTransition(table, f.tables[table].State, now)
	}
}

// TakeOrderNow is shorthand for ApplyTableFSMEvent(table, TakeOrderEarlyOrRepeat, now).
func (f *Facade) TakeOrderNow(table uint8, now clock.Millis) {
	f.ApplyTableFSMEvent(table, tablefsm.TakeOrderEarlyOrRepeat, now)
}

// CloseTable is shorthand for ApplyTableFSMEvent(table, TableClosed, now).
func (f *Facade) CloseTable(table uint8, now clock.Millis) {
	f.ApplyTableFSMEvent(table, tablefsm.TableClosed, now)
}

// ApplyUserAction resolves shownID in the pool and applies action to it.
// Returns false on a stale handle, an ineligible task, or an unsupported
// action — in all of those cases no mutation happens other than possibly
// a scheduler tick to help the UI recover a fresh suggestion.
func (f *Facade) ApplyUserAction(shownID task.ID, action UserAction, now clock.Millis) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, ok := f.pool.Get(shownID)
	if !ok {
		return false
	}

	task.Refresh(&current, now)
	if !task.Schedulable(&current) {
		f.pool.Update(shownID, func(t *task.Task) { task.Refresh(t, now) })
		f.sched.Tick(f.pool, now)
		return false
	}

	// Snapshot the table number before mutating, since completing the
	// task and advancing its table both need it, and scheduler.Tick (run
	// at the end) may have altered pool contents by then. Mirrors
	// trace_system.c's task_snapshot.
	table := current.TableNumber
	kind := current.Kind

	switch action {
	case ActionComplete:
		f.pool.Update(shownID, func(t *task.Task) { task.MarkCompleted(t); current = *t })
		f.fireTaskTerminal(current, now)
		f.advanceTable(table, tablefsm.MarkComplete, now)
		f.fireTableTransition(table, now)

	case ActionIgnore:
		outcome := "suppressed"
		f.pool.Update(shownID, func(t *task.Task) {
			if task.ApplyIgnore(t, now) == task.Removed {
				outcome = "killed"
			}
			current = *t
		})
		telemetry.TaskIgnores.WithLabelValues(kind.String(), outcome).Inc()
		if outcome == "killed" {
			f.fireTaskTerminal(current, now)
		}

	case ActionTakeOrder:
		f.pool.Update(shownID, func(t *task.Task) { task.MarkCompleted(t); current = *t })
		f.fireTaskTerminal(current, now)
		f.applyTableFSMEventLocked(table, tablefsm.TakeOrderEarlyOrRepeat, now)
		return true

	case ActionCloseTable:
		f.pool.Update(shownID, func(t *task.Task) { task.MarkCompleted(t); current = *t })
		f.fireTaskTerminal(current, now)
		f.applyTableFSMEventLocked(table, tablefsm.TableClosed, now)
		return true

	default:
		return false
	}

	f.sched.Tick(f.pool, now)
	return true
}

// advanceTable progresses table's FSM via event and admits its next owed
// task, mirroring advance_table_fsm in trace_system.c.
func (f *Facade) advanceTable(table uint8, event tablefsm.Event, now clock.Millis) {
	if int(table) >= MaxTables {
		return
	}
	tablefsm.Apply(&f.tables[table], event, now)
	f.admit(table, now)
}

// fireTaskTerminal notifies the terminal-task hook, if installed.
func (f *Facade) fireTaskTerminal(t task.Task, now clock.Millis) {
	if f.hooks.OnTaskTerminal != nil {
		f.hooks.OnTaskTerminal(t, now)
	}
}

// Tick walks every table's FSM for timeouts, admitting newly owed tasks
// on any state change, then runs one scheduler pass.
func (f *Facade) Tick(now clock.Millis) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.tables {
		if tablefsm.Tick(&f.tables[i], now, f.diningCheckinMs) {
			f.admit(uint8(i), now)
			f.fireTableTransition(uint8(i), now)
		}
		f.recordTableStateMetric(uint8(i))
	}
	f.sched.Tick(f.pool, now)
}

func (f *Facade) recordTableStateMetric(table uint8) {
	st := f.tables[table].State
	for _, s := range []tablefsm.State{
		tablefsm.Idle, tablefsm.Seated, tablefsm.ReadyForOrder,
		tablefsm.WaitingForOrder, tablefsm.Dining, tablefsm.Checkup, tablefsm.Done,
	} {
		v := 0.0
		if s == st {
			v = 1.0
		}
		telemetry.TableState.WithLabelValues(tableLabel(table), s.String()).Set(v)
	}
}

func tableLabel(table uint8) string {
	return strconv.Itoa(int(table))
}

// GetTableState returns table's current state, or Idle as a safe
// fallback on an invalid index (spec.md §7).
func (f *Facade) GetTableState(table uint8) tablefsm.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if int(table) >= MaxTables {
		return tablefsm.Idle
	}
	return f.tables[table].State
}

// GetTable returns a copy of table's full context, or a zero-value Idle
// context at table 0 on an invalid index.
func (f *Facade) GetTable(table uint8) tablefsm.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	if int(table) >= MaxTables {
		return tablefsm.NewContext(0)
	}
	return f.tables[table]
}

// ActiveTaskID returns the scheduler's current active task handle.
func (f *Facade) ActiveTaskID() (task.ID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sched.ActiveTask()
}

// ActiveTask resolves and returns a snapshot of the currently active
// task, or false if there is none or its handle is stale.
func (f *Facade) ActiveTask() (task.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, has := f.sched.ActiveTask()
	if !has {
		return task.Task{}, false
	}
	return f.pool.Get(id)
}

// SetHumanStateIndicator forwards to the scheduler's exhaustion hook.
func (f *Facade) SetHumanStateIndicator(v float64) {
	f.sched.SetHumanStateIndicator(v)
}

// SetDebug forwards to the scheduler's candidate-trace toggle.
func (f *Facade) SetDebug(on bool) {
	f.sched.SetDebug(on)
}

// NumTables returns the fixed fleet size, for consumers that need to
// enumerate tables without hard-coding MaxTables.
func (f *Facade) NumTables() int {
	return MaxTables
}

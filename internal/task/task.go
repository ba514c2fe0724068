// Package task implements the task entity and its status/ignore/snooze
// policy. Grounded on main/src/task_domain.c and main/include/task_domain.h
// from the embedded original: init/mark-completed/kill/apply-ignore/refresh,
// carried over with the same field semantics and kill-on-fourth-ignore rule.
package task

import "github.com/ChrisCOJ/Trace/internal/clock"

// Status is the lifecycle state of a task.
type Status int

const (
	StatusEligible Status = iota
	StatusSuppressed
	StatusCompleted
	StatusKilled
)

func (s Status) String() string {
	switch s {
	case StatusEligible:
		return "eligible"
	case StatusSuppressed:
		return "suppressed"
	case StatusCompleted:
		return "completed"
	case StatusKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// Kind is the kind of work a task represents.
type Kind int

const (
	ServeWater Kind = iota
	TakeOrder
	ServeOrder
	MonitorTable
	ClearTable
)

func (k Kind) String() string {
	switch k {
	case ServeWater:
		return "serve_water"
	case TakeOrder:
		return "take_order"
	case ServeOrder:
		return "serve_order"
	case MonitorTable:
		return "monitor_table"
	case ClearTable:
		return "clear_table"
	default:
		return "unknown"
	}
}

// BasePriority is the kind-derived constant priority (spec.md §6).
var BasePriority = map[Kind]float64{
	ServeWater:   5.0,
	TakeOrder:    7.0,
	ServeOrder:   8.0,
	MonitorTable: 4.0,
	ClearTable:   3.0,
}

// TimeLimit is the kind-derived time budget in milliseconds (spec.md §6).
var TimeLimit = map[Kind]clock.Millis{
	ServeWater:   300_000,
	TakeOrder:    240_000,
	ServeOrder:   180_000,
	MonitorTable: 600_000,
	ClearTable:   600_000,
}

// SnoozeDuration is how long an ignored task stays suppressed.
const SnoozeDuration clock.Millis = 30_000

// IgnoreKillThreshold: a task ignored more than this many times is killed
// instead of re-suppressed. spec.md §9 resolves the ambiguity as
// "increment first, then kill if strictly greater than 3" — the fourth
// ignore kills.
const IgnoreKillThreshold = 3

// ID is a generational handle: index selects a pool slot, generation
// proves the handle refers to the slot's current occupant.
type ID struct {
	Index      uint16
	Generation uint16
}

// InvalidIndex is the sentinel slot index of an invalid ID.
const InvalidIndex = ^uint16(0)

// InvalidID is the sentinel invalid identifier (MAX, 0).
var InvalidID = ID{Index: InvalidIndex, Generation: 0}

// Valid reports whether id is not the sentinel invalid id. It does NOT
// check liveness against a pool — only the pool can do that.
func (id ID) Valid() bool {
	return id.Index != InvalidIndex
}

// Result is the outcome of a task mutator.
type Result int

const (
	Success Result = iota
	NotFound
	Removed
)

// Task is a single unit of owed work against a table.
type Task struct {
	ID            ID
	Status        Status
	Kind          Kind
	TableNumber   uint8
	BasePriority  float64
	CreatedAt     clock.Millis
	TimeLimit     clock.Millis
	SuppressUntil clock.Millis
	IgnoreCount   int
}

// Init zeroes and initializes t as a freshly admitted Eligible task.
func Init(t *Task, id ID, kind Kind, createdAt clock.Millis, table uint8) {
	*t = Task{
		ID:           id,
		Status:       StatusEligible,
		Kind:         kind,
		TableNumber:  table,
		BasePriority: BasePriority[kind],
		CreatedAt:    createdAt,
		TimeLimit:    createdAt + TimeLimit[kind],
	}
}

// MarkCompleted marks t as Completed, clearing any suppression.
func MarkCompleted(t *Task) Result {
	if t == nil {
		return NotFound
	}
	t.Status = StatusCompleted
	t.SuppressUntil = 0
	return Success
}

// Kill marks t as Killed, clearing any suppression.
func Kill(t *Task) Result {
	if t == nil {
		return NotFound
	}
	t.Status = StatusKilled
	t.SuppressUntil = 0
	return Success
}

// ApplyIgnore snoozes t for SnoozeDuration and counts the strike. A task
// ignored past IgnoreKillThreshold is killed outright and Removed is
// reported; callers must stop using the handle after that.
func ApplyIgnore(t *Task, now clock.Millis) Result {
	if t == nil {
		return NotFound
	}

	t.SuppressUntil = now + SnoozeDuration
	t.IgnoreCount++

	if t.IgnoreCount > IgnoreKillThreshold {
		Kill(t)
		return Removed
	}

	t.Status = StatusSuppressed
	return Success
}

// Refresh transitions a Suppressed task back to Eligible once its
// suppress window has elapsed. Idempotent; safe to call every tick on
// every live task. SuppressUntil is left untouched per spec.md §9 — only
// Status is updated here.
func Refresh(t *Task, now clock.Millis) Result {
	if t == nil {
		return NotFound
	}
	if t.Status == StatusSuppressed && now >= t.SuppressUntil {
		t.Status = StatusEligible
	}
	return Success
}

// Schedulable reports whether t currently participates in scoring.
func Schedulable(t *Task) bool {
	if t == nil {
		return false
	}
	return t.Status == StatusEligible
}

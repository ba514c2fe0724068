// Package taskpool implements the fixed-capacity generational task slab.
// Grounded on main/src/task_pool.c and main/include/task_pool.h from the
// embedded original; the mutex-guarded wrapper shape follows the teacher's
// ThreadSafeQueue in control_plane/scheduler/queue.go.
package taskpool

import (
	"sync"

	"github.com/ChrisCOJ/Trace/internal/clock"
	"github.com/ChrisCOJ/Trace/internal/task"
)

// Capacity is the fixed number of slots in the pool (spec.md §6).
const Capacity = 32

type slot struct {
	instance   task.Task
	generation uint16
	occupied   bool
}

// Pool is a fixed-capacity generational slab of tasks. All operations are
// O(Capacity); Capacity is small and fixed so this never allocates after
// construction.
type Pool struct {
	mu    sync.Mutex
	slots [Capacity]slot
}

// New returns an initialized, empty Pool.
func New() *Pool {
	return &Pool{}
}

func validIndex(index uint16) bool {
	return index < Capacity
}

// Allocate claims the first unoccupied slot and returns its id. It does
// NOT initialize the slot contents — callers must follow up with an
// explicit init. Returns task.InvalidID if the pool is full.
func (p *Pool) Allocate() task.ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocateLocked()
}

func (p *Pool) allocateLocked() task.ID {
	for i := range p.slots {
		s := &p.slots[i]
		if !s.occupied {
			s.occupied = true
			return task.ID{Index: uint16(i), Generation: s.generation}
		}
	}
	return task.InvalidID
}

// Free releases the slot identified by id, bumping its generation so any
// outstanding copies of id are permanently invalidated. No-op if id does
// not resolve to a live slot.
func (p *Pool) Free(id task.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.freeLocked(id)
}

func (p *Pool) freeLocked(id task.ID) {
	if !validIndex(id.Index) {
		return
	}
	s := &p.slots[id.Index]
	if !s.occupied || s.generation != id.Generation {
		return
	}
	s.occupied = false
	s.generation++
}

// Get resolves id to its task, or returns a zero Task and false if the slot is
// unoccupied or the generation is stale. The returned snapshot is a copy;
// mutate it via Update to write it back.
func (p *Pool) Get(id task.ID) (task.Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.resolveLocked(id)
	if !ok {
		return task.Task{}, false
	}
	return s.instance, true
}

func (p *Pool) resolveLocked(id task.ID) (*slot, bool) {
	if !validIndex(id.Index) {
		return nil, false
	}
	s := &p.slots[id.Index]
	if !s.occupied || s.generation != id.Generation {
		return nil, false
	}
	return s, true
}

// Update applies fn to the task at id if it still resolves, writing the
// mutated value back. Returns false if id is stale.
func (p *Pool) Update(id task.ID, fn func(t *task.Task)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.resolveLocked(id)
	if !ok {
		return false
	}
	fn(&s.instance)
	return true
}

// FindByKey scans for an occupied slot whose task matches (table, kind)
// and whose status is neither Completed nor Killed — the logical-identity
// lookup spec.md §4.2 calls for.
func (p *Pool) FindByKey(table uint8, kind task.Kind) task.ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.findByKeyLocked(table, kind)
}

func (p *Pool) findByKeyLocked(table uint8, kind task.Kind) task.ID {
	for i := range p.slots {
		s := &p.slots[i]
		if !s.occupied {
			continue
		}
		t := &s.instance
		if t.TableNumber == table && t.Kind == kind &&
			t.Status != task.StatusKilled && t.Status != task.StatusCompleted {
			return task.ID{Index: uint16(i), Generation: s.generation}
		}
	}
	return task.InvalidID
}

// Add upserts a task by its logical key (table, kind). If a live match
// exists its priority/deadline are refreshed in place and its id is
// returned unchanged. Otherwise a dead (Completed/Killed) slot with the
// same key, if any, is freed, and then the first unoccupied slot (which
// need not be the freed one) is allocated and initialized.
// Returns task.InvalidID if the pool is full.
func (p *Pool) Add(table uint8, kind task.Kind, now clock.Millis) task.ID {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing := p.findByKeyLocked(table, kind); existing.Valid() {
		if s, ok := p.resolveLocked(existing); ok {
			s.instance.BasePriority = task.BasePriority[kind]
			s.instance.TimeLimit = now + task.TimeLimit[kind]
		}
		return existing
	}

	for i := range p.slots {
		s := &p.slots[i]
		if !s.occupied {
			continue
		}
		t := &s.instance
		if t.TableNumber == table && t.Kind == kind &&
			(t.Status == task.StatusKilled || t.Status == task.StatusCompleted) {
			p.freeLocked(task.ID{Index: uint16(i), Generation: s.generation})
			break
		}
	}

	id := p.allocateLocked()
	if !id.Valid() {
		return id
	}
	s, ok := p.resolveLocked(id)
	if !ok {
		return task.InvalidID
	}
	task.Init(&s.instance, id, kind, now, table)
	return id
}

// ForEach calls fn for every occupied slot's task. fn may mutate the
// task in place (it receives a pointer into the slot); it must not
// retain the pointer past the call. Locked for the duration of the scan.
func (p *Pool) ForEach(fn func(id task.ID, t *task.Task)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.slots {
		s := &p.slots[i]
		if !s.occupied {
			continue
		}
		fn(task.ID{Index: uint16(i), Generation: s.generation}, &s.instance)
	}
}

// Occupied returns the number of occupied slots, for telemetry.
func (p *Pool) Occupied() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for i := range p.slots {
		if p.slots[i].occupied {
			n++
		}
	}
	return n
}

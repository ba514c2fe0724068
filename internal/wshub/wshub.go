// Package wshub broadcasts the façade's current active-task snapshot to
// connected UI/dashboard clients over WebSocket. Grounded on the
// teacher's control_plane/ws_hub.go MetricsHub: a single broadcaster
// goroutine avoids N duplicate tickers, one per client.
package wshub

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ChrisCOJ/Trace/internal/tablefsm"
	"github.com/ChrisCOJ/Trace/internal/task"
	"github.com/gorilla/websocket"
)

const maxConnections = 200

// Snapshot is the JSON payload broadcast to clients.
type Snapshot struct {
	ActiveTask *ActiveTaskView `json:"active_task"`
	Tables     []TableView     `json:"tables"`
}

// ActiveTaskView is the public view of the currently selected task.
type ActiveTaskView struct {
	Table       uint8  `json:"table"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	IgnoreCount int    `json:"ignore_count"`
}

// TableView is the public view of one table's lifecycle state.
type TableView struct {
	Table uint8  `json:"table"`
	State string `json:"state"`
}

// Source is the subset of Facade behavior the hub needs to build a
// Snapshot, kept narrow so tests can fake it without a real Facade.
type Source interface {
	ActiveTask() (task.Task, bool)
	GetTable(table uint8) tablefsm.Context
	NumTables() int
}

// Hub manages WebSocket connections and broadcasts Snapshots.
type Hub struct {
	source     Source
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	period     time.Duration
}

// New creates a Hub that polls source every period to build broadcasts.
func New(source Source, period time.Duration) *Hub {
	return &Hub{
		source:     source,
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		period:     period,
	}
}

// Register adds conn as a broadcast target.
func (h *Hub) Register(conn *websocket.Conn) {
	h.register <- conn
}

// Unregister removes conn from broadcast targets.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.unregister <- conn
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run drives the hub's main loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case conn := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= maxConnections {
				h.mu.Unlock()
				conn.Close()
				log.Printf("[wshub] connection rejected: max connections (%d) reached", maxConnections)
				continue
			}
			h.clients[conn] = struct{}{}
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case <-ticker.C:
			h.broadcastAll()
		}
	}
}

func (h *Hub) snapshot() Snapshot {
	snap := Snapshot{}
	if t, ok := h.source.ActiveTask(); ok {
		snap.ActiveTask = &ActiveTaskView{
			Table:       t.TableNumber,
			Kind:        t.Kind.String(),
			Status:      t.Status.String(),
			IgnoreCount: t.IgnoreCount,
		}
	}
	n := h.source.NumTables()
	snap.Tables = make([]TableView, n)
	for i := 0; i < n; i++ {
		ctx := h.source.GetTable(uint8(i))
		snap.Tables[i] = TableView{Table: uint8(i), State: ctx.State.String()}
	}
	return snap
}

func (h *Hub) broadcastAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	snap := h.snapshot()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(snap); err != nil {
			log.Printf("[wshub] write error: %v", err)
			go h.Unregister(conn)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	log.Printf("[wshub] shutting down with %d clients", len(h.clients))
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
}

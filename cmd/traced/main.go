// Command traced runs the table scheduling core as a standalone service:
// an HTTP API for table events and user actions, a Prometheus /metrics
// endpoint, and a WebSocket feed of the current active task. Grounded on
// control_plane/main.go's env-var wiring and http.HandleFunc style from
// the teacher.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ChrisCOJ/Trace/internal/audit"
	"github.com/ChrisCOJ/Trace/internal/clock"
	"github.com/ChrisCOJ/Trace/internal/config"
	"github.com/ChrisCOJ/Trace/internal/eventexport"
	"github.com/ChrisCOJ/Trace/internal/ingress"
	"github.com/ChrisCOJ/Trace/internal/tablefsm"
	"github.com/ChrisCOJ/Trace/internal/task"
	"github.com/ChrisCOJ/Trace/internal/trace"
	"github.com/ChrisCOJ/Trace/internal/wshub"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var eventByName = map[string]tablefsm.Event{
	"mark_complete":              tablefsm.MarkComplete,
	"take_order_early_or_repeat": tablefsm.TakeOrderEarlyOrRepeat,
	"customers_seated":           tablefsm.CustomersSeated,
	"table_closed":               tablefsm.TableClosed,
}

var actionByName = map[string]trace.UserAction{
	"complete":    trace.ActionComplete,
	"ignore":      trace.ActionIgnore,
	"take_order":  trace.ActionTakeOrder,
	"close_table": trace.ActionCloseTable,
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	settings := config.FromEnv()

	clk := clock.NewMonotonic()
	facade := trace.New(settings.Scheduler, settings.DiningCheckinMs)
	facade.SetDebug(settings.Debug)

	limiter := ingress.New(20, 10)

	// Optional audit sink (Postgres) — write-behind shift reporting.
	// Degrades to a no-op if DATABASE_URL is unset or unreachable.
	var auditSink *audit.Sink
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		sink, err := audit.NewSink(ctx, dsn)
		cancel()
		if err != nil {
			log.Printf("[traced] audit sink disabled: %v", err)
		} else {
			auditSink = sink
			defer auditSink.Close()
			log.Println("[traced] audit sink connected")
		}
	}

	// Optional decision export (Redis) — live fleet-dashboard tailing.
	// Degrades to a no-op if REDIS_ADDR is unset or unreachable.
	var exporter *eventexport.Exporter
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		exp, err := eventexport.NewExporter(addr, os.Getenv("REDIS_PASSWORD"), 0, "tableboard.decisions")
		if err != nil {
			log.Printf("[traced] event export disabled: %v", err)
		} else {
			exporter = exp
			defer exporter.Close()
			log.Println("[traced] event export connected")
		}
	}
	facade.SetHooks(trace.Hooks{
		OnTaskTerminal: func(t task.Task, now clock.Millis) {
			if auditSink != nil {
				auditSink.RecordTaskTerminal(context.Background(), t, now)
			}
			if exporter != nil {
				exporter.Publish(context.Background(), eventexport.Event{
					Topic:     "task_terminal",
					Table:     t.TableNumber,
					Kind:      t.Kind.String(),
					Decision:  t.Status.String(),
					Timestamp: time.Now(),
				})
			}
		},
		OnTableTransition: func(table uint8, state tablefsm.State, now clock.Millis) {
			if auditSink != nil {
				auditSink.RecordTableTransition(context.Background(), table, state.String(), now)
			}
			if exporter != nil {
				exporter.Publish(context.Background(), eventexport.Event{
					Topic:     "table_transition",
					Table:     table,
					Decision:  state.String(),
					Timestamp: time.Now(),
				})
			}
		},
	})

	hub := wshub.New(facade, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	go tickLoop(ctx, facade, clk, settings.TickPeriodMs)

	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	http.Handle("/metrics", promhttp.Handler())

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[traced] ws upgrade failed: %v", err)
			return
		}
		hub.Register(conn)
	})

	http.HandleFunc("/tables/", func(w http.ResponseWriter, r *http.Request) {
		handleTableEvent(w, r, facade, clk, limiter)
	})

	http.HandleFunc("/tasks/", func(w http.ResponseWriter, r *http.Request) {
		handleTaskAction(w, r, facade, clk, limiter)
	})

	http.HandleFunc("/snapshot", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, snapshot(facade))
	})

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("[traced] listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func tickLoop(ctx context.Context, f *trace.Facade, clk *clock.Monotonic, periodMs clock.Millis) {
	ticker := time.NewTicker(time.Duration(periodMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Tick(clk.NowMillis())
		}
	}
}

type tableEventRequest struct {
	Event string `json:"event"`
}

func handleTableEvent(w http.ResponseWriter, r *http.Request, f *trace.Facade, clk *clock.Monotonic, limiter *ingress.Limiter) {
	if !limiter.Allow("table_event") {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}

	table, ok := pathTableNumber(r.URL.Path, "/tables/")
	if !ok {
		http.Error(w, "invalid table number", http.StatusBadRequest)
		return
	}

	var req tableEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	event, ok := eventByName[req.Event]
	if !ok {
		http.Error(w, "unknown event", http.StatusBadRequest)
		return
	}

	f.ApplyTableFSMEvent(table, event, clk.NowMillis())
	w.WriteHeader(http.StatusNoContent)
}

type taskActionRequest struct {
	Index      uint16 `json:"index"`
	Generation uint16 `json:"generation"`
	Action     string `json:"action"`
}

func handleTaskAction(w http.ResponseWriter, r *http.Request, f *trace.Facade, clk *clock.Monotonic, limiter *ingress.Limiter) {
	if !limiter.Allow("task_action") {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}

	var req taskActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	action, ok := actionByName[req.Action]
	if !ok {
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	id := task.ID{Index: req.Index, Generation: req.Generation}
	applied := f.ApplyUserAction(id, action, clk.NowMillis())
	writeJSON(w, map[string]bool{"applied": applied})
}

func pathTableNumber(path, prefix string) (uint8, bool) {
	rest := strings.TrimPrefix(path, prefix)
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 || n > 255 {
		return 0, false
	}
	return uint8(n), true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func snapshot(f *trace.Facade) map[string]interface{} {
	out := map[string]interface{}{}
	if t, ok := f.ActiveTask(); ok {
		out["active_task"] = map[string]interface{}{
			"table":        t.TableNumber,
			"kind":         t.Kind.String(),
			"status":       t.Status.String(),
			"ignore_count": t.IgnoreCount,
		}
	} else {
		out["active_task"] = nil
	}
	tables := make([]map[string]interface{}, f.NumTables())
	for i := range tables {
		tables[i] = map[string]interface{}{
			"table": i,
			"state": f.GetTableState(uint8(i)).String(),
		}
	}
	out["tables"] = tables
	return out
}

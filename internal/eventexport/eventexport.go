// Package eventexport publishes task and table event records onto a Redis
// Pub/Sub channel so an external fleet dashboard can tail live floor
// activity across many devices. Grounded on the teacher's
// streaming.Publisher interface (control_plane/streaming/interface.go)
// and control_plane/store/redis.go's connection setup. Best-effort and
// non-blocking: a publish failure is counted and logged, never returned
// to the scheduling path that triggered it.
package eventexport

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/ChrisCOJ/Trace/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

// Event is one exported event record.
type Event struct {
	Topic     string    `json:"topic"`
	Table     uint8     `json:"table,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Decision  string    `json:"decision"`
	Timestamp time.Time `json:"timestamp"`
}

// Exporter publishes Events onto a Redis channel.
type Exporter struct {
	client  *redis.Client
	channel string
}

// NewExporter connects to Redis at addr and verifies the connection.
func NewExporter(addr, password string, db int, channel string) (*Exporter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Exporter{client: client, channel: channel}, nil
}

// Publish best-effort publishes ev. Errors are swallowed after logging.
func (e *Exporter) Publish(ctx context.Context, ev Event) {
	ev.Timestamp = time.Now()
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[eventexport] marshal failed: %v", err)
		telemetry.EventExportFailures.Inc()
		return
	}
	go func() {
		if err := e.client.Publish(ctx, e.channel, payload).Err(); err != nil {
			log.Printf("[eventexport] publish failed: %v", err)
			telemetry.EventExportFailures.Inc()
		}
	}()
}

// Close closes the underlying Redis client.
func (e *Exporter) Close() error {
	return e.client.Close()
}

package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Sink accepts observability events. Implementations must not block
// the caller; dispatch succeeds or fails independently of the sink.
type Sink interface {
	Emit(event Event)
}

// LogSink writes events to the structured log at debug level.
type LogSink struct{}

// Emit logs the event.
func (LogSink) Emit(event Event) {
	slog.Debug("telemetry event", "kind", event.Kind(), "event", event)
}

// NopSink discards all events.
type NopSink struct{}

// Emit discards the event.
func (NopSink) Emit(Event) {}

// envelope is the wire format for events pushed to Redis.
type envelope struct {
	Kind    string `json:"kind"`
	Payload Event  `json:"payload"`
}

// eventPusher is the Redis surface the sink depends on.
type eventPusher interface {
	PushEvent(ctx context.Context, key string, payload []byte, maxLen int64) error
}

// eventQueueSize bounds the backlog of events awaiting a Redis push.
const eventQueueSize = 256

// RedisSink pushes events onto a bounded Redis list, fire-and-forget.
// A single worker drains a bounded queue; when the queue is full or
// Redis is down, events are dropped and logged at debug level.
type RedisSink struct {
	pusher  eventPusher
	key     string
	maxLen  int64
	timeout time.Duration
	queue   chan []byte
}

// NewRedisSink creates a sink backed by the given Redis client.
func NewRedisSink(pusher eventPusher, key string, maxLen int64) *RedisSink {
	s := &RedisSink{
		pusher:  pusher,
		key:     key,
		maxLen:  maxLen,
		timeout: 2 * time.Second,
		queue:   make(chan []byte, eventQueueSize),
	}
	go s.drain()
	return s
}

// Emit serializes the event and queues it for the background worker.
// Emit never blocks: a full queue drops the event.
func (s *RedisSink) Emit(event Event) {
	payload, err := json.Marshal(envelope{Kind: event.Kind(), Payload: event})
	if err != nil {
		slog.Debug("Failed to encode telemetry event", "kind", event.Kind(), "error", err)
		return
	}

	select {
	case s.queue <- payload:
	default:
		slog.Debug("Dropped telemetry event, queue full", "kind", event.Kind())
	}
}

func (s *RedisSink) drain() {
	for payload := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.pusher.PushEvent(ctx, s.key, payload, s.maxLen); err != nil {
			slog.Debug("Dropped telemetry event", "error", err)
		}
		cancel()
	}
}

// MultiSink fans an event out to every underlying sink.
type MultiSink []Sink

// Emit forwards the event to all sinks.
func (m MultiSink) Emit(event Event) {
	for _, s := range m {
		s.Emit(event)
	}
}

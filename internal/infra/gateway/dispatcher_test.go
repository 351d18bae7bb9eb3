package gateway

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgate/console/internal/core/config"
	"github.com/opsgate/console/internal/core/domain"
	"github.com/opsgate/console/internal/infra/telemetry"
)

// stubBackend scripts transport results per attempt.
type stubBackend struct {
	name  string
	mu    sync.Mutex
	calls int
	fn    func(call int, req Request) (*Response, error)
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) RoundTrip(ctx context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	return s.fn(call, req)
}

func (s *stubBackend) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// captureSink records emitted events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (c *captureSink) Emit(event telemetry.Event) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
}

func (c *captureSink) byKind(kind string) []telemetry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []telemetry.Event
	for _, e := range c.events {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

func newTestDispatcher(backend Backend, sink telemetry.Sink, retries int) (*Dispatcher, *[]time.Duration) {
	d := NewDispatcher(config.GatewayConfig{
		BaseURL:          "http://gateway.local",
		MaxRetryAttempts: retries,
		RequestTimeout:   time.Second,
	}, backend, sink)

	var delays []time.Duration
	d.sleep = func(ctx context.Context, dur time.Duration) error {
		delays = append(delays, dur)
		return nil
	}
	return d, &delays
}

func TestDispatchRetriesTransientThenSucceeds(t *testing.T) {
	connRefused := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	backend := &stubBackend{
		name: "gateway",
		fn: func(call int, req Request) (*Response, error) {
			if call <= 2 {
				return nil, connRefused
			}
			return &Response{Status: 200, Body: []byte(`{"ok":true}`)}, nil
		},
	}

	d, delays := newTestDispatcher(backend, nil, 2)
	out := d.Dispatch(context.Background(), Request{Method: "GET", Path: "/api/v1/messages"})

	require.True(t, out.Success())
	assert.Equal(t, 3, backend.callCount())
	// Backoff is 2^attempt seconds with attempt counted from 1.
	require.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *delays)
}

func TestDispatchReturnsLastOutcomeAfterExhaustion(t *testing.T) {
	backend := &stubBackend{
		name: "gateway",
		fn: func(call int, req Request) (*Response, error) {
			return nil, context.DeadlineExceeded
		},
	}

	d, delays := newTestDispatcher(backend, nil, 2)
	out := d.Dispatch(context.Background(), Request{Method: "GET", Path: "/api/v1/messages"})

	assert.Equal(t, domain.OutcomeTimeout, out.Kind)
	assert.Equal(t, domain.ReasonTimeout, out.Reason)
	assert.Equal(t, 3, backend.callCount())
	assert.Len(t, *delays, 2)
}

func TestDispatchNeverRetriesApplicationErrors(t *testing.T) {
	for _, status := range []int{400, 404, 500, 503} {
		backend := &stubBackend{
			name: "gateway",
			fn: func(call int, req Request) (*Response, error) {
				return &Response{Status: status, Body: []byte(`{"error":"nope"}`)}, nil
			},
		}

		d, delays := newTestDispatcher(backend, nil, 3)
		out := d.Dispatch(context.Background(), Request{Method: "GET", Path: "/x"})

		assert.False(t, out.Success())
		assert.Equal(t, 1, backend.callCount(), "status %d must not be retried", status)
		assert.Empty(t, *delays)
		assert.Equal(t, status, out.Status)
	}
}

func TestDispatchMockPathDoesNotRetry(t *testing.T) {
	backend := &stubBackend{
		name: BackendNameMock,
		fn: func(call int, req Request) (*Response, error) {
			return nil, context.DeadlineExceeded
		},
	}

	d, delays := newTestDispatcher(backend, nil, 3)
	out := d.Dispatch(context.Background(), Request{Method: "GET", Path: "/x"})

	assert.Equal(t, domain.OutcomeTimeout, out.Kind)
	assert.Equal(t, 1, backend.callCount())
	assert.Empty(t, *delays)
}

func TestDispatchMockExportPreservesBytes(t *testing.T) {
	jsonPayload := []byte(`{"rows": [ {"id":1} , {"id":2} ]}`)
	csvPayload := []byte("id,name\n1,alpha\n2,beta\n")

	for name, payload := range map[string][]byte{"json": jsonPayload, "csv": csvPayload} {
		t.Run(name, func(t *testing.T) {
			backend := &stubBackend{
				name: BackendNameMock,
				fn: func(call int, req Request) (*Response, error) {
					return &Response{Status: 200, Body: payload, ContentType: "text/plain"}, nil
				},
			}

			d, _ := newTestDispatcher(backend, nil, 0)
			out := d.Dispatch(context.Background(), Request{
				Method: "POST",
				Path:   "/api/v1/messages/export",
			})

			require.True(t, out.Success())
			assert.Equal(t, payload, out.Raw)
			assert.Equal(t, payload, out.Body)
		})
	}
}

func TestDispatchStampsRequestID(t *testing.T) {
	var seen string
	backend := &stubBackend{
		name: "gateway",
		fn: func(call int, req Request) (*Response, error) {
			seen = req.Options.RequestID
			return &Response{Status: 200, Body: []byte(`{}`)}, nil
		},
	}

	d, _ := newTestDispatcher(backend, nil, 0)
	d.Dispatch(context.Background(), Request{Method: "GET", Path: "/x"})
	assert.NotEmpty(t, seen)

	d.Dispatch(context.Background(), Request{
		Method:  "GET",
		Path:    "/x",
		Options: Options{RequestID: "req-123"},
	})
	assert.Equal(t, "req-123", seen)
}

func TestDispatchEmitsTelemetryEvents(t *testing.T) {
	backend := &stubBackend{
		name: "gateway",
		fn: func(call int, req Request) (*Response, error) {
			return &Response{Status: 200, Body: []byte(`{"ok":true}`)}, nil
		},
	}

	sink := &captureSink{}
	d, _ := newTestDispatcher(backend, sink, 0)
	d.Dispatch(context.Background(), Request{
		Method: "GET",
		Path:   "/api/v1/messages?limit=10",
		Options: Options{
			TenantID: "t-1",
			UserID:   "u-1",
		},
	})

	started := sink.byKind("request_started")
	require.Len(t, started, 1)
	ev := started[0].(telemetry.RequestStarted)
	assert.Equal(t, "console", ev.Client)
	assert.Equal(t, "list", ev.Operation)
	// Query strings never leak into the telemetry path key.
	assert.Equal(t, "/api/v1/messages", ev.Path)
	assert.Equal(t, "t-1", ev.TenantID)

	completed := sink.byKind("request_completed")
	require.Len(t, completed, 1)
	done := completed[0].(telemetry.RequestCompleted)
	assert.True(t, done.Success)
	assert.Equal(t, 200, done.Status)
	assert.Equal(t, ev.RequestID, done.RequestID)
}

func TestDispatchSingleKeyErrorBodyFails(t *testing.T) {
	backend := &stubBackend{
		name: "gateway",
		fn: func(call int, req Request) (*Response, error) {
			return &Response{Status: 200, Body: []byte(`{"error":"record gone"}`)}, nil
		},
	}

	d, delays := newTestDispatcher(backend, nil, 3)
	out := d.Dispatch(context.Background(), Request{Method: "GET", Path: "/x"})

	assert.Equal(t, domain.OutcomeServerError, out.Kind)
	// Application-level errors are not transient.
	assert.Equal(t, 1, backend.callCount())
	assert.Empty(t, *delays)
}

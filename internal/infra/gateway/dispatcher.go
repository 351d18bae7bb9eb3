package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/opsgate/console/internal/core/config"
	"github.com/opsgate/console/internal/core/domain"
	"github.com/opsgate/console/internal/infra/telemetry"
)

// Dispatcher builds and executes one logical gateway call, retrying
// transient failures with exponential backoff when talking to the real
// backend. Expected failures are returned inside the Outcome; Dispatch
// never returns a Go error.
type Dispatcher struct {
	cfg     config.GatewayConfig
	backend Backend
	sink    telemetry.Sink

	// sleep is swapped out in tests to observe backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a dispatcher over the given backend.
func NewDispatcher(cfg config.GatewayConfig, backend Backend, sink telemetry.Sink) *Dispatcher {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &Dispatcher{
		cfg:     cfg,
		backend: backend,
		sink:    sink,
		sleep:   sleepCtx,
	}
}

// Backend exposes the active backend, mainly for wiring and logging.
func (d *Dispatcher) Backend() Backend {
	return d.backend
}

// Dispatch executes the request and returns its classified Outcome.
// Retries are strictly sequential: no attempt starts before the
// previous result is classified.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) domain.Outcome {
	opts := d.normalizeOptions(req)
	req.Options = opts

	started := time.Now()
	d.sink.Emit(telemetry.RequestStarted{
		Client:    opts.Client,
		Operation: opts.Operation,
		Method:    req.Method,
		Path:      StripQuery(req.Path),
		Query:     encodeQuery(opts.Query),
		TenantID:  opts.TenantID,
		UserID:    opts.UserID,
		RequestID: opts.RequestID,
		At:        started,
	})
	telemetry.RequestsTotal.WithLabelValues(opts.Client, opts.Operation, req.Method).Inc()

	outcome := d.execute(ctx, req)

	duration := time.Since(started)
	telemetry.RequestDuration.WithLabelValues(opts.Client, opts.Operation).
		Observe(duration.Seconds())
	if !outcome.Success() {
		telemetry.RequestErrorsTotal.
			WithLabelValues(opts.Client, opts.Operation, outcome.Reason).Inc()
	}
	d.sink.Emit(telemetry.RequestCompleted{
		Client:      opts.Client,
		Operation:   opts.Operation,
		Method:      req.Method,
		Path:        StripQuery(req.Path),
		Query:       encodeQuery(opts.Query),
		TenantID:    opts.TenantID,
		UserID:      opts.UserID,
		RequestID:   opts.RequestID,
		Status:      outcome.Status,
		Success:     outcome.Success(),
		ErrorReason: outcome.Reason,
		Duration:    duration,
		At:          time.Now(),
	})

	return outcome
}

func (d *Dispatcher) execute(ctx context.Context, req Request) domain.Outcome {
	maxAttempts := 1
	if d.backend.Name() != BackendNameMock {
		maxAttempts = 1 + d.cfg.MaxRetryAttempts
	}

	var outcome domain.Outcome
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := d.backend.RoundTrip(ctx, req)

		if err != nil {
			outcome = Classify(0, nil, err)
		} else if d.backend.Name() == BackendNameMock && req.Options.Operation == "export" {
			// Export payloads must survive the round-trip byte for
			// byte; the caller re-serializes them for a file download.
			outcome = classifyExport(resp)
		} else {
			outcome = Classify(resp.Status, resp.Body, nil)
		}
		if resp != nil {
			outcome.ContentType = resp.ContentType
		}

		if !outcome.Transient() || attempt == maxAttempts {
			break
		}

		telemetry.RetriesTotal.WithLabelValues(req.Options.Operation).Inc()
		if err := d.sleep(ctx, backoffDelay(attempt)); err != nil {
			break
		}
	}

	return outcome
}

func classifyExport(resp *Response) domain.Outcome {
	if resp.Status >= 400 {
		return Classify(resp.Status, resp.Body, nil)
	}
	return domain.Outcome{
		Kind:   domain.OutcomeSuccess,
		Status: resp.Status,
		Body:   resp.Body,
		Raw:    resp.Body,
	}
}

func (d *Dispatcher) normalizeOptions(req Request) Options {
	opts := req.Options
	if opts.Client == "" {
		opts.Client = "console"
	}
	if opts.Operation == "" {
		opts.Operation = InferOperation(req.Method, req.Path)
	}
	if opts.RequestID == "" {
		opts.RequestID = uuid.New().String()
	}
	return opts
}

// backoffDelay returns 2^attempt seconds, with attempt counted from 1:
// 2s after the first failed attempt, then 4s, 8s, ...
func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

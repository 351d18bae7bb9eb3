// Package telemetry emits observability events and metrics for the
// gateway client. Delivery is best-effort: a sink that cannot accept
// an event never fails or delays the call that produced it.
package telemetry

import "time"

// Event is any observability event the client emits.
type Event interface {
	Kind() string
}

// RequestStarted is emitted before a request is dispatched.
type RequestStarted struct {
	Client    string    `json:"client"`
	Operation string    `json:"operation"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Query     string    `json:"query,omitempty"`
	TenantID  string    `json:"tenant_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	RequestID string    `json:"request_id"`
	At        time.Time `json:"at"`
}

func (RequestStarted) Kind() string { return "request_started" }

// RequestCompleted is emitted after a request's outcome is classified.
type RequestCompleted struct {
	Client      string        `json:"client"`
	Operation   string        `json:"operation"`
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	Query       string        `json:"query,omitempty"`
	TenantID    string        `json:"tenant_id,omitempty"`
	UserID      string        `json:"user_id,omitempty"`
	RequestID   string        `json:"request_id"`
	Status      int           `json:"status"`
	Success     bool          `json:"success"`
	ErrorReason string        `json:"error_reason,omitempty"`
	Duration    time.Duration `json:"duration"`
	At          time.Time     `json:"at"`
}

func (RequestCompleted) Kind() string { return "request_completed" }

// HealthCheckCompleted is emitted after a health probe resolves.
type HealthCheckCompleted struct {
	Result   string        `json:"result"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

func (HealthCheckCompleted) Kind() string { return "health_check_completed" }

package domain

import "time"

// HealthSnapshot is one observation of the gateway's health endpoint.
// CachedAt is stamped locally when the snapshot enters the health
// cache; concurrent callers sharing one probe see an identical value.
type HealthSnapshot struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	CachedAt   time.Time         `json:"cached_at"`
}

// AvailabilityState is the debounced view of gateway availability.
// It is owned exclusively by the availability tracker's loop; other
// components only ever read a copy.
type AvailabilityState struct {
	Healthy             bool      `json:"healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastChecked         time.Time `json:"last_checked"`
}

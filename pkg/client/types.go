package client

import "time"

// ServiceStatus mirrors the daemon's per-service lifecycle view.
type ServiceStatus struct {
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at"`
	Error     string    `json:"error,omitempty"`
}

// HealthRecord mirrors one entry of the daemon's latest health sweep.
type HealthRecord struct {
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Healthy   bool      `json:"healthy"`
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}

// JournalEntry mirrors one persisted lifecycle event.
type JournalEntry struct {
	ID         int64     `json:"ID"`
	OccurredAt time.Time `json:"OccurredAt"`
	Type       string    `json:"Type"`
	Kind       string    `json:"Kind"`
	FromStatus string    `json:"FromStatus"`
	ToStatus   string    `json:"ToStatus"`
	NoteType   string    `json:"NoteType"`
	Title      string    `json:"Title"`
	Body       string    `json:"Body"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

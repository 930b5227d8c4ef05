package models

import "time"

// Envelope is the persisted form of a queued job.
type Envelope struct {
	Body       Job   `json:"body"`
	EnqueuedAt int64 `json:"enqueued_at"` // Unix ms
}

// NewEnvelope wraps a job for queueing, stamping the enqueue time.
func NewEnvelope(job Job) Envelope {
	return Envelope{Body: job, EnqueuedAt: time.Now().UnixMilli()}
}

// DeadLetterEntry is a failed job moved to the dead list with error context.
type DeadLetterEntry struct {
	StreamID  string `json:"stream_id"`
	Body      Job    `json:"body"`
	Error     string `json:"error"`
	Timestamp int64  `json:"ts"` // Unix ms
}

package models

import "time"

// Dispatch statuses reported by the worker.
const (
	StatusSuccess = "success"
	StatusPartial = "partial_success"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Dispatch modes.
const (
	ModeStandard  = "standard"
	ModeStreaming = "streaming"
)

// DispatchResult is the structured outcome of one worker invocation.
type DispatchResult struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
	Detail string `json:"detail,omitempty"`
}

// DeliveryRecord is one archived terminal dispatch, kept for audit.
type DeliveryRecord struct {
	ID        string    `json:"id"` // ULID
	Identity  string    `json:"identity"`
	ChannelID string    `json:"channel_id,omitempty"`
	Status    string    `json:"status"`
	Mode      string    `json:"mode"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

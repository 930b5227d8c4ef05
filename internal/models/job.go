package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Channel types as reported in Slack event payloads.
const (
	ChannelTypeChannel = "channel"
	ChannelTypeGroup   = "group"
	ChannelTypeIM      = "im"
	ChannelTypeMPIM    = "mpim"
)

// Validation errors returned before a job is admitted to the queue.
var (
	ErrEmptyQuestion = errors.New("question_text is required")
	ErrNoDestination = errors.New("job needs a channel_id or response_url")
)

// Job is one question-to-answer unit of work. Jobs arrive from the Slack
// ingestion path and are queued until a worker invocation picks them up.
type Job struct {
	QuestionText string `json:"question_text"`
	ChannelID    string `json:"channel_id,omitempty"`
	ResponseURL  string `json:"response_url,omitempty"`
	ThreadTS     string `json:"thread_ts,omitempty"`
	ChannelType  string `json:"channel_type,omitempty"`

	// PlaceholderTS is the timestamp of an already-posted "thinking" message
	// that should be edited in place with the final answer.
	PlaceholderTS string `json:"placeholder_ts,omitempty"`

	// EventID is the Slack event timestamp; the basis of idempotency.
	EventID string `json:"event_id,omitempty"`

	UseStreaming bool `json:"use_streaming,omitempty"`
}

// Validate rejects jobs that must never reach the queue.
func (j *Job) Validate() error {
	if strings.TrimSpace(j.QuestionText) == "" {
		return ErrEmptyQuestion
	}
	if j.ChannelID == "" && j.ResponseURL == "" {
		return ErrNoDestination
	}
	return nil
}

// Identity returns the deduplication key for this job. Two deliveries of the
// same Slack event hash to the same identity.
func (j *Job) Identity() string {
	scope := j.ThreadTS
	if scope == "" {
		scope = j.ChannelID
	}
	sum := sha256.Sum256([]byte(scope + ":" + j.EventID))
	return hex.EncodeToString(sum[:])
}

// ReplyThreadTS returns the thread to reply into, or empty when threading is
// suppressed. Direct conversations (im/mpim) are never threaded.
func (j *Job) ReplyThreadTS() string {
	if j.ChannelType == ChannelTypeIM || j.ChannelType == ChannelTypeMPIM {
		return ""
	}
	return j.ThreadTS
}

// DecodeJob decodes an inbound payload into a canonical Job. Payloads arrive
// either as a bare Job or wrapped in a queue Envelope with a "body" field;
// anything that fits neither shape is rejected.
func DecodeJob(data []byte) (Job, error) {
	var env struct {
		Body *Job `json:"body"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return Job{}, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	if env.Body != nil {
		return *env.Body, nil
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("payload is not a job: %w", err)
	}
	if job.QuestionText == "" && job.ChannelID == "" && job.ResponseURL == "" {
		return Job{}, errors.New("payload is neither a job nor an envelope")
	}
	return job, nil
}

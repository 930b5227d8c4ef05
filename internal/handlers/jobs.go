package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/metrics"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/models"
)

// questionPreviewLen bounds question text in list/inspect responses.
const questionPreviewLen = 120

// EnqueueResponse represents the enqueue response.
type EnqueueResponse struct {
	Enqueued int64 `json:"enqueued"` // waiting depth after the append
}

// Enqueue validates a job and appends it to the waiting queue.
func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	job, err := models.DecodeJob(body)
	if err != nil {
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	depth, err := h.queue.Enqueue(r.Context(), job)
	if err != nil {
		if errors.Is(err, models.ErrEmptyQuestion) || errors.Is(err, models.ErrNoDestination) {
			h.Error(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.Error(w, http.StatusInternalServerError, "enqueue failed: "+err.Error())
		return
	}

	metrics.JobsEnqueued.Inc()
	h.JSON(w, http.StatusCreated, EnqueueResponse{Enqueued: depth})
}

// WaitingJob is one waiting queue entry in API responses.
type WaitingJob struct {
	QuestionText string `json:"question_text"`
	ChannelID    string `json:"channel_id,omitempty"`
	EventID      string `json:"event_id,omitempty"`
	EnqueuedAt   int64  `json:"enqueued_at,omitempty"`
}

// ListWaiting returns a window of the waiting queue with long fields
// truncated. Read-only.
func (h *Handler) ListWaiting(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.ParseInt(r.URL.Query().Get("offset"), 10, 64)
	count, _ := strconv.ParseInt(r.URL.Query().Get("count"), 10, 64)

	envs, err := h.queue.ListWaiting(r.Context(), offset, count)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "queue read failed: "+err.Error())
		return
	}

	jobs := make([]WaitingJob, len(envs))
	for i, env := range envs {
		jobs[i] = WaitingJob{
			QuestionText: truncate(env.Body.QuestionText, questionPreviewLen),
			ChannelID:    env.Body.ChannelID,
			EventID:      env.Body.EventID,
			EnqueuedAt:   env.EnqueuedAt,
		}
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// InjectResponse represents the manual injection response.
type InjectResponse struct {
	EventID string                `json:"event_id"`
	Result  models.DispatchResult `json:"result"`
}

// Inject enqueues a synthetic job and immediately runs one dispatch against
// the queue, exercising the queue-to-worker path end to end without a live
// Slack event.
func (h *Handler) Inject(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	job, err := models.DecodeJob(body)
	if err != nil {
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if job.EventID == "" {
		job.EventID = "synthetic-" + uuid.NewString()
	}

	if _, err := h.queue.Enqueue(r.Context(), job); err != nil {
		if errors.Is(err, models.ErrEmptyQuestion) || errors.Is(err, models.ErrNoDestination) {
			h.Error(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.Error(w, http.StatusInternalServerError, "enqueue failed: "+err.Error())
		return
	}
	metrics.JobsEnqueued.Inc()

	claim, err := h.queue.ClaimNext(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "queue claim failed: "+err.Error())
		return
	}
	if claim == nil {
		// Another worker raced us to it; that is a pass, not a failure.
		h.JSON(w, http.StatusOK, InjectResponse{
			EventID: job.EventID,
			Result:  models.DispatchResult{Status: models.StatusSkipped, Mode: models.ModeStandard, Detail: "claimed elsewhere"},
		})
		return
	}

	result, dispatchErr := h.dispatcher.Dispatch(r.Context(), claim.Envelope.Body)
	if dispatchErr != nil || result.Status == models.StatusError {
		dlqErr := dispatchErr
		if dlqErr == nil {
			dlqErr = errors.New(result.Detail)
		}
		if ackErr := h.queue.AckFailure(r.Context(), claim, dlqErr); ackErr != nil {
			h.logger.Error().Err(ackErr).Msg("dead-letter write failed")
		} else {
			metrics.DeadLetters.Inc()
		}
	} else if ackErr := h.queue.AckSuccess(r.Context(), claim); ackErr != nil {
		h.logger.Error().Err(ackErr).Msg("processing ack failed")
	}

	h.JSON(w, http.StatusOK, InjectResponse{EventID: job.EventID, Result: result})
}

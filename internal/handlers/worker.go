package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/metrics"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/models"
)

// Dispatch handles one worker invocation. The push scheduler delivers the
// queued envelope in the request body; operators may also call it with a
// bare job, or with no body at all to drain the next waiting job.
//
// A "health" query parameter short-circuits everything and answers a static
// healthy response without touching the queue; uptime probes hit the worker
// URL without spending a dispatch.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("health") != "" {
		h.JSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if len(bytes.TrimSpace(body)) > 0 {
		h.dispatchFromBody(w, r, body)
		return
	}
	h.dispatchFromQueue(w, r)
}

// dispatchFromBody processes a job delivered directly in the request body.
// Nothing is in processing for these, so failures surface as 5xx and rely on
// the caller's retry policy.
func (h *Handler) dispatchFromBody(w http.ResponseWriter, r *http.Request, body []byte) {
	job, err := models.DecodeJob(body)
	if err != nil {
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), job)
	if err != nil {
		// Validation failure: no side effects happened.
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	status := http.StatusOK
	if result.Status == models.StatusError {
		status = http.StatusInternalServerError
	}
	h.JSON(w, status, result)
}

// dispatchFromQueue claims the next waiting job and processes it. Terminal
// failures are dead-lettered, so the response is 200 either way; the push
// trigger must not redeliver a job we have already parked.
func (h *Handler) dispatchFromQueue(w http.ResponseWriter, r *http.Request) {
	claim, err := h.queue.ClaimNext(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "queue claim failed: "+err.Error())
		return
	}
	if claim == nil {
		h.JSON(w, http.StatusOK, map[string]string{"status": "empty"})
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), claim.Envelope.Body)
	if err != nil || result.Status == models.StatusError {
		dlqErr := err
		if dlqErr == nil {
			dlqErr = errors.New(result.Detail)
		}
		if ackErr := h.queue.AckFailure(r.Context(), claim, dlqErr); ackErr != nil {
			h.logger.Error().Err(ackErr).Msg("dead-letter write failed")
			h.Error(w, http.StatusInternalServerError, "dead-letter write failed")
			return
		}
		metrics.DeadLetters.Inc()
		h.JSON(w, http.StatusOK, result)
		return
	}

	if ackErr := h.queue.AckSuccess(r.Context(), claim); ackErr != nil {
		// The answer reached the user; the stale processing element is
		// recoverable via the stuck-job remediation.
		h.logger.Error().Err(ackErr).Msg("processing ack failed")
	}
	h.JSON(w, http.StatusOK, result)
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/metrics"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/models"
)

// InspectResponse reports queue depths and head samples.
type InspectResponse struct {
	Waiting    int64       `json:"waiting"`
	Processing int64       `json:"processing"`
	Dead       int64       `json:"dead"`
	HeadJob    *WaitingJob `json:"head_job,omitempty"`
	HeadDead   *DeadSample `json:"head_dead,omitempty"`
}

// DeadSample is a truncated dead-letter entry.
type DeadSample struct {
	StreamID     string `json:"stream_id"`
	QuestionText string `json:"question_text"`
	Error        string `json:"error"`
	Timestamp    int64  `json:"ts"`
}

// Inspect reports queue depths and a sample of waiting and dead heads, with
// long text fields truncated for readability. Read-only.
func (h *Handler) Inspect(w http.ResponseWriter, r *http.Request) {
	waiting, processing, dead, err := h.queue.Depths(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "queue read failed: "+err.Error())
		return
	}

	resp := InspectResponse{Waiting: waiting, Processing: processing, Dead: dead}

	if env, err := h.queue.SampleWaiting(r.Context()); err == nil && env != nil {
		resp.HeadJob = &WaitingJob{
			QuestionText: truncate(env.Body.QuestionText, questionPreviewLen),
			ChannelID:    env.Body.ChannelID,
			EventID:      env.Body.EventID,
			EnqueuedAt:   env.EnqueuedAt,
		}
	}
	if entry, err := h.queue.SampleDead(r.Context()); err == nil && entry != nil {
		resp.HeadDead = &DeadSample{
			StreamID:     entry.StreamID,
			QuestionText: truncate(entry.Body.QuestionText, questionPreviewLen),
			Error:        truncate(entry.Error, 200),
			Timestamp:    entry.Timestamp,
		}
	}

	h.JSON(w, http.StatusOK, resp)
}

// Validate checks that timestamp-shaped fields on the head waiting job look
// like Slack timestamps ("1700000000.123456": seconds, a dot, a sub-second
// fraction). Malformed upstream data here causes silent delivery failures
// later, so operators can catch it before it does.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	env, err := h.queue.SampleWaiting(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "queue read failed: "+err.Error())
		return
	}
	if env == nil {
		h.JSON(w, http.StatusOK, map[string]string{"status": "queue empty"})
		return
	}

	fields := map[string]string{
		"event_id":       checkSlackTimestamp(env.Body.EventID),
		"thread_ts":      checkSlackTimestamp(env.Body.ThreadTS),
		"placeholder_ts": checkSlackTimestamp(env.Body.PlaceholderTS),
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"fields": fields})
}

func checkSlackTimestamp(ts string) string {
	if ts == "" {
		return "not_present"
	}
	dot := strings.Index(ts, ".")
	if dot <= 0 || dot == len(ts)-1 {
		return "invalid"
	}
	if _, err := strconv.ParseFloat(ts, 64); err != nil {
		return "invalid"
	}
	return "valid"
}

// Deliveries returns recent archived dispatch records.
func (h *Handler) Deliveries(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		h.Error(w, http.StatusNotFound, "delivery archive not configured")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	recs, err := h.archive.RecentDeliveries(r.Context(), limit)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "archive read failed: "+err.Error())
		return
	}
	if recs == nil {
		recs = []models.DeliveryRecord{}
	}

	total, err := h.archive.CountDeliveries(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "archive read failed: "+err.Error())
		return
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{
		"deliveries": recs,
		"total":      total,
	})
}

// AdminRequest names an administrative operation.
type AdminRequest struct {
	Op string `json:"op"`
}

// Admin runs operator remediation: moving stuck processing jobs back to
// waiting, or flushing the queue entirely. Both are gated behind the shared
// secret by the router.
func (h *Handler) Admin(w http.ResponseWriter, r *http.Request) {
	var req AdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch req.Op {
	case "recover_stuck_jobs":
		recovered, err := h.queue.RecoverStuck(r.Context())
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "recover failed: "+err.Error())
			return
		}
		metrics.JobsRecovered.Add(float64(recovered))
		h.logger.Info().Int("recovered", recovered).Msg("stuck jobs recovered")
		h.JSON(w, http.StatusOK, map[string]interface{}{"op": req.Op, "recovered": recovered})

	case "flush_queue":
		if err := h.queue.Flush(r.Context()); err != nil {
			h.Error(w, http.StatusInternalServerError, "flush failed: "+err.Error())
			return
		}
		h.logger.Warn().Msg("queue flushed")
		h.JSON(w, http.StatusOK, map[string]interface{}{"op": req.Op, "flushed": true})

	default:
		h.Error(w, http.StatusBadRequest, "unknown op: "+req.Op)
	}
}

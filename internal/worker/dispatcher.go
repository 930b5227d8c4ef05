// Package worker turns one claimed job into one delivered answer. Each
// dispatch is a short-lived invocation triggered by the push scheduler or an
// operator; the dispatcher holds no state between invocations.
package worker

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/dedup"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/engine"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/metrics"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/models"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/slackdelivery"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/store"
)

// WarningText is the fixed user-visible notice posted when answer generation
// or delivery fails. Users never get a silent timeout.
const WarningText = ":warning: I couldn't finish answering that question. Please try asking again."

// Config controls dispatch behavior.
type Config struct {
	// StreamingEnabled gates streaming mode for the whole deployment.
	StreamingEnabled bool

	// UpdateInterval is the minimum time between streamed message edits.
	UpdateInterval time.Duration

	// FlushWindow is the final-flush threshold after the stream ends.
	FlushWindow time.Duration
}

// Dispatcher runs the per-invocation state machine: validate, dedup check,
// generate, deliver, fall back on failure.
type Dispatcher struct {
	guard    dedup.Guard
	engine   engine.Engine
	delivery *slackdelivery.Client
	archive  store.Archive // may be nil
	logger   zerolog.Logger
	cfg      Config
}

// New creates a dispatcher.
func New(guard dedup.Guard, eng engine.Engine, delivery *slackdelivery.Client, archive store.Archive, logger zerolog.Logger, cfg Config) *Dispatcher {
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = DefaultUpdateInterval
	}
	if cfg.FlushWindow <= 0 {
		cfg.FlushWindow = DefaultFlushWindow
	}
	return &Dispatcher{
		guard:    guard,
		engine:   eng,
		delivery: delivery,
		archive:  archive,
		logger:   logger,
		cfg:      cfg,
	}
}

// Dispatch processes one job end to end and returns a structured result.
// The returned error is non-nil only for validation failures, which have no
// side effects; all other failures are folded into the result after the
// user-visible fallback has been attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, job models.Job) (models.DispatchResult, error) {
	if err := job.Validate(); err != nil {
		return models.DispatchResult{Status: models.StatusError, Mode: models.ModeStandard, Detail: err.Error()}, err
	}

	// Mark as processed before generation starts to close the duplicate-
	// delivery race as tightly as possible.
	if job.EventID != "" && !d.guard.ShouldProcess(ctx, job.Identity()) {
		d.logger.Info().
			Str("event_id", job.EventID).
			Str("channel", job.ChannelID).
			Msg("duplicate job suppressed")
		return d.finish(ctx, job, models.DispatchResult{Status: models.StatusSkipped, Mode: models.ModeStandard})
	}

	if d.streamingMode(job) {
		return d.finish(ctx, job, d.dispatchStreaming(ctx, job))
	}
	return d.finish(ctx, job, d.dispatchStandard(ctx, job))
}

// streamingMode is true only when the job asked for streaming, a placeholder
// exists to edit in place, and the deployment enables it.
func (d *Dispatcher) streamingMode(job models.Job) bool {
	return d.cfg.StreamingEnabled && job.UseStreaming && job.PlaceholderTS != "" && job.ChannelID != ""
}

func (d *Dispatcher) dispatchStandard(ctx context.Context, job models.Job) models.DispatchResult {
	start := time.Now()
	answer, err := d.engine.Generate(ctx, job.QuestionText)
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		d.logger.Error().Err(err).
			Str("event_id", job.EventID).
			Msg("answer generation failed")
		return d.failWithWarning(ctx, job, models.ModeStandard, err)
	}

	// Placeholder presence decides the branch before the channel id does: a
	// job with a placeholder but no postable channel is still deliverable.
	// A channel post needs the bot token; without one, a job that also
	// carries a response_url is delivered through the webhook instead.
	var deliverErr error
	switch {
	case job.PlaceholderTS != "":
		deliverErr = d.delivery.UpdateAnswer(ctx, job.ChannelID, job.PlaceholderTS, answer)
	case job.ChannelID != "" && (d.delivery.HasCredential() || job.ResponseURL == ""):
		_, deliverErr = d.delivery.PostAnswer(ctx, job.ChannelID, answer, job.ReplyThreadTS())
	default:
		deliverErr = d.delivery.PostToResponseURL(ctx, job.ResponseURL, answer)
	}
	if deliverErr != nil {
		d.logger.Error().Err(deliverErr).
			Str("event_id", job.EventID).
			Str("channel", job.ChannelID).
			Msg("answer delivery failed")
		return d.failWithWarning(ctx, job, models.ModeStandard, deliverErr)
	}

	return models.DispatchResult{Status: models.StatusSuccess, Mode: models.ModeStandard}
}

func (d *Dispatcher) dispatchStreaming(ctx context.Context, job models.Job) models.DispatchResult {
	streamer := NewStreamer(d.delivery, job.ChannelID, job.PlaceholderTS, d.cfg.UpdateInterval, d.cfg.FlushWindow)

	start := time.Now()
	err := d.engine.GenerateStreaming(ctx, job.QuestionText, func(content string) error {
		return streamer.HandleChunk(ctx, content)
	})
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		d.logger.Error().Err(err).
			Str("event_id", job.EventID).
			Msg("streaming generation failed")
		if streamer.FailPartial(ctx) {
			return models.DispatchResult{Status: models.StatusPartial, Mode: models.ModeStreaming, Detail: err.Error()}
		}
		return models.DispatchResult{Status: models.StatusError, Mode: models.ModeStreaming, Detail: err.Error()}
	}

	if err := streamer.Finish(ctx); err != nil {
		// Earlier updates already reached the user; only the tail is stale.
		d.logger.Error().Err(err).
			Str("event_id", job.EventID).
			Msg("final streaming flush failed")
		return models.DispatchResult{Status: models.StatusPartial, Mode: models.ModeStreaming, Detail: err.Error()}
	}
	return models.DispatchResult{Status: models.StatusSuccess, Mode: models.ModeStreaming}
}

// failWithWarning attempts the user-visible fallback, then reports the
// original failure. The fallback targets the placeholder when one exists,
// else the response_url; it never posts a fresh channel message.
func (d *Dispatcher) failWithWarning(ctx context.Context, job models.Job, mode string, cause error) models.DispatchResult {
	var noticeErr error
	switch {
	case job.PlaceholderTS != "":
		noticeErr = d.delivery.UpdateAnswer(ctx, job.ChannelID, job.PlaceholderTS, WarningText)
	case job.ResponseURL != "":
		noticeErr = d.delivery.PostToResponseURL(ctx, job.ResponseURL, WarningText)
	}
	if noticeErr != nil {
		d.logger.Error().Err(noticeErr).
			Str("event_id", job.EventID).
			Msg("failure notice delivery failed")
	}
	return models.DispatchResult{Status: models.StatusError, Mode: mode, Detail: cause.Error()}
}

// finish records metrics and the archive row for a terminal result.
func (d *Dispatcher) finish(ctx context.Context, job models.Job, res models.DispatchResult) (models.DispatchResult, error) {
	metrics.JobsProcessed.WithLabelValues(res.Status, res.Mode).Inc()

	if d.archive != nil {
		rec := &models.DeliveryRecord{
			ID:        ulid.Make().String(),
			Identity:  job.Identity(),
			ChannelID: job.ChannelID,
			Status:    res.Status,
			Mode:      res.Mode,
			Error:     res.Detail,
			CreatedAt: time.Now().UTC(),
		}
		if err := d.archive.RecordDelivery(ctx, rec); err != nil {
			d.logger.Warn().Err(err).Msg("delivery archive write failed")
		}
	}
	return res, nil
}

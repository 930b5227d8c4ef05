package worker

import (
	"context"
	"time"

	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/metrics"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/slackdelivery"
)

const (
	// DefaultUpdateInterval is the minimum spacing between edits to the
	// placeholder message. Slack throttles edits to the same message, so
	// updating on every chunk would itself trigger rate-limit retries.
	DefaultUpdateInterval = 2 * time.Second

	// DefaultFlushWindow: after the stream ends, a final edit is pushed only
	// when the last one is at least this old.
	DefaultFlushWindow = time.Second

	// thinkingSentinel is the engine's "still working" placeholder chunk.
	// It never replaces real content.
	thinkingSentinel = "_Thinking..._"
)

// Streamer throttles in-place updates of the placeholder message while an
// answer is assembled incrementally.
type Streamer struct {
	delivery  *slackdelivery.Client
	channelID string
	messageTS string
	interval  time.Duration
	flush     time.Duration

	now func() time.Time // test hook

	lastUpdate  time.Time
	lastContent string // newest content seen from the engine
	flushed     string // content most recently pushed to Slack
	updates     int
}

// NewStreamer creates a throttled updater for one placeholder message.
func NewStreamer(delivery *slackdelivery.Client, channelID, messageTS string, interval, flush time.Duration) *Streamer {
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	if flush <= 0 {
		flush = DefaultFlushWindow
	}
	return &Streamer{
		delivery:  delivery,
		channelID: channelID,
		messageTS: messageTS,
		interval:  interval,
		flush:     flush,
		now:       time.Now,
	}
}

// HandleChunk receives the answer content assembled so far and pushes an
// in-place update when the throttle interval has elapsed. Empty and sentinel
// chunks are ignored.
func (s *Streamer) HandleChunk(ctx context.Context, content string) error {
	if content == "" || content == thinkingSentinel {
		return nil
	}
	s.lastContent = content

	if !s.lastUpdate.IsZero() && s.now().Sub(s.lastUpdate) < s.interval {
		return nil
	}
	return s.push(ctx, content)
}

// Finish pushes one final update for unflushed tail content, provided the
// previous edit is older than the flush window.
func (s *Streamer) Finish(ctx context.Context) error {
	if s.lastContent == "" || s.lastContent == s.flushed {
		return nil
	}
	if !s.lastUpdate.IsZero() && s.now().Sub(s.lastUpdate) < s.flush {
		return nil
	}
	return s.push(ctx, s.lastContent)
}

// FailPartial delivers whatever content was captured before a mid-stream
// failure, marked as possibly incomplete; with nothing captured it delivers
// the standard warning. Reports whether partial content reached the user.
func (s *Streamer) FailPartial(ctx context.Context) bool {
	if s.lastContent == "" {
		_ = s.push(ctx, WarningText)
		return false
	}
	return s.push(ctx, s.lastContent+"\n\n_(response may be incomplete)_") == nil
}

// Updates reports how many edits were pushed.
func (s *Streamer) Updates() int {
	return s.updates
}

func (s *Streamer) push(ctx context.Context, content string) error {
	if err := s.delivery.UpdateAnswer(ctx, s.channelID, s.messageTS, content); err != nil {
		return err
	}
	s.flushed = content
	s.lastUpdate = s.now()
	s.updates++
	metrics.StreamingUpdates.Inc()
	return nil
}

// Package slackdelivery wraps all outbound Slack calls with throttle-aware
// retry. Slack enforces roughly one message per second per channel; when it
// reports a rate limit we wait slightly longer than that interval and try
// again. Any non-throttle error propagates immediately: retrying an invalid
// channel only burns the worker's execution budget.
package slackdelivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/metrics"
)

const (
	// DefaultRetryDelay sits just above Slack's per-channel message interval.
	DefaultRetryDelay = 1200 * time.Millisecond

	// DefaultMaxAttempts bounds throttle retries per call.
	DefaultMaxAttempts = 3
)

// API is the subset of the Slack Web API the worker uses. *slack.Client
// satisfies it; tests substitute fakes.
type API interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
}

// WebhookFunc posts a message to a Slack response_url.
type WebhookFunc func(ctx context.Context, url string, msg *slack.WebhookMessage) error

// Error is returned once throttle retries are exhausted.
type Error struct {
	Op       string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("slack %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Client is the rate-limited delivery client.
type Client struct {
	api          API
	webhook      WebhookFunc
	credentialed bool
	retryDelay   time.Duration
	maxAttempts  int
	logger       zerolog.Logger
}

// New creates a delivery client backed by the real Slack Web API. An empty
// token leaves the client uncredentialed: response_url delivery still works,
// and callers route Web API calls away via HasCredential.
func New(token string, logger zerolog.Logger) *Client {
	c := NewWithAPI(slack.New(token), slack.PostWebhookContext, logger)
	c.credentialed = token != ""
	return c
}

// NewWithAPI creates a delivery client with an injected API (used by tests).
func NewWithAPI(api API, webhook WebhookFunc, logger zerolog.Logger) *Client {
	return &Client{
		api:          api,
		webhook:      webhook,
		credentialed: true,
		retryDelay:   DefaultRetryDelay,
		maxAttempts:  DefaultMaxAttempts,
		logger:       logger,
	}
}

// HasCredential reports whether a bot token is configured. Web API calls
// (chat.postMessage, chat.update) need one; response_url webhooks do not.
func (c *Client) HasCredential() bool {
	return c.credentialed
}

// SetCredentialed overrides credential presence (used by tests).
func (c *Client) SetCredentialed(present bool) {
	c.credentialed = present
}

// SetRetryPolicy overrides the fixed retry interval and attempt bound.
func (c *Client) SetRetryPolicy(delay time.Duration, maxAttempts int) {
	if delay > 0 {
		c.retryDelay = delay
	}
	if maxAttempts > 0 {
		c.maxAttempts = maxAttempts
	}
}

// PostAnswer posts a new message, optionally threaded, and returns its
// timestamp.
func (c *Client) PostAnswer(ctx context.Context, channelID, text, threadTS string) (string, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}

	var ts string
	err := c.withRetry(ctx, "chat.postMessage", func() error {
		var err error
		_, ts, err = c.api.PostMessageContext(ctx, channelID, opts...)
		return err
	})
	return ts, err
}

// UpdateAnswer edits an existing message in place.
func (c *Client) UpdateAnswer(ctx context.Context, channelID, timestamp, text string) error {
	return c.withRetry(ctx, "chat.update", func() error {
		_, _, _, err := c.api.UpdateMessageContext(ctx, channelID, timestamp,
			slack.MsgOptionText(text, false))
		return err
	})
}

// PostToResponseURL delivers text through a response_url webhook. Used when
// no bot token is configured for the destination.
func (c *Client) PostToResponseURL(ctx context.Context, responseURL, text string) error {
	return c.withRetry(ctx, "response_url", func() error {
		return c.webhook(ctx, responseURL, &slack.WebhookMessage{
			Text:         text,
			ResponseType: "in_channel",
		})
	})
}

// withRetry runs fn, sleeping a fixed interval and retrying only when Slack
// reports throttling. The interval is fixed, not exponential: the limit
// itself is fixed-rate per destination.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var rle *slack.RateLimitedError
		if !errors.As(lastErr, &rle) {
			return lastErr
		}

		metrics.DeliveryRetries.WithLabelValues(op).Inc()
		c.logger.Warn().
			Str("op", op).
			Int("attempt", attempt).
			Dur("delay", c.retryDelay).
			Msg("slack rate limited, backing off")

		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return &Error{Op: op, Attempts: c.maxAttempts, Err: lastErr}
}

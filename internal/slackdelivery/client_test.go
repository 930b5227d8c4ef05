package slackdelivery

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

// fakeAPI fails the first failures calls with failErr, then succeeds. Message
// options are flattened with slack.UnsafeApplyMsgOptions so tests can inspect them.
type fakeAPI struct {
	failures int
	failErr  error

	calls      int
	lastValues url.Values
}

func (f *fakeAPI) apply(channelID string, options ...slack.MsgOption) error {
	f.calls++
	_, values, err := slack.UnsafeApplyMsgOptions("x-token", channelID, "https://slack.com/api/", options...)
	if err != nil {
		return err
	}
	f.lastValues = values
	if f.calls <= f.failures {
		return f.failErr
	}
	return nil
}

func (f *fakeAPI) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	if err := f.apply(channelID, options...); err != nil {
		return "", "", err
	}
	return channelID, "200.1", nil
}

func (f *fakeAPI) UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error) {
	if err := f.apply(channelID, options...); err != nil {
		return "", "", "", err
	}
	return channelID, timestamp, "", nil
}

func newTestClient(api *fakeAPI, webhook WebhookFunc) *Client {
	c := NewWithAPI(api, webhook, zerolog.Nop())
	c.SetRetryPolicy(time.Millisecond, 3)
	return c
}

func TestPostAnswerThreaded(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(api, nil)

	ts, err := c.PostAnswer(context.Background(), "C1", "X is Y.", "99.5")
	if err != nil {
		t.Fatal(err)
	}
	if ts != "200.1" {
		t.Fatalf("expected message timestamp, got %q", ts)
	}
	if got := api.lastValues.Get("thread_ts"); got != "99.5" {
		t.Fatalf("expected thread_ts 99.5, got %q", got)
	}
	if got := api.lastValues.Get("text"); got != "X is Y." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestPostAnswerUnthreaded(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(api, nil)

	if _, err := c.PostAnswer(context.Background(), "D1", "X is Y.", ""); err != nil {
		t.Fatal(err)
	}
	if got := api.lastValues.Get("thread_ts"); got != "" {
		t.Fatalf("expected no thread_ts, got %q", got)
	}
}

func TestRetryOnRateLimit(t *testing.T) {
	api := &fakeAPI{failures: 2, failErr: &slack.RateLimitedError{RetryAfter: time.Second}}
	c := newTestClient(api, nil)

	ts, err := c.PostAnswer(context.Background(), "C1", "hello", "")
	if err != nil {
		t.Fatal(err)
	}
	if ts != "200.1" {
		t.Fatalf("expected success after retries, got ts %q", ts)
	}
	if api.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", api.calls)
	}
}

func TestNonThrottleErrorPropagatesImmediately(t *testing.T) {
	chErr := errors.New("channel_not_found")
	api := &fakeAPI{failures: 10, failErr: chErr}
	c := newTestClient(api, nil)

	_, err := c.PostAnswer(context.Background(), "C404", "hello", "")
	if !errors.Is(err, chErr) {
		t.Fatalf("expected underlying error, got %v", err)
	}
	if api.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", api.calls)
	}

	var de *Error
	if errors.As(err, &de) {
		t.Fatal("non-throttle failures should not be wrapped as retry exhaustion")
	}
}

func TestRetryExhaustion(t *testing.T) {
	api := &fakeAPI{failures: 10, failErr: &slack.RateLimitedError{RetryAfter: time.Second}}
	c := newTestClient(api, nil)

	err := c.UpdateAnswer(context.Background(), "C1", "100.2", "final")
	if err == nil {
		t.Fatal("expected exhaustion error")
	}

	var de *Error
	if !errors.As(err, &de) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if de.Op != "chat.update" || de.Attempts != 3 {
		t.Fatalf("unexpected exhaustion detail: %+v", de)
	}

	var rle *slack.RateLimitedError
	if !errors.As(err, &rle) {
		t.Fatal("exhaustion error should unwrap to the throttle error")
	}
	if api.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", api.calls)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	api := &fakeAPI{failures: 10, failErr: &slack.RateLimitedError{RetryAfter: time.Second}}
	c := NewWithAPI(api, nil, zerolog.Nop())
	c.SetRetryPolicy(time.Minute, 3)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.PostAnswer(ctx, "C1", "hello", "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestCredentialPresence(t *testing.T) {
	if New("", zerolog.Nop()).HasCredential() {
		t.Fatal("empty token must leave the client uncredentialed")
	}
	if !New("xoxb-token", zerolog.Nop()).HasCredential() {
		t.Fatal("a configured token should credential the client")
	}

	c := newTestClient(&fakeAPI{}, nil)
	if !c.HasCredential() {
		t.Fatal("injected APIs are treated as credentialed")
	}
	c.SetCredentialed(false)
	if c.HasCredential() {
		t.Fatal("override not applied")
	}
}

func TestPostToResponseURL(t *testing.T) {
	var gotURL string
	var gotMsg *slack.WebhookMessage
	webhook := func(ctx context.Context, url string, msg *slack.WebhookMessage) error {
		gotURL = url
		gotMsg = msg
		return nil
	}
	c := newTestClient(&fakeAPI{}, webhook)

	if err := c.PostToResponseURL(context.Background(), "https://hooks.slack.com/respond/T1", "X is Y."); err != nil {
		t.Fatal(err)
	}
	if gotURL != "https://hooks.slack.com/respond/T1" {
		t.Fatalf("unexpected url %q", gotURL)
	}
	if gotMsg.Text != "X is Y." || gotMsg.ResponseType != "in_channel" {
		t.Fatalf("unexpected webhook message: %+v", gotMsg)
	}
}

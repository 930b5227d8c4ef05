package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/slackdelivery"
)

func newTestStreamer(t *testing.T, interval, flush time.Duration) (*Streamer, *fakeSlack, *time.Time) {
	t.Helper()
	fs := &fakeSlack{}
	delivery := slackdelivery.NewWithAPI(fs, nil, zerolog.Nop())

	s := NewStreamer(delivery, "C1", "100.2", interval, flush)
	clock := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	return s, fs, &clock
}

func TestStreamerThrottlesUpdates(t *testing.T) {
	s, fs, clock := newTestStreamer(t, 2*time.Second, time.Second)
	ctx := context.Background()

	// Ten chunks arriving every 500ms; only every fourth crosses the
	// two-second interval after the immediate first edit.
	content := ""
	for i := 0; i < 10; i++ {
		content = fmt.Sprintf("%sword%d ", content, i)
		if err := s.HandleChunk(ctx, content); err != nil {
			t.Fatal(err)
		}
		*clock = clock.Add(500 * time.Millisecond)
	}

	if s.Updates() != 3 {
		t.Fatalf("expected 3 throttled updates, got %d", s.Updates())
	}

	// The stream spanned 4.5s: never more than ceil(4.5s / 2s) + 1 edits
	// including the final flush.
	if err := s.Finish(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Updates() > 4 {
		t.Fatalf("update budget exceeded: %d edits", s.Updates())
	}

	final := fs.updates[len(fs.updates)-1]
	if got := final.Values.Get("text"); got != content {
		t.Fatalf("final edit should carry all content, got %q", got)
	}
}

func TestStreamerFirstChunkImmediate(t *testing.T) {
	s, fs, _ := newTestStreamer(t, 2*time.Second, time.Second)

	if err := s.HandleChunk(context.Background(), "X"); err != nil {
		t.Fatal(err)
	}
	if len(fs.updates) != 1 {
		t.Fatalf("first chunk should flush immediately, got %d updates", len(fs.updates))
	}
}

func TestStreamerIgnoresSentinelAndEmpty(t *testing.T) {
	s, fs, _ := newTestStreamer(t, 2*time.Second, time.Second)
	ctx := context.Background()

	if err := s.HandleChunk(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if err := s.HandleChunk(ctx, thinkingSentinel); err != nil {
		t.Fatal(err)
	}
	if len(fs.updates) != 0 {
		t.Fatalf("sentinel chunks must not reach Slack, got %d updates", len(fs.updates))
	}

	if err := s.Finish(ctx); err != nil {
		t.Fatal(err)
	}
	if len(fs.updates) != 0 {
		t.Fatal("finish with no real content must not edit the message")
	}
}

func TestStreamerFinishSkipsRecentEdit(t *testing.T) {
	s, fs, clock := newTestStreamer(t, 2*time.Second, time.Second)
	ctx := context.Background()

	if err := s.HandleChunk(ctx, "X"); err != nil {
		t.Fatal(err)
	}
	*clock = clock.Add(100 * time.Millisecond)
	if err := s.HandleChunk(ctx, "X is Y."); err != nil {
		t.Fatal(err)
	}

	// The only edit is 600ms old, inside the one-second flush window.
	*clock = clock.Add(500 * time.Millisecond)
	if err := s.Finish(ctx); err != nil {
		t.Fatal(err)
	}
	if len(fs.updates) != 1 {
		t.Fatalf("finish inside the flush window must not edit again, got %d updates", len(fs.updates))
	}
}

func TestStreamerFinishIdempotent(t *testing.T) {
	s, fs, clock := newTestStreamer(t, 2*time.Second, time.Second)
	ctx := context.Background()

	if err := s.HandleChunk(ctx, "X is Y."); err != nil {
		t.Fatal(err)
	}
	*clock = clock.Add(5 * time.Second)

	if err := s.Finish(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Finish(ctx); err != nil {
		t.Fatal(err)
	}
	if len(fs.updates) != 1 {
		t.Fatalf("already-flushed content must not be re-sent, got %d updates", len(fs.updates))
	}
}

func TestStreamerFailPartialWithContent(t *testing.T) {
	s, fs, _ := newTestStreamer(t, 2*time.Second, time.Second)
	ctx := context.Background()

	if err := s.HandleChunk(ctx, "partial answer"); err != nil {
		t.Fatal(err)
	}
	if !s.FailPartial(ctx) {
		t.Fatal("partial delivery should report success")
	}

	final := fs.updates[len(fs.updates)-1]
	want := "partial answer\n\n_(response may be incomplete)_"
	if got := final.Values.Get("text"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestStreamerFailPartialWithoutContent(t *testing.T) {
	s, fs, _ := newTestStreamer(t, 2*time.Second, time.Second)

	if s.FailPartial(context.Background()) {
		t.Fatal("no captured content means no partial delivery")
	}
	if len(fs.updates) != 1 || fs.updates[0].Values.Get("text") != WarningText {
		t.Fatalf("expected warning edit, got %+v", fs.updates)
	}
}

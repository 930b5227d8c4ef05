package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/dedup"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/handlers"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/slackdelivery"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/store"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/worker"
)

type staticEngine struct{}

func (staticEngine) Generate(ctx context.Context, question string) (string, error) {
	return "X is Y.", nil
}

func (staticEngine) GenerateStreaming(ctx context.Context, question string, onChunk func(string) error) error {
	return onChunk("X is Y.")
}

type noopSlack struct{}

func (noopSlack) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	return channelID, "200.1", nil
}

func (noopSlack) UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error) {
	return channelID, timestamp, "", nil
}

func newTestRouter(t *testing.T, adminSecret string) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	queue := store.NewRedisStoreWithClient(client)
	delivery := slackdelivery.NewWithAPI(noopSlack{}, func(ctx context.Context, url string, msg *slack.WebhookMessage) error {
		return nil
	}, zerolog.Nop())
	disp := worker.New(dedup.NewMemoryGuard(time.Hour), staticEngine{}, delivery, nil, zerolog.Nop(), worker.Config{})
	h := handlers.NewHandler(queue, nil, disp, zerolog.Nop())
	return NewRouter(zerolog.Nop(), h, adminSecret)
}

func TestPublicRoutes(t *testing.T) {
	router := newTestRouter(t, "s3cret")

	for _, path := range []string{"/", "/health", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestWorkerRouteIsPublic(t *testing.T) {
	router := newTestRouter(t, "s3cret")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/worker?health=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestDiagnosticsRequireSecret(t *testing.T) {
	router := newTestRouter(t, "s3cret")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/diag/inspect", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/diag/inspect", nil)
	req.Header.Set("X-Admin-Secret", "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong secret, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/diag/inspect", nil)
	req.Header.Set("X-Admin-Secret", "s3cret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with secret header, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/diag/inspect?secret=s3cret", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with secret query param, got %d", rec.Code)
	}
}

func TestDiagnosticsLockedWithoutConfiguredSecret(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/diag/inspect", nil)
	req.Header.Set("X-Admin-Secret", "anything")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when no secret is configured, got %d", rec.Code)
	}
}

func TestAdminRequiresSecret(t *testing.T) {
	router := newTestRouter(t, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/admin", strings.NewReader(`{"op":"flush_queue"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin", strings.NewReader(`{"op":"flush_queue"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Secret", "s3cret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with secret, got %d", rec.Code)
	}
}

func TestRejectsNonJSONBody(t *testing.T) {
	router := newTestRouter(t, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader("question_text=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Admin-Secret", "s3cret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}
}

func TestRejectsOversizedBody(t *testing.T) {
	router := newTestRouter(t, "s3cret")

	big := strings.NewReader(`{"question_text":"` + strings.Repeat("x", 70*1024) + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/jobs", big)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Secret", "s3cret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

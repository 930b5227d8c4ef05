package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/models"
)

// Queue list keys. Each element is a JSON-serialized Envelope, except dead,
// which holds DeadLetterEntry payloads.
const (
	waitingKey    = "queue:waiting"
	processingKey = "queue:processing"
	deadKey       = "queue:dead"
)

// RedisStore owns the durable job lifecycle: waiting -> processing ->
// {removed | dead | recovered-to-waiting}. All mutation goes through its
// atomic list primitives; callers never read-then-write.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client (used by tests).
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for collaborators that share the
// connection (idempotency guard, depth poller).
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Claim is one job popped from waiting. The raw payload is retained so acks
// can remove exactly this element from processing.
type Claim struct {
	Envelope models.Envelope
	raw      string
}

// Enqueue appends a job to the tail of waiting and returns the new depth.
// A failed append is always a returned error, never swallowed.
func (s *RedisStore) Enqueue(ctx context.Context, job models.Job) (int64, error) {
	if err := job.Validate(); err != nil {
		return 0, err
	}

	data, err := json.Marshal(models.NewEnvelope(job))
	if err != nil {
		return 0, err
	}

	return s.client.RPush(ctx, waitingKey, data).Result()
}

// ClaimNext atomically moves one envelope from the head of waiting into
// processing. Returns nil when the queue is empty. The move is single-pop
// but not exclusive: delivery is at-least-once, not exactly-once.
func (s *RedisStore) ClaimNext(ctx context.Context) (*Claim, error) {
	raw, err := s.client.LMove(ctx, waitingKey, processingKey, "LEFT", "RIGHT").Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var env models.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil || env.Body.QuestionText == "" {
		// Upstream components may enqueue bare jobs; normalize here, once.
		job, decErr := models.DecodeJob([]byte(raw))
		if decErr != nil {
			// Malformed element: park it in dead rather than wedging the head.
			_ = s.deadLetter(ctx, raw, models.Job{}, "undecodable queue element")
			return nil, decErr
		}
		env = models.Envelope{Body: job}
	}

	return &Claim{Envelope: env, raw: raw}, nil
}

// AckSuccess removes a processed job from processing. Successful jobs are not
// re-tracked anywhere besides the optional delivery archive.
func (s *RedisStore) AckSuccess(ctx context.Context, c *Claim) error {
	return s.client.LRem(ctx, processingKey, 1, c.raw).Err()
}

// AckFailure writes a dead-letter entry and removes the job from processing.
func (s *RedisStore) AckFailure(ctx context.Context, c *Claim, jobErr error) error {
	msg := "unknown error"
	if jobErr != nil {
		msg = jobErr.Error()
	}
	return s.deadLetter(ctx, c.raw, c.Envelope.Body, msg)
}

func (s *RedisStore) deadLetter(ctx context.Context, raw string, job models.Job, errMsg string) error {
	entry := models.DeadLetterEntry{
		StreamID:  ulid.Make().String(),
		Body:      job,
		Error:     errMsg,
		Timestamp: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.LRem(ctx, processingKey, 1, raw)
	pipe.RPush(ctx, deadKey, data)
	_, err = pipe.Exec(ctx)
	return err
}

// ListWaiting returns up to count envelopes from waiting, starting at offset.
// Read-only; undecodable elements are skipped.
func (s *RedisStore) ListWaiting(ctx context.Context, offset, count int64) ([]models.Envelope, error) {
	if count <= 0 {
		count = 10
	}
	results, err := s.client.LRange(ctx, waitingKey, offset, offset+count-1).Result()
	if err != nil {
		return nil, err
	}

	envs := make([]models.Envelope, 0, len(results))
	for _, data := range results {
		var env models.Envelope
		if err := json.Unmarshal([]byte(data), &env); err != nil {
			continue
		}
		envs = append(envs, env)
	}
	return envs, nil
}

// Depths reports the lengths of the three queue lists.
func (s *RedisStore) Depths(ctx context.Context) (waiting, processing, dead int64, err error) {
	pipe := s.client.Pipeline()
	w := pipe.LLen(ctx, waitingKey)
	p := pipe.LLen(ctx, processingKey)
	d := pipe.LLen(ctx, deadKey)
	if _, err = pipe.Exec(ctx); err != nil {
		return 0, 0, 0, err
	}
	return w.Val(), p.Val(), d.Val(), nil
}

// SampleWaiting returns the head envelope of waiting, or nil when empty.
func (s *RedisStore) SampleWaiting(ctx context.Context) (*models.Envelope, error) {
	raw, err := s.client.LIndex(ctx, waitingKey, 0).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var env models.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// SampleDead returns the head dead-letter entry, or nil when empty.
func (s *RedisStore) SampleDead(ctx context.Context) (*models.DeadLetterEntry, error) {
	raw, err := s.client.LIndex(ctx, deadKey, 0).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entry models.DeadLetterEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// RecoverStuck moves every element of processing back to the tail of waiting
// and clears processing. Manual remediation for workers that died mid-claim;
// there is deliberately no automatic lease timeout. Returns the count moved.
func (s *RedisStore) RecoverStuck(ctx context.Context) (int, error) {
	stuck, err := s.client.LRange(ctx, processingKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}
	if len(stuck) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	for _, raw := range stuck {
		pipe.RPush(ctx, waitingKey, raw)
	}
	pipe.Del(ctx, processingKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(stuck), nil
}

// Flush clears waiting and processing. Destructive, admin-only; dead is kept
// for inspection.
func (s *RedisStore) Flush(ctx context.Context) error {
	return s.client.Del(ctx, waitingKey, processingKey).Err()
}

// Package queue is a Redis Streams job queue with consumer groups. A job that
// stays pending longer than ClaimAfter is reclaimed by another consumer, and
// after MaxAttempts deliveries it is parked on the dead-letter stream.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/majmadigital/finance-ledger/pkg/logger"
	"github.com/majmadigital/finance-ledger/pkg/redis"
)

type Job struct {
	ID         string
	Kind       string
	Payload    []byte
	Attempts   int64
	EnqueuedAt time.Time
}

// Decode unmarshals the job payload into v.
func (j *Job) Decode(v any) error {
	return json.Unmarshal(j.Payload, v)
}

// Handler processes one job. A nil return acks it; an error leaves it pending
// so it is redelivered once ClaimAfter elapses.
type Handler func(ctx context.Context, job *Job) error

type Config struct {
	Stream       string
	Group        string
	Consumer     string
	MaxAttempts  int64
	ClaimAfter   time.Duration
	PollInterval time.Duration
	BatchSize    int64
	MaxLen       int64
	DeadLetter   bool
}

type Queue struct {
	adapter redis.RedisAdapter
	config  Config
	handler Handler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Stats struct {
	Length    int64
	Pending   int64
	Consumers int64
}

func New(ctx context.Context, adapter redis.RedisAdapter, config Config) (*Queue, error) {
	if config.Stream == "" {
		return nil, errors.New("queue stream name is required")
	}
	if config.Group == "" {
		config.Group = "default-group"
	}
	if config.Consumer == "" {
		config.Consumer = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.ClaimAfter <= 0 {
		config.ClaimAfter = 30 * time.Second
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}

	err := adapter.XGroupCreateMkStream(ctx, config.Stream, config.Group, "0")
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group %s: %w", config.Group, err)
	}

	qctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		adapter: adapter,
		config:  config,
		ctx:     qctx,
		cancel:  cancel,
	}, nil
}

func (q *Queue) Config() Config {
	return q.config
}

// Publish appends a job carrying payload encoded as JSON.
func (q *Queue) Publish(ctx context.Context, kind string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s job: %w", kind, err)
	}

	id, err := q.adapter.XAdd(ctx, q.config.Stream, map[string]interface{}{
		"kind":        kind,
		"payload":     string(data),
		"enqueued_at": time.Now().UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("publish %s job: %w", kind, err)
	}

	if q.config.MaxLen > 0 {
		if err := q.adapter.XTrimApprox(ctx, q.config.Stream, q.config.MaxLen); err != nil {
			logger.Warn("Failed to trim stream", "stream", q.config.Stream, "error", err)
		}
	}
	return id, nil
}

// Consume starts the polling loop. It returns immediately.
func (q *Queue) Consume(handler Handler) error {
	if handler == nil {
		return errors.New("job handler is required")
	}
	q.handler = handler

	q.wg.Add(1)
	go q.loop()
	return nil
}

func (q *Queue) loop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.readNew()
			q.reclaim()
		}
	}
}

func (q *Queue) readNew() {
	messages, err := q.adapter.XReadGroup(q.ctx, q.config.Group, q.config.Consumer, q.config.Stream, ">", q.config.BatchSize)
	if err != nil {
		if !errors.Is(err, redis.NilError) && q.ctx.Err() == nil {
			logger.Warn("Failed to read stream", "stream", q.config.Stream, "error", err)
		}
		return
	}

	for _, m := range messages {
		job := decodeJob(m)
		job.Attempts = 1
		q.dispatch(job)
	}
}

// reclaim takes over jobs whose consumer has not acked them in time.
func (q *Queue) reclaim() {
	pending, err := q.adapter.XPendingExt(q.ctx, q.config.Stream, q.config.Group, "-", "+", 100)
	if err != nil || len(pending) == 0 {
		return
	}

	attempts := make(map[string]int64)
	var ids []string
	for _, p := range pending {
		if p.Idle >= q.config.ClaimAfter {
			ids = append(ids, p.ID)
			attempts[p.ID] = p.RetryCount
		}
	}
	if len(ids) == 0 {
		return
	}

	messages, err := q.adapter.XClaim(q.ctx, q.config.Stream, q.config.Group, q.config.Consumer, q.config.ClaimAfter, ids...)
	if err != nil {
		logger.Warn("Failed to claim stuck jobs", "stream", q.config.Stream, "error", err)
		return
	}

	for _, m := range messages {
		job := decodeJob(m)
		// the claim itself counts as a delivery
		job.Attempts = attempts[m.ID] + 1
		if job.Attempts > q.config.MaxAttempts {
			q.park(job)
			continue
		}
		q.dispatch(job)
	}
}

func (q *Queue) dispatch(job *Job) {
	ctx, cancel := context.WithTimeout(q.ctx, q.config.ClaimAfter)
	defer cancel()

	if err := q.handler(ctx, job); err != nil {
		logger.Warn("Job failed, leaving it pending",
			"stream", q.config.Stream,
			"job_id", job.ID,
			"kind", job.Kind,
			"attempts", job.Attempts,
			"error", err)
		return
	}
	q.ack(job.ID)
}

func (q *Queue) ack(id string) {
	if err := q.adapter.XAck(q.ctx, q.config.Stream, q.config.Group, id); err != nil {
		logger.Error("Failed to ack job", "stream", q.config.Stream, "job_id", id, "error", err)
	}
}

func (q *Queue) park(job *Job) {
	logger.Error("Job exceeded max attempts",
		"stream", q.config.Stream,
		"job_id", job.ID,
		"kind", job.Kind,
		"attempts", job.Attempts)

	if q.config.DeadLetter {
		_, err := q.adapter.XAdd(q.ctx, q.DeadLetterStream(), map[string]interface{}{
			"kind":        job.Kind,
			"payload":     string(job.Payload),
			"original_id": job.ID,
			"attempts":    job.Attempts,
			"failed_at":   time.Now().UnixMilli(),
		})
		if err != nil {
			// keep it pending rather than lose it
			logger.Error("Failed to park job", "job_id", job.ID, "error", err)
			return
		}
	}
	q.ack(job.ID)
}

func (q *Queue) DeadLetterStream() string {
	return q.config.Stream + ":dlq"
}

func decodeJob(m redis.StreamMessage) *Job {
	job := &Job{ID: m.ID}
	if v, ok := m.Values["kind"].(string); ok {
		job.Kind = v
	}
	if v, ok := m.Values["payload"].(string); ok {
		job.Payload = []byte(v)
	}
	if v, ok := m.Values["enqueued_at"].(string); ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			job.EnqueuedAt = time.UnixMilli(ms)
		}
	}
	return job
}

// Stop ends the polling loop and waits up to timeout for the in-flight batch.
func (q *Queue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("timeout waiting for queue to stop")
	}
}

func (q *Queue) Stats(ctx context.Context) (*Stats, error) {
	length, err := q.adapter.XLen(ctx, q.config.Stream)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Length: length}
	pending, err := q.adapter.XPending(ctx, q.config.Stream, q.config.Group)
	if err == nil && pending != nil {
		stats.Pending = pending.Count
		stats.Consumers = int64(len(pending.Consumers))
	}
	return stats, nil
}

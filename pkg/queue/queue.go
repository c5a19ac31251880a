package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"FinCast/pkg/logger"
)

// ErrNoMessage is returned by Backend.Pop when nothing arrived in time.
var ErrNoMessage = errors.New("queue: no message")

// Enqueuer accepts work for asynchronous processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

// Backend stores pending, delayed and dead messages.
type Backend interface {
	Push(ctx context.Context, list string, data []byte) error
	Pop(ctx context.Context, list string, wait time.Duration) ([]byte, error)
	Schedule(ctx context.Context, set string, data []byte, at time.Time) error
	PromoteDue(ctx context.Context, set, list string, now time.Time) (int, error)
	Ping(ctx context.Context) error
}

// Config contains the configuration for the queue.
type Config struct {
	Workers    int           // number of workers
	RetryLimit int           // number of maximum retries
	RetryDelay time.Duration // time delay between retries
	PollWait   time.Duration // how long a worker blocks waiting for a message
	KeyPrefix  string
}

// Message represents a message in the queue.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Queue runs registered jobs with a worker pool, retrying failures with a
// delay and parking exhausted messages on a dead-letter list.
type Queue struct {
	logger  *logger.Logger
	config  Config
	backend Backend
	jobs    map[string]Job
	mu      sync.RWMutex
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running bool
	now     func() time.Time
}

func New(lgr *logger.Logger, backend Backend, cfg Config) *Queue {
	if lgr == nil {
		lgr = logger.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	if cfg.PollWait <= 0 {
		cfg.PollWait = time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "fincast:queue"
	}
	return &Queue{
		logger:  lgr.With("queue"),
		config:  cfg,
		backend: backend,
		jobs:    make(map[string]Job),
		now:     time.Now,
	}
}

// RegisterJob registers a job; a second job for the same type is ignored.
func (q *Queue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.jobs[job.Type()]; exists {
		q.logger.Warn("job already registered", logger.String("type", job.Type()))
		return
	}
	q.jobs[job.Type()] = job
	q.logger.Info("job registered", logger.String("type", job.Type()))
}

// Start launches the workers and the retry promoter.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return fmt.Errorf("queue already running")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := q.backend.Ping(pingCtx); err != nil {
		return fmt.Errorf("queue backend ping: %w", err)
	}

	runCtx, stop := context.WithCancel(ctx)
	q.cancel = stop
	q.running = true
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(runCtx, i)
	}
	q.wg.Add(1)
	go q.retryPromoter(runCtx)

	q.logger.Info("queue started", logger.Int("workers", q.config.Workers))
	return nil
}

// Stop cancels the workers and waits for in-flight jobs or ctx.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for queue workers: %w", ctx.Err())
	case <-done:
		q.logger.Info("queue stopped")
		return nil
	}
}

// Enqueue adds a message for a registered job type.
func (q *Queue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	_, exists := q.jobs[msgType]
	q.mu.RUnlock()
	if !exists {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	data, err := json.Marshal(Message{
		ID:         uuid.NewString(),
		Type:       msgType,
		Payload:    raw,
		EnqueuedAt: q.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := q.backend.Push(ctx, q.queueKey(), data); err != nil {
		return fmt.Errorf("enqueue %s: %w", msgType, err)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for ctx.Err() == nil {
		data, err := q.backend.Pop(ctx, q.queueKey(), q.config.PollWait)
		switch {
		case err == nil:
			q.process(ctx, data)
		case errors.Is(err, ErrNoMessage), ctx.Err() != nil:
		default:
			q.logger.Error("queue pop failed", logger.Int("worker_id", id), logger.Error(err))
			sleep(ctx, q.config.PollWait)
		}
	}
}

func (q *Queue) process(ctx context.Context, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		q.logger.Error("unmarshal message", logger.Error(err))
		return
	}

	q.mu.RLock()
	job, exists := q.jobs[msg.Type]
	q.mu.RUnlock()
	if !exists {
		q.logger.Error("no job found", logger.String("type", msg.Type), logger.String("id", msg.ID))
		q.deadLetter(ctx, msg)
		return
	}

	start := q.now()
	err := job.Handle(ctx, msg.Payload)
	if err == nil {
		q.logger.Debug("job done",
			logger.String("id", msg.ID),
			logger.String("type", msg.Type),
			logger.Duration("duration_ms", q.now().Sub(start)),
		)
		return
	}
	if errors.Is(err, context.Canceled) {
		q.logger.Warn("job cancelled", logger.String("id", msg.ID), logger.String("type", msg.Type))
		return
	}

	q.logger.Error("job failed",
		logger.String("id", msg.ID),
		logger.String("type", msg.Type),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err),
	)
	if msg.Attempts >= q.config.RetryLimit {
		q.deadLetter(ctx, msg)
		return
	}
	msg.Attempts++
	retry, _ := json.Marshal(msg)
	at := q.now().Add(q.config.RetryDelay)
	if err := q.backend.Schedule(context.WithoutCancel(ctx), q.retryKey(), retry, at); err != nil {
		q.logger.Error("schedule retry failed", logger.String("id", msg.ID), logger.Error(err))
	}
}

func (q *Queue) deadLetter(ctx context.Context, msg Message) {
	data, _ := json.Marshal(msg)
	if err := q.backend.Push(context.WithoutCancel(ctx), q.deadLetterKey(), data); err != nil {
		q.logger.Error("dead letter push failed", logger.String("id", msg.ID), logger.Error(err))
		return
	}
	q.logger.Warn("message dead-lettered", logger.String("id", msg.ID), logger.String("type", msg.Type))
}

func (q *Queue) retryPromoter(ctx context.Context) {
	defer q.wg.Done()
	tick := min(q.config.RetryDelay, 5*time.Second)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := q.backend.PromoteDue(ctx, q.retryKey(), q.queueKey(), q.now()); err != nil && ctx.Err() == nil {
				q.logger.Error("promote retries failed", logger.Error(err))
			}
		}
	}
}

func (q *Queue) queueKey() string      { return q.config.KeyPrefix + ":messages" }
func (q *Queue) retryKey() string      { return q.config.KeyPrefix + ":retry" }
func (q *Queue) deadLetterKey() string { return q.config.KeyPrefix + ":dlq" }

// DeadLetterKey is the list holding messages that exhausted their retries.
func (q *Queue) DeadLetterKey() string { return q.deadLetterKey() }

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/majmadigital/finance-ledger/internal/queue"
	"github.com/majmadigital/finance-ledger/pkg/logger"
	"github.com/majmadigital/finance-ledger/pkg/prom"
	"github.com/majmadigital/finance-ledger/pkg/worker"
)

const (
	JobMember      = "audit.member"
	JobCommissions = "audit.commissions"
)

var ErrUnknownJob = errors.New("unknown audit job")

type JobQueue interface {
	Publish(ctx context.Context, kind string, payload any) (string, error)
	Consume(handler queue.Handler) error
	Stop(timeout time.Duration) error
}

type Config struct {
	Interval       time.Duration
	Workers        int
	PageSize       int
	JobTimeout     time.Duration
	ReportInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:       10 * time.Minute,
		Workers:        8,
		PageSize:       500,
		JobTimeout:     10 * time.Second,
		ReportInterval: time.Minute,
	}
}

type memberPayload struct {
	MemberID string `json:"memberId"`
}

type task struct {
	ctx    context.Context
	job    *queue.Job
	result chan error
}

// Service schedules audit jobs on the queue and runs them on a worker pool.
// Several instances can share one queue; each job is handled once per
// delivery.
type Service struct {
	auditor *Auditor
	queue   JobQueue
	config  Config
	pool    *worker.Pool[*task]
	stats   *runStats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(auditor *Auditor, q JobQueue, config Config) *Service {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	if config.PageSize <= 0 {
		config.PageSize = def.PageSize
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = def.JobTimeout
	}
	if config.ReportInterval <= 0 {
		config.ReportInterval = def.ReportInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		auditor: auditor,
		queue:   q,
		config:  config,
		stats:   newRunStats(),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.pool = worker.NewPool[*task](config.Workers*4, config.Workers, s.work)
	return s
}

func (s *Service) Start() error {
	logger.Info("Starting ledger auditor", "workers", s.config.Workers, "interval", s.config.Interval.String())

	s.pool.Start()
	if err := s.queue.Consume(s.handle); err != nil {
		s.pool.Stop()
		return fmt.Errorf("consume audit jobs: %w", err)
	}

	s.wg.Add(2)
	go s.scheduler()
	go s.reporter()
	return nil
}

func (s *Service) scheduler() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		if err := s.Schedule(s.ctx); err != nil && s.ctx.Err() == nil {
			logger.Error("Failed to schedule audit sweep", "error", err)
		}
		select {
		case <-ticker.C:
		case <-s.ctx.Done():
			return
		}
	}
}

// Schedule publishes one job per member plus one commission job.
func (s *Service) Schedule(ctx context.Context) error {
	prom.RecordAuditRun()

	n := 0
	err := s.auditor.MemberIDs(ctx, s.config.PageSize, func(id string) error {
		if _, err := s.queue.Publish(ctx, JobMember, memberPayload{MemberID: id}); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return err
	}

	if _, err := s.queue.Publish(ctx, JobCommissions, struct{}{}); err != nil {
		return err
	}
	logger.Info("Scheduled audit sweep", "members", n)
	return nil
}

// handle hands the job to the pool and waits for its result so the queue
// acks only finished work.
func (s *Service) handle(ctx context.Context, job *queue.Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	t := &task{ctx: ctx, job: job, result: make(chan error, 1)}
	if err := s.pool.Enqueue(ctx, t); err != nil {
		return err
	}

	select {
	case err := <-t.result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("audit job %s timed out: %w", job.ID, ctx.Err())
	}
}

func (s *Service) work(workerIndex int, t *task) {
	log := logger.With("worker", workerIndex, "job_id", t.job.ID, "kind", t.job.Kind)
	if t.ctx.Err() != nil {
		log.Warn("Audit job expired before it started")
		return
	}

	start := time.Now()
	balanced, err := s.Run(t.ctx, t.job)
	if err != nil {
		s.stats.recordFailure()
		log.Error("Audit job failed", "attempts", t.job.Attempts, "error", err)
	} else {
		s.stats.recordAudit(time.Since(start), balanced)
	}

	// result is buffered
	t.result <- err
}

// Run executes one audit job and reports whether the audited scope balanced.
// Unknown job kinds are logged and treated as done so they are not retried.
func (s *Service) Run(ctx context.Context, job *queue.Job) (bool, error) {
	switch job.Kind {
	case JobMember:
		var p memberPayload
		if err := job.Decode(&p); err != nil || p.MemberID == "" {
			logger.Error("Dropping malformed audit job", "job_id", job.ID, "error", err)
			return true, nil
		}
		d, err := s.auditor.AuditMember(ctx, p.MemberID)
		if err != nil {
			return false, err
		}
		if !d.Balanced() {
			prom.IncAuditMismatch(ScopeMembers)
		}
		return d.Balanced(), nil

	case JobCommissions:
		d, err := s.auditor.AuditCommissions(ctx)
		if err != nil {
			return false, err
		}
		return d.Balanced(), nil
	}

	logger.Error("Dropping audit job", "job_id", job.ID, "kind", job.Kind, "error", ErrUnknownJob)
	return true, nil
}

func (s *Service) reporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logger.Info("Auditor stats", s.stats.snapshot()...)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) Stop(timeout time.Duration) {
	logger.Info("Shutting down ledger auditor...")

	s.cancel()
	if err := s.queue.Stop(timeout); err != nil {
		logger.Warn("Audit queue did not stop cleanly", "error", err)
	}
	s.pool.Stop()
	s.wg.Wait()

	logger.Info("Ledger auditor stopped", s.stats.snapshot()...)
}

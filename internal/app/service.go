// Package service ties compression, the job queue, the worker pool and the
// result store together behind the operations used by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/stcurve/internal/adapters/mq/queue"
	"github.com/okian/stcurve/internal/adapters/mq/worker"
	"github.com/okian/stcurve/internal/adapters/repository"
	"github.com/okian/stcurve/internal/domain/curvature"
	"github.com/okian/stcurve/internal/domain/dedupe"
	"github.com/okian/stcurve/internal/domain/model"
	"github.com/okian/stcurve/pkg/logger"
	"github.com/okian/stcurve/pkg/metrics"
)

const (
	defaultQueueSize  = 10_000
	defaultDedupeSize = 100_000
	defaultTolerance  = 0.02
	defaultMaxPoints  = 1_000_000
)

// CompressOutput is the result of a synchronous compression.
type CompressOutput struct {
	Original   int           `json:"original"`
	Compressed int           `json:"compressed"`
	Rate       float64       `json:"rate"`
	Tolerance  float64       `json:"tolerance"`
	Points     []model.Point `json:"points"`
}

// Service implements the API dependencies for trajectory compression.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	cancel  context.CancelFunc

	workerCount     int
	queueSize       int
	dedupeSize      int
	tolerance       float64
	maxPoints       int
	rejectUnordered bool

	started bool
	logger  logger.Logger
}

// New constructs a new Service. Without WithStore results are kept in memory.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		tolerance:   defaultTolerance,
		maxPoints:   defaultMaxPoints,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	return s
}

// evictNotifier is implemented by stores that drop results on their own.
type evictNotifier interface {
	OnEvict(fn func(trajectoryID string))
}

// Start creates the queue and worker pool and starts processing. Workers
// outlive ctx; they stop when Stop has drained the queue.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	forget := func(trajectoryID string) { d.Unrecord(context.Background(), trajectoryID) }
	if n, ok := s.store.(evictNotifier); ok {
		n.OnEvict(forget)
	}

	s.deduper = d
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.store,
		worker.WithFailureHandler(func(_ context.Context, job worker.Job, _ error) {
			forget(job.TrajectoryID)
		}),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "compression service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Float64("tolerance", s.tolerance),
	)
	return nil
}

// Stop closes the queue and waits for workers to drain pending jobs.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping compression service...")
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
		s.pool.Stop()
	}
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "compression service stopped",
		logger.Int64("processed", s.pool.Processed()),
	)
}

// DefaultTolerance returns the tolerance applied when a request has none.
func (s *Service) DefaultTolerance() float64 {
	return s.tolerance
}

// Compress runs the compressor in the calling goroutine.
func (s *Service) Compress(ctx context.Context, points []model.Point, tolerance float64) (CompressOutput, error) {
	if err := s.validate(points, tolerance); err != nil {
		metrics.RecordJobRejected(rejectReason(err))
		return CompressOutput{}, err
	}

	start := time.Now()
	kept := curvature.New(points, tolerance).Compress()
	metrics.RecordCompression(len(points), len(kept), float64(time.Since(start).Microseconds())/1000)

	out := CompressOutput{
		Original:   len(points),
		Compressed: len(kept),
		Rate:       curvature.Rate(len(points), len(kept)),
		Tolerance:  tolerance,
		Points:     kept,
	}
	if out.Points == nil {
		out.Points = []model.Point{}
	}
	s.loggerOrGlobal().Debug(ctx, "compressed trajectory",
		logger.Int("original", out.Original),
		logger.Int("compressed", out.Compressed),
	)
	return out, nil
}

// Submit queues a trajectory for asynchronous compression. A trajectory id
// that was already submitted is reported as duplicate and not queued again.
func (s *Service) Submit(ctx context.Context, t model.Trajectory, tolerance float64) (jobID string, duplicate bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return "", false, ErrNotStarted
	}
	if t.ID == "" {
		metrics.RecordJobRejected("missing_id")
		return "", false, ErrMissingTrajectoryID
	}
	if err := s.validate(t.Points, tolerance); err != nil {
		metrics.RecordJobRejected(rejectReason(err))
		return "", false, err
	}

	if s.deduper.SeenAndRecord(ctx, t.ID) {
		metrics.RecordJobDuplicate()
		s.logger.Debug(ctx, "duplicate trajectory", logger.String("trajectoryID", t.ID))
		return "", true, nil
	}

	job := model.Job{
		JobID:        uuid.NewString(),
		TrajectoryID: t.ID,
		Points:       t.Points,
		Tolerance:    tolerance,
		Submitted:    time.Now(),
	}
	if !s.queue.Enqueue(ctx, job) {
		s.deduper.Unrecord(ctx, t.ID)
		metrics.RecordJobRejected("backpressure")
		return "", false, ErrBackpressure
	}

	metrics.RecordJobSubmitted()
	s.logger.Debug(ctx, "trajectory queued",
		logger.String("jobID", job.JobID),
		logger.String("trajectoryID", t.ID),
		logger.Int("points", len(t.Points)),
	)
	return job.JobID, false, nil
}

// Result returns the stored result for a trajectory.
func (s *Service) Result(ctx context.Context, trajectoryID string) (model.Result, error) {
	r, err := s.store.Get(ctx, trajectoryID)
	if err != nil {
		return model.Result{}, fmt.Errorf("result %s: %w", trajectoryID, err)
	}
	return r, nil
}

// Results returns up to limit results, newest first.
func (s *Service) Results(ctx context.Context, limit int) ([]model.Result, error) {
	rs, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return rs, nil
}

// Delete removes a result and forgets its trajectory id so it can be
// submitted again. The id is forgotten even when no result is stored.
func (s *Service) Delete(ctx context.Context, trajectoryID string) error {
	err := s.store.Delete(ctx, trajectoryID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("delete %s: %w", trajectoryID, err)
	}

	s.mu.RLock()
	if s.deduper != nil {
		s.deduper.Unrecord(ctx, trajectoryID)
	}
	s.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("delete %s: %w", trajectoryID, err)
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stored := s.store.Count(ctx)
	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"tolerance":       s.tolerance,
		"maxPoints":       s.maxPoints,
		"rejectUnordered": s.rejectUnordered,
		"storedResults":   stored,
	}
	metrics.UpdateStoredResults(stored)

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["processed"] = s.pool.Processed()
		stats["seenTrajectories"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	return stats
}

func (s *Service) validate(points []model.Point, tolerance float64) error {
	if tolerance < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTolerance, tolerance)
	}
	if s.maxPoints > 0 && len(points) > s.maxPoints {
		return fmt.Errorf("%w: %d > %d", ErrTooManyPoints, len(points), s.maxPoints)
	}
	if s.rejectUnordered && !model.Ordered(points) {
		return ErrUnorderedTimestamps
	}
	return nil
}

func (s *Service) loggerOrGlobal() logger.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.logger != nil {
		return s.logger
	}
	return logger.Get()
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTolerance):
		return "invalid_tolerance"
	case errors.Is(err, ErrTooManyPoints):
		return "too_many_points"
	case errors.Is(err, ErrUnorderedTimestamps):
		return "unordered"
	default:
		return "invalid"
	}
}

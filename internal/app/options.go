package service

import (
	"github.com/okian/stcurve/internal/adapters/repository"
	"github.com/okian/stcurve/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many trajectory ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithTolerance sets the tolerance used when a request omits one.
func WithTolerance(tolerance float64) Option {
	return func(s *Service) {
		if tolerance >= 0 {
			s.tolerance = tolerance
		}
	}
}

// WithMaxPoints caps the number of points accepted per trajectory.
// Zero disables the cap.
func WithMaxPoints(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxPoints = n
		}
	}
}

// WithRejectUnordered makes the service refuse trajectories whose
// timestamps decrease.
func WithRejectUnordered(reject bool) Option {
	return func(s *Service) {
		s.rejectUnordered = reject
	}
}

// WithStore sets the result store. The caller keeps ownership of it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

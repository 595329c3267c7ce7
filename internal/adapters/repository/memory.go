package repository

import (
	"container/list"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/okian/stcurve/pkg/metrics"
)

// MemoryStore keeps results in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[string]*list.Element // value: Result
	order      *list.List               // front = most recently saved
	maxEntries int
	onEvict    func(trajectoryID string)
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byID:  make(map[string]*list.Element),
		order: list.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save inserts or replaces r.
func (s *MemoryStore) Save(_ context.Context, r Result) error {
	if r.TrajectoryID == "" {
		return ErrInvalidID
	}
	start := time.Now()
	defer observe("save", start)

	r.Points = slices.Clone(r.Points)

	s.mu.Lock()
	if el, ok := s.byID[r.TrajectoryID]; ok {
		el.Value = r
		s.order.MoveToFront(el)
	} else {
		s.byID[r.TrajectoryID] = s.order.PushFront(r)
	}

	var evicted []string
	for s.maxEntries > 0 && s.order.Len() > s.maxEntries {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		id := oldest.Value.(Result).TrajectoryID
		delete(s.byID, id)
		evicted = append(evicted, id)
	}
	size, onEvict := s.order.Len(), s.onEvict
	s.mu.Unlock()

	metrics.UpdateStoredResults(size)
	if onEvict != nil {
		for _, id := range evicted {
			onEvict(id)
		}
	}
	return nil
}

// OnEvict registers fn to be called, outside the store lock, with the
// trajectory id of every result dropped to honour WithMaxEntries.
func (s *MemoryStore) OnEvict(fn func(trajectoryID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvict = fn
}

// Get returns the result for trajectoryID.
func (s *MemoryStore) Get(_ context.Context, trajectoryID string) (Result, error) {
	start := time.Now()
	defer observe("get", start)

	s.mu.RLock()
	defer s.mu.RUnlock()

	el, ok := s.byID[trajectoryID]
	if !ok {
		return Result{}, ErrNotFound
	}
	r := el.Value.(Result)
	r.Points = slices.Clone(r.Points)
	return r, nil
}

// List returns up to limit results, most recently saved first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]Result, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	start := time.Now()
	defer observe("list", start)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Result, 0, min(limit, s.order.Len()))
	for el := s.order.Front(); el != nil && len(out) < limit; el = el.Next() {
		r := el.Value.(Result)
		r.Points = slices.Clone(r.Points)
		out = append(out, r)
	}
	return out, nil
}

// Delete removes the result for trajectoryID.
func (s *MemoryStore) Delete(_ context.Context, trajectoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.byID[trajectoryID]
	if !ok {
		return ErrNotFound
	}
	s.order.Remove(el)
	delete(s.byID, trajectoryID)
	metrics.UpdateStoredResults(s.order.Len())
	return nil
}

// Count returns the number of stored results.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.order.Len()
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

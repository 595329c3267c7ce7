package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMaxEntries bounds the store; the oldest saved result is evicted when
// full. Values <= 0 mean unbounded.
func WithMaxEntries(n int) Option {
	return func(s *MemoryStore) {
		s.maxEntries = n
	}
}

// WithEvictHandler sets the callback passed to OnEvict.
func WithEvictHandler(fn func(trajectoryID string)) Option {
	return func(s *MemoryStore) {
		s.onEvict = fn
	}
}

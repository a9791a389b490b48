package quota

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store.
// It is thread-safe and suitable for development, testing, and
// single-instance deployments.
type MemoryStore struct {
	window time.Duration

	mu      sync.Mutex
	records map[string]Record

	stopOnce sync.Once
	stop     chan struct{}

	// now is swapped in tests to simulate window expiry
	now func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store with the given window.
// A non-positive window falls back to DefaultWindow.
func NewMemoryStore(window time.Duration) *MemoryStore {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryStore{
		window:  window,
		records: make(map[string]Record),
		stop:    make(chan struct{}),
		now:     time.Now,
	}
}

// Get returns the effective record for an identity. An expired record
// reads as count 0 and is reported as absent.
func (s *MemoryStore) Get(ctx context.Context, identity string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[identity]
	now := s.now()
	if !ok || record.Expired(now, s.window) {
		return Record{Identity: identity, WindowStart: now}, false, nil
	}
	return record, true, nil
}

// Increment applies the window-reset rule, adds one and returns the
// post-increment record.
func (s *MemoryStore) Increment(ctx context.Context, identity string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	record, ok := s.records[identity]
	if !ok || record.Expired(now, s.window) {
		record = Record{Identity: identity, WindowStart: now}
	}
	record.Count++
	s.records[identity] = record
	return record, nil
}

// StartSweeper launches a background goroutine that periodically drops
// expired records. This is memory reclamation only; correctness never
// depends on it because Get and Increment apply the window rule themselves.
func (s *MemoryStore) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = s.window
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

// Stop terminates the sweeper goroutine, if one is running.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for identity, record := range s.records {
		if record.Expired(now, s.window) {
			delete(s.records, identity)
		}
	}
}

// Len reports the number of stored records, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

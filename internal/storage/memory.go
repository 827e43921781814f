package storage

import (
	"context"
	"maps"
	"sync"
	"time"
)

type memoryStore struct {
	mu     sync.Mutex
	slots  map[string]int
	audit  []AuditEntry
	closed bool
}

// NewMemory returns a process-local store.
func NewMemory() Store {
	return &memoryStore{slots: map[string]int{}}
}

func (s *memoryStore) LoadSlots(ctx context.Context) (map[string]int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return maps.Clone(s.slots), nil
}

func (s *memoryStore) SaveSlots(ctx context.Context, slots map[string]int) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.slots = maps.Clone(slots)
	if s.slots == nil {
		s.slots = map[string]int{}
	}
	return nil
}

func (s *memoryStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.audit = append(s.audit, e)
	return nil
}

func (s *memoryStore) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return newestFirst(s.audit, limit), nil
}

func (s *memoryStore) PruneAudit(ctx context.Context, before time.Time) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	kept, n := keepSince(s.audit, before)
	s.audit = kept
	return n, nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// newestFirst copies up to limit entries from the tail of an append-ordered slice, reversed.
// limit <= 0 means all.
func newestFirst(entries []AuditEntry, limit int) []AuditEntry {
	n := len(entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]AuditEntry, 0, n)
	for i := len(entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, entries[i])
	}
	return out
}

// keepSince filters entries in place, returning the kept slice and the number dropped.
func keepSince(entries []AuditEntry, before time.Time) ([]AuditEntry, int) {
	kept := entries[:0]
	for _, e := range entries {
		if !e.At.Before(before) {
			kept = append(kept, e)
		}
	}
	return kept, len(entries) - len(kept)
}

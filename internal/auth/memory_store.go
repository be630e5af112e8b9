package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryOTPStore is an OTPStore for a single process. Expired entries are
// evicted on access and on every Save.
type MemoryOTPStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	entry    OTPEntry
	deadline time.Time
}

func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryOTPStore) Save(ctx context.Context, email string, entry *OTPEntry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.deadline) {
			delete(s.entries, k)
		}
	}
	saved := *entry
	saved.Attempts = 0
	s.entries[email] = memoryEntry{entry: saved, deadline: now.Add(ttl)}
	return nil
}

func (s *MemoryOTPStore) Load(ctx context.Context, email string) (*OTPEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(email)
	if !ok {
		return nil, ErrOTPNotFound
	}
	entry := e.entry
	return &entry, nil
}

func (s *MemoryOTPStore) IncrAttempts(ctx context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(email)
	if !ok {
		return 0, ErrOTPNotFound
	}
	e.entry.Attempts++
	s.entries[email] = e
	return e.entry.Attempts, nil
}

func (s *MemoryOTPStore) Take(ctx context.Context, email string) (*OTPEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(email)
	if !ok {
		return nil, ErrOTPNotFound
	}
	delete(s.entries, email)
	entry := e.entry
	return &entry, nil
}

func (s *MemoryOTPStore) Delete(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, email)
	return nil
}

// live must be called with mu held.
func (s *MemoryOTPStore) live(email string) (memoryEntry, bool) {
	e, ok := s.entries[email]
	if !ok {
		return memoryEntry{}, false
	}
	if !s.now().Before(e.deadline) {
		delete(s.entries, email)
		return memoryEntry{}, false
	}
	return e, true
}

// Len reports the number of stored entries, expired ones included.
func (s *MemoryOTPStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

package auth

import (
	"math"
	"sync"
	"time"
)

// NoExpiry stores an entry that stays readable until it is overwritten or cleared.
const NoExpiry = time.Duration(math.MaxInt64)

type entry struct {
	value     string
	expiresAt time.Time // zero for NoExpiry
}

// TokenStore is an in-memory cache of named credentials, each with its own expiration.
//
// Save always computes a fresh expiration from the capture time, so overwriting a key
// never extends the previous entry's lifetime.
type TokenStore struct {
	mu      sync.RWMutex
	now     func() time.Time
	entries map[string]entry
}

// NewTokenStore creates an empty store that reads the time from now ([time.Now] when nil).
func NewTokenStore(now func() time.Time) *TokenStore {
	if now == nil {
		now = time.Now
	}
	return &TokenStore{now: now, entries: make(map[string]entry)}
}

// Save stores or replaces value under key, expiring ttl after now.
func (s *TokenStore) Save(key, value string, ttl time.Duration) {
	e := entry{value: value}
	if ttl != NoExpiry {
		e.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
}

// Get returns the value under key while the time elapsed since Save is strictly less than its TTL.
//
// Expired entries are reported exactly like keys that were never saved.
func (s *TokenStore) Get(key string) (string, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return "", false
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

// CompareAndDelete removes key only if it currently holds value.
func (s *TokenStore) CompareAndDelete(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && e.value == value {
		delete(s.entries, key)
		return true
	}
	return false
}

// Clear drops every entry.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()
}

// Len reports the number of stored entries, expired or not.
func (s *TokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

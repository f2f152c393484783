// Package session implements auth.SessionStore backends.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/alecgard/tasker/internal/auth"
)

type entry struct {
	identity  auth.Identity
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory, keyed by token hash. It is
// safe for concurrent use.
type MemoryStore struct {
	mu            sync.Mutex
	sessions      map[string]*entry
	ttl           time.Duration
	renewOnAccess bool
	now           func() time.Time
}

// NewMemoryStore creates a store whose sessions expire ttl after issuance,
// or after the last successful Resolve when renewOnAccess is set.
func NewMemoryStore(ttl time.Duration, renewOnAccess bool) *MemoryStore {
	return &MemoryStore{
		sessions:      make(map[string]*entry),
		ttl:           ttl,
		renewOnAccess: renewOnAccess,
		now:           time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, id auth.Identity) (string, error) {
	token, err := auth.GenerateToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.sessions[auth.HashToken(token)] = &entry{identity: id, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()

	return token, nil
}

func (s *MemoryStore) Resolve(ctx context.Context, token string) (*auth.Identity, error) {
	key := auth.HashToken(token)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[key]
	if !ok {
		return nil, auth.ErrNoSession
	}
	if !now.Before(e.expiresAt) {
		delete(s.sessions, key)
		return nil, auth.ErrNoSession
	}
	if s.renewOnAccess {
		e.expiresAt = now.Add(s.ttl)
	}

	id := e.identity
	return &id, nil
}

func (s *MemoryStore) Destroy(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, auth.HashToken(token))
	s.mu.Unlock()
	return nil
}

// Sweep removes expired sessions and returns how many were removed.
func (s *MemoryStore) Sweep(ctx context.Context) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, e := range s.sessions {
		if !now.Before(e.expiresAt) {
			delete(s.sessions, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions, including expired ones not yet
// swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

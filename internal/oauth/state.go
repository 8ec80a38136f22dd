// Package oauth holds short-lived CSRF state tokens for provider OAuth
// round trips. A state is valid once, for a bounded window.
package oauth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// DefaultTTL is how long an issued state stays redeemable.
const DefaultTTL = 15 * time.Minute

type pendingState struct {
	userID   string
	provider string
	issuedAt time.Time
}

// StateStore issues and burns OAuth state tokens. In-memory: a restart
// invalidates in-flight flows, which simply restart.
type StateStore struct {
	mu      sync.Mutex
	pending map[string]pendingState
	ttl     time.Duration
	now     func() time.Time
}

// NewStateStore creates a store with the given TTL (DefaultTTL if zero).
func NewStateStore(ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &StateStore{
		pending: make(map[string]pendingState),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Issue mints a state token binding a user to a provider flow.
func (s *StateStore) Issue(userID, provider string) string {
	token := newStateToken()
	s.mu.Lock()
	s.pending[token] = pendingState{userID: userID, provider: provider, issuedAt: s.now()}
	s.mu.Unlock()
	return token
}

// Consume redeems a state token exactly once. Expired or unknown tokens
// fail; either way the token is gone afterwards.
func (s *StateStore) Consume(token string) (userID, provider string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.pending[token]
	if !ok {
		return "", "", fmt.Errorf("unknown oauth state")
	}
	delete(s.pending, token)
	if s.now().Sub(st.issuedAt) > s.ttl {
		return "", "", fmt.Errorf("oauth state expired")
	}
	return st.userID, st.provider, nil
}

// Sweep drops expired entries. Call periodically; Consume already
// rejects stale tokens, this just bounds memory.
func (s *StateStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	n := 0
	for token, st := range s.pending {
		if st.issuedAt.Before(cutoff) {
			delete(s.pending, token)
			n++
		}
	}
	return n
}

func newStateToken() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return fmt.Sprintf("state-%d", time.Now().UnixNano())
}

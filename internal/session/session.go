// Package session holds the decrypted private key for the lifetime of an
// unlocked wallet. The key lives only in process memory, is never persisted,
// and is zeroed on lock. At most one key is held at a time, and only the
// background-owned lock/unlock transitions may mutate it.
package session

import (
	"errors"
	"sync"

	"github.com/Lisboaa111/Nillion-Keychain/internal/keyvault"
)

// ErrLocked is returned when an operation requires an unlocked session.
var ErrLocked = errors.New("wallet is locked")

// Session is the volatile holder of raw key material.
type Session struct {
	mu  sync.RWMutex
	key []byte // nil when locked
}

// New returns a locked session.
func New() *Session {
	return &Session{}
}

// Unlock loads raw key material into the session, replacing (and zeroing)
// any previous key. The session keeps its own copy.
func (s *Session) Unlock(rawKey []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil {
		keyvault.ZeroBytes(s.key)
	}
	s.key = make([]byte, len(rawKey))
	copy(s.key, rawKey)
}

// Lock zeros and drops the key. After Lock, Key reports no key and any
// in-flight operation needing it must fail with ErrLocked.
func (s *Session) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil {
		keyvault.ZeroBytes(s.key)
		s.key = nil
	}
}

// Key returns a copy of the raw key, or ok=false when locked.
func (s *Session) Key() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.key == nil {
		return nil, false
	}
	out := make([]byte, len(s.key))
	copy(out, s.key)
	return out, true
}

// Unlocked reports whether a key is currently held.
func (s *Session) Unlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key != nil
}

package session

import (
	"bytes"
	"testing"
)

func TestSession_LockedByDefault(t *testing.T) {
	s := New()
	if s.Unlocked() {
		t.Error("new session reports unlocked")
	}
	if _, ok := s.Key(); ok {
		t.Error("new session returned a key")
	}
}

func TestSession_UnlockThenLock(t *testing.T) {
	s := New()
	raw := []byte{1, 2, 3, 4}

	s.Unlock(raw)
	if !s.Unlocked() {
		t.Fatal("session should be unlocked")
	}

	got, ok := s.Key()
	if !ok || !bytes.Equal(got, raw) {
		t.Fatalf("Key() = %v, %v; want %v, true", got, ok, raw)
	}

	s.Lock()
	if s.Unlocked() {
		t.Error("session should be locked after Lock")
	}
	if _, ok := s.Key(); ok {
		t.Error("Key() returned a key after Lock")
	}
}

func TestSession_KeyReturnsCopy(t *testing.T) {
	s := New()
	s.Unlock([]byte{9, 9, 9})

	got, _ := s.Key()
	got[0] = 0

	again, _ := s.Key()
	if again[0] != 9 {
		t.Error("mutating the returned key leaked into the session")
	}
}

func TestSession_UnlockCopiesInput(t *testing.T) {
	s := New()
	raw := []byte{5, 5, 5}
	s.Unlock(raw)
	raw[0] = 0

	got, _ := s.Key()
	if got[0] != 5 {
		t.Error("mutating the input slice leaked into the session")
	}
}

func TestSession_UnlockReplacesKey(t *testing.T) {
	s := New()
	s.Unlock([]byte{1})
	s.Unlock([]byte{2})

	got, _ := s.Key()
	if !bytes.Equal(got, []byte{2}) {
		t.Errorf("Key() = %v, want [2]", got)
	}
}

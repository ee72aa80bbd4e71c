package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Lisboaa111/Nillion-Keychain/internal/keyvault"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "keychain.db"))
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWalletRecord_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetWallet(); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("GetWallet on empty store: got %v, want ErrWalletNotFound", err)
	}

	rec := &WalletRecord{
		Key: keyvault.EncryptedSecret{
			Ciphertext:    []byte{1, 2, 3},
			Salt:          make([]byte, keyvault.SaltSize),
			IV:            make([]byte, keyvault.IVSize),
			KDFIterations: keyvault.DefaultIterations,
		},
		DID:       "did:nil:03ab",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.SetWallet(rec); err != nil {
		t.Fatalf("SetWallet: %v", err)
	}

	got, err := s.GetWallet()
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if got.DID != rec.DID {
		t.Errorf("DID = %q, want %q", got.DID, rec.DID)
	}
	if got.Key.KDFIterations != keyvault.DefaultIterations {
		t.Errorf("KDFIterations = %d, want %d", got.Key.KDFIterations, keyvault.DefaultIterations)
	}
}

func TestUnlockedFlag(t *testing.T) {
	s := newTestStore(t)

	unlocked, err := s.GetUnlocked()
	if err != nil {
		t.Fatalf("GetUnlocked: %v", err)
	}
	if unlocked {
		t.Error("fresh store reports unlocked")
	}

	if err := s.SetUnlocked(true); err != nil {
		t.Fatalf("SetUnlocked: %v", err)
	}
	unlocked, _ = s.GetUnlocked()
	if !unlocked {
		t.Error("flag not persisted")
	}

	if err := s.SetUnlocked(false); err != nil {
		t.Fatalf("SetUnlocked: %v", err)
	}
	unlocked, _ = s.GetUnlocked()
	if unlocked {
		t.Error("flag not cleared")
	}
}

func TestConnections(t *testing.T) {
	s := newTestStore(t)

	connected, err := s.IsConnected("https://app.example")
	if err != nil {
		t.Fatalf("IsConnected: %v", err)
	}
	if connected {
		t.Error("unknown origin reports connected")
	}

	for _, origin := range []string{"https://b.example", "https://a.example"} {
		if err := s.MarkConnected(origin); err != nil {
			t.Fatalf("MarkConnected(%s): %v", origin, err)
		}
	}

	connected, _ = s.IsConnected("https://a.example")
	if !connected {
		t.Error("marked origin not connected")
	}

	origins, err := s.ListConnections()
	if err != nil {
		t.Fatalf("ListConnections: %v", err)
	}
	if len(origins) != 2 || origins[0] != "https://a.example" || origins[1] != "https://b.example" {
		t.Errorf("ListConnections = %v, want sorted pair", origins)
	}

	if err := s.RemoveConnection("https://a.example"); err != nil {
		t.Fatalf("RemoveConnection: %v", err)
	}
	connected, _ = s.IsConnected("https://a.example")
	if connected {
		t.Error("removed origin still connected")
	}

	// Removing an unknown origin is a no-op.
	if err := s.RemoveConnection("https://never.example"); err != nil {
		t.Errorf("RemoveConnection of unknown origin: %v", err)
	}
}

func TestAudit(t *testing.T) {
	s := newTestStore(t)

	for i, outcome := range []string{"approved", "rejected", "timeout"} {
		err := s.AppendAudit(&AuditEntry{
			ID:      "e" + string(rune('0'+i)),
			Time:    time.Now().UTC(),
			Origin:  "https://app.example",
			Action:  "storeData",
			Outcome: outcome,
		})
		if err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}

	entries, err := s.ListAudit(2)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	// Newest first.
	if entries[0].Outcome != "timeout" || entries[1].Outcome != "rejected" {
		t.Errorf("unexpected order: %s, %s", entries[0].Outcome, entries[1].Outcome)
	}
}

func TestStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keychain.db")

	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	if err := s.MarkConnected("https://app.example"); err != nil {
		t.Fatalf("MarkConnected: %v", err)
	}
	s.Close()

	s2, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	connected, _ := s2.IsConnected("https://app.example")
	if !connected {
		t.Error("connection lost across reopen")
	}
}

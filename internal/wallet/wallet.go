// Package wallet orchestrates the key vault, the volatile session, and
// durable storage into the lock/unlock lifecycle of the keychain.
package wallet

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lisboaa111/Nillion-Keychain/internal/keyvault"
	"github.com/Lisboaa111/Nillion-Keychain/internal/metrics"
	"github.com/Lisboaa111/Nillion-Keychain/internal/secretvault"
	"github.com/Lisboaa111/Nillion-Keychain/internal/session"
	"github.com/Lisboaa111/Nillion-Keychain/internal/store"
)

var (
	// ErrLocked is returned when an operation requires an unlocked wallet.
	ErrLocked = session.ErrLocked

	// ErrNotInitialized is returned when no wallet has been set up yet.
	ErrNotInitialized = errors.New("wallet not setup")

	// ErrAlreadyInitialized is returned when setting up over an existing wallet.
	ErrAlreadyInitialized = errors.New("wallet already setup")

	// ErrWrongPassword is returned when the password does not decrypt the key.
	ErrWrongPassword = errors.New("wrong password")
)

// State is the wallet lifecycle state.
type State int

const (
	// Uninitialized means no wallet record exists.
	Uninitialized State = iota
	// Locked means a wallet exists but no session key is loaded.
	Locked
	// Unlocked means the session holds the decrypted key.
	Unlocked
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Locked:
		return "locked"
	case Unlocked:
		return "unlocked"
	}
	return "unknown"
}

// Status is a point-in-time snapshot of the wallet.
type Status struct {
	State State  `json:"state"`
	DID   string `json:"did,omitempty"`
}

// Wallet is the single owner of lock/unlock transitions. Page and bridge
// code never touch it directly; only the background router and the popup
// surface do.
type Wallet struct {
	store      store.Store
	session    *session.Session
	iterations int
	logger     *slog.Logger
}

// New builds a Wallet over the given store and session. iterations <= 0
// selects the key vault default.
func New(s store.Store, sess *session.Session, iterations int, logger *slog.Logger) *Wallet {
	if iterations <= 0 {
		iterations = keyvault.DefaultIterations
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Wallet{store: s, session: sess, iterations: iterations, logger: logger}
}

// Setup generates a fresh keypair, encrypts the private key under password,
// persists the record, and leaves the wallet unlocked. Returns the DID.
func (w *Wallet) Setup(password string) (string, error) {
	kp, err := secretvault.Generate()
	if err != nil {
		return "", fmt.Errorf("generate keypair: %w", err)
	}
	return w.install(kp, password)
}

// Import is Setup with a user-supplied hex private key.
func (w *Wallet) Import(password, privHex string) (string, error) {
	kp, err := secretvault.FromHex(privHex)
	if err != nil {
		return "", err
	}
	return w.install(kp, password)
}

func (w *Wallet) install(kp secretvault.Keypair, password string) (string, error) {
	if _, err := w.store.GetWallet(); err == nil {
		return "", ErrAlreadyInitialized
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("check wallet: %w", err)
	}

	privHex := kp.PrivateKeyHex()
	enc, err := keyvault.EncryptIterations(privHex, password, w.iterations)
	if err != nil {
		return "", fmt.Errorf("encrypt key: %w", err)
	}
	metrics.KDFOperationsTotal.WithLabelValues("encrypt").Inc()

	rec := &store.WalletRecord{
		Key:       *enc,
		DID:       kp.DID(),
		CreatedAt: time.Now().UTC(),
	}
	if err := w.store.SetWallet(rec); err != nil {
		return "", fmt.Errorf("persist wallet: %w", err)
	}

	w.session.Unlock([]byte(privHex))
	if err := w.store.SetUnlocked(true); err != nil {
		return "", fmt.Errorf("persist unlocked flag: %w", err)
	}
	metrics.WalletUnlocked.Set(1)

	w.logger.Info("wallet setup complete", "did", rec.DID)
	return rec.DID, nil
}

// Unlock decrypts the private key with password and loads it into the
// session. Returns ErrWrongPassword when the password fails authentication.
func (w *Wallet) Unlock(password string) error {
	rec, err := w.getRecord()
	if err != nil {
		return err
	}

	metrics.KDFOperationsTotal.WithLabelValues("decrypt").Inc()
	privHex, err := keyvault.Decrypt(&rec.Key, password)
	if err != nil {
		if errors.Is(err, keyvault.ErrAuthentication) {
			return ErrWrongPassword
		}
		return fmt.Errorf("decrypt key: %w", err)
	}

	w.session.Unlock([]byte(privHex))
	keyvault.ZeroBytes([]byte(privHex))
	if err := w.store.SetUnlocked(true); err != nil {
		return fmt.Errorf("persist unlocked flag: %w", err)
	}
	metrics.WalletUnlocked.Set(1)

	w.logger.Info("wallet unlocked")
	return nil
}

// Lock clears the session key and the persisted flag.
func (w *Wallet) Lock() error {
	w.session.Lock()
	if err := w.store.SetUnlocked(false); err != nil {
		return fmt.Errorf("persist unlocked flag: %w", err)
	}
	metrics.WalletUnlocked.Set(0)
	w.logger.Info("wallet locked")
	return nil
}

// StartupLock enforces the browser-restart / install / update auto-lock. In
// dev mode it is skipped so iterative reloads keep the wallet open.
func (w *Wallet) StartupLock(devMode bool, reason string) error {
	if devMode {
		w.logger.Info("dev mode: skipping auto-lock", "reason", reason)
		return nil
	}
	w.logger.Info("auto-locking wallet", "reason", reason)
	return w.Lock()
}

// IsUnlocked reports whether the wallet is usable. The persisted flag alone
// is never trusted: a stale flag without a live session key (after a restart)
// reads as locked.
func (w *Wallet) IsUnlocked() bool {
	if !w.session.Unlocked() {
		return false
	}
	unlocked, err := w.store.GetUnlocked()
	if err != nil {
		return false
	}
	return unlocked
}

// Initialized reports whether a wallet record exists.
func (w *Wallet) Initialized() bool {
	_, err := w.store.GetWallet()
	return err == nil
}

// DID returns the wallet's decentralized identifier.
func (w *Wallet) DID() (string, error) {
	rec, err := w.getRecord()
	if err != nil {
		return "", err
	}
	return rec.DID, nil
}

// Status reports the lifecycle state and DID.
func (w *Wallet) Status() Status {
	rec, err := w.getRecord()
	if err != nil {
		return Status{State: Uninitialized}
	}
	if w.IsUnlocked() {
		return Status{State: Unlocked, DID: rec.DID}
	}
	return Status{State: Locked, DID: rec.DID}
}

// Keypair reconstructs the signing keypair from the session key. Fails with
// ErrLocked when no key is loaded.
func (w *Wallet) Keypair() (secretvault.Keypair, error) {
	raw, ok := w.session.Key()
	if !ok {
		return nil, ErrLocked
	}
	defer keyvault.ZeroBytes(raw)
	return secretvault.FromHex(string(raw))
}

// ExportKey returns the raw private key hex after validating password.
func (w *Wallet) ExportKey(password string) (string, error) {
	rec, err := w.getRecord()
	if err != nil {
		return "", err
	}
	privHex, err := keyvault.Decrypt(&rec.Key, password)
	if err != nil {
		if errors.Is(err, keyvault.ErrAuthentication) {
			return "", ErrWrongPassword
		}
		return "", err
	}
	return privHex, nil
}

func (w *Wallet) getRecord() (*store.WalletRecord, error) {
	rec, err := w.store.GetWallet()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return rec, nil
}

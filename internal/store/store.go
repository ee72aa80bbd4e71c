// Package store provides the extension-scoped durable key-value storage:
// the encrypted wallet record, the persisted unlocked flag, the origin
// connection map, and the approval audit log.
package store

// Store defines the interface for durable wallet storage.
type Store interface {
	// Wallet record
	GetWallet() (*WalletRecord, error)
	SetWallet(rec *WalletRecord) error

	// Persisted unlocked flag. Callers must cross-check it against actual
	// session key presence; the flag alone never proves an unlocked wallet.
	GetUnlocked() (bool, error)
	SetUnlocked(unlocked bool) error

	// Origin connection map
	IsConnected(origin string) (bool, error)
	MarkConnected(origin string) error
	RemoveConnection(origin string) error
	ListConnections() ([]string, error)

	// Audit
	AppendAudit(entry *AuditEntry) error
	ListAudit(limit int) ([]*AuditEntry, error)

	// Lifecycle
	Close() error
}

package store

import (
	"time"

	"github.com/Lisboaa111/Nillion-Keychain/internal/keyvault"
)

// WalletRecord is the durable form of the wallet: the password-encrypted
// private key and the DID derived from it. The raw key never appears here.
type WalletRecord struct {
	Key       keyvault.EncryptedSecret `json:"key"`
	DID       string                   `json:"did"`
	CreatedAt time.Time                `json:"created_at"`
}

// AuditEntry records one sensitive decision made through the wallet.
type AuditEntry struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Origin  string    `json:"origin"`
	Action  string    `json:"action"`
	Outcome string    `json:"outcome"` // "approved", "rejected", "timeout", "error"
}

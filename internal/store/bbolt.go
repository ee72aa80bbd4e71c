package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names used in the bbolt database.
var (
	bucketMeta        = []byte("_meta")
	bucketConnections = []byte("connections")
	bucketAudit       = []byte("audit")
)

// Keys in the meta bucket.
const (
	walletKey   = "wallet"
	unlockedKey = "unlocked"
)

// Sentinel errors returned by store operations.
var (
	ErrNotFound       = errors.New("not found")
	ErrWalletNotFound = fmt.Errorf("wallet %w", ErrNotFound)
)

// BoltStore implements Store using bbolt.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) a bbolt database at the given path and
// ensures all required buckets exist. The file is created with 0600 permissions.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	if err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketConnections, bucketAudit} {
			if _, bErr := tx.CreateBucketIfNotExists(b); bErr != nil {
				return fmt.Errorf("create bucket %s: %w", b, bErr)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Wallet record
// ---------------------------------------------------------------------------

// GetWallet returns the stored wallet record, or ErrWalletNotFound.
func (s *BoltStore) GetWallet() (*WalletRecord, error) {
	var rec WalletRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get([]byte(walletKey))
		if v == nil {
			return ErrWalletNotFound
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SetWallet stores the wallet record.
func (s *BoltStore) SetWallet(rec *WalletRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal wallet: %w", err)
		}
		return tx.Bucket(bucketMeta).Put([]byte(walletKey), data)
	})
}

// ---------------------------------------------------------------------------
// Unlocked flag
// ---------------------------------------------------------------------------

// GetUnlocked returns the persisted unlocked flag; absent means locked.
func (s *BoltStore) GetUnlocked() (bool, error) {
	var unlocked bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get([]byte(unlockedKey))
		unlocked = len(v) == 1 && v[0] == 1
		return nil
	})
	return unlocked, err
}

// SetUnlocked stores the unlocked flag.
func (s *BoltStore) SetUnlocked(unlocked bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		v := []byte{0}
		if unlocked {
			v[0] = 1
		}
		return tx.Bucket(bucketMeta).Put([]byte(unlockedKey), v)
	})
}

// ---------------------------------------------------------------------------
// Connections
// ---------------------------------------------------------------------------

// IsConnected reports whether the origin is marked connected.
func (s *BoltStore) IsConnected(origin string) (bool, error) {
	var connected bool
	err := s.db.View(func(tx *bolt.Tx) error {
		connected = tx.Bucket(bucketConnections).Get([]byte(origin)) != nil
		return nil
	})
	return connected, err
}

// MarkConnected records the origin as connected.
func (s *BoltStore) MarkConnected(origin string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConnections).Put([]byte(origin), []byte{1})
	})
}

// RemoveConnection drops the origin from the connection map. Removing an
// unknown origin is not an error.
func (s *BoltStore) RemoveConnection(origin string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConnections).Delete([]byte(origin))
	})
}

// ListConnections returns all connected origins, sorted.
func (s *BoltStore) ListConnections() ([]string, error) {
	var origins []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConnections).ForEach(func(k, _ []byte) error {
			origins = append(origins, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(origins)
	return origins, nil
}

// ---------------------------------------------------------------------------
// Audit
// ---------------------------------------------------------------------------

// AppendAudit appends an audit entry under a monotonically increasing key.
func (s *BoltStore) AppendAudit(entry *AuditEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAudit)
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal audit entry: %w", err)
		}
		return b.Put(key, data)
	})
}

// ListAudit returns up to limit entries, newest first.
func (s *BoltStore) ListAudit(limit int) ([]*AuditEntry, error) {
	var entries []*AuditEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAudit).Cursor()
		for k, v := c.Last(); k != nil && (limit <= 0 || len(entries) < limit); k, v = c.Prev() {
			var e AuditEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unmarshal audit entry: %w", err)
			}
			entries = append(entries, &e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

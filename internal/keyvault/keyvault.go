// Package keyvault implements encryption-at-rest for the wallet's private key.
// It derives a symmetric key from the user's password with PBKDF2-SHA256 and
// seals the key material with AES-256-GCM, so a wrong password or tampered
// ciphertext is rejected instead of silently decrypting into garbage.
package keyvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the size of derived AES-256 keys in bytes.
	KeySize = 32

	// SaltSize is the size of KDF salts in bytes.
	SaltSize = 16

	// IVSize is the size of GCM nonces in bytes.
	IVSize = 12

	// TagSize is the size of GCM authentication tags in bytes.
	TagSize = 16

	// DefaultIterations is the PBKDF2 iteration count used for new secrets.
	DefaultIterations = 100_000

	// MinIterations is the lowest iteration count accepted for encryption.
	MinIterations = 100_000
)

var (
	// ErrAuthentication is returned when decryption fails, either because the
	// password is wrong or the ciphertext was tampered with. The two cases are
	// indistinguishable on purpose.
	ErrAuthentication = errors.New("authentication failed: wrong password or corrupted data")

	// ErrInvalidSaltSize is returned when a stored salt has the wrong length.
	ErrInvalidSaltSize = errors.New("salt must be 16 bytes")

	// ErrInvalidIVSize is returned when a stored IV has the wrong length.
	ErrInvalidIVSize = errors.New("iv must be 12 bytes")

	// ErrWeakIterations is returned when the requested iteration count is
	// below the minimum work factor.
	ErrWeakIterations = errors.New("kdf iteration count below minimum")
)

// EncryptedSecret is the at-rest form of the private key: AES-GCM ciphertext
// plus the salt and IV needed to re-derive the key. Salt and IV are unique
// per encryption.
type EncryptedSecret struct {
	Ciphertext    []byte `json:"ciphertext"`
	Salt          []byte `json:"salt"`
	IV            []byte `json:"iv"`
	KDFIterations int    `json:"kdfIterations"`
}

// Encrypt seals secret under a key derived from password using the default
// iteration count. A fresh random salt and IV are generated per call.
func Encrypt(secret, password string) (*EncryptedSecret, error) {
	return EncryptIterations(secret, password, DefaultIterations)
}

// EncryptIterations is Encrypt with an explicit PBKDF2 iteration count.
func EncryptIterations(secret, password string, iterations int) (*EncryptedSecret, error) {
	if iterations < MinIterations {
		return nil, ErrWeakIterations
	}

	salt, err := GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	key := deriveKey(password, salt, iterations)
	defer ZeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	return &EncryptedSecret{
		Ciphertext:    gcm.Seal(nil, iv, []byte(secret), nil),
		Salt:          salt,
		IV:            iv,
		KDFIterations: iterations,
	}, nil
}

// Decrypt re-derives the key from password using the stored salt and
// iteration count and opens the ciphertext. It returns ErrAuthentication on
// a wrong password or tampered data.
func Decrypt(enc *EncryptedSecret, password string) (string, error) {
	if len(enc.Salt) != SaltSize {
		return "", ErrInvalidSaltSize
	}
	if len(enc.IV) != IVSize {
		return "", ErrInvalidIVSize
	}

	iterations := enc.KDFIterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}

	key := deriveKey(password, enc.Salt, iterations)
	defer ZeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, enc.IV, enc.Ciphertext, nil)
	if err != nil {
		return "", ErrAuthentication
	}

	return string(plaintext), nil
}

// ValidatePassword reports whether password decrypts enc, swallowing the
// underlying error.
func ValidatePassword(enc *EncryptedSecret, password string) bool {
	plaintext, err := Decrypt(enc, password)
	if err != nil {
		return false
	}
	ZeroBytes([]byte(plaintext))
	return true
}

// GenerateSalt generates a cryptographically secure random 16-byte salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// ZeroBytes securely zeros a byte slice. Use this to clear sensitive data
// from memory when done.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func deriveKey(password string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, KeySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}

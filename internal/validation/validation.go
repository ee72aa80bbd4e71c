// Package validation provides input validation functions.
package validation

import (
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
)

var (
	// ErrPasswordTooShort is returned when a wallet password is under 8 characters.
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	// ErrPasswordTooLong is returned when a wallet password exceeds 1024 characters.
	ErrPasswordTooLong = errors.New("password must be at most 1024 characters")

	// ErrOriginEmpty is returned when an origin is empty.
	ErrOriginEmpty = errors.New("origin is required")
	// ErrOriginInvalid is returned when an origin is not scheme://host form.
	ErrOriginInvalid = errors.New("origin must be of the form scheme://host")

	// ErrPrivateKeyEmpty is returned when a private key is empty.
	ErrPrivateKeyEmpty = errors.New("private key is required")
	// ErrPrivateKeyInvalidHex is returned when a private key is not hex.
	ErrPrivateKeyInvalidHex = errors.New("private key must be hex encoded")

	// ErrCollectionEmpty is returned when a collection name is empty.
	ErrCollectionEmpty = errors.New("collection name is required")
	// ErrCollectionTooLong is returned when a collection name exceeds 255 characters.
	ErrCollectionTooLong = errors.New("collection name must be at most 255 characters")
)

// Password validates a wallet password.
// Rules: 8-1024 characters. No composition rules; length is what matters
// against an offline KDF attack.
func Password(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	if len(password) > 1024 {
		return ErrPasswordTooLong
	}
	return nil
}

// Origin validates a page origin.
// Rules: scheme://host with no path, query, or fragment.
func Origin(origin string) error {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return ErrOriginEmpty
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrOriginInvalid
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return ErrOriginInvalid
	}
	return nil
}

// PrivateKeyHex validates an imported private key string.
// Rules: non-empty, valid hex. Key length is the keypair package's concern.
func PrivateKeyHex(key string) error {
	if key == "" {
		return ErrPrivateKeyEmpty
	}
	if _, err := hex.DecodeString(key); err != nil {
		return ErrPrivateKeyInvalidHex
	}
	return nil
}

// Collection validates a collection name.
// Rules: 1-255 characters.
func Collection(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrCollectionEmpty
	}
	if len(name) > 255 {
		return ErrCollectionTooLong
	}
	return nil
}

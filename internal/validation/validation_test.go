package validation

import (
	"strings"
	"testing"
)

func TestPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"valid", "correct horse battery", nil},
		{"minimum length", "12345678", nil},
		{"too short", "1234567", ErrPasswordTooShort},
		{"empty", "", ErrPasswordTooShort},
		{"too long", strings.Repeat("a", 1025), ErrPasswordTooLong},
		{"max length", strings.Repeat("a", 1024), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Password(tt.password); err != tt.wantErr {
				t.Errorf("Password() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestOrigin(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		wantErr error
	}{
		{"https", "https://app.example", nil},
		{"with port", "http://localhost:3000", nil},
		{"empty", "", ErrOriginEmpty},
		{"whitespace", "   ", ErrOriginEmpty},
		{"no scheme", "app.example", ErrOriginInvalid},
		{"with path", "https://app.example/page", ErrOriginInvalid},
		{"with query", "https://app.example?x=1", ErrOriginInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Origin(tt.origin); err != tt.wantErr {
				t.Errorf("Origin() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPrivateKeyHex(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"valid", "deadbeef00", nil},
		{"empty", "", ErrPrivateKeyEmpty},
		{"not hex", "zzzz", ErrPrivateKeyInvalidHex},
		{"odd length", "abc", ErrPrivateKeyInvalidHex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := PrivateKeyHex(tt.key); err != tt.wantErr {
				t.Errorf("PrivateKeyHex() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCollection(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		wantErr    error
	}{
		{"valid", "notes", nil},
		{"empty", "", ErrCollectionEmpty},
		{"whitespace", "  ", ErrCollectionEmpty},
		{"too long", strings.Repeat("c", 256), ErrCollectionTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Collection(tt.collection); err != tt.wantErr {
				t.Errorf("Collection() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

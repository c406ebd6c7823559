// Package auth describes API keys used by administrative endpoints.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"
)

// Scopes granting access to administrative endpoints.
const (
	ScopeAdmin      = "admin"
	ScopeSuperAdmin = "super_admin"
)

// ErrKeyNotFound is returned when no active key matches a hash.
var ErrKeyNotFound = errors.New("api key not found")

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasAnyScope reports whether the key holds at least one of scopes.
func (i *APIKeyInfo) HasAnyScope(scopes ...string) bool {
	for _, s := range scopes {
		if slices.Contains(i.Scopes, s) {
			return true
		}
	}
	return false
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// HashKey returns the HMAC-SHA256 of key under pepper.
func HashKey(pepper []byte, key string) []byte {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return mac.Sum(nil)
}

// HashKeyHex returns HashKey hex-encoded, as stored in the database.
func HashKeyHex(pepper []byte, key string) string {
	return hex.EncodeToString(HashKey(pepper, key))
}

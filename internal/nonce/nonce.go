package nonce

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"informatik-booking/internal/config"
	"informatik-booking/internal/storage"
)

var Store NonceStoreInterface

// Number of random bytes. 16 → 128‑bit
const NONCE_SIZE = 16

// How often expired nonces are pruned.
const janitorInterval = time.Minute

type NonceStoreType string

// Supported nonce stores.
const (
	Memory NonceStoreType = "memory"
	SQL    NonceStoreType = "sql"
)

var ErrStoreNotInitialized = errors.New("nonce store not initialized")

type NonceMissingError struct {
	Nonce string
}

// Error implements the error interface.
func (e *NonceMissingError) Error() string {
	return fmt.Sprintf("nonce not found: %s", e.Nonce)
}

type NonceExpiredError struct {
	Nonce  string
	Expiry time.Time
}

// Error implements the error interface.
func (e *NonceExpiredError) Error() string {
	return fmt.Sprintf("nonce expired: %s (expiry: %s)", e.Nonce, e.Expiry)
}

type NonceStoreInterface interface {
	// stores a nonce with a TTL.
	Put(ctx context.Context, nonce string, ttl time.Duration) error
	// verifies and deletes the nonce.
	// Returns true if the nonce existed (valid request), false otherwise.
	Consume(ctx context.Context, nonce string) (bool, error)

	Exists(ctx context.Context, nonce string) bool

	ExpireNonces(ctx context.Context) error

	// stops the janitor
	Close()
}

func generateNonceToken() (string, error) {
	b := make([]byte, NONCE_SIZE)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Nonce creates a new nonce valid for ttl seconds, stores it in the global
// store, and returns it.
func Nonce(ctx context.Context, ttl uint) (string, error) {
	if Store == nil {
		return "", ErrStoreNotInitialized
	}
	nonce, err := generateNonceToken()
	if err != nil {
		return "", err
	}

	if err := Store.Put(ctx, nonce, time.Duration(ttl)*time.Second); err != nil {
		return "", fmt.Errorf("failed to store nonce: %w", err)
	}
	return nonce, nil
}

// Consume validates a nonce against the global store.
func Consume(ctx context.Context, nonce string) (bool, error) {
	if Store == nil {
		return false, ErrStoreNotInitialized
	}
	return Store.Consume(ctx, nonce)
}

// NewStore builds the appropriate Store implementation based on cfg. SQL
// stores need a storage backend that can hold nonces.
func NewStore(cfg *config.Config, provider storage.Provider) (NonceStoreInterface, error) {
	switch NonceStoreType(cfg.NonceStore) {
	case Memory:
		return NewMemoryStore(), nil
	case SQL:
		np, ok := provider.(storage.NonceProvider)
		if !ok {
			return nil, fmt.Errorf("storage type %q cannot hold nonces", cfg.Storage.Type)
		}
		return NewSQLNonceStore(np), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.NonceStore)
	}
}

// InitNonceStore creates the configured store, starts its janitor and makes
// it globally accessible.
func InitNonceStore(cfg *config.Config, provider storage.Provider) error {
	store, err := NewStore(cfg, provider)
	if err != nil {
		return fmt.Errorf("failed to initialize nonce store: %w", err)
	}

	switch s := store.(type) {
	case *SQLNonceStore:
		go s.janitor()
	case *MemoryStore:
		go s.janitor()
	}

	Store = store

	slog.Info("Initialized nonce store", "type", cfg.NonceStore)
	return nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"informatik-booking/internal/config"
	"informatik-booking/internal/slots"
)

var (
	ErrSlotNotFound = errors.New("slot not found")
	ErrUnsupported  = errors.New("unsupported storage configuration")
)

// timeNow is the clock used for lastUpdated stamps.
var timeNow = time.Now

// UpdateFunc mutates the document in place. Returning an error aborts the
// write and leaves the stored document unchanged.
type UpdateFunc func(data *slots.CalendarData) error

// Provider persists the calendar slot document. Every write is a
// read-modify-write under the backend's exclusion, stamps a strictly
// increasing lastUpdated and returns the document as stored.
type Provider interface {
	Close() error
	GetSchemaVersion(ctx context.Context) (int, error)

	// Load never fails: a missing or unreadable store yields an empty
	// document. Problems are logged.
	Load(ctx context.Context) slots.CalendarData
	Replace(ctx context.Context, data slots.CalendarData) (slots.CalendarData, error)
	SetSlotAvailability(ctx context.Context, slotID string, available bool) (slots.CalendarData, error)
	Update(ctx context.Context, fn UpdateFunc) (slots.CalendarData, error)
}

// NonceProvider is implemented by backends that can hold one-time nonces.
type NonceProvider interface {
	CreateNonce(ctx context.Context, nonce string, expiresAt time.Time) error
	ExistsNonce(ctx context.Context, nonce string) (bool, error)
	ConsumeNonce(ctx context.Context, nonce string) (bool, error)
	ExpireNonces(ctx context.Context, now time.Time) error
}

// NewProvider opens the configured backend and brings SQL schemas up to date.
func NewProvider(ctx context.Context, cfg *config.Storage) (Provider, error) {
	switch cfg.Type {
	case config.StorageFile, "":
		return NewFileProvider(cfg.File.Path), nil

	case config.StorageSQLite:
		provider, err := NewSQLiteProvider(cfg)
		if err != nil {
			return nil, err
		}
		if err := provider.runMigrations(ctx); err != nil {
			provider.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return provider, nil

	case config.StoragePostgres:
		provider, err := NewPostgresProvider(cfg)
		if err != nil {
			return nil, err
		}
		if err := provider.runMigrations(ctx); err != nil {
			provider.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return provider, nil
	}

	return nil, fmt.Errorf("%w: type %q", ErrUnsupported, cfg.Type)
}

// replaceWith returns an UpdateFunc that swaps in data's slots.
func replaceWith(data slots.CalendarData) UpdateFunc {
	return func(d *slots.CalendarData) error {
		d.Slots = data.Clone().Slots
		return nil
	}
}

// setAvailability returns an UpdateFunc that flips the first slot with slotID.
func setAvailability(slotID string, available bool) UpdateFunc {
	return func(d *slots.CalendarData) error {
		i := d.Find(slotID)
		if i < 0 {
			return ErrSlotNotFound
		}
		d.Slots[i].Available = available
		return nil
	}
}

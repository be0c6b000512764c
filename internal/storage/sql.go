package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"informatik-booking/internal/config"
	"informatik-booking/internal/slots"
)

// SQLProvider stores slots as rows of time_slots and the document stamp in
// calendar_meta. Writes rewrite the slot table inside one transaction.
type SQLProvider struct {
	db      *sqlx.DB
	dialect string

	config *config.Storage

	// Serialises writers within this process. Dialects add their own
	// cross-process lock in lockTx.
	mu sync.Mutex

	logger *slog.Logger
}

func NewSQLProvider(config *config.Storage, driverName, dialect, dataSource string) (*SQLProvider, error) {
	db, err := sqlx.Open(driverName, dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	return &SQLProvider{
		db:      db,
		dialect: dialect,
		config:  config,
		logger:  slog.With("component", "storage", "backend", dialect),
	}, nil
}

func (p *SQLProvider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func (p *SQLProvider) runMigrations(ctx context.Context) error {
	return NewMigrationRunner(p.db, p.dialect).Migrate(ctx, -1)
}

func (p *SQLProvider) GetSchemaVersion(ctx context.Context) (int, error) {
	return NewMigrationRunner(p.db, p.dialect).CurrentVersion(ctx)
}

func (p *SQLProvider) Load(ctx context.Context) slots.CalendarData {
	data, err := loadCalendar(ctx, p.db)
	if err != nil {
		p.logger.Warn("Failed to load calendar, serving empty calendar", "error", err)
		return slots.Empty(timeNow())
	}
	return data
}

func (p *SQLProvider) Replace(ctx context.Context, data slots.CalendarData) (slots.CalendarData, error) {
	return p.Update(ctx, replaceWith(data))
}

// SetSlotAvailability updates the single row in place instead of rewriting
// the table.
func (p *SQLProvider) SetSlotAvailability(ctx context.Context, slotID string, available bool) (slots.CalendarData, error) {
	var out slots.CalendarData
	err := p.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE time_slots SET available = ?
			WHERE position = (SELECT MIN(position) FROM time_slots WHERE id = ?)`), available, slotID)
		if err != nil {
			return fmt.Errorf("failed to update slot: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrSlotNotFound
		}

		prev, err := loadStamp(ctx, tx)
		if err != nil {
			return err
		}
		stamp := slots.NextTimestamp(prev, timeNow())
		if err := storeStamp(ctx, tx, stamp); err != nil {
			return err
		}

		out, err = loadCalendar(ctx, tx)
		return err
	})
	return out, err
}

func (p *SQLProvider) Update(ctx context.Context, fn UpdateFunc) (slots.CalendarData, error) {
	var out slots.CalendarData
	err := p.inTx(ctx, func(tx *sqlx.Tx) error {
		current, err := loadCalendar(ctx, tx)
		if err != nil {
			return err
		}

		next := current.Clone()
		if err := fn(&next); err != nil {
			return err
		}
		if next.Slots == nil {
			next.Slots = []slots.TimeSlot{}
		}
		next.LastUpdated = slots.NextTimestamp(current.LastUpdated, timeNow())

		if _, err := tx.ExecContext(ctx, `DELETE FROM time_slots`); err != nil {
			return fmt.Errorf("failed to clear slots: %w", err)
		}
		for i, s := range next.Slots {
			if _, err := tx.NamedExecContext(ctx, `INSERT INTO time_slots (position, id, date, start_time, end_time, available, title)
				VALUES (:position, :id, :date, :start_time, :end_time, :available, :title)`, slotRow{Position: i, TimeSlot: s}); err != nil {
				return fmt.Errorf("failed to insert slot %s: %w", s.ID, err)
			}
		}
		if err := storeStamp(ctx, tx, next.LastUpdated); err != nil {
			return err
		}

		out = next
		return nil
	})
	return out, err
}

func (p *SQLProvider) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := p.lockTx(ctx, tx); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// lockTx takes a transaction-scoped lock so concurrent server processes
// sharing one database serialise their read-modify-write cycles.
func (p *SQLProvider) lockTx(ctx context.Context, tx *sqlx.Tx) error {
	if p.dialect != dialectPostgres {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('calendar_data'))`); err != nil {
		return fmt.Errorf("failed to lock calendar: %w", err)
	}
	return nil
}

func loadCalendar(ctx context.Context, q sqlx.QueryerContext) (slots.CalendarData, error) {
	var rows []slotRow
	if err := sqlx.SelectContext(ctx, q, &rows, `SELECT position, id, date, start_time, end_time, available, title
		FROM time_slots ORDER BY position`); err != nil {
		return slots.CalendarData{}, fmt.Errorf("failed to load slots: %w", err)
	}

	stamp, err := loadStamp(ctx, q)
	if err != nil {
		return slots.CalendarData{}, err
	}
	if stamp.IsZero() {
		stamp = slots.NewTimestamp(timeNow())
	}

	data := slots.CalendarData{
		Slots:       make([]slots.TimeSlot, 0, len(rows)),
		LastUpdated: stamp,
	}
	for _, r := range rows {
		data.Slots = append(data.Slots, r.TimeSlot)
	}
	return data, nil
}

// loadStamp returns the zero Timestamp when nothing has been written yet.
func loadStamp(ctx context.Context, q sqlx.QueryerContext) (slots.Timestamp, error) {
	var raw string
	err := sqlx.GetContext(ctx, q, &raw, `SELECT last_updated FROM calendar_meta WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return slots.Timestamp{}, nil
	}
	if err != nil {
		return slots.Timestamp{}, fmt.Errorf("failed to load calendar meta: %w", err)
	}
	return slots.ParseTimestamp(raw)
}

func storeStamp(ctx context.Context, tx *sqlx.Tx, stamp slots.Timestamp) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO calendar_meta (id, last_updated) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET last_updated = excluded.last_updated`), stamp.String())
	if err != nil {
		return fmt.Errorf("failed to store calendar meta: %w", err)
	}
	return nil
}

func (p *SQLProvider) CreateNonce(ctx context.Context, nonce string, expiresAt time.Time) error {
	_, err := p.db.ExecContext(ctx, p.db.Rebind(`INSERT INTO nonces (nonce, expires_at) VALUES (?, ?)`), nonce, expiresAt.UnixMilli())
	return err
}

func (p *SQLProvider) ExistsNonce(ctx context.Context, nonce string) (bool, error) {
	var n int
	err := p.db.GetContext(ctx, &n, p.db.Rebind(`SELECT COUNT(*) FROM nonces WHERE nonce = ? AND expires_at > ?`), nonce, timeNow().UnixMilli())
	return n > 0, err
}

// ConsumeNonce deletes an unexpired nonce and reports whether it existed.
func (p *SQLProvider) ConsumeNonce(ctx context.Context, nonce string) (bool, error) {
	res, err := p.db.ExecContext(ctx, p.db.Rebind(`DELETE FROM nonces WHERE nonce = ? AND expires_at > ?`), nonce, timeNow().UnixMilli())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (p *SQLProvider) ExpireNonces(ctx context.Context, now time.Time) error {
	_, err := p.db.ExecContext(ctx, p.db.Rebind(`DELETE FROM nonces WHERE expires_at <= ?`), now.UnixMilli())
	return err
}

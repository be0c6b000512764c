package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"informatik-booking/internal/slots"
)

// FileProvider keeps the document in a single JSON file. Writes go to a
// temporary file in the same directory which is then renamed over the
// original, so readers never observe a partial document.
type FileProvider struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{
		path:   path,
		logger: slog.With("component", "storage", "backend", "file"),
	}
}

func (p *FileProvider) Close() error { return nil }

// GetSchemaVersion is always 0; the file format is not versioned.
func (p *FileProvider) GetSchemaVersion(ctx context.Context) (int, error) {
	return 0, nil
}

func (p *FileProvider) Load(ctx context.Context) slots.CalendarData {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.read()
	if errors.Is(err, fs.ErrNotExist) {
		data = slots.Empty(timeNow())
		if err := p.write(data); err != nil {
			p.logger.Warn("Failed to create data file", "path", p.path, "error", err)
		}
		return data
	}
	if err != nil {
		p.logger.Warn("Failed to read data file, serving empty calendar", "path", p.path, "error", err)
		return slots.Empty(timeNow())
	}
	return data
}

func (p *FileProvider) Replace(ctx context.Context, data slots.CalendarData) (slots.CalendarData, error) {
	return p.Update(ctx, replaceWith(data))
}

func (p *FileProvider) SetSlotAvailability(ctx context.Context, slotID string, available bool) (slots.CalendarData, error) {
	return p.Update(ctx, setAvailability(slotID, available))
}

func (p *FileProvider) Update(ctx context.Context, fn UpdateFunc) (slots.CalendarData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return slots.CalendarData{}, err
	}

	current, err := p.read()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("Failed to read data file, starting from empty calendar", "path", p.path, "error", err)
		}
		current = slots.CalendarData{Slots: []slots.TimeSlot{}}
	}

	next := current.Clone()
	if err := fn(&next); err != nil {
		return slots.CalendarData{}, err
	}
	if next.Slots == nil {
		next.Slots = []slots.TimeSlot{}
	}
	next.LastUpdated = slots.NextTimestamp(current.LastUpdated, timeNow())

	if err := p.write(next); err != nil {
		return slots.CalendarData{}, err
	}
	return next, nil
}

func (p *FileProvider) read() (slots.CalendarData, error) {
	var data slots.CalendarData
	b, err := os.ReadFile(p.path)
	if err != nil {
		return data, err
	}
	if err := json.Unmarshal(b, &data); err != nil {
		return data, fmt.Errorf("corrupt data file: %w", err)
	}
	if data.Slots == nil {
		data.Slots = []slots.TimeSlot{}
	}
	return data, nil
}

func (p *FileProvider) write(data slots.CalendarData) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p.path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("failed to replace data file: %w", err)
	}
	return nil
}

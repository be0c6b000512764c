package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"informatik-booking/internal/slots"
)

// Cache is a local copy of the slot store kept in a single JSON file.
type Cache struct {
	path string
	mu   sync.Mutex
}

func NewCache(path string) *Cache {
	return &Cache{path: path}
}

// Load returns the cached document. ok is false when there is no usable
// cache.
func (c *Cache) Load() (data slots.CalendarData, ok bool) {
	if c == nil || c.path == "" {
		return slots.CalendarData{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := os.ReadFile(c.path)
	if err != nil {
		return slots.CalendarData{}, false
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return slots.CalendarData{}, false
	}
	if data.Slots == nil {
		data.Slots = []slots.TimeSlot{}
	}
	return data, true
}

// Store replaces the cached document.
func (c *Cache) Store(data slots.CalendarData) error {
	if c == nil || c.path == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

// Remove deletes the cache file. A missing file is not an error.
func (c *Cache) Remove() error {
	if c == nil || c.path == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

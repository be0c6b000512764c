package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"informatik-booking/internal/slots"
)

var ErrInvalidLegacyData = errors.New("invalid legacy calendar data")

// errStoreNewer aborts an import inside Update without writing.
var errStoreNewer = errors.New("store is newer than legacy data")

// ReadLegacy decodes a legacy cache export. Browser exports come as UTF-8,
// with or without BOM, or as UTF-16 with BOM. Both the full document and a
// bare slot list are accepted.
func ReadLegacy(r io.Reader) (slots.CalendarData, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	raw, err := io.ReadAll(transform.NewReader(r, decoder))
	if err != nil {
		return slots.CalendarData{}, fmt.Errorf("failed to decode legacy data: %w", err)
	}
	raw = bytes.TrimSpace(raw)

	var data slots.CalendarData
	switch {
	case len(raw) > 0 && raw[0] == '[':
		err = json.Unmarshal(raw, &data.Slots)
	case len(raw) > 0 && raw[0] == '{':
		err = json.Unmarshal(raw, &data)
	default:
		err = errors.New("not a JSON object or array")
	}
	if err != nil {
		return slots.CalendarData{}, fmt.Errorf("%w: %w", ErrInvalidLegacyData, err)
	}
	if data.Slots == nil {
		data.Slots = []slots.TimeSlot{}
	}
	return data, nil
}

// ImportLegacy replaces the store's slots with legacy data unless the store
// holds slots updated more recently. force skips the comparison. It reports
// whether the store was written.
func ImportLegacy(ctx context.Context, p Provider, legacy slots.CalendarData, force bool) (bool, error) {
	if len(legacy.Slots) == 0 {
		return false, nil
	}

	_, err := p.Update(ctx, func(current *slots.CalendarData) error {
		if !force && current.Supersedes(legacy) {
			return errStoreNewer
		}
		current.Slots = append([]slots.TimeSlot(nil), legacy.Slots...)
		return nil
	})
	if errors.Is(err, errStoreNewer) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

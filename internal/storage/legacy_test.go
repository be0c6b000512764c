package storage

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"informatik-booking/internal/slots"
)

const legacyDoc = `{"slots":[{"id":"a","date":"2025-03-14","startTime":"19:00","endTime":"19:30","available":true,"title":"19:00 - 19:30"}],"lastUpdated":"2025-03-14T10:00:00.000Z"}`

func utf16LE(s string) []byte {
	out := []byte{0xFF, 0xFE}
	for _, r := range s {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}

func TestReadLegacyEncodings(t *testing.T) {
	inputs := map[string][]byte{
		"utf-8":          []byte(legacyDoc),
		"utf-8 with bom": append([]byte{0xEF, 0xBB, 0xBF}, legacyDoc...),
		"utf-16le":       utf16LE(legacyDoc),
		"bare list":      []byte(`[{"id":"a","date":"2025-03-14","startTime":"19:00","endTime":"19:30","available":true,"title":"x"}]`),
	}
	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			data, err := ReadLegacy(bytes.NewReader(raw))
			if err != nil {
				t.Fatalf("ReadLegacy: %v", err)
			}
			if len(data.Slots) != 1 || data.Slots[0].ID != "a" {
				t.Errorf("slots = %+v", data.Slots)
			}
		})
	}
}

func TestReadLegacyRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "hello", `{"slots":"x"}`} {
		if _, err := ReadLegacy(strings.NewReader(in)); !errors.Is(err, ErrInvalidLegacyData) {
			t.Errorf("ReadLegacy(%q) err = %v", in, err)
		}
	}
}

func TestImportLegacy(t *testing.T) {
	frozenClock(t, time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC))

	for name, p := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			legacy, err := ReadLegacy(strings.NewReader(legacyDoc))
			if err != nil {
				t.Fatal(err)
			}

			// Empty store stamped at 12:00 is newer than the 10:00 export.
			p.Load(ctx)
			if _, err := p.Replace(ctx, slots.CalendarData{Slots: daySlots(t, "2025-03-15")}); err != nil {
				t.Fatal(err)
			}
			imported, err := ImportLegacy(ctx, p, legacy, false)
			if err != nil || imported {
				t.Fatalf("import over newer store: imported=%v err=%v", imported, err)
			}
			if got := p.Load(ctx); len(got.Slots) != 4 {
				t.Errorf("store changed: %d slots", len(got.Slots))
			}

			imported, err = ImportLegacy(ctx, p, legacy, true)
			if err != nil || !imported {
				t.Fatalf("forced import: imported=%v err=%v", imported, err)
			}
			if got := p.Load(ctx); len(got.Slots) != 1 || got.Slots[0].ID != "a" {
				t.Errorf("store after import = %+v", got.Slots)
			}

			if imported, _ := ImportLegacy(ctx, p, slots.CalendarData{}, true); imported {
				t.Error("empty legacy data imported")
			}
		})
	}
}

func TestImportLegacyIntoFreshStore(t *testing.T) {
	frozenClock(t, time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC))

	for name, p := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			legacy, err := ReadLegacy(strings.NewReader(legacyDoc))
			if err != nil {
				t.Fatal(err)
			}

			// Reading stamps the empty store after the export.
			if got := p.Load(ctx); !got.LastUpdated.NewerThan(legacy.LastUpdated) {
				t.Fatalf("fresh store stamp %s not after export", got.LastUpdated)
			}
			imported, err := ImportLegacy(ctx, p, legacy, false)
			if err != nil || !imported {
				t.Fatalf("import into fresh store: imported=%v err=%v", imported, err)
			}
			if got := p.Load(ctx); len(got.Slots) != 1 || got.Slots[0].ID != "a" {
				t.Errorf("store after import = %+v", got.Slots)
			}
		})
	}
}

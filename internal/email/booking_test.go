package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRenderBooking(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	b := Booking{
		Summary:     "Beratungstermin: Ada <Lovelace>",
		Description: "Telefon: 123",
		Start:       time.Date(2025, 3, 14, 19, 0, 0, 0, loc),
		End:         time.Date(2025, 3, 14, 19, 30, 0, 0, loc),
		Attendees:   []string{"ada@example.com"},
	}

	msg, err := RenderBooking(b)
	if err != nil {
		t.Fatalf("RenderBooking: %v", err)
	}
	if !strings.HasPrefix(msg.Subject, "Neue Buchung: ") {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	for _, want := range []string{"14.03.2025 19:00", "14.03.2025 19:30", "ada@example.com", "&lt;Lovelace&gt;"} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("HTML missing %q:\n%s", want, msg.HTML)
		}
	}

	text, err := htmlToText(msg.HTML)
	if err != nil {
		t.Fatalf("htmlToText: %v", err)
	}
	if !strings.Contains(text, "ada@example.com") {
		t.Errorf("text body missing attendee:\n%s", text)
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(SMTPConfig{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNotifyBookingRequiresRecipient(t *testing.T) {
	c, err := NewClient(SMTPConfig{Host: "localhost"})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.NotifyBooking(context.Background(), Booking{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSMTPConfigEnabled(t *testing.T) {
	cases := []struct {
		cfg  SMTPConfig
		want bool
	}{
		{SMTPConfig{}, false},
		{SMTPConfig{Host: "mail"}, false},
		{SMTPConfig{Host: "mail", NotifyTo: "info@example.com"}, true},
	}
	for _, c := range cases {
		if got := c.cfg.Enabled(); got != c.want {
			t.Errorf("%+v: got %v, want %v", c.cfg, got, c.want)
		}
	}
}

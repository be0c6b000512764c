package email

import (
	"bytes"
	"context"
	"html/template"
	"time"
)

// Booking is the subset of a created calendar event a notification shows.
type Booking struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
	Link        string
}

var bookingTemplate = template.Must(template.New("booking").Parse(`<html><body>
<h2>{{.Summary}}</h2>
<table>
<tr><th>Beginn</th><td>{{.Start.Format "02.01.2006 15:04"}}</td></tr>
<tr><th>Ende</th><td>{{.End.Format "02.01.2006 15:04"}}</td></tr>
{{range .Attendees}}<tr><th>Teilnehmer</th><td>{{.}}</td></tr>
{{end}}</table>
{{if .Description}}<pre>{{.Description}}</pre>{{end}}
{{if .Link}}<p><a href="{{.Link}}">Im Kalender öffnen</a></p>{{end}}
</body></html>`))

// RenderBooking renders the notification for b.
func RenderBooking(b Booking) (*Message, error) {
	var buf bytes.Buffer
	if err := bookingTemplate.Execute(&buf, b); err != nil {
		return nil, err
	}
	return &Message{
		Subject: "Neue Buchung: " + b.Summary,
		HTML:    buf.String(),
	}, nil
}

// NotifyBooking mails the configured recipient about a new booking.
func (c *Client) NotifyBooking(ctx context.Context, b Booking) error {
	if c.cfg.NotifyTo == "" {
		return ErrNotConfigured
	}
	msg, err := RenderBooking(b)
	if err != nil {
		return err
	}
	msg.To = []string{c.cfg.NotifyTo}
	return c.Send(ctx, msg)
}

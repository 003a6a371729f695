package adapters

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eventcastapp/eventcast/app/models"
	"github.com/eventcastapp/eventcast/internal/pkg/platforms"
)

const (
	icalTimeLayout  = "20060102T150405"
	icalStampLayout = "20060102T150405Z"
)

// ICalAdapter renders events as iCalendar payloads instead of calling any
// network API. It needs no credentials and is connected from construction;
// the generated calendar text itself is the "external id" a publication
// stores, there is no external URL.
type ICalAdapter struct {
	ProdID string

	connected bool
}

func NewICalAdapter() *ICalAdapter {
	return &ICalAdapter{
		ProdID:    "-//EventCast//Event Publisher//EN",
		connected: true,
	}
}

func (a *ICalAdapter) Platform() platforms.ID { return platforms.ICal }

func (a *ICalAdapter) IsConnected(ctx context.Context) bool { return a.connected }

func (a *ICalAdapter) Connect(ctx context.Context, creds map[string]string) ConnectionResult {
	a.connected = true
	return ConnectionResult{Success: true, AccountID: "local", AccountName: "Calendar Export"}
}

func (a *ICalAdapter) Disconnect() { a.connected = false }

func (a *ICalAdapter) TransformEvent(event *models.CanonicalEvent) *TransformedEvent {
	out := baseTransform(platforms.ICal, event)
	if event.OrganizerName != "" {
		out.Metadata["organizer_name"] = event.OrganizerName
	}
	if event.OrganizerEmail != "" {
		out.Metadata["organizer_email"] = event.OrganizerEmail
	}
	return out
}

func (a *ICalAdapter) CreateEvent(ctx context.Context, event *TransformedEvent) PublicationResult {
	if !a.connected {
		return notConnectedResult()
	}
	payload := a.Generate(event, uuid.NewString()+"@eventcast", time.Now().UTC())
	return PublicationResult{
		Success:       true,
		PublicationID: uuid.NewString(),
		ExternalID:    payload,
	}
}

// UpdateEvent regenerates the payload from scratch; for a text artifact a
// fresh render and an update are the same thing.
func (a *ICalAdapter) UpdateEvent(ctx context.Context, externalID string, event *TransformedEvent) PublicationResult {
	return a.CreateEvent(ctx, event)
}

// DeleteEvent has nothing to tear down; the stored artifact is dropped by
// the caller when it marks the publication deleted.
func (a *ICalAdapter) DeleteEvent(ctx context.Context, externalID string) error {
	if !a.connected {
		return ErrNotConnected
	}
	return nil
}

func (a *ICalAdapter) EventURL(externalID string) string { return "" }

// Generate renders one VCALENDAR document with a single VEVENT. Lines are
// CRLF terminated and local times carry their zone via TZID parameters.
func (a *ICalAdapter) Generate(event *TransformedEvent, uid string, stamp time.Time) string {
	start := eventLocalTime(event.StartTime, event.Timezone)
	end := eventLocalTime(event.EndTime, event.Timezone)
	tzid := icalTZID(event.Timezone)

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + a.ProdID,
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"BEGIN:VEVENT",
		"UID:" + uid,
		"DTSTAMP:" + stamp.UTC().Format(icalStampLayout),
		"DTSTART;TZID=" + tzid + ":" + start.Format(icalTimeLayout),
		"DTEND;TZID=" + tzid + ":" + end.Format(icalTimeLayout),
		"SUMMARY:" + escapeICalText(event.Title),
	}
	if event.Description != "" {
		lines = append(lines, "DESCRIPTION:"+escapeICalText(event.Description))
	}
	if event.Location != "" {
		lines = append(lines, "LOCATION:"+escapeICalText(event.Location))
	}
	if name, email := event.Metadata["organizer_name"], event.Metadata["organizer_email"]; email != "" {
		organizer := "ORGANIZER"
		if name != "" {
			organizer += ";CN=" + escapeICalText(name)
		}
		lines = append(lines, organizer+":mailto:"+email)
	}
	if category := event.Metadata["category"]; category != "" {
		lines = append(lines, "CATEGORIES:"+escapeICalText(category))
	}
	if event.CoverImageURL != "" {
		lines = append(lines, "IMAGE;VALUE=URI:"+event.CoverImageURL)
	}
	lines = append(lines, "END:VEVENT", "END:VCALENDAR")

	return strings.Join(lines, "\r\n") + "\r\n"
}

// icalTZID returns the TZID parameter value for a timezone name. Names that
// do not resolve fall back to UTC, the zone eventLocalTime renders such
// times in; emitting the unresolvable name would mislabel a UTC wall time.
func icalTZID(tz string) string {
	if tz == "" {
		return "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return "UTC"
	}
	return tz
}

// escapeICalText applies RFC 5545 text escaping. The backslash pass must run
// first or it would double-escape the characters the later passes insert.
func escapeICalText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

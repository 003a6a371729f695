package adapters

import (
	"strings"
	"time"

	"github.com/eventcastapp/eventcast/app/models"
	"github.com/eventcastapp/eventcast/internal/pkg/platforms"
)

const truncationSuffix = "..."

// truncate shortens s to at most max runes, replacing the tail with "..."
// when it does. max <= 0 means no limit. The result never splits a rune and,
// when truncation happens, is exactly max runes long.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= len(truncationSuffix) {
		return string(runes[:max])
	}
	return string(runes[:max-len(truncationSuffix)]) + truncationSuffix
}

// eventLocation renders the canonical location into one line. Virtual events
// resolve to their URL; physical events join the populated venue fields.
func eventLocation(e *models.CanonicalEvent) string {
	if e.IsVirtual {
		return strings.TrimSpace(e.VirtualURL)
	}
	parts := make([]string, 0, 4)
	for _, p := range []string{e.VenueName, e.VenueAddress, e.VenueCity, e.VenueCountry} {
		if v := strings.TrimSpace(p); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

// eventLocalTime shifts t into the event's own timezone; falls back to UTC
// when the stored identifier does not resolve.
func eventLocalTime(t time.Time, tz string) time.Time {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc)
}

// baseTransform applies the limits and location mapping every platform
// shares; adapters refine the result with their own quirks.
func baseTransform(id platforms.ID, e *models.CanonicalEvent) *TransformedEvent {
	meta, _ := platforms.Get(id)
	caps := meta.Capabilities

	out := &TransformedEvent{
		Platform:      id,
		Title:         truncate(strings.TrimSpace(e.Title), caps.MaxTitleLength),
		Description:   truncate(strings.TrimSpace(e.Description), caps.MaxDescriptionLength),
		StartTime:     e.StartTime,
		EndTime:       e.EndTime,
		Timezone:      e.Timezone,
		IsVirtual:     e.IsVirtual,
		Location:      eventLocation(e),
		CoverImageURL: strings.TrimSpace(e.CoverImageURL),
		Metadata:      map[string]string{},
	}
	if e.Category != "" {
		out.Metadata["category"] = e.Category
	}
	if e.TicketURL != "" && caps.SupportsTicketing {
		out.Metadata["ticket_url"] = e.TicketURL
	}
	return out
}

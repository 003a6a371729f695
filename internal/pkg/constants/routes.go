package constants

// Static route constants
const (
	APIRoute = "/api/v1"

	ConnectRoute    = "/connect/:platform"
	CallbackRoute   = "/connect/:platform/callback"
	DisconnectRoute = "/connect/:platform"

	PublishRoute      = "/events/:id/publish"
	UnpublishRoute    = "/events/:id/publish"
	PublicationsRoute = "/events/:id/publications"

	PlatformsRoute = "/platforms"
	StatsRoute     = "/stats"

	// Signed download link for calendar exports; no API key required.
	ExportRoute = "/export/ical"
)

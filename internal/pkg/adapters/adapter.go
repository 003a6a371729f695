package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eventcastapp/eventcast/app/models"
	"github.com/eventcastapp/eventcast/internal/pkg/platforms"
)

// Error codes shared across adapters. Platform API errors use a platform
// prefix plus the platform's own code (FACEBOOK_190, ZOOM_3001, ...) so
// failures stay debuggable without collapsing distinctions.
const (
	CodeNotConnected = "NOT_CONNECTED"
	CodeNetworkError = "NETWORK_ERROR"
)

// ErrNotConnected is returned by DeleteEvent when the adapter has no
// validated connection. Create/Update report the same condition through the
// result shape instead.
var ErrNotConnected = errors.New("adapter is not connected")

// ConnectionResult reports the outcome of validating credentials against a
// platform.
type ConnectionResult struct {
	Success     bool
	AccountID   string
	AccountName string
	Error       string
}

// PublicationError is the uniform error shape every adapter produces,
// whatever the platform's native failure looked like.
type PublicationError struct {
	Code      string
	Message   string
	Timestamp time.Time
	Retryable bool
}

func (e *PublicationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// PublicationResult is the outcome of one create or update operation.
type PublicationResult struct {
	Success       bool
	PublicationID string
	ExternalID    string
	ExternalURL   string
	Error         *PublicationError
}

// TransformedEvent is the platform-shaped projection of a canonical event.
// It is built fresh per publish attempt and never persisted.
type TransformedEvent struct {
	Platform    platforms.ID
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Timezone    string
	IsVirtual   bool
	// Location is the platform encoding of where the event happens: a
	// joined venue address for physical events, the virtual URL otherwise.
	Location      string
	CoverImageURL string
	// Metadata carries platform-specific payload inputs (category
	// mappings, registration URLs) that have no first-class field.
	Metadata map[string]string
}

// Adapter is the publishing contract every platform implements. One instance
// serves one (organization, platform) connection attempt; instances are not
// safe for concurrent method calls without external serialization.
//
// Lifecycle: disconnected -> Connect success -> connected -> Disconnect ->
// disconnected. Create/Update/Delete are only valid while connected and
// never reach the network otherwise.
type Adapter interface {
	Platform() platforms.ID

	// IsConnected probes the platform with the held credentials. It never
	// returns an error; any failure (network, auth, malformed response)
	// reads as false.
	IsConnected(ctx context.Context) bool

	// Connect validates credentials with one read-only platform call and
	// stores them in adapter-local state on success. A missing required
	// key fails locally without any network traffic.
	Connect(ctx context.Context, creds map[string]string) ConnectionResult

	// Disconnect clears adapter-local state. Persistent credential rows
	// are the credential store's business, never touched here.
	Disconnect()

	// TransformEvent projects the canonical event into the platform's
	// shape. Pure: no I/O, no side effects, identical output on repeat
	// calls.
	TransformEvent(event *models.CanonicalEvent) *TransformedEvent

	CreateEvent(ctx context.Context, event *TransformedEvent) PublicationResult

	UpdateEvent(ctx context.Context, externalID string, event *TransformedEvent) PublicationResult

	// DeleteEvent errors only when deletion verifiably did not happen; a
	// platform reporting "already gone" counts as success.
	DeleteEvent(ctx context.Context, externalID string) error

	// EventURL renders the platform's public URL template for an external
	// id. Pure; the real URL may differ, this is a documented best effort.
	EventURL(externalID string) string
}

// New constructs the adapter for a platform id. Declared-but-unimplemented
// platforms fail explicitly rather than silently no-op.
func New(id platforms.ID) (Adapter, error) {
	meta, ok := platforms.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown platform %q", id)
	}
	if !meta.Implemented {
		return nil, fmt.Errorf("platform %q has no adapter yet", id)
	}

	switch id {
	case platforms.Facebook:
		return NewFacebookAdapter(), nil
	case platforms.LinkedIn:
		return NewLinkedInAdapter(), nil
	case platforms.ZoomMeeting, platforms.ZoomWebinar:
		return NewZoomAdapter(id), nil
	case platforms.ICal:
		return NewICalAdapter(), nil
	default:
		return nil, fmt.Errorf("platform %q has no adapter yet", id)
	}
}

func successResult(externalID, externalURL string) PublicationResult {
	return PublicationResult{
		Success:       true,
		PublicationID: uuid.NewString(),
		ExternalID:    externalID,
		ExternalURL:   externalURL,
	}
}

func failureResult(code, message string, retryable bool) PublicationResult {
	return PublicationResult{
		PublicationID: uuid.NewString(),
		Error: &PublicationError{
			Code:      code,
			Message:   message,
			Timestamp: time.Now(),
			Retryable: retryable,
		},
	}
}

func notConnectedResult() PublicationResult {
	return failureResult(CodeNotConnected, "adapter is not connected", false)
}

func networkErrorResult(err error) PublicationResult {
	return failureResult(CodeNetworkError, err.Error(), true)
}

// retryableStatus is the transport-level part of the retry policy shared by
// every network adapter: 429 and 5xx are transient, everything else in 4xx
// is terminal.
func retryableStatus(status int) bool {
	return status == 429 || status >= 500
}

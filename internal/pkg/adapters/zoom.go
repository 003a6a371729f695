package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eventcastapp/eventcast/app/models"
	"github.com/eventcastapp/eventcast/internal/pkg/env"
	"github.com/eventcastapp/eventcast/internal/pkg/platforms"
)

const defaultZoomAPIBaseURL = "https://api.zoom.us/v2"

const (
	zoomTypeScheduledMeeting = 2
	zoomTypeWebinar          = 5

	// Zoom reports a deleted or never-existing meeting with this code.
	zoomCodeMeetingNotFound = 3001
)

// ZoomAdapter publishes events as Zoom meetings or webinars. One adapter
// serves both products; the mode is fixed at construction because meetings
// and webinars live under different API resources.
type ZoomAdapter struct {
	APIBaseURL string
	HTTPClient *http.Client

	mode platforms.ID

	userID      string
	accessToken string
	connected   bool
}

// NewZoomAdapter builds the adapter for one Zoom product. Any id other than
// ZoomWebinar runs in meeting mode.
func NewZoomAdapter(mode platforms.ID) *ZoomAdapter {
	if mode != platforms.ZoomWebinar {
		mode = platforms.ZoomMeeting
	}
	return &ZoomAdapter{
		APIBaseURL: strings.TrimSpace(env.GetEnv("ZOOM_API_BASE_URL", defaultZoomAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		mode: mode,
	}
}

type zoomErrorEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (z *ZoomAdapter) Platform() platforms.ID { return z.mode }

func (z *ZoomAdapter) IsConnected(ctx context.Context) bool {
	if !z.connected || z.accessToken == "" {
		return false
	}
	_, status, err := z.call(ctx, http.MethodGet, "/users/me", nil)
	return err == nil && status >= 200 && status < 300
}

// Connect validates the access token against the token owner's profile.
// Required key: access_token; user_id defaults to "me".
func (z *ZoomAdapter) Connect(ctx context.Context, creds map[string]string) ConnectionResult {
	token := strings.TrimSpace(creds["access_token"])
	if token == "" {
		return ConnectionResult{Error: "zoom connection requires access_token"}
	}
	userID := strings.TrimSpace(creds["user_id"])
	if userID == "" {
		userID = "me"
	}

	z.accessToken = token
	z.userID = userID

	body, status, err := z.call(ctx, http.MethodGet, "/users/me", nil)
	if err != nil {
		z.Disconnect()
		return ConnectionResult{Error: fmt.Sprintf("zoom user lookup failed: %v", err)}
	}
	if status < 200 || status >= 300 {
		z.Disconnect()
		return ConnectionResult{Error: zoomError(status, body).Message}
	}

	var user struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
	}
	if err := json.Unmarshal(body, &user); err != nil || user.ID == "" {
		z.Disconnect()
		return ConnectionResult{Error: "zoom user response was not understood"}
	}

	name := strings.TrimSpace(user.DisplayName)
	if name == "" {
		name = strings.TrimSpace(user.FirstName + " " + user.LastName)
	}

	z.connected = true
	return ConnectionResult{Success: true, AccountID: user.ID, AccountName: name}
}

func (z *ZoomAdapter) Disconnect() {
	z.userID = ""
	z.accessToken = ""
	z.connected = false
}

// TransformEvent forces the virtual flag: whatever the canonical event says,
// a Zoom publication is an online session and the join URL Zoom mints is the
// authoritative location.
func (z *ZoomAdapter) TransformEvent(event *models.CanonicalEvent) *TransformedEvent {
	out := baseTransform(z.mode, event)
	out.IsVirtual = true
	out.Location = ""
	return out
}

func (z *ZoomAdapter) CreateEvent(ctx context.Context, event *TransformedEvent) PublicationResult {
	if !z.connected {
		return notConnectedResult()
	}

	payload, err := json.Marshal(z.sessionPayload(event))
	if err != nil {
		return failureResult("ZOOM_BAD_PAYLOAD", err.Error(), false)
	}

	body, status, err := z.call(ctx, http.MethodPost, "/users/"+z.userID+z.resource(), bytes.NewReader(payload))
	if err != nil {
		return networkErrorResult(err)
	}
	if status < 200 || status >= 300 {
		perr := zoomError(status, body)
		return failureResult(perr.Code, perr.Message, perr.Retryable)
	}

	var created struct {
		ID      json.Number `json:"id"`
		JoinURL string      `json:"join_url"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ID.String() == "" {
		return failureResult("ZOOM_BAD_RESPONSE", "session create response missing id", false)
	}

	externalURL := created.JoinURL
	if externalURL == "" {
		externalURL = z.EventURL(created.ID.String())
	}
	return successResult(created.ID.String(), externalURL)
}

func (z *ZoomAdapter) UpdateEvent(ctx context.Context, externalID string, event *TransformedEvent) PublicationResult {
	if !z.connected {
		return notConnectedResult()
	}

	payload, err := json.Marshal(z.sessionPayload(event))
	if err != nil {
		return failureResult("ZOOM_BAD_PAYLOAD", err.Error(), false)
	}

	body, status, err := z.call(ctx, http.MethodPatch, z.resource()+"/"+externalID, bytes.NewReader(payload))
	if err != nil {
		return networkErrorResult(err)
	}
	if status < 200 || status >= 300 {
		perr := zoomError(status, body)
		return failureResult(perr.Code, perr.Message, perr.Retryable)
	}
	return successResult(externalID, z.EventURL(externalID))
}

// DeleteEvent removes the session. A 404 or Zoom's "meeting does not exist"
// code means the session is already gone, which is the desired end state.
func (z *ZoomAdapter) DeleteEvent(ctx context.Context, externalID string) error {
	if !z.connected {
		return ErrNotConnected
	}

	body, status, err := z.call(ctx, http.MethodDelete, z.resource()+"/"+externalID, nil)
	if err != nil {
		return &PublicationError{Code: CodeNetworkError, Message: err.Error(), Timestamp: time.Now(), Retryable: true}
	}
	if status >= 200 && status < 300 {
		return nil
	}
	if status == http.StatusNotFound {
		return nil
	}
	var envlp zoomErrorEnvelope
	if json.Unmarshal(body, &envlp) == nil && envlp.Code == zoomCodeMeetingNotFound {
		return nil
	}
	return zoomError(status, body)
}

func (z *ZoomAdapter) EventURL(externalID string) string {
	return "https://zoom.us/j/" + externalID
}

// resource is the API segment the mode maps to.
func (z *ZoomAdapter) resource() string {
	if z.mode == platforms.ZoomWebinar {
		return "/webinars"
	}
	return "/meetings"
}

func (z *ZoomAdapter) sessionPayload(event *TransformedEvent) map[string]any {
	duration := int(event.EndTime.Sub(event.StartTime) / time.Minute)
	if duration <= 0 {
		duration = 60
	}

	sessionType := zoomTypeScheduledMeeting
	if z.mode == platforms.ZoomWebinar {
		sessionType = zoomTypeWebinar
	}

	return map[string]any{
		"topic":  event.Title,
		"agenda": event.Description,
		"type":   sessionType,
		// Zoom takes a local wall-clock timestamp plus the IANA zone.
		"start_time": eventLocalTime(event.StartTime, event.Timezone).Format("2006-01-02T15:04:05"),
		"timezone":   event.Timezone,
		"duration":   duration,
		"settings": map[string]any{
			"join_before_host":  false,
			"waiting_room":      true,
			"approval_type":     2,
			"registrants_email": true,
		},
	}
}

func (z *ZoomAdapter) call(ctx context.Context, method, path string, payload io.Reader) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(z.APIBaseURL, "/")+path, payload)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+z.accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := z.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return body, resp.StatusCode, nil
}

func zoomError(status int, body []byte) *PublicationError {
	perr := &PublicationError{
		Code:      fmt.Sprintf("ZOOM_HTTP_%d", status),
		Message:   fmt.Sprintf("zoom request failed with status %d", status),
		Timestamp: time.Now(),
		Retryable: retryableStatus(status),
	}

	var envlp zoomErrorEnvelope
	if err := json.Unmarshal(body, &envlp); err == nil && envlp.Code != 0 {
		perr.Code = fmt.Sprintf("ZOOM_%d", envlp.Code)
		if envlp.Message != "" {
			perr.Message = envlp.Message
		}
	}
	return perr
}

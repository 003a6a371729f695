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

const defaultLinkedInAPIBaseURL = "https://api.linkedin.com"

// LinkedInAdapter publishes events on behalf of a LinkedIn organization via
// the REST events API. All writes are JSON with the Rest.li protocol headers.
type LinkedInAdapter struct {
	APIBaseURL string
	HTTPClient *http.Client

	organizationID string
	accessToken    string
	connected      bool
}

func NewLinkedInAdapter() *LinkedInAdapter {
	return &LinkedInAdapter{
		APIBaseURL: strings.TrimSpace(env.GetEnv("LINKEDIN_API_BASE_URL", defaultLinkedInAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type linkedinErrorEnvelope struct {
	Message          string `json:"message"`
	ServiceErrorCode int    `json:"serviceErrorCode"`
	Status           int    `json:"status"`
}

func (l *LinkedInAdapter) Platform() platforms.ID { return platforms.LinkedIn }

func (l *LinkedInAdapter) IsConnected(ctx context.Context) bool {
	if !l.connected || l.organizationID == "" || l.accessToken == "" {
		return false
	}
	_, status, err := l.call(ctx, http.MethodGet, "/v2/organizations/"+l.organizationID, nil)
	return err == nil && status >= 200 && status < 300
}

// Connect validates the credentials with one organization read. Required
// keys: organization_id (the numeric id, not the URN) and access_token.
func (l *LinkedInAdapter) Connect(ctx context.Context, creds map[string]string) ConnectionResult {
	orgID := strings.TrimSpace(creds["organization_id"])
	token := strings.TrimSpace(creds["access_token"])
	if orgID == "" || token == "" {
		return ConnectionResult{Error: "linkedin connection requires organization_id and access_token"}
	}

	l.organizationID = orgID
	l.accessToken = token

	body, status, err := l.call(ctx, http.MethodGet, "/v2/organizations/"+orgID, nil)
	if err != nil {
		l.Disconnect()
		return ConnectionResult{Error: fmt.Sprintf("linkedin organization lookup failed: %v", err)}
	}
	if status < 200 || status >= 300 {
		l.Disconnect()
		return ConnectionResult{Error: linkedinError(status, body).Message}
	}

	var org struct {
		ID            int    `json:"id"`
		LocalizedName string `json:"localizedName"`
	}
	if err := json.Unmarshal(body, &org); err != nil {
		l.Disconnect()
		return ConnectionResult{Error: "linkedin organization response was not understood"}
	}

	l.connected = true
	return ConnectionResult{Success: true, AccountID: orgID, AccountName: org.LocalizedName}
}

func (l *LinkedInAdapter) Disconnect() {
	l.organizationID = ""
	l.accessToken = ""
	l.connected = false
}

func (l *LinkedInAdapter) TransformEvent(event *models.CanonicalEvent) *TransformedEvent {
	return baseTransform(platforms.LinkedIn, event)
}

func (l *LinkedInAdapter) CreateEvent(ctx context.Context, event *TransformedEvent) PublicationResult {
	if !l.connected {
		return notConnectedResult()
	}

	payload, err := json.Marshal(l.eventPayload(event))
	if err != nil {
		return failureResult("LINKEDIN_BAD_PAYLOAD", err.Error(), false)
	}

	body, status, header, err := l.callWithHeader(ctx, http.MethodPost, "/rest/events", bytes.NewReader(payload))
	if err != nil {
		return networkErrorResult(err)
	}
	if status < 200 || status >= 300 {
		perr := linkedinError(status, body)
		return failureResult(perr.Code, perr.Message, perr.Retryable)
	}

	// Created ids come back in the x-restli-id header; some deployments also
	// echo them in the body.
	id := strings.TrimSpace(header.Get("x-restli-id"))
	if id == "" {
		var created struct {
			ID json.Number `json:"id"`
		}
		if json.Unmarshal(body, &created) == nil {
			id = created.ID.String()
		}
	}
	if id == "" {
		return failureResult("LINKEDIN_BAD_RESPONSE", "event create response missing id", false)
	}
	return successResult(id, l.EventURL(id))
}

func (l *LinkedInAdapter) UpdateEvent(ctx context.Context, externalID string, event *TransformedEvent) PublicationResult {
	if !l.connected {
		return notConnectedResult()
	}

	patch := map[string]any{
		"patch": map[string]any{
			"$set": l.eventPayload(event),
		},
	}
	payload, err := json.Marshal(patch)
	if err != nil {
		return failureResult("LINKEDIN_BAD_PAYLOAD", err.Error(), false)
	}

	body, status, err := l.call(ctx, http.MethodPost, "/rest/events/"+externalID, bytes.NewReader(payload))
	if err != nil {
		return networkErrorResult(err)
	}
	if status < 200 || status >= 300 {
		perr := linkedinError(status, body)
		return failureResult(perr.Code, perr.Message, perr.Retryable)
	}
	return successResult(externalID, l.EventURL(externalID))
}

func (l *LinkedInAdapter) DeleteEvent(ctx context.Context, externalID string) error {
	if !l.connected {
		return ErrNotConnected
	}

	body, status, err := l.call(ctx, http.MethodDelete, "/rest/events/"+externalID, nil)
	if err != nil {
		return &PublicationError{Code: CodeNetworkError, Message: err.Error(), Timestamp: time.Now(), Retryable: true}
	}
	if status >= 200 && status < 300 {
		return nil
	}
	if status == http.StatusNotFound {
		return nil
	}
	return linkedinError(status, body)
}

func (l *LinkedInAdapter) EventURL(externalID string) string {
	return "https://www.linkedin.com/events/" + externalID + "/"
}

func (l *LinkedInAdapter) eventPayload(event *TransformedEvent) map[string]any {
	payload := map[string]any{
		"organizer": "urn:li:organization:" + l.organizationID,
		"name": map[string]any{
			"text": event.Title,
		},
		"description": map[string]any{
			"text": event.Description,
		},
		// LinkedIn takes epoch milliseconds; the timezone identifier rides
		// along separately for display.
		"timeRange": map[string]any{
			"start": event.StartTime.UnixMilli(),
			"end":   event.EndTime.UnixMilli(),
		},
		"timezone": event.Timezone,
	}
	if event.IsVirtual {
		online := map[string]any{}
		if event.Location != "" {
			online["externalUrl"] = event.Location
		}
		payload["onlineEventInfo"] = online
	} else if event.Location != "" {
		payload["venueDetails"] = map[string]any{
			"address": event.Location,
		}
	}
	if ticketURL := event.Metadata["ticket_url"]; ticketURL != "" {
		payload["externalRegistrationUrl"] = ticketURL
	}
	return payload
}

func (l *LinkedInAdapter) call(ctx context.Context, method, path string, payload io.Reader) ([]byte, int, error) {
	body, status, _, err := l.callWithHeader(ctx, method, path, payload)
	return body, status, err
}

func (l *LinkedInAdapter) callWithHeader(ctx context.Context, method, path string, payload io.Reader) ([]byte, int, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(l.APIBaseURL, "/")+path, payload)
	if err != nil {
		return nil, 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+l.accessToken)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
	req.Header.Set("LinkedIn-Version", "202405")
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := l.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return body, resp.StatusCode, resp.Header, nil
}

func linkedinError(status int, body []byte) *PublicationError {
	perr := &PublicationError{
		Code:      fmt.Sprintf("LINKEDIN_HTTP_%d", status),
		Message:   fmt.Sprintf("linkedin request failed with status %d", status),
		Timestamp: time.Now(),
		Retryable: retryableStatus(status),
	}

	var envlp linkedinErrorEnvelope
	if err := json.Unmarshal(body, &envlp); err == nil && envlp.Message != "" {
		perr.Message = envlp.Message
		if envlp.ServiceErrorCode != 0 {
			perr.Code = fmt.Sprintf("LINKEDIN_%d", envlp.ServiceErrorCode)
		}
	}
	return perr
}

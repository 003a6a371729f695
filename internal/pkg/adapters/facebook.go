package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eventcastapp/eventcast/app/models"
	"github.com/eventcastapp/eventcast/internal/pkg/env"
	"github.com/eventcastapp/eventcast/internal/pkg/platforms"
)

const defaultFacebookGraphBaseURL = "https://graph.facebook.com/v19.0"

// Graph API error codes Facebook documents as transient rate limiting. They
// arrive with varying HTTP statuses, so the status check alone is not enough.
var facebookRateLimitCodes = map[int]bool{
	4:   true,
	17:  true,
	32:  true,
	613: true,
}

// FacebookAdapter publishes events to a Facebook page via the Graph API.
// Events are created against the page, authorized with the page access token
// captured during the OAuth connect flow.
type FacebookAdapter struct {
	GraphURL   string
	HTTPClient *http.Client

	pageID    string
	pageToken string
	connected bool
}

func NewFacebookAdapter() *FacebookAdapter {
	return &FacebookAdapter{
		GraphURL: strings.TrimSpace(env.GetEnv("FACEBOOK_GRAPH_URL", defaultFacebookGraphBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type facebookErrorEnvelope struct {
	Error struct {
		Message    string `json:"message"`
		Type       string `json:"type"`
		Code       int    `json:"code"`
		Subcode    int    `json:"error_subcode"`
		FBTraceID  string `json:"fbtrace_id"`
		UserTitle  string `json:"error_user_title"`
		UserDetail string `json:"error_user_msg"`
	} `json:"error"`
}

func (f *FacebookAdapter) Platform() platforms.ID { return platforms.Facebook }

func (f *FacebookAdapter) IsConnected(ctx context.Context) bool {
	if !f.connected || f.pageID == "" || f.pageToken == "" {
		return false
	}
	_, status, err := f.call(ctx, http.MethodGet, "/"+f.pageID, url.Values{"fields": {"id,name"}}, nil)
	return err == nil && status >= 200 && status < 300
}

// Connect validates the page credentials with one page read. Required keys:
// page_id and access_token (the page token, not the user token).
func (f *FacebookAdapter) Connect(ctx context.Context, creds map[string]string) ConnectionResult {
	pageID := strings.TrimSpace(creds["page_id"])
	token := strings.TrimSpace(creds["access_token"])
	if pageID == "" || token == "" {
		return ConnectionResult{Error: "facebook connection requires page_id and access_token"}
	}

	f.pageID = pageID
	f.pageToken = token

	body, status, err := f.call(ctx, http.MethodGet, "/"+pageID, url.Values{"fields": {"id,name"}}, nil)
	if err != nil {
		f.Disconnect()
		return ConnectionResult{Error: fmt.Sprintf("facebook page lookup failed: %v", err)}
	}
	if status < 200 || status >= 300 {
		f.Disconnect()
		return ConnectionResult{Error: facebookError(status, body).Message}
	}

	var page struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &page); err != nil || page.ID == "" {
		f.Disconnect()
		return ConnectionResult{Error: "facebook page response was not understood"}
	}

	f.connected = true
	return ConnectionResult{Success: true, AccountID: page.ID, AccountName: page.Name}
}

func (f *FacebookAdapter) Disconnect() {
	f.pageID = ""
	f.pageToken = ""
	f.connected = false
}

func (f *FacebookAdapter) TransformEvent(event *models.CanonicalEvent) *TransformedEvent {
	out := baseTransform(platforms.Facebook, event)
	if event.IsVirtual {
		out.Metadata["online_event_format"] = "other"
	}
	return out
}

func (f *FacebookAdapter) CreateEvent(ctx context.Context, event *TransformedEvent) PublicationResult {
	if !f.connected {
		return notConnectedResult()
	}

	body, status, err := f.call(ctx, http.MethodPost, "/"+f.pageID+"/events", f.eventForm(event), nil)
	if err != nil {
		return networkErrorResult(err)
	}
	if status < 200 || status >= 300 {
		perr := facebookError(status, body)
		return failureResult(perr.Code, perr.Message, perr.Retryable)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
		return failureResult("FACEBOOK_BAD_RESPONSE", "event create response missing id", false)
	}
	return successResult(created.ID, f.EventURL(created.ID))
}

func (f *FacebookAdapter) UpdateEvent(ctx context.Context, externalID string, event *TransformedEvent) PublicationResult {
	if !f.connected {
		return notConnectedResult()
	}

	body, status, err := f.call(ctx, http.MethodPost, "/"+externalID, f.eventForm(event), nil)
	if err != nil {
		return networkErrorResult(err)
	}
	if status < 200 || status >= 300 {
		perr := facebookError(status, body)
		return failureResult(perr.Code, perr.Message, perr.Retryable)
	}
	return successResult(externalID, f.EventURL(externalID))
}

func (f *FacebookAdapter) DeleteEvent(ctx context.Context, externalID string) error {
	if !f.connected {
		return ErrNotConnected
	}

	body, status, err := f.call(ctx, http.MethodDelete, "/"+externalID, nil, nil)
	if err != nil {
		return &PublicationError{Code: CodeNetworkError, Message: err.Error(), Timestamp: time.Now(), Retryable: true}
	}
	if status >= 200 && status < 300 {
		return nil
	}
	// A vanished object is a successful delete.
	if status == http.StatusNotFound {
		return nil
	}
	var envlp facebookErrorEnvelope
	if json.Unmarshal(body, &envlp) == nil && envlp.Error.Code == 100 && envlp.Error.Subcode == 33 {
		return nil
	}
	return facebookError(status, body)
}

func (f *FacebookAdapter) EventURL(externalID string) string {
	return "https://www.facebook.com/events/" + externalID
}

func (f *FacebookAdapter) eventForm(event *TransformedEvent) url.Values {
	form := url.Values{}
	form.Set("name", event.Title)
	form.Set("description", event.Description)
	// Graph expects offset timestamps rendered in the event's timezone.
	form.Set("start_time", eventLocalTime(event.StartTime, event.Timezone).Format(time.RFC3339))
	form.Set("end_time", eventLocalTime(event.EndTime, event.Timezone).Format(time.RFC3339))
	if event.IsVirtual {
		form.Set("is_online", "true")
		if format := event.Metadata["online_event_format"]; format != "" {
			form.Set("online_event_format", format)
		}
		if event.Location != "" {
			form.Set("online_event_third_party_url", event.Location)
		}
	} else if event.Location != "" {
		form.Set("location", event.Location)
	}
	if event.CoverImageURL != "" {
		form.Set("cover_url", event.CoverImageURL)
	}
	if category := event.Metadata["category"]; category != "" {
		form.Set("category", strings.ToUpper(category))
	}
	if ticketURL := event.Metadata["ticket_url"]; ticketURL != "" {
		form.Set("ticket_uri", ticketURL)
	}
	return form
}

// call issues one Graph API request with the page token appended as a query
// parameter, the way the Graph API authenticates page-scoped calls.
func (f *FacebookAdapter) call(ctx context.Context, method, path string, params url.Values, payload io.Reader) ([]byte, int, error) {
	u, err := url.Parse(strings.TrimRight(f.GraphURL, "/") + path)
	if err != nil {
		return nil, 0, err
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("access_token", f.pageToken)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), payload)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return body, resp.StatusCode, nil
}

// facebookError folds the Graph error envelope into the uniform shape.
func facebookError(status int, body []byte) *PublicationError {
	perr := &PublicationError{
		Code:      fmt.Sprintf("FACEBOOK_HTTP_%d", status),
		Message:   fmt.Sprintf("facebook request failed with status %d", status),
		Timestamp: time.Now(),
		Retryable: retryableStatus(status),
	}

	var envlp facebookErrorEnvelope
	if err := json.Unmarshal(body, &envlp); err == nil && envlp.Error.Code != 0 {
		perr.Code = fmt.Sprintf("FACEBOOK_%d", envlp.Error.Code)
		perr.Message = envlp.Error.Message
		if facebookRateLimitCodes[envlp.Error.Code] {
			perr.Retryable = true
		}
	}
	return perr
}

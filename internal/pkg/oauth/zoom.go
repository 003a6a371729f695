package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eventcastapp/eventcast/internal/pkg/env"
	"github.com/eventcastapp/eventcast/internal/pkg/platforms"
)

const (
	defaultZoomAuthorizeURL = "https://zoom.us/oauth/authorize"
	defaultZoomTokenURL     = "https://zoom.us/oauth/token"
	defaultZoomAPIBaseURL   = "https://api.zoom.us/v2"

	// Zoom access tokens run one hour; the refresh token carries the session.
	zoomDefaultTokenLifetime = time.Hour
)

// ZoomExchanger implements the Zoom authorization flow. Unlike Facebook and
// LinkedIn, Zoom authenticates the token exchange with HTTP Basic auth;
// sending the secret in the body instead fails silently with an invalid
// client error.
type ZoomExchanger struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	AuthorizeURL string
	TokenURL     string
	APIBaseURL   string

	// Product is the platform id the issued states are bound to; meetings
	// and webinars share one Zoom app and one credential.
	Product platforms.ID

	States     *StateManager
	HTTPClient *http.Client
}

// NewZoomExchangerFromEnv builds the exchanger from ZOOM_* env vars.
func NewZoomExchangerFromEnv(states *StateManager, product platforms.ID) *ZoomExchanger {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	redirectURI := strings.TrimSpace(env.GetEnv("ZOOM_REDIRECT_URI", ""))
	if redirectURI == "" && base != "" {
		redirectURI = base + "/connect/zoom/callback"
	}

	return &ZoomExchanger{
		ClientID:     strings.TrimSpace(env.GetEnv("ZOOM_CLIENT_ID", "")),
		ClientSecret: strings.TrimSpace(env.GetEnv("ZOOM_CLIENT_SECRET", "")),
		RedirectURI:  redirectURI,
		AuthorizeURL: strings.TrimSpace(env.GetEnv("ZOOM_AUTHORIZE_URL", defaultZoomAuthorizeURL)),
		TokenURL:     strings.TrimSpace(env.GetEnv("ZOOM_TOKEN_URL", defaultZoomTokenURL)),
		APIBaseURL:   strings.TrimSpace(env.GetEnv("ZOOM_API_BASE_URL", defaultZoomAPIBaseURL)),
		Product:      product,
		States:       states,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (z *ZoomExchanger) Platform() platforms.ID { return z.Product }

func (z *ZoomExchanger) DefaultTokenLifetime() time.Duration { return zoomDefaultTokenLifetime }

func (z *ZoomExchanger) AuthorizationURL(ctx context.Context, orgID uint) (string, error) {
	if strings.TrimSpace(z.ClientID) == "" {
		return "", errors.New("ZOOM_CLIENT_ID is not configured")
	}
	if strings.TrimSpace(z.RedirectURI) == "" {
		return "", errors.New("ZOOM_REDIRECT_URI is not configured")
	}
	state, err := z.States.Issue(ctx, orgID, z.Product)
	if err != nil {
		return "", fmt.Errorf("issue oauth state: %w", err)
	}

	u, err := url.Parse(z.AuthorizeURL)
	if err != nil {
		return "", fmt.Errorf("invalid ZOOM_AUTHORIZE_URL: %w", err)
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", z.ClientID)
	q.Set("redirect_uri", z.RedirectURI)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (z *ZoomExchanger) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	if strings.TrimSpace(z.ClientID) == "" || strings.TrimSpace(z.ClientSecret) == "" {
		return nil, errors.New("ZOOM_CLIENT_ID/ZOOM_CLIENT_SECRET are not configured")
	}
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("oauth code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", strings.TrimSpace(code))
	form.Set("redirect_uri", z.RedirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	// Client credentials go in the Authorization header, never the body.
	req.SetBasicAuth(z.ClientID, z.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := z.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("zoom token exchange failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return nil, errors.New("zoom token exchange returned empty access_token")
	}
	return &TokenResponse{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    out.ExpiresIn,
	}, nil
}

// FetchAccount resolves the Zoom user the tokens belong to.
func (z *ZoomExchanger) FetchAccount(ctx context.Context, accessToken string) (*AccountInfo, error) {
	token := strings.TrimSpace(accessToken)
	if token == "" {
		return nil, errors.New("access token is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(z.APIBaseURL, "/")+"/users/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := z.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("zoom user lookup failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var raw struct {
		ID          string `json:"id"`
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
		DisplayName string `json:"display_name"`
		Email       string `json:"email"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, errors.New("zoom user response missing id")
	}

	name := strings.TrimSpace(raw.DisplayName)
	if name == "" {
		name = strings.TrimSpace(raw.FirstName + " " + raw.LastName)
	}

	return &AccountInfo{
		ID:   raw.ID,
		Name: name,
		Metadata: map[string]string{
			"zoom_user_email": raw.Email,
		},
	}, nil
}

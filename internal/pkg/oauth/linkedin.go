package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eventcastapp/eventcast/internal/pkg/env"
	"github.com/eventcastapp/eventcast/internal/pkg/platforms"
)

const (
	defaultLinkedInAuthorizeURL = "https://www.linkedin.com/oauth/v2/authorization"
	defaultLinkedInTokenURL     = "https://www.linkedin.com/oauth/v2/accessToken"
	defaultLinkedInAPIBaseURL   = "https://api.linkedin.com"

	// LinkedIn access tokens run 60 days.
	linkedinDefaultTokenLifetime = 60 * 24 * time.Hour

	linkedinScopes = "r_organization_admin rw_events"
)

// LinkedInExchanger implements the LinkedIn organization authorization flow.
// The token exchange authenticates with client id/secret in the POST form
// body, like the upstream Patreon client.
type LinkedInExchanger struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	AuthorizeURL string
	TokenURL     string
	APIBaseURL   string

	States     *StateManager
	HTTPClient *http.Client
}

// NewLinkedInExchangerFromEnv builds the exchanger from LINKEDIN_* env vars.
func NewLinkedInExchangerFromEnv(states *StateManager) *LinkedInExchanger {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	redirectURI := strings.TrimSpace(env.GetEnv("LINKEDIN_REDIRECT_URI", ""))
	if redirectURI == "" && base != "" {
		redirectURI = base + "/connect/linkedin/callback"
	}

	return &LinkedInExchanger{
		ClientID:     strings.TrimSpace(env.GetEnv("LINKEDIN_CLIENT_ID", "")),
		ClientSecret: strings.TrimSpace(env.GetEnv("LINKEDIN_CLIENT_SECRET", "")),
		RedirectURI:  redirectURI,
		AuthorizeURL: strings.TrimSpace(env.GetEnv("LINKEDIN_AUTHORIZE_URL", defaultLinkedInAuthorizeURL)),
		TokenURL:     strings.TrimSpace(env.GetEnv("LINKEDIN_TOKEN_URL", defaultLinkedInTokenURL)),
		APIBaseURL:   strings.TrimSpace(env.GetEnv("LINKEDIN_API_BASE_URL", defaultLinkedInAPIBaseURL)),
		States:       states,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (l *LinkedInExchanger) Platform() platforms.ID { return platforms.LinkedIn }

func (l *LinkedInExchanger) DefaultTokenLifetime() time.Duration { return linkedinDefaultTokenLifetime }

func (l *LinkedInExchanger) AuthorizationURL(ctx context.Context, orgID uint) (string, error) {
	if strings.TrimSpace(l.ClientID) == "" {
		return "", errors.New("LINKEDIN_CLIENT_ID is not configured")
	}
	if strings.TrimSpace(l.RedirectURI) == "" {
		return "", errors.New("LINKEDIN_REDIRECT_URI is not configured")
	}
	state, err := l.States.Issue(ctx, orgID, platforms.LinkedIn)
	if err != nil {
		return "", fmt.Errorf("issue oauth state: %w", err)
	}

	u, err := url.Parse(l.AuthorizeURL)
	if err != nil {
		return "", fmt.Errorf("invalid LINKEDIN_AUTHORIZE_URL: %w", err)
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", l.ClientID)
	q.Set("redirect_uri", l.RedirectURI)
	q.Set("scope", linkedinScopes)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (l *LinkedInExchanger) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	if strings.TrimSpace(l.ClientID) == "" || strings.TrimSpace(l.ClientSecret) == "" {
		return nil, errors.New("LINKEDIN_CLIENT_ID/LINKEDIN_CLIENT_SECRET are not configured")
	}
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("oauth code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", strings.TrimSpace(code))
	form.Set("client_id", l.ClientID)
	form.Set("client_secret", l.ClientSecret)
	form.Set("redirect_uri", l.RedirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := l.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("linkedin token exchange failed: status=%d body=%s", resp.StatusCode, string(body))
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
		return nil, errors.New("linkedin token exchange returned empty access_token")
	}
	return &TokenResponse{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    out.ExpiresIn,
	}, nil
}

// FetchAccount resolves the organizations the user administers and picks the
// first one.
func (l *LinkedInExchanger) FetchAccount(ctx context.Context, accessToken string) (*AccountInfo, error) {
	token := strings.TrimSpace(accessToken)
	if token == "" {
		return nil, errors.New("access token is required")
	}

	u, err := url.Parse(strings.TrimRight(l.APIBaseURL, "/") + "/v2/organizationAcls")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("q", "roleAssignee")
	q.Set("role", "ADMINISTRATOR")
	q.Set("state", "APPROVED")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
	req.Header.Set("Accept", "application/json")

	resp, err := l.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("linkedin organization lookup failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var raw struct {
		Elements []struct {
			Organization string `json:"organization"`
		} `json:"elements"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if len(raw.Elements) == 0 {
		return nil, errors.New("linkedin account administers no organizations")
	}

	// Organization URNs look like urn:li:organization:12345.
	urn := strings.TrimSpace(raw.Elements[0].Organization)
	id := urn
	if idx := strings.LastIndex(urn, ":"); idx >= 0 {
		id = urn[idx+1:]
	}
	if _, err := strconv.Atoi(id); err != nil {
		// Keep the raw URN when the numeric id cannot be split off.
		id = urn
	}

	return &AccountInfo{
		ID:   id,
		Name: urn,
		Metadata: map[string]string{
			"organization_urn": urn,
		},
	}, nil
}

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
	defaultFacebookAuthorizeURL = "https://www.facebook.com/v19.0/dialog/oauth"
	defaultFacebookGraphURL     = "https://graph.facebook.com/v19.0"

	// Facebook long-lived page tokens run ~60 days; used when the exchange
	// response omits expires_in.
	facebookDefaultTokenLifetime = 60 * 24 * time.Hour

	facebookScopes = "pages_show_list,pages_manage_events,pages_read_engagement"
)

// FacebookExchanger implements the Facebook page authorization flow. The
// code exchange authenticates with client id/secret as query parameters; the
// Graph API has no Basic-auth token endpoint.
type FacebookExchanger struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	AuthorizeURL string
	GraphURL     string

	States     *StateManager
	HTTPClient *http.Client
}

// NewFacebookExchangerFromEnv builds the exchanger from FACEBOOK_* env vars.
func NewFacebookExchangerFromEnv(states *StateManager) *FacebookExchanger {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	redirectURI := strings.TrimSpace(env.GetEnv("FACEBOOK_REDIRECT_URI", ""))
	if redirectURI == "" && base != "" {
		redirectURI = base + "/connect/facebook/callback"
	}

	return &FacebookExchanger{
		ClientID:     strings.TrimSpace(env.GetEnv("FACEBOOK_CLIENT_ID", "")),
		ClientSecret: strings.TrimSpace(env.GetEnv("FACEBOOK_CLIENT_SECRET", "")),
		RedirectURI:  redirectURI,
		AuthorizeURL: strings.TrimSpace(env.GetEnv("FACEBOOK_AUTHORIZE_URL", defaultFacebookAuthorizeURL)),
		GraphURL:     strings.TrimSpace(env.GetEnv("FACEBOOK_GRAPH_URL", defaultFacebookGraphURL)),
		States:       states,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (f *FacebookExchanger) Platform() platforms.ID { return platforms.Facebook }

func (f *FacebookExchanger) DefaultTokenLifetime() time.Duration { return facebookDefaultTokenLifetime }

func (f *FacebookExchanger) AuthorizationURL(ctx context.Context, orgID uint) (string, error) {
	if strings.TrimSpace(f.ClientID) == "" {
		return "", errors.New("FACEBOOK_CLIENT_ID is not configured")
	}
	if strings.TrimSpace(f.RedirectURI) == "" {
		return "", errors.New("FACEBOOK_REDIRECT_URI is not configured")
	}
	state, err := f.States.Issue(ctx, orgID, platforms.Facebook)
	if err != nil {
		return "", fmt.Errorf("issue oauth state: %w", err)
	}

	u, err := url.Parse(f.AuthorizeURL)
	if err != nil {
		return "", fmt.Errorf("invalid FACEBOOK_AUTHORIZE_URL: %w", err)
	}
	q := u.Query()
	q.Set("client_id", f.ClientID)
	q.Set("redirect_uri", f.RedirectURI)
	q.Set("scope", facebookScopes)
	q.Set("response_type", "code")
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f *FacebookExchanger) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	if strings.TrimSpace(f.ClientID) == "" || strings.TrimSpace(f.ClientSecret) == "" {
		return nil, errors.New("FACEBOOK_CLIENT_ID/FACEBOOK_CLIENT_SECRET are not configured")
	}
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("oauth code is required")
	}

	u, err := url.Parse(strings.TrimRight(f.GraphURL, "/") + "/oauth/access_token")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("client_id", f.ClientID)
	q.Set("client_secret", f.ClientSecret)
	q.Set("redirect_uri", f.RedirectURI)
	q.Set("code", strings.TrimSpace(code))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("facebook token exchange failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return nil, errors.New("facebook token exchange returned empty access_token")
	}
	return &TokenResponse{AccessToken: out.AccessToken, ExpiresIn: out.ExpiresIn}, nil
}

// FetchAccount lists the pages the user manages and picks the first one.
// The returned AccessToken is that page's token, which is what event calls
// must authenticate with.
func (f *FacebookExchanger) FetchAccount(ctx context.Context, accessToken string) (*AccountInfo, error) {
	token := strings.TrimSpace(accessToken)
	if token == "" {
		return nil, errors.New("access token is required")
	}

	u, err := url.Parse(strings.TrimRight(f.GraphURL, "/") + "/me/accounts")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("fields", "id,name,access_token,category")
	q.Set("access_token", token)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("facebook pages request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var raw struct {
		Data []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			AccessToken string `json:"access_token"`
			Category    string `json:"category"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if len(raw.Data) == 0 {
		return nil, errors.New("facebook account manages no pages")
	}

	page := raw.Data[0]
	return &AccountInfo{
		ID:          page.ID,
		Name:        page.Name,
		AccessToken: page.AccessToken,
		Metadata: map[string]string{
			"page_category": page.Category,
		},
	}, nil
}

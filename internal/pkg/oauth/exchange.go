package oauth

import (
	"context"
	"time"

	"github.com/eventcastapp/eventcast/internal/pkg/platforms"
)

// TokenResponse is the normalized result of a code-for-token exchange.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the provider-reported lifetime in seconds; 0 when the
	// provider omitted it.
	ExpiresIn int
}

// AccountInfo identifies the platform-side entity the credential is scoped
// to: a Facebook page, a LinkedIn organization, a Zoom user.
type AccountInfo struct {
	ID   string
	Name string
	// AccessToken is set when the account carries its own token distinct
	// from the user token (Facebook page tokens). Empty otherwise.
	AccessToken string
	Metadata    map[string]string
}

// Exchanger runs one platform's authorization flow. Implementations are
// compile-time distinct because the exchange mechanics differ per provider
// (body auth vs. Basic auth); getting that wrong fails silently, so it is
// never a config flag.
type Exchanger interface {
	Platform() platforms.ID
	// AuthorizationURL issues and persists a fresh state and returns the
	// provider URL to redirect the connecting user to.
	AuthorizationURL(ctx context.Context, orgID uint) (string, error)
	// ExchangeCode trades the callback code for tokens.
	ExchangeCode(ctx context.Context, code string) (*TokenResponse, error)
	// FetchAccount resolves the platform-side account the tokens belong to.
	// When the provider returns several (pages, organizations), the first
	// one wins; the flow never prompts for a choice.
	FetchAccount(ctx context.Context, accessToken string) (*AccountInfo, error)
	// DefaultTokenLifetime is the conservative fallback applied when the
	// provider omits expires_in.
	DefaultTokenLifetime() time.Duration
}

// TokenExpiry converts an exchange response into an absolute expiry, falling
// back to the exchanger's documented default lifetime when the provider did
// not report one.
func TokenExpiry(resp *TokenResponse, fallback time.Duration) *time.Time {
	lifetime := fallback
	if resp.ExpiresIn > 0 {
		lifetime = time.Duration(resp.ExpiresIn) * time.Second
	}
	t := time.Now().Add(lifetime)
	return &t
}

package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eventcastapp/eventcast/app/models"
	"github.com/eventcastapp/eventcast/app/repository"
	"github.com/eventcastapp/eventcast/internal/pkg/platforms"
	"github.com/eventcastapp/eventcast/internal/pkg/security"
)

// refreshWindow is how close to expiry a token may get before callers should
// refresh it.
const refreshWindow = time.Hour

// Credential is the decrypted view of a stored platform connection.
type Credential struct {
	OrganizationID  uint
	Platform        platforms.ID
	AccessToken     string
	RefreshToken    string
	ExpiresAt       *time.Time
	AccountID       string
	AccountName     string
	Metadata        map[string]string
	IsValid         bool
	LastValidatedAt *time.Time
}

// SaveInput carries the plaintext tokens for an upsert. Tokens are encrypted
// on the way in; plaintext never reaches the database.
type SaveInput struct {
	OrganizationID uint
	Platform       platforms.ID
	AccessToken    string
	RefreshToken   string
	ExpiresAt      *time.Time
	AccountID      string
	AccountName    string
	Metadata       map[string]string
}

// Store manages the credential lifecycle for (organization, platform) pairs.
type Store struct {
	repo   repository.CredentialRepository
	cipher *security.TokenCipher
}

// NewStore creates a credential store from an injected repository and cipher.
func NewStore(repo repository.CredentialRepository, cipher *security.TokenCipher) *Store {
	return &Store{repo: repo, cipher: cipher}
}

// Get returns the decrypted credential for (org, platform), or nil when no
// connection exists. Legacy plaintext rows from before the encryption
// migration are passed through unchanged; a corrupted ciphertext is a hard
// error.
func (s *Store) Get(ctx context.Context, orgID uint, platform platforms.ID) (*Credential, error) {
	_ = ctx
	row, err := s.repo.GetByOrgAndPlatform(orgID, string(platform))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	access, err := s.decryptToken(row.AccessTokenEnc)
	if err != nil {
		return nil, fmt.Errorf("access token for org %d on %s: %w", orgID, platform, err)
	}
	refresh, err := s.decryptToken(row.RefreshTokenEnc)
	if err != nil {
		return nil, fmt.Errorf("refresh token for org %d on %s: %w", orgID, platform, err)
	}

	meta := map[string]string{}
	if row.MetadataJSON != "" {
		if err := json.Unmarshal([]byte(row.MetadataJSON), &meta); err != nil {
			return nil, fmt.Errorf("credential metadata for org %d on %s: %w", orgID, platform, err)
		}
	}

	return &Credential{
		OrganizationID:  row.OrganizationID,
		Platform:        platforms.ID(row.Platform),
		AccessToken:     access,
		RefreshToken:    refresh,
		ExpiresAt:       row.ExpiresAt,
		AccountID:       row.AccountID,
		AccountName:     row.AccountName,
		Metadata:        meta,
		IsValid:         row.IsValid,
		LastValidatedAt: row.LastValidatedAt,
	}, nil
}

// Save upserts the credential for (org, platform). Every save re-encrypts,
// marks the row valid and stamps LastValidatedAt, even though no live
// platform call happened here; callers wanting a real liveness check use the
// adapter's IsConnected.
func (s *Store) Save(ctx context.Context, in SaveInput) (*Credential, error) {
	_ = ctx
	if in.OrganizationID == 0 || in.Platform == "" {
		return nil, errors.New("organization_id and platform are required")
	}
	if in.AccessToken == "" {
		return nil, errors.New("access token is required")
	}

	accessEnc, err := s.cipher.Encrypt(in.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}
	refreshEnc := ""
	if in.RefreshToken != "" {
		refreshEnc, err = s.cipher.Encrypt(in.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("encrypt refresh token: %w", err)
		}
	}

	metaJSON := ""
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal credential metadata: %w", err)
		}
		metaJSON = string(raw)
	}

	now := time.Now()
	row := &models.PlatformCredential{
		OrganizationID:  in.OrganizationID,
		Platform:        string(in.Platform),
		AccessTokenEnc:  accessEnc,
		RefreshTokenEnc: refreshEnc,
		ExpiresAt:       in.ExpiresAt,
		AccountID:       in.AccountID,
		AccountName:     in.AccountName,
		MetadataJSON:    metaJSON,
		IsValid:         true,
		LastValidatedAt: &now,
	}
	if err := s.repo.Upsert(row); err != nil {
		return nil, err
	}

	return &Credential{
		OrganizationID:  in.OrganizationID,
		Platform:        in.Platform,
		AccessToken:     in.AccessToken,
		RefreshToken:    in.RefreshToken,
		ExpiresAt:       in.ExpiresAt,
		AccountID:       in.AccountID,
		AccountName:     in.AccountName,
		Metadata:        in.Metadata,
		IsValid:         true,
		LastValidatedAt: &now,
	}, nil
}

// Invalidate flags the credential after a detected auth failure. The row
// stays so the UI can prompt for reconnection.
func (s *Store) Invalidate(ctx context.Context, orgID uint, platform platforms.ID) error {
	_ = ctx
	return s.repo.Invalidate(orgID, string(platform))
}

// Delete removes the connection entirely (explicit disconnect).
func (s *Store) Delete(ctx context.Context, orgID uint, platform platforms.ID) error {
	_ = ctx
	return s.repo.Delete(orgID, string(platform))
}

func (s *Store) decryptToken(stored string) (string, error) {
	if stored == "" {
		return "", nil
	}
	if !security.IsEncrypted(stored) {
		// Pre-migration plaintext row.
		return stored, nil
	}
	return s.cipher.Decrypt(stored)
}

// NeedsRefresh reports whether a token expires within the refresh window.
// Non-expiring tokens (nil expiry) never need a refresh.
func NeedsRefresh(expiresAt *time.Time) bool {
	if expiresAt == nil {
		return false
	}
	return time.Until(*expiresAt) < refreshWindow
}

package credentials

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventcastapp/eventcast/app/models"
	"github.com/eventcastapp/eventcast/internal/pkg/platforms"
	"github.com/eventcastapp/eventcast/internal/pkg/security"
)

// fakeCredentialRepo mimics the (organization, platform) unique index of the
// real table.
type fakeCredentialRepo struct {
	rows map[string]*models.PlatformCredential
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{rows: make(map[string]*models.PlatformCredential)}
}

func key(orgID uint, platform string) string {
	return fmt.Sprintf("%d|%s", orgID, platform)
}

func (f *fakeCredentialRepo) GetByOrgAndPlatform(orgID uint, platform string) (*models.PlatformCredential, error) {
	row, ok := f.rows[key(orgID, platform)]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (f *fakeCredentialRepo) Upsert(cred *models.PlatformCredential) error {
	k := key(cred.OrganizationID, cred.Platform)
	if existing, ok := f.rows[k]; ok {
		cred.ID = existing.ID
	} else {
		cred.ID = uint(len(f.rows) + 1)
	}
	cp := *cred
	f.rows[k] = &cp
	return nil
}

func (f *fakeCredentialRepo) Invalidate(orgID uint, platform string) error {
	if row, ok := f.rows[key(orgID, platform)]; ok {
		row.IsValid = false
	}
	return nil
}

func (f *fakeCredentialRepo) Delete(orgID uint, platform string) error {
	delete(f.rows, key(orgID, platform))
	return nil
}

func (f *fakeCredentialRepo) ListByOrganization(orgID uint) ([]models.PlatformCredential, error) {
	var out []models.PlatformCredential
	for _, row := range f.rows {
		if row.OrganizationID == orgID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func newTestStore(t *testing.T) (*Store, *fakeCredentialRepo) {
	t.Helper()
	cipher, err := security.NewTokenCipherWithKey(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	repo := newFakeCredentialRepo()
	return NewStore(repo, cipher), repo
}

func TestSaveEncryptsAtRest(t *testing.T) {
	store, repo := newTestStore(t)

	_, err := store.Save(context.Background(), SaveInput{
		OrganizationID: 1,
		Platform:       platforms.Facebook,
		AccessToken:    "fb-access-token",
		RefreshToken:   "fb-refresh-token",
	})
	require.NoError(t, err)

	row := repo.rows[key(1, "facebook")]
	require.NotNil(t, row)
	assert.NotEqual(t, "fb-access-token", row.AccessTokenEnc)
	assert.True(t, security.IsEncrypted(row.AccessTokenEnc))
	assert.True(t, security.IsEncrypted(row.RefreshTokenEnc))
	assert.True(t, row.IsValid)
	require.NotNil(t, row.LastValidatedAt)
}

func TestGetDecrypts(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	exp := time.Now().Add(48 * time.Hour)
	_, err := store.Save(ctx, SaveInput{
		OrganizationID: 3,
		Platform:       platforms.ZoomMeeting,
		AccessToken:    "zoom-token",
		ExpiresAt:      &exp,
		AccountID:      "zu_123",
		AccountName:    "Ops Team",
		Metadata:       map[string]string{"zoom_user_email": "ops@example.com"},
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, 3, platforms.ZoomMeeting)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "zoom-token", got.AccessToken)
	assert.Equal(t, "zu_123", got.AccountID)
	assert.Equal(t, "ops@example.com", got.Metadata["zoom_user_email"])
}

func TestGetMissingReturnsNil(t *testing.T) {
	store, _ := newTestStore(t)
	got, err := store.Get(context.Background(), 99, platforms.LinkedIn)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetToleratesLegacyPlaintext(t *testing.T) {
	store, repo := newTestStore(t)

	// Simulate a pre-migration row that was stored unencrypted.
	repo.rows[key(5, "linkedin")] = &models.PlatformCredential{
		OrganizationID: 5,
		Platform:       "linkedin",
		AccessTokenEnc: "legacy-plaintext-token",
		IsValid:        true,
	}

	got, err := store.Get(context.Background(), 5, platforms.LinkedIn)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "legacy-plaintext-token", got.AccessToken)
}

func TestGetFailsOnCorruptedCiphertext(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, SaveInput{
		OrganizationID: 6,
		Platform:       platforms.Facebook,
		AccessToken:    "will-be-corrupted",
	})
	require.NoError(t, err)

	row := repo.rows[key(6, "facebook")]
	parts := strings.Split(row.AccessTokenEnc, ":")
	require.Len(t, parts, 3)
	// Keep the shape valid so the structural probe still says "encrypted",
	// but break the authentication tag.
	tag, err := base64.StdEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	tag[0] ^= 0xFF
	row.AccessTokenEnc = parts[0] + ":" + parts[1] + ":" + base64.StdEncoding.EncodeToString(tag)
	require.True(t, security.IsEncrypted(row.AccessTokenEnc))

	_, err = store.Get(ctx, 6, platforms.Facebook)
	require.ErrorIs(t, err, security.ErrDecryption)
}

func TestUpsertKeepsOneRowSecondSaveWins(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, SaveInput{OrganizationID: 2, Platform: platforms.LinkedIn, AccessToken: "first", AccountName: "Old Page"})
	require.NoError(t, err)
	_, err = store.Save(ctx, SaveInput{OrganizationID: 2, Platform: platforms.LinkedIn, AccessToken: "second", AccountName: "New Page"})
	require.NoError(t, err)

	assert.Len(t, repo.rows, 1)
	got, err := store.Get(ctx, 2, platforms.LinkedIn)
	require.NoError(t, err)
	assert.Equal(t, "second", got.AccessToken)
	assert.Equal(t, "New Page", got.AccountName)
}

func TestInvalidateAndDelete(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, SaveInput{OrganizationID: 4, Platform: platforms.Facebook, AccessToken: "tok"})
	require.NoError(t, err)

	require.NoError(t, store.Invalidate(ctx, 4, platforms.Facebook))
	got, err := store.Get(ctx, 4, platforms.Facebook)
	require.NoError(t, err)
	assert.False(t, got.IsValid)

	require.NoError(t, store.Delete(ctx, 4, platforms.Facebook))
	assert.Empty(t, repo.rows)
}

func TestNeedsRefresh(t *testing.T) {
	assert.False(t, NeedsRefresh(nil), "non-expiring tokens never need refresh")

	soon := time.Now().Add(30 * time.Minute)
	assert.True(t, NeedsRefresh(&soon))

	later := time.Now().Add(3 * time.Hour)
	assert.False(t, NeedsRefresh(&later))

	past := time.Now().Add(-time.Minute)
	assert.True(t, NeedsRefresh(&past))
}

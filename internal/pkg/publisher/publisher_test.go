package publisher

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventcastapp/eventcast/app/models"
	"github.com/eventcastapp/eventcast/app/repository"
	"github.com/eventcastapp/eventcast/internal/pkg/adapters"
	"github.com/eventcastapp/eventcast/internal/pkg/credentials"
	"github.com/eventcastapp/eventcast/internal/pkg/platforms"
	"github.com/eventcastapp/eventcast/internal/pkg/security"
)

// --- fakes -----------------------------------------------------------------

type fakeEventRepo struct {
	events map[uint]*models.CanonicalEvent
}

func (f *fakeEventRepo) GetByID(id uint) (*models.CanonicalEvent, error) {
	return f.events[id], nil
}
func (f *fakeEventRepo) GetByOrganization(orgID uint, offset, limit int) ([]models.CanonicalEvent, error) {
	return nil, nil
}
func (f *fakeEventRepo) Count() (int64, error) { return int64(len(f.events)), nil }

type fakeOrgRepo struct {
	orgs map[uint]*models.Organization
}

func (f *fakeOrgRepo) GetByID(id uint) (*models.Organization, error) { return f.orgs[id], nil }
func (f *fakeOrgRepo) GetBySlug(slug string) (*models.Organization, error) {
	for _, o := range f.orgs {
		if o.Slug == slug {
			return o, nil
		}
	}
	return nil, nil
}
func (f *fakeOrgRepo) GetByAPIKeyHash(hash string) (*models.Organization, error) {
	for _, o := range f.orgs {
		if o.APIKeyHash == hash {
			return o, nil
		}
	}
	return nil, nil
}

type fakePubRepo struct {
	rows []*models.EventPublication
}

func (f *fakePubRepo) Create(pub *models.EventPublication) error {
	pub.ID = uint(len(f.rows) + 1)
	f.rows = append(f.rows, pub)
	return nil
}
func (f *fakePubRepo) Update(pub *models.EventPublication) error { return nil }
func (f *fakePubRepo) GetByPublicationID(publicationID string) (*models.EventPublication, error) {
	for _, r := range f.rows {
		if r.PublicationID == publicationID {
			return r, nil
		}
	}
	return nil, nil
}
func (f *fakePubRepo) GetLatestByEventAndPlatform(eventID uint, platform string) (*models.EventPublication, error) {
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].EventID == eventID && f.rows[i].Platform == platform {
			return f.rows[i], nil
		}
	}
	return nil, nil
}
func (f *fakePubRepo) ListByEvent(eventID uint) ([]models.EventPublication, error) { return nil, nil }
func (f *fakePubRepo) ListRetryable(limit int) ([]models.EventPublication, error) { return nil, nil }

type fakeCredRepo struct {
	rows map[string]*models.PlatformCredential
}

func newFakeCredRepo() *fakeCredRepo {
	return &fakeCredRepo{rows: map[string]*models.PlatformCredential{}}
}

func credKey(orgID uint, platform string) string { return fmt.Sprintf("%d|%s", orgID, platform) }

func (f *fakeCredRepo) GetByOrgAndPlatform(orgID uint, platform string) (*models.PlatformCredential, error) {
	return f.rows[credKey(orgID, platform)], nil
}
func (f *fakeCredRepo) Upsert(cred *models.PlatformCredential) error {
	f.rows[credKey(cred.OrganizationID, cred.Platform)] = cred
	return nil
}
func (f *fakeCredRepo) Invalidate(orgID uint, platform string) error {
	if row, ok := f.rows[credKey(orgID, platform)]; ok {
		row.IsValid = false
	}
	return nil
}
func (f *fakeCredRepo) Delete(orgID uint, platform string) error {
	delete(f.rows, credKey(orgID, platform))
	return nil
}
func (f *fakeCredRepo) ListByOrganization(orgID uint) ([]models.PlatformCredential, error) {
	return nil, nil
}

// fakeAdapter records calls and answers with scripted results.
type fakeAdapter struct {
	platform platforms.ID

	connectCalls int32
	createCalls  int32
	updateCalls  int32
	deleteCalls  int32

	rejectConnect bool
	failCreate    *adapters.PublicationError
	gotCreds      map[string]string
	gotExternalID string
}

func (f *fakeAdapter) Platform() platforms.ID            { return f.platform }
func (f *fakeAdapter) IsConnected(ctx context.Context) bool { return atomic.LoadInt32(&f.connectCalls) > 0 }

func (f *fakeAdapter) Connect(ctx context.Context, creds map[string]string) adapters.ConnectionResult {
	atomic.AddInt32(&f.connectCalls, 1)
	f.gotCreds = creds
	if f.rejectConnect {
		return adapters.ConnectionResult{Error: "token expired"}
	}
	return adapters.ConnectionResult{Success: true, AccountID: "acct", AccountName: "Account"}
}

func (f *fakeAdapter) Disconnect() {}

func (f *fakeAdapter) TransformEvent(event *models.CanonicalEvent) *adapters.TransformedEvent {
	return &adapters.TransformedEvent{Platform: f.platform, Title: event.Title, Timezone: event.Timezone}
}

func (f *fakeAdapter) CreateEvent(ctx context.Context, event *adapters.TransformedEvent) adapters.PublicationResult {
	atomic.AddInt32(&f.createCalls, 1)
	if f.failCreate != nil {
		return adapters.PublicationResult{PublicationID: "pub-fail", Error: f.failCreate}
	}
	return adapters.PublicationResult{
		Success:       true,
		PublicationID: "pub-" + string(f.platform),
		ExternalID:    "ext-" + string(f.platform),
		ExternalURL:   "https://example.com/" + string(f.platform),
	}
}

func (f *fakeAdapter) UpdateEvent(ctx context.Context, externalID string, event *adapters.TransformedEvent) adapters.PublicationResult {
	atomic.AddInt32(&f.updateCalls, 1)
	f.gotExternalID = externalID
	return adapters.PublicationResult{Success: true, PublicationID: "pub-upd", ExternalID: externalID}
}

func (f *fakeAdapter) DeleteEvent(ctx context.Context, externalID string) error {
	atomic.AddInt32(&f.deleteCalls, 1)
	f.gotExternalID = externalID
	return nil
}

func (f *fakeAdapter) EventURL(externalID string) string { return "https://example.com/" + externalID }

// --- fixture ---------------------------------------------------------------

type fixture struct {
	svc      *Service
	pubs     *fakePubRepo
	creds    *fakeCredRepo
	store    *credentials.Store
	adapters map[platforms.ID]*fakeAdapter
}

func newFixture(t *testing.T, tier string) *fixture {
	t.Helper()

	start := time.Now().Add(24 * time.Hour)
	events := &fakeEventRepo{events: map[uint]*models.CanonicalEvent{
		1: {
			ID:             1,
			OrganizationID: 10,
			Title:          "Launch Party",
			StartTime:      start,
			EndTime:        start.Add(2 * time.Hour),
			Timezone:       "UTC",
			Status:         models.EVENT_STATUS_PUBLISHED,
			Visibility:     models.EVENT_VISIBILITY_PUBLIC,
		},
	}}
	orgs := &fakeOrgRepo{orgs: map[uint]*models.Organization{
		10: {ID: 10, Name: "Acme", Slug: "acme", Tier: tier},
	}}
	pubs := &fakePubRepo{}
	credRepo := newFakeCredRepo()

	cipher, err := security.NewTokenCipherWithKey(make([]byte, 32))
	require.NoError(t, err)
	store := credentials.NewStore(credRepo, cipher)

	fakes := map[platforms.ID]*fakeAdapter{}
	svc := NewService(&repository.Repositories{
		Event:        events,
		Organization: orgs,
		Credential:   credRepo,
		Publication:  pubs,
	}, store)
	svc.newAdapter = func(id platforms.ID) (adapters.Adapter, error) {
		a, ok := fakes[id]
		if !ok {
			return nil, fmt.Errorf("no fake adapter for %q", id)
		}
		return a, nil
	}

	return &fixture{svc: svc, pubs: pubs, creds: credRepo, store: store, adapters: fakes}
}

func (fx *fixture) connectPlatform(t *testing.T, id platforms.ID) {
	t.Helper()
	_, err := fx.store.Save(context.Background(), credentials.SaveInput{
		OrganizationID: 10,
		Platform:       id,
		AccessToken:    "token-" + string(id),
		AccountID:      "acct-" + string(id),
	})
	require.NoError(t, err)
}

// --- tests -----------------------------------------------------------------

func TestPublishFansOutIndependently(t *testing.T) {
	fx := newFixture(t, "enterprise")
	fx.adapters[platforms.Facebook] = &fakeAdapter{platform: platforms.Facebook}
	fx.adapters[platforms.ZoomMeeting] = &fakeAdapter{
		platform:   platforms.ZoomMeeting,
		failCreate: &adapters.PublicationError{Code: "ZOOM_HTTP_503", Message: "down", Retryable: true},
	}
	fx.connectPlatform(t, platforms.Facebook)
	fx.connectPlatform(t, platforms.ZoomMeeting)

	outcomes, err := fx.svc.Publish(context.Background(), 1, 10, []platforms.ID{platforms.Facebook, platforms.ZoomMeeting})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	fb, zoom := outcomes[0], outcomes[1]
	assert.Equal(t, platforms.Facebook, fb.Platform)
	require.True(t, fb.Result.Success)
	assert.Equal(t, "ext-facebook", fb.Result.ExternalID)

	assert.Equal(t, platforms.ZoomMeeting, zoom.Platform)
	require.NotNil(t, zoom.Result.Error, "the zoom failure must not poison the facebook result")
	assert.True(t, zoom.Result.Error.Retryable)

	require.Len(t, fx.pubs.rows, 2)
	byPlatform := map[string]*models.EventPublication{}
	for _, r := range fx.pubs.rows {
		byPlatform[r.Platform] = r
	}
	assert.Equal(t, models.PUBLICATION_STATUS_PUBLISHED, byPlatform["facebook"].Status)
	require.NotNil(t, byPlatform["facebook"].PublishedAt)
	assert.Equal(t, models.PUBLICATION_STATUS_FAILED, byPlatform["zoom_meeting"].Status)
	assert.Equal(t, "ZOOM_HTTP_503", byPlatform["zoom_meeting"].ErrorCode)
	assert.True(t, byPlatform["zoom_meeting"].Retryable)
}

func TestPublishEnforcesTier(t *testing.T) {
	fx := newFixture(t, "free")
	fx.adapters[platforms.LinkedIn] = &fakeAdapter{platform: platforms.LinkedIn}
	fx.connectPlatform(t, platforms.LinkedIn)

	outcomes, err := fx.svc.Publish(context.Background(), 1, 10, []platforms.ID{platforms.LinkedIn})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	require.NotNil(t, outcomes[0].Result.Error)
	assert.Equal(t, CodeTierForbidden, outcomes[0].Result.Error.Code)
	assert.EqualValues(t, 0, fx.adapters[platforms.LinkedIn].connectCalls, "a tier rejection must not touch the platform")

	require.Len(t, fx.pubs.rows, 1)
	assert.Equal(t, models.PUBLICATION_STATUS_FAILED, fx.pubs.rows[0].Status)
	assert.NotEmpty(t, fx.pubs.rows[0].PublicationID)
}

func TestPublishWithoutCredentialFails(t *testing.T) {
	fx := newFixture(t, "pro")
	fx.adapters[platforms.Facebook] = &fakeAdapter{platform: platforms.Facebook}

	outcomes, err := fx.svc.Publish(context.Background(), 1, 10, []platforms.ID{platforms.Facebook})
	require.NoError(t, err)
	require.NotNil(t, outcomes[0].Result.Error)
	assert.Equal(t, adapters.CodeNotConnected, outcomes[0].Result.Error.Code)
	assert.EqualValues(t, 0, fx.adapters[platforms.Facebook].connectCalls)
}

func TestPublishConnectFailureInvalidatesCredential(t *testing.T) {
	fx := newFixture(t, "pro")
	fx.adapters[platforms.Facebook] = &fakeAdapter{platform: platforms.Facebook, rejectConnect: true}
	fx.connectPlatform(t, platforms.Facebook)

	outcomes, err := fx.svc.Publish(context.Background(), 1, 10, []platforms.ID{platforms.Facebook})
	require.NoError(t, err)
	require.NotNil(t, outcomes[0].Result.Error)
	assert.Equal(t, CodeConnectFailed, outcomes[0].Result.Error.Code)

	row, err := fx.creds.GetByOrgAndPlatform(10, "facebook")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.False(t, row.IsValid, "a rejected connect must invalidate the stored credential")
}

func TestPublishDecryptsStoredTokensForConnect(t *testing.T) {
	fx := newFixture(t, "pro")
	fx.adapters[platforms.Facebook] = &fakeAdapter{platform: platforms.Facebook}
	fx.connectPlatform(t, platforms.Facebook)

	_, err := fx.svc.Publish(context.Background(), 1, 10, []platforms.ID{platforms.Facebook})
	require.NoError(t, err)

	got := fx.adapters[platforms.Facebook].gotCreds
	assert.Equal(t, "token-facebook", got["access_token"], "the adapter must see plaintext, not ciphertext")
	assert.Equal(t, "acct-facebook", got["page_id"])
}

func TestPublishUpdatesExistingPublication(t *testing.T) {
	fx := newFixture(t, "pro")
	fake := &fakeAdapter{platform: platforms.Facebook}
	fx.adapters[platforms.Facebook] = fake
	fx.connectPlatform(t, platforms.Facebook)

	_, err := fx.svc.Publish(context.Background(), 1, 10, []platforms.ID{platforms.Facebook})
	require.NoError(t, err)
	_, err = fx.svc.Publish(context.Background(), 1, 10, []platforms.ID{platforms.Facebook})
	require.NoError(t, err)

	assert.EqualValues(t, 1, fake.createCalls)
	assert.EqualValues(t, 1, fake.updateCalls)
	assert.Equal(t, "ext-facebook", fake.gotExternalID, "the update must target the stored external id")
}

func TestUnpublishMarksRowDeleted(t *testing.T) {
	fx := newFixture(t, "pro")
	fake := &fakeAdapter{platform: platforms.Facebook}
	fx.adapters[platforms.Facebook] = fake
	fx.connectPlatform(t, platforms.Facebook)

	_, err := fx.svc.Publish(context.Background(), 1, 10, []platforms.ID{platforms.Facebook})
	require.NoError(t, err)

	outcomes, err := fx.svc.Unpublish(context.Background(), 1, 10, []platforms.ID{platforms.Facebook})
	require.NoError(t, err)
	require.True(t, outcomes[0].Result.Success)
	assert.EqualValues(t, 1, fake.deleteCalls)
	assert.Equal(t, "ext-facebook", fake.gotExternalID)
	assert.Equal(t, models.PUBLICATION_STATUS_DELETED, fx.pubs.rows[0].Status)
}

func TestUnpublishWithoutLivePublication(t *testing.T) {
	fx := newFixture(t, "pro")
	fx.adapters[platforms.Facebook] = &fakeAdapter{platform: platforms.Facebook}
	fx.connectPlatform(t, platforms.Facebook)

	outcomes, err := fx.svc.Unpublish(context.Background(), 1, 10, []platforms.ID{platforms.Facebook})
	require.NoError(t, err)
	require.NotNil(t, outcomes[0].Result.Error)
	assert.Equal(t, CodeNothingToDelete, outcomes[0].Result.Error.Code)
	assert.EqualValues(t, 0, fx.adapters[platforms.Facebook].deleteCalls)
}

func TestPublishRejectsForeignEvent(t *testing.T) {
	fx := newFixture(t, "pro")

	// Event 1 belongs to org 10; org 11 must not publish it.
	_, err := fx.svc.Publish(context.Background(), 1, 11, []platforms.ID{platforms.Facebook})
	assert.ErrorIs(t, err, ErrEventOwnership)

	_, err = fx.svc.Publish(context.Background(), 404, 10, []platforms.ID{platforms.Facebook})
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestPublishRejectsInvalidEvent(t *testing.T) {
	fx := newFixture(t, "pro")
	fx.adapters[platforms.Facebook] = &fakeAdapter{platform: platforms.Facebook}

	events := fx.svc.events.(*fakeEventRepo)
	events.events[1].Title = "x" // below the 3-char minimum

	_, err := fx.svc.Publish(context.Background(), 1, 10, []platforms.ID{platforms.Facebook})
	require.Error(t, err)
	assert.Empty(t, fx.pubs.rows, "a rejected request must attempt nothing")
}

func TestPublishICalNeedsNoCredential(t *testing.T) {
	fx := newFixture(t, "free")
	fx.adapters[platforms.ICal] = &fakeAdapter{platform: platforms.ICal}

	outcomes, err := fx.svc.Publish(context.Background(), 1, 10, []platforms.ID{platforms.ICal})
	require.NoError(t, err)
	require.True(t, outcomes[0].Result.Success, "calendar export must work without a stored credential")
}

func TestPublishUnimplementedPlatform(t *testing.T) {
	fx := newFixture(t, "enterprise")

	outcomes, err := fx.svc.Publish(context.Background(), 1, 10, []platforms.ID{platforms.Instagram})
	require.NoError(t, err)
	require.NotNil(t, outcomes[0].Result.Error)
	assert.Equal(t, CodeUnsupportedPlatform, outcomes[0].Result.Error.Code)
}

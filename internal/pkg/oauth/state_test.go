package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventcastapp/eventcast/internal/pkg/platforms"
)

// fakeStateStore keeps states in a map; Delete-on-read mirrors the Redis
// GetDel semantics.
type fakeStateStore struct {
	states map[string]StatePayload
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[string]StatePayload)}
}

func (f *fakeStateStore) Save(ctx context.Context, token string, payload StatePayload, ttl time.Duration) error {
	f.states[token] = payload
	return nil
}

func (f *fakeStateStore) ConsumeDelete(ctx context.Context, token string) (*StatePayload, error) {
	payload, ok := f.states[token]
	if !ok {
		return nil, nil
	}
	delete(f.states, token)
	return &payload, nil
}

func TestStateRoundTrip(t *testing.T) {
	store := newFakeStateStore()
	m := NewStateManager(store)
	ctx := context.Background()

	state, err := m.Issue(ctx, 42, platforms.Facebook)
	require.NoError(t, err)
	require.NotEmpty(t, state)
	assert.Len(t, store.states, 1)

	res := m.Validate(ctx, state)
	require.NotNil(t, res)
	assert.Equal(t, uint(42), res.OrganizationID)
	assert.Equal(t, platforms.Facebook, res.Platform)
}

func TestStateIsSingleUse(t *testing.T) {
	store := newFakeStateStore()
	m := NewStateManager(store)
	ctx := context.Background()

	state, err := m.Issue(ctx, 7, platforms.LinkedIn)
	require.NoError(t, err)

	first := m.Validate(ctx, state)
	require.NotNil(t, first)

	second := m.Validate(ctx, state)
	assert.Nil(t, second, "a consumed state must never validate again")
}

func TestStateExpiry(t *testing.T) {
	store := newFakeStateStore()
	m := NewStateManager(store)
	ctx := context.Background()

	state, err := m.Issue(ctx, 9, platforms.ZoomMeeting)
	require.NoError(t, err)

	// Move the clock 16 minutes forward for validation.
	m.now = func() time.Time { return time.Now().Add(16 * time.Minute) }

	res := m.Validate(ctx, state)
	assert.Nil(t, res, "states older than 15 minutes must be rejected")
	assert.Empty(t, store.states, "the expired state must still be consumed")
}

func TestStateOrganizationMismatch(t *testing.T) {
	store := newFakeStateStore()
	m := NewStateManager(store)
	ctx := context.Background()

	state, err := m.Issue(ctx, 1, platforms.Facebook)
	require.NoError(t, err)

	// Re-encode the envelope claiming a different organization.
	decoded, err := base64.RawURLEncoding.DecodeString(state)
	require.NoError(t, err)
	var env stateEnvelope
	require.NoError(t, json.Unmarshal(decoded, &env))
	env.OrganizationID = 2
	forged, err := json.Marshal(env)
	require.NoError(t, err)

	res := m.Validate(ctx, base64.RawURLEncoding.EncodeToString(forged))
	assert.Nil(t, res)
	assert.Empty(t, store.states, "even a mismatched state must be consumed")
}

func TestStateMalformedInputs(t *testing.T) {
	m := NewStateManager(newFakeStateStore())
	ctx := context.Background()

	for _, raw := range []string{
		"",
		"not-base64!!!",
		base64.RawURLEncoding.EncodeToString([]byte("not json")),
		base64.RawURLEncoding.EncodeToString([]byte(`{"org_id":1}`)), // no token
	} {
		assert.Nil(t, m.Validate(ctx, raw), "input %q must be rejected", raw)
	}
}

func TestTokenExpiryFallback(t *testing.T) {
	withExpiry := &TokenResponse{AccessToken: "t", ExpiresIn: 3600}
	got := TokenExpiry(withExpiry, 60*24*time.Hour)
	require.NotNil(t, got)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *got, 5*time.Second)

	withoutExpiry := &TokenResponse{AccessToken: "t"}
	got = TokenExpiry(withoutExpiry, time.Hour)
	require.NotNil(t, got)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *got, 5*time.Second)
}

package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/eventcastapp/eventcast/internal/pkg/platforms"
)

// stateTTL bounds how long an authorization round trip may take.
const stateTTL = 15 * time.Minute

const stateKeyPrefix = "oauth_state:"

// StatePayload is the server-side record of one issued state token.
type StatePayload struct {
	OrganizationID uint   `json:"org_id"`
	Platform       string `json:"platform"`
	IssuedAt       int64  `json:"iat"`
}

// stateEnvelope is the value carried in the `state` query parameter. The
// token is the lookup key; org and platform are repeated so the callback can
// cross-check them against the server-side record.
type stateEnvelope struct {
	Token          string `json:"token"`
	OrganizationID uint   `json:"org_id"`
	Platform       string `json:"platform"`
}

// StateStore persists issued states. Consume must be atomic with respect to
// concurrent callbacks presenting the same token.
type StateStore interface {
	Save(ctx context.Context, token string, payload StatePayload, ttl time.Duration) error
	// ConsumeDelete returns the payload and deletes it in one step, or
	// (nil, nil) when the token is unknown or already consumed.
	ConsumeDelete(ctx context.Context, token string) (*StatePayload, error)
}

// redisStateStore keeps states in Redis next to the other short-lived
// session state. The TTL doubles as a cleanup policy.
type redisStateStore struct {
	client *redis.Client
}

// NewRedisStateStore creates a Redis-backed state store.
func NewRedisStateStore(client *redis.Client) StateStore {
	return &redisStateStore{client: client}
}

func (s *redisStateStore) Save(ctx context.Context, token string, payload StatePayload, ttl time.Duration) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, stateKeyPrefix+token, raw, ttl).Err()
}

func (s *redisStateStore) ConsumeDelete(ctx context.Context, token string) (*StatePayload, error) {
	raw, err := s.client.GetDel(ctx, stateKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var payload StatePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// StateResult is the successful outcome of validating a callback state.
type StateResult struct {
	OrganizationID uint
	Platform       platforms.ID
	Token          string
}

// StateManager issues and validates one-time CSRF states.
type StateManager struct {
	store StateStore
	now   func() time.Time
}

// NewStateManager creates a state manager over the given store.
func NewStateManager(store StateStore) *StateManager {
	return &StateManager{store: store, now: time.Now}
}

// Issue persists a fresh state and returns the encoded value for the `state`
// query parameter.
func (m *StateManager) Issue(ctx context.Context, orgID uint, platform platforms.ID) (string, error) {
	token := uuid.NewString()
	payload := StatePayload{
		OrganizationID: orgID,
		Platform:       string(platform),
		IssuedAt:       m.now().Unix(),
	}
	if err := m.store.Save(ctx, token, payload, stateTTL); err != nil {
		return "", err
	}

	raw, err := json.Marshal(stateEnvelope{
		Token:          token,
		OrganizationID: orgID,
		Platform:       string(platform),
	})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Validate consumes a callback state. The server-side record is deleted
// unconditionally once found, so a state can never be replayed even when a
// later check fails. Any failure returns nil; errors never cross this
// boundary, the caller just rejects the callback.
func (m *StateManager) Validate(ctx context.Context, raw string) *StateResult {
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		log.Warnf("[OAuth] malformed state parameter: %v", err)
		return nil
	}
	var env stateEnvelope
	if err := json.Unmarshal(decoded, &env); err != nil {
		log.Warnf("[OAuth] malformed state payload: %v", err)
		return nil
	}
	if env.Token == "" {
		return nil
	}

	payload, err := m.store.ConsumeDelete(ctx, env.Token)
	if err != nil {
		log.Errorf("[OAuth] state lookup failed: %v", err)
		return nil
	}
	if payload == nil {
		log.Warnf("[OAuth] unknown or already consumed state token")
		return nil
	}

	// The record is gone from the store at this point; reuse is impossible
	// regardless of how the remaining checks turn out.
	if m.now().Sub(time.Unix(payload.IssuedAt, 0)) > stateTTL {
		log.Warnf("[OAuth] expired state for org %d on %s", payload.OrganizationID, payload.Platform)
		return nil
	}
	if payload.OrganizationID != env.OrganizationID || payload.Platform != env.Platform {
		log.Warnf("[OAuth] state mismatch: envelope org %d/%s vs stored org %d/%s",
			env.OrganizationID, env.Platform, payload.OrganizationID, payload.Platform)
		return nil
	}

	return &StateResult{
		OrganizationID: payload.OrganizationID,
		Platform:       platforms.ID(payload.Platform),
		Token:          env.Token,
	}
}

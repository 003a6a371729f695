package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/eventcastapp/eventcast/app/repository"
	"github.com/eventcastapp/eventcast/internal/pkg/cache"
	"github.com/eventcastapp/eventcast/internal/pkg/credentials"
	"github.com/eventcastapp/eventcast/internal/pkg/oauth"
	"github.com/eventcastapp/eventcast/internal/pkg/orgcontext"
	"github.com/eventcastapp/eventcast/internal/pkg/platforms"
	"github.com/eventcastapp/eventcast/internal/pkg/security"
)

var (
	credentialStore *credentials.Store
	stateManager    *oauth.StateManager
	exchangers      map[platforms.ID]oauth.Exchanger
)

// InitializeConnectController wires the OAuth exchangers, the state manager
// and the credential store. Must run after the repository factory and the
// cache are up.
func InitializeConnectController() {
	cipher, err := security.NewTokenCipher()
	if err != nil {
		panic("connect controller: " + err.Error())
	}
	credentialStore = credentials.NewStore(repository.GetGlobalFactory().GetCredentialRepository(), cipher)

	stateManager = oauth.NewStateManager(oauth.NewRedisStateStore(cache.GetClient()))
	exchangers = map[platforms.ID]oauth.Exchanger{
		platforms.Facebook:    oauth.NewFacebookExchangerFromEnv(stateManager),
		platforms.LinkedIn:    oauth.NewLinkedInExchangerFromEnv(stateManager),
		platforms.ZoomMeeting: oauth.NewZoomExchangerFromEnv(stateManager, platforms.ZoomMeeting),
		platforms.ZoomWebinar: oauth.NewZoomExchangerFromEnv(stateManager, platforms.ZoomWebinar),
	}
}

// GetCredentialStore exposes the shared store to the other controllers.
func GetCredentialStore() *credentials.Store {
	return credentialStore
}

// HandleConnect starts the OAuth flow for one platform and returns the
// authorization URL the client should redirect the user to.
func HandleConnect(c *fiber.Ctx) error {
	org := orgcontext.GetOrgContext(c)
	if !org.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	platform := platforms.ID(c.Params("platform"))
	meta, ok := platforms.Get(platform)
	if !ok || !meta.Implemented {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "unknown platform"})
	}
	if meta.Auth != platforms.AuthOAuth2 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "platform needs no OAuth connection"})
	}
	if platforms.TierRank(platforms.Tier(org.Tier)) < platforms.TierRank(meta.MinTier) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "platform not available on the current tier"})
	}

	exchanger, ok := exchangers[platform]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "unknown platform"})
	}

	authorizeURL, err := exchanger.AuthorizationURL(c.Context(), org.OrganizationID)
	if err != nil {
		log.Errorf("authorization url for org %d on %s: %v", org.OrganizationID, platform, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "could not start the connection"})
	}

	return c.JSON(fiber.Map{"authorize_url": authorizeURL})
}

// HandleConnectCallback finishes the OAuth flow. The platform redirects here;
// authentication comes from the one-time state, not from an API key.
func HandleConnectCallback(c *fiber.Ctx) error {
	platform := platforms.ID(c.Params("platform"))
	exchanger, ok := exchangers[platform]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "unknown platform"})
	}

	state := stateManager.Validate(c.Context(), c.Query("state"))
	if state == nil || state.Platform != platform {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid or expired state"})
	}

	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "authorization code missing"})
	}

	tokens, err := exchanger.ExchangeCode(c.Context(), code)
	if err != nil {
		log.Errorf("token exchange for org %d on %s: %v", state.OrganizationID, platform, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "bad_gateway", "message": "token exchange failed"})
	}

	account, err := exchanger.FetchAccount(c.Context(), tokens.AccessToken)
	if err != nil {
		log.Errorf("account lookup for org %d on %s: %v", state.OrganizationID, platform, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "bad_gateway", "message": "account lookup failed"})
	}

	// Page-scoped platforms hand out a dedicated token for the selected
	// account; it supersedes the user token for all publishing calls.
	accessToken := tokens.AccessToken
	if account.AccessToken != "" {
		accessToken = account.AccessToken
	}

	cred, err := credentialStore.Save(c.Context(), credentials.SaveInput{
		OrganizationID: state.OrganizationID,
		Platform:       platform,
		AccessToken:    accessToken,
		RefreshToken:   tokens.RefreshToken,
		ExpiresAt:      oauth.TokenExpiry(tokens, exchanger.DefaultTokenLifetime()),
		AccountID:      account.ID,
		AccountName:    account.Name,
		Metadata:       account.Metadata,
	})
	if err != nil {
		log.Errorf("credential save for org %d on %s: %v", state.OrganizationID, platform, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "could not store the connection"})
	}

	return c.JSON(fiber.Map{
		"connected":    true,
		"platform":     platform,
		"account_id":   cred.AccountID,
		"account_name": cred.AccountName,
	})
}

// HandleDisconnect removes a stored platform connection.
func HandleDisconnect(c *fiber.Ctx) error {
	org := orgcontext.GetOrgContext(c)
	if !org.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	platform := platforms.ID(c.Params("platform"))
	if _, ok := platforms.Get(platform); !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "unknown platform"})
	}

	if err := credentialStore.Delete(c.Context(), org.OrganizationID, platform); err != nil {
		log.Errorf("credential delete for org %d on %s: %v", org.OrganizationID, platform, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "could not remove the connection"})
	}

	return c.JSON(fiber.Map{"disconnected": true, "platform": platform})
}

// HandleListPlatforms returns every registered platform with its tier
// availability and connection state for the calling organization.
func HandleListPlatforms(c *fiber.Ctx) error {
	org := orgcontext.GetOrgContext(c)
	if !org.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	rank := platforms.TierRank(platforms.Tier(org.Tier))
	out := make([]fiber.Map, 0)
	for _, meta := range platforms.All() {
		entry := fiber.Map{
			"id":           meta.ID,
			"display_name": meta.DisplayName,
			"auth":         meta.Auth,
			"min_tier":     meta.MinTier,
			"implemented":  meta.Implemented,
			"available":    meta.Implemented && platforms.TierRank(meta.MinTier) <= rank,
			"connected":    false,
		}
		if meta.Auth != platforms.AuthNone {
			cred, err := credentialStore.Get(c.Context(), org.OrganizationID, meta.ID)
			if err != nil {
				log.Warnf("credential read for org %d on %s: %v", org.OrganizationID, meta.ID, err)
			} else if cred != nil && cred.IsValid {
				entry["connected"] = true
				entry["account_name"] = cred.AccountName
				entry["needs_refresh"] = credentials.NeedsRefresh(cred.ExpiresAt)
			}
		} else if meta.Implemented {
			entry["connected"] = true
		}
		out = append(out, entry)
	}

	return c.JSON(fiber.Map{"platforms": out})
}

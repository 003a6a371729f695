package middleware

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/eventcastapp/eventcast/app/models"
	"github.com/eventcastapp/eventcast/app/repository"
	"github.com/eventcastapp/eventcast/internal/pkg/database"
	"github.com/eventcastapp/eventcast/internal/pkg/orgcontext"
)

// APIKeyAuthMiddleware authenticates requests carrying an organization API
// key header and installs the OrgContext for downstream handlers.
func APIKeyAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		if database.GetDB() == nil {
			log.Print("api key middleware: database unavailable")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Database unavailable"})
		}

		hash := models.HashAPIKey(apiKey)
		repo := repository.GetGlobalFactory().GetOrganizationRepository()
		org, err := repo.GetByAPIKeyHash(hash)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
			}
			log.Printf("api key lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "API key verification failed"})
		}

		tier := org.Tier
		if tier == "" {
			tier = "free"
		}

		orgCtx := orgcontext.OrgContext{
			OrganizationID:  org.ID,
			Slug:            org.Slug,
			Tier:            tier,
			IsAuthenticated: true,
		}
		c.Locals(orgcontext.ContextKey, orgCtx)
		c.Locals(orgcontext.KeyFromProtected, true)
		c.Locals(orgcontext.KeyOrganizationID, org.ID)
		c.Locals(orgcontext.KeySlug, org.Slug)
		c.Locals(orgcontext.KeyTier, tier)

		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

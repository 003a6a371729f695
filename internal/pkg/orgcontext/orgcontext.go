package orgcontext

import "github.com/gofiber/fiber/v2"

// OrgContext represents the authenticated organization for a request
type OrgContext struct {
	OrganizationID  uint   `json:"organization_id"`
	Slug            string `json:"slug"`
	Tier            string `json:"tier"`
	IsAuthenticated bool   `json:"is_authenticated"`
}

// GetOrgContext retrieves the organization context from fiber context.
// Returns an unauthenticated context if none is set.
func GetOrgContext(c *fiber.Ctx) OrgContext {
	if ctx := c.Locals(ContextKey); ctx != nil {
		return ctx.(OrgContext)
	}
	return OrgContext{IsAuthenticated: false}
}

// IsAuthenticated checks if the request carries a valid organization
func IsAuthenticated(c *fiber.Ctx) bool {
	return GetOrgContext(c).IsAuthenticated
}

// GetOrganizationID returns the authenticated organization's ID, or 0
func GetOrganizationID(c *fiber.Ctx) uint {
	return GetOrgContext(c).OrganizationID
}

// GetTier returns the authenticated organization's subscription tier
func GetTier(c *fiber.Ctx) string {
	return GetOrgContext(c).Tier
}

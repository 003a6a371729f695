package orgcontext

// Shared Locals keys used across controllers and middlewares
const (
	ContextKey = "ORG_CONTEXT"

	KeyOrganizationID = "organization_id"
	KeySlug           = "organization_slug"
	KeyTier           = "organization_tier"
	KeyFromProtected  = "from_protected"
)

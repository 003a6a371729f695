package platforms

import "sort"

// ID identifies one external publishing target.
type ID string

const (
	Facebook    ID = "facebook"
	LinkedIn    ID = "linkedin"
	ZoomMeeting ID = "zoom_meeting"
	ZoomWebinar ID = "zoom_webinar"
	ICal        ID = "ical"

	// Declared targets without an adapter yet. Kept in the registry so the
	// UI layer can list them as "coming soon"; constructing an adapter for
	// them fails explicitly.
	Instagram  ID = "instagram"
	Eventbrite ID = "eventbrite"
)

// AuthMechanism describes how an organization connects a platform.
type AuthMechanism string

const (
	AuthOAuth2 AuthMechanism = "oauth2"
	AuthAPIKey AuthMechanism = "api-key"
	AuthNone   AuthMechanism = "none"
)

// Tier mirrors the organization subscription levels.
type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierBusiness   Tier = "business"
	TierEnterprise Tier = "enterprise"
)

// Capabilities declares per-platform feature support and numeric limits.
// A zero length limit means the platform imposes none.
type Capabilities struct {
	MaxTitleLength       int
	MaxDescriptionLength int
	MaxImages            int
	SupportsRecurring    bool
	SupportsRSVP         bool
	SupportsTicketing    bool
	SupportsVirtual      bool
}

// Metadata is the immutable registry entry for one platform.
type Metadata struct {
	ID           ID
	DisplayName  string
	Auth         AuthMechanism
	MinTier      Tier
	Implemented  bool
	Capabilities Capabilities
}

var registry = map[ID]Metadata{
	ICal: {
		ID:          ICal,
		DisplayName: "Calendar Export (iCal)",
		Auth:        AuthNone,
		MinTier:     TierFree,
		Implemented: true,
		Capabilities: Capabilities{
			SupportsRecurring: true,
			SupportsVirtual:   true,
		},
	},
	Facebook: {
		ID:          Facebook,
		DisplayName: "Facebook Page",
		Auth:        AuthOAuth2,
		MinTier:     TierBasic,
		Implemented: true,
		Capabilities: Capabilities{
			MaxTitleLength:       75,
			MaxDescriptionLength: 5000,
			MaxImages:            1,
			SupportsRSVP:         true,
			SupportsTicketing:    true,
			SupportsVirtual:      true,
		},
	},
	LinkedIn: {
		ID:          LinkedIn,
		DisplayName: "LinkedIn Organization",
		Auth:        AuthOAuth2,
		MinTier:     TierPro,
		Implemented: true,
		Capabilities: Capabilities{
			MaxTitleLength:       200,
			MaxDescriptionLength: 5000,
			MaxImages:            1,
			SupportsVirtual:      true,
		},
	},
	ZoomMeeting: {
		ID:          ZoomMeeting,
		DisplayName: "Zoom Meeting",
		Auth:        AuthOAuth2,
		MinTier:     TierPro,
		Implemented: true,
		Capabilities: Capabilities{
			MaxTitleLength:       200,
			MaxDescriptionLength: 2000,
			SupportsRecurring:    true,
			SupportsVirtual:      true,
		},
	},
	ZoomWebinar: {
		ID:          ZoomWebinar,
		DisplayName: "Zoom Webinar",
		Auth:        AuthOAuth2,
		MinTier:     TierBusiness,
		Implemented: true,
		Capabilities: Capabilities{
			MaxTitleLength:       200,
			MaxDescriptionLength: 2000,
			SupportsRecurring:    true,
			SupportsTicketing:    true,
			SupportsVirtual:      true,
		},
	},
	Instagram: {
		ID:          Instagram,
		DisplayName: "Instagram",
		Auth:        AuthOAuth2,
		MinTier:     TierBusiness,
		Capabilities: Capabilities{
			MaxTitleLength:       125,
			MaxDescriptionLength: 2200,
			MaxImages:            10,
		},
	},
	Eventbrite: {
		ID:          Eventbrite,
		DisplayName: "Eventbrite",
		Auth:        AuthAPIKey,
		MinTier:     TierEnterprise,
		Capabilities: Capabilities{
			MaxTitleLength:       140,
			MaxDescriptionLength: 10000,
			SupportsTicketing:    true,
			SupportsVirtual:      true,
		},
	},
}

// Get returns the registry entry for a platform id.
func Get(id ID) (Metadata, bool) {
	m, ok := registry[id]
	return m, ok
}

// All returns every registry entry, ordered by id for stable output.
func All() []Metadata {
	out := make([]Metadata, 0, len(registry))
	for _, m := range registry {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TierRank maps the fixed tier total order free < basic < pro < business <
// enterprise onto integers. Unknown tiers rank below free.
func TierRank(t Tier) int {
	switch t {
	case TierFree:
		return 0
	case TierBasic:
		return 1
	case TierPro:
		return 2
	case TierBusiness:
		return 3
	case TierEnterprise:
		return 4
	default:
		return -1
	}
}

// AtOrBelowTier returns the platforms available to an organization on the
// given tier.
func AtOrBelowTier(t Tier) []Metadata {
	rank := TierRank(t)
	out := make([]Metadata, 0, len(registry))
	for _, m := range All() {
		if TierRank(m.MinTier) <= rank {
			out = append(out, m)
		}
	}
	return out
}

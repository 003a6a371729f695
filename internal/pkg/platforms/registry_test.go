package platforms

import "testing"

func TestTierRankOrdering(t *testing.T) {
	ordered := []Tier{TierFree, TierBasic, TierPro, TierBusiness, TierEnterprise}
	for i := 1; i < len(ordered); i++ {
		if TierRank(ordered[i-1]) >= TierRank(ordered[i]) {
			t.Fatalf("expected %s to rank below %s", ordered[i-1], ordered[i])
		}
	}
	if TierRank(Tier("gold")) >= TierRank(TierFree) {
		t.Fatalf("unknown tiers must rank below free")
	}
}

func TestGetKnownAndUnknown(t *testing.T) {
	m, ok := Get(Facebook)
	if !ok {
		t.Fatalf("expected facebook to be registered")
	}
	if m.Auth != AuthOAuth2 || !m.Implemented {
		t.Fatalf("unexpected facebook metadata: %+v", m)
	}

	if _, ok := Get(ID("myspace")); ok {
		t.Fatalf("expected unknown platform to be absent")
	}
}

func TestAtOrBelowTier(t *testing.T) {
	free := AtOrBelowTier(TierFree)
	if len(free) != 1 || free[0].ID != ICal {
		t.Fatalf("free tier should only see ical, got %+v", free)
	}

	pro := AtOrBelowTier(TierPro)
	seen := make(map[ID]bool, len(pro))
	for _, m := range pro {
		seen[m.ID] = true
	}
	for _, want := range []ID{ICal, Facebook, LinkedIn, ZoomMeeting} {
		if !seen[want] {
			t.Fatalf("pro tier should include %s", want)
		}
	}
	if seen[ZoomWebinar] || seen[Eventbrite] {
		t.Fatalf("pro tier must not include business/enterprise platforms")
	}

	all := AtOrBelowTier(TierEnterprise)
	if len(all) != len(All()) {
		t.Fatalf("enterprise should see every platform")
	}
}

func TestRegistryLimitsArePositiveForNetworkPlatforms(t *testing.T) {
	for _, id := range []ID{Facebook, LinkedIn, ZoomMeeting, ZoomWebinar} {
		m, _ := Get(id)
		if m.Capabilities.MaxTitleLength <= 0 || m.Capabilities.MaxDescriptionLength <= 0 {
			t.Fatalf("%s must declare text limits", id)
		}
	}
}

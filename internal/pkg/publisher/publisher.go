package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/eventcastapp/eventcast/app/models"
	"github.com/eventcastapp/eventcast/app/repository"
	"github.com/eventcastapp/eventcast/internal/pkg/adapters"
	"github.com/eventcastapp/eventcast/internal/pkg/credentials"
	"github.com/eventcastapp/eventcast/internal/pkg/platforms"
)

// Publish-level error codes. Adapter-level codes (FACEBOOK_*, ZOOM_*, ...)
// pass through untouched.
const (
	CodeTierForbidden       = "TIER_FORBIDDEN"
	CodeUnsupportedPlatform = "UNSUPPORTED_PLATFORM"
	CodeConnectFailed       = "CONNECT_FAILED"
	CodeNothingToDelete     = "NOTHING_TO_DELETE"
)

var (
	ErrEventNotFound        = errors.New("event not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrEventOwnership       = errors.New("event does not belong to the organization")
)

// Outcome is the per-platform result of one publish or unpublish request.
// Platforms fail independently; one Outcome never affects another.
type Outcome struct {
	Platform    platforms.ID
	Result      adapters.PublicationResult
	Publication *models.EventPublication
}

// Service fans a canonical event out to the selected platforms and records
// one EventPublication row per attempt.
type Service struct {
	events repository.EventRepository
	orgs   repository.OrganizationRepository
	pubs   repository.PublicationRepository
	creds  *credentials.Store

	// newAdapter is swappable for tests.
	newAdapter func(platforms.ID) (adapters.Adapter, error)
}

func NewService(repos *repository.Repositories, creds *credentials.Store) *Service {
	return &Service{
		events:     repos.Event,
		orgs:       repos.Organization,
		pubs:       repos.Publication,
		creds:      creds,
		newAdapter: adapters.New,
	}
}

// Publish pushes the event to every requested platform concurrently. The
// returned slice is ordered like the request; a non-nil error means the
// request as a whole was rejected and nothing was attempted.
func (s *Service) Publish(ctx context.Context, eventID, orgID uint, targets []platforms.ID) ([]Outcome, error) {
	event, org, err := s.loadEventAndOrg(eventID, orgID)
	if err != nil {
		return nil, err
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("event %d failed validation: %w", eventID, err)
	}

	outcomes := make([]Outcome, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target platforms.ID) {
			defer wg.Done()
			outcomes[i] = s.publishOne(ctx, event, org, target)
		}(i, target)
	}
	wg.Wait()
	return outcomes, nil
}

// Unpublish deletes the event from every requested platform it is currently
// published on and marks the rows deleted.
func (s *Service) Unpublish(ctx context.Context, eventID, orgID uint, targets []platforms.ID) ([]Outcome, error) {
	event, org, err := s.loadEventAndOrg(eventID, orgID)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target platforms.ID) {
			defer wg.Done()
			outcomes[i] = s.unpublishOne(ctx, event, org, target)
		}(i, target)
	}
	wg.Wait()
	return outcomes, nil
}

func (s *Service) loadEventAndOrg(eventID, orgID uint) (*models.CanonicalEvent, *models.Organization, error) {
	event, err := s.events.GetByID(eventID)
	if err != nil {
		return nil, nil, err
	}
	if event == nil {
		return nil, nil, ErrEventNotFound
	}
	if event.OrganizationID != orgID {
		return nil, nil, ErrEventOwnership
	}

	org, err := s.orgs.GetByID(orgID)
	if err != nil {
		return nil, nil, err
	}
	if org == nil {
		return nil, nil, ErrOrganizationNotFound
	}
	return event, org, nil
}

func (s *Service) publishOne(ctx context.Context, event *models.CanonicalEvent, org *models.Organization, target platforms.ID) Outcome {
	adapter, failure := s.prepareAdapter(ctx, org, target)
	if failure != nil {
		return s.recordOutcome(event, org, target, *failure)
	}
	defer adapter.Disconnect()

	transformed := adapter.TransformEvent(event)

	// An existing live publication turns this into an update.
	latest, err := s.pubs.GetLatestByEventAndPlatform(event.ID, string(target))
	if err != nil {
		log.Errorf("publication lookup for event %d on %s: %v", event.ID, target, err)
	}

	var result adapters.PublicationResult
	if latest != nil && latest.Status == models.PUBLICATION_STATUS_PUBLISHED && latest.ExternalID != "" {
		result = adapter.UpdateEvent(ctx, latest.ExternalID, transformed)
	} else {
		result = adapter.CreateEvent(ctx, transformed)
	}

	return s.recordOutcome(event, org, target, result)
}

func (s *Service) unpublishOne(ctx context.Context, event *models.CanonicalEvent, org *models.Organization, target platforms.ID) Outcome {
	latest, err := s.pubs.GetLatestByEventAndPlatform(event.ID, string(target))
	if err != nil {
		log.Errorf("publication lookup for event %d on %s: %v", event.ID, target, err)
	}
	if latest == nil || latest.Status != models.PUBLICATION_STATUS_PUBLISHED {
		return Outcome{
			Platform: target,
			Result:   failure(CodeNothingToDelete, fmt.Sprintf("event %d has no live publication on %s", event.ID, target), false),
		}
	}

	adapter, prepFailure := s.prepareAdapter(ctx, org, target)
	if prepFailure != nil {
		return Outcome{Platform: target, Result: *prepFailure, Publication: latest}
	}
	defer adapter.Disconnect()

	if err := adapter.DeleteEvent(ctx, latest.ExternalID); err != nil {
		var perr *adapters.PublicationError
		if !errors.As(err, &perr) {
			perr = &adapters.PublicationError{
				Code:      adapters.CodeNetworkError,
				Message:   err.Error(),
				Timestamp: time.Now(),
				Retryable: !errors.Is(err, adapters.ErrNotConnected),
			}
		}
		return Outcome{Platform: target, Result: adapters.PublicationResult{Error: perr}, Publication: latest}
	}

	latest.Status = models.PUBLICATION_STATUS_DELETED
	if err := s.pubs.Update(latest); err != nil {
		log.Errorf("marking publication %s deleted: %v", latest.PublicationID, err)
	}
	return Outcome{
		Platform:    target,
		Result:      adapters.PublicationResult{Success: true, PublicationID: latest.PublicationID},
		Publication: latest,
	}
}

// prepareAdapter builds and connects the adapter for one platform. A non-nil
// result is the failure to report; the adapter is only returned connected.
func (s *Service) prepareAdapter(ctx context.Context, org *models.Organization, target platforms.ID) (adapters.Adapter, *adapters.PublicationResult) {
	meta, ok := platforms.Get(target)
	if !ok || !meta.Implemented {
		r := failure(CodeUnsupportedPlatform, fmt.Sprintf("platform %q is not available", target), false)
		return nil, &r
	}
	if platforms.TierRank(platforms.Tier(org.Tier)) < platforms.TierRank(meta.MinTier) {
		r := failure(CodeTierForbidden, fmt.Sprintf("platform %q requires the %s tier", target, meta.MinTier), false)
		return nil, &r
	}

	adapter, err := s.newAdapter(target)
	if err != nil {
		r := failure(CodeUnsupportedPlatform, err.Error(), false)
		return nil, &r
	}

	credMap := map[string]string{}
	if meta.Auth != platforms.AuthNone {
		cred, err := s.creds.Get(ctx, org.ID, target)
		if err != nil {
			log.Errorf("credential load for org %d on %s: %v", org.ID, target, err)
			r := failure(adapters.CodeNotConnected, "stored credential could not be read", false)
			return nil, &r
		}
		if cred == nil || !cred.IsValid {
			r := failure(adapters.CodeNotConnected, fmt.Sprintf("organization %d is not connected to %s", org.ID, target), false)
			return nil, &r
		}
		credMap = connectMap(cred)
	}

	conn := adapter.Connect(ctx, credMap)
	if !conn.Success {
		if meta.Auth != platforms.AuthNone {
			// The platform rejected stored credentials; flag the row so the
			// UI can prompt for a reconnect.
			if err := s.creds.Invalidate(ctx, org.ID, target); err != nil {
				log.Errorf("invalidating credential for org %d on %s: %v", org.ID, target, err)
			}
		}
		r := failure(CodeConnectFailed, conn.Error, false)
		return nil, &r
	}
	return adapter, nil
}

// connectMap flattens a stored credential into the key/value shape Connect
// takes. Every adapter picks the keys it needs and ignores the rest.
func connectMap(cred *credentials.Credential) map[string]string {
	m := map[string]string{
		"access_token":    cred.AccessToken,
		"refresh_token":   cred.RefreshToken,
		"page_id":         cred.AccountID,
		"organization_id": cred.AccountID,
	}
	for k, v := range cred.Metadata {
		if _, taken := m[k]; !taken {
			m[k] = v
		}
	}
	return m
}

// recordOutcome persists one EventPublication row for the attempt and folds
// everything into the Outcome shape.
func (s *Service) recordOutcome(event *models.CanonicalEvent, org *models.Organization, target platforms.ID, result adapters.PublicationResult) Outcome {
	publicationID := result.PublicationID
	if publicationID == "" {
		// Failures produced before an adapter call still get their own row.
		publicationID = uuid.NewString()
	}

	row := &models.EventPublication{
		PublicationID:  publicationID,
		EventID:        event.ID,
		OrganizationID: org.ID,
		Platform:       string(target),
		ExternalID:     result.ExternalID,
		ExternalURL:    result.ExternalURL,
		AttemptCount:   1,
	}
	if result.Success {
		now := time.Now()
		row.Status = models.PUBLICATION_STATUS_PUBLISHED
		row.PublishedAt = &now
	} else {
		row.Status = models.PUBLICATION_STATUS_FAILED
		if result.Error != nil {
			row.ErrorCode = result.Error.Code
			row.ErrorMessage = result.Error.Message
			row.Retryable = result.Error.Retryable
		}
	}

	if err := s.pubs.Create(row); err != nil {
		log.Errorf("persisting publication for event %d on %s: %v", event.ID, target, err)
	}
	return Outcome{Platform: target, Result: result, Publication: row}
}

func failure(code, message string, retryable bool) adapters.PublicationResult {
	return adapters.PublicationResult{
		Error: &adapters.PublicationError{
			Code:      code,
			Message:   message,
			Timestamp: time.Now(),
			Retryable: retryable,
		},
	}
}

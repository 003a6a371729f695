package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/eventcastapp/eventcast/app/repository"
	"github.com/eventcastapp/eventcast/internal/pkg/metrics/counter"
	"github.com/eventcastapp/eventcast/internal/pkg/orgcontext"
	"github.com/eventcastapp/eventcast/internal/pkg/platforms"
	"github.com/eventcastapp/eventcast/internal/pkg/publisher"
)

var publishService *publisher.Service

// InitializePublishController wires the publish service. Must run after the
// connect controller so the shared credential store exists.
func InitializePublishController() {
	publishService = publisher.NewService(repository.GetGlobalRepositories(), GetCredentialStore())
}

type publishRequest struct {
	Platforms []string `json:"platforms"`
}

// HandlePublish pushes one event to the requested platforms.
func HandlePublish(c *fiber.Ctx) error {
	org := orgcontext.GetOrgContext(c)
	if !org.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	eventID, targets, ok := parsePublishRequest(c)
	if !ok {
		return nil
	}

	outcomes, err := publishService.Publish(c.Context(), eventID, org.OrganizationID, targets)
	if err != nil {
		return publishServiceError(c, err)
	}

	for _, o := range outcomes {
		if o.Result.Success {
			if cerr := counter.AddPublished(string(o.Platform)); cerr != nil {
				log.Warnf("publish counter for %s: %v", o.Platform, cerr)
			}
		} else {
			if cerr := counter.AddFailed(string(o.Platform)); cerr != nil {
				log.Warnf("failure counter for %s: %v", o.Platform, cerr)
			}
		}
	}

	return c.JSON(fiber.Map{"event_id": eventID, "results": renderOutcomes(outcomes)})
}

// HandleUnpublish removes one event from the requested platforms.
func HandleUnpublish(c *fiber.Ctx) error {
	org := orgcontext.GetOrgContext(c)
	if !org.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	eventID, targets, ok := parsePublishRequest(c)
	if !ok {
		return nil
	}

	outcomes, err := publishService.Unpublish(c.Context(), eventID, org.OrganizationID, targets)
	if err != nil {
		return publishServiceError(c, err)
	}

	for _, o := range outcomes {
		if o.Result.Success {
			if cerr := counter.AddDeleted(string(o.Platform)); cerr != nil {
				log.Warnf("delete counter for %s: %v", o.Platform, cerr)
			}
		}
	}

	return c.JSON(fiber.Map{"event_id": eventID, "results": renderOutcomes(outcomes)})
}

// HandleListPublications returns the publication history of one event.
func HandleListPublications(c *fiber.Ctx) error {
	org := orgcontext.GetOrgContext(c)
	if !org.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	eventID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid event id"})
	}

	event, err := repository.GetGlobalFactory().GetEventRepository().GetByID(uint(eventID))
	if err != nil || event == nil || event.OrganizationID != org.OrganizationID {
		// Do not leak existence of foreign events.
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "event not found"})
	}

	rows, err := repository.GetGlobalFactory().GetPublicationRepository().ListByEvent(uint(eventID))
	if err != nil {
		log.Errorf("publication list for event %d: %v", eventID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "could not load publications"})
	}

	return c.JSON(fiber.Map{"event_id": eventID, "publications": rows})
}

// HandleStats returns the operational per-platform publish counters.
func HandleStats(c *fiber.Ctx) error {
	org := orgcontext.GetOrgContext(c)
	if !org.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	published, failed, deleted, err := counter.Snapshot()
	if err != nil {
		log.Errorf("counter snapshot: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "could not read counters"})
	}

	return c.JSON(fiber.Map{
		"published": published,
		"failed":    failed,
		"deleted":   deleted,
	})
}

// parsePublishRequest reads the event id and target platforms. On failure it
// writes the error response itself and reports ok=false.
func parsePublishRequest(c *fiber.Ctx) (uint, []platforms.ID, bool) {
	eventID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid event id"})
		return 0, nil, false
	}

	var req publishRequest
	if err := c.BodyParser(&req); err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid request body"})
		return 0, nil, false
	}
	if len(req.Platforms) == 0 {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "platforms must not be empty"})
		return 0, nil, false
	}

	targets := make([]platforms.ID, 0, len(req.Platforms))
	for _, p := range req.Platforms {
		targets = append(targets, platforms.ID(p))
	}
	return uint(eventID), targets, true
}

func publishServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, publisher.ErrEventNotFound), errors.Is(err, publisher.ErrEventOwnership):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "event not found"})
	case errors.Is(err, publisher.ErrOrganizationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "organization not found"})
	default:
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "unprocessable_entity", "message": err.Error()})
	}
}

func renderOutcomes(outcomes []publisher.Outcome) []fiber.Map {
	out := make([]fiber.Map, 0, len(outcomes))
	for _, o := range outcomes {
		entry := fiber.Map{
			"platform": o.Platform,
			"success":  o.Result.Success,
		}
		if o.Publication != nil {
			entry["publication_id"] = o.Publication.PublicationID
		}
		if o.Result.Success {
			entry["external_id"] = o.Result.ExternalID
			entry["external_url"] = o.Result.ExternalURL
		} else if o.Result.Error != nil {
			entry["error"] = fiber.Map{
				"code":      o.Result.Error.Code,
				"message":   o.Result.Error.Message,
				"retryable": o.Result.Error.Retryable,
			}
		}
		out = append(out, entry)
	}
	return out
}

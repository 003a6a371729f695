package controllers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/eventcastapp/eventcast/app/repository"
	"github.com/eventcastapp/eventcast/internal/pkg/adapters"
	"github.com/eventcastapp/eventcast/internal/pkg/constants"
	"github.com/eventcastapp/eventcast/internal/pkg/env"
	"github.com/eventcastapp/eventcast/internal/pkg/orgcontext"
	"github.com/eventcastapp/eventcast/internal/pkg/security"
)

// exportLinkTTL bounds how long a generated download link stays valid.
const exportLinkTTL = 24 * time.Hour

func exportSecret() string {
	return env.GetEnv("APP_SECRET", "")
}

// HandleCreateExportLink mints a signed, time-limited download link for one
// event's calendar file. The link itself needs no API key.
func HandleCreateExportLink(c *fiber.Ctx) error {
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
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "event not found"})
	}

	token, err := security.GenerateExportToken(org.OrganizationID, uint(eventID), exportLinkTTL, exportSecret())
	if err != nil {
		log.Errorf("export token for event %d: %v", eventID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "could not create download link"})
	}

	return c.JSON(fiber.Map{
		"download_url": fmt.Sprintf("%s%s?token=%s", constants.APIRoute, constants.ExportRoute, token),
		"expires_in":   int(exportLinkTTL.Seconds()),
	})
}

// HandleExportICal serves the calendar file for a signed download link.
func HandleExportICal(c *fiber.Ctx) error {
	claims, err := security.VerifyExportToken(c.Query("token"), exportSecret())
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "invalid or expired download link"})
	}

	event, err := repository.GetGlobalFactory().GetEventRepository().GetByID(claims.EventID)
	if err != nil || event == nil || event.OrganizationID != claims.OrganizationID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "event not found"})
	}

	adapter := adapters.NewICalAdapter()
	payload := adapter.Generate(adapter.TransformEvent(event), uuid.NewString()+"@eventcast", time.Now().UTC())

	c.Set(fiber.HeaderContentType, "text/calendar; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="event-%d.ics"`, event.ID))
	return c.SendString(payload)
}

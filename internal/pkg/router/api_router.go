package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/eventcastapp/eventcast/app/controllers"
	"github.com/eventcastapp/eventcast/internal/pkg/constants"
	"github.com/eventcastapp/eventcast/internal/pkg/middleware"
)

type ApiRouter struct {
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	// Controllers share the credential store; connect must initialize first.
	controllers.InitializeConnectController()
	controllers.InitializePublishController()

	api := app.Group(constants.APIRoute, limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// Platform callbacks and signed downloads authenticate themselves; no
	// API key on these.
	api.Get(constants.CallbackRoute, controllers.HandleConnectCallback)
	api.Get(constants.ExportRoute, controllers.HandleExportICal)

	protected := api.Group("", middleware.APIKeyAuthMiddleware())
	protected.Get(constants.ConnectRoute, controllers.HandleConnect)
	protected.Delete(constants.DisconnectRoute, controllers.HandleDisconnect)
	protected.Get(constants.PlatformsRoute, controllers.HandleListPlatforms)

	protected.Post(constants.PublishRoute, controllers.HandlePublish)
	protected.Delete(constants.UnpublishRoute, controllers.HandleUnpublish)
	protected.Get(constants.PublicationsRoute, controllers.HandleListPublications)
	protected.Post("/events/:id/export", controllers.HandleCreateExportLink)

	protected.Get(constants.StatsRoute, controllers.HandleStats)
}

package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/BotPilotHQ/botpilot/app/controllers"
	"github.com/BotPilotHQ/botpilot/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", middleware.RequireAdmin)
	adminGroup.Get("/", controllers.HandleAdminOverview)
	adminGroup.Get("/users", controllers.HandleAdminUserList)
	adminGroup.Post("/users/update-plan/:id", controllers.HandleAdminUserPlanUpdate)
	adminGroup.Post("/users/resync-plan/:id", controllers.HandleAdminUserPlanResync)
}

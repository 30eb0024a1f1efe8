package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/BotPilotHQ/botpilot/app/controllers"
	"github.com/BotPilotHQ/botpilot/internal/pkg/env"
	"github.com/BotPilotHQ/botpilot/internal/pkg/middleware"
)

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Path(), "/webhooks/")
		},
	}

	group := app.Group("", cors.New(), csrf.New(csrfConf))
	group.Get("/", loggedInMiddleware, controllers.HandleStart)
	group.Get("/login", loggedInMiddleware, controllers.HandleLoginPage)
	group.Post("/login", loggedInMiddleware, controllers.HandleAuthLogin)
	group.Get("/register", loggedInMiddleware, controllers.HandleRegisterPage)
	group.Post("/register", loggedInMiddleware, controllers.HandleAuthRegister)
	group.Get("/activate", loggedInMiddleware, controllers.HandleUserActivate)

	// User settings + API keys
	group.Get("/user/settings", middleware.RequireAuth, controllers.HandleUserSettings)
	group.Post("/user/settings", middleware.RequireAuth, controllers.HandleUserSettingsUpdate)
	group.Post("/user/settings/api-key", middleware.RequireAuth, controllers.HandleUserAPIKeyIssue)
	group.Post("/user/settings/api-key/revoke", middleware.RequireAuth, controllers.HandleUserAPIKeyRevoke)
	group.Post("/user/settings/billing/resync", middleware.RequireAuth, controllers.HandleUserBillingResync)

	// Bot management (session-authenticated web surface)
	group.Get("/user/bots", middleware.RequireAPISessionAuth, controllers.HandleBotList)
	group.Post("/user/bots", middleware.RequireAPISessionAuth, controllers.HandleBotCreate)
	group.Get("/user/bots/:id", middleware.RequireAPISessionAuth, controllers.HandleBotGet)
	group.Post("/user/bots/:id/start", middleware.RequireAPISessionAuth, controllers.HandleBotStart)
	group.Post("/user/bots/:id/stop", middleware.RequireAPISessionAuth, controllers.HandleBotStop)
	group.Post("/user/bots/:id/delete", middleware.RequireAPISessionAuth, controllers.HandleBotDelete)
	group.Get("/user/bots/:id/info", middleware.RequireAPISessionAuth, controllers.HandleBotInfo)
	group.Get("/user/bots/:id/stats", middleware.RequireAPISessionAuth, controllers.HandleBotStats)
	group.Get("/user/bots/:id/logs", middleware.RequireAPISessionAuth, controllers.HandleBotLogs)
	group.Post("/user/bots/:id/analyze", middleware.RequireAPISessionAuth, controllers.HandleBotAnalyze)
}

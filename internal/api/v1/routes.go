package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/BotPilotHQ/botpilot/internal/pkg/middleware"
)

// RegisterHandlers wires the v1 endpoints onto the given router group.
// Everything except ping requires an API key.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)

	secured := router.Group("", middleware.APIKeyAuthMiddleware())
	secured.Get("/user/profile", s.GetUserProfile)

	secured.Get("/bots", s.GetBots)
	secured.Post("/bots", s.PostBot)
	secured.Get("/bots/:id", s.GetBot)
	secured.Delete("/bots/:id", s.DeleteBot)
	secured.Post("/bots/:id/start", s.PostBotStart)
	secured.Post("/bots/:id/stop", s.PostBotStop)
	secured.Get("/bots/:id/info", s.GetBotInfo)
	secured.Get("/bots/:id/stats", s.GetBotStats)
	secured.Get("/bots/:id/logs", s.GetBotLogs)
	secured.Post("/bots/:id/analyze", s.PostBotAnalyze)
}

package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/BotPilotHQ/botpilot/app/controllers"
)

// Pong is the ping endpoint response body.
type Pong struct {
	Ping string `json:"ping"`
}

// APIServer implements the public v1 surface.
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetBots lists the authenticated user's bots (API key protected).
// Security is enforced via API key middleware attached in the router.
func (s *APIServer) GetBots(c *fiber.Ctx) error {
	return controllers.HandleBotList(c)
}

// PostBot creates and deploys a bot.
func (s *APIServer) PostBot(c *fiber.Ctx) error {
	return controllers.HandleBotCreate(c)
}

// GetBot returns a single bot by id.
func (s *APIServer) GetBot(c *fiber.Ctx) error {
	return controllers.HandleBotGet(c)
}

// PostBotStart starts the bot process on the runner.
func (s *APIServer) PostBotStart(c *fiber.Ctx) error {
	return controllers.HandleBotStart(c)
}

// PostBotStop stops the bot process on the runner.
func (s *APIServer) PostBotStop(c *fiber.Ctx) error {
	return controllers.HandleBotStop(c)
}

// DeleteBot removes the bot and schedules backend cleanup.
func (s *APIServer) DeleteBot(c *fiber.Ctx) error {
	return controllers.HandleBotDelete(c)
}

// GetBotInfo returns live runtime state from the runner.
func (s *APIServer) GetBotInfo(c *fiber.Ctx) error {
	return controllers.HandleBotInfo(c)
}

// GetBotStats returns resource usage from the runner.
func (s *APIServer) GetBotStats(c *fiber.Ctx) error {
	return controllers.HandleBotStats(c)
}

// GetBotLogs streams live logs as server-sent events.
func (s *APIServer) GetBotLogs(c *fiber.Ctx) error {
	return controllers.HandleBotLogs(c)
}

// PostBotAnalyze runs the log analyzer over a recent log tail.
func (s *APIServer) PostBotAnalyze(c *fiber.Ctx) error {
	return controllers.HandleBotAnalyze(c)
}

// GetUserProfile returns account information for the authenticated user.
func (s *APIServer) GetUserProfile(c *fiber.Ctx) error {
	return controllers.HandleUserSettings(c)
}

package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/BotPilotHQ/botpilot/internal/pkg/entitlements"
	"github.com/BotPilotHQ/botpilot/internal/pkg/statistics"
)

// HandleStart serves the landing data: public stats and plan overview.
func HandleStart(c *fiber.Ctx) error {
	stats := statistics.GetStatisticsData()

	return c.JSON(fiber.Map{
		"name":         "BotPilot",
		"total_users":  stats.TotalUsers,
		"total_bots":   stats.TotalBots,
		"running_bots": stats.RunningBots,
	})
}

// HandlePricing lists the available plans and their bot slot quotas.
func HandlePricing(c *fiber.Ctx) error {
	plans := []fiber.Map{}
	for _, p := range []entitlements.Plan{entitlements.PlanFree, entitlements.PlanPro, entitlements.PlanPower} {
		plans = append(plans, fiber.Map{
			"plan":      string(p),
			"bot_slots": entitlements.BotSlots(p),
		})
	}

	return c.JSON(fiber.Map{"plans": plans})
}

// HandleLoginPage serves the login page payload, including any flash
// message left by a previous redirect.
func HandleLoginPage(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"page":  "login",
		"flash": flash.Get(c),
	})
}

// HandleRegisterPage serves the registration page payload.
func HandleRegisterPage(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"page":  "register",
		"flash": flash.Get(c),
	})
}

package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/BotPilotHQ/botpilot/app/models"
	"github.com/BotPilotHQ/botpilot/internal/pkg/billing"
	"github.com/BotPilotHQ/botpilot/internal/pkg/database"
	"github.com/BotPilotHQ/botpilot/internal/pkg/entitlements"
	"github.com/BotPilotHQ/botpilot/internal/pkg/jobqueue"
	"github.com/BotPilotHQ/botpilot/internal/pkg/statistics"
)

// HandleAdminOverview returns platform statistics and queue health.
func HandleAdminOverview(c *fiber.Ctx) error {
	stats := statistics.GetStatisticsData()

	queue := jobqueue.GetManager().GetQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	jobStats, _ := queue.GetJobStats(ctx)
	queueSize, _ := queue.GetQueueSize(ctx)
	processing, _ := queue.GetProcessingSize(ctx)

	return c.JSON(fiber.Map{
		"total_users":  stats.TotalUsers,
		"total_bots":   stats.TotalBots,
		"running_bots": stats.RunningBots,
		"queue": fiber.Map{
			"pending":    queueSize,
			"processing": processing,
			"job_stats":  jobStats,
		},
	})
}

// HandleAdminUserList returns users with their settings for the admin panel.
func HandleAdminUserList(c *fiber.Ctx) error {
	var users []models.User
	if err := database.GetDB().Order("id asc").Limit(200).Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "could not load users",
		})
	}

	return c.JSON(fiber.Map{"users": users, "count": len(users)})
}

// HandleAdminUserPlanUpdate overrides a user's plan directly. The override
// holds until the next provider webhook reconciles the plan again.
func HandleAdminUserPlanUpdate(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil || userID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_payload",
			"message": "invalid user id",
		})
	}

	var req struct {
		Plan string `json:"plan" form:"plan"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_payload",
			"message": "could not parse request body",
		})
	}

	plan := strings.ToLower(strings.TrimSpace(req.Plan))
	if plan != string(entitlements.PlanFree) && plan != string(entitlements.PlanPro) && plan != string(entitlements.PlanPower) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_payload",
			"message": "unknown plan",
		})
	}

	db := database.GetDB()
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": "user not found",
		})
	}

	settings, err := models.GetOrCreateUserSettings(db, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "could not load settings",
		})
	}
	settings.Plan = plan
	if err := db.Save(settings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "could not save plan",
		})
	}

	return c.JSON(fiber.Map{"ok": true, "user_id": user.ID, "plan": settings.Plan})
}

// HandleAdminUserPlanResync recomputes a user's plan from stored
// subscriptions, dropping any manual override.
func HandleAdminUserPlanResync(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil || userID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_payload",
			"message": "invalid user id",
		})
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	effectivePlan, err := svc.ReconcileUserPlan(ctx, uint(userID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "plan reconciliation failed",
		})
	}

	return c.JSON(fiber.Map{"ok": true, "user_id": userID, "plan": effectivePlan})
}

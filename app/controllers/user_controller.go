package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/BotPilotHQ/botpilot/app/models"
	"github.com/BotPilotHQ/botpilot/internal/pkg/database"
	"github.com/BotPilotHQ/botpilot/internal/pkg/usercontext"
)

// HandleUserSettings returns the current user's settings and plan.
func HandleUserSettings(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	settings, err := models.GetOrCreateUserSettings(database.GetDB(), userCtx.UserID)
	if err != nil {
		log.Printf("failed to load settings for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "could not load settings",
		})
	}

	return c.JSON(fiber.Map{
		"plan":               settings.Plan,
		"notify_on_crash":    settings.NotifyOnCrash,
		"api_key_active":     settings.HasActiveAPIKey(),
		"api_key_prefix":     settings.APIKeyPrefix,
		"api_key_created_at": settings.APIKeyCreatedAt,
	})
}

// HandleUserSettingsUpdate toggles notification preferences.
func HandleUserSettingsUpdate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req struct {
		NotifyOnCrash *bool `json:"notify_on_crash" form:"notify_on_crash"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_payload",
			"message": "could not parse request body",
		})
	}
	if req.NotifyOnCrash == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_payload",
			"message": "nothing to update",
		})
	}

	db := database.GetDB()
	settings, err := models.GetOrCreateUserSettings(db, userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "could not load settings",
		})
	}

	settings.NotifyOnCrash = *req.NotifyOnCrash
	if err := db.Save(settings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "could not save settings",
		})
	}

	return c.JSON(fiber.Map{"ok": true, "notify_on_crash": settings.NotifyOnCrash})
}

// HandleUserAPIKeyIssue mints a new API key. The plaintext key appears in
// this response only; the database keeps the hash.
func HandleUserAPIKeyIssue(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	db := database.GetDB()
	settings, err := models.GetOrCreateUserSettings(db, userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "could not load settings",
		})
	}

	rawKey, err := settings.IssueAPIKey()
	if err != nil {
		log.Printf("api key generation failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "could not generate API key",
		})
	}
	if err := db.Save(settings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "could not save API key",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"api_key":    rawKey,
		"prefix":     settings.APIKeyPrefix,
		"created_at": settings.APIKeyCreatedAt,
	})
}

// HandleUserAPIKeyRevoke invalidates the current API key immediately.
func HandleUserAPIKeyRevoke(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	db := database.GetDB()
	settings, err := models.GetOrCreateUserSettings(db, userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "could not load settings",
		})
	}
	if !settings.HasActiveAPIKey() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": "no active API key",
		})
	}

	settings.RevokeAPIKey()
	if err := db.Save(settings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "could not revoke API key",
		})
	}

	return c.JSON(fiber.Map{"ok": true})
}

package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/BotPilotHQ/botpilot/internal/pkg/botmgr"
	"github.com/BotPilotHQ/botpilot/internal/pkg/botrunner"
)

const (
	FROM_PROTECTED string = "from_protected"
)

func isLoggedIn(c *fiber.Ctx) bool {
	var fromProtected bool
	if protectedValue := c.Locals(FROM_PROTECTED); protectedValue != nil {
		fromProtected = protectedValue.(bool)
	}

	return fromProtected
}

// ExtractUsername gets the username from Locals (set by middleware)
func ExtractUsername(c *fiber.Ctx) string {
	if userNameValue := c.Locals(USER_NAME); userNameValue != nil {
		if userName, ok := userNameValue.(string); ok {
			return userName
		}
	}

	return ""
}

// ExtractUserID gets the user ID from Locals (set by middleware)
func ExtractUserID(c *fiber.Ctx) uint {
	if userIDValue := c.Locals(USER_ID); userIDValue != nil {
		if userID, ok := userIDValue.(uint); ok {
			return userID
		}
	}

	return 0
}

// botErrorResponse maps bot manager errors onto HTTP status codes with a
// stable machine-readable error field.
func botErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, botmgr.ErrNotAuthenticated):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	case errors.Is(err, botmgr.ErrNotAuthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "you do not own this bot",
		})
	case errors.Is(err, botmgr.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": "bot not found",
		})
	case errors.Is(err, botmgr.ErrQuotaExceeded):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "quota_exceeded",
			"message": "bot slot limit reached for your plan",
		})
	case errors.Is(err, botmgr.ErrDeploymentFailed):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "deployment_failed",
			"message": err.Error(),
		})
	case errors.Is(err, botrunner.ErrNotConfigured):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "runner_not_configured",
			"message": "bot runner backend is not configured",
		})
	case errors.Is(err, botrunner.ErrBackendUnavailable):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "backend_unavailable",
			"message": "bot runner backend is unreachable",
		})
	case errors.Is(err, botrunner.ErrBotUnknown):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": "bot unknown to runner backend",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": err.Error(),
		})
	}
}

// GetClientIP determines the actual client IP address considering proxies.
func GetClientIP(c *fiber.Ctx) string {
	cfIP := strings.TrimSpace(c.Get("CF-Connecting-IP"))
	if cfIP != "" {
		return cfIP
	}

	xff := c.Get("X-Forwarded-For")
	if xff != "" {
		// first entry is the original client
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	ipAddr := c.IP()
	if strings.HasPrefix(ipAddr, "::ffff:") && strings.Contains(ipAddr, ".") {
		return strings.TrimPrefix(ipAddr, "::ffff:")
	}

	return ipAddr
}

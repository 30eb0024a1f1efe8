package controllers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BotPilotHQ/botpilot/internal/pkg/botmgr"
	"github.com/BotPilotHQ/botpilot/internal/pkg/botrunner"
)

func TestBotErrorResponseStatusMapping(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{botmgr.ErrNotAuthenticated, fiber.StatusUnauthorized, "unauthorized"},
		{botmgr.ErrNotAuthorized, fiber.StatusForbidden, "forbidden"},
		{botmgr.ErrNotFound, fiber.StatusNotFound, "not_found"},
		{botmgr.ErrQuotaExceeded, fiber.StatusForbidden, "quota_exceeded"},
		{fmt.Errorf("%w: runner said no", botmgr.ErrDeploymentFailed), fiber.StatusBadGateway, "deployment_failed"},
		{botrunner.ErrNotConfigured, fiber.StatusServiceUnavailable, "runner_not_configured"},
		{botrunner.ErrBackendUnavailable, fiber.StatusBadGateway, "backend_unavailable"},
		{botrunner.ErrBotUnknown, fiber.StatusNotFound, "not_found"},
		{fmt.Errorf("boom"), fiber.StatusInternalServerError, "internal_server_error"},
	}

	for _, tc := range cases {
		t.Run(tc.wantCode, func(t *testing.T) {
			app := fiber.New()
			app.Get("/fail", func(c *fiber.Ctx) error {
				return botErrorResponse(c, tc.err)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/fail", nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, resp.StatusCode)

			body, readErr := io.ReadAll(resp.Body)
			require.NoError(t, readErr)

			var payload map[string]string
			require.NoError(t, json.Unmarshal(body, &payload))
			assert.Equal(t, tc.wantCode, payload["error"])
		})
	}
}

func TestIsLoggedIn(t *testing.T) {
	app := fiber.New()
	app.Get("/check", func(c *fiber.Ctx) error {
		if c.Query("protected") == "1" {
			c.Locals(FROM_PROTECTED, true)
		}
		if isLoggedIn(c) {
			return c.SendString("in")
		}
		return c.SendString("out")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/check?protected=1", nil), -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "in", string(body))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/check", nil), -1)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "out", string(body))
}

func TestExtractUsernameAndUserID(t *testing.T) {
	app := fiber.New()
	app.Get("/who", func(c *fiber.Ctx) error {
		c.Locals(USER_NAME, "berta")
		c.Locals(USER_ID, uint(7))
		return c.JSON(fiber.Map{
			"name": ExtractUsername(c),
			"id":   ExtractUserID(c),
		})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/who", nil), -1)
	require.NoError(t, err)

	var payload struct {
		Name string `json:"name"`
		ID   uint   `json:"id"`
	}
	body, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "berta", payload.Name)
	assert.Equal(t, uint(7), payload.ID)
}

func TestExtractUsernameMissing(t *testing.T) {
	app := fiber.New()
	app.Get("/who", func(c *fiber.Ctx) error {
		return c.SendString(ExtractUsername(c))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/who", nil), -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "", string(body))
}

func TestGetClientIP(t *testing.T) {
	app := fiber.New()
	app.Get("/ip", func(c *fiber.Ctx) error {
		return c.SendString(GetClientIP(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.Header.Set("CF-Connecting-IP", "203.0.113.7")
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "203.0.113.7", string(body))

	req = httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "198.51.100.1", string(body))
}

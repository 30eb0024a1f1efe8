package controllers

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/BotPilotHQ/botpilot/internal/pkg/botmgr"
	"github.com/BotPilotHQ/botpilot/internal/pkg/loganalysis"
	"github.com/BotPilotHQ/botpilot/internal/pkg/usercontext"
)

var botService *botmgr.Service

// SetBotService injects the shared bot manager; called once during startup.
func SetBotService(s *botmgr.Service) {
	botService = s
}

// GetBotService returns the shared bot manager.
func GetBotService() *botmgr.Service {
	return botService
}

var logAnalyzer *loganalysis.Analyzer

// SetLogAnalyzer injects the shared log analyzer; called once during startup.
func SetLogAnalyzer(a *loganalysis.Analyzer) {
	logAnalyzer = a
}

type createBotRequest struct {
	Name string `json:"name" form:"name"`
	Code string `json:"code" form:"code"`
}

// HandleBotList returns all bots owned by the current user.
func HandleBotList(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	bots, err := botService.List(userCtx.UserID)
	if err != nil {
		return botErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"bots":  bots,
		"count": len(bots),
	})
}

// HandleBotCreate validates input, reserves a plan slot and deploys the bot.
func HandleBotCreate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req createBotRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_payload",
			"message": "could not parse request body",
		})
	}

	bot, err := botService.Create(c.UserContext(), userCtx.UserID, req.Name, req.Code)
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "invalid_payload",
				"message": err.Error(),
			})
		}
		return botErrorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(bot)
}

// HandleBotGet returns a single bot owned by the current user.
func HandleBotGet(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	botID, err := c.ParamsInt("id")
	if err != nil || botID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_payload",
			"message": "invalid bot id",
		})
	}

	bot, err := botService.GetByID(userCtx.UserID, uint(botID))
	if err != nil {
		return botErrorResponse(c, err)
	}

	return c.JSON(bot)
}

// HandleBotStart asks the runner to start the bot process.
func HandleBotStart(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	botID, err := c.ParamsInt("id")
	if err != nil || botID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_payload",
			"message": "invalid bot id",
		})
	}

	if err := botService.Start(c.UserContext(), userCtx.UserID, uint(botID)); err != nil {
		return botErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"status": "running"})
}

// HandleBotStop asks the runner to stop the bot process.
func HandleBotStop(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	botID, err := c.ParamsInt("id")
	if err != nil || botID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_payload",
			"message": "invalid bot id",
		})
	}

	if err := botService.Stop(c.UserContext(), userCtx.UserID, uint(botID)); err != nil {
		return botErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"status": "stopped"})
}

// HandleBotDelete removes the bot record and schedules backend cleanup.
func HandleBotDelete(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	botID, err := c.ParamsInt("id")
	if err != nil || botID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_payload",
			"message": "invalid bot id",
		})
	}

	if err := botService.Delete(c.UserContext(), userCtx.UserID, uint(botID)); err != nil {
		return botErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"ok": true})
}

// HandleBotInfo returns the live runtime state reported by the runner.
func HandleBotInfo(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	botID, err := c.ParamsInt("id")
	if err != nil || botID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_payload",
			"message": "invalid bot id",
		})
	}

	info, err := botService.Info(c.UserContext(), userCtx.UserID, uint(botID))
	if err != nil {
		return botErrorResponse(c, err)
	}

	return c.JSON(info)
}

// HandleBotStats returns resource usage numbers reported by the runner.
func HandleBotStats(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	botID, err := c.ParamsInt("id")
	if err != nil || botID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_payload",
			"message": "invalid bot id",
		})
	}

	stats, err := botService.Stats(c.UserContext(), userCtx.UserID, uint(botID))
	if err != nil {
		return botErrorResponse(c, err)
	}

	return c.JSON(stats)
}

// HandleBotLogs proxies the runner's live log stream to the client as
// server-sent events. Bytes are forwarded unmodified.
func HandleBotLogs(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	botID, err := c.ParamsInt("id")
	if err != nil || botID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_payload",
			"message": "invalid bot id",
		})
	}

	stream, err := botService.Logs(c.UserContext(), userCtx.UserID, uint(botID))
	if err != nil {
		return botErrorResponse(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer stream.Close()

		buf := make([]byte, 4096)
		for {
			n, rerr := stream.Read(buf)
			if n > 0 {
				if _, werr := w.Write(buf[:n]); werr != nil {
					return
				}
				if werr := w.Flush(); werr != nil {
					return
				}
			}
			if rerr != nil {
				if rerr != io.EOF {
					log.Printf("log stream for bot %d ended: %v", botID, rerr)
				}
				return
			}
		}
	}))

	return nil
}

// HandleBotAnalyze collects a log tail and asks the analyzer for a report.
func HandleBotAnalyze(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	botID, err := c.ParamsInt("id")
	if err != nil || botID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_payload",
			"message": "invalid bot id",
		})
	}

	if logAnalyzer == nil || !logAnalyzer.IsConfigured() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "analysis_unavailable",
			"message": "log analysis is not configured",
		})
	}

	bot, err := botService.GetByID(userCtx.UserID, uint(botID))
	if err != nil {
		return botErrorResponse(c, err)
	}

	lines, err := collectLogTail(c.UserContext(), userCtx.UserID, uint(botID), 400)
	if err != nil {
		return botErrorResponse(c, err)
	}
	if len(lines) == 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   "no_logs",
			"message": "no log output available for analysis",
		})
	}

	report, err := logAnalyzer.Analyze(c.UserContext(), bot.Name, lines)
	if err != nil {
		log.Printf("log analysis for bot %d failed: %v", bot.ID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "analysis_failed",
			"message": "log analysis backend returned an error",
		})
	}

	return c.JSON(report)
}

// collectLogTail reads from the live stream for a bounded window and keeps
// the payload of each event line.
func collectLogTail(ctx context.Context, userID, botID uint, maxLines int) ([]string, error) {
	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	stream, err := botService.Logs(readCtx, userID, botID)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var lines []string
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data:") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) > maxLines {
			lines = lines[1:]
		}
		if readCtx.Err() != nil {
			break
		}
	}

	return lines, nil
}

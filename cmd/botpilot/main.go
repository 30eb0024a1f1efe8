package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/BotPilotHQ/botpilot/app/controllers"
	"github.com/BotPilotHQ/botpilot/app/models"
	"github.com/BotPilotHQ/botpilot/app/repository"
	"github.com/BotPilotHQ/botpilot/internal/pkg/botmgr"
	"github.com/BotPilotHQ/botpilot/internal/pkg/botrunner"
	"github.com/BotPilotHQ/botpilot/internal/pkg/cache"
	"github.com/BotPilotHQ/botpilot/internal/pkg/codearchive"
	"github.com/BotPilotHQ/botpilot/internal/pkg/database"
	"github.com/BotPilotHQ/botpilot/internal/pkg/env"
	"github.com/BotPilotHQ/botpilot/internal/pkg/jobqueue"
	"github.com/BotPilotHQ/botpilot/internal/pkg/loganalysis"
	"github.com/BotPilotHQ/botpilot/internal/pkg/mail"
	counter "github.com/BotPilotHQ/botpilot/internal/pkg/metrics/counter"
	"github.com/BotPilotHQ/botpilot/internal/pkg/router"
)

func main() {
	app := NewApplication()

	// Shut the queue manager down before the HTTP server goes away.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		jobqueue.GetManager().Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitGlobalFactory(database.GetDB())

	botService := buildBotService()
	controllers.SetBotService(botService)
	controllers.SetLogAnalyzer(loganalysis.NewAnalyzerFromEnv())

	startJobQueue(botService)

	// Find the project root so docs can be served from a subdirectory too.
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/botpilot to project root
		"../../../", // Fallback
	}
	basePath := "./"
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app
}

func buildBotService() *botmgr.Service {
	runner := botrunner.NewClientFromEnv()

	planFor := func(userID uint) (string, error) {
		settings, err := models.GetOrCreateUserSettings(database.GetDB(), userID)
		if err != nil {
			return "", err
		}
		return settings.Plan, nil
	}

	svc := botmgr.NewService(repository.GetGlobalFactory().GetBotRepository(), runner, planFor)

	svc.OnDeploy = func(botID uint) {
		if err := counter.AddBotDeploy(botID); err != nil {
			log.Printf("deploy counter for bot %d: %v", botID, err)
		}
	}
	svc.OnStart = func(botID uint) {
		if err := counter.AddBotStart(botID); err != nil {
			log.Printf("start counter for bot %d: %v", botID, err)
		}
	}
	svc.EnqueueCleanup = func(botUUID string) {
		if _, err := jobqueue.GetManager().GetQueue().EnqueueRunnerCleanup(botUUID); err != nil {
			log.Printf("enqueue runner cleanup for bot %s: %v", botUUID, err)
		}
	}

	svc.OnCrash = func(bot *models.Bot, lastError string) {
		db := database.GetDB()
		settings, err := models.GetOrCreateUserSettings(db, bot.UserID)
		if err != nil || !settings.NotifyOnCrash {
			return
		}
		var owner models.User
		if err := db.First(&owner, bot.UserID).Error; err != nil {
			return
		}
		go func() {
			if err := mail.SendCrashNotification(owner.Email, owner.Name, bot.Name, lastError); err != nil {
				log.Printf("crash notification for bot %s: %v", bot.UUID, err)
			}
		}()
	}

	if archiveCfg, err := codearchive.LoadConfig(); err == nil && archiveCfg.IsEnabled() {
		if archiveClient, err := codearchive.NewClient(archiveCfg); err == nil {
			svc.Archive = func(ctx context.Context, bot *models.Bot) {
				if _, err := archiveClient.ArchiveBot(ctx, bot); err != nil {
					log.Printf("code archive for bot %s: %v", bot.UUID, err)
				}
			}
			log.Print("code archive enabled")
		} else {
			log.Printf("code archive disabled: %v", err)
		}
	}

	return svc
}

func startJobQueue(svc *botmgr.Service) {
	manager := jobqueue.GetManager()
	manager.GetQueue().SetHandlers(botrunner.NewClientFromEnv(), svc)
	manager.SetReconcileSource(func() ([]string, error) {
		var uuids []string
		err := database.GetDB().
			Model(&models.Bot{}).
			Where("status <> ?", models.BotStatusStopped).
			Pluck("uuid", &uuids).Error
		return uuids, err
	})
	manager.Start()
}

package botmgr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/BotPilotHQ/botpilot/app/models"
	"github.com/BotPilotHQ/botpilot/app/repository"
	"github.com/BotPilotHQ/botpilot/internal/pkg/botrunner"
	"github.com/BotPilotHQ/botpilot/internal/pkg/entitlements"
)

// Gateway is the runner control surface the orchestrator drives. Satisfied
// by *botrunner.Client.
type Gateway interface {
	Deploy(ctx context.Context, botUUID, code string) error
	Start(ctx context.Context, botUUID string) error
	Stop(ctx context.Context, botUUID string) error
	Delete(ctx context.Context, botUUID string) error
	Info(ctx context.Context, botUUID string) (*botrunner.BotInfo, error)
	Stats(ctx context.Context, botUUID string) (*botrunner.BotStats, error)
	Logs(ctx context.Context, botUUID string) (io.ReadCloser, error)
}

// PlanFunc resolves the effective plan name for a user.
type PlanFunc func(userID uint) (string, error)

// Service sequences plan reads, quota checks, runner calls and bot record
// mutation. It is the only component that writes bot records.
type Service struct {
	bots    repository.BotRepository
	runner  Gateway
	planFor PlanFunc

	// Optional hooks, all best-effort and never failing the operation.
	Archive        func(ctx context.Context, bot *models.Bot)
	EnqueueCleanup func(botUUID string)
	OnDeploy       func(botID uint)
	OnStart        func(botID uint)
	// OnCrash fires when a reconcile discovers a bot that left the
	// running state without a user-initiated stop.
	OnCrash func(bot *models.Bot, lastError string)
}

func NewService(bots repository.BotRepository, runner Gateway, planFor PlanFunc) *Service {
	return &Service{
		bots:    bots,
		runner:  runner,
		planFor: planFor,
	}
}

// Create inserts a bot record within the owner's plan quota, deploys it to
// the runner and marks it running. On deploy failure the record is removed
// again, so from the caller's view either a running bot exists or nothing
// does.
func (s *Service) Create(ctx context.Context, ownerID uint, name, code string) (*models.Bot, error) {
	if ownerID == 0 {
		return nil, ErrNotAuthenticated
	}

	plan, err := s.planFor(ownerID)
	if err != nil {
		return nil, fmt.Errorf("resolving plan for user %d: %w", ownerID, err)
	}
	slots := entitlements.SlotsForPlanName(plan)

	bot, err := models.NewBot(ownerID, name, code)
	if err != nil {
		return nil, err
	}

	created, err := s.bots.CreateWithinQuota(bot, slots)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, ErrQuotaExceeded
	}

	if err := s.runner.Deploy(ctx, bot.UUID, bot.Code); err != nil {
		if delErr := s.bots.Delete(bot.ID); delErr != nil {
			log.Printf("[botmgr] failed to roll back bot %s after deploy error: %v", bot.UUID, delErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrDeploymentFailed, err)
	}

	now := time.Now()
	bot.Status = models.BotStatusRunning
	bot.LastDeployedAt = &now
	bot.LastError = ""
	if err := s.bots.Update(bot); err != nil {
		// The remote bot is running but the record write failed. Tear both
		// sides down so the caller's all-or-nothing view still holds.
		log.Printf("[botmgr] failed to persist running status for bot %s, rolling back: %v", bot.UUID, err)
		if delErr := s.bots.Delete(bot.ID); delErr != nil {
			log.Printf("[botmgr] failed to roll back bot %s record: %v", bot.UUID, delErr)
		}
		if runErr := s.runner.Delete(ctx, bot.UUID); runErr != nil {
			log.Printf("[botmgr] runner cleanup for bot %s failed, enqueueing reconcile: %v", bot.UUID, runErr)
			if s.EnqueueCleanup != nil {
				s.EnqueueCleanup(bot.UUID)
			}
		}
		return nil, err
	}

	if s.Archive != nil {
		s.Archive(ctx, bot)
	}
	if s.OnDeploy != nil {
		s.OnDeploy(bot.ID)
	}
	return bot, nil
}

// Start asks the runner to start the bot. The local status is written only
// after the runner acknowledged the call, so a runner failure leaves the
// cached status untouched.
func (s *Service) Start(ctx context.Context, requesterID, botID uint) error {
	bot, err := s.authorizedBot(requesterID, botID)
	if err != nil {
		return err
	}

	if err := s.runner.Start(ctx, bot.UUID); err != nil {
		return err
	}
	if err := s.bots.UpdateStatus(bot.ID, models.BotStatusRunning); err != nil {
		return err
	}
	if s.OnStart != nil {
		s.OnStart(bot.ID)
	}
	return nil
}

// Stop asks the runner to stop the bot and caches the stopped status.
func (s *Service) Stop(ctx context.Context, requesterID, botID uint) error {
	bot, err := s.authorizedBot(requesterID, botID)
	if err != nil {
		return err
	}

	if err := s.runner.Stop(ctx, bot.UUID); err != nil {
		return err
	}
	return s.bots.UpdateStatus(bot.ID, models.BotStatusStopped)
}

// Delete removes the bot record first and then tries to clean up the
// runner side. Runner failures are logged and swallowed; a cleanup job is
// enqueued so the orphaned remote process gets reconciled out-of-band. The
// user can always remove a bot from their account, reachable backend or
// not.
func (s *Service) Delete(ctx context.Context, requesterID, botID uint) error {
	bot, err := s.authorizedBot(requesterID, botID)
	if err != nil {
		return err
	}

	if err := s.bots.Delete(bot.ID); err != nil {
		return err
	}

	if err := s.runner.Delete(ctx, bot.UUID); err != nil {
		log.Printf("[botmgr] runner cleanup for bot %s failed, enqueueing reconcile: %v", bot.UUID, err)
		if s.EnqueueCleanup != nil {
			s.EnqueueCleanup(bot.UUID)
		}
	}
	return nil
}

// GetByID fetches the bot and enforces ownership. A foreign owner gets
// ErrNotAuthorized rather than ErrNotFound.
func (s *Service) GetByID(requesterID, botID uint) (*models.Bot, error) {
	return s.authorizedBot(requesterID, botID)
}

// List returns all bots owned by the user.
func (s *Service) List(ownerID uint) ([]models.Bot, error) {
	if ownerID == 0 {
		return nil, ErrNotAuthenticated
	}
	return s.bots.GetByUserID(ownerID)
}

// Logs opens the runner's SSE log stream for the bot. The caller owns the
// returned stream.
func (s *Service) Logs(ctx context.Context, requesterID, botID uint) (io.ReadCloser, error) {
	bot, err := s.authorizedBot(requesterID, botID)
	if err != nil {
		return nil, err
	}
	return s.runner.Logs(ctx, bot.UUID)
}

// Stats returns the runner's resource usage snapshot for the bot.
func (s *Service) Stats(ctx context.Context, requesterID, botID uint) (*botrunner.BotStats, error) {
	bot, err := s.authorizedBot(requesterID, botID)
	if err != nil {
		return nil, err
	}
	return s.runner.Stats(ctx, bot.UUID)
}

// Info fetches the runner's live view and refreshes the cached status when
// it drifted.
func (s *Service) Info(ctx context.Context, requesterID, botID uint) (*botrunner.BotInfo, error) {
	bot, err := s.authorizedBot(requesterID, botID)
	if err != nil {
		return nil, err
	}

	info, err := s.runner.Info(ctx, bot.UUID)
	if err != nil {
		return nil, err
	}

	if status := runnerStateToStatus(info.State); status != "" && status != bot.Status {
		if err := s.bots.UpdateStatus(bot.ID, status); err != nil {
			log.Printf("[botmgr] failed to refresh cached status for bot %s: %v", bot.UUID, err)
		}
	}
	return info, nil
}

// ReconcileStatus refreshes the cached status of one bot from the runner.
// Used by the background status_reconcile job, which has no requester.
func (s *Service) ReconcileStatus(ctx context.Context, botUUID string) error {
	bot, err := s.bots.GetByUUID(botUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	info, err := s.runner.Info(ctx, bot.UUID)
	if err != nil {
		if errors.Is(err, botrunner.ErrBotUnknown) {
			if uerr := s.bots.UpdateStatus(bot.ID, models.BotStatusError); uerr != nil {
				return uerr
			}
			s.notifyCrash(bot, "bot unknown to runner backend")
			return nil
		}
		return err
	}

	if status := runnerStateToStatus(info.State); status != "" && status != bot.Status {
		if err := s.bots.UpdateStatus(bot.ID, status); err != nil {
			return err
		}
		if status == models.BotStatusError && bot.Status == models.BotStatusRunning {
			s.notifyCrash(bot, info.LastError)
		}
	}
	return nil
}

func (s *Service) notifyCrash(bot *models.Bot, lastError string) {
	if s.OnCrash != nil {
		s.OnCrash(bot, lastError)
	}
}

func (s *Service) authorizedBot(requesterID, botID uint) (*models.Bot, error) {
	if requesterID == 0 {
		return nil, ErrNotAuthenticated
	}

	bot, err := s.bots.GetByID(botID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !bot.IsOwnedBy(requesterID) {
		return nil, ErrNotAuthorized
	}
	return bot, nil
}

func runnerStateToStatus(state string) string {
	switch state {
	case "running":
		return models.BotStatusRunning
	case "stopped":
		return models.BotStatusStopped
	case "error", "crashed":
		return models.BotStatusError
	default:
		return ""
	}
}

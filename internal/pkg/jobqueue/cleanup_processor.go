package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/BotPilotHQ/botpilot/internal/pkg/botrunner"
)

// processRunnerCleanupJob deletes an orphaned bot process from the runner
// backend. The local record is already gone, so a runner that no longer
// knows the bot counts as success.
func (q *Queue) processRunnerCleanupJob(ctx context.Context, job *Job) error {
	if q.cleaner == nil {
		return fmt.Errorf("no runner cleaner configured")
	}

	payload, err := RunnerCleanupJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid runner cleanup payload: %w", err)
	}
	if payload.BotUUID == "" {
		return fmt.Errorf("runner cleanup payload missing bot_uuid")
	}

	if err := q.cleaner.Delete(ctx, payload.BotUUID); err != nil {
		if errors.Is(err, botrunner.ErrBotUnknown) {
			log.Infof("[JobQueue] Bot %s already gone from runner", payload.BotUUID)
			return nil
		}
		return fmt.Errorf("runner cleanup for bot %s: %w", payload.BotUUID, err)
	}

	log.Infof("[JobQueue] Cleaned up orphaned runner process for bot %s", payload.BotUUID)
	return nil
}

package jobqueue

import (
	"context"
	"fmt"
)

// processStatusReconcileJob refreshes one bot's cached status from the
// runner backend.
func (q *Queue) processStatusReconcileJob(ctx context.Context, job *Job) error {
	if q.reconciler == nil {
		return fmt.Errorf("no status reconciler configured")
	}

	payload, err := StatusReconcileJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid status reconcile payload: %w", err)
	}
	if payload.BotUUID == "" {
		return fmt.Errorf("status reconcile payload missing bot_uuid")
	}

	if err := q.reconciler.ReconcileStatus(ctx, payload.BotUUID); err != nil {
		return fmt.Errorf("status reconcile for bot %s: %w", payload.BotUUID, err)
	}
	return nil
}

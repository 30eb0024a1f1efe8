package botmgr

import (
	"errors"

	"github.com/BotPilotHQ/botpilot/internal/pkg/botrunner"
)

var (
	// ErrNotAuthenticated means no caller identity was established.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotAuthorized means the caller is not the bot's owner.
	ErrNotAuthorized = errors.New("not authorized for this bot")

	// ErrQuotaExceeded means the owner's plan has no free bot slot left.
	ErrQuotaExceeded = errors.New("bot slot quota exceeded")

	// ErrDeploymentFailed wraps a runner error that aborted a create. The
	// bot record is already rolled back when this is returned.
	ErrDeploymentFailed = errors.New("bot deployment failed")

	// ErrNotFound means no bot record exists for the given id.
	ErrNotFound = errors.New("bot not found")

	// ErrBackendUnavailable is the runner transport error, re-exported so
	// callers can match it without importing botrunner.
	ErrBackendUnavailable = botrunner.ErrBackendUnavailable
)

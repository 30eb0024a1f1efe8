package botrunner

import "time"

// DeployRequest ships a bot's source to the runner backend. The runner
// addresses bots exclusively by UUID.
type DeployRequest struct {
	BotUUID   string `json:"bot_uuid"`
	Code      string `json:"code"`
	AutoStart bool   `json:"auto_start"`
}

type DeployResponse struct {
	BotUUID    string `json:"bot_uuid"`
	Accepted   bool   `json:"accepted"`
	DetailText string `json:"detail,omitempty"`
}

// BotInfo is the runner's view of a deployed bot.
type BotInfo struct {
	BotUUID    string     `json:"bot_uuid"`
	State      string     `json:"state"`
	DeployedAt *time.Time `json:"deployed_at,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// BotStats carries runtime resource usage reported by the runner.
type BotStats struct {
	BotUUID       string  `json:"bot_uuid"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryBytes   uint64  `json:"memory_bytes"`
	RestartCount  int     `json:"restart_count"`
	UptimeSeconds int64   `json:"uptime_seconds"`
}

type runnerErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

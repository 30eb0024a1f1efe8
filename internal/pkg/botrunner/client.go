package botrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BotPilotHQ/botpilot/internal/pkg/env"
)

var (
	// ErrBackendUnavailable signals that the runner backend could not be
	// reached or answered with a server error. Callers must not flip bot
	// state on this error.
	ErrBackendUnavailable = errors.New("bot runner backend unavailable")

	// ErrNotConfigured is returned when BOT_RUNNER_BASE_URL or
	// BOT_RUNNER_TOKEN is unset and simulation mode is off. The service
	// fails closed instead of sending unauthenticated calls or pretending
	// deployments succeeded.
	ErrNotConfigured = errors.New("bot runner backend is not configured")

	// ErrBotUnknown is returned when the runner has no record of the
	// requested bot UUID.
	ErrBotUnknown = errors.New("bot unknown to runner backend")
)

// Client talks to the bot runner backend over its HTTP control API.
// With Simulate set, every call succeeds locally without any network
// traffic, which keeps development setups working without a runner.
type Client struct {
	BaseURL  string
	Token    string
	Simulate bool

	HTTPClient *http.Client
}

func NewClientFromEnv() *Client {
	return &Client{
		BaseURL:  strings.TrimRight(strings.TrimSpace(env.GetEnv("BOT_RUNNER_BASE_URL", "")), "/"),
		Token:    strings.TrimSpace(env.GetEnv("BOT_RUNNER_TOKEN", "")),
		Simulate: env.GetEnv("BOT_RUNNER_SIMULATE", "false") == "true",
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) configured() bool {
	return strings.TrimSpace(c.BaseURL) != "" && strings.TrimSpace(c.Token) != ""
}

// Deploy ships the bot's code to the runner. The runner starts the bot
// once the code is accepted (auto_start), so a successful deploy means a
// running process.
func (c *Client) Deploy(ctx context.Context, botUUID, code string) error {
	if c.Simulate {
		return nil
	}
	if !c.configured() {
		return ErrNotConfigured
	}

	var out DeployResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/bots/"+botUUID+"/deploy", DeployRequest{BotUUID: botUUID, Code: code, AutoStart: true}, &out); err != nil {
		return err
	}
	if !out.Accepted {
		return fmt.Errorf("runner rejected deployment for bot %s: %s", botUUID, out.DetailText)
	}
	return nil
}

// Start asks the runner to start a previously deployed bot.
func (c *Client) Start(ctx context.Context, botUUID string) error {
	if c.Simulate {
		return nil
	}
	if !c.configured() {
		return ErrNotConfigured
	}
	return c.doJSON(ctx, http.MethodPost, "/v1/bots/"+botUUID+"/start", nil, nil)
}

// Stop asks the runner to stop a running bot. Stopping an already
// stopped bot is a no-op on the runner side.
func (c *Client) Stop(ctx context.Context, botUUID string) error {
	if c.Simulate {
		return nil
	}
	if !c.configured() {
		return ErrNotConfigured
	}
	return c.doJSON(ctx, http.MethodPost, "/v1/bots/"+botUUID+"/stop", nil, nil)
}

// Delete removes the bot and its artifacts from the runner.
func (c *Client) Delete(ctx context.Context, botUUID string) error {
	if c.Simulate {
		return nil
	}
	if !c.configured() {
		return ErrNotConfigured
	}
	return c.doJSON(ctx, http.MethodDelete, "/v1/bots/"+botUUID, nil, nil)
}

// Info fetches the runner's current view of the bot.
func (c *Client) Info(ctx context.Context, botUUID string) (*BotInfo, error) {
	if c.Simulate {
		return &BotInfo{BotUUID: botUUID, State: "stopped"}, nil
	}
	if !c.configured() {
		return nil, ErrNotConfigured
	}

	var out BotInfo
	if err := c.doJSON(ctx, http.MethodGet, "/v1/bots/"+botUUID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats fetches runtime resource usage for a bot.
func (c *Client) Stats(ctx context.Context, botUUID string) (*BotStats, error) {
	if c.Simulate {
		return &BotStats{BotUUID: botUUID}, nil
	}
	if !c.configured() {
		return nil, ErrNotConfigured
	}

	var out BotStats
	if err := c.doJSON(ctx, http.MethodGet, "/v1/bots/"+botUUID+"/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logs opens the runner's SSE log stream for a bot. The caller owns the
// returned body and must close it; the stream stays open until the
// context is cancelled or the runner closes it.
func (c *Client) Logs(ctx context.Context, botUUID string) (io.ReadCloser, error) {
	if c.Simulate {
		return io.NopCloser(strings.NewReader("data: simulation mode, no logs\n\n")), nil
	}
	if !c.configured() {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/bots/"+botUUID+"/logs", nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.errorFromResponse(resp)
	}
	return resp.Body, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	c.authorize(req)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.errorFromResponse(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out)
}

func (c *Client) errorFromResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var apiErr runnerErrorResponse
	detail := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error != "" {
		detail = apiErr.Error
		if apiErr.Detail != "" {
			detail += ": " + apiErr.Detail
		}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrBotUnknown, detail)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status=%d %s", ErrBackendUnavailable, resp.StatusCode, detail)
	default:
		return fmt.Errorf("runner request failed: status=%d %s", resp.StatusCode, detail)
	}
}

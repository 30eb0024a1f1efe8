package loganalysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/BotPilotHQ/botpilot/internal/pkg/env"
)

const (
	defaultModel = "gemini-1.5-flash"

	// maxLogLines caps how much log tail is sent per analysis request.
	maxLogLines = 400
)

var ErrNotConfigured = errors.New("log analysis is not configured (GEMINI_API_KEY unset)")

// Issue is one problem the model spotted in the log tail.
type Issue struct {
	Severity    string `json:"severity" validate:"required,oneof=info warning error critical"`
	Description string `json:"description" validate:"required"`
	LogExcerpt  string `json:"log_excerpt,omitempty"`
}

// AnalysisReport is the structured result returned to the dashboard.
type AnalysisReport struct {
	Summary     string   `json:"summary" validate:"required"`
	Issues      []Issue  `json:"issues" validate:"dive"`
	Suggestions []string `json:"suggestions"`
}

// Analyzer sends bot log tails to Gemini and parses the structured reply.
type Analyzer struct {
	apiKey string
	model  string

	// generate is swapped out in tests.
	generate func(ctx context.Context, prompt string) (string, error)

	validate *validator.Validate
}

func NewAnalyzerFromEnv() *Analyzer {
	a := &Analyzer{
		apiKey:   strings.TrimSpace(env.GetEnv("GEMINI_API_KEY", "")),
		model:    env.GetEnv("GEMINI_MODEL", defaultModel),
		validate: validator.New(),
	}
	a.generate = a.generateWithGemini
	return a
}

// IsConfigured reports whether an API key is present.
func (a *Analyzer) IsConfigured() bool {
	return a.apiKey != ""
}

// Analyze asks the model for a structured report over the given log tail.
func (a *Analyzer) Analyze(ctx context.Context, botName string, logLines []string) (*AnalysisReport, error) {
	if !a.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if len(logLines) == 0 {
		return nil, errors.New("no log lines to analyze")
	}

	raw, err := a.generate(ctx, buildPrompt(botName, logLines))
	if err != nil {
		return nil, fmt.Errorf("log analysis request failed: %w", err)
	}

	report, err := parseReport(raw)
	if err != nil {
		return nil, err
	}
	if err := a.validate.Struct(report); err != nil {
		return nil, fmt.Errorf("model returned an invalid report: %w", err)
	}
	return report, nil
}

func (a *Analyzer) generateWithGemini(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(a.apiKey))
	if err != nil {
		return "", err
	}
	defer client.Close()

	model := client.GenerativeModel(a.model)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("model returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

func buildPrompt(botName string, logLines []string) string {
	if len(logLines) > maxLogLines {
		logLines = logLines[len(logLines)-maxLogLines:]
	}

	var sb strings.Builder
	sb.WriteString("You are analyzing runtime logs of a hosted bot named \"")
	sb.WriteString(botName)
	sb.WriteString("\".\n")
	sb.WriteString("Identify crashes, error loops, misconfiguration and other problems.\n")
	sb.WriteString("Respond with JSON only, matching this schema:\n")
	sb.WriteString(`{"summary": string, "issues": [{"severity": "info"|"warning"|"error"|"critical", "description": string, "log_excerpt": string}], "suggestions": [string]}`)
	sb.WriteString("\n\nLog tail:\n")
	for _, line := range logLines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

func parseReport(raw string) (*AnalysisReport, error) {
	cleaned := strings.TrimSpace(raw)
	// Some models wrap JSON in a markdown fence despite the MIME hint.
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var report AnalysisReport
	if err := json.Unmarshal([]byte(cleaned), &report); err != nil {
		return nil, fmt.Errorf("model returned malformed JSON: %w", err)
	}
	return &report, nil
}

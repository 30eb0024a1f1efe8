package loganalysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAnalyzer(reply string, replyErr error) *Analyzer {
	a := &Analyzer{
		apiKey:   "test-key",
		model:    defaultModel,
		validate: validator.New(),
	}
	a.generate = func(ctx context.Context, prompt string) (string, error) {
		return reply, replyErr
	}
	return a
}

func TestAnalyzeParsesReport(t *testing.T) {
	reply := `{
		"summary": "The bot crashes on startup due to a missing token.",
		"issues": [
			{"severity": "critical", "description": "Missing API token", "log_excerpt": "KeyError: 'TOKEN'"}
		],
		"suggestions": ["Set the TOKEN environment variable."]
	}`

	report, err := testAnalyzer(reply, nil).Analyze(context.Background(), "mybot", []string{"KeyError: 'TOKEN'"})
	require.NoError(t, err)

	assert.Contains(t, report.Summary, "missing token")
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "critical", report.Issues[0].Severity)
	assert.Len(t, report.Suggestions, 1)
}

func TestAnalyzeStripsMarkdownFence(t *testing.T) {
	reply := "```json\n{\"summary\": \"All good.\", \"issues\": [], \"suggestions\": []}\n```"

	report, err := testAnalyzer(reply, nil).Analyze(context.Background(), "mybot", []string{"started"})
	require.NoError(t, err)
	assert.Equal(t, "All good.", report.Summary)
}

func TestAnalyzeRejectsInvalidSeverity(t *testing.T) {
	reply := `{"summary": "x", "issues": [{"severity": "fatal", "description": "y"}]}`

	_, err := testAnalyzer(reply, nil).Analyze(context.Background(), "mybot", []string{"line"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid report")
}

func TestAnalyzeRejectsMalformedJSON(t *testing.T) {
	_, err := testAnalyzer("not json at all", nil).Analyze(context.Background(), "mybot", []string{"line"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed JSON")
}

func TestAnalyzePropagatesRequestError(t *testing.T) {
	boom := errors.New("quota exhausted")
	_, err := testAnalyzer("", boom).Analyze(context.Background(), "mybot", []string{"line"})
	require.ErrorIs(t, err, boom)
}

func TestAnalyzeUnconfigured(t *testing.T) {
	a := &Analyzer{validate: validator.New()}
	_, err := a.Analyze(context.Background(), "mybot", []string{"line"})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestAnalyzeEmptyLog(t *testing.T) {
	_, err := testAnalyzer("{}", nil).Analyze(context.Background(), "mybot", nil)
	require.Error(t, err)
}

func TestBuildPromptCapsLogTail(t *testing.T) {
	lines := make([]string, maxLogLines+50)
	for i := range lines {
		lines[i] = "line"
	}
	lines[len(lines)-1] = "final line"

	prompt := buildPrompt("mybot", lines)

	assert.Equal(t, maxLogLines, strings.Count(prompt, "line\n"))
	assert.Contains(t, prompt, "final line")
	assert.Contains(t, prompt, `"mybot"`)
}

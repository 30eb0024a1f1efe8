package botrunner

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testClient(srv *httptest.Server) *Client {
	return &Client{
		BaseURL:    srv.URL,
		Token:      "runner-token",
		HTTPClient: srv.Client(),
	}
}

func TestDeploy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/bots/uuid-1/deploy" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer runner-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req DeployRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Code != "print('hi')" {
			t.Fatalf("unexpected code payload %q", req.Code)
		}
		_ = json.NewEncoder(w).Encode(DeployResponse{BotUUID: req.BotUUID, Accepted: true})
	}))
	defer srv.Close()

	if err := testClient(srv).Deploy(context.Background(), "uuid-1", "print('hi')"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeployRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(DeployResponse{Accepted: false, DetailText: "syntax error"})
	}))
	defer srv.Close()

	err := testClient(srv).Deploy(context.Background(), "uuid-1", "broken")
	if err == nil {
		t.Fatalf("expected rejection error")
	}
	if !strings.Contains(err.Error(), "syntax error") {
		t.Fatalf("expected runner detail in error, got %v", err)
	}
}

func TestServerErrorMapsToBackendUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(runnerErrorResponse{Error: "upstream down"})
	}))
	defer srv.Close()

	err := testClient(srv).Start(context.Background(), "uuid-1")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestUnknownBotMapsToErrBotUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(runnerErrorResponse{Error: "no such bot"})
	}))
	defer srv.Close()

	_, err := testClient(srv).Info(context.Background(), "uuid-missing")
	if !errors.Is(err, ErrBotUnknown) {
		t.Fatalf("expected ErrBotUnknown, got %v", err)
	}
}

func TestUnreachableBackend(t *testing.T) {
	client := &Client{
		BaseURL:    "http://127.0.0.1:1",
		Token:      "runner-token",
		HTTPClient: http.DefaultClient,
	}
	if err := client.Stop(context.Background(), "uuid-1"); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestUnconfiguredFailsClosed(t *testing.T) {
	client := &Client{HTTPClient: http.DefaultClient}

	if err := client.Deploy(context.Background(), "uuid-1", "code"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := client.Stats(context.Background(), "uuid-1"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestMissingCredentialFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("request reached the backend without a credential: %s %s", r.Method, r.URL.Path)
	}))
	defer srv.Close()

	client := &Client{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	}

	if err := client.Deploy(context.Background(), "uuid-1", "code"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if err := client.Start(context.Background(), "uuid-1"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := client.Logs(context.Background(), "uuid-1"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSimulationMode(t *testing.T) {
	client := &Client{Simulate: true}

	if err := client.Deploy(context.Background(), "uuid-1", "code"); err != nil {
		t.Fatalf("simulated deploy failed: %v", err)
	}
	if err := client.Start(context.Background(), "uuid-1"); err != nil {
		t.Fatalf("simulated start failed: %v", err)
	}
	info, err := client.Info(context.Background(), "uuid-1")
	if err != nil {
		t.Fatalf("simulated info failed: %v", err)
	}
	if info.State != "stopped" {
		t.Fatalf("unexpected simulated state %q", info.State)
	}
}

func TestLogsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Fatalf("expected SSE accept header")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: line one\n\ndata: line two\n\n"))
	}))
	defer srv.Close()

	body, err := testClient(srv).Logs(context.Background(), "uuid-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	var lines []string
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) != 2 || lines[0] != "data: line one" {
		t.Fatalf("unexpected stream contents: %v", lines)
	}
}

func TestStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(BotStats{BotUUID: "uuid-1", CPUPercent: 3.5, MemoryBytes: 1024, UptimeSeconds: 60})
	}))
	defer srv.Close()

	stats, err := testClient(srv).Stats(context.Background(), "uuid-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.CPUPercent != 3.5 || stats.MemoryBytes != 1024 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

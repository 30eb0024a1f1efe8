package models

import (
	"strings"
	"testing"
)

func TestIssueAPIKey(t *testing.T) {
	us := &UserSettings{UserID: 1}

	raw, err := us.IssueAPIKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(raw, "bp_") {
		t.Fatalf("expected bp_ prefix, got %q", raw)
	}
	if us.APIKeyHash != HashAPIKey(raw) {
		t.Fatalf("stored hash does not match issued key")
	}
	if us.APIKeyPrefix != raw[:16] {
		t.Fatalf("stored prefix %q does not match key", us.APIKeyPrefix)
	}
	if !us.HasActiveAPIKey() {
		t.Fatalf("expected active api key after issue")
	}
}

func TestRevokeAPIKey(t *testing.T) {
	us := &UserSettings{UserID: 1}
	if _, err := us.IssueAPIKey(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	us.RevokeAPIKey()
	if us.HasActiveAPIKey() {
		t.Fatalf("expected no active api key after revoke")
	}
	if us.APIKeyHash != "" || us.APIKeyPrefix != "" {
		t.Fatalf("expected key material to be cleared")
	}
	if us.APIKeyRevokedAt == nil {
		t.Fatalf("expected revoked timestamp to be set")
	}
}

func TestHashAPIKeyTrimsWhitespace(t *testing.T) {
	if HashAPIKey(" bp_abc ") != HashAPIKey("bp_abc") {
		t.Fatalf("expected surrounding whitespace to be ignored")
	}
}

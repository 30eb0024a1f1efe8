package codearchive

import "testing"

func TestGetObjectKey(t *testing.T) {
	cfg := &Config{BucketName: "botpilot-archive"}

	key := cfg.GetObjectKey("abc-123", 2026, 8, 1756425600)
	want := "bots/2026/08/abc-123/1756425600.txt"
	if key != want {
		t.Fatalf("GetObjectKey = %q, want %q", key, want)
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := &Config{Enabled: false}
	if cfg.IsEnabled() {
		t.Fatalf("expected disabled config")
	}
}

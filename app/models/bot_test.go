package models

import "testing"

func TestNewBot(t *testing.T) {
	b, err := NewBot(7, "price-watcher", "print('hi')")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Status != BotStatusStopped {
		t.Fatalf("new bot should start stopped, got %q", b.Status)
	}
	if b.UUID == "" {
		t.Fatalf("expected uuid to be assigned")
	}
	if !b.IsOwnedBy(7) || b.IsOwnedBy(8) {
		t.Fatalf("ownership check broken")
	}
}

func TestNewBotRejectsEmptyFields(t *testing.T) {
	if _, err := NewBot(7, "", "code"); err == nil {
		t.Fatalf("expected validation error for empty name")
	}
	if _, err := NewBot(7, "name", ""); err == nil {
		t.Fatalf("expected validation error for empty code")
	}
}

func TestBotIsRunning(t *testing.T) {
	b := &Bot{Status: BotStatusRunning}
	if !b.IsRunning() {
		t.Fatalf("expected running")
	}
	b.Status = BotStatusError
	if b.IsRunning() {
		t.Fatalf("error status must not count as running")
	}
}

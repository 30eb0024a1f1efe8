package entitlements

import "testing"

func TestBotSlots(t *testing.T) {
	tests := []struct {
		plan Plan
		want int
	}{
		{plan: PlanFree, want: 1},
		{plan: PlanPro, want: 5},
		{plan: PlanPower, want: 20},
		{plan: Plan("enterprise"), want: 1},
	}

	for _, tt := range tests {
		if got := BotSlots(tt.plan); got != tt.want {
			t.Fatalf("BotSlots(%q) = %d, want %d", tt.plan, got, tt.want)
		}
	}
}

func TestSlotsForPlanName(t *testing.T) {
	if got := SlotsForPlanName("  PRO "); got != 5 {
		t.Fatalf("expected normalized pro to get 5 slots, got %d", got)
	}
	if got := SlotsForPlanName("something-else"); got != 1 {
		t.Fatalf("unknown plan must fall back to free quota, got %d", got)
	}
}

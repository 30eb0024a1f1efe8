package entitlements

import "strings"

type Plan string

const (
	PlanFree  Plan = "free"
	PlanPro   Plan = "pro"
	PlanPower Plan = "power"
)

// BotSlots returns how many bots a plan may run concurrently. Unknown plan
// names fall back to the free quota (fail-safe, not fail-open).
func BotSlots(plan Plan) int {
	switch plan {
	case PlanPower:
		return 20
	case PlanPro:
		return 5
	default:
		return 1
	}
}

// Normalize maps an arbitrary plan string to a known Plan, defaulting to free.
func Normalize(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanPro):
		return PlanPro
	case string(PlanPower):
		return PlanPower
	default:
		return PlanFree
	}
}

// SlotsForPlanName is the string-typed convenience used by quota checks.
func SlotsForPlanName(plan string) int {
	return BotSlots(Normalize(plan))
}

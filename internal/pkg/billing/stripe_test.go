package billing

import (
	"encoding/json"
	"testing"

	"github.com/stripe/stripe-go/v82"

	"github.com/BotPilotHQ/botpilot/app/models"
)

func TestStripeStatusToBillingStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "active", want: models.BillingStatusActive},
		{in: "trialing", want: models.BillingStatusTrialing},
		{in: "past_due", want: models.BillingStatusPastDue},
		{in: "canceled", want: models.BillingStatusCanceled},
		{in: "paused", want: models.BillingStatusPaused},
		{in: "weird", want: models.BillingStatusIncomplete},
	}

	for _, tt := range tests {
		if got := StripeStatusToBillingStatus(tt.in); got != tt.want {
			t.Fatalf("StripeStatusToBillingStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsStripeSubscriptionEvent(t *testing.T) {
	for _, et := range []string{StripeEventSubscriptionCreated, StripeEventSubscriptionUpdated, StripeEventSubscriptionDeleted} {
		if !IsStripeSubscriptionEvent(et) {
			t.Fatalf("expected %q to be handled", et)
		}
	}
	if IsStripeSubscriptionEvent("invoice.paid") {
		t.Fatalf("invoice events are not subscription events")
	}
}

func TestParseStripeSubscriptionEvent(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "sub_123",
		"status": "active",
		"cancel_at_period_end": true,
		"customer": {"id": "cus_456"},
		"metadata": {"user_id": "42"},
		"items": {
			"data": [{
				"current_period_start": 1756339200,
				"current_period_end": 1758931200,
				"price": {"id": "price_pro_month", "recurring": {"interval": "month"}}
			}]
		}
	}`)

	ev, err := ParseStripeSubscriptionEvent(stripe.Event{
		Type: StripeEventSubscriptionUpdated,
		Data: &stripe.EventData{Raw: raw},
	})
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.SubscriptionID != "sub_123" || ev.CustomerID != "cus_456" {
		t.Fatalf("unexpected ids: sub=%q cus=%q", ev.SubscriptionID, ev.CustomerID)
	}
	if ev.UserID != 42 {
		t.Fatalf("expected metadata user_id 42, got %d", ev.UserID)
	}
	if ev.PriceID != "price_pro_month" || ev.Interval != "month" {
		t.Fatalf("unexpected plan ref: price=%q interval=%q", ev.PriceID, ev.Interval)
	}
	if !ev.CancelAtPeriodEnd {
		t.Fatalf("expected cancel_at_period_end to carry over")
	}
	if ev.Status != models.BillingStatusActive {
		t.Fatalf("unexpected status %q", ev.Status)
	}
	if ev.CurrentPeriodStart == nil || ev.CurrentPeriodEnd == nil {
		t.Fatalf("expected period timestamps to be set")
	}
}

func TestParseStripeSubscriptionEvent_MissingID(t *testing.T) {
	_, err := ParseStripeSubscriptionEvent(stripe.Event{
		Type: StripeEventSubscriptionCreated,
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	})
	if err == nil {
		t.Fatalf("expected error for payload without subscription id")
	}
}

func TestVerifyStripeEvent_NoSecret(t *testing.T) {
	if _, err := VerifyStripeEvent([]byte(`{}`), "sig", ""); err == nil {
		t.Fatalf("expected error when webhook secret is unset")
	}
}

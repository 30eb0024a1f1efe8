package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BotPilotHQ/botpilot/app/models"
)

func TestPayPalStatusToBillingStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "ACTIVE", want: models.BillingStatusActive},
		{in: "SUSPENDED", want: models.BillingStatusPaused},
		{in: "CANCELLED", want: models.BillingStatusCanceled},
		{in: "EXPIRED", want: models.BillingStatusExpired},
		{in: "something_else", want: models.BillingStatusIncomplete},
	}

	for _, tt := range tests {
		if got := PayPalStatusToBillingStatus(tt.in); got != tt.want {
			t.Fatalf("PayPalStatusToBillingStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParsePayPalSubscriptionEvent(t *testing.T) {
	raw := []byte(`{
		"id": "WH-55TG7562XN2588878-8YH955435R661687G",
		"event_type": "BILLING.SUBSCRIPTION.ACTIVATED",
		"resource_type": "subscription",
		"resource": {
			"id": "I-BW452GLLEP1G",
			"plan_id": "P-5ML4271244454362WXNWU5NQ",
			"custom_id": "42",
			"status": "ACTIVE",
			"subscriber": { "payer_id": "PAYER123" },
			"billing_info": { "next_billing_time": "2026-09-01T10:00:00Z" }
		}
	}`)

	ev, err := ParsePayPalSubscriptionEvent(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.SubscriptionID != "I-BW452GLLEP1G" {
		t.Fatalf("unexpected subscription id %q", ev.SubscriptionID)
	}
	if ev.PlanID != "P-5ML4271244454362WXNWU5NQ" {
		t.Fatalf("unexpected plan id %q", ev.PlanID)
	}
	if ev.UserID != 42 {
		t.Fatalf("expected custom_id to resolve to user 42, got %d", ev.UserID)
	}
	if ev.Status != models.BillingStatusActive {
		t.Fatalf("unexpected status %q", ev.Status)
	}
	if ev.NextBillingAt == nil || !ev.NextBillingAt.Equal(time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next billing time %v", ev.NextBillingAt)
	}
}

func TestParsePayPalSubscriptionEvent_MissingID(t *testing.T) {
	if _, err := ParsePayPalSubscriptionEvent([]byte(`{"event_type":"BILLING.SUBSCRIPTION.ACTIVATED","resource":{}}`)); err == nil {
		t.Fatalf("expected error for payload without subscription id")
	}
}

func TestIsPayPalDeactivationEvent(t *testing.T) {
	for _, et := range []string{PayPalEventSubscriptionCancelled, PayPalEventSubscriptionExpired, PayPalEventSubscriptionSuspended} {
		if !IsPayPalDeactivationEvent(et) {
			t.Fatalf("expected %q to deactivate", et)
		}
	}
	if IsPayPalDeactivationEvent(PayPalEventSubscriptionActivated) {
		t.Fatalf("activation must not deactivate")
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "token-abc", "expires_in": 300})
		case "/v1/notifications/verify-webhook-signature":
			if r.Header.Get("Authorization") != "Bearer token-abc" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			var req map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req["webhook_id"] != "wh-1" {
				_ = json.NewEncoder(w).Encode(map[string]string{"verification_status": "FAILURE"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"verification_status": "SUCCESS"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := &PayPalClient{
		ClientID:     "id",
		ClientSecret: "secret",
		WebhookID:    "wh-1",
		APIBaseURL:   srv.URL,
		HTTPClient:   srv.Client(),
	}

	headers := PayPalWebhookHeaders{
		TransmissionID:   "t-1",
		TransmissionTime: "2026-08-29T00:00:00Z",
		TransmissionSig:  "sig",
		CertURL:          "https://api.paypal.com/cert",
		AuthAlgo:         "SHA256withRSA",
	}

	ok, err := client.VerifyWebhookSignature(context.Background(), headers, []byte(`{"id":"WH-1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected signature to verify")
	}

	// Missing transmission headers short-circuit to invalid, no API call.
	ok, err = client.VerifyWebhookSignature(context.Background(), PayPalWebhookHeaders{}, []byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected missing headers to fail verification")
	}
}

package billing

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/BotPilotHQ/botpilot/app/models"
)

// Stripe event types handled by the reconciler. Everything else is recorded
// and acknowledged without a state change.
const (
	StripeEventSubscriptionCreated = "customer.subscription.created"
	StripeEventSubscriptionUpdated = "customer.subscription.updated"
	StripeEventSubscriptionDeleted = "customer.subscription.deleted"
)

// StripeSubscriptionEvent is the normalized view of a Stripe subscription
// webhook payload.
type StripeSubscriptionEvent struct {
	SubscriptionID     string
	CustomerID         string
	PriceID            string
	Interval           string
	Status             string
	CancelAtPeriodEnd  bool
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	UserID             uint
}

// VerifyStripeEvent checks the Stripe-Signature header against the raw body
// and returns the parsed event.
func VerifyStripeEvent(payload []byte, signatureHeader, webhookSecret string) (stripe.Event, error) {
	if strings.TrimSpace(webhookSecret) == "" {
		return stripe.Event{}, errors.New("STRIPE_WEBHOOK_SECRET is not configured")
	}
	return webhook.ConstructEvent(payload, signatureHeader, webhookSecret)
}

// IsStripeSubscriptionEvent reports whether the event type carries
// subscription state this service reconciles.
func IsStripeSubscriptionEvent(eventType string) bool {
	switch eventType {
	case StripeEventSubscriptionCreated, StripeEventSubscriptionUpdated, StripeEventSubscriptionDeleted:
		return true
	default:
		return false
	}
}

// ParseStripeSubscriptionEvent extracts subscription identity and plan data
// from a verified event. The owning user id travels in the subscription
// metadata written at checkout time; a missing metadata entry yields
// UserID 0 and the caller falls back to the stored subscription row.
func ParseStripeSubscriptionEvent(event stripe.Event) (*StripeSubscriptionEvent, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, errors.New("stripe event payload missing subscription id")
	}

	out := &StripeSubscriptionEvent{
		SubscriptionID:    sub.ID,
		Status:            StripeStatusToBillingStatus(string(sub.Status)),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if uid := strings.TrimSpace(sub.Metadata["user_id"]); uid != "" {
		var parsed uint64
		if err := json.Unmarshal([]byte(uid), &parsed); err == nil {
			out.UserID = uint(parsed)
		}
	}

	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			out.PriceID = item.Price.ID
			if item.Price.Recurring != nil {
				out.Interval = string(item.Price.Recurring.Interval)
			}
		}
		if item.CurrentPeriodStart > 0 {
			t := time.Unix(item.CurrentPeriodStart, 0).UTC()
			out.CurrentPeriodStart = &t
		}
		if item.CurrentPeriodEnd > 0 {
			t := time.Unix(item.CurrentPeriodEnd, 0).UTC()
			out.CurrentPeriodEnd = &t
		}
	}

	return out, nil
}

// StripeStatusToBillingStatus maps Stripe subscription statuses onto the
// local billing status vocabulary.
func StripeStatusToBillingStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active":
		return models.BillingStatusActive
	case "trialing":
		return models.BillingStatusTrialing
	case "past_due":
		return models.BillingStatusPastDue
	case "canceled", "unpaid":
		return models.BillingStatusCanceled
	case "incomplete", "incomplete_expired":
		return models.BillingStatusIncomplete
	case "paused":
		return models.BillingStatusPaused
	default:
		return models.BillingStatusIncomplete
	}
}

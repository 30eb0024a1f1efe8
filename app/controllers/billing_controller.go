package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/BotPilotHQ/botpilot/app/models"
	"github.com/BotPilotHQ/botpilot/internal/pkg/billing"
	"github.com/BotPilotHQ/botpilot/internal/pkg/database"
	"github.com/BotPilotHQ/botpilot/internal/pkg/env"
	"github.com/BotPilotHQ/botpilot/internal/pkg/session"
	"github.com/BotPilotHQ/botpilot/internal/pkg/usercontext"
)

// HandleStripeWebhook ingests Stripe subscription lifecycle events.
// Every delivery is persisted before any state change so retries and
// duplicate deliveries stay idempotent.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	event, verifyErr := billing.VerifyStripeEvent(rawBody, signature, secret)
	signatureValid := verifyErr == nil

	eventID := ""
	eventType := ""
	if signatureValid {
		eventID = event.ID
		eventType = string(event.Type)
	}

	created, stored, err := svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		// A duplicate of an unverified delivery was never applied; answer
		// non-2xx so the provider keeps retrying.
		if !stored.SignatureValid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if !signatureValid {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, errors.New("invalid webhook signature"))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}
	if !billing.IsStripeSubscriptionEvent(eventType) {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, nil)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	subEvent, err := billing.ParseStripeSubscriptionEvent(event)
	if err != nil {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	if eventType == billing.StripeEventSubscriptionDeleted {
		found, _, deactivateErr := svc.DeactivateSubscription(ctx, models.BillingProviderStripe, subEvent.SubscriptionID, models.BillingStatusCanceled)
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, deactivateErr)
		if deactivateErr != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_sync_failed"})
		}
		if !found {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}

	userID := subEvent.UserID
	if userID == 0 {
		// Checkout metadata missing; fall back to the stored subscription row.
		userID = lookupSubscriptionUser(models.BillingProviderStripe, subEvent.SubscriptionID)
	}
	if userID == 0 {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, errors.New("no local user for stripe subscription"))
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	_, _, syncErr := svc.SyncSubscription(ctx, billing.NormalizedSubscription{
		UserID:                 userID,
		Provider:               models.BillingProviderStripe,
		ProviderSubscriptionID: subEvent.SubscriptionID,
		ProviderCustomerID:     subEvent.CustomerID,
		ProviderPlanRef:        subEvent.PriceID,
		BillingInterval:        subEvent.Interval,
		Status:                 subEvent.Status,
		CurrentPeriodStart:     subEvent.CurrentPeriodStart,
		CurrentPeriodEnd:       subEvent.CurrentPeriodEnd,
		CancelAtPeriodEnd:      subEvent.CancelAtPeriodEnd,
		RawPayloadJSON:         string(rawBody),
	})
	_ = svc.MarkWebhookProcessed(ctx, stored.ID, syncErr)
	if syncErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_sync_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandlePayPalWebhook ingests PayPal billing subscription events. The
// signature is verified against PayPal's verification endpoint, so an
// unreachable PayPal API yields an invalid signature.
func HandlePayPalWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	headers := billing.PayPalWebhookHeaders{
		TransmissionID:   strings.TrimSpace(c.Get("Paypal-Transmission-Id")),
		TransmissionTime: strings.TrimSpace(c.Get("Paypal-Transmission-Time")),
		TransmissionSig:  strings.TrimSpace(c.Get("Paypal-Transmission-Sig")),
		CertURL:          strings.TrimSpace(c.Get("Paypal-Cert-Url")),
		AuthAlgo:         strings.TrimSpace(c.Get("Paypal-Auth-Algo")),
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := billing.NewPayPalClientFromEnv()
	signatureValid, _ := client.VerifyWebhookSignature(ctx, headers, rawBody)

	// Minimal probe so invalid payloads still get recorded with a type.
	var probe struct {
		ID        string `json:"id"`
		EventType string `json:"event_type"`
	}
	_ = json.Unmarshal(rawBody, &probe)

	created, stored, err := svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.BillingProviderPayPal,
		ProviderEventID: probe.ID,
		EventType:       probe.EventType,
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		// A duplicate of an unverified delivery was never applied; answer
		// non-2xx so the provider keeps retrying.
		if !stored.SignatureValid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if !signatureValid {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, errors.New("invalid webhook signature"))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}
	if !billing.IsPayPalSubscriptionEvent(probe.EventType) {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, nil)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	subEvent, err := billing.ParsePayPalSubscriptionEvent(rawBody)
	if err != nil {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	if billing.IsPayPalDeactivationEvent(subEvent.EventType) {
		found, _, deactivateErr := svc.DeactivateSubscription(ctx, models.BillingProviderPayPal, subEvent.SubscriptionID, billing.DeactivationStatusForEvent(subEvent.EventType))
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, deactivateErr)
		if deactivateErr != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_sync_failed"})
		}
		if !found {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}

	userID := subEvent.UserID
	if userID == 0 {
		// custom_id missing; fall back to the stored subscription row.
		userID = lookupSubscriptionUser(models.BillingProviderPayPal, subEvent.SubscriptionID)
	}
	if userID == 0 {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, errors.New("no local user for paypal subscription"))
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	_, _, syncErr := svc.SyncSubscription(ctx, billing.NormalizedSubscription{
		UserID:                 userID,
		Provider:               models.BillingProviderPayPal,
		ProviderSubscriptionID: subEvent.SubscriptionID,
		ProviderCustomerID:     subEvent.PayerID,
		ProviderPlanRef:        subEvent.PlanID,
		BillingInterval:        models.BillingIntervalUnknown,
		Status:                 billing.PayPalStatusToBillingStatus(subEvent.Status),
		CurrentPeriodEnd:       subEvent.NextBillingAt,
		RawPayloadJSON:         string(rawBody),
	})
	_ = svc.MarkWebhookProcessed(ctx, stored.ID, syncErr)
	if syncErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_sync_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleUserBillingResync recomputes the effective plan from stored
// subscriptions without waiting for the next webhook.
func HandleUserBillingResync(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	effectivePlan, err := svc.ReconcileUserPlan(ctx, userCtx.UserID)
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Plan re-sync failed"}).Redirect("/user/settings")
	}

	_ = session.SetSessionValue(c, "user_plan", effectivePlan)
	msg := fmt.Sprintf("Plan recalculated. Active plan: %s", effectivePlan)
	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": msg}).Redirect("/user/settings")
}

// lookupSubscriptionUser resolves the owning user from an already stored
// subscription row; returns 0 when the subscription is unknown.
func lookupSubscriptionUser(provider, providerSubscriptionID string) uint {
	if strings.TrimSpace(providerSubscriptionID) == "" {
		return 0
	}
	var sub models.BillingSubscription
	err := database.GetDB().
		Where("provider = ? AND provider_subscription_id = ?", provider, providerSubscriptionID).
		First(&sub).Error
	if err != nil {
		return 0
	}
	return sub.UserID
}

package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BotPilotHQ/botpilot/app/models"
	"github.com/BotPilotHQ/botpilot/internal/pkg/env"
)

const (
	defaultPayPalAPIBaseURL = "https://api-m.paypal.com"
	paypalSandboxAPIBaseURL = "https://api-m.sandbox.paypal.com"
)

// PayPal webhook event types handled by the reconciler.
const (
	PayPalEventSubscriptionActivated = "BILLING.SUBSCRIPTION.ACTIVATED"
	PayPalEventSubscriptionUpdated   = "BILLING.SUBSCRIPTION.UPDATED"
	PayPalEventSubscriptionCancelled = "BILLING.SUBSCRIPTION.CANCELLED"
	PayPalEventSubscriptionSuspended = "BILLING.SUBSCRIPTION.SUSPENDED"
	PayPalEventSubscriptionExpired   = "BILLING.SUBSCRIPTION.EXPIRED"
)

type PayPalClient struct {
	ClientID     string
	ClientSecret string
	WebhookID    string

	APIBaseURL string

	HTTPClient *http.Client
}

type PayPalTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// PayPalWebhookHeaders carries the transmission headers PayPal signs.
type PayPalWebhookHeaders struct {
	TransmissionID   string
	TransmissionTime string
	TransmissionSig  string
	CertURL          string
	AuthAlgo         string
}

// PayPalSubscriptionEvent is the normalized view of a billing subscription
// webhook payload.
type PayPalSubscriptionEvent struct {
	EventID        string
	EventType      string
	SubscriptionID string
	PlanID         string
	PayerID        string
	Status         string
	UserID         uint
	NextBillingAt  *time.Time
}

func NewPayPalClientFromEnv() *PayPalClient {
	base := strings.TrimRight(env.GetEnv("PAYPAL_API_BASE_URL", ""), "/")
	if base == "" {
		if env.GetEnv("PAYPAL_MODE", "live") == "sandbox" {
			base = paypalSandboxAPIBaseURL
		} else {
			base = defaultPayPalAPIBaseURL
		}
	}

	return &PayPalClient{
		ClientID:     strings.TrimSpace(env.GetEnv("PAYPAL_CLIENT_ID", "")),
		ClientSecret: strings.TrimSpace(env.GetEnv("PAYPAL_CLIENT_SECRET", "")),
		WebhookID:    strings.TrimSpace(env.GetEnv("PAYPAL_WEBHOOK_ID", "")),
		APIBaseURL:   base,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetAccessToken performs the client-credentials exchange.
func (c *PayPalClient) GetAccessToken(ctx context.Context) (*PayPalTokenResponse, error) {
	if strings.TrimSpace(c.ClientID) == "" || strings.TrimSpace(c.ClientSecret) == "" {
		return nil, errors.New("PAYPAL_CLIENT_ID/PAYPAL_CLIENT_SECRET are not configured")
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.ClientID, c.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("paypal token exchange failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out PayPalTokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return nil, errors.New("paypal token exchange returned empty access_token")
	}
	return &out, nil
}

// VerifyWebhookSignature calls PayPal's verify-webhook-signature endpoint
// with the transmission headers and the raw event body. PayPal performs the
// cryptographic check server-side; anything but SUCCESS is treated as an
// invalid signature.
func (c *PayPalClient) VerifyWebhookSignature(ctx context.Context, headers PayPalWebhookHeaders, rawEvent []byte) (bool, error) {
	if strings.TrimSpace(c.WebhookID) == "" {
		return false, errors.New("PAYPAL_WEBHOOK_ID is not configured")
	}
	if headers.TransmissionID == "" || headers.TransmissionSig == "" || headers.CertURL == "" {
		return false, nil
	}

	token, err := c.GetAccessToken(ctx)
	if err != nil {
		return false, err
	}

	reqBody := map[string]interface{}{
		"transmission_id":   headers.TransmissionID,
		"transmission_time": headers.TransmissionTime,
		"transmission_sig":  headers.TransmissionSig,
		"cert_url":          headers.CertURL,
		"auth_algo":         headers.AuthAlgo,
		"webhook_id":        c.WebhookID,
		"webhook_event":     json.RawMessage(rawEvent),
	}
	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/v1/notifications/verify-webhook-signature", bytes.NewReader(encoded))
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("paypal signature verification failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return false, err
	}
	return strings.EqualFold(out.VerificationStatus, "SUCCESS"), nil
}

// ParsePayPalSubscriptionEvent extracts subscription identity from a webhook
// payload. The owning user id travels in the subscription's custom_id,
// written when the checkout was created; UserID is 0 when absent.
func ParsePayPalSubscriptionEvent(payload []byte) (*PayPalSubscriptionEvent, error) {
	var raw struct {
		ID           string `json:"id"`
		EventType    string `json:"event_type"`
		ResourceType string `json:"resource_type"`
		Resource     struct {
			ID          string `json:"id"`
			PlanID      string `json:"plan_id"`
			CustomID    string `json:"custom_id"`
			Status      string `json:"status"`
			Subscriber  struct {
				PayerID string `json:"payer_id"`
			} `json:"subscriber"`
			BillingInfo struct {
				NextBillingTime string `json:"next_billing_time"`
			} `json:"billing_info"`
		} `json:"resource"`
	}

	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	if raw.ResourceType != "" && !strings.EqualFold(raw.ResourceType, "subscription") {
		return nil, fmt.Errorf("unsupported paypal resource type: %s", raw.ResourceType)
	}
	if strings.TrimSpace(raw.Resource.ID) == "" {
		return nil, errors.New("paypal webhook payload missing subscription id")
	}

	out := &PayPalSubscriptionEvent{
		EventID:        strings.TrimSpace(raw.ID),
		EventType:      strings.TrimSpace(raw.EventType),
		SubscriptionID: strings.TrimSpace(raw.Resource.ID),
		PlanID:         strings.TrimSpace(raw.Resource.PlanID),
		PayerID:        strings.TrimSpace(raw.Resource.Subscriber.PayerID),
		Status:         PayPalStatusToBillingStatus(raw.Resource.Status),
	}
	if uid := strings.TrimSpace(raw.Resource.CustomID); uid != "" {
		if parsed, err := strconv.ParseUint(uid, 10, 32); err == nil {
			out.UserID = uint(parsed)
		}
	}
	if raw.Resource.BillingInfo.NextBillingTime != "" {
		if t, err := time.Parse(time.RFC3339, raw.Resource.BillingInfo.NextBillingTime); err == nil {
			tu := t.UTC()
			out.NextBillingAt = &tu
		}
	}
	return out, nil
}

// IsPayPalSubscriptionEvent reports whether the event type carries
// subscription state this service reconciles.
func IsPayPalSubscriptionEvent(eventType string) bool {
	switch strings.ToUpper(strings.TrimSpace(eventType)) {
	case PayPalEventSubscriptionActivated,
		PayPalEventSubscriptionUpdated,
		PayPalEventSubscriptionCancelled,
		PayPalEventSubscriptionSuspended,
		PayPalEventSubscriptionExpired:
		return true
	default:
		return false
	}
}

// IsPayPalDeactivationEvent reports whether the event ends entitlement.
func IsPayPalDeactivationEvent(eventType string) bool {
	switch strings.ToUpper(strings.TrimSpace(eventType)) {
	case PayPalEventSubscriptionCancelled,
		PayPalEventSubscriptionSuspended,
		PayPalEventSubscriptionExpired:
		return true
	default:
		return false
	}
}

// PayPalStatusToBillingStatus maps PayPal subscription statuses onto the
// local billing status vocabulary.
func PayPalStatusToBillingStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "ACTIVE":
		return models.BillingStatusActive
	case "APPROVAL_PENDING", "APPROVED":
		return models.BillingStatusIncomplete
	case "SUSPENDED":
		return models.BillingStatusPaused
	case "CANCELLED":
		return models.BillingStatusCanceled
	case "EXPIRED":
		return models.BillingStatusExpired
	default:
		return models.BillingStatusIncomplete
	}
}

// DeactivationStatusForEvent maps a deactivation event type to the status
// stored on the local subscription row.
func DeactivationStatusForEvent(eventType string) string {
	switch strings.ToUpper(strings.TrimSpace(eventType)) {
	case PayPalEventSubscriptionExpired:
		return models.BillingStatusExpired
	case PayPalEventSubscriptionSuspended:
		return models.BillingStatusPaused
	default:
		return models.BillingStatusCanceled
	}
}

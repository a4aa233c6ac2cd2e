package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"able-backend/internal/domain"
	"able-backend/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookHandler consumes Stripe events as the independent detection side of
// settlement reconciliation: a succeeded charge that no COMPLETED local
// payment accounts for becomes an unmatched_charge event for ops to resolve.
type WebhookHandler struct {
	DB            *gorm.DB
	Recon         store.ReconciliationStore
	WebhookSecret string
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type paymentIntentObject struct {
	ID             string            `json:"id"`
	AmountReceived int               `json:"amount_received"`
	Currency       string            `json:"currency"`
	Status         string            `json:"status"`
	Metadata       map[string]string `json:"metadata"`
}

// HandleWebhook POST /api/v1/stripe/webhook — raw body, signature verification, then process.
func (wh *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	rawBody := c.BodyRaw()
	// Stripe sends "Stripe-Signature"; Fiber's Get is case-insensitive
	sig := c.Get("Stripe-Signature")

	if len(rawBody) == 0 {
		log.Warn().Msg("Stripe webhook received empty body (ensure no global body parser consumes the webhook body)")
		return c.Status(400).SendString("Webhook Error: empty body")
	}

	if err := verifyStripeSignature(rawBody, sig, wh.WebhookSecret); err != nil {
		log.Warn().Err(err).Bool("has_sig", sig != "").Bool("has_secret", wh.WebhookSecret != "").Msg("Stripe webhook signature verification failed")
		return c.Status(400).SendString(fmt.Sprintf("Webhook Error: %s", err.Error()))
	}

	var event stripeEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		log.Warn().Err(err).Msg("Stripe webhook JSON parse failed")
		return c.Status(400).SendString(fmt.Sprintf("Webhook Error: %s", err.Error()))
	}

	if event.Type == "payment_intent.succeeded" {
		var pi paymentIntentObject
		if err := json.Unmarshal(event.Data.Object, &pi); err != nil {
			return c.Status(200).SendString("ok")
		}
		if err := wh.checkIntentSucceeded(c, pi, event.ID); err != nil {
			// always 200 on domain errors so Stripe does not retry forever
			log.Error().Err(err).Str("payment_ref", pi.ID).Msg("webhook reconciliation check failed")
		}
	}

	return c.Status(200).SendString("ok")
}

// checkIntentSucceeded verifies the succeeded charge is reflected locally; if
// not, records an unmatched_charge reconciliation event (once per intent).
func (wh *WebhookHandler) checkIntentSucceeded(c *fiber.Ctx, pi paymentIntentObject, eventID string) error {
	ctx := c.Context()

	var payment domain.Payment
	err := wh.DB.WithContext(ctx).Where("stripe_payment_intent_id = ?", pi.ID).First(&payment).Error
	if err == nil && payment.Status == domain.PaymentStatusCompleted {
		return nil // accounted for
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	localStatus := "missing"
	if err == nil {
		localStatus = string(payment.Status)
	}

	exists, err := wh.Recon.ExistsForRef(ctx, pi.ID, domain.ReconKindUnmatchedCharge)
	if err != nil {
		return err
	}
	if exists {
		return nil // redelivery
	}

	var gigID *uuid.UUID
	if raw := pi.Metadata["gig_id"]; raw != "" {
		if parsed, err := uuid.Parse(raw); err == nil {
			gigID = &parsed
		}
	}

	detail, _ := json.Marshal(map[string]interface{}{
		"event_id":        eventID,
		"amount_received": pi.AmountReceived,
		"currency":        pi.Currency,
		"local_status":    localStatus,
	})

	log.Warn().Str("payment_ref", pi.ID).Str("event_id", eventID).Msg("succeeded charge has no matching completed payment")
	return wh.Recon.Record(ctx, &domain.ReconciliationEvent{
		GigID:      gigID,
		PaymentRef: pi.ID,
		Kind:       domain.ReconKindUnmatchedCharge,
		Detail:     datatypes.JSON(detail),
	})
}

// verifyStripeSignature verifies the Stripe-Signature header using the webhook secret.
func verifyStripeSignature(payload []byte, sigHeader, secret string) error {
	if sigHeader == "" || secret == "" {
		return errors.New("missing signature or secret")
	}

	var timestamp string
	var signatures []string

	parts := strings.Split(sigHeader, ",")
	for _, part := range parts {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return errors.New("invalid signature format")
	}

	signedPayload := timestamp + "." + string(payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	expectedSig := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expectedSig)) {
			// Check tolerance (5 minutes)
			ts, err := strconv.ParseInt(timestamp, 10, 64)
			if err != nil {
				return errors.New("invalid timestamp")
			}
			diff := time.Now().Unix() - ts
			if diff < 0 {
				diff = -diff
			}
			if diff > 300 {
				return errors.New("timestamp too old")
			}
			return nil
		}
	}

	return errors.New("signature mismatch")
}

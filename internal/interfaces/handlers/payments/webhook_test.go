package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"able-backend/internal/domain"
	"able-backend/internal/store"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "whsec_test_secret_123"

func setupWebhookTest(t *testing.T) (*WebhookHandler, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Gig{}, &domain.Payment{}, &domain.ReconciliationEvent{}))
	wh := &WebhookHandler{
		DB:            db,
		Recon:         &store.GormReconciliationStore{DB: db},
		WebhookSecret: testSecret,
	}
	return wh, db
}

func signPayload(t *testing.T, payload []byte, secret string) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	sig := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%s,v1=%s", ts, sig)
}

func intentSucceededEvent(t *testing.T, intentID string, metadata map[string]string) []byte {
	event := map[string]interface{}{
		"id":   "evt_test_123",
		"type": "payment_intent.succeeded",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":              intentID,
				"amount_received": 10000,
				"currency":        "usd",
				"status":          "succeeded",
				"metadata":        metadata,
			},
		},
	}
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body
}

func TestWebhook_MissingSignature(t *testing.T) {
	wh, _ := setupWebhookTest(t)
	app := fiber.New()
	app.Post("/webhook", wh.HandleWebhook)

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	wh, _ := setupWebhookTest(t)
	app := fiber.New()
	app.Post("/webhook", wh.HandleWebhook)

	body := []byte(`{"type":"payment_intent.succeeded"}`)
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("stripe-signature", "t=123,v1=invalid")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestWebhook_UnmatchedChargeRecorded(t *testing.T) {
	wh, db := setupWebhookTest(t)
	app := fiber.New()
	app.Post("/webhook", wh.HandleWebhook)

	gigID := uuid.New()
	body := intentSucceededEvent(t, "pi_ghost", map[string]string{"gig_id": gigID.String()})
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("stripe-signature", signPayload(t, body, testSecret))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var events []domain.ReconciliationEvent
	require.NoError(t, db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, "pi_ghost", events[0].PaymentRef)
	assert.Equal(t, domain.ReconKindUnmatchedCharge, events[0].Kind)
	require.NotNil(t, events[0].GigID)
	assert.Equal(t, gigID, *events[0].GigID)
}

func TestWebhook_MatchedChargeIgnored(t *testing.T) {
	wh, db := setupWebhookTest(t)
	app := fiber.New()
	app.Post("/webhook", wh.HandleWebhook)

	require.NoError(t, db.Create(&domain.Payment{
		GigID:                 uuid.New(),
		AmountGross:           100,
		Status:                domain.PaymentStatusCompleted,
		StripePaymentIntentID: "pi_settled",
		PayerUserID:           uuid.New(),
		ReceiverUserID:        uuid.New(),
	}).Error)

	body := intentSucceededEvent(t, "pi_settled", nil)
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("stripe-signature", signPayload(t, body, testSecret))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&domain.ReconciliationEvent{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestWebhook_RedeliveryIdempotent(t *testing.T) {
	wh, db := setupWebhookTest(t)
	app := fiber.New()
	app.Post("/webhook", wh.HandleWebhook)

	body := intentSucceededEvent(t, "pi_ghost", nil)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/webhook", strings.NewReader(string(body)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("stripe-signature", signPayload(t, body, testSecret))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	}

	var count int64
	require.NoError(t, db.Model(&domain.ReconciliationEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWebhook_IrrelevantEventType(t *testing.T) {
	wh, db := setupWebhookTest(t)
	app := fiber.New()
	app.Post("/webhook", wh.HandleWebhook)

	event := map[string]interface{}{
		"id":   "evt_test_456",
		"type": "charge.refunded",
		"data": map[string]interface{}{"object": map[string]interface{}{}},
	}
	body, _ := json.Marshal(event)
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("stripe-signature", signPayload(t, body, testSecret))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&domain.ReconciliationEvent{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

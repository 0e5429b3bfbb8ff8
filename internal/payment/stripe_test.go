package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func sign(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", at.Unix())))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

const completedEvent = `{
  "id": "evt_1",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {"object": {
    "id": "cs_test_1",
    "object": "checkout.session",
    "amount_total": 4999,
    "payment_intent": "pi_123",
    "metadata": {"productId": "recP1", "productName": "Trend Scout", "userId": "recU1", "promoCodeId": "recPromo"},
    "customer_details": {"email": "buyer@example.com", "name": ""}
  }}
}`

func TestParseWebhookCompletedCheckout(t *testing.T) {
	s := NewStripe("", testSecret, time.Second)
	payload := []byte(completedEvent)

	cp, err := s.ParseWebhook(payload, sign(payload, testSecret, time.Now()))
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "pi_123", cp.PaymentRef)
	assert.Equal(t, "cs_test_1", cp.SessionID)
	assert.InDelta(t, 49.99, cp.Amount, 1e-9)
	assert.Equal(t, "recP1", cp.ProductID)
	assert.Equal(t, "recU1", cp.UserID)
	assert.Equal(t, "recPromo", cp.PromoCodeID)
	assert.Equal(t, "buyer", cp.CardHolder)
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	s := NewStripe("", testSecret, time.Second)
	payload := []byte(completedEvent)

	_, err := s.ParseWebhook(payload, sign(payload, "whsec_other", time.Now()))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = s.ParseWebhook(payload, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseWebhookIgnoresOtherEvents(t *testing.T) {
	s := NewStripe("", testSecret, time.Second)
	payload := []byte(`{"id":"evt_2","object":"event","type":"payment_intent.created","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`)

	cp, err := s.ParseWebhook(payload, sign(payload, testSecret, time.Now()))
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestPaymentRefFallsBackToSession(t *testing.T) {
	s := NewStripe("", testSecret, time.Second)
	payload := []byte(`{"id":"evt_3","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_only","object":"checkout.session","amount_total":100}}}`)

	cp, err := s.ParseWebhook(payload, sign(payload, testSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "cs_only", cp.PaymentRef)
	assert.Equal(t, "Customer", cp.CardHolder)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(4999), ToMinorUnits(49.99))
	assert.Equal(t, 12.5, FromMinorUnits(1250))
}

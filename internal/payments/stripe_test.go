package payments

import (
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"

	pkgerrors "github.com/nbylich/creditflow/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test"

func signedHeader(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	ts := time.Now()
	sig := webhook.ComputeSignature(ts, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig))
}

func TestStripeProvider_VerifyAndParseEvent(t *testing.T) {
	p := NewStripeProvider("sk_test", testWebhookSecret)

	t.Run("SucceededEvent", func(t *testing.T) {
		payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123"}}}`)
		event, err := p.VerifyAndParseEvent(payload, signedHeader(t, payload, testWebhookSecret))
		require.NoError(t, err)
		assert.Equal(t, EventSucceeded, event.Kind)
		assert.Equal(t, "pi_123", event.IntentID)
		assert.Equal(t, "payment_intent.succeeded", event.Type)
	})

	t.Run("CanceledEvent", func(t *testing.T) {
		payload := []byte(`{"id":"evt_2","type":"payment_intent.canceled","data":{"object":{"id":"pi_456"}}}`)
		event, err := p.VerifyAndParseEvent(payload, signedHeader(t, payload, testWebhookSecret))
		require.NoError(t, err)
		assert.Equal(t, EventCanceled, event.Kind)
		assert.Equal(t, "pi_456", event.IntentID)
	})

	t.Run("UnhandledTypeMapsToOther", func(t *testing.T) {
		payload := []byte(`{"id":"evt_3","type":"charge.refunded","data":{"object":{"id":"ch_789"}}}`)
		event, err := p.VerifyAndParseEvent(payload, signedHeader(t, payload, testWebhookSecret))
		require.NoError(t, err)
		assert.Equal(t, EventOther, event.Kind)
		assert.Equal(t, "charge.refunded", event.Type)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		payload := []byte(`{"id":"evt_4","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123"}}}`)
		event, err := p.VerifyAndParseEvent(payload, signedHeader(t, payload, "whsec_other"))
		assert.Nil(t, event)
		assert.ErrorIs(t, err, pkgerrors.ErrVerificationFailed)
	})

	t.Run("TamperedPayload", func(t *testing.T) {
		payload := []byte(`{"id":"evt_5","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123"}}}`)
		header := signedHeader(t, payload, testWebhookSecret)
		tampered := []byte(`{"id":"evt_5","type":"payment_intent.succeeded","data":{"object":{"id":"pi_999"}}}`)
		event, err := p.VerifyAndParseEvent(tampered, header)
		assert.Nil(t, event)
		assert.ErrorIs(t, err, pkgerrors.ErrVerificationFailed)
	})

	t.Run("MissingHeader", func(t *testing.T) {
		payload := []byte(`{"id":"evt_6","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123"}}}`)
		event, err := p.VerifyAndParseEvent(payload, "")
		assert.Nil(t, event)
		assert.ErrorIs(t, err, pkgerrors.ErrVerificationFailed)
	})
}

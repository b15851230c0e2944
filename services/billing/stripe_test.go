package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

func signedPayload(t *testing.T, payload, secret string) (*webhook.SignedPayload, []byte) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed, signed.Payload
}

func TestStripeGatewayParseWebhook(t *testing.T) {
	gateway := NewStripeGateway("sk_test_unused")

	t.Run("checkout session", func(t *testing.T) {
		signed, body := signedPayload(t, `{
			"id": "evt_checkout",
			"object": "event",
			"type": "checkout.session.completed",
			"data": {"object": {
				"id": "cs_1",
				"object": "checkout.session",
				"client_reference_id": "12",
				"metadata": {"org_id": "12"},
				"customer": "cus_12",
				"subscription": "sub_12"
			}}
		}`, "whsec_test")

		event, err := gateway.ParseWebhook(body, signed.Header, "whsec_test")

		require.NoError(t, err)
		assert.Equal(t, "evt_checkout", event.ID)
		require.NotNil(t, event.Checkout)
		assert.Equal(t, "12", event.Checkout.Metadata["org_id"])
		assert.Equal(t, "cus_12", event.Checkout.CustomerID)
		assert.Equal(t, "sub_12", event.Checkout.SubscriptionID)
	})

	t.Run("subscription", func(t *testing.T) {
		signed, body := signedPayload(t, `{
			"id": "evt_sub",
			"object": "event",
			"type": "customer.subscription.updated",
			"data": {"object": {
				"id": "sub_1",
				"object": "subscription",
				"customer": "cus_1",
				"status": "past_due",
				"current_period_end": 1735689600,
				"items": {"object": "list", "data": [{"id": "si_1", "price": {"id": "price_pro"}}]}
			}}
		}`, "whsec_test")

		event, err := gateway.ParseWebhook(body, signed.Header, "whsec_test")

		require.NoError(t, err)
		require.NotNil(t, event.Subscription)
		assert.Equal(t, &Subscription{
			ID:               "sub_1",
			CustomerID:       "cus_1",
			Status:           "past_due",
			PriceID:          "price_pro",
			CurrentPeriodEnd: 1735689600,
		}, event.Subscription)
	})

	t.Run("wrong secret", func(t *testing.T) {
		signed, body := signedPayload(t, `{"id": "evt_x", "object": "event", "type": "ping"}`, "whsec_other")

		_, err := gateway.ParseWebhook(body, signed.Header, "whsec_test")

		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}

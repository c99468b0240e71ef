package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"

	"github.com/checklanehq/checklane/internal/billing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test_secret"

func signPayload(t *testing.T, payload []byte, timestamp string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(testSecret))
	_, err := mac.Write([]byte(fmt.Sprintf("%s.%s", timestamp, payload)))
	require.NoError(t, err)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	adapter := NewAdapter(testSecret)
	payload := []byte(`{"id":"evt_1","type":"invoice.paid"}`)

	headers := http.Header{}
	headers.Set("Stripe-Signature", signPayload(t, payload, "1712000000"))

	assert.NoError(t, adapter.Verify(context.Background(), payload, headers))
}

func TestVerifyRejectsMissingHeader(t *testing.T) {
	adapter := NewAdapter(testSecret)
	err := adapter.Verify(context.Background(), []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	adapter := NewAdapter(testSecret)
	payload := []byte(`{"id":"evt_1"}`)

	headers := http.Header{}
	headers.Set("Stripe-Signature", signPayload(t, payload, "1712000000"))

	err := adapter.Verify(context.Background(), []byte(`{"id":"evt_2"}`), headers)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	adapter := NewAdapter("whsec_other")
	payload := []byte(`{"id":"evt_1"}`)

	headers := http.Header{}
	headers.Set("Stripe-Signature", signPayload(t, payload, "1712000000"))

	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, headers), domain.ErrInvalidSignature)
}

func TestParseCheckoutSessionCompleted(t *testing.T) {
	adapter := NewAdapter(testSecret)
	payload := []byte(`{
		"id": "evt_checkout_1",
		"type": "checkout.session.completed",
		"created": 1712000000,
		"data": {"object": {
			"id": "cs_test_1",
			"customer": "cus_1",
			"subscription": "sub_1",
			"customer_details": {"email": "owner@example.com"},
			"metadata": {"referral_code": "REF-42"}
		}}
	}`)

	event, err := adapter.Parse(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal(t, domain.EventKindCheckoutCompleted, event.Kind)
	assert.Equal(t, "evt_checkout_1", event.ProviderEventID)
	require.NotNil(t, event.CheckoutSession)
	assert.Equal(t, "cs_test_1", event.CheckoutSession.ProviderSessionID)
	assert.Equal(t, "owner@example.com", event.CheckoutSession.CustomerEmail)
	assert.Equal(t, "sub_1", event.CheckoutSession.PlatformSubscriptionID)
	assert.Equal(t, "REF-42", event.CheckoutSession.ReferralCode)
	assert.Equal(t, "checkout_completed:cs_test_1", event.IdempotencyKey())
}

func TestParsePrefersSessionEmail(t *testing.T) {
	adapter := NewAdapter(testSecret)
	payload := []byte(`{
		"id": "evt_checkout_2",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test_2",
			"customer_email": "session@example.com",
			"customer_details": {"email": "billing@example.com"}
		}}
	}`)

	event, err := adapter.Parse(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "session@example.com", event.CheckoutSession.CustomerEmail)
}

func TestParseInvoicePaidVariants(t *testing.T) {
	adapter := NewAdapter(testSecret)

	for _, vendorType := range []string{"invoice.paid", "invoice.payment_succeeded"} {
		payload := []byte(fmt.Sprintf(`{
			"id": "evt_inv_1",
			"type": "%s",
			"data": {"object": {
				"id": "in_1",
				"subscription": "sub_9",
				"billing_reason": "subscription_create",
				"amount_paid": 4900,
				"currency": "usd",
				"subscription_details": {"metadata": {"referral_code": "REF-7"}}
			}}
		}`, vendorType))

		event, err := adapter.Parse(context.Background(), payload)
		require.NoError(t, err, vendorType)

		assert.Equal(t, domain.EventKindInvoicePaid, event.Kind)
		require.NotNil(t, event.Invoice)
		assert.Equal(t, "sub_9", event.Invoice.PlatformSubscriptionID)
		assert.Equal(t, int64(4900), event.Invoice.AmountPaid)
		assert.True(t, event.Invoice.Qualifying())
		// Both vendor kinds resolve to one compound ledger key.
		assert.Equal(t, "invoice_paid:in_1", event.IdempotencyKey())
	}
}

func TestParseIgnoresUnknownEventKinds(t *testing.T) {
	adapter := NewAdapter(testSecret)
	payload := []byte(`{"id": "evt_x", "type": "customer.subscription.trial_will_end", "data": {"object": {}}}`)

	_, err := adapter.Parse(context.Background(), payload)
	assert.ErrorIs(t, err, domain.ErrEventIgnored)
}

func TestParseRejectsMalformedPayload(t *testing.T) {
	adapter := NewAdapter(testSecret)

	_, err := adapter.Parse(context.Background(), []byte(`not json`))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	_, err = adapter.Parse(context.Background(), []byte(`{"type":"invoice.paid","data":{"object":{}}}`))
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestInvoiceQualifying(t *testing.T) {
	cases := []struct {
		reason string
		amount int64
		want   bool
	}{
		{"subscription_create", 4900, true},
		{"subscription_cycle", 4900, true},
		{"subscription_create", 0, false},
		{"subscription_update", 4900, false},
		{"manual", 4900, false},
	}
	for _, tc := range cases {
		inv := domain.Invoice{BillingReason: tc.reason, AmountPaid: tc.amount}
		assert.Equal(t, tc.want, inv.Qualifying(), "%s/%d", tc.reason, tc.amount)
	}
}

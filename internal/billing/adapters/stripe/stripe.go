package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/checklanehq/checklane/internal/billing/domain"
)

type Adapter struct {
	webhookSecret string
}

func NewAdapter(webhookSecret string) *Adapter {
	return &Adapter{webhookSecret: strings.TrimSpace(webhookSecret)}
}

func (a *Adapter) Provider() string { return "stripe" }

// Verify checks the Stripe-Signature header against an HMAC-SHA256 over
// "<timestamp>.<raw payload>". It must see the exact bytes Stripe sent; any
// re-serialization upstream would break the signature.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return domain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return domain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return domain.ErrInvalidSignature
}

// Parse maps a verified payload to the canonical event. Vendor event types
// outside the supported set collapse to ErrEventIgnored so new Stripe event
// kinds never break ingestion.
func (a *Adapter) Parse(ctx context.Context, payload []byte) (*domain.Event, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	var parsed *domain.Event
	var err error
	switch strings.TrimSpace(event.Type) {
	case "checkout.session.completed":
		parsed, err = a.parseCheckoutSession(event)
	case "invoice.paid", "invoice.payment_succeeded":
		parsed, err = a.parseInvoice(event)
	default:
		return nil, domain.ErrEventIgnored
	}
	if err != nil {
		return nil, err
	}
	parsed.RawPayload = payload
	return parsed, nil
}

func (a *Adapter) parseCheckoutSession(event stripeEvent) (*domain.Event, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if session.ID == "" {
		return nil, domain.ErrInvalidEvent
	}

	email := session.CustomerEmail
	if email == "" {
		email = session.CustomerDetails.Email
	}

	return &domain.Event{
		Provider:        a.Provider(),
		ProviderEventID: event.ID,
		Kind:            domain.EventKindCheckoutCompleted,
		OccurredAt:      time.Unix(event.Created, 0).UTC(),
		CheckoutSession: &domain.CheckoutSession{
			ProviderSessionID:      session.ID,
			CustomerEmail:          strings.TrimSpace(email),
			PlatformCustomerID:     session.Customer,
			PlatformSubscriptionID: session.Subscription,
			ReferralCode:           session.Metadata["referral_code"],
		},
	}, nil
}

func (a *Adapter) parseInvoice(event stripeEvent) (*domain.Event, error) {
	var invoice stripeInvoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if invoice.ID == "" {
		return nil, domain.ErrInvalidEvent
	}

	subscriptionID := invoice.Subscription
	if subscriptionID == "" {
		subscriptionID = invoice.SubscriptionDetails.Subscription
	}

	return &domain.Event{
		Provider:        a.Provider(),
		ProviderEventID: event.ID,
		Kind:            domain.EventKindInvoicePaid,
		OccurredAt:      time.Unix(event.Created, 0).UTC(),
		Invoice: &domain.Invoice{
			ProviderInvoiceID:      invoice.ID,
			PlatformSubscriptionID: subscriptionID,
			BillingReason:          invoice.BillingReason,
			AmountPaid:             invoice.AmountPaid,
			Currency:               strings.ToUpper(invoice.Currency),
			SubscriptionMetadata:   invoice.SubscriptionDetails.Metadata,
		},
	}, nil
}

func parseSignatureHeader(header string) (timestamp string, signatures []string, err error) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, domain.ErrInvalidSignature
	}
	return timestamp, signatures, nil
}

package domain

import "time"

// EventKind is the closed enumeration of supported logical event kinds.
// Unrecognized vendor types never reach this type; adapters collapse them to
// ErrEventIgnored before routing.
type EventKind string

const (
	EventKindCheckoutCompleted EventKind = "checkout_completed"
	EventKindInvoicePaid       EventKind = "invoice_paid"
)

// Billing reasons that qualify an invoice payment for referral conversion.
const (
	BillingReasonSubscriptionCreate = "subscription_create"
	BillingReasonSubscriptionCycle  = "subscription_cycle"
)

// Event is the canonical verified event handed from an adapter to the router.
// Exactly one of CheckoutSession / Invoice is set, matching Kind.
type Event struct {
	Provider        string
	ProviderEventID string
	Kind            EventKind
	OccurredAt      time.Time
	RawPayload      []byte

	CheckoutSession *CheckoutSession
	Invoice         *Invoice
}

// CheckoutSession is the slice of a completed checkout the engine consumes.
type CheckoutSession struct {
	ProviderSessionID      string
	CustomerEmail          string
	PlatformCustomerID     string
	PlatformSubscriptionID string
	ReferralCode           string
}

// Invoice is the slice of a paid invoice the engine consumes. The
// subscription metadata carries the referral code when the vendor embedded
// one at checkout time.
type Invoice struct {
	ProviderInvoiceID      string
	PlatformSubscriptionID string
	BillingReason          string
	AmountPaid             int64
	Currency               string
	SubscriptionMetadata   map[string]string
}

// IdempotencyKey computes the ledger key for this event. The same logical
// change can arrive under different vendor event kinds, so derived flows key
// on the external object id plus the logical kind rather than the vendor
// event id.
func (e *Event) IdempotencyKey() string {
	switch e.Kind {
	case EventKindCheckoutCompleted:
		if e.CheckoutSession != nil && e.CheckoutSession.ProviderSessionID != "" {
			return string(EventKindCheckoutCompleted) + ":" + e.CheckoutSession.ProviderSessionID
		}
	case EventKindInvoicePaid:
		if e.Invoice != nil && e.Invoice.ProviderInvoiceID != "" {
			return string(EventKindInvoicePaid) + ":" + e.Invoice.ProviderInvoiceID
		}
	}
	return e.Provider + ":" + e.ProviderEventID
}

// Qualifying reports whether a paid invoice should advance a referral: the
// billing reason must be a subscription create or cycle, with a positive paid
// amount.
func (i *Invoice) Qualifying() bool {
	if i.AmountPaid <= 0 {
		return false
	}
	switch i.BillingReason {
	case BillingReasonSubscriptionCreate, BillingReasonSubscriptionCycle:
		return true
	}
	return false
}

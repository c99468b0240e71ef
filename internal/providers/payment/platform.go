// Package payment wraps the outbound payment-platform API: subscription
// lookups with product metadata, and discount grant creation. Inbound webhook
// handling lives in internal/billing/adapters.
package payment

import (
	"context"
	"errors"
)

var (
	ErrSubscriptionNotFound = errors.New("platform_subscription_not_found")
	ErrDiscountGrantFailed  = errors.New("discount_grant_failed")
)

// Subscription is the slice of a platform subscription the engine consumes.
type Subscription struct {
	ID                 string
	Status             string
	PlatformCustomerID string
	// ProductMetadata carries the first line item's product metadata, where
	// tier code and vehicle allowance are published.
	ProductMetadata map[string]string
}

// Platform is the outbound payment-processor contract. All calls are bounded
// by the client's request timeout; callers must not let them extend past the
// ledger commit.
type Platform interface {
	// GetSubscription retrieves a subscription with product metadata expanded.
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	// CreateApplyOnceDiscount creates a single-use 100%-off discount grant and
	// returns its external id. A grant is never reused across referrals.
	CreateApplyOnceDiscount(ctx context.Context, name string) (string, error)
	// ApplyDiscountToSubscription attaches a previously created grant to the
	// given subscription.
	ApplyDiscountToSubscription(ctx context.Context, subscriptionID, discountID string) error
}

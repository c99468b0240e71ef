package payment

import (
	"context"
	"fmt"
	"net/http"
	"time"

	stripe "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"go.uber.org/zap"
)

// platformRequestTimeout bounds every outbound call so handler execution can
// never stall past the point where the ledger commit should happen.
const platformRequestTimeout = 10 * time.Second

type stripePlatform struct {
	api *client.API
	log *zap.Logger
}

func NewStripePlatform(apiKey string, log *zap.Logger) Platform {
	api := &client.API{}
	api.Init(apiKey, stripe.NewBackends(&http.Client{Timeout: platformRequestTimeout}))
	return &stripePlatform{
		api: api,
		log: log.Named("providers.stripe"),
	}
}

func (p *stripePlatform) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("items.data.price.product")

	sub, err := p.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, err)
	}

	out := &Subscription{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.Customer != nil {
		out.PlatformCustomerID = sub.Customer.ID
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item.Price != nil && item.Price.Product != nil {
				out.ProductMetadata = item.Price.Product.Metadata
				break
			}
		}
	}
	return out, nil
}

func (p *stripePlatform) CreateApplyOnceDiscount(ctx context.Context, name string) (string, error) {
	params := &stripe.CouponParams{
		PercentOff:     stripe.Float64(100),
		Duration:       stripe.String(string(stripe.CouponDurationOnce)),
		MaxRedemptions: stripe.Int64(1),
		Name:           stripe.String(name),
	}
	params.Context = ctx

	coupon, err := p.api.Coupons.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create coupon: %s", ErrDiscountGrantFailed, err)
	}
	return coupon.ID, nil
}

func (p *stripePlatform) ApplyDiscountToSubscription(ctx context.Context, subscriptionID, discountID string) error {
	params := &stripe.SubscriptionParams{
		Coupon: stripe.String(discountID),
	}
	params.Context = ctx

	if _, err := p.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("%w: apply coupon %s to %s: %s", ErrDiscountGrantFailed, discountID, subscriptionID, err)
	}
	p.log.Info("discount applied",
		zap.String("subscription_id", subscriptionID),
		zap.String("discount_id", discountID))
	return nil
}

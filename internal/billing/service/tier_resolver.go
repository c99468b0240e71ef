package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/checklanehq/checklane/internal/clock"
	"github.com/checklanehq/checklane/internal/config"
	"github.com/checklanehq/checklane/internal/providers/payment"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// tierCacheTTL bounds how long a resolved tier is served without re-reading
// the platform. Plan changes propagate within this window.
const tierCacheTTL = 5 * time.Minute

// TierInfo is the resolved plan a subscription entitles its buyer to.
type TierInfo struct {
	Tier             string
	VehicleAllowance int
}

type tierCacheEntry struct {
	info      TierInfo
	fetchedAt time.Time
}

// fresh reports whether the entry can still be served at now.
func (e tierCacheEntry) fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.fetchedAt) < ttl
}

// TierResolver maps a platform subscription to its tier and vehicle allowance
// via product metadata. Resolution fails open: any lookup or parse failure
// yields the configured default tier so a paying customer is never left
// without a working account over a platform hiccup.
type TierResolver struct {
	platform payment.Platform
	clock    clock.Clock
	log      *zap.Logger

	defaults TierInfo

	mu    sync.Mutex
	cache map[string]tierCacheEntry
}

type TierResolverParams struct {
	fx.In

	Config   config.Config
	Platform payment.Platform
	Clock    clock.Clock
	Logger   *zap.Logger
}

func NewTierResolver(p TierResolverParams) *TierResolver {
	return &TierResolver{
		platform: p.Platform,
		clock:    p.Clock,
		log:      p.Logger.Named("billing.tier_resolver"),
		defaults: TierInfo{
			Tier:             p.Config.License.DefaultTier,
			VehicleAllowance: p.Config.License.DefaultAllowance,
		},
		cache: make(map[string]tierCacheEntry),
	}
}

func (r *TierResolver) Resolve(ctx context.Context, subscriptionID string) TierInfo {
	if subscriptionID == "" {
		return r.defaults
	}

	now := r.clock.Now(ctx)
	r.mu.Lock()
	entry, ok := r.cache[subscriptionID]
	r.mu.Unlock()
	if ok && entry.fresh(now, tierCacheTTL) {
		return entry.info
	}

	sub, err := r.platform.GetSubscription(ctx, subscriptionID)
	if err != nil {
		r.log.Warn("tier lookup failed, using default tier",
			zap.String("subscription_id", subscriptionID),
			zap.String("default_tier", r.defaults.Tier),
			zap.Error(err))
		return r.defaults
	}

	info, ok := tierFromMetadata(sub.ProductMetadata)
	if !ok {
		r.log.Warn("product metadata missing tier fields, using default tier",
			zap.String("subscription_id", subscriptionID),
			zap.String("default_tier", r.defaults.Tier))
		return r.defaults
	}

	r.mu.Lock()
	r.cache[subscriptionID] = tierCacheEntry{info: info, fetchedAt: now}
	r.mu.Unlock()
	return info
}

// tierFromMetadata parses the "tier" and "vehicle_allowance" product metadata
// keys. Both must be present and the allowance must be a positive integer.
func tierFromMetadata(metadata map[string]string) (TierInfo, bool) {
	tier := metadata["tier"]
	if tier == "" {
		return TierInfo{}, false
	}
	allowance, err := strconv.Atoi(metadata["vehicle_allowance"])
	if err != nil || allowance <= 0 {
		return TierInfo{}, false
	}
	return TierInfo{Tier: tier, VehicleAllowance: allowance}, true
}

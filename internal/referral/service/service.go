package service

import (
	"context"
	"fmt"

	billingdomain "github.com/checklanehq/checklane/internal/billing/domain"
	"github.com/checklanehq/checklane/internal/clock"
	"github.com/checklanehq/checklane/internal/providers/payment"
	"github.com/checklanehq/checklane/internal/referral/domain"
	tenantdomain "github.com/checklanehq/checklane/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	referrals   domain.Repository
	tenants     tenantdomain.Repository
	setupTokens billingdomain.SetupTokenRepository
	platform    payment.Platform
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Logger      *zap.Logger
	Clock       clock.Clock
	Referrals   domain.Repository
	Tenants     tenantdomain.Repository
	SetupTokens billingdomain.SetupTokenRepository
	Platform    payment.Platform
}

func NewService(p Params) domain.Service {
	return &service{
		db:          p.DB,
		log:         p.Logger.Named("referral.service"),
		clock:       p.Clock,
		referrals:   p.Referrals,
		tenants:     p.Tenants,
		setupTokens: p.SetupTokens,
		platform:    p.Platform,
	}
}

func (s *service) RecordSignup(ctx context.Context, code string) error {
	referral, err := s.referrals.FindByCode(ctx, nil, code)
	if err != nil {
		return err
	}
	if referral == nil {
		return domain.ErrReferralNotFound
	}
	if !referral.Status.CanAdvanceTo(domain.StatusSignedUp) {
		return domain.ErrAlreadyProcessed
	}
	updated, err := s.referrals.MarkSignedUp(ctx, nil, referral.ID, s.clock.Now(ctx))
	if err != nil {
		return err
	}
	if !updated {
		return domain.ErrAlreadyProcessed
	}
	s.log.Info("referral signup recorded",
		zap.String("code", code),
		zap.String("referral_id", referral.ID.String()))
	return nil
}

func (s *service) HandleInvoicePaid(ctx context.Context, invoice *billingdomain.Invoice) error {
	if !invoice.Qualifying() {
		return nil
	}

	referral, err := s.resolveReferral(ctx, invoice)
	if err != nil {
		return err
	}
	if referral == nil {
		return nil
	}
	if referral.Status == domain.StatusRewarded {
		return nil
	}

	now := s.clock.Now(ctx)
	if referral.Status == domain.StatusPending {
		// The checkout-completed delivery never arrived; the paid invoice
		// proves signup happened, so record it late before converting.
		if _, err := s.referrals.MarkSignedUp(ctx, nil, referral.ID, now); err != nil {
			return err
		}
	}

	granted, err := s.grantReward(ctx, referral)
	if err != nil {
		return err
	}
	if granted {
		return nil
	}

	// Referrer cannot be credited right now: park the referral as converted
	// and let the deferred-reward sweep pick it up later.
	converted, err := s.referrals.MarkConverted(ctx, nil, referral.ID, now)
	if err != nil {
		return err
	}
	if converted {
		rewardsDeferred.Inc()
		s.log.Info("referral converted, reward deferred",
			zap.String("code", referral.Code),
			zap.String("referrer_tenant_id", referral.ReferrerTenantID.String()))
	}
	return nil
}

func (s *service) RetryDeferredRewards(ctx context.Context, limit int) (int, error) {
	referrals, err := s.referrals.ListDeferredRewards(ctx, nil, limit)
	if err != nil {
		return 0, err
	}

	rewarded := 0
	for i := range referrals {
		referral := &referrals[i]
		granted, err := s.grantReward(ctx, referral)
		if err != nil {
			s.log.Warn("deferred reward retry failed",
				zap.String("code", referral.Code),
				zap.Error(err))
			continue
		}
		if granted {
			rewarded++
		}
	}
	return rewarded, nil
}

// resolveReferral finds the referral an invoice settles. The code travels in
// the subscription metadata when the vendor kept it; the issued setup token
// snapshot is the fallback for subscriptions created before metadata
// propagation.
func (s *service) resolveReferral(ctx context.Context, invoice *billingdomain.Invoice) (*domain.Referral, error) {
	code := invoice.SubscriptionMetadata["referral_code"]
	if code == "" && invoice.PlatformSubscriptionID != "" {
		token, err := s.setupTokens.FindByPlatformSubscriptionID(ctx, nil, invoice.PlatformSubscriptionID)
		if err != nil {
			return nil, err
		}
		if token != nil {
			code = token.ReferralCode
		}
	}
	if code == "" {
		return nil, nil
	}

	referral, err := s.referrals.FindByCode(ctx, nil, code)
	if err != nil {
		return nil, err
	}
	if referral == nil {
		s.log.Warn("paid invoice references unknown referral code",
			zap.String("code", code),
			zap.String("invoice_id", invoice.ProviderInvoiceID))
		return nil, nil
	}
	return referral, nil
}

// grantReward credits the referrer with a single-use 100%-off discount and
// marks the referral rewarded in one guarded update. Returns false with a nil
// error when the referrer has no subscription to credit yet; any platform
// failure propagates so the triggering delivery is retried instead of the
// reward being silently lost.
func (s *service) grantReward(ctx context.Context, referral *domain.Referral) (bool, error) {
	referrer, err := s.tenants.FindByID(ctx, nil, referral.ReferrerTenantID)
	if err != nil {
		return false, err
	}
	if referrer == nil {
		return false, fmt.Errorf("referrer tenant %s: %w",
			referral.ReferrerTenantID, tenantdomain.ErrTenantNotFound)
	}
	if !referrer.HasChargeableSubscription() {
		return false, nil
	}

	grantID, err := s.platform.CreateApplyOnceDiscount(ctx, "Referral reward: "+referral.Code)
	if err != nil {
		return false, fmt.Errorf("create discount for referral %s: %w", referral.Code, err)
	}
	if err := s.platform.ApplyDiscountToSubscription(ctx, referrer.PlatformSubscriptionID, grantID); err != nil {
		return false, fmt.Errorf("apply discount %s to subscription %s: %w",
			grantID, referrer.PlatformSubscriptionID, err)
	}

	updated, err := s.referrals.MarkRewarded(ctx, nil, referral.ID, grantID, s.clock.Now(ctx))
	if err != nil {
		return false, err
	}
	if !updated {
		// A concurrent delivery won the rewarded transition after the grant
		// was applied; the guard kept the row state correct either way.
		s.log.Warn("reward already claimed during grant",
			zap.String("code", referral.Code),
			zap.String("discount_grant_id", grantID))
		return true, nil
	}

	rewardsGranted.Inc()
	s.log.Info("referral reward granted",
		zap.String("code", referral.Code),
		zap.String("referrer_tenant_id", referrer.ID.String()),
		zap.String("discount_grant_id", grantID))
	return true, nil
}

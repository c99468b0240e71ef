package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/checklanehq/checklane/internal/billing/domain"
	"github.com/checklanehq/checklane/internal/clock"
	"github.com/checklanehq/checklane/internal/config"
	"github.com/checklanehq/checklane/internal/mailer"
	referraldomain "github.com/checklanehq/checklane/internal/referral/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// SetupTokenService issues and re-sends account setup links after a completed
// checkout. The token snapshot pins tier, allowance, and referral code at
// issuance time.
type SetupTokenService struct {
	log       *zap.Logger
	clock     clock.Clock
	tokens    domain.SetupTokenRepository
	tiers     *TierResolver
	referrals referraldomain.Service
	mail      mailer.Mailer
	node      *snowflake.Node

	appBaseURL string
}

type SetupTokenParams struct {
	fx.In

	Config    config.Config
	Logger    *zap.Logger
	Clock     clock.Clock
	Tokens    domain.SetupTokenRepository
	Tiers     *TierResolver
	Referrals referraldomain.Service
	Mail      mailer.Mailer
	Node      *snowflake.Node
}

func NewSetupTokenService(p SetupTokenParams) *SetupTokenService {
	return &SetupTokenService{
		log:        p.Logger.Named("billing.setup_token"),
		clock:      p.Clock,
		tokens:     p.Tokens,
		tiers:      p.Tiers,
		referrals:  p.Referrals,
		mail:       p.Mail,
		node:       p.Node,
		appBaseURL: p.Config.App.BaseURL,
	}
}

// IssueFromCheckout creates a setup token for a completed checkout session and
// emails the redemption link. A session without a customer email cannot be
// provisioned and is skipped without error so the delivery still settles in
// the ledger.
func (s *SetupTokenService) IssueFromCheckout(ctx context.Context, session *domain.CheckoutSession) error {
	if session.CustomerEmail == "" {
		s.log.Warn("checkout session has no customer email, skipping setup token",
			zap.String("session_id", session.ProviderSessionID),
			zap.Error(domain.ErrMissingCustomerEmail))
		return nil
	}

	raw, err := newTokenValue()
	if err != nil {
		return fmt.Errorf("generate setup token: %w", err)
	}

	info := s.tiers.Resolve(ctx, session.PlatformSubscriptionID)
	now := s.clock.Now(ctx)
	token := &domain.AccountSetupToken{
		ID:                     s.node.Generate(),
		Token:                  raw,
		Email:                  session.CustomerEmail,
		PlatformCustomerID:     session.PlatformCustomerID,
		PlatformSubscriptionID: session.PlatformSubscriptionID,
		Tier:                   info.Tier,
		VehicleAllowance:       info.VehicleAllowance,
		ReferralCode:           session.ReferralCode,
		IssuedAt:               now,
		ExpiresAt:              now.Add(domain.SetupTokenTTL),
	}
	if err := s.tokens.Insert(ctx, nil, token); err != nil {
		return fmt.Errorf("insert setup token: %w", err)
	}

	if session.ReferralCode != "" {
		err := s.referrals.RecordSignup(ctx, session.ReferralCode)
		switch {
		case err == nil:
		case errors.Is(err, referraldomain.ErrReferralNotFound),
			errors.Is(err, referraldomain.ErrAlreadyProcessed):
			s.log.Debug("referral signup not recorded",
				zap.String("code", session.ReferralCode),
				zap.Error(err))
		default:
			return fmt.Errorf("record referral signup: %w", err)
		}
	}

	s.sendLink(ctx, token, raw)
	s.log.Info("setup token issued",
		zap.String("token_id", token.ID.String()),
		zap.String("tier", token.Tier),
		zap.String("session_id", session.ProviderSessionID))
	return nil
}

// Resend emails the redemption link for an existing token again. Consumed and
// expired tokens stay dead; support issues a fresh checkout instead.
func (s *SetupTokenService) Resend(ctx context.Context, tokenID snowflake.ID) error {
	token, err := s.tokens.FindByID(ctx, nil, tokenID)
	if err != nil {
		return err
	}
	if token == nil {
		return domain.ErrTokenNotFound
	}
	if !token.Redeemable(s.clock.Now(ctx)) {
		return domain.ErrTokenNotRedeemable
	}

	s.sendLink(ctx, token, token.Token)
	s.log.Info("setup link re-sent", zap.String("token_id", token.ID.String()))
	return nil
}

func (s *SetupTokenService) sendLink(ctx context.Context, token *domain.AccountSetupToken, raw string) {
	err := s.mail.SendSetupLink(ctx, mailer.SetupLinkEmail{
		To:            token.Email,
		RedemptionURL: s.appBaseURL + "/setup?token=" + raw,
		TierLabel:     token.Tier,
	})
	if err != nil {
		// Delivery is best effort: the token row is the source of truth and
		// the link can be re-sent through the admin endpoint.
		s.log.Warn("setup link delivery failed",
			zap.String("token_id", token.ID.String()),
			zap.Error(err))
	}
}

// newTokenValue returns a 256-bit random token in lowercase hex.
func newTokenValue() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

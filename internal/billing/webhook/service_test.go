package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/checklanehq/checklane/internal/billing/adapters"
	stripeadapter "github.com/checklanehq/checklane/internal/billing/adapters/stripe"
	"github.com/checklanehq/checklane/internal/billing/domain"
	billingrepo "github.com/checklanehq/checklane/internal/billing/repository"
	"github.com/checklanehq/checklane/internal/billing/service"
	"github.com/checklanehq/checklane/internal/clock"
	"github.com/checklanehq/checklane/internal/config"
	"github.com/checklanehq/checklane/internal/mailer"
	"github.com/checklanehq/checklane/internal/providers/payment"
	referraldomain "github.com/checklanehq/checklane/internal/referral/domain"
	referralrepo "github.com/checklanehq/checklane/internal/referral/repository"
	referralservice "github.com/checklanehq/checklane/internal/referral/service"
	tenantdomain "github.com/checklanehq/checklane/internal/tenant/domain"
	tenantrepo "github.com/checklanehq/checklane/internal/tenant/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "whsec_router_test"

// -- Mocks --

type platformMock struct {
	mock.Mock
}

func (m *platformMock) GetSubscription(ctx context.Context, subscriptionID string) (*payment.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	sub := args.Get(0)
	if sub == nil {
		return nil, args.Error(1)
	}
	return sub.(*payment.Subscription), args.Error(1)
}

func (m *platformMock) CreateApplyOnceDiscount(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *platformMock) ApplyDiscountToSubscription(ctx context.Context, subscriptionID, discountID string) error {
	return m.Called(ctx, subscriptionID, discountID).Error(0)
}

// -- Fixture --

type fixture struct {
	db       *gorm.DB
	svc      domain.Service
	platform *platformMock
	node     *snowflake.Node
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.EventRecord{},
		&domain.AccountSetupToken{},
		&referraldomain.Referral{},
		&tenantdomain.Tenant{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fixed := clock.Fixed(now)
	log := zap.NewNop()
	platform := &platformMock{}

	var cfg config.Config
	cfg.App.BaseURL = "https://app.checklane.test"
	cfg.License.DefaultTier = "starter"
	cfg.License.DefaultAllowance = 5

	tokens := billingrepo.NewSetupTokenRepository(db)
	referralSvc := referralservice.NewService(referralservice.Params{
		DB:          db,
		Logger:      log,
		Clock:       fixed,
		Referrals:   referralrepo.NewReferralRepository(db),
		Tenants:     tenantrepo.NewTenantRepository(db),
		SetupTokens: tokens,
		Platform:    platform,
	})
	setupTokens := service.NewSetupTokenService(service.SetupTokenParams{
		Config: cfg,
		Logger: log,
		Clock:  fixed,
		Tokens: tokens,
		Tiers: service.NewTierResolver(service.TierResolverParams{
			Config:   cfg,
			Platform: platform,
			Clock:    fixed,
			Logger:   log,
		}),
		Referrals: referralSvc,
		Mail:      mailer.NewLogMailer(log),
		Node:      node,
	})

	svc := NewService(Params{
		Logger:      log,
		Clock:       fixed,
		Registry:    adapters.NewRegistry(stripeadapter.NewAdapter(testSecret)),
		Records:     billingrepo.NewEventRecordRepository(db),
		SetupTokens: setupTokens,
		Referrals:   referralSvc,
		Node:        node,
	})

	return &fixture{db: db, svc: svc, platform: platform, node: node, now: now}
}

func (f *fixture) deliver(t *testing.T, payload string) error {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(testSecret))
	_, err := mac.Write([]byte("1712000000." + payload))
	require.NoError(t, err)

	headers := http.Header{}
	headers.Set("Stripe-Signature",
		fmt.Sprintf("t=1712000000,v1=%s", hex.EncodeToString(mac.Sum(nil))))
	return f.svc.IngestWebhook(context.Background(), "stripe", []byte(payload), headers)
}

func (f *fixture) ledgerCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&domain.EventRecord{}).Count(&n).Error)
	return n
}

func (f *fixture) tokenCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&domain.AccountSetupToken{}).Count(&n).Error)
	return n
}

func checkoutPayload(eventID, sessionID, email string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"type": "checkout.session.completed",
		"created": 1712000000,
		"data": {"object": {
			"id": %q,
			"customer": "cus_42",
			"subscription": "sub_42",
			"customer_email": %q
		}}
	}`, eventID, sessionID, email)
}

func invoicePayload(eventID, vendorKind, invoiceID, subscriptionID string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"type": %q,
		"created": 1712000000,
		"data": {"object": {
			"id": %q,
			"subscription": %q,
			"billing_reason": "subscription_create",
			"amount_paid": 4900,
			"currency": "gbp"
		}}
	}`, eventID, vendorKind, invoiceID, subscriptionID)
}

// -- Tests --

func TestIngestWebhook_UnknownProvider(t *testing.T) {
	f := newFixture(t)
	err := f.svc.IngestWebhook(context.Background(), "paypal", []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func TestIngestWebhook_BadSignatureStopsBeforeLedger(t *testing.T) {
	f := newFixture(t)

	payload := checkoutPayload("evt_1", "cs_1", "owner@fleet.test")
	headers := http.Header{}
	headers.Set("Stripe-Signature", "t=1712000000,v1=deadbeef")

	err := f.svc.IngestWebhook(context.Background(), "stripe", []byte(payload), headers)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	assert.Zero(t, f.ledgerCount(t))
	assert.Zero(t, f.tokenCount(t))
}

func TestIngestWebhook_CheckoutIssuesSetupToken(t *testing.T) {
	f := newFixture(t)

	f.platform.On("GetSubscription", mock.Anything, "sub_42").
		Return(&payment.Subscription{
			ID:              "sub_42",
			Status:          "active",
			ProductMetadata: map[string]string{"tier": "fleet", "vehicle_allowance": "15"},
		}, nil).Once()

	require.NoError(t, f.deliver(t, checkoutPayload("evt_1", "cs_1", "owner@fleet.test")))

	var token domain.AccountSetupToken
	require.NoError(t, f.db.First(&token).Error)
	assert.Equal(t, "owner@fleet.test", token.Email)
	assert.Equal(t, "fleet", token.Tier)
	assert.Equal(t, 15, token.VehicleAllowance)
	assert.Len(t, token.Token, 64)
	assert.True(t, token.ExpiresAt.Equal(f.now.Add(domain.SetupTokenTTL)))
	assert.EqualValues(t, 1, f.ledgerCount(t))
}

func TestIngestWebhook_DuplicateCheckoutIssuesOneToken(t *testing.T) {
	f := newFixture(t)

	f.platform.On("GetSubscription", mock.Anything, "sub_42").
		Return(&payment.Subscription{
			ID:              "sub_42",
			ProductMetadata: map[string]string{"tier": "fleet", "vehicle_allowance": "15"},
		}, nil)

	// Two deliveries of the same session under different vendor event ids
	// share one idempotency key.
	require.NoError(t, f.deliver(t, checkoutPayload("evt_1", "cs_1", "owner@fleet.test")))
	require.NoError(t, f.deliver(t, checkoutPayload("evt_2", "cs_1", "owner@fleet.test")))

	assert.EqualValues(t, 1, f.tokenCount(t))
	assert.EqualValues(t, 1, f.ledgerCount(t))
}

func TestIngestWebhook_CheckoutWithoutEmailSettlesWithoutToken(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.deliver(t, checkoutPayload("evt_1", "cs_1", "")))

	assert.Zero(t, f.tokenCount(t))
	// The delivery still settles so the platform stops retrying it.
	assert.EqualValues(t, 1, f.ledgerCount(t))
}

func TestIngestWebhook_TierLookupFailureFallsBackToDefault(t *testing.T) {
	f := newFixture(t)

	f.platform.On("GetSubscription", mock.Anything, "sub_42").
		Return(nil, payment.ErrSubscriptionNotFound).Once()

	require.NoError(t, f.deliver(t, checkoutPayload("evt_1", "cs_1", "owner@fleet.test")))

	var token domain.AccountSetupToken
	require.NoError(t, f.db.First(&token).Error)
	assert.Equal(t, "starter", token.Tier)
	assert.Equal(t, 5, token.VehicleAllowance)
}

func TestIngestWebhook_InvoiceKindsShareIdempotencyKey(t *testing.T) {
	f := newFixture(t)

	// Same invoice under both vendor event types: the second delivery must
	// settle from the ledger.
	require.NoError(t, f.deliver(t, invoicePayload("evt_1", "invoice.paid", "in_1", "sub_9")))
	require.NoError(t, f.deliver(t, invoicePayload("evt_2", "invoice.payment_succeeded", "in_1", "sub_9")))

	assert.EqualValues(t, 1, f.ledgerCount(t))
}

func TestIngestWebhook_UnsupportedKindIgnoredWithoutLedgerRow(t *testing.T) {
	f := newFixture(t)

	payload := `{"id":"evt_1","type":"customer.updated","data":{"object":{}}}`
	require.NoError(t, f.deliver(t, payload))
	assert.Zero(t, f.ledgerCount(t))
}

func TestIngestWebhook_HandlerFailureLeavesNoLedgerRow(t *testing.T) {
	f := newFixture(t)

	// A qualifying invoice that resolves to a referral whose grant fails must
	// not settle: the delivery has to be retried.
	referrer := &tenantdomain.Tenant{
		ID:                     f.node.Generate(),
		Name:                   "Referrer Ltd",
		PlatformSubscriptionID: "sub_referrer",
		Tier:                   "fleet",
		VehicleAllowance:       15,
		GraceOverage:           3,
		EnforcementMode:        tenantdomain.EnforcementHard,
		CreatedAt:              f.now,
		UpdatedAt:              f.now,
	}
	require.NoError(t, f.db.Create(referrer).Error)
	require.NoError(t, f.db.Create(&referraldomain.Referral{
		ID:               f.node.Generate(),
		Code:             "FLEET-REF",
		ReferrerTenantID: referrer.ID,
		Status:           referraldomain.StatusSignedUp,
		CreatedAt:        f.now,
		UpdatedAt:        f.now,
	}).Error)
	require.NoError(t, f.db.Create(&domain.AccountSetupToken{
		ID:                     f.node.Generate(),
		Token:                  "tok_ref",
		Email:                  "owner@referee.test",
		PlatformSubscriptionID: "sub_9",
		Tier:                   "starter",
		VehicleAllowance:       5,
		ReferralCode:           "FLEET-REF",
		IssuedAt:               f.now,
		ExpiresAt:              f.now.Add(domain.SetupTokenTTL),
	}).Error)

	f.platform.On("CreateApplyOnceDiscount", mock.Anything, mock.Anything).
		Return("", payment.ErrDiscountGrantFailed).Once()

	err := f.deliver(t, invoicePayload("evt_1", "invoice.paid", "in_1", "sub_9"))
	require.Error(t, err)
	assert.Zero(t, f.ledgerCount(t))

	// The retried delivery succeeds once the platform recovers.
	f.platform.On("CreateApplyOnceDiscount", mock.Anything, mock.Anything).
		Return("coupon_1", nil).Once()
	f.platform.On("ApplyDiscountToSubscription", mock.Anything, "sub_referrer", "coupon_1").
		Return(nil).Once()

	require.NoError(t, f.deliver(t, invoicePayload("evt_1", "invoice.paid", "in_1", "sub_9")))
	assert.EqualValues(t, 1, f.ledgerCount(t))

	var referral referraldomain.Referral
	require.NoError(t, f.db.First(&referral, "code = ?", "FLEET-REF").Error)
	assert.Equal(t, referraldomain.StatusRewarded, referral.Status)
	f.platform.AssertExpectations(t)
}

package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/checklanehq/checklane/internal/billing/adapters"
	stripeadapter "github.com/checklanehq/checklane/internal/billing/adapters/stripe"
	billingdomain "github.com/checklanehq/checklane/internal/billing/domain"
	billingrepo "github.com/checklanehq/checklane/internal/billing/repository"
	billingservice "github.com/checklanehq/checklane/internal/billing/service"
	"github.com/checklanehq/checklane/internal/billing/webhook"
	"github.com/checklanehq/checklane/internal/clock"
	"github.com/checklanehq/checklane/internal/config"
	"github.com/checklanehq/checklane/internal/license"
	"github.com/checklanehq/checklane/internal/mailer"
	"github.com/checklanehq/checklane/internal/providers/payment"
	"github.com/checklanehq/checklane/internal/ratelimit"
	referraldomain "github.com/checklanehq/checklane/internal/referral/domain"
	referralrepo "github.com/checklanehq/checklane/internal/referral/repository"
	referralservice "github.com/checklanehq/checklane/internal/referral/service"
	tenantdomain "github.com/checklanehq/checklane/internal/tenant/domain"
	tenantrepo "github.com/checklanehq/checklane/internal/tenant/repository"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "whsec_server_test"

// stubPlatform satisfies the payment platform with canned answers; the server
// tests exercise HTTP behavior, not the platform client.
type stubPlatform struct {
	subscription *payment.Subscription
}

func (s *stubPlatform) GetSubscription(context.Context, string) (*payment.Subscription, error) {
	if s.subscription == nil {
		return nil, payment.ErrSubscriptionNotFound
	}
	return s.subscription, nil
}

func (s *stubPlatform) CreateApplyOnceDiscount(context.Context, string) (string, error) {
	return "coupon_stub", nil
}

func (s *stubPlatform) ApplyDiscountToSubscription(context.Context, string, string) error {
	return nil
}

type fixture struct {
	db     *gorm.DB
	router *gin.Engine
	node   *snowflake.Node
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&billingdomain.EventRecord{},
		&billingdomain.AccountSetupToken{},
		&referraldomain.Referral{},
		&tenantdomain.Tenant{},
		&tenantdomain.Vehicle{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fixed := clock.Fixed(now)
	log := zap.NewNop()
	platform := &stubPlatform{subscription: &payment.Subscription{
		ID:              "sub_42",
		ProductMetadata: map[string]string{"tier": "fleet", "vehicle_allowance": "15"},
	}}

	var cfg config.Config
	cfg.App.BaseURL = "https://app.checklane.test"
	cfg.License.DefaultTier = "starter"
	cfg.License.DefaultAllowance = 5

	tenants := tenantrepo.NewTenantRepository(db)
	tokens := billingrepo.NewSetupTokenRepository(db)
	referralSvc := referralservice.NewService(referralservice.Params{
		DB:          db,
		Logger:      log,
		Clock:       fixed,
		Referrals:   referralrepo.NewReferralRepository(db),
		Tenants:     tenants,
		SetupTokens: tokens,
		Platform:    platform,
	})
	setupTokens := billingservice.NewSetupTokenService(billingservice.SetupTokenParams{
		Config: cfg,
		Logger: log,
		Clock:  fixed,
		Tokens: tokens,
		Tiers: billingservice.NewTierResolver(billingservice.TierResolverParams{
			Config:   cfg,
			Platform: platform,
			Clock:    fixed,
			Logger:   log,
		}),
		Referrals: referralSvc,
		Mail:      mailer.NewLogMailer(log),
		Node:      node,
	})
	webhookSvc := webhook.NewService(webhook.Params{
		Logger:      log,
		Clock:       fixed,
		Registry:    adapters.NewRegistry(stripeadapter.NewAdapter(testSecret)),
		Records:     billingrepo.NewEventRecordRepository(db),
		SetupTokens: setupTokens,
		Referrals:   referralSvc,
		Node:        node,
	})
	licenseSvc := license.NewService(license.ServiceParams{
		DB:      db,
		Log:     log,
		Tenants: tenants,
	})
	limiter := ratelimit.NewLimiter(ratelimit.Params{Config: cfg, Clock: fixed, Logger: log})

	srv := &Server{
		log:         log,
		db:          db,
		webhookSvc:  webhookSvc,
		licenseSvc:  licenseSvc,
		setupTokens: setupTokens,
		limiter:     limiter,
	}

	router := gin.New()
	router.POST("/webhooks/:provider", srv.PostWebhook)
	router.GET("/api/tenants/:id/license", srv.GetLicenseUsage)
	router.POST("/admin/setup-tokens/:id/resend", srv.ResendSetupToken)

	return &fixture{db: db, router: router, node: node, now: now}
}

func (f *fixture) post(path, payload, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(payload)))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	return resp
}

func sign(t *testing.T, payload string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(testSecret))
	_, err := mac.Write([]byte("1712000000." + payload))
	require.NoError(t, err)
	return fmt.Sprintf("t=1712000000,v1=%s", hex.EncodeToString(mac.Sum(nil)))
}

func checkoutPayload(email string) string {
	return fmt.Sprintf(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"customer": "cus_42",
			"subscription": "sub_42",
			"customer_email": %q
		}}
	}`, email)
}

func (f *fixture) tokenCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&billingdomain.AccountSetupToken{}).Count(&n).Error)
	return n
}

func TestPostWebhook_ValidDelivery(t *testing.T) {
	f := newFixture(t)
	payload := checkoutPayload("owner@fleet.test")

	resp := f.post("/webhooks/stripe", payload, sign(t, payload))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.EqualValues(t, 1, f.tokenCount(t))
}

func TestPostWebhook_MissingSignatureRejectedBeforeAnyWrite(t *testing.T) {
	f := newFixture(t)

	resp := f.post("/webhooks/stripe", checkoutPayload("owner@fleet.test"), "")

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Zero(t, f.tokenCount(t))
	var records int64
	require.NoError(t, f.db.Model(&billingdomain.EventRecord{}).Count(&records).Error)
	assert.Zero(t, records)
}

func TestPostWebhook_UnknownProvider(t *testing.T) {
	f := newFixture(t)
	resp := f.post("/webhooks/paypal", `{}`, "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestPostWebhook_CheckoutWithoutEmailStillAccepted(t *testing.T) {
	f := newFixture(t)
	payload := checkoutPayload("")

	resp := f.post("/webhooks/stripe", payload, sign(t, payload))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Zero(t, f.tokenCount(t))
}

func TestGetLicenseUsage(t *testing.T) {
	f := newFixture(t)

	tenant := &tenantdomain.Tenant{
		ID:               f.node.Generate(),
		Name:             "Acme Haulage",
		Tier:             "fleet",
		VehicleAllowance: 15,
		GraceOverage:     3,
		EnforcementMode:  tenantdomain.EnforcementHard,
		CreatedAt:        f.now,
		UpdatedAt:        f.now,
	}
	require.NoError(t, f.db.Create(tenant).Error)
	for i := 0; i < 16; i++ {
		require.NoError(t, f.db.Create(&tenantdomain.Vehicle{
			ID:           f.node.Generate(),
			TenantID:     tenant.ID,
			Registration: fmt.Sprintf("AB%02d CDE", i),
			Status:       tenantdomain.VehicleStatusActive,
			CreatedAt:    f.now,
			UpdatedAt:    f.now,
		}).Error)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/tenants/"+tenant.ID.String()+"/license", nil)
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"in_grace"`)
}

func TestGetLicenseUsage_UnknownTenant(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/tenants/123456789/license", nil)
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestResendSetupToken(t *testing.T) {
	f := newFixture(t)

	token := &billingdomain.AccountSetupToken{
		ID:               f.node.Generate(),
		Token:            "tok_live",
		Email:            "owner@fleet.test",
		Tier:             "fleet",
		VehicleAllowance: 15,
		IssuedAt:         f.now,
		ExpiresAt:        f.now.Add(billingdomain.SetupTokenTTL),
	}
	require.NoError(t, f.db.Create(token).Error)

	resp := f.post("/admin/setup-tokens/"+token.ID.String()+"/resend", "", "")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestResendSetupToken_Expired(t *testing.T) {
	f := newFixture(t)

	token := &billingdomain.AccountSetupToken{
		ID:               f.node.Generate(),
		Token:            "tok_dead",
		Email:            "owner@fleet.test",
		Tier:             "fleet",
		VehicleAllowance: 15,
		IssuedAt:         f.now.Add(-3 * 24 * time.Hour),
		ExpiresAt:        f.now.Add(-24 * time.Hour),
	}
	require.NoError(t, f.db.Create(token).Error)

	resp := f.post("/admin/setup-tokens/"+token.ID.String()+"/resend", "", "")
	assert.Equal(t, http.StatusConflict, resp.Code)
}

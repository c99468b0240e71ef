package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// SetupTokenTTL bounds how long a setup link stays redeemable after issuance.
const SetupTokenTTL = 48 * time.Hour

// EventRecord is a write-once fence in the idempotency ledger. It is created
// at first successful processing of an idempotency key and never updated; the
// unique index on ProviderEventID enforces at-most-once handler execution.
type EventRecord struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	ProviderEventID string       `json:"provider_event_id" gorm:"type:text;not null;uniqueIndex:uq_webhook_event_records_provider_event_id"`
	Kind            EventKind    `json:"kind" gorm:"type:text;not null"`
	// Payload keeps the verified raw delivery for audit and replay debugging.
	Payload     datatypes.JSON `json:"payload"`
	ProcessedAt time.Time      `json:"processed_at" gorm:"not null"`
}

func (EventRecord) TableName() string { return "webhook_event_records" }

// AccountSetupToken bootstraps a new tenant account after purchase. Tier,
// allowance, and referral code are snapshotted at issuance so redemption does
// not depend on the upstream subscription object remaining unchanged.
type AccountSetupToken struct {
	ID                     snowflake.ID `json:"id" gorm:"primaryKey"`
	Token                  string       `json:"-" gorm:"type:text;not null;uniqueIndex:uq_account_setup_tokens_token"`
	Email                  string       `json:"email" gorm:"type:text;not null"`
	PlatformCustomerID     string       `json:"platform_customer_id" gorm:"type:text"`
	PlatformSubscriptionID string       `json:"platform_subscription_id" gorm:"type:text;index"`
	Tier                   string       `json:"tier" gorm:"type:text;not null"`
	VehicleAllowance       int          `json:"vehicle_allowance" gorm:"not null"`
	ReferralCode           string       `json:"referral_code" gorm:"type:text"`
	IssuedAt               time.Time    `json:"issued_at" gorm:"not null"`
	ExpiresAt              time.Time    `json:"expires_at" gorm:"not null"`
	ConsumedAt             *time.Time   `json:"consumed_at"`
}

func (AccountSetupToken) TableName() string { return "account_setup_tokens" }

// Redeemable reports whether the token can still be consumed. Redemption
// itself happens in the external provisioning flow.
func (t AccountSetupToken) Redeemable(now time.Time) bool {
	return t.ConsumedAt == nil && now.Before(t.ExpiresAt)
}

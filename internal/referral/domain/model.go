package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/checklanehq/checklane/internal/billing/domain"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSignedUp  Status = "signed_up"
	StatusConverted Status = "converted"
	StatusRewarded  Status = "rewarded"
)

// rank orders statuses along the only legal direction of travel. A referral
// never moves to a lower rank; rewarded is terminal.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusSignedUp:
		return 1
	case StatusConverted:
		return 2
	case StatusRewarded:
		return 3
	}
	return -1
}

// CanAdvanceTo reports whether moving to next would keep the status
// monotonically non-decreasing.
func (s Status) CanAdvanceTo(next Status) bool {
	return next.rank() > s.rank()
}

const (
	RewardTypeFreePeriod = "free_period"
)

var (
	ErrReferralNotFound = errors.New("referral_not_found")
	ErrAlreadyProcessed = errors.New("referral_already_processed")
)

type Referral struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	Code             string       `json:"code" gorm:"type:text;not null;uniqueIndex:uq_referrals_code"`
	ReferrerTenantID snowflake.ID `json:"referrer_tenant_id" gorm:"not null"`
	Status           Status       `json:"status" gorm:"type:text;not null;default:pending"`
	RewardType       string       `json:"reward_type" gorm:"type:text"`
	RewardValue      int          `json:"reward_value" gorm:"not null;default:0"`
	RewardClaimed    bool         `json:"reward_claimed" gorm:"not null;default:false"`
	DiscountGrantID  string       `json:"discount_grant_id" gorm:"type:text"`
	SignedUpAt       *time.Time   `json:"signed_up_at"`
	ConvertedAt      *time.Time   `json:"converted_at"`
	RewardedAt       *time.Time   `json:"rewarded_at"`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time    `json:"updated_at" gorm:"not null"`
}

func (Referral) TableName() string { return "referrals" }

// Repository transitions are guarded updates: each WHERE clause restates the
// legal prior states, so a lost race or duplicate delivery affects zero rows
// instead of regressing the state machine.
type Repository interface {
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Referral, error)
	MarkSignedUp(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	MarkConverted(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	MarkRewarded(ctx context.Context, db *gorm.DB, id snowflake.ID, discountGrantID string, now time.Time) (bool, error)
	ListDeferredRewards(ctx context.Context, db *gorm.DB, limit int) ([]Referral, error)
}

type Service interface {
	// RecordSignup advances a pending referral to signed_up. Any other
	// current status is reported as ErrAlreadyProcessed and left untouched.
	RecordSignup(ctx context.Context, code string) error
	// HandleInvoicePaid advances the referral belonging to a qualifying paid
	// invoice toward converted/rewarded. Non-qualifying invoices and unknown
	// referrals are no-ops.
	HandleInvoicePaid(ctx context.Context, invoice *billingdomain.Invoice) error
	// RetryDeferredRewards revisits converted-but-unclaimed referrals and
	// attempts the withheld grant again. Returns how many were rewarded.
	RetryDeferredRewards(ctx context.Context, limit int) (int, error)
}

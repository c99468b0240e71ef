package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/checklanehq/checklane/internal/referral/domain"
	"gorm.io/gorm"
)

type referralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) domain.Repository {
	return &referralRepository{db: db}
}

func (r *referralRepository) conn(db *gorm.DB) *gorm.DB {
	if db != nil {
		return db
	}
	return r.db
}

func (r *referralRepository) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Referral, error) {
	var referral domain.Referral
	err := r.conn(db).WithContext(ctx).Where("code = ?", code).First(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &referral, nil
}

func (r *referralRepository) MarkSignedUp(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := r.conn(db).WithContext(ctx).Model(&domain.Referral{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{
			"status":       domain.StatusSignedUp,
			"signed_up_at": now,
			"updated_at":   now,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *referralRepository) MarkConverted(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := r.conn(db).WithContext(ctx).Model(&domain.Referral{}).
		Where("id = ? AND status = ?", id, domain.StatusSignedUp).
		Updates(map[string]any{
			"status":       domain.StatusConverted,
			"converted_at": now,
			"updated_at":   now,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *referralRepository) MarkRewarded(ctx context.Context, db *gorm.DB, id snowflake.ID, discountGrantID string, now time.Time) (bool, error) {
	res := r.conn(db).WithContext(ctx).Model(&domain.Referral{}).
		Where("id = ? AND status IN ? AND reward_claimed = ?",
			id, []domain.Status{domain.StatusSignedUp, domain.StatusConverted}, false).
		Updates(map[string]any{
			"status":            domain.StatusRewarded,
			"reward_type":       domain.RewardTypeFreePeriod,
			"reward_value":      1,
			"reward_claimed":    true,
			"discount_grant_id": discountGrantID,
			"converted_at":      gorm.Expr("COALESCE(converted_at, ?)", now),
			"rewarded_at":       now,
			"updated_at":        now,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *referralRepository) ListDeferredRewards(ctx context.Context, db *gorm.DB, limit int) ([]domain.Referral, error) {
	var referrals []domain.Referral
	err := r.conn(db).WithContext(ctx).
		Where("status = ? AND reward_claimed = ?", domain.StatusConverted, false).
		Order("converted_at ASC").
		Limit(limit).
		Find(&referrals).Error
	if err != nil {
		return nil, err
	}
	return referrals, nil
}

package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/checklanehq/checklane/internal/billing/domain"
	"gorm.io/gorm"
)

type setupTokenRepo struct {
	db *gorm.DB
}

func NewSetupTokenRepository(db *gorm.DB) domain.SetupTokenRepository {
	return &setupTokenRepo{db: db}
}

func (r *setupTokenRepo) Insert(ctx context.Context, db *gorm.DB, token *domain.AccountSetupToken) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(token).Error
}

func (r *setupTokenRepo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.AccountSetupToken, error) {
	if db == nil {
		db = r.db
	}
	var token domain.AccountSetupToken
	if err := db.WithContext(ctx).First(&token, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

// FindByPlatformSubscriptionID resolves the most recent token issued for a
// subscription. The referral engine reads its snapshotted referral code when
// the paying subscription carries no code of its own.
func (r *setupTokenRepo) FindByPlatformSubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*domain.AccountSetupToken, error) {
	if db == nil {
		db = r.db
	}
	if subscriptionID == "" {
		return nil, nil
	}
	var token domain.AccountSetupToken
	if err := db.WithContext(ctx).
		Where("platform_subscription_id = ?", subscriptionID).
		Order("issued_at DESC").
		First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

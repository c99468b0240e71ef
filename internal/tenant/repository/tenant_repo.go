package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/checklanehq/checklane/internal/tenant/domain"
	"gorm.io/gorm"
)

type tenantRepo struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) domain.Repository {
	return &tenantRepo{db: db}
}

func (r *tenantRepo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Tenant, error) {
	if db == nil {
		db = r.db
	}
	var tenant domain.Tenant
	if err := db.WithContext(ctx).First(&tenant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepo) FindByPlatformSubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*domain.Tenant, error) {
	if db == nil {
		db = r.db
	}
	var tenant domain.Tenant
	if err := db.WithContext(ctx).
		Where("platform_subscription_id = ?", subscriptionID).
		First(&tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepo) CountActiveVehicles(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (int, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Vehicle{}).
		Where("tenant_id = ? AND status = ?", tenantID, domain.VehicleStatusActive).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

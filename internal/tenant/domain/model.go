package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type EnforcementMode string

const (
	// EnforcementHard refuses vehicle creation above the hard limit.
	EnforcementHard EnforcementMode = "hard"
	// EnforcementWarn records the overage but never blocks.
	EnforcementWarn EnforcementMode = "warn"
)

var (
	ErrTenantNotFound  = errors.New("tenant_not_found")
	ErrInvalidTenantID = errors.New("invalid_tenant_id")
)

// Tenant carries the license fields this engine reads. The license state is
// derived; only the external billing/plan-change flow writes tier and
// allowance values here.
type Tenant struct {
	ID                     snowflake.ID    `json:"id" gorm:"primaryKey"`
	Name                   string          `json:"name" gorm:"type:text;not null"`
	PlatformCustomerID     string          `json:"platform_customer_id" gorm:"type:text"`
	PlatformSubscriptionID string          `json:"platform_subscription_id" gorm:"type:text;index"`
	Tier                   string          `json:"tier" gorm:"type:text;not null;default:starter"`
	VehicleAllowance       int             `json:"vehicle_allowance" gorm:"not null;default:5"`
	GraceOverage           int             `json:"grace_overage" gorm:"not null;default:3"`
	EnforcementMode        EnforcementMode `json:"enforcement_mode" gorm:"type:text;not null;default:hard"`
	CreatedAt              time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt              time.Time       `json:"updated_at" gorm:"not null"`
}

func (Tenant) TableName() string { return "tenants" }

// HardLimit is always derived from allowance plus grace overage, never stored.
func (t Tenant) HardLimit() int { return t.VehicleAllowance + t.GraceOverage }

// HasChargeableSubscription reports whether a referral reward can be credited
// against this tenant's subscription right now.
func (t Tenant) HasChargeableSubscription() bool {
	return t.PlatformSubscriptionID != ""
}

type VehicleStatus string

const (
	VehicleStatusActive   VehicleStatus = "active"
	VehicleStatusArchived VehicleStatus = "archived"
)

// Vehicle is the minimal shape the license evaluator needs; full vehicle CRUD
// lives outside this engine.
type Vehicle struct {
	ID           snowflake.ID  `json:"id" gorm:"primaryKey"`
	TenantID     snowflake.ID  `json:"tenant_id" gorm:"not null;index"`
	Registration string        `json:"registration" gorm:"type:text;not null"`
	Status       VehicleStatus `json:"status" gorm:"type:text;not null;default:active"`
	CreatedAt    time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time     `json:"updated_at" gorm:"not null"`
}

func (Vehicle) TableName() string { return "vehicles" }

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tenant, error)
	FindByPlatformSubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*Tenant, error)
	CountActiveVehicles(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (int, error)
}

package license

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	tenantdomain "github.com/checklanehq/checklane/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	tenants tenantdomain.Repository
}

type ServiceParams struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Tenants tenantdomain.Repository
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("license"),
		tenants: p.Tenants,
	}
}

// Usage evaluates the tenant's current license state.
func (s *Service) Usage(ctx context.Context, tenantID snowflake.ID) (Usage, error) {
	tenant, err := s.tenants.FindByID(ctx, nil, tenantID)
	if err != nil {
		return Usage{}, fmt.Errorf("load tenant: %w", err)
	}
	if tenant == nil {
		return Usage{}, tenantdomain.ErrTenantNotFound
	}

	count, err := s.tenants.CountActiveVehicles(ctx, nil, tenantID)
	if err != nil {
		return Usage{}, fmt.Errorf("count active vehicles: %w", err)
	}

	return Evaluate(count, tenant.VehicleAllowance, tenant.GraceOverage), nil
}

// CheckVehicleCapacity is consulted by the vehicle-creation flow before a new
// vehicle may be added. Over the hard limit it returns ErrCapacityExceeded
// unless the tenant's enforcement mode is warn-only.
func (s *Service) CheckVehicleCapacity(ctx context.Context, tenantID snowflake.ID) (Usage, error) {
	tenant, err := s.tenants.FindByID(ctx, nil, tenantID)
	if err != nil {
		return Usage{}, fmt.Errorf("load tenant: %w", err)
	}
	if tenant == nil {
		return Usage{}, tenantdomain.ErrTenantNotFound
	}

	count, err := s.tenants.CountActiveVehicles(ctx, nil, tenantID)
	if err != nil {
		return Usage{}, fmt.Errorf("count active vehicles: %w", err)
	}

	usage := Evaluate(count, tenant.VehicleAllowance, tenant.GraceOverage)

	// The check runs against the would-be count: creation is refused when one
	// more vehicle would land over the hard limit.
	prospective := Evaluate(count+1, tenant.VehicleAllowance, tenant.GraceOverage)
	if prospective.State == StateOverHardLimit {
		if tenant.EnforcementMode == tenantdomain.EnforcementWarn {
			s.log.Warn("vehicle capacity exceeded, warn-only enforcement",
				zap.Int64("tenant_id", int64(tenantID)),
				zap.Int("active_vehicles", count),
				zap.Int("hard_limit", usage.HardLimit))
			return usage, nil
		}
		return usage, ErrCapacityExceeded
	}
	return usage, nil
}

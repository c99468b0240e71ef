package tenant

import (
	"github.com/checklanehq/checklane/internal/tenant/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("tenant",
	fx.Provide(repository.NewTenantRepository),
)

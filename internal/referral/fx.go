package referral

import (
	"github.com/checklanehq/checklane/internal/referral/repository"
	"github.com/checklanehq/checklane/internal/referral/service"
	"go.uber.org/fx"
)

var Module = fx.Module("referral",
	fx.Provide(
		repository.NewReferralRepository,
		service.NewService,
	),
)

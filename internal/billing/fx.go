package billing

import (
	"github.com/checklanehq/checklane/internal/billing/adapters"
	"github.com/checklanehq/checklane/internal/billing/adapters/stripe"
	"github.com/checklanehq/checklane/internal/billing/repository"
	"github.com/checklanehq/checklane/internal/billing/service"
	"github.com/checklanehq/checklane/internal/billing/webhook"
	"github.com/checklanehq/checklane/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("billing",
	fx.Provide(
		repository.NewEventRecordRepository,
		repository.NewSetupTokenRepository,
		service.NewTierResolver,
		service.NewSetupTokenService,
		webhook.NewService,
		func(cfg config.Config) *adapters.Registry {
			return adapters.NewRegistry(
				stripe.NewAdapter(cfg.Stripe.WebhookSecret),
			)
		},
	),
)

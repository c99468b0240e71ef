package payment

import (
	"github.com/checklanehq/checklane/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.payment",
	fx.Provide(func(cfg config.Config, log *zap.Logger) Platform {
		return NewStripePlatform(cfg.Stripe.APIKey, log)
	}),
)

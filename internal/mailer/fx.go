package mailer

import (
	"github.com/checklanehq/checklane/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("mailer",
	fx.Provide(func(cfg config.Config, log *zap.Logger) Mailer {
		if cfg.Mailer.APIKey == "" {
			return NewLogMailer(log)
		}
		return NewResendMailer(cfg.Mailer.BaseURL, cfg.Mailer.APIKey, cfg.Mailer.FromAddress)
	}),
)

package mailer

import (
	"context"

	"go.uber.org/zap"
)

// logMailer stands in when no email API key is configured, so development
// environments still show what would have been sent.
type logMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) Mailer {
	return &logMailer{log: log.Named("mailer.log")}
}

func (m *logMailer) SendSetupLink(_ context.Context, email SetupLinkEmail) error {
	m.log.Info("setup link email (not sent, no mailer configured)",
		zap.String("to", email.To),
		zap.String("tier", email.TierLabel),
		zap.String("url", email.RedemptionURL))
	return nil
}

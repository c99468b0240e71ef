package scheduler

import (
	"context"

	billingdomain "github.com/checklanehq/checklane/internal/billing/domain"
	"go.uber.org/zap"
)

// CleanupWebhookLedgerJob trims idempotency ledger rows older than the
// retention window. Platforms stop redelivering events long before the window
// closes, so dropping old rows cannot re-open a duplicate.
func (s *Scheduler) CleanupWebhookLedgerJob(ctx context.Context) error {
	retentionDays := s.cfg.Scheduler.WebhookRetentionDays
	if retentionDays <= 0 {
		s.log.Info("webhook ledger retention disabled", zap.Int("days", retentionDays))
		return nil
	}

	run := s.startJobRun(ctx, "cleanup_webhook_ledger")

	cutoff := s.clock.Now(ctx).AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).
		Delete(&billingdomain.EventRecord{}, "processed_at < ?", cutoff)

	deleted := int(result.RowsAffected)
	s.finishJobRun(ctx, run, deleted, result.Error)
	if result.Error != nil {
		return result.Error
	}
	if deleted > 0 {
		s.log.Info("webhook ledger trimmed",
			zap.Int("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
	return nil
}

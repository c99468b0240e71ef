package scheduler

import (
	"context"

	"go.uber.org/zap"
)

// RewardSweepJob retries referral rewards that were deferred because the
// referrer had no chargeable subscription when the referee converted.
func (s *Scheduler) RewardSweepJob(ctx context.Context) error {
	run := s.startJobRun(ctx, "referral_reward_sweep")

	batch := s.cfg.Scheduler.RewardSweepBatchSize
	if batch <= 0 {
		batch = 100
	}

	rewarded, err := s.referrals.RetryDeferredRewards(ctx, batch)
	s.finishJobRun(ctx, run, rewarded, err)
	if err != nil {
		return err
	}
	if rewarded > 0 {
		s.log.Info("deferred rewards granted", zap.Int("count", rewarded))
	}
	return nil
}

// Package scheduler runs the periodic maintenance jobs: the deferred referral
// reward sweep and webhook ledger retention.
package scheduler

import (
	"context"
	"time"

	"github.com/checklanehq/checklane/internal/clock"
	"github.com/checklanehq/checklane/internal/config"
	referraldomain "github.com/checklanehq/checklane/internal/referral/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Scheduler struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	cfg       config.Config
	referrals referraldomain.Service
}

type Params struct {
	fx.In

	DB        *gorm.DB
	Logger    *zap.Logger
	Clock     clock.Clock
	Config    config.Config
	Referrals referraldomain.Service
}

func NewScheduler(p Params) *Scheduler {
	return &Scheduler{
		db:        p.DB,
		log:       p.Logger.Named("scheduler"),
		clock:     p.Clock,
		cfg:       p.Config,
		referrals: p.Referrals,
	}
}

// RunForever ticks at the configured interval until ctx is cancelled. Every
// tick runs all jobs; a failing job is logged and retried next tick.
func (s *Scheduler) RunForever(ctx context.Context) {
	interval := time.Duration(s.cfg.Scheduler.IntervalSeconds) * time.Second
	s.log.Info("scheduler started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.runAll(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runAll(ctx context.Context) {
	if err := s.RewardSweepJob(ctx); err != nil {
		s.log.Error("reward sweep failed", zap.Error(err))
	}
	if err := s.CleanupWebhookLedgerJob(ctx); err != nil {
		s.log.Error("webhook ledger cleanup failed", zap.Error(err))
	}
}

// Module wires the scheduler without starting it; the scheduler entrypoint
// invokes Run.
var Module = fx.Module("scheduler",
	fx.Provide(NewScheduler),
)

// Run starts the scheduler loop under the fx lifecycle.
func Run(lc fx.Lifecycle, s *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				s.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

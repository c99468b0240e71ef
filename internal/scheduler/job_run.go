package scheduler

import (
	"context"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// JobRun is the audit row for one execution of a scheduler job.
type JobRun struct {
	ID         string    `gorm:"primaryKey"`
	JobName    string    `gorm:"not null"`
	StartedAt  time.Time `gorm:"not null"`
	FinishedAt *time.Time
	Processed  int `gorm:"not null;default:0"`
	LastError  string
}

func (JobRun) TableName() string { return "scheduler_job_runs" }

// startJobRun opens the audit row for a job execution. Run ids are ULIDs so
// they sort by start time in the table.
func (s *Scheduler) startJobRun(ctx context.Context, jobName string) *JobRun {
	now := s.clock.Now(ctx)
	run := &JobRun{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.New(rand.NewSource(now.UnixNano()))).String(),
		JobName:   jobName,
		StartedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		s.log.Warn("job run not recorded", zap.String("job", jobName), zap.Error(err))
	}
	s.log.Info("job started", zap.String("job", jobName), zap.String("run_id", run.ID))
	return run
}

// finishJobRun closes the audit row with the outcome.
func (s *Scheduler) finishJobRun(ctx context.Context, run *JobRun, processed int, jobErr error) {
	now := s.clock.Now(ctx)
	run.FinishedAt = &now
	run.Processed = processed
	if jobErr != nil {
		run.LastError = jobErr.Error()
	}
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		s.log.Warn("job run not updated", zap.String("job", run.JobName), zap.Error(err))
	}
	s.log.Info("job finished",
		zap.String("job", run.JobName),
		zap.String("run_id", run.ID),
		zap.Int("processed", processed),
		zap.Error(jobErr))
}

package worker

import (
	"context"
	"fmt"
	"time"

	"retail-order-service/internal/util"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// OTPPurger clears expired password reset codes
type OTPPurger interface {
	PurgeExpiredOTPs(ctx context.Context) (int64, error)
}

// Scheduler runs periodic maintenance jobs
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// NewScheduler creates a stopped scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithParser(cronParser)),
		logger: util.GetLogger(),
	}
}

// AddOTPReaper registers the expired OTP cleanup on the given schedule
func (s *Scheduler) AddOTPReaper(schedule string, purger OTPPurger) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := purger.PurgeExpiredOTPs(ctx); err != nil {
			s.logger.Error("OTP reaper failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid OTP reaper schedule %q: %w", schedule, err)
	}
	return nil
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler", zap.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs or ctx, whichever ends first
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
	}
}

package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/services"
)

const sweepBatch = 200

// Sweeper periodically re-enqueues verification for submissions that have waited longer than
// stale without a verdict.
type Sweeper struct {
	scheduler gocron.Scheduler
	missions  services.IMissionService
	interval  time.Duration
	stale     time.Duration
	logger    *zap.Logger
}

func NewSweeper(missions services.IMissionService, interval, stale time.Duration, clock clockwork.Clock, logger *zap.Logger) (*Sweeper, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", interval)
	}
	sched, err := gocron.NewScheduler(gocron.WithClock(clock), gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Sweeper{scheduler: sched, missions: missions, interval: interval, stale: stale, logger: logger}, nil
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			s.Sweep(context.Background())
		}),
		gocron.WithName("requeue-stale-verifications"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	s.scheduler.Start()
	s.logger.Info("Verification sweeper started", zap.Duration("interval", s.interval), zap.Duration("stale", s.stale))
	return nil
}

// Sweep runs one pass and returns how many missions were re-enqueued.
func (s *Sweeper) Sweep(ctx context.Context) int {
	n, err := s.missions.RequeueStale(ctx, s.stale, sweepBatch)
	if err != nil {
		s.logger.Error("Sweep failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		s.logger.Info("Requeued stale verifications", zap.Int("count", n))
	}
	return n
}

func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}

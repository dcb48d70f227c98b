package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// StartExpiryScheduler runs Sweep every interval until the returned
// scheduler is shut down.
func (s *MatchmakingService) StartExpiryScheduler(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, eris.Wrap(err, "failed to create scheduler")
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.Sweep(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, eris.Wrap(err, "failed to schedule expiry sweep")
	}

	sched.Start()
	s.log.Info("⏱️ expiry sweeper started", zap.Duration("interval", interval))
	return sched, nil
}

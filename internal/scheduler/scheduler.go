package scheduler

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/elonfeng/presence/internal/cache"
	"github.com/elonfeng/presence/internal/logging"
)

// DefaultInterval is used when no purge interval is configured.
const DefaultInterval = 10 * time.Minute

// Scheduler drops expired cache entries on a fixed interval so a
// long-running server does not grow its cache without bound.
type Scheduler struct {
	purger   cache.Purger
	clock    clock.Clock
	interval time.Duration
	logger   *logrus.Entry
}

// New creates a scheduler. clk defaults to the wall clock.
func New(purger cache.Purger, interval time.Duration, clk clock.Clock, logger *logrus.Entry) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Scheduler{
		purger:   purger,
		clock:    clk,
		interval: interval,
		logger:   logging.OrDiscard(logger).WithField("component", "cache-purge"),
	}
}

// Run purges once per interval. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.WithField("interval", s.interval).Debug("scheduler running")
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("scheduler stopped")
			return ctx.Err()
		case <-s.clock.After(s.interval):
			s.purge(ctx)
		}
	}
}

func (s *Scheduler) purge(ctx context.Context) {
	n, err := s.purger.Purge(ctx)
	if err != nil {
		s.logger.WithField("err", err).Warn("cache purge failed")
		return
	}
	if n > 0 {
		s.logger.WithField("entries", n).Debug("purged expired cache entries")
	}
}

package yamaha

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/iszland/snappy-bridge/internal/infrastructure/config"
	"github.com/iszland/snappy-bridge/internal/infrastructure/logging"
)

// Scheduler drives receiver polling on a fixed tick.
//
// Each tick launches one poll per receiver, bounded by a weighted semaphore
// so at most MaxConcurrent receivers are in flight at once. Ticks are not
// serialised: a slow receiver does not delay the next tick. A receiver whose
// previous poll is still running is skipped for the tick, and the receiver
// lock is taken before a semaphore slot, so a stuck receiver holds at most
// its own slot and never starves the others.
type Scheduler struct {
	poller    *Poller
	receivers []*ReceiverState
	interval  time.Duration
	sem       *semaphore.Weighted
	logger    *logging.Logger
}

// NewScheduler creates a scheduler for the configured receivers.
func NewScheduler(cfg config.YamahaConfig, poller *Poller, logger *logging.Logger) *Scheduler {
	receivers := make([]*ReceiverState, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		receivers = append(receivers, NewReceiverState(src.Source, src.URL))
	}

	return &Scheduler{
		poller:    poller,
		receivers: receivers,
		interval:  time.Duration(cfg.PollInterval) * time.Second,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:    logger,
	}
}

// Run polls until the context is cancelled. It blocks; run it in its own
// goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	if len(s.receivers) == 0 {
		s.logger.Info("no receivers configured, poll scheduler idle")
		<-ctx.Done()
		return
	}

	s.logger.Info("poll scheduler starting",
		"receivers", len(s.receivers), "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick launches one poll per receiver. Receiver failures are isolated from
// each other; a receiver that is down only logs its own poll errors.
//
// The receiver lock is acquired first, non-blocking. Only a goroutine that
// holds its receiver's lock may wait on the semaphore, which bounds waiters
// at one per receiver and keeps slots away from polls that would only queue
// behind an in-flight one.
func (s *Scheduler) tick(ctx context.Context) {
	for _, state := range s.receivers {
		go func(state *ReceiverState) {
			if !state.mu.TryLock() {
				s.logger.Debug("previous poll still in flight, skipping tick",
					"source", state.Source)
				return
			}
			defer state.mu.Unlock()

			if err := s.sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer s.sem.Release(1)

			s.poller.pollZones(ctx, state)
		}(state)
	}
}

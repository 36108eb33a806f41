// Package sweeper drives the period_end lifecycle transition. The elapsed
// billing period has no webhook of its own, so the trigger is made explicit
// here: a background loop (and an internal HTTP endpoint sharing RunOnce)
// finds records whose period ended while billing was past_due or canceled and
// applies the transition through the subscription store.
package sweeper

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"finwise/api/logger"
	"finwise/api/models"
	"finwise/api/subscription"
)

// Store is the slice of the subscription store the sweeper needs.
type Store interface {
	ListPeriodEndCandidates(ctx context.Context, now time.Time) ([]string, error)
	ApplyTransition(ctx context.Context, userID string, in subscription.Input) (*models.Subscription, error)
}

type Sweeper struct {
	store    Store
	interval time.Duration

	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc

	// now is swappable in tests.
	now func() time.Time
}

func New(store Store, interval time.Duration) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		store:      store,
		interval:   interval,
		ctx:        ctx,
		cancelFunc: cancel,
		now:        time.Now,
	}
}

// Start launches the periodic sweep loop.
func (s *Sweeper) Start() {
	logger.Get().Info("Starting period-end sweeper", zap.Duration("interval", s.interval))
	s.wg.Add(1)
	go s.loop()
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	logger.Get().Info("Stopping period-end sweeper")
	s.cancelFunc()
	s.wg.Wait()
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(s.ctx); err != nil {
				logger.Get().Error("period-end sweep failed", zap.Error(err))
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// RunOnce performs a single sweep and returns how many records transitioned.
// Each candidate goes through ApplyTransition individually, so the store's
// row lock re-validates the precondition against fresh state; a candidate
// that recovered between the listing and the lock is left alone.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	now := s.now().UTC()
	userIDs, err := s.store.ListPeriodEndCandidates(ctx, now)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, userID := range userIDs {
		if _, err := s.store.ApplyTransition(ctx, userID, subscription.Input{
			Transition: subscription.PeriodEnd,
		}); err != nil {
			logger.Get().Error("period_end transition failed",
				zap.String("user_id", userID), zap.Error(err))
			continue
		}
		swept++
	}

	if swept > 0 {
		logger.Get().Info("period-end sweep complete", zap.Int("swept", swept))
	}
	return swept, nil
}

// Package scheduler provides the timers that drive the engine: a
// fixed-interval ticker with overlap coalescing and a once-a-day
// wall-clock trigger.
package scheduler

import (
	"context"
	"time"

	"github.com/CodeShali/scalp-bot/internal/logger"
)

// Interval runs a task on a fixed period. The task executes inline on
// the scheduler goroutine, so a slow run coalesces the ticks it missed
// instead of queueing them.
type Interval struct {
	Name           string
	Every          time.Duration
	RunImmediately bool
}

// Run blocks until ctx is canceled.
func (s Interval) Run(ctx context.Context, task func(context.Context)) {
	if s.Every <= 0 || task == nil {
		logger.Warnf("scheduler %s: invalid interval %s, exit", s.Name, s.Every)
		return
	}
	logger.Infof("scheduler %s: every %s", s.Name, s.Every)

	if s.RunImmediately {
		task(ctx)
	}

	ticker := time.NewTicker(s.Every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("scheduler %s: ctx done, exit", s.Name)
			return
		case <-ticker.C:
		}
		task(ctx)
		// Drop any tick that fired while the task ran.
		select {
		case <-ticker.C:
		default:
		}
	}
}

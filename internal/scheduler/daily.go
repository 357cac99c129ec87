package scheduler

import (
	"context"
	"time"

	"github.com/CodeShali/scalp-bot/internal/logger"
	"github.com/CodeShali/scalp-bot/internal/pkg/timeutil"
)

// Daily fires a task once per day at a fixed Eastern wall-clock time.
type Daily struct {
	Name         string
	ClockMinutes int
	// RunImmediatelyIfPast fires right away when today's trigger time
	// has already gone by at startup.
	RunImmediatelyIfPast bool

	nowFn func() time.Time
}

// Run blocks until ctx is canceled.
func (s Daily) Run(ctx context.Context, task func(context.Context)) {
	if task == nil {
		return
	}
	now := s.now()
	logger.Infof("scheduler %s: daily at %02d:%02d ET", s.Name, s.ClockMinutes/60, s.ClockMinutes%60)

	if s.RunImmediatelyIfPast && timeutil.AtOrPastClock(now, s.ClockMinutes) {
		task(ctx)
	}

	for {
		next := timeutil.NextClock(s.now(), s.ClockMinutes)
		if !s.waitUntil(ctx, next) {
			logger.Infof("scheduler %s: ctx done, exit", s.Name)
			return
		}
		task(ctx)
	}
}

func (s Daily) waitUntil(ctx context.Context, target time.Time) bool {
	wait := target.Sub(s.now())
	if wait <= 0 {
		wait = time.Second
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s Daily) now() time.Time {
	if s.nowFn != nil {
		return s.nowFn()
	}
	return timeutil.EasternNow()
}

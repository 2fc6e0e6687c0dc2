// Package scheduler drives the live order manager through the trading
// day. It owns the only loop in the live pipeline: wake on a fixed
// interval, check the market calendar, and hand control to the registered
// drive function for as long as the market is open, per spec.md §5's
// single-threaded, synchronous, cooperative-at-bar-granularity model.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nitinkhare/quantpipeline/internal/market"
)

// DriveFunc is invoked once per tick while the market is open. It should
// pull the next bar(s) from the live data source and push them through the
// strategy/order-manager pipeline; it must not block longer than tickInterval.
type DriveFunc func(ctx context.Context) error

// Scheduler drives DriveFunc at calendar-aware intervals during regular
// trading hours, and idles (sleeping until the next session) otherwise.
type Scheduler struct {
	calendar *market.Calendar
	logger   *log.Logger
}

// New creates a new scheduler.
func New(calendar *market.Calendar, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(log.Writer(), "", log.LstdFlags)
	}
	return &Scheduler{
		calendar: calendar,
		logger:   logger,
	}
}

// Run drives fn at tickInterval while the market is open. Outside market
// hours it sleeps until the next session instead of polling, then resumes.
// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tickInterval time.Duration, fn DriveFunc) error {
	s.logger.Println("[scheduler] starting drive loop")

	for {
		select {
		case <-ctx.Done():
			s.logger.Println("[scheduler] drive loop stopped")
			return nil
		default:
		}

		now := time.Now()
		if !s.calendar.IsMarketOpen(now) {
			wait := s.calendar.TimeUntilNextSession(now)
			s.logger.Printf("[scheduler] market closed, sleeping %v until next session", wait.Round(time.Second))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}

		if err := fn(ctx); err != nil {
			s.logger.Printf("[scheduler] drive tick failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(tickInterval):
		}
	}
}

// ForceRun runs fn once without checking whether the market is open. Used
// by integration tests that need to exercise the pipeline outside regular
// trading hours.
func (s *Scheduler) ForceRun(ctx context.Context, fn DriveFunc) error {
	s.logger.Println("[scheduler] force-running drive tick (calendar check skipped)")
	if err := fn(ctx); err != nil {
		return fmt.Errorf("forced drive tick failed: %w", err)
	}
	return nil
}

// Status returns current market state information.
func (s *Scheduler) Status() string {
	now := time.Now()
	isOpen := s.calendar.IsMarketOpen(now)
	isTrading := s.calendar.IsTradingDay(now)
	nextSession := s.calendar.TimeUntilNextSession(now)

	status := fmt.Sprintf(
		"Market Status: open=%v trading_day=%v next_session_in=%v",
		isOpen, isTrading, nextSession.Round(time.Minute),
	)

	if reason := s.calendar.HolidayReason(now); reason != "" {
		status += fmt.Sprintf(" holiday=%s", reason)
	}

	return status
}

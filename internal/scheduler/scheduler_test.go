package scheduler

import (
	"context"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nitinkhare/quantpipeline/internal/market"
)

func testLogger() *log.Logger {
	return log.New(log.Writer(), "[test] ", 0)
}

func openCalendar() *market.Calendar {
	return market.NewCalendarFromHolidays(nil)
}

func TestScheduler_ForceRunInvokesFnRegardlessOfCalendar(t *testing.T) {
	cal := openCalendar()
	s := New(cal, testLogger())

	var calls int32
	err := s.ForceRun(context.Background(), func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("ForceRun returned error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected fn to run once, ran %d times", calls)
	}
}

func TestScheduler_RunStopsOnContextCancel(t *testing.T) {
	cal := openCalendar()
	s := New(cal, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- s.Run(ctx, 10*time.Millisecond, func(ctx context.Context) error {
			return nil
		})
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestScheduler_StatusReportsMarketState(t *testing.T) {
	cal := openCalendar()
	s := New(cal, testLogger())

	status := s.Status()
	if status == "" {
		t.Error("expected non-empty status string")
	}
}

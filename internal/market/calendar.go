// Package market handles market state awareness.
//
// Design rules:
//   - System must know if today is a trading day.
//   - System must know if the market is currently open.
//   - Do not rely only on time checks.
//   - Use exchange calendar data.
//   - One central MarketCalendar module.
package market

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Eastern is the US/Eastern timezone the live order gate checks against.
var Eastern *time.Location

func init() {
	var err error
	Eastern, err = time.LoadLocation("America/New_York")
	if err != nil {
		panic(fmt.Sprintf("market: failed to load America/New_York timezone: %v", err))
	}
}

// Regular NYSE/NASDAQ market hours (US/Eastern).
const (
	MarketOpenHour  = 9
	MarketOpenMin   = 30
	MarketCloseHour = 16
	MarketCloseMin  = 0
)

// Calendar provides exchange calendar and market state information.
type Calendar struct {
	// holidays is a set of dates (YYYY-MM-DD) when the exchange is closed.
	// An empty/nil set degrades gracefully to a pure weekday check.
	holidays map[string]string // date -> reason
}

// HolidayEntry represents a single exchange holiday.
type HolidayEntry struct {
	Date   string `json:"date"`   // YYYY-MM-DD
	Reason string `json:"reason"` // e.g., "Thanksgiving", "Independence Day"
}

// NewCalendar creates a Calendar from a JSON holiday file.
// The file should contain an array of HolidayEntry objects.
func NewCalendar(holidayFilePath string) (*Calendar, error) {
	data, err := os.ReadFile(holidayFilePath)
	if err != nil {
		return nil, fmt.Errorf("market calendar: read holidays file: %w", err)
	}

	var entries []HolidayEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("market calendar: parse holidays: %w", err)
	}

	holidays := make(map[string]string, len(entries))
	for _, e := range entries {
		holidays[e.Date] = e.Reason
	}

	return &Calendar{holidays: holidays}, nil
}

// NewCalendarFromHolidays creates a Calendar directly from a holiday map.
// Useful for testing, and for running without a holiday file at all.
func NewCalendarFromHolidays(holidays map[string]string) *Calendar {
	return &Calendar{holidays: holidays}
}

// IsTradingDay returns true if the given date is a valid trading day.
// A trading day is a weekday that is not an exchange holiday.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	d := date.In(Eastern)

	// Weekends are not trading days.
	if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		return false
	}

	// Check exchange holidays.
	dateStr := d.Format("2006-01-02")
	if _, isHoliday := c.holidays[dateStr]; isHoliday {
		return false
	}

	return true
}

// HolidayReason returns the reason for a holiday, or empty string if not a holiday.
func (c *Calendar) HolidayReason(date time.Time) string {
	dateStr := date.In(Eastern).Format("2006-01-02")
	return c.holidays[dateStr]
}

// IsMarketOpen returns true if the exchange is currently in regular trading
// hours: weekday, not a holiday, 09:30–16:00 US/Eastern.
func (c *Calendar) IsMarketOpen(now time.Time) bool {
	t := now.In(Eastern)

	if !c.IsTradingDay(t) {
		return false
	}

	currentMinutes := t.Hour()*60 + t.Minute()
	openMinutes := MarketOpenHour*60 + MarketOpenMin
	closeMinutes := MarketCloseHour*60 + MarketCloseMin

	return currentMinutes >= openMinutes && currentMinutes < closeMinutes
}

// TimeUntilNextSession returns the duration until the next market open.
// If the market is currently open, returns 0.
func (c *Calendar) TimeUntilNextSession(now time.Time) time.Duration {
	t := now.In(Eastern)

	if c.IsMarketOpen(t) {
		return 0
	}

	// Find the next trading day.
	candidate := t
	for i := 0; i < 10; i++ { // Look ahead up to 10 days.
		// If we're before market open today and today is a trading day, next open is today.
		if i == 0 && c.IsTradingDay(candidate) {
			todayOpen := time.Date(candidate.Year(), candidate.Month(), candidate.Day(),
				MarketOpenHour, MarketOpenMin, 0, 0, Eastern)
			if t.Before(todayOpen) {
				return todayOpen.Sub(t)
			}
		}

		// Try next day.
		candidate = candidate.AddDate(0, 0, 1)
		if c.IsTradingDay(candidate) {
			nextOpen := time.Date(candidate.Year(), candidate.Month(), candidate.Day(),
				MarketOpenHour, MarketOpenMin, 0, 0, Eastern)
			return nextOpen.Sub(t)
		}
	}

	// Fallback: this shouldn't happen with reasonable holiday data.
	return 24 * time.Hour
}

// NextTradingDay returns the next trading day after the given date.
func (c *Calendar) NextTradingDay(date time.Time) time.Time {
	candidate := date.In(Eastern).AddDate(0, 0, 1)
	for i := 0; i < 10; i++ {
		if c.IsTradingDay(candidate) {
			return candidate
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// PreviousTradingDay returns the most recent trading day before the given date.
func (c *Calendar) PreviousTradingDay(date time.Time) time.Time {
	candidate := date.In(Eastern).AddDate(0, 0, -1)
	for i := 0; i < 10; i++ {
		if c.IsTradingDay(candidate) {
			return candidate
		}
		candidate = candidate.AddDate(0, 0, -1)
	}
	return candidate
}

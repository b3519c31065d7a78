package scheduler

import (
	"fmt"
	"time"

	"reelgate/internal/config"
)

const minutesPerDay = 24 * 60

// Window is a daily wall-clock interval [Start, Stop) in minutes after local
// midnight. A Start later than Stop wraps past midnight.
type Window struct {
	Start int
	Stop  int
}

// NewWindow parses HH:MM bounds.
func NewWindow(start, stop string) (Window, error) {
	startMin, err := config.ParseClock(start)
	if err != nil {
		return Window{}, fmt.Errorf("schedule start: %w", err)
	}
	stopMin, err := config.ParseClock(stop)
	if err != nil {
		return Window{}, fmt.Errorf("schedule stop: %w", err)
	}
	if startMin == stopMin {
		return Window{}, fmt.Errorf("schedule window %s-%s is empty", start, stop)
	}
	return Window{Start: startMin, Stop: stopMin}, nil
}

// WindowFromConfig builds the window configured in [schedule].
func WindowFromConfig(cfg *config.Config) (Window, error) {
	if cfg == nil {
		return Window{}, fmt.Errorf("schedule: config is required")
	}
	return NewWindow(cfg.Schedule.Start, cfg.Schedule.Stop)
}

// Open reports whether new work may start at now.
func (w Window) Open(now time.Time) bool {
	minute := now.Hour()*60 + now.Minute()
	if w.Start < w.Stop {
		return minute >= w.Start && minute < w.Stop
	}
	return minute >= w.Start || minute < w.Stop
}

// NextOpen returns now when the window is open, otherwise the next instant
// it opens.
func (w Window) NextOpen(now time.Time) time.Time {
	if w.Open(now) {
		return now
	}
	y, m, d := now.Date()
	next := time.Date(y, m, d, w.Start/60, w.Start%60, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.Start/60, w.Start%60, w.Stop/60, w.Stop%60)
}

// Length returns how long the window stays open each day.
func (w Window) Length() time.Duration {
	span := w.Stop - w.Start
	if span <= 0 {
		span += minutesPerDay
	}
	return time.Duration(span) * time.Minute
}

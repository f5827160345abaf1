package markethours

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// TargetMode selects how the default target date is derived.
type TargetMode string

const (
	// Yesterday is the calendar day before today in IST.
	Yesterday TargetMode = "yesterday"
	// PreviousSession is the last trading day strictly before today in IST.
	PreviousSession TargetMode = "trading_day"
)

// ParseTargetMode accepts "yesterday" or "trading_day". Empty means Yesterday.
func ParseTargetMode(s string) (TargetMode, error) {
	switch TargetMode(s) {
	case "", Yesterday:
		return Yesterday, nil
	case PreviousSession:
		return PreviousSession, nil
	}
	return "", fmt.Errorf("unknown target date mode %q", s)
}

// SessionDate returns t's IST calendar date at UTC midnight, the form
// trading dates are stored in.
func SessionDate(t time.Time) time.Time {
	y, m, d := t.In(IST).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PreviousTradingDay returns the last trading day strictly before t's IST
// date, as a SessionDate.
func PreviousTradingDay(t time.Time) time.Time {
	ist := t.In(IST)
	d := time.Date(ist.Year(), ist.Month(), ist.Day(), 12, 0, 0, 0, IST).AddDate(0, 0, -1)
	for i := 0; i < 15 && !IsTradingDay(d); i++ {
		d = d.AddDate(0, 0, -1)
	}
	return SessionDate(d)
}

// DefaultTargetDate is the date a run without an explicit target computes.
func DefaultTargetDate(now time.Time, mode TargetMode) time.Time {
	if mode == PreviousSession {
		return PreviousTradingDay(now)
	}
	ist := now.In(IST)
	return SessionDate(time.Date(ist.Year(), ist.Month(), ist.Day()-1, 12, 0, 0, 0, IST))
}

// Clock is a wall-clock time of day in IST.
type Clock struct {
	Hour, Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// NextRunAt returns the first trading-day instant at clock c strictly
// after now.
func NextRunAt(now time.Time, c Clock) time.Time {
	ist := now.In(IST)
	d := time.Date(ist.Year(), ist.Month(), ist.Day(), c.Hour, c.Minute, 0, 0, IST)
	for i := 0; i < 20; i++ {
		if d.After(ist) && IsTradingDay(d) {
			return d
		}
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// Scheduler fires a callback once per trading day at a fixed IST time.
type Scheduler struct {
	at  Clock
	run func(ctx context.Context, session time.Time)

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// NewScheduler creates a Scheduler that calls run with the session date at
// every firing.
func NewScheduler(at Clock, run func(ctx context.Context, session time.Time)) *Scheduler {
	return &Scheduler{at: at, run: run, now: time.Now, after: time.After}
}

// Start blocks, firing the callback until ctx is cancelled. Runs are
// sequential; a firing that overruns the next slot delays it.
func (s *Scheduler) Start(ctx context.Context) {
	for {
		next := NextRunAt(s.now(), s.at)
		slog.Info("[schedule] next run", "at", next.Format(time.RFC3339))
		select {
		case <-ctx.Done():
			return
		case <-s.after(next.Sub(s.now())):
		}
		if ctx.Err() != nil {
			return
		}
		s.run(ctx, SessionDate(next))
	}
}

// Package scheduler decides when each portfolio refreshes.
package scheduler

import (
	"time"

	"investing_monitor/internal/models"
)

// NextWake computes the next refresh time strictly after now from the
// market-hours policy. Pure function: no clocks, no side effects.
//
// The schedule has three layers, mirroring the integration's original cron
// entries (*/I H0-H1 * * 1-5, plus daily night and morning checkpoints):
//
//   - Monday-Friday between start and end hour: every interval minutes,
//     aligned to multiples of the interval past the start hour.
//   - A nightly checkpoint and a morning checkpoint every day. When
//     WeekendCheckpoints is false they are skipped on Saturday and Sunday,
//     so the first weekend wake is Monday's morning checkpoint.
//
// All evaluation happens in loc, the single reference timezone shared by
// every portfolio.
func NextWake(now time.Time, opts models.ScheduleOptions, loc *time.Location) time.Time {
	now = now.In(loc)

	interval := opts.WeekdayInterval
	if interval < 1 {
		interval = models.DefaultWeekdayInterval
	}

	var best time.Time
	consider := func(t time.Time) {
		if t.After(now) && (best.IsZero() || t.Before(best)) {
			best = t
		}
	}

	// Scan a window of days; the furthest gap (weekend without
	// checkpoints) is under 72 hours.
	for day := 0; day < 8; day++ {
		d := now.AddDate(0, 0, day)
		midnight := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
		weekday := d.Weekday() != time.Saturday && d.Weekday() != time.Sunday

		if weekday || opts.WeekendCheckpoints {
			consider(clockOn(midnight, opts.MorningUpdate, models.DefaultMorningUpdate))
			consider(clockOn(midnight, opts.NightUpdate, models.DefaultNightUpdate))
		}

		if !weekday {
			continue
		}

		open := midnight.Add(time.Duration(opts.WeekdayStart) * time.Hour)
		close := midnight.Add(time.Duration(opts.WeekdayEnd) * time.Hour)
		switch {
		case now.Before(open):
			consider(open)
		case now.Before(close):
			// Round up to the next interval multiple past the start
			// hour. Minute granularity: 09:14:59 rounds to 09:15:00.
			elapsed := int(now.Sub(open).Minutes())
			next := open.Add(time.Duration((elapsed/interval+1)*interval) * time.Minute)
			if next.Before(close) {
				consider(next)
			}
		}

		if !best.IsZero() && best.Before(midnight) {
			break
		}
	}

	return best
}

// clockOn places an "HH:MM" wall-clock time on the given day. Falls back
// to the default when the value does not parse; options are validated at
// configuration time, so this is a belt for stored legacy values.
func clockOn(midnight time.Time, clock, fallback string) time.Time {
	hour, minute, err := models.ParseClock(clock)
	if err != nil {
		hour, minute, _ = models.ParseClock(fallback)
	}
	return time.Date(midnight.Year(), midnight.Month(), midnight.Day(), hour, minute, 0, 0, midnight.Location())
}

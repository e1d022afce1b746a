// Package models contains the domain models for the investing monitor.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule option defaults, matching the provider integration's original
// cron entries: every 15 minutes 9-21 Mon-Fri, plus daily 22:05 and 04:00.
const (
	DefaultWeekdayInterval = 15
	DefaultWeekdayStart    = 9
	DefaultWeekdayEnd      = 21
	DefaultNightUpdate     = "22:05"
	DefaultMorningUpdate   = "04:00"
)

// ScheduleOptions configures the refresh schedule for one portfolio.
type ScheduleOptions struct {
	// WeekdayInterval is the minutes between intraday refreshes.
	WeekdayInterval int `json:"weekday_interval"`
	// WeekdayStart is the first trading hour (inclusive).
	WeekdayStart int `json:"weekday_start"`
	// WeekdayEnd is the last trading hour (exclusive).
	WeekdayEnd int `json:"weekday_end"`
	// NightUpdate is the daily evening checkpoint, "HH:MM".
	NightUpdate string `json:"night_update"`
	// MorningUpdate is the daily morning checkpoint, "HH:MM".
	MorningUpdate string `json:"morning_update"`
	// WeekendCheckpoints controls whether the night/morning checkpoints
	// fire on Saturday and Sunday. When false the first weekend wake is
	// Monday's morning checkpoint.
	WeekendCheckpoints bool `json:"weekend_checkpoints"`
}

// DefaultScheduleOptions returns the default refresh schedule.
func DefaultScheduleOptions() ScheduleOptions {
	return ScheduleOptions{
		WeekdayInterval:    DefaultWeekdayInterval,
		WeekdayStart:       DefaultWeekdayStart,
		WeekdayEnd:         DefaultWeekdayEnd,
		NightUpdate:        DefaultNightUpdate,
		MorningUpdate:      DefaultMorningUpdate,
		WeekendCheckpoints: true,
	}
}

// Validate checks the schedule options for internal consistency.
func (o ScheduleOptions) Validate() error {
	if o.WeekdayInterval < 1 || o.WeekdayInterval > 720 {
		return fmt.Errorf("weekday_interval must be between 1 and 720 minutes, got %d", o.WeekdayInterval)
	}
	if o.WeekdayStart < 0 || o.WeekdayStart > 23 {
		return fmt.Errorf("weekday_start must be an hour between 0 and 23, got %d", o.WeekdayStart)
	}
	if o.WeekdayEnd < 1 || o.WeekdayEnd > 24 {
		return fmt.Errorf("weekday_end must be an hour between 1 and 24, got %d", o.WeekdayEnd)
	}
	if o.WeekdayStart >= o.WeekdayEnd {
		return fmt.Errorf("weekday_start (%d) must be before weekday_end (%d)", o.WeekdayStart, o.WeekdayEnd)
	}
	if _, _, err := ParseClock(o.NightUpdate); err != nil {
		return fmt.Errorf("night_update: %w", err)
	}
	if _, _, err := ParseClock(o.MorningUpdate); err != nil {
		return fmt.Errorf("morning_update: %w", err)
	}
	return nil
}

// ParseClock parses a wall-clock time in "HH:MM" form.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// PortfolioConfig is the user-supplied configuration for one tracked portfolio.
type PortfolioConfig struct {
	PortfolioID    int64           `json:"portfolio_id"`
	DisplayName    string          `json:"display_name"`
	NormalizedName string          `json:"normalized_name"`
	Schedule       ScheduleOptions `json:"schedule"`
	Paused         bool            `json:"paused"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PortfolioSnapshot is the latest successfully fetched metric set for one
// portfolio. Immutable once produced; superseded atomically by the next
// successful fetch.
type PortfolioSnapshot struct {
	PortfolioID     int64     `json:"portfolio_id"`
	InvestedCapital float64   `json:"invested_capital"`
	OpenPL          float64   `json:"open_pl"`
	OpenPLPercent   float64   `json:"open_pl_perc"`
	DailyPL         float64   `json:"daily_pl"`
	DailyPLPercent  float64   `json:"daily_pl_perc"`
	Currency        string    `json:"currency"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// ScheduleState is the observable per-portfolio scheduler state.
type ScheduleState struct {
	State         string     `json:"state"`
	NextWakeAt    *time.Time `json:"next_wake_at,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	InFlight      bool       `json:"in_flight"`
	LastError     string     `json:"last_error,omitempty"`
	LastErrorKind string     `json:"last_error_kind,omitempty"`
	LastErrorAt   *time.Time `json:"last_error_at,omitempty"`
}

// Credentials holds the stored provider login. The password is kept
// encrypted at rest and only decrypted for the duration of a login call.
type Credentials struct {
	Email              string    `json:"email"`
	PasswordCiphertext []byte    `json:"-"`
	PasswordNonce      []byte    `json:"-"`
	UDID               string    `json:"-"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Notification is a persistent user-visible error notification.
type Notification struct {
	ID          int64      `json:"id"`
	PortfolioID int64      `json:"portfolio_id"`
	Kind        string     `json:"kind"`
	Message     string     `json:"message"`
	CreatedAt   time.Time  `json:"created_at"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`
}

// Fetch trigger values recorded in fetch history.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// FetchRecord is one row of fetch history for diagnosability.
type FetchRecord struct {
	ID          int64      `json:"id"`
	PortfolioID int64      `json:"portfolio_id"`
	TriggeredBy string     `json:"triggered_by"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

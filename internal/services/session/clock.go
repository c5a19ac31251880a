package session

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"FinCast/internal/domain/models"
)

const (
	DefaultTimezone  = "Asia/Jakarta"
	DefaultCloseTime = "16:30"
)

// Clock answers session-state questions for one exchange. It is stateless;
// every answer is a pure function of the supplied instant.
type Clock struct {
	loc         *time.Location
	closeHour   int
	closeMinute int
}

// NewClock builds a clock for timezone tz with a daily close at closeAt ("HH:MM").
func NewClock(tz, closeAt string) (*Clock, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	if closeAt == "" {
		closeAt = DefaultCloseTime
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	t, err := time.Parse("15:04", closeAt)
	if err != nil {
		return nil, fmt.Errorf("parse close time %q: %w", closeAt, err)
	}
	return &Clock{loc: loc, closeHour: t.Hour(), closeMinute: t.Minute()}, nil
}

func (c *Clock) Location() *time.Location { return c.loc }

// CloseOn returns the session close instant for the local day containing now.
func (c *Clock) CloseOn(now time.Time) time.Time {
	local := now.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), c.closeHour, c.closeMinute, 0, 0, c.loc)
}

// IsOpen is true strictly before the close instant; the close instant itself is closed.
func (c *Clock) IsOpen(now time.Time) bool {
	return now.Before(c.CloseOn(now))
}

// ApplicableDate is today's local date while the session is open, else tomorrow's.
func (c *Clock) ApplicableDate(now time.Time) models.Date {
	d := models.DateOf(now.In(c.loc))
	if c.IsOpen(now) {
		return d
	}
	return d.AddDays(1)
}

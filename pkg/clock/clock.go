// Package clock provides the studio's notion of "now".
//
// All booking rules are evaluated in the studio's fixed UTC offset rather
// than the host timezone, so every caller goes through Studio.
package clock

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage layout for calendar dates.
const DateLayout = "2006-01-02"

// Clock abstracts wall-clock time.
type Clock interface {
	Now() time.Time
}

// System reads the real wall clock.
type System struct{}

// Now implements Clock.
func (System) Now() time.Time { return time.Now() }

// Fixed always returns the same instant.
type Fixed struct{ T time.Time }

// Now implements Clock.
func (f Fixed) Now() time.Time { return f.T }

// Studio converts wall-clock time into the studio's fixed timezone.
type Studio struct {
	clock    Clock
	location *time.Location
}

// NewStudio builds a Studio at a fixed UTC offset in hours.
func NewStudio(c Clock, utcOffsetHours int) *Studio {
	if c == nil {
		c = System{}
	}
	name := fmt.Sprintf("UTC%+d", utcOffsetHours)
	return &Studio{clock: c, location: time.FixedZone(name, utcOffsetHours*3600)}
}

// Location returns the studio timezone.
func (s *Studio) Location() *time.Location { return s.location }

// Now returns the current instant expressed in studio time.
func (s *Studio) Now() time.Time { return s.clock.Now().In(s.location) }

// At combines a calendar date with an "HH:MM" or "HH:MM:SS" wall time in
// studio time.
func (s *Studio) At(date time.Time, wall string) (time.Time, error) {
	hh, mm, ss, err := ParseWallTime(wall)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, hh, mm, ss, 0, s.location), nil
}

// ParseWallTime parses "HH:MM" or "HH:MM:SS".
func ParseWallTime(wall string) (hh, mm, ss int, err error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, perr := time.Parse(layout, wall); perr == nil {
			return t.Hour(), t.Minute(), t.Second(), nil
		}
	}
	return 0, 0, 0, fmt.Errorf("invalid wall time %q", wall)
}

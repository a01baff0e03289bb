package domain

import (
	"errors"
	"fmt"
	"time"
)

const (
	OpeningHour     = 8
	ClosingHour     = 17
	ClosingMinute   = 40
	SlotStepMinutes = 20
)

// TimeOfDay is a minute-precision wall-clock time within a service day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) Before(o TimeOfDay) bool {
	if t.Hour != o.Hour {
		return t.Hour < o.Hour
	}
	return t.Minute < o.Minute
}

// On anchors the time of day to the given calendar day, keeping the
// day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, day.Location())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return errors.New("time of day must be a string")
	}
	parsed, err := ParseTimeOfDay(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTimeOfDay parses an "HH:MM" value.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%2d:%2d", &h, &m); err != nil || len(s) != 5 || s[2] != ':' {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// TimeOfDayOf truncates an instant to its wall-clock hour and minute.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// SlotGrid returns every candidate slot of a service day: 20-minute
// steps from opening at 08:00 through the last slot at 17:40. The grid
// is the same for every day and every service; the service duration only
// decides which grid points the panel reports as free.
func SlotGrid() []TimeOfDay {
	out := make([]TimeOfDay, 0, 30)
	for h := OpeningHour; h <= ClosingHour; h++ {
		for m := 0; m < 60; m += SlotStepMinutes {
			if h == ClosingHour && m > ClosingMinute {
				continue
			}
			out = append(out, TimeOfDay{Hour: h, Minute: m})
		}
	}
	return out
}

// CeilToGrid rounds t up to the next grid-aligned value. Rounding past
// :40 rolls over into the next hour.
func CeilToGrid(t TimeOfDay) TimeOfDay {
	m := (t.Minute + SlotStepMinutes - 1) / SlotStepMinutes * SlotStepMinutes
	h := t.Hour
	if m == 60 {
		h++
		m = 0
	}
	return TimeOfDay{Hour: h, Minute: m}
}

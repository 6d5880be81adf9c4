package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TimeOfDay is a clock time with minute granularity, stored as minutes since
// midnight. It orders naturally and maps to a Postgres TIME column.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from an hour/minute pair.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "15:04" (seconds tolerated and discarded).
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	var hour, minute, second int
	if _, err := fmt.Sscanf(raw, "%d:%d:%d", &hour, &minute, &second); err != nil {
		if _, err := fmt.Sscanf(raw, "%d:%d", &hour, &minute); err != nil {
			return 0, fmt.Errorf("parse time of day %q: %w", raw, err)
		}
	}
	// Sscanf happily reads signed components, so "12:-30" would otherwise
	// land on 11:30.
	if hour < 0 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time of day %q out of range", raw)
	}
	t := NewTimeOfDay(hour, minute)
	if !t.Valid() {
		return 0, fmt.Errorf("time of day %q out of range", raw)
	}
	return t, nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Valid reports whether t falls within a single day.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < 24*60
}

func (t TimeOfDay) Before(other TimeOfDay) bool { return t < other }
func (t TimeOfDay) After(other TimeOfDay) bool  { return t > other }

// String renders the canonical "15:04" form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// MarshalJSON renders the time as its "15:04" string.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts a "15:04" string.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value implements driver.Valuer for TIME columns.
func (t TimeOfDay) Value() (driver.Value, error) {
	return fmt.Sprintf("%02d:%02d:00", t.Hour(), t.Minute()), nil
}

// Scan implements sql.Scanner. lib/pq returns TIME columns as either a
// time.Time anchored on year zero or raw "15:04:05" bytes.
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*t = NewTimeOfDay(v.Hour(), v.Minute())
		return nil
	case []byte:
		parsed, err := ParseTimeOfDay(string(v))
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case string:
		parsed, err := ParseTimeOfDay(v)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case nil:
		*t = 0
		return nil
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

// Overlaps reports whether two half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

// Office hours. Appointments start at or after opening and strictly before
// closing; busy intervals must end before the closing hour.
var (
	OpeningTime = NewTimeOfDay(9, 0)
	ClosingTime = NewTimeOfDay(17, 0)
)

// WithinOfficeHours reports whether a start time lies inside opening hours.
func WithinOfficeHours(t TimeOfDay) bool {
	return t >= OpeningTime && t < ClosingTime
}

// SlotMinutes is the booking granularity of the day grid.
const SlotMinutes = 30

// OnSlotBoundary reports whether t aligns to a half-hour mark.
func OnSlotBoundary(t TimeOfDay) bool {
	m := t.Minute()
	return m == 0 || m == 30
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses a "2006-01-02" date into a naive UTC timestamp.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return d, nil
}

// FormatDate renders the "2006-01-02" form.
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// SlotKey is the canonical identity of a bookable slot, used for locking.
func SlotKey(date time.Time, t TimeOfDay) string {
	return date.Format(DateLayout) + "T" + t.String()
}

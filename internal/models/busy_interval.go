package models

import "time"

// BusyInterval blocks a span of a day where the doctor is unavailable.
// The interval is half-open: [StartTime, EndTime).
type BusyInterval struct {
	ID        string    `db:"id" json:"id"`
	Date      time.Time `db:"date" json:"date"`
	StartTime TimeOfDay `db:"start_time" json:"start_time"`
	EndTime   TimeOfDay `db:"end_time" json:"end_time"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Contains reports whether t falls inside the interval.
func (b BusyInterval) Contains(t TimeOfDay) bool {
	return b.StartTime <= t && t < b.EndTime
}

// OverlapsWith applies the half-open interval test against another interval
// on the same date.
func (b BusyInterval) OverlapsWith(other BusyInterval) bool {
	return Overlaps(b.StartTime, b.EndTime, other.StartTime, other.EndTime)
}

// BusyConflict describes the interval that rejected a scheduling attempt.
type BusyConflict struct {
	IntervalID string    `json:"interval_id"`
	Reason     string    `json:"reason"`
	StartTime  TimeOfDay `json:"start_time"`
	EndTime    TimeOfDay `json:"end_time"`
}

// BusyIntervalFilter narrows interval listings by date range.
type BusyIntervalFilter struct {
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PageSize int
}

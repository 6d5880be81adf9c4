package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		raw     string
		want    TimeOfDay
		wantErr bool
	}{
		{raw: "09:00", want: NewTimeOfDay(9, 0)},
		{raw: "16:30", want: NewTimeOfDay(16, 30)},
		{raw: "16:30:00", want: NewTimeOfDay(16, 30)},
		{raw: "00:00", want: 0},
		{raw: "23:59", want: NewTimeOfDay(23, 59)},
		{raw: "24:00", wantErr: true},
		{raw: "12:60", wantErr: true},
		{raw: "12:-30", wantErr: true},
		{raw: "-1:30", wantErr: true},
		{raw: "noon", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseTimeOfDay(tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTimeOfDayString(t *testing.T) {
	assert.Equal(t, "09:05", NewTimeOfDay(9, 5).String())
	assert.Equal(t, "00:00", TimeOfDay(0).String())
	assert.Equal(t, "16:30", NewTimeOfDay(16, 30).String())
}

func TestTimeOfDayValue(t *testing.T) {
	v, err := NewTimeOfDay(10, 30).Value()
	require.NoError(t, err)
	assert.Equal(t, "10:30:00", v)
}

func TestTimeOfDayScan(t *testing.T) {
	var got TimeOfDay

	require.NoError(t, got.Scan(time.Date(0, 1, 1, 14, 30, 0, 0, time.UTC)))
	assert.Equal(t, NewTimeOfDay(14, 30), got)

	require.NoError(t, got.Scan([]byte("09:00:00")))
	assert.Equal(t, NewTimeOfDay(9, 0), got)

	require.NoError(t, got.Scan("16:30"))
	assert.Equal(t, NewTimeOfDay(16, 30), got)

	require.NoError(t, got.Scan(nil))
	assert.Equal(t, TimeOfDay(0), got)

	assert.Error(t, got.Scan(42))
}

func TestOverlapsHalfOpen(t *testing.T) {
	nine := NewTimeOfDay(9, 0)
	ten := NewTimeOfDay(10, 0)
	eleven := NewTimeOfDay(11, 0)
	noon := NewTimeOfDay(12, 0)

	assert.True(t, Overlaps(nine, eleven, ten, noon), "partial overlap")
	assert.True(t, Overlaps(nine, noon, ten, eleven), "containment")
	assert.False(t, Overlaps(nine, ten, ten, eleven), "touching endpoints do not overlap")
	assert.False(t, Overlaps(nine, ten, eleven, noon), "disjoint")
}

func TestWithinOfficeHours(t *testing.T) {
	assert.False(t, WithinOfficeHours(NewTimeOfDay(8, 30)))
	assert.True(t, WithinOfficeHours(OpeningTime))
	assert.True(t, WithinOfficeHours(NewTimeOfDay(16, 30)))
	assert.False(t, WithinOfficeHours(ClosingTime), "closing itself is not bookable")
	assert.False(t, WithinOfficeHours(NewTimeOfDay(18, 0)))
}

func TestOnSlotBoundary(t *testing.T) {
	assert.True(t, OnSlotBoundary(NewTimeOfDay(9, 0)))
	assert.True(t, OnSlotBoundary(NewTimeOfDay(14, 30)))
	assert.False(t, OnSlotBoundary(NewTimeOfDay(10, 15)))
	assert.False(t, OnSlotBoundary(NewTimeOfDay(10, 1)))
}

func TestParseDateRoundTrip(t *testing.T) {
	d, err := ParseDate("2026-09-14")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-14", FormatDate(d))

	_, err = ParseDate("14/09/2026")
	assert.Error(t, err)
}

func TestSlotKey(t *testing.T) {
	d := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-09-14T10:30", SlotKey(d, NewTimeOfDay(10, 30)))
}

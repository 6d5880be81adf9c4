package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medidesk/medidesk-api/internal/dto"
	"github.com/medidesk/medidesk-api/internal/models"
	appErrors "github.com/medidesk/medidesk-api/pkg/errors"
)

type busyStoreStub struct {
	byID     map[string]*models.BusyInterval
	existing []models.BusyInterval
	inserted []*models.BusyInterval
	updated  []*models.BusyInterval
	deleted  []string
	txCalls  int
	txDates  []time.Time
}

func newBusyStoreStub() *busyStoreStub {
	return &busyStoreStub{byID: make(map[string]*models.BusyInterval)}
}

func (s *busyStoreStub) WithDateTx(ctx context.Context, date time.Time, fn func(tx *sqlx.Tx) error) error {
	s.txCalls++
	s.txDates = append(s.txDates, date)
	return fn(nil)
}

func (s *busyStoreStub) List(ctx context.Context, filter models.BusyIntervalFilter) ([]models.BusyInterval, int, error) {
	return s.existing, len(s.existing), nil
}

func (s *busyStoreStub) FindByID(ctx context.Context, id string) (*models.BusyInterval, error) {
	if interval, ok := s.byID[id]; ok {
		copied := *interval
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *busyStoreStub) Overlapping(ctx context.Context, exec sqlx.ExtContext, date time.Time, start, end models.TimeOfDay, excludeID string) ([]models.BusyInterval, error) {
	var overlapping []models.BusyInterval
	for _, interval := range s.existing {
		if interval.ID == excludeID || !interval.Date.Equal(date) {
			continue
		}
		if models.Overlaps(start, end, interval.StartTime, interval.EndTime) {
			overlapping = append(overlapping, interval)
		}
	}
	return overlapping, nil
}

func (s *busyStoreStub) Insert(ctx context.Context, exec sqlx.ExtContext, interval *models.BusyInterval) error {
	if interval.ID == "" {
		interval.ID = "busy-new"
	}
	copied := *interval
	s.byID[interval.ID] = &copied
	s.inserted = append(s.inserted, &copied)
	return nil
}

func (s *busyStoreStub) Update(ctx context.Context, exec sqlx.ExtContext, interval *models.BusyInterval) error {
	copied := *interval
	s.byID[interval.ID] = &copied
	s.updated = append(s.updated, &copied)
	return nil
}

func (s *busyStoreStub) Delete(ctx context.Context, id string) error {
	delete(s.byID, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func newBusyService(store *busyStoreStub) *BusyIntervalService {
	svc := NewBusyIntervalService(store, time.UTC, nil)
	svc.now = func() time.Time {
		return time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestBusyIntervalCreate(t *testing.T) {
	store := newBusyStoreStub()
	svc := newBusyService(store)

	interval, err := svc.Create(context.Background(), dto.CreateBusyIntervalRequest{
		Date:      "2026-09-14",
		StartTime: "10:00",
		EndTime:   "12:00",
		Reason:    "surgery",
	})
	require.NoError(t, err)
	require.NotEmpty(t, interval.ID)
	assert.Equal(t, models.NewTimeOfDay(10, 0), interval.StartTime)
	assert.Equal(t, models.NewTimeOfDay(12, 0), interval.EndTime)
}

func TestBusyIntervalWritesHoldDateLock(t *testing.T) {
	// Overlap check and write must share the date transaction, otherwise
	// two concurrent creates can both see a clear range.
	store := newBusyStoreStub()
	svc := newBusyService(store)

	_, err := svc.Create(context.Background(), dto.CreateBusyIntervalRequest{
		Date:      "2026-09-14",
		StartTime: "10:00",
		EndTime:   "12:00",
	})
	require.NoError(t, err)
	require.Equal(t, 1, store.txCalls)

	_, err = svc.Update(context.Background(), "busy-new", dto.UpdateBusyIntervalRequest{
		Date:      "2026-09-15",
		StartTime: "10:00",
		EndTime:   "11:00",
	})
	require.NoError(t, err)
	require.Equal(t, 2, store.txCalls)
	assert.Equal(t, time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC), store.txDates[1])
}

func TestBusyIntervalCreateRejectsInvertedRange(t *testing.T) {
	svc := newBusyService(newBusyStoreStub())

	_, err := svc.Create(context.Background(), dto.CreateBusyIntervalRequest{
		Date:      "2026-09-14",
		StartTime: "12:00",
		EndTime:   "10:00",
	})
	require.ErrorIs(t, err, appErrors.ErrInvalidRange)

	// Zero-length intervals are rejected too.
	_, err = svc.Create(context.Background(), dto.CreateBusyIntervalRequest{
		Date:      "2026-09-14",
		StartTime: "10:00",
		EndTime:   "10:00",
	})
	require.ErrorIs(t, err, appErrors.ErrInvalidRange)
}

func TestBusyIntervalCreateRejectsPastDate(t *testing.T) {
	svc := newBusyService(newBusyStoreStub())

	_, err := svc.Create(context.Background(), dto.CreateBusyIntervalRequest{
		Date:      "2026-08-31",
		StartTime: "10:00",
		EndTime:   "11:00",
	})
	require.ErrorIs(t, err, appErrors.ErrPastDate)
}

func TestBusyIntervalCreateAllowsToday(t *testing.T) {
	svc := newBusyService(newBusyStoreStub())

	_, err := svc.Create(context.Background(), dto.CreateBusyIntervalRequest{
		Date:      "2026-09-01",
		StartTime: "10:00",
		EndTime:   "11:00",
	})
	require.NoError(t, err)
}

func TestBusyIntervalCreateRejectsOutOfHours(t *testing.T) {
	svc := newBusyService(newBusyStoreStub())

	_, err := svc.Create(context.Background(), dto.CreateBusyIntervalRequest{
		Date:      "2026-09-14",
		StartTime: "08:00",
		EndTime:   "10:00",
	})
	require.ErrorIs(t, err, appErrors.ErrOutOfHours)

	_, err = svc.Create(context.Background(), dto.CreateBusyIntervalRequest{
		Date:      "2026-09-14",
		StartTime: "16:00",
		EndTime:   "17:30",
	})
	require.ErrorIs(t, err, appErrors.ErrOutOfHours)
}

func TestBusyIntervalCreateRejectsOverlap(t *testing.T) {
	store := newBusyStoreStub()
	store.existing = []models.BusyInterval{{
		ID:        "busy-1",
		Date:      time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		StartTime: models.NewTimeOfDay(10, 0),
		EndTime:   models.NewTimeOfDay(12, 0),
		Reason:    "rounds",
	}}
	svc := newBusyService(store)

	_, err := svc.Create(context.Background(), dto.CreateBusyIntervalRequest{
		Date:      "2026-09-14",
		StartTime: "11:00",
		EndTime:   "13:00",
	})
	require.ErrorIs(t, err, appErrors.ErrBusyOverlap)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	conflicts, ok := appErr.Details.([]models.BusyConflict)
	require.True(t, ok)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "busy-1", conflicts[0].IntervalID)
}

func TestBusyIntervalCreateAllowsTouchingIntervals(t *testing.T) {
	store := newBusyStoreStub()
	store.existing = []models.BusyInterval{{
		ID:        "busy-1",
		Date:      time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		StartTime: models.NewTimeOfDay(10, 0),
		EndTime:   models.NewTimeOfDay(12, 0),
	}}
	svc := newBusyService(store)

	// [12:00, 13:00) only touches [10:00, 12:00); half-open ranges do not
	// overlap at the shared boundary.
	_, err := svc.Create(context.Background(), dto.CreateBusyIntervalRequest{
		Date:      "2026-09-14",
		StartTime: "12:00",
		EndTime:   "13:00",
	})
	require.NoError(t, err)
}

func TestBusyIntervalUpdateExcludesSelf(t *testing.T) {
	store := newBusyStoreStub()
	existing := models.BusyInterval{
		ID:        "busy-1",
		Date:      time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		StartTime: models.NewTimeOfDay(10, 0),
		EndTime:   models.NewTimeOfDay(12, 0),
	}
	store.existing = []models.BusyInterval{existing}
	store.byID["busy-1"] = &existing
	svc := newBusyService(store)

	interval, err := svc.Update(context.Background(), "busy-1", dto.UpdateBusyIntervalRequest{
		Date:      "2026-09-14",
		StartTime: "10:30",
		EndTime:   "12:30",
	})
	require.NoError(t, err)
	assert.Equal(t, models.NewTimeOfDay(10, 30), interval.StartTime)
}

func TestBusyIntervalDeleteNotFound(t *testing.T) {
	svc := newBusyService(newBusyStoreStub())
	require.ErrorIs(t, svc.Delete(context.Background(), "missing"), appErrors.ErrNotFound)
}

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
	"github.com/medidesk/medidesk-api/pkg/cache"
	appErrors "github.com/medidesk/medidesk-api/pkg/errors"
)

type appointmentStoreStub struct {
	byID       map[string]*models.Appointment
	upcomingAt *models.AppointmentDetail
	forDate    []models.AppointmentDetail
	inserted   []*models.Appointment
	deleted    []string
	txCalls    int

	// staleRead, when set, is served by FindByID instead of the live row,
	// simulating a transition committed by another writer after the read.
	staleRead *models.Appointment
}

func newAppointmentStoreStub() *appointmentStoreStub {
	return &appointmentStoreStub{byID: make(map[string]*models.Appointment)}
}

func (s *appointmentStoreStub) WithSlotTx(ctx context.Context, date time.Time, t models.TimeOfDay, fn func(tx *sqlx.Tx) error) error {
	s.txCalls++
	return fn(nil)
}

func (s *appointmentStoreStub) List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, int, error) {
	return s.forDate, len(s.forDate), nil
}

func (s *appointmentStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Appointment, error) {
	if s.staleRead != nil && s.staleRead.ID == id {
		copied := *s.staleRead
		s.staleRead = nil
		return &copied, nil
	}
	if appt, ok := s.byID[id]; ok {
		copied := *appt
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *appointmentStoreStub) FindDetailByID(ctx context.Context, id string) (*models.AppointmentDetail, error) {
	if appt, ok := s.byID[id]; ok {
		return &models.AppointmentDetail{Appointment: *appt, PatientName: "Jane Doe", PatientEmail: "jane@example.com"}, nil
	}
	return nil, sql.ErrNoRows
}

func (s *appointmentStoreStub) FindUpcomingAt(ctx context.Context, exec sqlx.ExtContext, date time.Time, t models.TimeOfDay, excludeID string) (*models.AppointmentDetail, error) {
	if s.upcomingAt != nil && s.upcomingAt.Date.Equal(date) && s.upcomingAt.Time == t && s.upcomingAt.ID != excludeID {
		return s.upcomingAt, nil
	}
	return nil, sql.ErrNoRows
}

func (s *appointmentStoreStub) Insert(ctx context.Context, exec sqlx.ExtContext, appt *models.Appointment) error {
	if appt.ID == "" {
		appt.ID = "appt-new"
	}
	copied := *appt
	s.byID[appt.ID] = &copied
	s.inserted = append(s.inserted, &copied)
	return nil
}

func (s *appointmentStoreStub) UpdateSlot(ctx context.Context, exec sqlx.ExtContext, appt *models.Appointment) (bool, error) {
	current, ok := s.byID[appt.ID]
	if !ok || current.Status != models.AppointmentUpcoming {
		return false, nil
	}
	copied := *appt
	s.byID[appt.ID] = &copied
	return true, nil
}

func (s *appointmentStoreStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.AppointmentStatus) (bool, error) {
	appt, ok := s.byID[id]
	if !ok || appt.Status != from {
		return false, nil
	}
	appt.Status = to
	return true, nil
}

func (s *appointmentStoreStub) Delete(ctx context.Context, id string) error {
	delete(s.byID, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *appointmentStoreStub) ListForDate(ctx context.Context, date time.Time) ([]models.AppointmentDetail, error) {
	return s.forDate, nil
}

type busyLookupStub struct {
	intervals []models.BusyInterval
}

func (s busyLookupStub) Covering(ctx context.Context, exec sqlx.ExtContext, date time.Time, t models.TimeOfDay) ([]models.BusyInterval, error) {
	var covering []models.BusyInterval
	for _, interval := range s.intervals {
		if interval.Date.Equal(date) && interval.Contains(t) {
			covering = append(covering, interval)
		}
	}
	return covering, nil
}

func (s busyLookupStub) ListForDate(ctx context.Context, exec sqlx.ExtContext, date time.Time) ([]models.BusyInterval, error) {
	return s.intervals, nil
}

type patientLookupStub struct {
	patients map[string]*models.Patient
}

func (s patientLookupStub) FindByID(ctx context.Context, id string) (*models.Patient, error) {
	if patient, ok := s.patients[id]; ok {
		return patient, nil
	}
	return nil, sql.ErrNoRows
}

type notifierStub struct {
	booked []models.AppointmentDetail
}

func (s *notifierStub) AppointmentBooked(ctx context.Context, appt models.AppointmentDetail) {
	s.booked = append(s.booked, appt)
}

type contendedLocker struct{}

func (contendedLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	return cache.ErrLockNotAcquired
}

func knownPatients() patientLookupStub {
	return patientLookupStub{patients: map[string]*models.Patient{
		"a9f5f3c2-9c1e-4a7b-8c42-0d4f4a1b2c3d": {ID: "a9f5f3c2-9c1e-4a7b-8c42-0d4f4a1b2c3d", Name: "Jane Doe", Email: "jane@example.com"},
	}}
}

const testPatientID = "a9f5f3c2-9c1e-4a7b-8c42-0d4f4a1b2c3d"

func TestAppointmentCreateBooksFreeSlot(t *testing.T) {
	store := newAppointmentStoreStub()
	notifier := &notifierStub{}
	svc := NewAppointmentService(store, busyLookupStub{}, knownPatients(), nil, notifier, nil)

	detail, err := svc.Create(context.Background(), dto.CreateAppointmentRequest{
		PatientID: testPatientID,
		Date:      "2026-09-14",
		Time:      "10:00",
	}, "secretary-1")
	require.NoError(t, err)
	require.Equal(t, models.AppointmentUpcoming, detail.Status)
	require.Equal(t, models.NewTimeOfDay(10, 0), detail.Time)
	assert.Equal(t, 1, store.txCalls)
	assert.Len(t, notifier.booked, 1)
}

func TestAppointmentCreateRejectsBusySlot(t *testing.T) {
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	busy := busyLookupStub{intervals: []models.BusyInterval{{
		ID:        "busy-1",
		Date:      date,
		StartTime: models.NewTimeOfDay(10, 0),
		EndTime:   models.NewTimeOfDay(12, 0),
		Reason:    "surgery",
	}}}
	svc := NewAppointmentService(newAppointmentStoreStub(), busy, knownPatients(), nil, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateAppointmentRequest{
		PatientID: testPatientID,
		Date:      "2026-09-14",
		Time:      "11:00",
	}, "secretary-1")
	require.ErrorIs(t, err, appErrors.ErrDoctorUnavailable)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	conflicts, ok := appErr.Details.([]models.BusyConflict)
	require.True(t, ok)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "busy-1", conflicts[0].IntervalID)
}

func TestAppointmentCreateAllowsSlotAtBusyIntervalEnd(t *testing.T) {
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	busy := busyLookupStub{intervals: []models.BusyInterval{{
		ID:        "busy-1",
		Date:      date,
		StartTime: models.NewTimeOfDay(9, 0),
		EndTime:   models.NewTimeOfDay(10, 0),
	}}}
	svc := NewAppointmentService(newAppointmentStoreStub(), busy, knownPatients(), nil, nil, nil)

	detail, err := svc.Create(context.Background(), dto.CreateAppointmentRequest{
		PatientID: testPatientID,
		Date:      "2026-09-14",
		Time:      "10:00",
	}, "secretary-1")
	require.NoError(t, err)
	assert.Equal(t, models.NewTimeOfDay(10, 0), detail.Time)
}

func TestAppointmentCreateRejectsDoubleBooking(t *testing.T) {
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	store := newAppointmentStoreStub()
	store.upcomingAt = &models.AppointmentDetail{
		Appointment: models.Appointment{
			ID:        "appt-1",
			PatientID: "other-patient",
			Date:      date,
			Time:      models.NewTimeOfDay(10, 0),
			Status:    models.AppointmentUpcoming,
		},
		PatientName: "John Smith",
	}
	svc := NewAppointmentService(store, busyLookupStub{}, knownPatients(), nil, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateAppointmentRequest{
		PatientID: testPatientID,
		Date:      "2026-09-14",
		Time:      "10:00",
	}, "secretary-1")
	require.ErrorIs(t, err, appErrors.ErrSlotTaken)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	conflict, ok := appErr.Details.(models.SlotConflict)
	require.True(t, ok)
	assert.Equal(t, "appt-1", conflict.AppointmentID)
}

func TestAppointmentCreateIgnoresCancelledBooking(t *testing.T) {
	// A cancelled appointment never blocks its slot: the stub only reports
	// upcoming occupants, mirroring the status filter in the query.
	store := newAppointmentStoreStub()
	svc := NewAppointmentService(store, busyLookupStub{}, knownPatients(), nil, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateAppointmentRequest{
		PatientID: testPatientID,
		Date:      "2026-09-14",
		Time:      "10:00",
	}, "secretary-1")
	require.NoError(t, err)
}

func TestAppointmentCreateSlotPolicy(t *testing.T) {
	svc := NewAppointmentService(newAppointmentStoreStub(), busyLookupStub{}, knownPatients(), nil, nil, nil)

	cases := []struct {
		name string
		slot string
		want *appErrors.Error
	}{
		{"off-grid minute", "10:15", appErrors.ErrInvalidGranularity},
		{"before opening", "08:30", appErrors.ErrOutOfHours},
		{"at closing", "17:00", appErrors.ErrOutOfHours},
		{"after closing", "18:00", appErrors.ErrOutOfHours},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), dto.CreateAppointmentRequest{
				PatientID: testPatientID,
				Date:      "2026-09-14",
				Time:      tc.slot,
			}, "secretary-1")
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAppointmentCreateLastSlotOfDay(t *testing.T) {
	svc := NewAppointmentService(newAppointmentStoreStub(), busyLookupStub{}, knownPatients(), nil, nil, nil)

	detail, err := svc.Create(context.Background(), dto.CreateAppointmentRequest{
		PatientID: testPatientID,
		Date:      "2026-09-14",
		Time:      "16:30",
	}, "secretary-1")
	require.NoError(t, err)
	assert.Equal(t, models.NewTimeOfDay(16, 30), detail.Time)
}

func TestAppointmentCreateContendedSlot(t *testing.T) {
	svc := NewAppointmentService(newAppointmentStoreStub(), busyLookupStub{}, knownPatients(), contendedLocker{}, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateAppointmentRequest{
		PatientID: testPatientID,
		Date:      "2026-09-14",
		Time:      "10:00",
	}, "secretary-1")
	require.ErrorIs(t, err, appErrors.ErrSlotContended)
}

func TestAppointmentUpdateExcludesSelfFromConflictCheck(t *testing.T) {
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	store := newAppointmentStoreStub()
	store.byID["appt-1"] = &models.Appointment{
		ID:        "appt-1",
		PatientID: testPatientID,
		Date:      date,
		Time:      models.NewTimeOfDay(10, 0),
		Status:    models.AppointmentUpcoming,
	}
	store.upcomingAt = &models.AppointmentDetail{
		Appointment: *store.byID["appt-1"],
	}
	svc := NewAppointmentService(store, busyLookupStub{}, knownPatients(), nil, nil, nil)

	// Re-saving the appointment on its own slot must not collide with itself.
	newTime := "10:00"
	detail, err := svc.Update(context.Background(), "appt-1", dto.UpdateAppointmentRequest{Time: &newTime})
	require.NoError(t, err)
	assert.Equal(t, models.NewTimeOfDay(10, 0), detail.Time)
}

func TestAppointmentUpdateRejectsTerminalStates(t *testing.T) {
	store := newAppointmentStoreStub()
	store.byID["appt-done"] = &models.Appointment{
		ID:     "appt-done",
		Status: models.AppointmentCompleted,
	}
	svc := NewAppointmentService(store, busyLookupStub{}, knownPatients(), nil, nil, nil)

	newTime := "11:00"
	_, err := svc.Update(context.Background(), "appt-done", dto.UpdateAppointmentRequest{Time: &newTime})
	require.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestAppointmentCancelLifecycle(t *testing.T) {
	store := newAppointmentStoreStub()
	store.byID["appt-1"] = &models.Appointment{
		ID:        "appt-1",
		PatientID: testPatientID,
		Status:    models.AppointmentUpcoming,
	}
	svc := NewAppointmentService(store, busyLookupStub{}, knownPatients(), nil, nil, nil)

	detail, err := svc.Cancel(context.Background(), "appt-1")
	require.NoError(t, err)
	require.Equal(t, models.AppointmentCancelled, detail.Status)

	// Cancelling again is a no-op, not an error.
	detail, err = svc.Cancel(context.Background(), "appt-1")
	require.NoError(t, err)
	require.Equal(t, models.AppointmentCancelled, detail.Status)
}

func TestAppointmentCancelCompletedRejected(t *testing.T) {
	store := newAppointmentStoreStub()
	store.byID["appt-done"] = &models.Appointment{
		ID:     "appt-done",
		Status: models.AppointmentCompleted,
	}
	svc := NewAppointmentService(store, busyLookupStub{}, knownPatients(), nil, nil, nil)

	_, err := svc.Cancel(context.Background(), "appt-done")
	require.ErrorIs(t, err, appErrors.ErrInvalidState)
	require.Equal(t, models.AppointmentCompleted, store.byID["appt-done"].Status)
}

func TestAppointmentCancelDoesNotResurrectConcurrentCompletion(t *testing.T) {
	// An examination completes the appointment after the client decided to
	// cancel. The guarded transition must refuse, not overwrite.
	store := newAppointmentStoreStub()
	store.byID["appt-1"] = &models.Appointment{
		ID:        "appt-1",
		PatientID: testPatientID,
		Status:    models.AppointmentCompleted,
	}
	store.staleRead = &models.Appointment{
		ID:        "appt-1",
		PatientID: testPatientID,
		Status:    models.AppointmentUpcoming,
	}
	svc := NewAppointmentService(store, busyLookupStub{}, knownPatients(), nil, nil, nil)

	_, err := svc.Cancel(context.Background(), "appt-1")
	require.ErrorIs(t, err, appErrors.ErrInvalidState)
	require.Equal(t, models.AppointmentCompleted, store.byID["appt-1"].Status)
}

func TestAppointmentUpdateLosesRaceToCompletion(t *testing.T) {
	// The pre-check sees an upcoming appointment, but the row is completed
	// by the time the guarded slot write runs.
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	store := newAppointmentStoreStub()
	store.byID["appt-1"] = &models.Appointment{
		ID:        "appt-1",
		PatientID: testPatientID,
		Date:      date,
		Time:      models.NewTimeOfDay(10, 0),
		Status:    models.AppointmentCompleted,
	}
	store.staleRead = &models.Appointment{
		ID:        "appt-1",
		PatientID: testPatientID,
		Date:      date,
		Time:      models.NewTimeOfDay(10, 0),
		Status:    models.AppointmentUpcoming,
	}
	svc := NewAppointmentService(store, busyLookupStub{}, knownPatients(), nil, nil, nil)

	newTime := "11:00"
	_, err := svc.Update(context.Background(), "appt-1", dto.UpdateAppointmentRequest{Time: &newTime})
	require.ErrorIs(t, err, appErrors.ErrInvalidState)
	require.Equal(t, models.NewTimeOfDay(10, 0), store.byID["appt-1"].Time)
	require.Equal(t, models.AppointmentCompleted, store.byID["appt-1"].Status)
}

func TestAppointmentCancelNotFound(t *testing.T) {
	svc := NewAppointmentService(newAppointmentStoreStub(), busyLookupStub{}, knownPatients(), nil, nil, nil)

	_, err := svc.Cancel(context.Background(), "missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAppointmentDeleteOnlyWhenCancelled(t *testing.T) {
	store := newAppointmentStoreStub()
	store.byID["appt-up"] = &models.Appointment{
		ID:     "appt-up",
		Status: models.AppointmentUpcoming,
	}
	store.byID["appt-gone"] = &models.Appointment{
		ID:     "appt-gone",
		Status: models.AppointmentCancelled,
	}
	svc := NewAppointmentService(store, busyLookupStub{}, knownPatients(), nil, nil, nil)

	err := svc.Delete(context.Background(), "appt-up")
	require.ErrorIs(t, err, appErrors.ErrInvalidState)
	require.Empty(t, store.deleted)

	require.NoError(t, svc.Delete(context.Background(), "appt-gone"))
	require.Equal(t, []string{"appt-gone"}, store.deleted)

	err = svc.Delete(context.Background(), "appt-gone")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAppointmentAvailabilityGrid(t *testing.T) {
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	store := newAppointmentStoreStub()
	store.forDate = []models.AppointmentDetail{{
		Appointment: models.Appointment{
			ID:     "appt-1",
			Date:   date,
			Time:   models.NewTimeOfDay(10, 0),
			Status: models.AppointmentUpcoming,
		},
	}}
	busy := busyLookupStub{intervals: []models.BusyInterval{{
		Date:      date,
		StartTime: models.NewTimeOfDay(12, 0),
		EndTime:   models.NewTimeOfDay(13, 0),
	}}}
	svc := NewAppointmentService(store, busy, knownPatients(), nil, nil, nil)

	grid, err := svc.Availability(context.Background(), "2026-09-14")
	require.NoError(t, err)
	require.Len(t, grid, 16)

	byTime := make(map[string]dto.SlotAvailability, len(grid))
	for _, slot := range grid {
		byTime[slot.Time] = slot
	}
	assert.False(t, byTime["10:00"].Available)
	assert.Equal(t, "booked", byTime["10:00"].Reason)
	assert.False(t, byTime["12:30"].Available)
	assert.Equal(t, "busy", byTime["12:30"].Reason)
	assert.True(t, byTime["09:00"].Available)
	assert.True(t, byTime["16:30"].Available)
	assert.True(t, byTime["13:00"].Available)
}

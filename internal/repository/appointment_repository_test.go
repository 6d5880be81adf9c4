package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/medidesk/medidesk-api/internal/models"
)

func newAppointmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAppointmentRepositoryInsertAndFind(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appointments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	appt := &models.Appointment{
		PatientID: "pat-1",
		Date:      time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		Time:      models.NewTimeOfDay(10, 0),
		CreatedBy: "user-1",
		Status:    models.AppointmentUpcoming,
	}
	require.NoError(t, repo.Insert(context.Background(), nil, appt))
	require.NotEmpty(t, appt.ID)

	rows := sqlmock.NewRows([]string{"id", "patient_id", "date", "time", "created_by", "status", "created_at", "updated_at"}).
		AddRow(appt.ID, appt.PatientID, appt.Date, "10:00:00", appt.CreatedBy, appt.Status, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, patient_id, date, time, created_by, status")).
		WithArgs(appt.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), nil, appt.ID)
	require.NoError(t, err)
	require.Equal(t, appt.ID, found.ID)
	require.Equal(t, models.NewTimeOfDay(10, 0), found.Time)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryFindUpcomingAtExcludesSelf(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("AND a.id <> $4")).
		WithArgs(date, models.NewTimeOfDay(9, 30), models.AppointmentUpcoming, "appt-self").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindUpcomingAt(context.Background(), nil, date, models.NewTimeOfDay(9, 30), "appt-self")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryWithSlotTxAcquiresAdvisoryLock(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	slot := models.NewTimeOfDay(11, 30)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(slotLockKey(date, slot)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appointments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.WithSlotTx(context.Background(), date, slot, func(tx *sqlx.Tx) error {
		return repo.Insert(context.Background(), tx, &models.Appointment{
			PatientID: "pat-1",
			Date:      date,
			Time:      slot,
			CreatedBy: "user-1",
			Status:    models.AppointmentUpcoming,
		})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryWithSlotTxRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	slot := models.NewTimeOfDay(14, 0)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(slotLockKey(date, slot)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	sentinel := context.Canceled
	err := repo.WithSlotTx(context.Background(), date, slot, func(tx *sqlx.Tx) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryUpdateStatusGuardsCurrentState(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("AND status = $4")).
		WithArgs(models.AppointmentCompleted, sqlmock.AnyArg(), "appt-1", models.AppointmentUpcoming).
		WillReturnResult(sqlmock.NewResult(0, 1))

	moved, err := repo.UpdateStatus(context.Background(), nil, "appt-1", models.AppointmentUpcoming, models.AppointmentCompleted)
	require.NoError(t, err)
	require.True(t, moved)

	// No row in the expected state: report it rather than writing blind.
	mock.ExpectExec(regexp.QuoteMeta("AND status = $4")).
		WithArgs(models.AppointmentCancelled, sqlmock.AnyArg(), "appt-1", models.AppointmentUpcoming).
		WillReturnResult(sqlmock.NewResult(0, 0))

	moved, err = repo.UpdateStatus(context.Background(), nil, "appt-1", models.AppointmentUpcoming, models.AppointmentCancelled)
	require.NoError(t, err)
	require.False(t, moved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryUpdateSlotOnlyMovesUpcoming(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("AND status = 'upcoming'")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	moved, err := repo.UpdateSlot(context.Background(), nil, &models.Appointment{
		ID:        "appt-1",
		PatientID: "pat-1",
		Date:      time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		Time:      models.NewTimeOfDay(11, 0),
	})
	require.NoError(t, err)
	require.False(t, moved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotLockKeyStablePerSlot(t *testing.T) {
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	a := slotLockKey(date, models.NewTimeOfDay(10, 0))
	b := slotLockKey(date, models.NewTimeOfDay(10, 0))
	c := slotLockKey(date, models.NewTimeOfDay(10, 30))
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

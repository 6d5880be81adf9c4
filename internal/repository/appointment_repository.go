package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medidesk/medidesk-api/internal/models"
)

// AppointmentRepository provides persistence for appointments.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository creates a new appointment repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// slotLockKey derives the advisory-lock key for a slot. The check-then-insert
// sequence for a slot must serialize even when no row exists yet, which a row
// lock cannot provide.
func slotLockKey(date time.Time, t models.TimeOfDay) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(models.SlotKey(date, t)))
	return int64(h.Sum64())
}

// WithSlotTx runs fn inside a transaction holding the advisory lock for the
// given slot. The lock is released on commit or rollback.
func (r *AppointmentRepository) WithSlotTx(ctx context.Context, date time.Time, t models.TimeOfDay, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin slot transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, slotLockKey(date, t)); err != nil {
		return fmt.Errorf("acquire slot advisory lock: %w", err)
	}

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit slot transaction: %w", err)
	}
	return nil
}

const appointmentColumns = `id, patient_id, date, time, created_by, status, created_at, updated_at`

// List returns appointments with optional filtering and pagination.
func (r *AppointmentRepository) List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, int, error) {
	base := `FROM appointments a JOIN patients p ON p.id = a.patient_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.PatientID != "" {
		conditions = append(conditions, fmt.Sprintf("a.patient_id = $%d", len(args)+1))
		args = append(args, filter.PatientID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("a.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("a.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"date":       "a.date",
		"time":       "a.time",
		"status":     "a.status",
		"created_at": "a.created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "a.date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT a.id, a.patient_id, a.date, a.time, a.created_by, a.status, a.created_at, a.updated_at, p.name AS patient_name, p.email AS patient_email %s ORDER BY %s %s, a.time ASC LIMIT %d OFFSET %d`, base, column, order, size, offset)
	var appointments []models.AppointmentDetail
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	return appointments, total, nil
}

// FindByID loads an appointment by id.
func (r *AppointmentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE id = $1`, appointmentColumns)
	var appt models.Appointment
	if err := sqlx.GetContext(ctx, r.exec(exec), &appt, query, id); err != nil {
		return nil, err
	}
	return &appt, nil
}

// FindDetailByID loads an appointment joined with patient contact data.
func (r *AppointmentRepository) FindDetailByID(ctx context.Context, id string) (*models.AppointmentDetail, error) {
	const query = `SELECT a.id, a.patient_id, a.date, a.time, a.created_by, a.status, a.created_at, a.updated_at, p.name AS patient_name, p.email AS patient_email
FROM appointments a JOIN patients p ON p.id = a.patient_id WHERE a.id = $1`
	var detail models.AppointmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindUpcomingAt returns the upcoming appointment occupying a slot, if any.
// Cancelled and completed appointments never block a slot.
func (r *AppointmentRepository) FindUpcomingAt(ctx context.Context, exec sqlx.ExtContext, date time.Time, t models.TimeOfDay, excludeID string) (*models.AppointmentDetail, error) {
	query := `SELECT a.id, a.patient_id, a.date, a.time, a.created_by, a.status, a.created_at, a.updated_at, p.name AS patient_name, p.email AS patient_email
FROM appointments a JOIN patients p ON p.id = a.patient_id
WHERE a.date = $1 AND a.time = $2 AND a.status = $3`
	args := []interface{}{date, t, models.AppointmentUpcoming}
	if excludeID != "" {
		query += " AND a.id <> $4"
		args = append(args, excludeID)
	}

	var detail models.AppointmentDetail
	if err := sqlx.GetContext(ctx, r.exec(exec), &detail, query, args...); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByTriple resolves the appointment an examination settles.
func (r *AppointmentRepository) FindByTriple(ctx context.Context, exec sqlx.ExtContext, patientID string, date time.Time, t models.TimeOfDay) (*models.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE patient_id = $1 AND date = $2 AND time = $3 ORDER BY created_at DESC LIMIT 1`, appointmentColumns)
	var appt models.Appointment
	if err := sqlx.GetContext(ctx, r.exec(exec), &appt, query, patientID, date, t); err != nil {
		return nil, err
	}
	return &appt, nil
}

// Insert stores a new appointment record.
func (r *AppointmentRepository) Insert(ctx context.Context, exec sqlx.ExtContext, appt *models.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now

	const query = `INSERT INTO appointments (id, patient_id, date, time, created_by, status, created_at, updated_at)
VALUES (:id, :patient_id, :date, :time, :created_by, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, appt); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// UpdateSlot moves an upcoming appointment to a new patient/date/time. The
// write is guarded on the row still being upcoming so a reschedule cannot
// clobber a transition that committed after the caller's read; it reports
// whether a row actually changed.
func (r *AppointmentRepository) UpdateSlot(ctx context.Context, exec sqlx.ExtContext, appt *models.Appointment) (bool, error) {
	appt.UpdatedAt = time.Now().UTC()
	const query = `UPDATE appointments SET patient_id = :patient_id, date = :date, time = :time, updated_at = :updated_at WHERE id = :id AND status = 'upcoming'`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, appt)
	if err != nil {
		return false, fmt.Errorf("update appointment slot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update appointment slot: %w", err)
	}
	return n > 0, nil
}

// UpdateStatus transitions an appointment's lifecycle status. The write is
// conditional on the current status, so concurrent transitions cannot
// overwrite each other; it reports whether the transition happened.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.AppointmentStatus) (bool, error) {
	const query = `UPDATE appointments SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.exec(exec).ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("update appointment status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update appointment status: %w", err)
	}
	return n > 0, nil
}

// Delete removes an appointment row. Lifecycle rules are enforced by the
// service before calling this.
func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return nil
}

// ListForDate returns the day's appointments ordered by time, for the day
// sheet export and the dashboard.
func (r *AppointmentRepository) ListForDate(ctx context.Context, date time.Time) ([]models.AppointmentDetail, error) {
	const query = `SELECT a.id, a.patient_id, a.date, a.time, a.created_by, a.status, a.created_at, a.updated_at, p.name AS patient_name, p.email AS patient_email
FROM appointments a JOIN patients p ON p.id = a.patient_id
WHERE a.date = $1 ORDER BY a.time ASC`
	var appointments []models.AppointmentDetail
	if err := r.db.SelectContext(ctx, &appointments, query, date); err != nil {
		return nil, fmt.Errorf("list appointments for date: %w", err)
	}
	return appointments, nil
}

// ListBetween returns appointments in an inclusive date range.
func (r *AppointmentRepository) ListBetween(ctx context.Context, from, to time.Time) ([]models.AppointmentDetail, error) {
	const query = `SELECT a.id, a.patient_id, a.date, a.time, a.created_by, a.status, a.created_at, a.updated_at, p.name AS patient_name, p.email AS patient_email
FROM appointments a JOIN patients p ON p.id = a.patient_id
WHERE a.date >= $1 AND a.date <= $2 ORDER BY a.date ASC, a.time ASC`
	var appointments []models.AppointmentDetail
	if err := r.db.SelectContext(ctx, &appointments, query, from, to); err != nil {
		return nil, fmt.Errorf("list appointments between dates: %w", err)
	}
	return appointments, nil
}

// CountByStatus returns the number of appointments with the given status; an
// empty status counts everything except cancelled, matching the dashboard's
// "total appointments" figure.
func (r *AppointmentRepository) CountByStatus(ctx context.Context, status models.AppointmentStatus) (int, error) {
	var total int
	if status == "" {
		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM appointments WHERE status <> $1`, models.AppointmentCancelled); err != nil {
			return 0, fmt.Errorf("count appointments: %w", err)
		}
		return total, nil
	}
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM appointments WHERE status = $1`, status); err != nil {
		return 0, fmt.Errorf("count appointments by status: %w", err)
	}
	return total, nil
}

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medidesk/medidesk-api/internal/models"
)

// ExaminationRepository provides persistence for examinations and their
// prescriptions.
type ExaminationRepository struct {
	db *sqlx.DB
}

// NewExaminationRepository creates a new examination repository.
func NewExaminationRepository(db *sqlx.DB) *ExaminationRepository {
	return &ExaminationRepository{db: db}
}

func (r *ExaminationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// WithTx runs fn inside a transaction, used to keep an examination insert and
// the appointment auto-complete atomic.
func (r *ExaminationRepository) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin examination transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit examination transaction: %w", err)
	}
	return nil
}

// List returns examinations with optional filtering and pagination.
func (r *ExaminationRepository) List(ctx context.Context, filter models.ExaminationFilter) ([]models.ExaminationDetail, int, error) {
	base := `FROM examinations e JOIN patients p ON p.id = e.patient_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.PatientID != "" {
		conditions = append(conditions, fmt.Sprintf("e.patient_id = $%d", len(args)+1))
		args = append(args, filter.PatientID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("e.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("e.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf(`SELECT e.id, e.patient_id, e.date, e.time, e.symptoms, e.diagnosis, e.created_by, e.created_at, p.name AS patient_name %s ORDER BY e.date DESC, e.time DESC LIMIT %d OFFSET %d`, base, size, offset)
	var examinations []models.ExaminationDetail
	if err := r.db.SelectContext(ctx, &examinations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list examinations: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count examinations: %w", err)
	}

	return examinations, total, nil
}

// FindDetailByID loads an examination with its prescriptions.
func (r *ExaminationRepository) FindDetailByID(ctx context.Context, id string) (*models.ExaminationDetail, error) {
	const query = `SELECT e.id, e.patient_id, e.date, e.time, e.symptoms, e.diagnosis, e.created_by, e.created_at, p.name AS patient_name
FROM examinations e JOIN patients p ON p.id = e.patient_id WHERE e.id = $1`
	var detail models.ExaminationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}

	prescriptions, err := r.ListPrescriptions(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Prescriptions = prescriptions
	return &detail, nil
}

// ListPrescriptions returns the prescriptions attached to an examination.
func (r *ExaminationRepository) ListPrescriptions(ctx context.Context, examinationID string) ([]models.Prescription, error) {
	const query = `SELECT id, examination_id, medicine_id, dosage, duration, notes FROM prescriptions WHERE examination_id = $1 ORDER BY id ASC`
	var prescriptions []models.Prescription
	if err := r.db.SelectContext(ctx, &prescriptions, query, examinationID); err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	return prescriptions, nil
}

// Insert stores a new examination record.
func (r *ExaminationRepository) Insert(ctx context.Context, exec sqlx.ExtContext, exam *models.Examination) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO examinations (id, patient_id, date, time, symptoms, diagnosis, created_by, created_at)
VALUES (:id, :patient_id, :date, :time, :symptoms, :diagnosis, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, exam); err != nil {
		return fmt.Errorf("insert examination: %w", err)
	}
	return nil
}

// InsertPrescription stores a prescription line inside the caller's
// transaction.
func (r *ExaminationRepository) InsertPrescription(ctx context.Context, exec sqlx.ExtContext, prescription *models.Prescription) error {
	if prescription.ID == "" {
		prescription.ID = uuid.NewString()
	}
	const query = `INSERT INTO prescriptions (id, examination_id, medicine_id, dosage, duration, notes)
VALUES (:id, :examination_id, :medicine_id, :dosage, :duration, :notes)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, prescription); err != nil {
		return fmt.Errorf("insert prescription: %w", err)
	}
	return nil
}

// Update replaces an examination's clinical fields.
func (r *ExaminationRepository) Update(ctx context.Context, exec sqlx.ExtContext, exam *models.Examination) error {
	const query = `UPDATE examinations SET symptoms = :symptoms, diagnosis = :diagnosis WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, exam); err != nil {
		return fmt.Errorf("update examination: %w", err)
	}
	return nil
}

// DeletePrescriptions removes all prescription lines of an examination, used
// when an update replaces the prescription list.
func (r *ExaminationRepository) DeletePrescriptions(ctx context.Context, exec sqlx.ExtContext, examinationID string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `DELETE FROM prescriptions WHERE examination_id = $1`, examinationID); err != nil {
		return fmt.Errorf("delete prescriptions: %w", err)
	}
	return nil
}

// Delete removes an examination; prescriptions cascade at the schema level.
func (r *ExaminationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM examinations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete examination: %w", err)
	}
	return nil
}

// Count returns the total number of examinations.
func (r *ExaminationRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM examinations`); err != nil {
		return 0, fmt.Errorf("count examinations: %w", err)
	}
	return total, nil
}

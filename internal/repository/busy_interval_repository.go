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

// BusyIntervalRepository provides persistence for doctor busy intervals.
type BusyIntervalRepository struct {
	db *sqlx.DB
}

// NewBusyIntervalRepository creates a new busy interval repository.
func NewBusyIntervalRepository(db *sqlx.DB) *BusyIntervalRepository {
	return &BusyIntervalRepository{db: db}
}

func (r *BusyIntervalRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const busyIntervalColumns = `id, date, start_time, end_time, reason, created_at`

// dateLockKey derives the advisory-lock key for a day's busy intervals. The
// prefix keeps the keyspace disjoint from the appointment slot locks.
func dateLockKey(date time.Time) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("busy-intervals:" + models.FormatDate(date)))
	return int64(h.Sum64())
}

// WithDateTx runs fn inside a transaction holding the advisory lock for the
// given date. The overlap check and the write for a day must serialize, and a
// row lock cannot cover an interval that does not exist yet. The lock is
// released on commit or rollback.
func (r *BusyIntervalRepository) WithDateTx(ctx context.Context, date time.Time, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin busy interval transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, dateLockKey(date)); err != nil {
		return fmt.Errorf("acquire date advisory lock: %w", err)
	}

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit busy interval transaction: %w", err)
	}
	return nil
}

// List returns busy intervals with optional date filtering.
func (r *BusyIntervalRepository) List(ctx context.Context, filter models.BusyIntervalFilter) ([]models.BusyInterval, int, error) {
	base := `FROM busy_intervals WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
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

	query := fmt.Sprintf(`SELECT %s %s ORDER BY date ASC, start_time ASC LIMIT %d OFFSET %d`, busyIntervalColumns, base, size, offset)
	var intervals []models.BusyInterval
	if err := r.db.SelectContext(ctx, &intervals, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list busy intervals: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count busy intervals: %w", err)
	}

	return intervals, total, nil
}

// FindByID loads a busy interval by id.
func (r *BusyIntervalRepository) FindByID(ctx context.Context, id string) (*models.BusyInterval, error) {
	query := fmt.Sprintf(`SELECT %s FROM busy_intervals WHERE id = $1`, busyIntervalColumns)
	var interval models.BusyInterval
	if err := r.db.GetContext(ctx, &interval, query, id); err != nil {
		return nil, err
	}
	return &interval, nil
}

// ListForDate returns the intervals registered on a given date.
func (r *BusyIntervalRepository) ListForDate(ctx context.Context, exec sqlx.ExtContext, date time.Time) ([]models.BusyInterval, error) {
	query := fmt.Sprintf(`SELECT %s FROM busy_intervals WHERE date = $1 ORDER BY start_time ASC`, busyIntervalColumns)
	var intervals []models.BusyInterval
	if err := sqlx.SelectContext(ctx, r.exec(exec), &intervals, query, date); err != nil {
		return nil, fmt.Errorf("list busy intervals for date: %w", err)
	}
	return intervals, nil
}

// Covering returns intervals that contain the given time on the given date.
// Containment is half-open: start <= t < end, so an interval ending at 10:00
// leaves the 10:00 slot free.
func (r *BusyIntervalRepository) Covering(ctx context.Context, exec sqlx.ExtContext, date time.Time, t models.TimeOfDay) ([]models.BusyInterval, error) {
	query := fmt.Sprintf(`SELECT %s FROM busy_intervals WHERE date = $1 AND start_time <= $2 AND end_time > $2 ORDER BY start_time ASC`, busyIntervalColumns)
	var intervals []models.BusyInterval
	if err := sqlx.SelectContext(ctx, r.exec(exec), &intervals, query, date, t); err != nil {
		return nil, fmt.Errorf("find covering busy intervals: %w", err)
	}
	return intervals, nil
}

// Overlapping returns intervals on the date whose half-open range intersects
// [start, end), excluding the interval with excludeID when set.
func (r *BusyIntervalRepository) Overlapping(ctx context.Context, exec sqlx.ExtContext, date time.Time, start, end models.TimeOfDay, excludeID string) ([]models.BusyInterval, error) {
	query := fmt.Sprintf(`SELECT %s FROM busy_intervals WHERE date = $1 AND start_time < $3 AND end_time > $2`, busyIntervalColumns)
	args := []interface{}{date, start, end}
	if excludeID != "" {
		query += " AND id <> $4"
		args = append(args, excludeID)
	}
	query += " ORDER BY start_time ASC"

	var intervals []models.BusyInterval
	if err := sqlx.SelectContext(ctx, r.exec(exec), &intervals, query, args...); err != nil {
		return nil, fmt.Errorf("find overlapping busy intervals: %w", err)
	}
	return intervals, nil
}

// Insert stores a new busy interval.
func (r *BusyIntervalRepository) Insert(ctx context.Context, exec sqlx.ExtContext, interval *models.BusyInterval) error {
	if interval.ID == "" {
		interval.ID = uuid.NewString()
	}
	if interval.CreatedAt.IsZero() {
		interval.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO busy_intervals (id, date, start_time, end_time, reason, created_at)
VALUES (:id, :date, :start_time, :end_time, :reason, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, interval); err != nil {
		return fmt.Errorf("insert busy interval: %w", err)
	}
	return nil
}

// Update replaces a busy interval's date, range and reason.
func (r *BusyIntervalRepository) Update(ctx context.Context, exec sqlx.ExtContext, interval *models.BusyInterval) error {
	const query = `UPDATE busy_intervals SET date = :date, start_time = :start_time, end_time = :end_time, reason = :reason WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, interval); err != nil {
		return fmt.Errorf("update busy interval: %w", err)
	}
	return nil
}

// Delete removes a busy interval.
func (r *BusyIntervalRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM busy_intervals WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete busy interval: %w", err)
	}
	return nil
}

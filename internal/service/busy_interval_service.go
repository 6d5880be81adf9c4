package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/medidesk/medidesk-api/internal/dto"
	"github.com/medidesk/medidesk-api/internal/models"
	appErrors "github.com/medidesk/medidesk-api/pkg/errors"
)

type busyIntervalStore interface {
	WithDateTx(ctx context.Context, date time.Time, fn func(tx *sqlx.Tx) error) error
	List(ctx context.Context, filter models.BusyIntervalFilter) ([]models.BusyInterval, int, error)
	FindByID(ctx context.Context, id string) (*models.BusyInterval, error)
	Overlapping(ctx context.Context, exec sqlx.ExtContext, date time.Time, start, end models.TimeOfDay, excludeID string) ([]models.BusyInterval, error)
	Insert(ctx context.Context, exec sqlx.ExtContext, interval *models.BusyInterval) error
	Update(ctx context.Context, exec sqlx.ExtContext, interval *models.BusyInterval) error
	Delete(ctx context.Context, id string) error
}

// BusyIntervalService manages the doctor's blocked hours.
type BusyIntervalService struct {
	repo     busyIntervalStore
	validate *validator.Validate
	logger   *zap.Logger
	loc      *time.Location
	now      func() time.Time
}

// NewBusyIntervalService constructs the service. loc anchors the "no past
// dates" rule to the office's local calendar.
func NewBusyIntervalService(repo busyIntervalStore, loc *time.Location, logger *zap.Logger) *BusyIntervalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &BusyIntervalService{
		repo:     repo,
		validate: validator.New(),
		logger:   logger,
		loc:      loc,
		now:      time.Now,
	}
}

// validateInterval enforces the busy-hours rules: a well-ordered range, inside
// office hours, on a date that has not already passed.
func (s *BusyIntervalService) validateInterval(date time.Time, start, end models.TimeOfDay) error {
	if start >= end {
		return appErrors.ErrInvalidRange
	}
	today := s.now().In(s.loc)
	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if date.Before(todayDate) {
		return appErrors.ErrPastDate
	}
	if start < models.OpeningTime || end.Hour() >= models.ClosingTime.Hour() {
		return appErrors.ErrOutOfHours
	}
	return nil
}

func (s *BusyIntervalService) checkOverlap(ctx context.Context, exec sqlx.ExtContext, date time.Time, start, end models.TimeOfDay, excludeID string) error {
	overlapping, err := s.repo.Overlapping(ctx, exec, date, start, end, excludeID)
	if err != nil {
		return appErrors.NewInternalError(err)
	}
	if len(overlapping) == 0 {
		return nil
	}
	conflicts := make([]models.BusyConflict, 0, len(overlapping))
	for _, interval := range overlapping {
		conflicts = append(conflicts, models.BusyConflict{
			IntervalID: interval.ID,
			Reason:     interval.Reason,
			StartTime:  interval.StartTime,
			EndTime:    interval.EndTime,
		})
	}
	return appErrors.WithDetails(appErrors.ErrBusyOverlap, conflicts)
}

func (s *BusyIntervalService) parseRequest(rawDate, rawStart, rawEnd string) (time.Time, models.TimeOfDay, models.TimeOfDay, error) {
	date, err := models.ParseDate(rawDate)
	if err != nil {
		return time.Time{}, 0, 0, appErrors.NewValidationError(fmt.Sprintf("invalid date: %s", rawDate))
	}
	start, err := models.ParseTimeOfDay(rawStart)
	if err != nil {
		return time.Time{}, 0, 0, appErrors.NewValidationError(fmt.Sprintf("invalid start time: %s", rawStart))
	}
	end, err := models.ParseTimeOfDay(rawEnd)
	if err != nil {
		return time.Time{}, 0, 0, appErrors.NewValidationError(fmt.Sprintf("invalid end time: %s", rawEnd))
	}
	return date, start, end, nil
}

// List returns busy intervals matching the filter.
func (s *BusyIntervalService) List(ctx context.Context, filter models.BusyIntervalFilter) ([]models.BusyInterval, *models.Pagination, error) {
	intervals, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.NewInternalError(err)
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return intervals, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one busy interval.
func (s *BusyIntervalService) Get(ctx context.Context, id string) (*models.BusyInterval, error) {
	interval, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.NewInternalError(err)
	}
	return interval, nil
}

// Create registers a new busy interval after validating the range, the
// office-hours bounds and overlap with existing intervals.
func (s *BusyIntervalService) Create(ctx context.Context, req dto.CreateBusyIntervalRequest) (*models.BusyInterval, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.NewValidationError(err.Error())
	}
	date, start, end, err := s.parseRequest(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if err := s.validateInterval(date, start, end); err != nil {
		return nil, err
	}
	interval := &models.BusyInterval{
		Date:      date,
		StartTime: start,
		EndTime:   end,
		Reason:    req.Reason,
	}
	// The overlap check and the insert hold the date's advisory lock so
	// two concurrent requests cannot both see a clear range.
	err = s.repo.WithDateTx(ctx, date, func(tx *sqlx.Tx) error {
		if err := s.checkOverlap(ctx, tx, date, start, end, ""); err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, interval); err != nil {
			return appErrors.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.NewInternalError(err)
	}

	s.logger.Info("busy interval created",
		zap.String("interval_id", interval.ID),
		zap.String("date", models.FormatDate(date)),
		zap.String("start", start.String()),
		zap.String("end", end.String()))
	return interval, nil
}

// Update replaces a busy interval's range, revalidating against the other
// intervals but not against itself.
func (s *BusyIntervalService) Update(ctx context.Context, id string, req dto.UpdateBusyIntervalRequest) (*models.BusyInterval, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.NewValidationError(err.Error())
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.NewInternalError(err)
	}

	date, start, end, err := s.parseRequest(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if err := s.validateInterval(date, start, end); err != nil {
		return nil, err
	}
	current.Date = date
	current.StartTime = start
	current.EndTime = end
	current.Reason = req.Reason
	err = s.repo.WithDateTx(ctx, date, func(tx *sqlx.Tx) error {
		if err := s.checkOverlap(ctx, tx, date, start, end, id); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, tx, current); err != nil {
			return appErrors.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.NewInternalError(err)
	}
	return current, nil
}

// Delete removes a busy interval, reopening its slots.
func (s *BusyIntervalService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.NewInternalError(err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.NewInternalError(err)
	}
	s.logger.Info("busy interval deleted", zap.String("interval_id", id))
	return nil
}

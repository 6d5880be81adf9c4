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
	"github.com/medidesk/medidesk-api/pkg/cache"
	appErrors "github.com/medidesk/medidesk-api/pkg/errors"
)

type appointmentStore interface {
	WithSlotTx(ctx context.Context, date time.Time, t models.TimeOfDay, fn func(tx *sqlx.Tx) error) error
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, int, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Appointment, error)
	FindDetailByID(ctx context.Context, id string) (*models.AppointmentDetail, error)
	FindUpcomingAt(ctx context.Context, exec sqlx.ExtContext, date time.Time, t models.TimeOfDay, excludeID string) (*models.AppointmentDetail, error)
	Insert(ctx context.Context, exec sqlx.ExtContext, appt *models.Appointment) error
	UpdateSlot(ctx context.Context, exec sqlx.ExtContext, appt *models.Appointment) (bool, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.AppointmentStatus) (bool, error)
	Delete(ctx context.Context, id string) error
	ListForDate(ctx context.Context, date time.Time) ([]models.AppointmentDetail, error)
}

type busyLookup interface {
	Covering(ctx context.Context, exec sqlx.ExtContext, date time.Time, t models.TimeOfDay) ([]models.BusyInterval, error)
	ListForDate(ctx context.Context, exec sqlx.ExtContext, date time.Time) ([]models.BusyInterval, error)
}

type patientLookup interface {
	FindByID(ctx context.Context, id string) (*models.Patient, error)
}

type bookingNotifier interface {
	AppointmentBooked(ctx context.Context, appt models.AppointmentDetail)
}

// AppointmentService owns slot validation, conflict detection and the
// appointment lifecycle.
type AppointmentService struct {
	repo     appointmentStore
	busy     busyLookup
	patients patientLookup
	locker   cache.SlotLocker
	notifier bookingNotifier
	validate *validator.Validate
	logger   *zap.Logger
}

// NewAppointmentService constructs the service. locker and notifier may be
// nil, in which case Redis fast-fail and confirmations are skipped.
func NewAppointmentService(repo appointmentStore, busy busyLookup, patients patientLookup, locker cache.SlotLocker, notifier bookingNotifier, logger *zap.Logger) *AppointmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = cache.NoopSlotLocker{}
	}
	return &AppointmentService{
		repo:     repo,
		busy:     busy,
		patients: patients,
		locker:   locker,
		notifier: notifier,
		validate: validator.New(),
		logger:   logger,
	}
}

// validateSlotPolicy enforces the business-hours and granularity rules every
// appointment slot must satisfy.
func validateSlotPolicy(t models.TimeOfDay) error {
	if !models.OnSlotBoundary(t) {
		return appErrors.ErrInvalidGranularity
	}
	if !models.WithinOfficeHours(t) {
		return appErrors.ErrOutOfHours
	}
	return nil
}

// checkSlot runs the conflict checks for a slot inside the caller's
// transaction: busy intervals first, then the double-booking rule. excludeID
// keeps a rescheduled appointment from colliding with itself.
func (s *AppointmentService) checkSlot(ctx context.Context, exec sqlx.ExtContext, date time.Time, t models.TimeOfDay, excludeID string) error {
	covering, err := s.busy.Covering(ctx, exec, date, t)
	if err != nil {
		return appErrors.NewInternalError(err)
	}
	if len(covering) > 0 {
		conflicts := make([]models.BusyConflict, 0, len(covering))
		for _, interval := range covering {
			conflicts = append(conflicts, models.BusyConflict{
				IntervalID: interval.ID,
				Reason:     interval.Reason,
				StartTime:  interval.StartTime,
				EndTime:    interval.EndTime,
			})
		}
		return appErrors.WithDetails(appErrors.ErrDoctorUnavailable, conflicts)
	}

	existing, err := s.repo.FindUpcomingAt(ctx, exec, date, t, excludeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.NewInternalError(err)
	}
	return appErrors.WithDetails(appErrors.ErrSlotTaken, models.SlotConflict{
		AppointmentID: existing.ID,
		PatientID:     existing.PatientID,
		PatientName:   existing.PatientName,
		Date:          existing.Date,
		Time:          existing.Time,
	})
}

func parseSlot(rawDate, rawTime string) (time.Time, models.TimeOfDay, error) {
	date, err := models.ParseDate(rawDate)
	if err != nil {
		return time.Time{}, 0, appErrors.NewValidationError(fmt.Sprintf("invalid date: %s", rawDate))
	}
	t, err := models.ParseTimeOfDay(rawTime)
	if err != nil {
		return time.Time{}, 0, appErrors.NewValidationError(fmt.Sprintf("invalid time: %s", rawTime))
	}
	return date, t, nil
}

// List returns appointments matching the filter with pagination metadata.
func (s *AppointmentService) List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, *models.Pagination, error) {
	appointments, total, err := s.repo.List(ctx, filter)
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
	return appointments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one appointment with patient details.
func (s *AppointmentService) Get(ctx context.Context, id string) (*models.AppointmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.NewInternalError(err)
	}
	return detail, nil
}

// Create books an appointment. The slot checks and the insert run under the
// slot's advisory lock so two concurrent requests for the same slot cannot
// both succeed; the Redis slot lock in front fails fast under contention.
func (s *AppointmentService) Create(ctx context.Context, req dto.CreateAppointmentRequest, createdBy string) (*models.AppointmentDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.NewValidationError(err.Error())
	}
	date, slot, err := parseSlot(req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	if err := validateSlotPolicy(slot); err != nil {
		return nil, err
	}

	if _, err := s.patients.FindByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.NewInternalError(err)
	}

	appt := &models.Appointment{
		PatientID: req.PatientID,
		Date:      date,
		Time:      slot,
		CreatedBy: createdBy,
		Status:    models.AppointmentUpcoming,
	}

	err = s.locker.WithSlotLock(ctx, models.SlotKey(date, slot), func(ctx context.Context) error {
		return s.repo.WithSlotTx(ctx, date, slot, func(tx *sqlx.Tx) error {
			if err := s.checkSlot(ctx, tx, date, slot, ""); err != nil {
				return err
			}
			return s.repo.Insert(ctx, tx, appt)
		})
	})
	if err != nil {
		if errors.Is(err, cache.ErrLockNotAcquired) {
			return nil, appErrors.ErrSlotContended
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.NewInternalError(err)
	}

	detail, err := s.repo.FindDetailByID(ctx, appt.ID)
	if err != nil {
		return nil, appErrors.NewInternalError(err)
	}

	s.logger.Info("appointment booked",
		zap.String("appointment_id", appt.ID),
		zap.String("patient_id", appt.PatientID),
		zap.String("date", models.FormatDate(date)),
		zap.String("time", slot.String()))

	if s.notifier != nil {
		s.notifier.AppointmentBooked(ctx, *detail)
	}
	return detail, nil
}

// Update reschedules an upcoming appointment. Completed and cancelled
// appointments are immutable.
func (s *AppointmentService) Update(ctx context.Context, id string, req dto.UpdateAppointmentRequest) (*models.AppointmentDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.NewValidationError(err.Error())
	}

	current, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.NewInternalError(err)
	}
	if current.Status != models.AppointmentUpcoming {
		return nil, appErrors.ErrInvalidState
	}

	next := *current
	if req.PatientID != nil {
		if _, err := s.patients.FindByID(ctx, *req.PatientID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.ErrNotFound
			}
			return nil, appErrors.NewInternalError(err)
		}
		next.PatientID = *req.PatientID
	}
	if req.Date != nil {
		date, err := models.ParseDate(*req.Date)
		if err != nil {
			return nil, appErrors.NewValidationError(fmt.Sprintf("invalid date: %s", *req.Date))
		}
		next.Date = date
	}
	if req.Time != nil {
		slot, err := models.ParseTimeOfDay(*req.Time)
		if err != nil {
			return nil, appErrors.NewValidationError(fmt.Sprintf("invalid time: %s", *req.Time))
		}
		next.Time = slot
	}
	if err := validateSlotPolicy(next.Time); err != nil {
		return nil, err
	}

	err = s.locker.WithSlotLock(ctx, models.SlotKey(next.Date, next.Time), func(ctx context.Context) error {
		return s.repo.WithSlotTx(ctx, next.Date, next.Time, func(tx *sqlx.Tx) error {
			if err := s.checkSlot(ctx, tx, next.Date, next.Time, id); err != nil {
				return err
			}
			moved, err := s.repo.UpdateSlot(ctx, tx, &next)
			if err != nil {
				return appErrors.NewInternalError(err)
			}
			if !moved {
				// The appointment left the upcoming state between our read
				// and the write, e.g. an examination completed it.
				return appErrors.ErrInvalidState
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, cache.ErrLockNotAcquired) {
			return nil, appErrors.ErrSlotContended
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.NewInternalError(err)
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.NewInternalError(err)
	}
	return detail, nil
}

// Cancel marks an upcoming appointment cancelled and frees its slot.
// Cancelling an already-cancelled appointment is a no-op; completed
// appointments cannot be cancelled. The transition is a single guarded
// write, so a completion that lands between a read and the cancel can never
// be overwritten.
func (s *AppointmentService) Cancel(ctx context.Context, id string) (*models.AppointmentDetail, error) {
	cancelled, err := s.repo.UpdateStatus(ctx, nil, id, models.AppointmentUpcoming, models.AppointmentCancelled)
	if err != nil {
		return nil, appErrors.NewInternalError(err)
	}
	if cancelled {
		s.logger.Info("appointment cancelled", zap.String("appointment_id", id))
	} else {
		// No upcoming row matched: missing, already cancelled, or completed.
		current, err := s.repo.FindByID(ctx, nil, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.ErrNotFound
			}
			return nil, appErrors.NewInternalError(err)
		}
		if current.Status != models.AppointmentCancelled {
			return nil, appErrors.ErrInvalidState
		}
		// Idempotent: repeating a cancel succeeds without a write.
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.NewInternalError(err)
	}
	return detail, nil
}

// Delete removes an appointment record entirely. Only cancelled
// appointments may be deleted; everything else stays for the records.
func (s *AppointmentService) Delete(ctx context.Context, id string) error {
	current, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.NewInternalError(err)
	}
	if current.Status != models.AppointmentCancelled {
		return appErrors.Clone(appErrors.ErrInvalidState, "only cancelled appointments can be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.NewInternalError(err)
	}
	s.logger.Info("appointment deleted", zap.String("appointment_id", id))
	return nil
}

// Availability returns the half-hour slot grid for a day, marking each slot
// free, booked or blocked by a busy interval.
func (s *AppointmentService) Availability(ctx context.Context, rawDate string) ([]dto.SlotAvailability, error) {
	date, err := models.ParseDate(rawDate)
	if err != nil {
		return nil, appErrors.NewValidationError(fmt.Sprintf("invalid date: %s", rawDate))
	}

	intervals, err := s.busy.ListForDate(ctx, nil, date)
	if err != nil {
		return nil, appErrors.NewInternalError(err)
	}
	appointments, err := s.repo.ListForDate(ctx, date)
	if err != nil {
		return nil, appErrors.NewInternalError(err)
	}

	booked := make(map[models.TimeOfDay]bool)
	for _, appt := range appointments {
		if appt.Status == models.AppointmentUpcoming {
			booked[appt.Time] = true
		}
	}

	var grid []dto.SlotAvailability
	for slot := models.OpeningTime; slot < models.ClosingTime; slot += models.TimeOfDay(models.SlotMinutes) {
		entry := dto.SlotAvailability{Time: slot.String(), Available: true}
		for _, interval := range intervals {
			if interval.Contains(slot) {
				entry.Available = false
				entry.Reason = "busy"
				break
			}
		}
		if entry.Available && booked[slot] {
			entry.Available = false
			entry.Reason = "booked"
		}
		grid = append(grid, entry)
	}
	return grid, nil
}

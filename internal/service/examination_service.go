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

type examinationStore interface {
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
	List(ctx context.Context, filter models.ExaminationFilter) ([]models.ExaminationDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.ExaminationDetail, error)
	Insert(ctx context.Context, exec sqlx.ExtContext, exam *models.Examination) error
	InsertPrescription(ctx context.Context, exec sqlx.ExtContext, prescription *models.Prescription) error
	Update(ctx context.Context, exec sqlx.ExtContext, exam *models.Examination) error
	DeletePrescriptions(ctx context.Context, exec sqlx.ExtContext, examinationID string) error
	Delete(ctx context.Context, id string) error
}

// appointmentSettler is the slice of the appointment repository the
// examination flow needs to close out a visit.
type appointmentSettler interface {
	FindByTriple(ctx context.Context, exec sqlx.ExtContext, patientID string, date time.Time, t models.TimeOfDay) (*models.Appointment, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Appointment, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.AppointmentStatus) (bool, error)
}

type medicineLookup interface {
	FindByID(ctx context.Context, id string) (*models.Medicine, error)
}

// ExaminationService records visits and settles the appointments they belong
// to.
type ExaminationService struct {
	repo         examinationStore
	appointments appointmentSettler
	patients     patientLookup
	medicines    medicineLookup
	validate     *validator.Validate
	logger       *zap.Logger
}

// NewExaminationService constructs the service.
func NewExaminationService(repo examinationStore, appointments appointmentSettler, patients patientLookup, medicines medicineLookup, logger *zap.Logger) *ExaminationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExaminationService{
		repo:         repo,
		appointments: appointments,
		patients:     patients,
		medicines:    medicines,
		validate:     validator.New(),
		logger:       logger,
	}
}

// List returns examinations matching the filter.
func (s *ExaminationService) List(ctx context.Context, filter models.ExaminationFilter) ([]models.ExaminationDetail, *models.Pagination, error) {
	examinations, total, err := s.repo.List(ctx, filter)
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
	return examinations, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one examination with its prescriptions.
func (s *ExaminationService) Get(ctx context.Context, id string) (*models.ExaminationDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.NewInternalError(err)
	}
	return detail, nil
}

func (s *ExaminationService) checkPrescriptions(ctx context.Context, lines []dto.PrescriptionLine) error {
	for _, line := range lines {
		if _, err := s.medicines.FindByID(ctx, line.MedicineID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.NewValidationError(fmt.Sprintf("unknown medicine: %s", line.MedicineID))
			}
			return appErrors.NewInternalError(err)
		}
	}
	return nil
}

// Create records an examination. When an appointment exists for the same
// patient, date and time, the examination completes it in the same
// transaction; examining a cancelled appointment is rejected. Walk-in visits
// without an appointment are allowed.
func (s *ExaminationService) Create(ctx context.Context, req dto.CreateExaminationRequest, createdBy string) (*models.ExaminationDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.NewValidationError(err.Error())
	}
	date, slot, err := parseSlot(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	if _, err := s.patients.FindByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.NewInternalError(err)
	}
	if err := s.checkPrescriptions(ctx, req.Prescriptions); err != nil {
		return nil, err
	}

	exam := &models.Examination{
		PatientID: req.PatientID,
		Date:      date,
		Time:      slot,
		Symptoms:  req.Symptoms,
		Diagnosis: req.Diagnosis,
		CreatedBy: createdBy,
	}

	err = s.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		appt, err := s.appointments.FindByTriple(ctx, tx, req.PatientID, date, slot)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			appt = nil
		case err != nil:
			return appErrors.NewInternalError(err)
		}
		if appt != nil && appt.Status == models.AppointmentCancelled {
			return appErrors.ErrCannotExamineCancelled
		}

		if err := s.repo.Insert(ctx, tx, exam); err != nil {
			return appErrors.NewInternalError(err)
		}
		for _, line := range req.Prescriptions {
			prescription := &models.Prescription{
				ExaminationID: exam.ID,
				MedicineID:    line.MedicineID,
				Dosage:        line.Dosage,
				Duration:      line.Duration,
				Notes:         line.Notes,
			}
			if err := s.repo.InsertPrescription(ctx, tx, prescription); err != nil {
				return appErrors.NewInternalError(err)
			}
		}

		if appt != nil && appt.Status == models.AppointmentUpcoming {
			completed, err := s.appointments.UpdateStatus(ctx, tx, appt.ID, models.AppointmentUpcoming, models.AppointmentCompleted)
			if err != nil {
				return appErrors.NewInternalError(err)
			}
			if !completed {
				// The guarded write found no upcoming row: the appointment
				// transitioned after our read. A cancellation rolls the
				// whole examination back.
				fresh, err := s.appointments.FindByID(ctx, tx, appt.ID)
				if err != nil {
					return appErrors.NewInternalError(err)
				}
				if fresh.Status == models.AppointmentCancelled {
					return appErrors.ErrCannotExamineCancelled
				}
			}
			s.logger.Info("appointment completed by examination",
				zap.String("appointment_id", appt.ID),
				zap.String("examination_id", exam.ID))
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

	return s.Get(ctx, exam.ID)
}

// Update amends an examination's clinical notes and replaces its prescription
// list atomically.
func (s *ExaminationService) Update(ctx context.Context, id string, req dto.UpdateExaminationRequest) (*models.ExaminationDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.NewValidationError(err.Error())
	}
	current, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.NewInternalError(err)
	}
	if err := s.checkPrescriptions(ctx, req.Prescriptions); err != nil {
		return nil, err
	}

	exam := current.Examination
	exam.Symptoms = req.Symptoms
	exam.Diagnosis = req.Diagnosis

	err = s.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.Update(ctx, tx, &exam); err != nil {
			return appErrors.NewInternalError(err)
		}
		if err := s.repo.DeletePrescriptions(ctx, tx, id); err != nil {
			return appErrors.NewInternalError(err)
		}
		for _, line := range req.Prescriptions {
			prescription := &models.Prescription{
				ExaminationID: id,
				MedicineID:    line.MedicineID,
				Dosage:        line.Dosage,
				Duration:      line.Duration,
				Notes:         line.Notes,
			}
			if err := s.repo.InsertPrescription(ctx, tx, prescription); err != nil {
				return appErrors.NewInternalError(err)
			}
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

	return s.Get(ctx, id)
}

// Delete removes an examination and its prescriptions.
func (s *ExaminationService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindDetailByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.NewInternalError(err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.NewInternalError(err)
	}
	s.logger.Info("examination deleted", zap.String("examination_id", id))
	return nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/medidesk/medidesk-api/internal/dto"
	"github.com/medidesk/medidesk-api/internal/models"
	appErrors "github.com/medidesk/medidesk-api/pkg/errors"
)

type patientStore interface {
	List(ctx context.Context, filter models.PatientFilter) ([]models.Patient, int, error)
	FindByID(ctx context.Context, id string) (*models.Patient, error)
	Insert(ctx context.Context, patient *models.Patient) error
	Update(ctx context.Context, patient *models.Patient) error
	Delete(ctx context.Context, id string) error
}

// PatientService manages the patient registry.
type PatientService struct {
	repo     patientStore
	validate *validator.Validate
	logger   *zap.Logger
}

// NewPatientService constructs the service.
func NewPatientService(repo patientStore, logger *zap.Logger) *PatientService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatientService{repo: repo, validate: validator.New(), logger: logger}
}

// List returns patients matching the filter.
func (s *PatientService) List(ctx context.Context, filter models.PatientFilter) ([]models.Patient, *models.Pagination, error) {
	patients, total, err := s.repo.List(ctx, filter)
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
	return patients, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one patient.
func (s *PatientService) Get(ctx context.Context, id string) (*models.Patient, error) {
	patient, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.NewInternalError(err)
	}
	return patient, nil
}

// Create registers a new patient.
func (s *PatientService) Create(ctx context.Context, req dto.CreatePatientRequest) (*models.Patient, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.NewValidationError(err.Error())
	}
	patient := &models.Patient{
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Address: req.Address,
	}
	if req.DateOfBirth != "" {
		dob, err := models.ParseDate(req.DateOfBirth)
		if err != nil {
			return nil, appErrors.NewValidationError(fmt.Sprintf("invalid date_of_birth: %s", req.DateOfBirth))
		}
		patient.DateOfBirth = &dob
	}
	if err := s.repo.Insert(ctx, patient); err != nil {
		return nil, appErrors.NewInternalError(err)
	}
	s.logger.Info("patient registered", zap.String("patient_id", patient.ID))
	return patient, nil
}

// Update replaces a patient's contact details.
func (s *PatientService) Update(ctx context.Context, id string, req dto.UpdatePatientRequest) (*models.Patient, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.NewValidationError(err.Error())
	}
	patient, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.NewInternalError(err)
	}

	patient.Name = req.Name
	patient.Phone = req.Phone
	patient.Email = req.Email
	patient.Address = req.Address
	if req.DateOfBirth != "" {
		dob, err := models.ParseDate(req.DateOfBirth)
		if err != nil {
			return nil, appErrors.NewValidationError(fmt.Sprintf("invalid date_of_birth: %s", req.DateOfBirth))
		}
		patient.DateOfBirth = &dob
	} else {
		patient.DateOfBirth = nil
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, appErrors.NewInternalError(err)
	}
	return patient, nil
}

// Delete removes a patient and, through schema cascades, their records.
func (s *PatientService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.NewInternalError(err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.NewInternalError(err)
	}
	s.logger.Info("patient deleted", zap.String("patient_id", id))
	return nil
}

package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/medidesk/medidesk-api/internal/dto"
	"github.com/medidesk/medidesk-api/internal/models"
	appErrors "github.com/medidesk/medidesk-api/pkg/errors"
)

type medicineStore interface {
	List(ctx context.Context) ([]models.Medicine, error)
	FindByID(ctx context.Context, id string) (*models.Medicine, error)
	Insert(ctx context.Context, medicine *models.Medicine) error
	Update(ctx context.Context, medicine *models.Medicine) error
	Delete(ctx context.Context, id string) error
}

// MedicineService manages the prescribable medicine catalog.
type MedicineService struct {
	repo     medicineStore
	validate *validator.Validate
	logger   *zap.Logger
}

// NewMedicineService constructs the service.
func NewMedicineService(repo medicineStore, logger *zap.Logger) *MedicineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MedicineService{repo: repo, validate: validator.New(), logger: logger}
}

// List returns the full catalog.
func (s *MedicineService) List(ctx context.Context) ([]models.Medicine, error) {
	medicines, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.NewInternalError(err)
	}
	return medicines, nil
}

// Get returns one medicine.
func (s *MedicineService) Get(ctx context.Context, id string) (*models.Medicine, error) {
	medicine, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.NewInternalError(err)
	}
	return medicine, nil
}

// Create adds a medicine to the catalog.
func (s *MedicineService) Create(ctx context.Context, req dto.CreateMedicineRequest) (*models.Medicine, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.NewValidationError(err.Error())
	}
	medicine := &models.Medicine{
		Name:        req.Name,
		Description: req.Description,
		SideEffects: req.SideEffects,
	}
	if err := s.repo.Insert(ctx, medicine); err != nil {
		return nil, appErrors.NewInternalError(err)
	}
	return medicine, nil
}

// Update replaces a medicine's details.
func (s *MedicineService) Update(ctx context.Context, id string, req dto.UpdateMedicineRequest) (*models.Medicine, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.NewValidationError(err.Error())
	}
	medicine, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.NewInternalError(err)
	}

	medicine.Name = req.Name
	medicine.Description = req.Description
	medicine.SideEffects = req.SideEffects
	if err := s.repo.Update(ctx, medicine); err != nil {
		return nil, appErrors.NewInternalError(err)
	}
	return medicine, nil
}

// Delete removes a medicine from the catalog.
func (s *MedicineService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.NewInternalError(err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.NewInternalError(err)
	}
	s.logger.Info("medicine removed", zap.String("medicine_id", id))
	return nil
}

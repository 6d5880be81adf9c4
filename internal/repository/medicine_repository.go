package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medidesk/medidesk-api/internal/models"
)

// MedicineRepository provides persistence for the medicine catalog.
type MedicineRepository struct {
	db *sqlx.DB
}

// NewMedicineRepository creates a new medicine repository.
func NewMedicineRepository(db *sqlx.DB) *MedicineRepository {
	return &MedicineRepository{db: db}
}

const medicineColumns = `id, name, description, side_effects, created_at`

// List returns the full catalog ordered by name.
func (r *MedicineRepository) List(ctx context.Context) ([]models.Medicine, error) {
	query := fmt.Sprintf(`SELECT %s FROM medicines ORDER BY name ASC`, medicineColumns)
	var medicines []models.Medicine
	if err := r.db.SelectContext(ctx, &medicines, query); err != nil {
		return nil, fmt.Errorf("list medicines: %w", err)
	}
	return medicines, nil
}

// FindByID loads a medicine by id.
func (r *MedicineRepository) FindByID(ctx context.Context, id string) (*models.Medicine, error) {
	query := fmt.Sprintf(`SELECT %s FROM medicines WHERE id = $1`, medicineColumns)
	var medicine models.Medicine
	if err := r.db.GetContext(ctx, &medicine, query, id); err != nil {
		return nil, err
	}
	return &medicine, nil
}

// Insert stores a new medicine.
func (r *MedicineRepository) Insert(ctx context.Context, medicine *models.Medicine) error {
	if medicine.ID == "" {
		medicine.ID = uuid.NewString()
	}
	if medicine.CreatedAt.IsZero() {
		medicine.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO medicines (id, name, description, side_effects, created_at)
VALUES (:id, :name, :description, :side_effects, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, medicine); err != nil {
		return fmt.Errorf("insert medicine: %w", err)
	}
	return nil
}

// Update replaces a medicine's editable fields.
func (r *MedicineRepository) Update(ctx context.Context, medicine *models.Medicine) error {
	const query = `UPDATE medicines SET name = :name, description = :description, side_effects = :side_effects WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, medicine); err != nil {
		return fmt.Errorf("update medicine: %w", err)
	}
	return nil
}

// Delete removes a medicine from the catalog.
func (r *MedicineRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM medicines WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete medicine: %w", err)
	}
	return nil
}

// Count returns the catalog size.
func (r *MedicineRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM medicines`); err != nil {
		return 0, fmt.Errorf("count medicines: %w", err)
	}
	return total, nil
}

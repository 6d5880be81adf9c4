package dto

// CreateMedicineRequest adds a medicine to the catalog.
type CreateMedicineRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=1000"`
	SideEffects string `json:"side_effects" validate:"max=1000"`
}

// UpdateMedicineRequest replaces a medicine's details.
type UpdateMedicineRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=1000"`
	SideEffects string `json:"side_effects" validate:"max=1000"`
}

package dto

// CreatePatientRequest registers a new patient.
type CreatePatientRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Phone       string `json:"phone" validate:"required,max=32"`
	Email       string `json:"email" validate:"omitempty,email"`
	Address     string `json:"address" validate:"max=500"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty"`
}

// UpdatePatientRequest replaces a patient's contact details.
type UpdatePatientRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Phone       string `json:"phone" validate:"required,max=32"`
	Email       string `json:"email" validate:"omitempty,email"`
	Address     string `json:"address" validate:"max=500"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty"`
}

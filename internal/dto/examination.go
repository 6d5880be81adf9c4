package dto

// PrescriptionLine is one prescribed medicine on an examination.
type PrescriptionLine struct {
	MedicineID string `json:"medicine_id" validate:"required,uuid4"`
	Dosage     string `json:"dosage" validate:"required,max=255"`
	Duration   string `json:"duration" validate:"max=255"`
	Notes      string `json:"notes" validate:"max=1000"`
}

// CreateExaminationRequest records a visit. Date and time identify the
// appointment being examined.
type CreateExaminationRequest struct {
	PatientID     string             `json:"patient_id" validate:"required,uuid4"`
	Date          string             `json:"date" validate:"required"`
	Time          string             `json:"time" validate:"required"`
	Symptoms      string             `json:"symptoms" validate:"required"`
	Diagnosis     string             `json:"diagnosis" validate:"required"`
	Prescriptions []PrescriptionLine `json:"prescriptions" validate:"dive"`
}

// UpdateExaminationRequest amends the clinical notes of an examination and
// replaces its prescription list.
type UpdateExaminationRequest struct {
	Symptoms      string             `json:"symptoms" validate:"required"`
	Diagnosis     string             `json:"diagnosis" validate:"required"`
	Prescriptions []PrescriptionLine `json:"prescriptions" validate:"dive"`
}

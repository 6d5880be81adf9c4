package models

import "time"

// Examination records the clinical outcome of a visit. It links to an
// appointment through the (patient, date, time) triple rather than a stored
// foreign key.
type Examination struct {
	ID        string    `db:"id" json:"id"`
	PatientID string    `db:"patient_id" json:"patient_id"`
	Date      time.Time `db:"date" json:"date"`
	Time      TimeOfDay `db:"time" json:"time"`
	Symptoms  string    `db:"symptoms" json:"symptoms"`
	Diagnosis string    `db:"diagnosis" json:"diagnosis"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Prescription is a child record of an examination. All instruction fields
// are optional; rows are removed with their parent examination.
type Prescription struct {
	ID            string `db:"id" json:"id"`
	ExaminationID string `db:"examination_id" json:"examination_id"`
	MedicineID    string `db:"medicine_id" json:"medicine_id"`
	Dosage        string `db:"dosage" json:"dosage"`
	Duration      string `db:"duration" json:"duration"`
	Notes         string `db:"notes" json:"notes"`
}

// ExaminationDetail bundles an examination with its prescriptions and the
// patient's display name.
type ExaminationDetail struct {
	Examination
	PatientName   string         `db:"patient_name" json:"patient_name"`
	Prescriptions []Prescription `json:"prescriptions"`
}

// ExaminationFilter describes query params for listing examinations.
type ExaminationFilter struct {
	PatientID string
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

package models

import "time"

// AppointmentStatus tracks the lifecycle of an appointment.
type AppointmentStatus string

const (
	AppointmentUpcoming  AppointmentStatus = "upcoming"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentCompleted || s == AppointmentCancelled
}

// Appointment represents a booked visit slot for a patient.
type Appointment struct {
	ID        string            `db:"id" json:"id"`
	PatientID string            `db:"patient_id" json:"patient_id"`
	Date      time.Time         `db:"date" json:"date"`
	Time      TimeOfDay         `db:"time" json:"time"`
	CreatedBy string            `db:"created_by" json:"created_by"`
	Status    AppointmentStatus `db:"status" json:"status"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}

// AppointmentDetail joins patient contact data used by lists and
// notifications.
type AppointmentDetail struct {
	Appointment
	PatientName  string `db:"patient_name" json:"patient_name"`
	PatientEmail string `db:"patient_email" json:"patient_email"`
}

// AppointmentFilter describes query params for listing appointments.
type AppointmentFilter struct {
	PatientID string
	Status    AppointmentStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// SlotConflict identifies the appointment blocking a requested slot.
type SlotConflict struct {
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	PatientName   string    `json:"patient_name,omitempty"`
	Date          time.Time `json:"date"`
	Time          TimeOfDay `json:"time"`
}

// AppointmentBooked is the event emitted after a successful booking for the
// notification pipeline.
type AppointmentBooked struct {
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	PatientName   string    `json:"patient_name"`
	PatientEmail  string    `json:"patient_email"`
	Date          time.Time `json:"date"`
	Time          TimeOfDay `json:"time"`
	CreatedBy     string    `json:"created_by"`
}

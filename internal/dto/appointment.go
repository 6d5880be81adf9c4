package dto

// CreateAppointmentRequest books a new appointment slot.
type CreateAppointmentRequest struct {
	PatientID string `json:"patient_id" validate:"required,uuid4"`
	Date      string `json:"date" validate:"required"`
	Time      string `json:"time" validate:"required"`
}

// UpdateAppointmentRequest moves an upcoming appointment to a new slot or
// patient. Omitted fields keep their current value.
type UpdateAppointmentRequest struct {
	PatientID *string `json:"patient_id,omitempty" validate:"omitempty,uuid4"`
	Date      *string `json:"date,omitempty"`
	Time      *string `json:"time,omitempty"`
}

// AvailabilityRequest asks for the free slots of a day.
type AvailabilityRequest struct {
	Date string `form:"date" validate:"required"`
}

// SlotAvailability reports one bookable slot of the day grid.
type SlotAvailability struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

package dto

// CreateBusyIntervalRequest blocks a range of the doctor's day.
type CreateBusyIntervalRequest struct {
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Reason    string `json:"reason" validate:"max=255"`
}

// UpdateBusyIntervalRequest replaces a busy interval's range or reason.
type UpdateBusyIntervalRequest struct {
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Reason    string `json:"reason" validate:"max=255"`
}

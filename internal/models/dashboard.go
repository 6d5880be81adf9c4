package models

import "time"

// CalendarEntry is one appointment rendered on the month calendar.
type CalendarEntry struct {
	ID      string            `json:"id"`
	Date    string            `json:"date"`
	Time    string            `json:"time"`
	Patient string            `json:"patient"`
	Status  AppointmentStatus `json:"status"`
}

// DashboardSnapshot aggregates the office overview counters and the calendar
// feed for the current month.
type DashboardSnapshot struct {
	TotalPatients        int             `json:"total_patients"`
	TotalAppointments    int             `json:"total_appointments"`
	UpcomingAppointments int             `json:"upcoming_appointments"`
	TotalExaminations    int             `json:"total_examinations"`
	TotalMedicines       int             `json:"total_medicines"`
	TodayAppointments    []CalendarEntry `json:"today_appointments"`
	MonthAppointments    []CalendarEntry `json:"month_appointments"`
	GeneratedAt          time.Time       `json:"generated_at"`
}

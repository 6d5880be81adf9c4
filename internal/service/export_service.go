package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/medidesk/medidesk-api/internal/models"
	appErrors "github.com/medidesk/medidesk-api/pkg/errors"
	"github.com/medidesk/medidesk-api/pkg/export"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type daySheetSource interface {
	ListForDate(ctx context.Context, date time.Time) ([]models.AppointmentDetail, error)
}

type daySheetBusySource interface {
	List(ctx context.Context, filter models.BusyIntervalFilter) ([]models.BusyInterval, int, error)
}

// ExportFormat identifies a supported export rendering.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportResult carries a rendered file for inline download.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the doctor's day sheet as CSV or PDF.
type ExportService struct {
	appointments daySheetSource
	busy         daySheetBusySource
	csv          csvRenderer
	pdf          pdfRenderer
	logger       *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(appointments daySheetSource, busy daySheetBusySource, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{appointments: appointments, busy: busy, csv: csv, pdf: pdf, logger: logger}
}

// DaySheet renders the schedule for one day: every appointment in time order
// plus the blocked intervals.
func (s *ExportService) DaySheet(ctx context.Context, rawDate string, format ExportFormat) (*ExportResult, error) {
	date, err := models.ParseDate(rawDate)
	if err != nil {
		return nil, appErrors.NewValidationError(fmt.Sprintf("invalid date: %s", rawDate))
	}

	appointments, err := s.appointments.ListForDate(ctx, date)
	if err != nil {
		return nil, appErrors.NewInternalError(err)
	}
	intervals, _, err := s.busy.List(ctx, models.BusyIntervalFilter{DateFrom: &date, DateTo: &date, PageSize: 100})
	if err != nil {
		return nil, appErrors.NewInternalError(err)
	}

	title := fmt.Sprintf("Day Sheet %s", models.FormatDate(date))
	dataset := export.Dataset{
		Headers: []string{"Time", "Patient", "Status", "Notes"},
	}
	for _, appt := range appointments {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Time":    appt.Time.String(),
			"Patient": appt.PatientName,
			"Status":  string(appt.Status),
			"Notes":   "",
		})
	}
	for _, interval := range intervals {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Time":    fmt.Sprintf("%s-%s", interval.StartTime, interval.EndTime),
			"Patient": "-",
			"Status":  "blocked",
			"Notes":   interval.Reason,
		})
	}

	var (
		data        []byte
		contentType string
		ext         string
	)
	switch format {
	case ExportPDF:
		data, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
		ext = "pdf"
	case ExportCSV, "":
		data, err = s.csv.Render(dataset)
		contentType = "text/csv"
		ext = "csv"
	default:
		return nil, appErrors.NewValidationError(fmt.Sprintf("unsupported format: %s", format))
	}
	if err != nil {
		return nil, appErrors.NewInternalError(err)
	}

	filename := fmt.Sprintf("day-sheet-%s.%s", strings.ReplaceAll(models.FormatDate(date), "/", "-"), ext)
	s.logger.Info("day sheet exported",
		zap.String("date", models.FormatDate(date)),
		zap.String("format", string(format)),
		zap.Int("rows", len(dataset.Rows)))
	return &ExportResult{Filename: filename, ContentType: contentType, Data: data}, nil
}

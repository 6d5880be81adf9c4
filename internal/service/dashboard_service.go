package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/medidesk/medidesk-api/internal/models"
	appErrors "github.com/medidesk/medidesk-api/pkg/errors"
)

const dashboardCacheKey = "dashboard:snapshot"

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type dashboardCounters interface {
	CountByStatus(ctx context.Context, status models.AppointmentStatus) (int, error)
	ListForDate(ctx context.Context, date time.Time) ([]models.AppointmentDetail, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]models.AppointmentDetail, error)
}

type entityCounter interface {
	Count(ctx context.Context) (int, error)
}

// DashboardService aggregates the office overview, cached in Redis for the
// configured TTL.
type DashboardService struct {
	appointments dashboardCounters
	patients     entityCounter
	examinations entityCounter
	medicines    entityCounter
	cache        dashboardCache
	ttl          time.Duration
	logger       *zap.Logger
	loc          *time.Location
	now          func() time.Time
}

// NewDashboardService constructs the service. cache may be nil to disable
// caching.
func NewDashboardService(appointments dashboardCounters, patients, examinations, medicines entityCounter, cache dashboardCache, ttl time.Duration, loc *time.Location, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardService{
		appointments: appointments,
		patients:     patients,
		examinations: examinations,
		medicines:    medicines,
		cache:        cache,
		ttl:          ttl,
		logger:       logger,
		loc:          loc,
		now:          time.Now,
	}
}

// Snapshot returns the dashboard, serving a cached copy when fresh.
func (s *DashboardService) Snapshot(ctx context.Context) (*models.DashboardSnapshot, error) {
	if s.cache != nil {
		var cached models.DashboardSnapshot
		err := s.cache.Get(ctx, dashboardCacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	snapshot, err := s.build(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, snapshot, s.ttl); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return snapshot, nil
}

// Invalidate drops the cached snapshot after a write that changes counters.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

func (s *DashboardService) build(ctx context.Context) (*models.DashboardSnapshot, error) {
	totalPatients, err := s.patients.Count(ctx)
	if err != nil {
		return nil, appErrors.NewInternalError(err)
	}
	totalAppointments, err := s.appointments.CountByStatus(ctx, "")
	if err != nil {
		return nil, appErrors.NewInternalError(err)
	}
	upcoming, err := s.appointments.CountByStatus(ctx, models.AppointmentUpcoming)
	if err != nil {
		return nil, appErrors.NewInternalError(err)
	}
	totalExaminations, err := s.examinations.Count(ctx)
	if err != nil {
		return nil, appErrors.NewInternalError(err)
	}
	totalMedicines, err := s.medicines.Count(ctx)
	if err != nil {
		return nil, appErrors.NewInternalError(err)
	}

	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, -1)

	todays, err := s.appointments.ListForDate(ctx, today)
	if err != nil {
		return nil, appErrors.NewInternalError(err)
	}
	monthly, err := s.appointments.ListBetween(ctx, monthStart, monthEnd)
	if err != nil {
		return nil, appErrors.NewInternalError(err)
	}

	return &models.DashboardSnapshot{
		TotalPatients:        totalPatients,
		TotalAppointments:    totalAppointments,
		UpcomingAppointments: upcoming,
		TotalExaminations:    totalExaminations,
		TotalMedicines:       totalMedicines,
		TodayAppointments:    toCalendarEntries(todays),
		MonthAppointments:    toCalendarEntries(monthly),
		GeneratedAt:          time.Now().UTC(),
	}, nil
}

func toCalendarEntries(appointments []models.AppointmentDetail) []models.CalendarEntry {
	entries := make([]models.CalendarEntry, 0, len(appointments))
	for _, appt := range appointments {
		entries = append(entries, models.CalendarEntry{
			ID:      appt.ID,
			Date:    models.FormatDate(appt.Date),
			Time:    appt.Time.String(),
			Patient: appt.PatientName,
			Status:  appt.Status,
		})
	}
	return entries
}

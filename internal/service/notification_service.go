package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/medidesk/medidesk-api/internal/models"
	"github.com/medidesk/medidesk-api/pkg/jobs"
	"github.com/medidesk/medidesk-api/pkg/mailer"
)

// NotificationService delivers booking confirmations off the request path
// through a background worker queue.
type NotificationService struct {
	queue        *jobs.Queue[mailer.Confirmation]
	mail         mailer.Mailer
	visitMinutes int
	logger       *zap.Logger
}

// NotificationConfig tunes the delivery workers.
type NotificationConfig struct {
	Workers      int
	MaxRetries   int
	RetryDelay   time.Duration
	VisitMinutes int
}

// NewNotificationService constructs the service and its queue. Start must be
// called before bookings are processed.
func NewNotificationService(mail mailer.Mailer, cfg NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.VisitMinutes <= 0 {
		cfg.VisitMinutes = models.SlotMinutes
	}
	s := &NotificationService{
		mail:         mail,
		visitMinutes: cfg.VisitMinutes,
		logger:       logger,
	}
	s.queue = jobs.NewQueue("confirmations", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// AppointmentBooked enqueues a confirmation email for a fresh booking.
// Patients without an email address are skipped. Delivery failures never
// affect the booking itself.
func (s *NotificationService) AppointmentBooked(ctx context.Context, appt models.AppointmentDetail) {
	if appt.PatientEmail == "" {
		return
	}
	start := time.Date(appt.Date.Year(), appt.Date.Month(), appt.Date.Day(), appt.Time.Hour(), appt.Time.Minute(), 0, 0, time.UTC)
	msg := mailer.Confirmation{
		PatientName:  appt.PatientName,
		PatientEmail: appt.PatientEmail,
		Start:        start,
		End:          start.Add(time.Duration(s.visitMinutes) * time.Minute),
		CreatedBy:    appt.CreatedBy,
	}
	if err := s.queue.Enqueue(jobs.Job[mailer.Confirmation]{
		Kind:    "appointment_confirmation",
		Payload: msg,
	}); err != nil {
		s.logger.Warn("failed to enqueue confirmation",
			zap.String("appointment_id", appt.ID),
			zap.Error(err))
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job[mailer.Confirmation]) error {
	msg := job.Payload
	if err := s.mail.SendConfirmation(msg); err != nil {
		return err
	}
	s.logger.Info("confirmation sent",
		zap.String("patient_email", msg.PatientEmail),
		zap.Time("start", msg.Start))
	return nil
}

package mailer

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/medidesk/medidesk-api/pkg/config"
)

// Confirmation describes an appointment confirmation email.
type Confirmation struct {
	PatientName  string
	PatientEmail string
	Start        time.Time
	End          time.Time
	CreatedBy    string
}

// Mailer delivers appointment confirmations.
type Mailer interface {
	SendConfirmation(msg Confirmation) error
}

// SMTPMailer sends confirmation emails with a calendar invite attached.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer builds a mailer from notification settings.
func NewSMTPMailer(cfg config.NotificationsConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.FromAddress,
	}
}

// SendConfirmation emails the patient their appointment details plus an
// appointment.ics attachment.
func (m *SMTPMailer) SendConfirmation(msg Confirmation) error {
	mail := gomail.NewMessage()
	mail.SetHeader("From", m.from)
	mail.SetHeader("To", msg.PatientEmail)
	mail.SetHeader("Subject", "Your Doctor Appointment Confirmation")
	mail.SetBody("text/plain", confirmationBody(msg))

	invite := BuildICS(msg)
	mail.Attach("appointment.ics",
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := io.Copy(w, bytes.NewReader(invite))
			return err
		}),
		gomail.SetHeader(map[string][]string{"Content-Type": {"text/calendar"}}),
	)

	if err := m.dialer.DialAndSend(mail); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}
	return nil
}

func confirmationBody(msg Confirmation) string {
	return fmt.Sprintf(
		"Dear %s,\n\nYour appointment has been scheduled for %s at %s.\n\nPlease find the attached calendar invite.\n\nBest regards,\nMedical Office\n",
		msg.PatientName,
		msg.Start.Format("2006-01-02"),
		msg.Start.Format("15:04"),
	)
}

// BuildICS renders a minimal single-event VCALENDAR document.
func BuildICS(msg Confirmation) []byte {
	var b strings.Builder
	stamp := time.Now().UTC().Format("20060102T150405Z")
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//medidesk//appointments//EN",
		"BEGIN:VEVENT",
		fmt.Sprintf("UID:%s-%s@medidesk", msg.Start.Format("20060102T1504"), sanitize(msg.PatientEmail)),
		fmt.Sprintf("DTSTAMP:%s", stamp),
		fmt.Sprintf("DTSTART:%s", msg.Start.Format("20060102T150405")),
		fmt.Sprintf("DTEND:%s", msg.End.Format("20060102T150405")),
		fmt.Sprintf("SUMMARY:Doctor Appointment - %s", sanitize(msg.PatientName)),
		fmt.Sprintf("DESCRIPTION:Appointment booked by %s", sanitize(msg.CreatedBy)),
		"END:VEVENT",
		"END:VCALENDAR",
	}
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\r\n")
	}
	return []byte(b.String())
}

func sanitize(s string) string {
	replacer := strings.NewReplacer("\n", " ", "\r", " ", ",", "\\,", ";", "\\;")
	return replacer.Replace(s)
}

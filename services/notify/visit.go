package notifysvc

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/visit"
)

const visitReminderTemplate = "visit_reminder"

var ErrNoContact = errors.New("attendee has no email address")

// EmailNotifier delivers visit reminders by email.
type EmailNotifier struct {
	mailSvc  core.EmailService
	location *time.Location
}

var _ visit.Notifier = (*EmailNotifier)(nil) // interface compliance check

// NewEmailNotifier formats session times in loc (UTC when nil).
func NewEmailNotifier(mailSvc core.EmailService, loc *time.Location) *EmailNotifier {
	if loc == nil {
		loc = time.UTC
	}
	return &EmailNotifier{mailSvc: mailSvc, location: loc}
}

type visitReminderData struct {
	Name      string
	Title     string
	When      string
	StartTime string
}

func describeWindow(window string) string {
	switch window {
	case visit.Reminder24h.Label:
		return "tomorrow"
	case visit.Reminder2h.Label:
		return "in 2 hours"
	}
	return "soon"
}

// NotifyVisitReminder sends the reminder synchronously so the caller sees delivery errors.
func (n *EmailNotifier) NotifyVisitReminder(ctx context.Context, reminder visit.VisitReminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	att := reminder.Attendee
	if att.LeadEmail == "" {
		return errors.Wrapf(ErrNoContact, "attendee %s", att.ID)
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: att.LeadName, Address: att.LeadEmail}},
		Subject:      "Reminder: " + reminder.Session.Title,
		TemplateName: visitReminderTemplate,
		TemplateData: visitReminderData{
			Name:      att.LeadName,
			Title:     reminder.Session.Title,
			When:      describeWindow(reminder.Window),
			StartTime: reminder.Session.StartTime.In(n.location).Format("Monday 02 January 2006 at 15:04 MST"),
		},
	}
	return errors.Wrap(n.mailSvc.SendMessage(msg), "sending visit reminder")
}

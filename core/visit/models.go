package visit

import (
	"time"
)

// Session is a visit (taster) session prospective students are invited to.
type Session struct {
	ID                     string     `json:"id"`
	BranchID               string     `json:"branch_id"`
	Title                  string     `json:"title"`
	StartTime              time.Time  `json:"start_time"` // UTC
	EndTime                time.Time  `json:"end_time"`   // UTC
	Reminder24hStampedAt   *time.Time `json:"reminder_24h_stamped_at"`
	Reminder2hStampedAt    *time.Time `json:"reminder_2h_stamped_at"`
	NoShowSweepCompletedAt *time.Time `json:"no_show_sweep_completed_at"`
	CreatedAt              time.Time  `json:"created_at"` // UTC
}

// Attendee is one lead invited to a Session.
type Attendee struct {
	ID                    string     `json:"id"`
	SessionID             string     `json:"session_id"`
	LeadID                string     `json:"lead_id"`
	AttendedAt            *time.Time `json:"attended_at"`
	Reminder24hNotifiedAt *time.Time `json:"reminder_24h_notified_at"`
	Reminder2hNotifiedAt  *time.Time `json:"reminder_2h_notified_at"`
	NoShowAt              *time.Time `json:"no_show_at"`
	CreatedAt             time.Time  `json:"created_at"` // UTC

	// read-only, joined from the lead
	LeadName  string `json:"lead_name"`
	LeadEmail string `json:"lead_email"`
	LeadPhone string `json:"lead_phone"`
}

// NewSession contains information needed to schedule a new Session.
type NewSession struct {
	BranchID  string    `json:"branch_id" validate:"required,notblank"`
	Title     string    `json:"title" validate:"required,notblank"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

// SessionStamp names one of the write-once claim markers of a Session.
type SessionStamp int

const (
	StampReminder24h SessionStamp = iota + 1
	StampReminder2h
	StampNoShowSweep
)

func (s SessionStamp) Column() string {
	switch s {
	case StampReminder24h:
		return "reminder_24h_stamped_at"
	case StampReminder2h:
		return "reminder_2h_stamped_at"
	case StampNoShowSweep:
		return "no_show_sweep_completed_at"
	}
	panic("visit: unknown session stamp")
}

// Of returns the stamp value of sess.
func (s SessionStamp) Of(sess Session) *time.Time {
	switch s {
	case StampReminder24h:
		return sess.Reminder24hStampedAt
	case StampReminder2h:
		return sess.Reminder2hStampedAt
	case StampNoShowSweep:
		return sess.NoShowSweepCompletedAt
	}
	panic("visit: unknown session stamp")
}

func (s SessionStamp) Set(sess *Session, at time.Time) {
	switch s {
	case StampReminder24h:
		sess.Reminder24hStampedAt = &at
	case StampReminder2h:
		sess.Reminder2hStampedAt = &at
	case StampNoShowSweep:
		sess.NoShowSweepCompletedAt = &at
	default:
		panic("visit: unknown session stamp")
	}
}

// AttendeeMark names one of the write-once markers of an Attendee.
type AttendeeMark int

const (
	MarkReminder24h AttendeeMark = iota + 1
	MarkReminder2h
	MarkNoShow
)

func (m AttendeeMark) Column() string {
	switch m {
	case MarkReminder24h:
		return "reminder_24h_notified_at"
	case MarkReminder2h:
		return "reminder_2h_notified_at"
	case MarkNoShow:
		return "no_show_at"
	}
	panic("visit: unknown attendee mark")
}

func (m AttendeeMark) Of(att Attendee) *time.Time {
	switch m {
	case MarkReminder24h:
		return att.Reminder24hNotifiedAt
	case MarkReminder2h:
		return att.Reminder2hNotifiedAt
	case MarkNoShow:
		return att.NoShowAt
	}
	panic("visit: unknown attendee mark")
}

func (m AttendeeMark) Set(att *Attendee, at time.Time) {
	switch m {
	case MarkReminder24h:
		att.Reminder24hNotifiedAt = &at
	case MarkReminder2h:
		att.Reminder2hNotifiedAt = &at
	case MarkNoShow:
		att.NoShowAt = &at
	default:
		panic("visit: unknown attendee mark")
	}
}

// Eligible reports whether att may still receive mark: it did not attend and was not marked yet.
func (m AttendeeMark) Eligible(att Attendee) bool {
	return att.AttendedAt == nil && m.Of(att) == nil
}

package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/lead"
	"github.com/trezcool/admissions/core/visit"
)

// Clock is a settable core.Clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

var _ core.Clock = (*Clock)(nil)

func NewClock(now time.Time) *Clock {
	return &Clock{now: now.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now.UTC()
	c.mu.Unlock()
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Notifier records visit reminders. Reminders to attendees listed in FailFor return an error.
type Notifier struct {
	mu      sync.Mutex
	sent    []visit.VisitReminder
	FailFor map[string]bool // attendee ids
}

var _ visit.Notifier = (*Notifier)(nil)

func (n *Notifier) NotifyVisitReminder(_ context.Context, reminder visit.VisitReminder) error {
	if n.FailFor[reminder.Attendee.ID] {
		return fmt.Errorf("delivery to %s failed", reminder.Attendee.ID)
	}
	n.mu.Lock()
	n.sent = append(n.sent, reminder)
	n.mu.Unlock()
	return nil
}

func (n *Notifier) Sent() []visit.VisitReminder {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]visit.VisitReminder(nil), n.sent...)
}

// LogEntry is one call to Logger.
type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger records log entries instead of printing them.
type Logger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Args: args})
	l.mu.Unlock()
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("FATAL", msg, args) }

func (l *Logger) Entries(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var res []LogEntry
	for _, e := range l.entries {
		if e.Level == level {
			res = append(res, e)
		}
	}
	return res
}

func CreateLead(t *testing.T, svc *lead.Service, firstName, email string) lead.Lead {
	t.Helper()
	ld, err := svc.Create(context.Background(), lead.NewLead{
		BranchID:  "branch-1",
		FirstName: firstName,
		LastName:  "Doe",
		Email:     email,
	}, "staff-1")
	if err != nil {
		t.Fatalf("CreateLead() failed: %v", err)
	}
	return ld
}

func CreateSession(t *testing.T, repo visit.Repository, title string, start time.Time, length time.Duration) visit.Session {
	t.Helper()
	sess, err := repo.CreateSession(context.Background(), visit.Session{
		ID:        fmt.Sprintf("%s-%d", title, start.Unix()),
		BranchID:  "branch-1",
		Title:     title,
		StartTime: start.UTC(),
		EndTime:   start.Add(length).UTC(),
		CreatedAt: start.Add(-7 * 24 * time.Hour).UTC(),
	})
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return sess
}

func Invite(t *testing.T, svc *visit.Service, sessionID, leadID string) visit.Attendee {
	t.Helper()
	att, err := svc.Invite(context.Background(), sessionID, leadID)
	if err != nil {
		t.Fatalf("Invite() failed: %v", err)
	}
	return att
}

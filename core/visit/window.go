package visit

import (
	"time"

	"github.com/trezcool/admissions/core"
)

// Window is a closed time interval [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ComputeWindow centers a window of ±toleranceMinutes on now + hoursAhead.
func ComputeWindow(now time.Time, hoursAhead, toleranceMinutes int) Window {
	target := now.Add(time.Duration(hoursAhead) * time.Hour)
	tolerance := time.Duration(toleranceMinutes) * time.Minute
	return Window{
		Start: target.Add(-tolerance),
		End:   target.Add(tolerance),
	}
}

// ReminderOffset describes one reminder pass: how far ahead of a session it fires and
// which markers record that it happened.
type ReminderOffset struct {
	Label            string // "24h", "2h"
	Step             string // metrics step
	HoursAhead       int
	ToleranceMinutes int
	SessionStamp     SessionStamp
	AttendeeMark     AttendeeMark
}

var (
	Reminder24h = ReminderOffset{
		Label:            "24h",
		Step:             core.StepReminder24h,
		HoursAhead:       24,
		ToleranceMinutes: 5,
		SessionStamp:     StampReminder24h,
		AttendeeMark:     MarkReminder24h,
	}
	Reminder2h = ReminderOffset{
		Label:            "2h",
		Step:             core.StepReminder2h,
		HoursAhead:       2,
		ToleranceMinutes: 5,
		SessionStamp:     StampReminder2h,
		AttendeeMark:     MarkReminder2h,
	}
)

func (o ReminderOffset) Window(now time.Time) Window {
	return ComputeWindow(now, o.HoursAhead, o.ToleranceMinutes)
}

// DefaultOffsets returns the deployed offsets with the given tolerance (whole minutes).
// A non-positive tolerance keeps the default.
func DefaultOffsets(tolerance time.Duration) []ReminderOffset {
	offsets := []ReminderOffset{Reminder24h, Reminder2h}
	if mins := int(tolerance / time.Minute); mins > 0 {
		for i := range offsets {
			offsets[i].ToleranceMinutes = mins
		}
	}
	return offsets
}

// OffsetByLabel looks a deployed offset up by its label.
func OffsetByLabel(label string) (ReminderOffset, bool) {
	for _, o := range []ReminderOffset{Reminder24h, Reminder2h} {
		if o.Label == label {
			return o, true
		}
	}
	return ReminderOffset{}, false
}

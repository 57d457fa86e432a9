package core

// Metrics records automation outcomes. step is one of the Step* values.
type Metrics interface {
	Claim(step string, won bool)
	Notification(window string, ok bool)
	NoShows(n int)
	TasksOpened(tag string, n int)
	TasksCancelled(n int)
}

const (
	StepReminder24h = "reminder-24h"
	StepReminder2h  = "reminder-2h"
	StepNoShowSweep = "no-show-sweep"
)

type nopMetrics struct{}

// NopMetrics discards everything.
var NopMetrics Metrics = nopMetrics{}

func (nopMetrics) Claim(string, bool)        {}
func (nopMetrics) Notification(string, bool) {}
func (nopMetrics) NoShows(int)               {}
func (nopMetrics) TasksOpened(string, int)   {}
func (nopMetrics) TasksCancelled(int)        {}

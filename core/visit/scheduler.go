package visit

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/task"
)

const (
	defaultNoShowDelay   = 24 * time.Hour
	defaultNoShowTaskDue = 24 * time.Hour
)

type (
	// VisitReminder is what attendees get told ahead of a session.
	VisitReminder struct {
		Window   string // ReminderOffset.Label
		Session  Session
		Attendee Attendee
	}

	// Notifier delivers visit reminders. Delivery is best effort: errors are logged, never retried.
	Notifier interface {
		NotifyVisitReminder(ctx context.Context, reminder VisitReminder) error
	}

	// Scheduler runs the periodic visit automation: reminders ahead of sessions and
	// the no-show sweep after them. Every unit of work is claimed in the store first,
	// so overlapping runs never repeat an effect.
	Scheduler struct {
		repo          Repository
		tasks         task.Repository
		txr           core.TxRunner
		clock         core.Clock
		notifier      Notifier
		logger        core.Logger
		metrics       core.Metrics
		offsets       []ReminderOffset
		noShowDelay   time.Duration
		noShowTaskDue time.Duration
	}

	SchedulerOption func(sch *Scheduler)
)

func WithOffsets(offsets ...ReminderOffset) SchedulerOption {
	return func(sch *Scheduler) { sch.offsets = offsets }
}

func WithMetrics(metrics core.Metrics) SchedulerOption {
	return func(sch *Scheduler) { sch.metrics = metrics }
}

// WithNoShow overrides how long after a session ends attendees are swept,
// and how long the follow-up task stays due.
func WithNoShow(delay, taskDue time.Duration) SchedulerOption {
	return func(sch *Scheduler) {
		if delay > 0 {
			sch.noShowDelay = delay
		}
		if taskDue > 0 {
			sch.noShowTaskDue = taskDue
		}
	}
}

func NewScheduler(
	repo Repository,
	tasks task.Repository,
	txr core.TxRunner,
	clock core.Clock,
	notifier Notifier,
	logger core.Logger,
	opts ...SchedulerOption,
) *Scheduler {
	sch := &Scheduler{
		repo:          repo,
		tasks:         tasks,
		txr:           txr,
		clock:         clock,
		notifier:      notifier,
		logger:        logger,
		metrics:       core.NopMetrics,
		offsets:       []ReminderOffset{Reminder24h, Reminder2h},
		noShowDelay:   defaultNoShowDelay,
		noShowTaskDue: defaultNoShowTaskDue,
	}
	for _, opt := range opts {
		opt(sch)
	}
	return sch
}

func (sch *Scheduler) Offsets() []ReminderOffset {
	return sch.offsets
}

func (sch *Scheduler) now() time.Time {
	return sch.clock.Now().UTC()
}

// Tick runs one reminder pass per offset, then the no-show sweep.
// A failing step is logged and does not stop the others.
func (sch *Scheduler) Tick(ctx context.Context) {
	for _, offset := range sch.offsets {
		rep, err := sch.RunReminders(ctx, offset)
		if err != nil {
			sch.logger.Error(fmt.Sprintf("visit.Scheduler.Tick(%s): %v", offset.Label, err), err)
			continue
		}
		if rep.Claimed > 0 || rep.Failed > 0 {
			sch.logger.Info(rep.String())
		}
	}

	rep, err := sch.SweepNoShows(ctx)
	if err != nil {
		sch.logger.Error(fmt.Sprintf("visit.Scheduler.Tick(no-show): %v", err), err)
		return
	}
	if rep.Claimed > 0 || rep.Failed > 0 {
		sch.logger.Info(rep.String())
	}
}

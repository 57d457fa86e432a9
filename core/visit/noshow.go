package visit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/task"
)

// NoShowTaskTitle is the title of the follow-up task opened for a missed session.
func NoShowTaskTitle(sess Session) string {
	return "Follow up missed visit: " + sess.Title
}

// SweepReport sums up one no-show sweep.
type SweepReport struct {
	Candidates  int
	Claimed     int
	Contended   int
	Failed      int
	NoShows     int
	TasksOpened int
}

func (r SweepReport) String() string {
	return fmt.Sprintf(
		"no-show sweep: candidates=%d claimed=%d contended=%d failed=%d no_shows=%d tasks=%d",
		r.Candidates, r.Claimed, r.Contended, r.Failed, r.NoShows, r.TasksOpened,
	)
}

// SweepNoShows marks the attendees of sessions that ended long enough ago and never showed up,
// and opens a follow-up task for each of them. Each session is swept exactly once.
func (sch *Scheduler) SweepNoShows(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	now := sch.now()
	threshold := now.Add(-sch.noShowDelay)

	sessions, err := sch.repo.QuerySweepCandidates(ctx, threshold)
	if err != nil {
		return rep, errors.Wrap(err, "querying no-show sweep candidates")
	}
	rep.Candidates = len(sessions)

	for _, sess := range sessions {
		claimed, noShows, err := sch.sweepSession(ctx, sess, now)
		if err != nil {
			rep.Failed++
			sch.logger.Error(fmt.Sprintf("visit.Scheduler.SweepNoShows(%s): %v", sess.ID, err), err)
			continue
		}
		sch.metrics.Claim(core.StepNoShowSweep, claimed)
		if !claimed {
			rep.Contended++
			continue
		}
		rep.Claimed++
		rep.NoShows += noShows
		rep.TasksOpened += noShows
		sch.metrics.NoShows(noShows)
		sch.metrics.TasksOpened(task.TagTasterNoShow, noShows)
	}
	return rep, nil
}

// sweepSession claims the session, marks its no-shows and opens their tasks at `now` in one transaction.
func (sch *Scheduler) sweepSession(ctx context.Context, sess Session, now time.Time) (bool, int, error) {
	var (
		claimed bool
		noShows int
	)
	err := sch.txr.RunInTx(ctx, func(ctx context.Context) error {
		ok, err := sch.repo.ClaimSession(ctx, sess.ID, StampNoShowSweep, now)
		if err != nil {
			return errors.Wrap(err, "claiming session")
		}
		if !ok {
			return nil
		}

		attendees, err := sch.repo.QuerySessionAttendees(ctx, sess.ID)
		if err != nil {
			return errors.Wrap(err, "querying attendees")
		}
		leadOf := make(map[string]string, len(attendees))
		ids := make([]string, 0, len(attendees))
		for _, att := range attendees {
			if MarkNoShow.Eligible(att) {
				leadOf[att.ID] = att.LeadID
				ids = append(ids, att.ID)
			}
		}

		var marked []string
		if len(ids) > 0 {
			if marked, err = sch.repo.MarkAttendees(ctx, ids, MarkNoShow, now); err != nil {
				return errors.Wrap(err, "marking no-shows")
			}
		}
		for _, id := range marked {
			if _, err := sch.tasks.CreateTask(ctx, sch.noShowTask(sess, leadOf[id], now)); err != nil {
				return errors.Wrapf(err, "creating no-show task for attendee %s", id)
			}
		}

		claimed = true
		noShows = len(marked)
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return claimed, noShows, nil
}

func (sch *Scheduler) noShowTask(sess Session, leadID string, now time.Time) task.Task {
	tag := task.TagTasterNoShow
	return task.Task{
		ID:     uuid.New().String(),
		LeadID: &leadID,
		Title:  NoShowTaskTitle(sess),
		Description: fmt.Sprintf(
			"Did not attend %q on %s. Reach out to reschedule.",
			sess.Title, sess.StartTime.Format("Mon 02 Jan 2006 15:04 MST"),
		),
		DueAt:         now.Add(sch.noShowTaskDue),
		Status:        task.StatusPending,
		AutomationTag: &tag,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

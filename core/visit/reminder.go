package visit

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ReminderReport sums up one reminder pass.
type ReminderReport struct {
	Window     string
	Candidates int // sessions found in the window
	Claimed    int // sessions stamped by this pass
	Contended  int // sessions another run stamped first
	Failed     int // sessions rolled back, retried next tick
	Notified   int
	NotifyErrs int
}

func (r ReminderReport) String() string {
	return fmt.Sprintf(
		"reminders %s: candidates=%d claimed=%d contended=%d failed=%d notified=%d notify_errors=%d",
		r.Window, r.Candidates, r.Claimed, r.Contended, r.Failed, r.Notified, r.NotifyErrs,
	)
}

// RunReminders sends the `offset` reminder to the attendees of every session starting in its window.
// A session is stamped before anyone is notified: only the run whose stamp lands notifies,
// so the reminder goes out at most once per attendee.
func (sch *Scheduler) RunReminders(ctx context.Context, offset ReminderOffset) (ReminderReport, error) {
	rep := ReminderReport{Window: offset.Label}
	now := sch.now()

	sessions, err := sch.repo.QueryReminderCandidates(ctx, offset.SessionStamp, offset.Window(now))
	if err != nil {
		return rep, errors.Wrapf(err, "querying %s reminder candidates", offset.Label)
	}
	rep.Candidates = len(sessions)

	for _, sess := range sessions {
		claimed, recipients, err := sch.claimReminder(ctx, sess, offset, now)
		if err != nil {
			rep.Failed++
			sch.logger.Error(fmt.Sprintf("visit.Scheduler.RunReminders(%s, %s): %v", offset.Label, sess.ID, err), err)
			continue
		}
		sch.metrics.Claim(offset.Step, claimed)
		if !claimed {
			rep.Contended++
			continue
		}
		rep.Claimed++

		for _, att := range recipients {
			err := sch.notifier.NotifyVisitReminder(ctx, VisitReminder{
				Window:   offset.Label,
				Session:  sess,
				Attendee: att,
			})
			sch.metrics.Notification(offset.Label, err == nil)
			if err != nil {
				rep.NotifyErrs++
				sch.logger.Error(
					fmt.Sprintf("visit.Scheduler.RunReminders(%s): notifying attendee %s: %v", offset.Label, att.ID, err),
					err,
					map[string]interface{}{"session_id": sess.ID, "attendee_id": att.ID, "lead_id": att.LeadID},
				)
				continue
			}
			rep.Notified++
		}
	}
	return rep, nil
}

// claimReminder stamps the session and marks its eligible attendees at `now` in one transaction.
// It returns the attendees to notify; nothing when another run claimed the session first.
func (sch *Scheduler) claimReminder(ctx context.Context, sess Session, offset ReminderOffset, now time.Time) (bool, []Attendee, error) {
	var (
		claimed    bool
		recipients []Attendee
	)
	err := sch.txr.RunInTx(ctx, func(ctx context.Context) error {
		ok, err := sch.repo.ClaimSession(ctx, sess.ID, offset.SessionStamp, now)
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
		eligible := make(map[string]Attendee, len(attendees))
		ids := make([]string, 0, len(attendees))
		for _, att := range attendees {
			if offset.AttendeeMark.Eligible(att) {
				eligible[att.ID] = att
				ids = append(ids, att.ID)
			}
		}
		if len(ids) > 0 {
			marked, err := sch.repo.MarkAttendees(ctx, ids, offset.AttendeeMark, now)
			if err != nil {
				return errors.Wrap(err, "marking attendees")
			}
			for _, id := range marked {
				att := eligible[id]
				offset.AttendeeMark.Set(&att, now)
				recipients = append(recipients, att)
			}
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return claimed, recipients, nil
}

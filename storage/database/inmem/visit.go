package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/admissions/core/visit"
)

type visitRepository struct {
	db *DB
}

var _ visit.Repository = (*visitRepository)(nil) // interface compliance check

func NewVisitRepository(db *DB) *visitRepository {
	return &visitRepository{db: db}
}

func (repo *visitRepository) CreateSession(ctx context.Context, sess visit.Session) (visit.Session, error) {
	defer repo.db.lock(ctx)()

	repo.db.session.put(sess.ID, sess)
	return sess, nil
}

func (repo *visitRepository) GetSession(ctx context.Context, id string) (visit.Session, error) {
	defer repo.db.lock(ctx)()

	if sess, ok := repo.db.session.get(id); ok {
		return sess, nil
	}
	return visit.Session{}, visit.ErrNotFound
}

func (repo *visitRepository) CreateAttendee(ctx context.Context, att visit.Attendee) (visit.Attendee, error) {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.session.get(att.SessionID); !ok {
		return visit.Attendee{}, visit.ErrNotFound
	}
	for _, other := range repo.db.attendee.all() {
		if other.SessionID == att.SessionID && other.LeadID == att.LeadID {
			return visit.Attendee{}, visit.ErrAlreadyInvited
		}
	}
	repo.db.attendee.put(att.ID, att)
	return repo.withLead(att), nil
}

// withLead joins the lead contact in, like the SQL store does.
func (repo *visitRepository) withLead(att visit.Attendee) visit.Attendee {
	if ld, ok := repo.db.lead.get(att.LeadID); ok {
		att.LeadName = ld.FullName()
		att.LeadEmail = ld.Email
		att.LeadPhone = ld.Phone
	}
	return att
}

func (repo *visitRepository) GetAttendee(ctx context.Context, id string) (visit.Attendee, error) {
	defer repo.db.lock(ctx)()

	if att, ok := repo.db.attendee.get(id); ok {
		return repo.withLead(att), nil
	}
	return visit.Attendee{}, visit.ErrAttendeeNotFound
}

func (repo *visitRepository) QuerySessionAttendees(ctx context.Context, sessionID string) ([]visit.Attendee, error) {
	defer repo.db.lock(ctx)()

	attendees := make([]visit.Attendee, 0)
	for _, att := range repo.db.attendee.all() {
		if att.SessionID == sessionID {
			attendees = append(attendees, repo.withLead(att))
		}
	}
	return attendees, nil
}

func (repo *visitRepository) QueryReminderCandidates(ctx context.Context, stamp visit.SessionStamp, w visit.Window) ([]visit.Session, error) {
	defer repo.db.lock(ctx)()

	sessions := make([]visit.Session, 0)
	for _, sess := range repo.db.session.all() {
		if stamp.Of(sess) == nil && w.Contains(sess.StartTime) {
			sessions = append(sessions, sess)
		}
	}
	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].StartTime.Before(sessions[j].StartTime) })
	return sessions, nil
}

func (repo *visitRepository) QuerySweepCandidates(ctx context.Context, threshold time.Time) ([]visit.Session, error) {
	defer repo.db.lock(ctx)()

	sessions := make([]visit.Session, 0)
	for _, sess := range repo.db.session.all() {
		if sess.NoShowSweepCompletedAt == nil && !sess.EndTime.After(threshold) {
			sessions = append(sessions, sess)
		}
	}
	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].EndTime.Before(sessions[j].EndTime) })
	return sessions, nil
}

func (repo *visitRepository) ClaimSession(ctx context.Context, id string, stamp visit.SessionStamp, at time.Time) (bool, error) {
	defer repo.db.lock(ctx)()

	sess, ok := repo.db.session.get(id)
	if !ok || stamp.Of(sess) != nil {
		return false, nil
	}
	stamp.Set(&sess, at)
	repo.db.session.put(id, sess)
	return true, nil
}

func (repo *visitRepository) MarkAttendees(ctx context.Context, ids []string, mark visit.AttendeeMark, at time.Time) ([]string, error) {
	defer repo.db.lock(ctx)()

	marked := make([]string, 0, len(ids))
	for _, id := range ids {
		att, ok := repo.db.attendee.get(id)
		if !ok || !mark.Eligible(att) {
			continue
		}
		mark.Set(&att, at)
		repo.db.attendee.put(id, att)
		marked = append(marked, id)
	}
	return marked, nil
}

func (repo *visitRepository) CheckInAttendee(ctx context.Context, id string, at time.Time) (bool, error) {
	defer repo.db.lock(ctx)()

	att, ok := repo.db.attendee.get(id)
	if !ok || att.AttendedAt != nil {
		return false, nil
	}
	att.AttendedAt = &at
	repo.db.attendee.put(id, att)
	return true, nil
}

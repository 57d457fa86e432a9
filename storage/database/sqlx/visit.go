package sqlxrepos

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core/visit"
)

const (
	sessionColumns = `id, branch_id, title, start_time, end_time, reminder_24h_stamped_at,
		reminder_2h_stamped_at, no_show_sweep_completed_at, created_at`

	attendeeSelect = `SELECT a.id, a.session_id, a.lead_id, a.attended_at, a.reminder_24h_notified_at,
		a.reminder_2h_notified_at, a.no_show_at, a.created_at,
		TRIM(l.first_name || ' ' || l.last_name) AS lead_name, l.email AS lead_email, l.phone AS lead_phone
		FROM visit_attendee a JOIN lead l ON l.id = a.lead_id`
)

type (
	sessionRow struct {
		ID                     string    `db:"id"`
		BranchID               string    `db:"branch_id"`
		Title                  string    `db:"title"`
		StartTime              time.Time `db:"start_time"`
		EndTime                time.Time `db:"end_time"`
		Reminder24hStampedAt   null.Time `db:"reminder_24h_stamped_at"`
		Reminder2hStampedAt    null.Time `db:"reminder_2h_stamped_at"`
		NoShowSweepCompletedAt null.Time `db:"no_show_sweep_completed_at"`
		CreatedAt              time.Time `db:"created_at"`
	}

	attendeeRow struct {
		ID                    string    `db:"id"`
		SessionID             string    `db:"session_id"`
		LeadID                string    `db:"lead_id"`
		AttendedAt            null.Time `db:"attended_at"`
		Reminder24hNotifiedAt null.Time `db:"reminder_24h_notified_at"`
		Reminder2hNotifiedAt  null.Time `db:"reminder_2h_notified_at"`
		NoShowAt              null.Time `db:"no_show_at"`
		CreatedAt             time.Time `db:"created_at"`
		LeadName              string    `db:"lead_name"`
		LeadEmail             string    `db:"lead_email"`
		LeadPhone             string    `db:"lead_phone"`
	}

	visitRepository struct {
		db *sqlx.DB
	}
)

var _ visit.Repository = (*visitRepository)(nil) // interface compliance check

func NewVisitRepository(db *sqlx.DB) *visitRepository {
	return &visitRepository{db: db}
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

func (row sessionRow) session() visit.Session {
	return visit.Session{
		ID:                     row.ID,
		BranchID:               row.BranchID,
		Title:                  row.Title,
		StartTime:              row.StartTime.UTC(),
		EndTime:                row.EndTime.UTC(),
		Reminder24hStampedAt:   utcPtr(row.Reminder24hStampedAt),
		Reminder2hStampedAt:    utcPtr(row.Reminder2hStampedAt),
		NoShowSweepCompletedAt: utcPtr(row.NoShowSweepCompletedAt),
		CreatedAt:              row.CreatedAt.UTC(),
	}
}

func (row attendeeRow) attendee() visit.Attendee {
	return visit.Attendee{
		ID:                    row.ID,
		SessionID:             row.SessionID,
		LeadID:                row.LeadID,
		AttendedAt:            utcPtr(row.AttendedAt),
		Reminder24hNotifiedAt: utcPtr(row.Reminder24hNotifiedAt),
		Reminder2hNotifiedAt:  utcPtr(row.Reminder2hNotifiedAt),
		NoShowAt:              utcPtr(row.NoShowAt),
		CreatedAt:             row.CreatedAt.UTC(),
		LeadName:              row.LeadName,
		LeadEmail:             row.LeadEmail,
		LeadPhone:             row.LeadPhone,
	}
}

func (repo visitRepository) selectSessions(ctx context.Context, q string, args ...interface{}) ([]visit.Session, error) {
	var rows []sessionRow
	if err := sqlx.SelectContext(ctx, getExec(ctx, repo.db), &rows, q, args...); err != nil {
		return nil, err
	}
	sessions := make([]visit.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, row.session())
	}
	return sessions, nil
}

func (repo visitRepository) CreateSession(ctx context.Context, sess visit.Session) (visit.Session, error) {
	row := sessionRow{
		ID:        sess.ID,
		BranchID:  sess.BranchID,
		Title:     sess.Title,
		StartTime: sess.StartTime.UTC(),
		EndTime:   sess.EndTime.UTC(),
		CreatedAt: sess.CreatedAt.UTC(),
	}
	q := `INSERT INTO visit_session (` + sessionColumns + `) VALUES (:id, :branch_id, :title, :start_time,
		:end_time, :reminder_24h_stamped_at, :reminder_2h_stamped_at, :no_show_sweep_completed_at, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, getExec(ctx, repo.db), q, row); err != nil {
		return visit.Session{}, errors.Wrap(err, "inserting visit session")
	}
	return row.session(), nil
}

func (repo visitRepository) GetSession(ctx context.Context, id string) (visit.Session, error) {
	if !isValidID(id) {
		return visit.Session{}, visit.ErrNotFound
	}
	var row sessionRow
	q := `SELECT ` + sessionColumns + ` FROM visit_session WHERE id = $1`
	if err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &row, q, id); err != nil {
		return visit.Session{}, trapNoRowsErr(err, visit.ErrNotFound, "finding visit session")
	}
	return row.session(), nil
}

func (repo visitRepository) CreateAttendee(ctx context.Context, att visit.Attendee) (visit.Attendee, error) {
	q := `INSERT INTO visit_attendee (id, session_id, lead_id, created_at) VALUES ($1, $2, $3, $4)`
	_, err := getExec(ctx, repo.db).ExecContext(ctx, q, att.ID, att.SessionID, att.LeadID, att.CreatedAt.UTC())
	switch pqErrCode(err) {
	case "":
	case uniqueViolation:
		return visit.Attendee{}, visit.ErrAlreadyInvited
	case foreignKeyViolation:
		return visit.Attendee{}, visit.ErrNotFound
	}
	if err != nil {
		return visit.Attendee{}, errors.Wrap(err, "inserting visit attendee")
	}
	return repo.GetAttendee(ctx, att.ID)
}

func (repo visitRepository) GetAttendee(ctx context.Context, id string) (visit.Attendee, error) {
	if !isValidID(id) {
		return visit.Attendee{}, visit.ErrAttendeeNotFound
	}
	var row attendeeRow
	if err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &row, attendeeSelect+` WHERE a.id = $1`, id); err != nil {
		return visit.Attendee{}, trapNoRowsErr(err, visit.ErrAttendeeNotFound, "finding visit attendee")
	}
	return row.attendee(), nil
}

func (repo visitRepository) QuerySessionAttendees(ctx context.Context, sessionID string) ([]visit.Attendee, error) {
	attendees := make([]visit.Attendee, 0)
	if !isValidID(sessionID) {
		return attendees, nil
	}

	var rows []attendeeRow
	q := attendeeSelect + ` WHERE a.session_id = $1 ORDER BY a.created_at, a.id`
	if err := sqlx.SelectContext(ctx, getExec(ctx, repo.db), &rows, q, sessionID); err != nil {
		return nil, errors.Wrap(err, "querying visit attendees")
	}
	for _, row := range rows {
		attendees = append(attendees, row.attendee())
	}
	return attendees, nil
}

func (repo visitRepository) QueryReminderCandidates(ctx context.Context, stamp visit.SessionStamp, w visit.Window) ([]visit.Session, error) {
	q := fmt.Sprintf(
		`SELECT %s FROM visit_session WHERE start_time BETWEEN $1 AND $2 AND %s IS NULL ORDER BY start_time`,
		sessionColumns, stamp.Column(),
	)
	sessions, err := repo.selectSessions(ctx, q, w.Start.UTC(), w.End.UTC())
	return sessions, errors.Wrap(err, "querying reminder candidates")
}

func (repo visitRepository) QuerySweepCandidates(ctx context.Context, threshold time.Time) ([]visit.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM visit_session
		WHERE end_time <= $1 AND no_show_sweep_completed_at IS NULL ORDER BY end_time`
	sessions, err := repo.selectSessions(ctx, q, threshold.UTC())
	return sessions, errors.Wrap(err, "querying sweep candidates")
}

func (repo visitRepository) ClaimSession(ctx context.Context, id string, stamp visit.SessionStamp, at time.Time) (bool, error) {
	q := fmt.Sprintf(`UPDATE visit_session SET %[1]s = $2 WHERE id = $1 AND %[1]s IS NULL`, stamp.Column())
	n, err := rowsAffected(getExec(ctx, repo.db).ExecContext(ctx, q, id, at.UTC()))
	if err != nil {
		return false, errors.Wrap(err, "claiming visit session")
	}
	return n == 1, nil
}

func (repo visitRepository) MarkAttendees(ctx context.Context, ids []string, mark visit.AttendeeMark, at time.Time) ([]string, error) {
	marked := make([]string, 0, len(ids))
	if len(ids) == 0 {
		return marked, nil
	}
	q := fmt.Sprintf(
		`UPDATE visit_attendee SET %[1]s = $2 WHERE id = ANY($1) AND %[1]s IS NULL AND attended_at IS NULL RETURNING id`,
		mark.Column(),
	)
	if err := sqlx.SelectContext(ctx, getExec(ctx, repo.db), &marked, q, pq.Array(ids), at.UTC()); err != nil {
		return nil, errors.Wrap(err, "marking visit attendees")
	}
	return marked, nil
}

func (repo visitRepository) CheckInAttendee(ctx context.Context, id string, at time.Time) (bool, error) {
	q := `UPDATE visit_attendee SET attended_at = $2 WHERE id = $1 AND attended_at IS NULL`
	n, err := rowsAffected(getExec(ctx, repo.db).ExecContext(ctx, q, id, at.UTC()))
	if err != nil {
		return false, errors.Wrap(err, "checking in visit attendee")
	}
	return n == 1, nil
}

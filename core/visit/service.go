package visit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/lead"
)

var (
	// errors
	ErrNotFound         = errors.New("visit session not found")
	ErrAttendeeNotFound = errors.New("visit attendee not found")
	ErrAlreadyInvited   = errors.New("lead is already invited to this session")
)

type (
	Repository interface {
		CreateSession(ctx context.Context, sess Session) (Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		// CreateAttendee fails with ErrAlreadyInvited when the lead is already on the session.
		CreateAttendee(ctx context.Context, att Attendee) (Attendee, error)
		GetAttendee(ctx context.Context, id string) (Attendee, error)
		// QuerySessionAttendees returns the attendees of a session with their lead contact joined in.
		QuerySessionAttendees(ctx context.Context, sessionID string) ([]Attendee, error)

		// QueryReminderCandidates returns the sessions starting within w whose stamp is still unset.
		QueryReminderCandidates(ctx context.Context, stamp SessionStamp, w Window) ([]Session, error)
		// QuerySweepCandidates returns the sessions that ended at or before threshold and were never swept.
		QuerySweepCandidates(ctx context.Context, threshold time.Time) ([]Session, error)

		// ClaimSession sets stamp to `at` only if it is still unset. It reports whether it did.
		ClaimSession(ctx context.Context, id string, stamp SessionStamp, at time.Time) (bool, error)
		// MarkAttendees sets mark to `at` on each attendee of ids that did not attend and
		// is not marked yet. It returns the ids actually marked.
		MarkAttendees(ctx context.Context, ids []string, mark AttendeeMark, at time.Time) ([]string, error)
		// CheckInAttendee sets the attendee's AttendedAt only if it is still unset.
		CheckInAttendee(ctx context.Context, id string, at time.Time) (bool, error)
	}

	// LeadFinder is the part of the lead store visit scheduling needs.
	LeadFinder interface {
		GetLead(ctx context.Context, id string) (lead.Lead, error)
	}

	Service struct {
		repo  Repository
		leads LeadFinder
		clock core.Clock
	}
)

func NewService(repo Repository, leads LeadFinder, clock core.Clock) *Service {
	return &Service{repo: repo, leads: leads, clock: clock}
}

func (svc *Service) CreateSession(ctx context.Context, ns NewSession) (Session, error) {
	ns.BranchID = core.CleanString(ns.BranchID)
	ns.Title = core.CleanString(ns.Title)
	if !ns.EndTime.After(ns.StartTime) {
		err := errors.New("a session must end after it starts")
		return Session{}, core.NewValidationError(err, core.FieldError{Field: "end_time", Error: err.Error()})
	}
	return svc.repo.CreateSession(ctx, Session{
		ID:        uuid.New().String(),
		BranchID:  ns.BranchID,
		Title:     ns.Title,
		StartTime: ns.StartTime.UTC(),
		EndTime:   ns.EndTime.UTC(),
		CreatedAt: svc.clock.Now().UTC(),
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

func (svc *Service) Attendees(ctx context.Context, sessionID string) ([]Attendee, error) {
	if _, err := svc.repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return svc.repo.QuerySessionAttendees(ctx, sessionID)
}

// Invite adds a lead to a session.
func (svc *Service) Invite(ctx context.Context, sessionID, leadID string) (Attendee, error) {
	if _, err := svc.repo.GetSession(ctx, sessionID); err != nil {
		return Attendee{}, err
	}
	ld, err := svc.leads.GetLead(ctx, leadID)
	if err != nil {
		return Attendee{}, err
	}

	att, err := svc.repo.CreateAttendee(ctx, Attendee{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		LeadID:    ld.ID,
		CreatedAt: svc.clock.Now().UTC(),
		LeadName:  ld.FullName(),
		LeadEmail: ld.Email,
		LeadPhone: ld.Phone,
	})
	if errors.Cause(err) == ErrAlreadyInvited {
		return Attendee{}, core.NewValidationError(err, core.FieldError{Field: "lead_id", Error: err.Error()})
	}
	return att, err
}

// CheckIn records that the attendee showed up. Checking in twice keeps the first time.
func (svc *Service) CheckIn(ctx context.Context, sessionID, attendeeID string) (Attendee, error) {
	att, err := svc.repo.GetAttendee(ctx, attendeeID)
	if err != nil {
		return Attendee{}, err
	}
	if att.SessionID != sessionID {
		return Attendee{}, ErrAttendeeNotFound
	}
	if att.AttendedAt != nil {
		return att, nil
	}
	if _, err := svc.repo.CheckInAttendee(ctx, attendeeID, svc.clock.Now().UTC()); err != nil {
		return Attendee{}, errors.Wrap(err, "checking attendee in")
	}
	return svc.repo.GetAttendee(ctx, attendeeID)
}

package lead

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
)

var (
	// errors
	ErrNotFound      = errors.New("lead not found")
	ErrStageConflict = errors.New("lead stage changed concurrently")
)

type (
	Repository interface {
		CreateLead(ctx context.Context, ld Lead) (Lead, error)
		GetLead(ctx context.Context, id string) (Lead, error)
		// QueryLeadsByID returns the leads found; missing ids are silently left out.
		QueryLeadsByID(ctx context.Context, ids ...string) ([]Lead, error)
		// UpdateLeadStage moves lead `id` from `from` to `to` only if its stage is still `from`.
		// A nil assignTo keeps the current assignee. It reports whether a row was updated.
		UpdateLeadStage(ctx context.Context, id string, from, to Stage, assignTo *string, updatedAt time.Time) (bool, error)
		CreateStageHistoryEntry(ctx context.Context, entry StageHistoryEntry) (StageHistoryEntry, error)
		// QueryStageHistory returns the entries of a lead, oldest first.
		QueryStageHistory(ctx context.Context, leadID string) ([]StageHistoryEntry, error)
	}

	Service struct {
		repo   Repository
		txr    core.TxRunner
		clock  core.Clock
		policy TransitionPolicy
	}

	Option func(svc *Service)
)

// WithPolicy replaces the default AnyOtherStage policy.
func WithPolicy(policy TransitionPolicy) Option {
	return func(svc *Service) { svc.policy = policy }
}

func NewService(repo Repository, txr core.TxRunner, clock core.Clock, opts ...Option) *Service {
	svc := &Service{
		repo:   repo,
		txr:    txr,
		clock:  clock,
		policy: AnyOtherStage,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (svc *Service) now() time.Time {
	return svc.clock.Now().UTC()
}

// Create inserts a new lead at StageNew together with its creation history entry.
func (svc *Service) Create(ctx context.Context, nl NewLead, actorID string) (Lead, error) {
	nl.Clean()
	now := svc.now()
	ld := Lead{
		ID:              uuid.New().String(),
		BranchID:        nl.BranchID,
		AssignedStaffID: nl.AssignedStaffID,
		FirstName:       nl.FirstName,
		LastName:        nl.LastName,
		Email:           nl.Email,
		Phone:           nl.Phone,
		Stage:           StageNew,
		Source:          nl.Source,
		Tags:            nl.Tags,
		Metadata:        nl.Metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var created Lead
	err := svc.txr.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if created, err = svc.repo.CreateLead(ctx, ld); err != nil {
			return errors.Wrap(err, "creating lead")
		}
		_, err = svc.repo.CreateStageHistoryEntry(ctx, StageHistoryEntry{
			ID:        uuid.New().String(),
			LeadID:    created.ID,
			ToStage:   StageNew,
			ChangedBy: core.CleanStringPtr(&actorID),
			Reason:    strPtr(CreationReason),
			ChangedAt: now,
		})
		return errors.Wrap(err, "creating stage history entry")
	})
	if err != nil {
		return Lead{}, err
	}
	return created, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Lead, error) {
	return svc.repo.GetLead(ctx, id)
}

func (svc *Service) History(ctx context.Context, leadID string) ([]StageHistoryEntry, error) {
	if _, err := svc.repo.GetLead(ctx, leadID); err != nil {
		return nil, err
	}
	return svc.repo.QueryStageHistory(ctx, leadID)
}

func (svc *Service) checkTransition(ld Lead, tr Transition) error {
	if !tr.ToStage.IsValid() {
		return core.NewValidationError(
			errors.Errorf("invalid stage %q", tr.ToStage),
			core.FieldError{Field: "to_stage", Error: stageText},
		)
	}
	if !svc.policy(ld.Stage, tr.ToStage) {
		return core.NewIDsValidationError(
			"lead_ids",
			"transition from "+string(ld.Stage)+" to "+string(tr.ToStage)+" is not allowed for leads",
			[]string{ld.ID},
		)
	}
	return nil
}

func checkActorAndReason(tr Transition) error {
	var flds []core.FieldError
	if core.CleanString(tr.ActorID) == "" {
		flds = append(flds, core.FieldError{Field: "actor_id", Error: "an actor is required to change a lead stage"})
	}
	if tr.ToStage.RequiresReason() && core.CleanString(tr.Reason) == "" {
		flds = append(flds, core.FieldError{Field: "reason", Error: "a reason is required to move a lead to " + string(tr.ToStage)})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// apply writes one stage change and its history entry. It must run inside a transaction.
func (svc *Service) apply(ctx context.Context, ld Lead, tr Transition, now time.Time) (Lead, error) {
	ok, err := svc.repo.UpdateLeadStage(ctx, ld.ID, ld.Stage, tr.ToStage, tr.AssignTo, now)
	if err != nil {
		return Lead{}, errors.Wrapf(err, "updating stage of lead %s", ld.ID)
	}
	if !ok {
		return Lead{}, errors.Wrapf(ErrStageConflict, "lead %s is no longer %s", ld.ID, ld.Stage)
	}

	from := ld.Stage
	if _, err := svc.repo.CreateStageHistoryEntry(ctx, StageHistoryEntry{
		ID:        uuid.New().String(),
		LeadID:    ld.ID,
		FromStage: &from,
		ToStage:   tr.ToStage,
		ChangedBy: core.CleanStringPtr(&tr.ActorID),
		Reason:    core.CleanStringPtr(&tr.Reason),
		ChangedAt: now,
	}); err != nil {
		return Lead{}, errors.Wrapf(err, "creating stage history entry of lead %s", ld.ID)
	}

	ld.Stage = tr.ToStage
	if tr.AssignTo != nil {
		ld.AssignedStaffID = tr.AssignTo
	}
	ld.UpdatedAt = now
	return ld, nil
}

// Transition moves a lead to tr.ToStage. Moving a lead to the stage it is already in is a no-op.
func (svc *Service) Transition(ctx context.Context, leadID string, tr Transition) (Lead, error) {
	tr.AssignTo = core.CleanStringPtr(tr.AssignTo)

	ld, err := svc.repo.GetLead(ctx, leadID)
	if err != nil {
		return Lead{}, err
	}
	if ld.Stage == tr.ToStage {
		return ld, nil
	}
	if err := checkActorAndReason(tr); err != nil {
		return Lead{}, err
	}
	if err := svc.checkTransition(ld, tr); err != nil {
		return Lead{}, err
	}

	var updated Lead
	err = svc.txr.RunInTx(ctx, func(ctx context.Context) error {
		updated, err = svc.apply(ctx, ld, tr, svc.now())
		return err
	})
	if err != nil {
		return Lead{}, err
	}
	return updated, nil
}

// BulkTransition moves every lead of bt.LeadIDs to bt.ToStage in one transaction.
// Leads already at bt.ToStage are left out; any other lead the policy rejects fails the whole batch
// before anything is written.
func (svc *Service) BulkTransition(ctx context.Context, bt BulkTransition) ([]Lead, error) {
	ids := uniqueIDs(bt.LeadIDs)
	if len(ids) == 0 {
		return nil, core.NewValidationError(
			errors.New("no leads to transition"),
			core.FieldError{Field: "lead_ids", Error: "at least one lead is required"},
		)
	}
	tr := Transition{ToStage: bt.ToStage, ActorID: bt.ActorID, Reason: bt.Reason}
	if err := checkActorAndReason(tr); err != nil {
		return nil, err
	}
	if !tr.ToStage.IsValid() {
		return nil, core.NewValidationError(
			errors.Errorf("invalid stage %q", tr.ToStage),
			core.FieldError{Field: "to_stage", Error: stageText},
		)
	}

	leads, err := svc.repo.QueryLeadsByID(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying leads")
	}
	found := make(map[string]Lead, len(leads))
	for _, ld := range leads {
		found[ld.ID] = ld
	}

	var (
		missing, rejected []string
		pending           []Lead
	)
	for _, id := range ids {
		ld, ok := found[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case ld.Stage == tr.ToStage:
			// already there
		case !svc.policy(ld.Stage, tr.ToStage):
			rejected = append(rejected, id)
		default:
			pending = append(pending, ld)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, core.NewNotFoundError(ErrNotFound, missing)
	}
	if len(rejected) > 0 {
		sort.Strings(rejected)
		return nil, core.NewIDsValidationError(
			"lead_ids",
			"transition to "+string(tr.ToStage)+" is not allowed for leads",
			rejected,
		)
	}

	updated := make([]Lead, 0, len(pending))
	if len(pending) == 0 {
		return updated, nil
	}
	err = svc.txr.RunInTx(ctx, func(ctx context.Context) error {
		now := svc.now()
		for _, ld := range pending {
			ul, err := svc.apply(ctx, ld, tr, now)
			if err != nil {
				return err
			}
			updated = append(updated, ul)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	res := make([]string, 0, len(ids))
	for _, id := range ids {
		id = core.CleanString(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		res = append(res, id)
	}
	return res
}

func strPtr(s string) *string { return &s }

package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/task"
)

var (
	// errors
	ErrNotFound = errors.New("application not found")
)

type (
	Repository interface {
		CreateApplication(ctx context.Context, app Application) (Application, error)
		GetApplication(ctx context.Context, id string) (Application, error)
		UpdateApplication(ctx context.Context, app Application) (Application, error)
	}

	Service struct {
		repo       Repository
		leads      LeadFinder
		txr        core.TxRunner
		clock      core.Clock
		automation *Automation
		metrics    core.Metrics
	}
)

func NewService(
	repo Repository,
	leads LeadFinder,
	txr core.TxRunner,
	clock core.Clock,
	automation *Automation,
	metrics core.Metrics,
) *Service {
	if metrics == nil {
		metrics = core.NopMetrics
	}
	return &Service{
		repo:       repo,
		leads:      leads,
		txr:        txr,
		clock:      clock,
		automation: automation,
		metrics:    metrics,
	}
}

func (svc *Service) Get(ctx context.Context, id string) (Application, error) {
	return svc.repo.GetApplication(ctx, id)
}

// Create inserts an application. A submitted application also gets its review task,
// in the same transaction.
func (svc *Service) Create(ctx context.Context, na NewApplication) (Application, error) {
	leadID := core.CleanString(na.LeadID)
	if _, err := svc.leads.GetLead(ctx, leadID); err != nil {
		return Application{}, err
	}
	if na.Status == "" {
		na.Status = StatusDraft
	}
	if !na.Status.IsValid() {
		return Application{}, core.NewValidationError(
			errors.Errorf("invalid status %q", na.Status),
			core.FieldError{Field: "status", Error: statusText},
		)
	}

	var (
		created Application
		opened  int
	)
	err := svc.txr.RunInTx(ctx, func(ctx context.Context) error {
		now := svc.clock.Now().UTC()
		app := Application{
			ID:        uuid.New().String(),
			LeadID:    leadID,
			Status:    na.Status,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if app.Status == StatusSubmitted {
			app.SubmittedAt = &now
		}

		var err error
		if created, err = svc.repo.CreateApplication(ctx, app); err != nil {
			return errors.Wrap(err, "creating application")
		}
		if created.Status == StatusSubmitted {
			if _, err := svc.automation.CreateApplicationAutomationTask(ctx, created, KindReview); err != nil {
				return err
			}
			opened++
		}
		return nil
	})
	if err != nil {
		return Application{}, err
	}
	if opened > 0 {
		svc.metrics.TasksOpened(task.TagApplicationReview, opened)
	}
	return created, nil
}

// UpdateStatus moves an application to su.Status. Submitting a draft opens its review task;
// reaching a terminal status records the decision and cancels the open automation tasks.
// Setting the current status again changes nothing.
func (svc *Service) UpdateStatus(ctx context.Context, id string, su StatusUpdate) (Application, error) {
	su.Clean()
	if !su.Status.IsValid() {
		return Application{}, core.NewValidationError(
			errors.Errorf("invalid status %q", su.Status),
			core.FieldError{Field: "status", Error: statusText},
		)
	}

	var (
		updated           Application
		opened, cancelled int
	)
	err := svc.txr.RunInTx(ctx, func(ctx context.Context) error {
		app, err := svc.repo.GetApplication(ctx, id)
		if err != nil {
			return err
		}
		if app.Status == su.Status {
			updated = app
			return nil
		}

		now := svc.clock.Now().UTC()
		submitting := su.Status == StatusSubmitted && app.SubmittedAt == nil
		app.Status = su.Status
		app.UpdatedAt = now
		if submitting {
			app.SubmittedAt = &now
		}
		if su.Status.IsTerminal() {
			app.DecisionAt = &now
			app.Decision = su.Decision
			if su.ReviewedBy != nil {
				app.ReviewedBy = su.ReviewedBy
			}
		}

		if updated, err = svc.repo.UpdateApplication(ctx, app); err != nil {
			return errors.Wrap(err, "updating application")
		}

		switch {
		case submitting:
			if _, err := svc.automation.CreateApplicationAutomationTask(ctx, updated, KindReview); err != nil {
				return err
			}
			opened++
		case su.Status.IsTerminal():
			if cancelled, err = svc.automation.CancelOpenApplicationAutomationTasks(ctx, updated.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Application{}, err
	}
	if opened > 0 {
		svc.metrics.TasksOpened(task.TagApplicationReview, opened)
	}
	if cancelled > 0 {
		svc.metrics.TasksCancelled(cancelled)
	}
	return updated, nil
}

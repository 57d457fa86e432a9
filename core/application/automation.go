package application

import (
	"context"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/lead"
	"github.com/trezcool/admissions/core/task"
)

// KindReview is the automation kind opened when an application is submitted.
const KindReview = "review"

const defaultReviewDueDays = 2

type (
	// LeadFinder is the part of the lead store application automation needs.
	LeadFinder interface {
		GetLead(ctx context.Context, id string) (lead.Lead, error)
	}

	// Automation opens and cancels the internal tasks that follow an application's status.
	// Its methods write through the store of ctx and are meant to run inside the caller's transaction.
	Automation struct {
		tasks         task.Repository
		leads         LeadFinder
		clock         core.Clock
		reviewDueDays int
	}
)

// NewAutomation returns an Automation whose tasks fall due reviewDueDays after creation
// (2 when reviewDueDays is not positive).
func NewAutomation(tasks task.Repository, leads LeadFinder, clock core.Clock, reviewDueDays int) *Automation {
	if reviewDueDays <= 0 {
		reviewDueDays = defaultReviewDueDays
	}
	return &Automation{
		tasks:         tasks,
		leads:         leads,
		clock:         clock,
		reviewDueDays: reviewDueDays,
	}
}

// TaskTitle is the title of the `kind` task of the application of leadName,
// e.g. "Review application: Ada Doe".
func TaskTitle(kind, leadName string) string {
	return capitalize(kind) + " application: " + leadName
}

func TaskDescription(kind, leadName string) string {
	return "The application of " + leadName + " is waiting for its " + kind + "."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// CreateApplicationAutomationTask opens a PENDING task tagged "application-status:<kind>" for app,
// assigned to the staff member following its lead.
func (a *Automation) CreateApplicationAutomationTask(ctx context.Context, app Application, kind string) (task.Task, error) {
	ld, err := a.leads.GetLead(ctx, app.LeadID)
	if err != nil {
		return task.Task{}, errors.Wrapf(err, "getting lead %s", app.LeadID)
	}

	now := a.clock.Now().UTC()
	tag := task.ApplicationStatusTag(kind)
	leadID, appID := ld.ID, app.ID
	t, err := a.tasks.CreateTask(ctx, task.Task{
		ID:            uuid.New().String(),
		LeadID:        &leadID,
		ApplicationID: &appID,
		Title:         TaskTitle(kind, ld.FullName()),
		Description:   TaskDescription(kind, ld.FullName()),
		DueAt:         now.AddDate(0, 0, a.reviewDueDays),
		AssigneeID:    ld.AssignedStaffID,
		Status:        task.StatusPending,
		AutomationTag: &tag,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	return t, errors.Wrap(err, "creating application automation task")
}

// CancelOpenApplicationAutomationTasks cancels the open automation tasks of an application.
// Manual tasks and tasks of other applications are left alone; running it again cancels nothing.
func (a *Automation) CancelOpenApplicationAutomationTasks(ctx context.Context, applicationID string) (int, error) {
	n, err := a.tasks.CancelOpenApplicationStatusTasks(ctx, applicationID, a.clock.Now().UTC())
	return n, errors.Wrap(err, "cancelling application automation tasks")
}

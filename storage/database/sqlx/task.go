package sqlxrepos

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core/task"
)

const taskColumns = `id, lead_id, application_id, title, description, due_at, assignee_id, status,
	completed_at, automation_tag, created_at, updated_at`

type (
	taskRow struct {
		ID            string      `db:"id"`
		LeadID        null.String `db:"lead_id"`
		ApplicationID null.String `db:"application_id"`
		Title         string      `db:"title"`
		Description   string      `db:"description"`
		DueAt         time.Time   `db:"due_at"`
		AssigneeID    null.String `db:"assignee_id"`
		Status        string      `db:"status"`
		CompletedAt   null.Time   `db:"completed_at"`
		AutomationTag null.String `db:"automation_tag"`
		CreatedAt     time.Time   `db:"created_at"`
		UpdatedAt     time.Time   `db:"updated_at"`
	}

	taskRepository struct {
		db *sqlx.DB
	}
)

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *sqlx.DB) *taskRepository {
	return &taskRepository{db: db}
}

func (repo taskRepository) toRow(t task.Task) taskRow {
	return taskRow{
		ID:            t.ID,
		LeadID:        null.StringFromPtr(t.LeadID),
		ApplicationID: null.StringFromPtr(t.ApplicationID),
		Title:         t.Title,
		Description:   t.Description,
		DueAt:         t.DueAt.UTC(),
		AssigneeID:    null.StringFromPtr(t.AssigneeID),
		Status:        string(t.Status),
		CompletedAt:   null.TimeFromPtr(t.CompletedAt),
		AutomationTag: null.StringFromPtr(t.AutomationTag),
		CreatedAt:     t.CreatedAt.UTC(),
		UpdatedAt:     t.UpdatedAt.UTC(),
	}
}

func (repo taskRepository) fromRow(row taskRow) task.Task {
	return task.Task{
		ID:            row.ID,
		LeadID:        row.LeadID.Ptr(),
		ApplicationID: row.ApplicationID.Ptr(),
		Title:         row.Title,
		Description:   row.Description,
		DueAt:         row.DueAt.UTC(),
		AssigneeID:    row.AssigneeID.Ptr(),
		Status:        task.Status(row.Status),
		CompletedAt:   utcPtr(row.CompletedAt),
		AutomationTag: row.AutomationTag.Ptr(),
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

func (repo taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	row := repo.toRow(t)
	q := `INSERT INTO automation_task (` + taskColumns + `) VALUES (:id, :lead_id, :application_id, :title,
		:description, :due_at, :assignee_id, :status, :completed_at, :automation_tag, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, getExec(ctx, repo.db), q, row); err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	return repo.fromRow(row), nil
}

func (repo taskRepository) GetTask(ctx context.Context, id string) (task.Task, error) {
	if !isValidID(id) {
		return task.Task{}, task.ErrNotFound
	}
	var row taskRow
	q := `SELECT ` + taskColumns + ` FROM automation_task WHERE id = $1`
	if err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &row, q, id); err != nil {
		return task.Task{}, trapNoRowsErr(err, task.ErrNotFound, "finding task")
	}
	return repo.fromRow(row), nil
}

func statusStrings(statuses []task.Status) []string {
	strs := make([]string, 0, len(statuses))
	for _, st := range statuses {
		strs = append(strs, string(st))
	}
	return strs
}

func (repo taskRepository) QueryTasks(ctx context.Context, filter task.QueryFilter) ([]task.Task, error) {
	var (
		where []string
		args  []interface{}
	)
	cond := func(expr string, arg interface{}) {
		args = append(args, arg)
		where = append(where, strings.Replace(expr, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if filter.LeadID != "" {
		cond("lead_id::text = ?", filter.LeadID)
	}
	if filter.ApplicationID != "" {
		cond("application_id::text = ?", filter.ApplicationID)
	}
	if filter.AutomationTag != "" {
		cond("automation_tag = ?", filter.AutomationTag)
	}
	if len(filter.Statuses) > 0 {
		cond("status = ANY(?)", pq.Array(statusStrings(filter.Statuses)))
	}

	q := `SELECT ` + taskColumns + ` FROM automation_task`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY due_at, created_at`

	var rows []taskRow
	if err := sqlx.SelectContext(ctx, getExec(ctx, repo.db), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	tasks := make([]task.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, repo.fromRow(row))
	}
	return tasks, nil
}

func (repo taskRepository) CancelOpenApplicationStatusTasks(ctx context.Context, applicationID string, updatedAt time.Time) (int, error) {
	q := `UPDATE automation_task SET status = $1, completed_at = NULL, updated_at = $2
		WHERE application_id = $3 AND status = ANY($4) AND automation_tag LIKE $5`
	n, err := rowsAffected(getExec(ctx, repo.db).ExecContext(
		ctx, q,
		string(task.StatusCancelled),
		updatedAt.UTC(),
		applicationID,
		pq.Array(statusStrings(task.OpenStatuses)),
		task.TagApplicationStatusPrefix+"%",
	))
	if err != nil {
		return 0, errors.Wrap(err, "cancelling application tasks")
	}
	return n, nil
}

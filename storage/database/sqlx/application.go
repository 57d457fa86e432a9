package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core/application"
	"github.com/trezcool/admissions/core/lead"
)

const applicationColumns = `id, lead_id, status, submitted_at, decision, decision_at, reviewed_by, created_at, updated_at`

type (
	applicationRow struct {
		ID          string      `db:"id"`
		LeadID      string      `db:"lead_id"`
		Status      string      `db:"status"`
		SubmittedAt null.Time   `db:"submitted_at"`
		Decision    string      `db:"decision"`
		DecisionAt  null.Time   `db:"decision_at"`
		ReviewedBy  null.String `db:"reviewed_by"`
		CreatedAt   time.Time   `db:"created_at"`
		UpdatedAt   time.Time   `db:"updated_at"`
	}

	applicationRepository struct {
		db *sqlx.DB
	}
)

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *sqlx.DB) *applicationRepository {
	return &applicationRepository{db: db}
}

func (repo applicationRepository) toRow(app application.Application) applicationRow {
	return applicationRow{
		ID:          app.ID,
		LeadID:      app.LeadID,
		Status:      string(app.Status),
		SubmittedAt: null.TimeFromPtr(app.SubmittedAt),
		Decision:    app.Decision,
		DecisionAt:  null.TimeFromPtr(app.DecisionAt),
		ReviewedBy:  null.StringFromPtr(app.ReviewedBy),
		CreatedAt:   app.CreatedAt.UTC(),
		UpdatedAt:   app.UpdatedAt.UTC(),
	}
}

func (repo applicationRepository) fromRow(row applicationRow) application.Application {
	return application.Application{
		ID:          row.ID,
		LeadID:      row.LeadID,
		Status:      application.Status(row.Status),
		SubmittedAt: utcPtr(row.SubmittedAt),
		Decision:    row.Decision,
		DecisionAt:  utcPtr(row.DecisionAt),
		ReviewedBy:  row.ReviewedBy.Ptr(),
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func (repo applicationRepository) CreateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	row := repo.toRow(app)
	q := `INSERT INTO application (` + applicationColumns + `) VALUES (:id, :lead_id, :status, :submitted_at,
		:decision, :decision_at, :reviewed_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, getExec(ctx, repo.db), q, row); err != nil {
		if pqErrCode(err) == foreignKeyViolation {
			return application.Application{}, lead.ErrNotFound
		}
		return application.Application{}, errors.Wrap(err, "inserting application")
	}
	return repo.fromRow(row), nil
}

func (repo applicationRepository) GetApplication(ctx context.Context, id string) (application.Application, error) {
	if !isValidID(id) {
		return application.Application{}, application.ErrNotFound
	}
	var row applicationRow
	q := `SELECT ` + applicationColumns + ` FROM application WHERE id = $1` + forUpdate(ctx)
	if err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &row, q, id); err != nil {
		return application.Application{}, trapNoRowsErr(err, application.ErrNotFound, "finding application")
	}
	return repo.fromRow(row), nil
}

func (repo applicationRepository) UpdateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	var row applicationRow
	q := `UPDATE application SET status = :status, submitted_at = :submitted_at, decision = :decision,
		decision_at = :decision_at, reviewed_by = :reviewed_by, updated_at = :updated_at
		WHERE id = :id RETURNING ` + applicationColumns

	exec := getExec(ctx, repo.db)
	query, args, err := sqlx.Named(q, repo.toRow(app))
	if err != nil {
		return application.Application{}, errors.Wrap(err, "binding application")
	}
	if err = sqlx.GetContext(ctx, exec, &row, exec.Rebind(query), args...); err != nil {
		return application.Application{}, trapNoRowsErr(err, application.ErrNotFound, "updating application")
	}
	return repo.fromRow(row), nil
}

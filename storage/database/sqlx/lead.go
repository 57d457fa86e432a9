package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core/lead"
)

const leadColumns = `id, branch_id, assigned_staff_id, first_name, last_name, email, phone, stage,
	source, tags, metadata, created_at, updated_at`

type (
	leadRow struct {
		ID              string         `db:"id"`
		BranchID        string         `db:"branch_id"`
		AssignedStaffID null.String    `db:"assigned_staff_id"`
		FirstName       string         `db:"first_name"`
		LastName        string         `db:"last_name"`
		Email           string         `db:"email"`
		Phone           string         `db:"phone"`
		Stage           string         `db:"stage"`
		Source          string         `db:"source"`
		Tags            pq.StringArray `db:"tags"`
		Metadata        []byte         `db:"metadata"`
		CreatedAt       time.Time      `db:"created_at"`
		UpdatedAt       time.Time      `db:"updated_at"`
	}

	stageHistoryRow struct {
		ID        string      `db:"id"`
		LeadID    string      `db:"lead_id"`
		FromStage null.String `db:"from_stage"`
		ToStage   string      `db:"to_stage"`
		ChangedBy null.String `db:"changed_by"`
		Reason    null.String `db:"reason"`
		ChangedAt time.Time   `db:"changed_at"`
	}

	leadRepository struct {
		db *sqlx.DB
	}
)

var _ lead.Repository = (*leadRepository)(nil) // interface compliance check

func NewLeadRepository(db *sqlx.DB) *leadRepository {
	return &leadRepository{db: db}
}

func (repo leadRepository) toRow(ld lead.Lead) (leadRow, error) {
	metadata := ld.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return leadRow{}, errors.Wrap(err, "encoding lead metadata")
	}
	tags := ld.Tags
	if tags == nil {
		tags = []string{}
	}
	return leadRow{
		ID:              ld.ID,
		BranchID:        ld.BranchID,
		AssignedStaffID: null.StringFromPtr(ld.AssignedStaffID),
		FirstName:       ld.FirstName,
		LastName:        ld.LastName,
		Email:           ld.Email,
		Phone:           ld.Phone,
		Stage:           string(ld.Stage),
		Source:          ld.Source,
		Tags:            tags,
		Metadata:        raw,
		CreatedAt:       ld.CreatedAt.UTC(),
		UpdatedAt:       ld.UpdatedAt.UTC(),
	}, nil
}

func (repo leadRepository) fromRow(row leadRow) (lead.Lead, error) {
	var metadata map[string]string
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			return lead.Lead{}, errors.Wrapf(err, "decoding metadata of lead %s", row.ID)
		}
	}
	return lead.Lead{
		ID:              row.ID,
		BranchID:        row.BranchID,
		AssignedStaffID: row.AssignedStaffID.Ptr(),
		FirstName:       row.FirstName,
		LastName:        row.LastName,
		Email:           row.Email,
		Phone:           row.Phone,
		Stage:           lead.Stage(row.Stage),
		Source:          row.Source,
		Tags:            row.Tags,
		Metadata:        metadata,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}, nil
}

func (repo leadRepository) CreateLead(ctx context.Context, ld lead.Lead) (lead.Lead, error) {
	row, err := repo.toRow(ld)
	if err != nil {
		return lead.Lead{}, err
	}
	q := `INSERT INTO lead (` + leadColumns + `) VALUES (:id, :branch_id, :assigned_staff_id, :first_name,
		:last_name, :email, :phone, :stage, :source, :tags, :metadata, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, getExec(ctx, repo.db), q, row); err != nil {
		return lead.Lead{}, errors.Wrap(err, "inserting lead")
	}
	return repo.fromRow(row)
}

func (repo leadRepository) GetLead(ctx context.Context, id string) (lead.Lead, error) {
	if !isValidID(id) {
		return lead.Lead{}, lead.ErrNotFound
	}
	var row leadRow
	q := `SELECT ` + leadColumns + ` FROM lead WHERE id = $1`
	if err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &row, q, id); err != nil {
		return lead.Lead{}, trapNoRowsErr(err, lead.ErrNotFound, "finding lead")
	}
	return repo.fromRow(row)
}

func (repo leadRepository) QueryLeadsByID(ctx context.Context, ids ...string) ([]lead.Lead, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isValidID(id) {
			valid = append(valid, id)
		}
	}
	leads := make([]lead.Lead, 0, len(valid))
	if len(valid) == 0 {
		return leads, nil
	}

	var rows []leadRow
	q := `SELECT ` + leadColumns + ` FROM lead WHERE id = ANY($1) ORDER BY created_at`
	if err := sqlx.SelectContext(ctx, getExec(ctx, repo.db), &rows, q, pq.Array(valid)); err != nil {
		return nil, errors.Wrap(err, "querying leads")
	}
	for _, row := range rows {
		ld, err := repo.fromRow(row)
		if err != nil {
			return nil, err
		}
		leads = append(leads, ld)
	}
	return leads, nil
}

func (repo leadRepository) UpdateLeadStage(
	ctx context.Context,
	id string,
	from, to lead.Stage,
	assignTo *string,
	updatedAt time.Time,
) (bool, error) {
	q := `UPDATE lead SET stage = $3, assigned_staff_id = COALESCE($4, assigned_staff_id), updated_at = $5
		WHERE id = $1 AND stage = $2`
	n, err := rowsAffected(getExec(ctx, repo.db).ExecContext(
		ctx, q, id, string(from), string(to), null.StringFromPtr(assignTo), updatedAt.UTC(),
	))
	if err != nil {
		return false, errors.Wrap(err, "updating lead stage")
	}
	return n == 1, nil
}

func (repo leadRepository) CreateStageHistoryEntry(ctx context.Context, entry lead.StageHistoryEntry) (lead.StageHistoryEntry, error) {
	row := stageHistoryRow{
		ID:        entry.ID,
		LeadID:    entry.LeadID,
		ToStage:   string(entry.ToStage),
		ChangedBy: null.StringFromPtr(entry.ChangedBy),
		Reason:    null.StringFromPtr(entry.Reason),
		ChangedAt: entry.ChangedAt.UTC(),
	}
	if entry.FromStage != nil {
		row.FromStage = null.StringFrom(string(*entry.FromStage))
	}
	q := `INSERT INTO lead_stage_history (id, lead_id, from_stage, to_stage, changed_by, reason, changed_at)
		VALUES (:id, :lead_id, :from_stage, :to_stage, :changed_by, :reason, :changed_at)`
	if _, err := sqlx.NamedExecContext(ctx, getExec(ctx, repo.db), q, row); err != nil {
		if pqErrCode(err) == foreignKeyViolation {
			return lead.StageHistoryEntry{}, lead.ErrNotFound
		}
		return lead.StageHistoryEntry{}, errors.Wrap(err, "inserting stage history entry")
	}
	return entry, nil
}

func (repo leadRepository) QueryStageHistory(ctx context.Context, leadID string) ([]lead.StageHistoryEntry, error) {
	history := make([]lead.StageHistoryEntry, 0)
	if !isValidID(leadID) {
		return history, nil
	}

	var rows []stageHistoryRow
	q := `SELECT id, lead_id, from_stage, to_stage, changed_by, reason, changed_at
		FROM lead_stage_history WHERE lead_id = $1 ORDER BY changed_at, seq`
	if err := sqlx.SelectContext(ctx, getExec(ctx, repo.db), &rows, q, leadID); err != nil {
		return nil, errors.Wrap(err, "querying stage history")
	}
	for _, row := range rows {
		entry := lead.StageHistoryEntry{
			ID:        row.ID,
			LeadID:    row.LeadID,
			ToStage:   lead.Stage(row.ToStage),
			ChangedBy: row.ChangedBy.Ptr(),
			Reason:    row.Reason.Ptr(),
			ChangedAt: row.ChangedAt.UTC(),
		}
		if row.FromStage.Valid {
			from := lead.Stage(row.FromStage.String)
			entry.FromStage = &from
		}
		history = append(history, entry)
	}
	return history, nil
}

package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/admissions/core/lead"
)

type leadRepository struct {
	db *DB
}

var _ lead.Repository = (*leadRepository)(nil) // interface compliance check

func NewLeadRepository(db *DB) *leadRepository {
	return &leadRepository{db: db}
}

func (repo *leadRepository) CreateLead(ctx context.Context, ld lead.Lead) (lead.Lead, error) {
	defer repo.db.lock(ctx)()

	repo.db.lead.put(ld.ID, ld)
	return ld, nil
}

func (repo *leadRepository) GetLead(ctx context.Context, id string) (lead.Lead, error) {
	defer repo.db.lock(ctx)()

	if ld, ok := repo.db.lead.get(id); ok {
		return ld, nil
	}
	return lead.Lead{}, lead.ErrNotFound
}

func (repo *leadRepository) QueryLeadsByID(ctx context.Context, ids ...string) ([]lead.Lead, error) {
	defer repo.db.lock(ctx)()

	leads := make([]lead.Lead, 0, len(ids))
	for _, id := range ids {
		if ld, ok := repo.db.lead.get(id); ok {
			leads = append(leads, ld)
		}
	}
	return leads, nil
}

func (repo *leadRepository) UpdateLeadStage(
	ctx context.Context,
	id string,
	from, to lead.Stage,
	assignTo *string,
	updatedAt time.Time,
) (bool, error) {
	defer repo.db.lock(ctx)()

	ld, ok := repo.db.lead.get(id)
	if !ok || ld.Stage != from {
		return false, nil
	}
	ld.Stage = to
	if assignTo != nil {
		ld.AssignedStaffID = assignTo
	}
	ld.UpdatedAt = updatedAt
	repo.db.lead.put(id, ld)
	return true, nil
}

func (repo *leadRepository) CreateStageHistoryEntry(ctx context.Context, entry lead.StageHistoryEntry) (lead.StageHistoryEntry, error) {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.lead.get(entry.LeadID); !ok {
		return lead.StageHistoryEntry{}, lead.ErrNotFound
	}
	repo.db.leadHistory = append(repo.db.leadHistory, entry)
	return entry, nil
}

func (repo *leadRepository) QueryStageHistory(ctx context.Context, leadID string) ([]lead.StageHistoryEntry, error) {
	defer repo.db.lock(ctx)()

	history := make([]lead.StageHistoryEntry, 0)
	for _, entry := range repo.db.leadHistory {
		if entry.LeadID == leadID {
			history = append(history, entry)
		}
	}
	return history, nil
}

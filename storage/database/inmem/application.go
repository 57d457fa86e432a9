package inmemdb

import (
	"context"

	"github.com/trezcool/admissions/core/application"
)

type applicationRepository struct {
	db *DB
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *DB) *applicationRepository {
	return &applicationRepository{db: db}
}

func (repo *applicationRepository) CreateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	defer repo.db.lock(ctx)()

	repo.db.application.put(app.ID, app)
	return app, nil
}

func (repo *applicationRepository) GetApplication(ctx context.Context, id string) (application.Application, error) {
	defer repo.db.lock(ctx)()

	if app, ok := repo.db.application.get(id); ok {
		return app, nil
	}
	return application.Application{}, application.ErrNotFound
}

func (repo *applicationRepository) UpdateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	defer repo.db.lock(ctx)()

	orig, ok := repo.db.application.get(app.ID)
	if !ok {
		return application.Application{}, application.ErrNotFound
	}
	app.LeadID = orig.LeadID
	app.CreatedAt = orig.CreatedAt
	repo.db.application.put(app.ID, app)
	return app, nil
}

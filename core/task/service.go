package task

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound = errors.New("task not found")
)

type (
	Repository interface {
		CreateTask(ctx context.Context, t Task) (Task, error)
		GetTask(ctx context.Context, id string) (Task, error)
		// QueryTasks returns the tasks matching filter, ordered by due date.
		QueryTasks(ctx context.Context, filter QueryFilter) ([]Task, error)
		// CancelOpenApplicationStatusTasks cancels the PENDING or IN_PROGRESS tasks of applicationID
		// whose automation tag starts with TagApplicationStatusPrefix, clearing CompletedAt.
		// It returns the number of tasks cancelled.
		CancelOpenApplicationStatusTasks(ctx context.Context, applicationID string, updatedAt time.Time) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Get(ctx context.Context, id string) (Task, error) {
	return svc.repo.GetTask(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Task, error) {
	return svc.repo.QueryTasks(ctx, filter)
}

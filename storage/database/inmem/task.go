package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/admissions/core/task"
)

type taskRepository struct {
	db *DB
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *DB) *taskRepository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	defer repo.db.lock(ctx)()

	repo.db.task.put(t.ID, t)
	return t, nil
}

func (repo *taskRepository) GetTask(ctx context.Context, id string) (task.Task, error) {
	defer repo.db.lock(ctx)()

	if t, ok := repo.db.task.get(id); ok {
		return t, nil
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *taskRepository) QueryTasks(ctx context.Context, filter task.QueryFilter) ([]task.Task, error) {
	defer repo.db.lock(ctx)()

	tasks := make([]task.Task, 0)
	for _, t := range repo.db.task.all() {
		if filter.Match(t) {
			tasks = append(tasks, t)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].DueAt.Before(tasks[j].DueAt) })
	return tasks, nil
}

func (repo *taskRepository) CancelOpenApplicationStatusTasks(ctx context.Context, applicationID string, updatedAt time.Time) (int, error) {
	defer repo.db.lock(ctx)()

	var n int
	for _, t := range repo.db.task.all() {
		if t.ApplicationID == nil || *t.ApplicationID != applicationID {
			continue
		}
		if !t.Status.IsOpen() || !task.IsApplicationStatusTag(t.AutomationTag) {
			continue
		}
		t.Status = task.StatusCancelled
		t.CompletedAt = nil
		t.UpdatedAt = updatedAt
		repo.db.task.put(t.ID, t)
		n++
	}
	return n, nil
}

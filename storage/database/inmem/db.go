package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/application"
	"github.com/trezcool/admissions/core/lead"
	"github.com/trezcool/admissions/core/task"
	"github.com/trezcool/admissions/core/visit"
)

type (
	// DB is a process-local store. One mutex guards every table: a transaction holds it
	// from start to commit, which gives the same conditional-update semantics as Postgres.
	DB struct {
		mutex sync.Mutex
		tables
	}

	tables struct {
		lead        *table[lead.Lead]
		leadHistory []lead.StageHistoryEntry
		session     *table[visit.Session]
		attendee    *table[visit.Attendee]
		application *table[application.Application]
		task        *table[task.Task]
	}

	// table keeps rows in insertion order.
	table[T any] struct {
		rows  map[string]T
		order []string
	}

	txKey struct{}
)

var _ core.TxRunner = (*DB)(nil) // interface compliance check

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func (t *table[T]) get(id string) (T, bool) {
	row, ok := t.rows[id]
	return row, ok
}

func (t *table[T]) put(id string, row T) {
	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = row
}

func (t *table[T]) all() []T {
	rows := make([]T, 0, len(t.order))
	for _, id := range t.order {
		rows = append(rows, t.rows[id])
	}
	return rows
}

func (t *table[T]) clone() *table[T] {
	c := &table[T]{
		rows:  make(map[string]T, len(t.rows)),
		order: append([]string(nil), t.order...),
	}
	for id, row := range t.rows {
		c.rows[id] = row
	}
	return c
}

func (ts tables) clone() tables {
	return tables{
		lead:        ts.lead.clone(),
		leadHistory: append([]lead.StageHistoryEntry(nil), ts.leadHistory...),
		session:     ts.session.clone(),
		attendee:    ts.attendee.clone(),
		application: ts.application.clone(),
		task:        ts.task.clone(),
	}
}

func Open() *DB {
	return &DB{
		tables: tables{
			lead:        newTable[lead.Lead](),
			session:     newTable[visit.Session](),
			attendee:    newTable[visit.Attendee](),
			application: newTable[application.Application](),
			task:        newTable[task.Task](),
		},
	}
}

func (db *DB) inTx(ctx context.Context) bool {
	tx, _ := ctx.Value(txKey{}).(*DB)
	return tx == db
}

// lock takes the store mutex unless ctx already runs in one of db's transactions.
func (db *DB) lock(ctx context.Context) func() {
	if db.inTx(ctx) {
		return func() {}
	}
	db.mutex.Lock()
	return db.mutex.Unlock
}

// RunInTx runs fn while holding the store. Every write fn made is undone if it returns an error.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.inTx(ctx) {
		return fn(ctx)
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	snapshot := db.tables.clone()
	if err := fn(context.WithValue(ctx, txKey{}, db)); err != nil {
		db.tables = snapshot
		return err
	}
	return nil
}

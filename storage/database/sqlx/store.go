package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
)

// postgres error codes
const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

type (
	// Store runs transactions over db; repositories join the one carried by ctx.
	Store struct {
		db *sqlx.DB
	}

	txKey struct{}
)

var _ core.TxRunner = (*Store)(nil) // interface compliance check

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

func txFrom(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx, ok
}

// RunInTx commits when fn returns nil and rolls back otherwise. A ctx already carrying
// a transaction runs fn inside it.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return trapConnErr(err, "beginning transaction")
	}
	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// getExec returns the transaction of ctx, or db outside of one.
func getExec(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return db
}

// forUpdate locks the selected rows when running in a transaction.
func forUpdate(ctx context.Context) string {
	if _, ok := txFrom(ctx); ok {
		return " FOR UPDATE"
	}
	return ""
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// trapConnErr maps a lost database connection to a core shutdown error.
func trapConnErr(err error, msg string) error {
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return core.NewShutdownError(msg + ": database connection lost: " + err.Error())
	}
	return errors.Wrap(err, msg)
}

func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func pqErrCode(err error) string {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return string(pqErr.Code)
	}
	return ""
}

func rowsAffected(res sql.Result, err error) (int, error) {
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

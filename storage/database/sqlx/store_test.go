package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core"
)

func Test_trapConnErr(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantShutdown bool
	}{
		{name: "bad conn", err: driver.ErrBadConn, wantShutdown: true},
		{name: "conn done", err: errors.Wrap(sql.ErrConnDone, "querying"), wantShutdown: true},
		{name: "dial", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, wantShutdown: true},
		{name: "other", err: errors.New("syntax error")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := trapConnErr(tt.err, "beginning transaction")
			require.Error(t, err)
			assert.Equal(t, tt.wantShutdown, core.IsShutdown(err))
			assert.Contains(t, err.Error(), "beginning transaction")
		})
	}
}

func TestStore_RunInTx_unreachable(t *testing.T) {
	// nothing listens on port 1: opening a connection is refused
	db, err := sqlx.Open("postgres", "postgres://admissions@127.0.0.1:1/admissions?sslmode=disable&connect_timeout=2")
	require.NoError(t, err)
	defer db.Close()

	called := false
	err = NewStore(db).RunInTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.False(t, called)
	assert.True(t, core.IsShutdown(err), "got %v", err)
}

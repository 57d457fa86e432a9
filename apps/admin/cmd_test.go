package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core/lead"
	"github.com/trezcool/admissions/core/task"
	"github.com/trezcool/admissions/core/visit"
	inmemdb "github.com/trezcool/admissions/storage/database/inmem"
	testutil "github.com/trezcool/admissions/tests"
)

var now = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type cliTest struct {
	name       string
	args       []string // without program name
	wantErrStr string
	wantOut    []string
}

type fixture struct {
	cli      *commandLine
	notifier *testutil.Notifier
	tasks    task.Repository
}

func setup(t *testing.T) fixture {
	db := inmemdb.Open()
	clock := testutil.NewClock(now)
	leadRepo := inmemdb.NewLeadRepository(db)
	visitRepo := inmemdb.NewVisitRepository(db)
	taskRepo := inmemdb.NewTaskRepository(db)
	notifier := &testutil.Notifier{}

	leads := lead.NewService(leadRepo, db, clock)
	visits := visit.NewService(visitRepo, leadRepo, clock)
	soon := testutil.CreateSession(t, visitRepo, "Open morning", now.Add(2*time.Hour), time.Hour)
	past := testutil.CreateSession(t, visitRepo, "Taster day", now.Add(-48*time.Hour), time.Hour)
	testutil.Invite(t, visits, soon.ID, testutil.CreateLead(t, leads, "ada", "ada@example.com").ID)
	testutil.Invite(t, visits, past.ID, testutil.CreateLead(t, leads, "bob", "bob@example.com").ID)

	sch := visit.NewScheduler(visitRepo, taskRepo, db, clock, notifier, &testutil.Logger{})
	return fixture{
		cli: &commandLine{
			openDB:       func() (*sqlx.DB, error) { return &sqlx.DB{}, nil },
			newScheduler: func() (*visit.Scheduler, error) { return sch, nil },
		},
		notifier: notifier,
		tasks:    taskRepo,
	}
}

func runCLI(cli *commandLine, args []string) (string, error) {
	cmd := cli.rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func checkRun(t *testing.T, cli *commandLine, tt cliTest) {
	out, err := runCLI(cli, tt.args)
	if tt.wantErrStr != "" {
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), tt.wantErrStr)
		}
		return
	}
	require.NoError(t, err)
	for _, want := range tt.wantOut {
		assert.Contains(t, out, want)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	orig := gooseRunFunc
	defer func() { gooseRunFunc = orig }()
	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		if dir != "migrations" {
			return fmt.Errorf("unexpected dir %q", dir)
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErrStr: "requires at least 1 arg(s)"},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "branch", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkRun(t, f.cli, tt)
		})
	}
}

func Test_commandLine_remind(t *testing.T) {
	f := setup(t)

	tests := []cliTest{
		{name: "unknown offset", args: []string{"remind", "--offset", "1h"}, wantErrStr: `unknown offset "1h" (want one of 24h, 2h)`},
		{name: "stray argument", args: []string{"remind", "now"}, wantErrStr: "unknown command"},
		{name: "24h", args: []string{"remind"}, wantOut: []string{"reminders 24h: candidates=0"}},
		{name: "2h", args: []string{"remind", "-o", "2h"}, wantOut: []string{"reminders 2h: candidates=1 claimed=1", "notified=1"}},
		{name: "2h again", args: []string{"remind", "-o", "2h"}, wantOut: []string{"reminders 2h: candidates=0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkRun(t, f.cli, tt)
		})
	}
	assert.Len(t, f.notifier.Sent(), 1)
}

func Test_commandLine_sweep(t *testing.T) {
	f := setup(t)

	checkRun(t, f.cli, cliTest{args: []string{"sweep"}, wantOut: []string{"no_shows=1 tasks=1"}})
	checkRun(t, f.cli, cliTest{args: []string{"sweep"}, wantOut: []string{"no-show sweep: candidates=0"}})

	tasks, err := f.tasks.QueryTasks(context.Background(), task.QueryFilter{AutomationTag: task.TagTasterNoShow})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, strings.HasSuffix(tasks[0].Title, "Taster day"))
}

func Test_commandLine_tick(t *testing.T) {
	f := setup(t)

	out, err := runCLI(f.cli, []string{"tick"})
	require.NoError(t, err)
	assert.Contains(t, out, "reminders 24h:")
	assert.Contains(t, out, "reminders 2h: candidates=1")
	assert.Contains(t, out, "no-show sweep: candidates=1")
	assert.Len(t, f.notifier.Sent(), 1)
}

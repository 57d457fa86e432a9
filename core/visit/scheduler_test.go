package visit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/lead"
	"github.com/trezcool/admissions/core/task"
	"github.com/trezcool/admissions/core/visit"
	inmemdb "github.com/trezcool/admissions/storage/database/inmem"
	testutil "github.com/trezcool/admissions/tests"
)

var now = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type env struct {
	db        *inmemdb.DB
	clock     *testutil.Clock
	notifier  *testutil.Notifier
	logger    *testutil.Logger
	leads     *lead.Service
	visits    *visit.Service
	visitRepo visit.Repository
	taskRepo  task.Repository
	scheduler *visit.Scheduler
}

func setup(opts ...visit.SchedulerOption) *env {
	db := inmemdb.Open()
	e := &env{
		db:        db,
		clock:     testutil.NewClock(now),
		notifier:  &testutil.Notifier{},
		logger:    &testutil.Logger{},
		visitRepo: inmemdb.NewVisitRepository(db),
		taskRepo:  inmemdb.NewTaskRepository(db),
	}
	leadRepo := inmemdb.NewLeadRepository(db)
	e.leads = lead.NewService(leadRepo, db, e.clock)
	e.visits = visit.NewService(e.visitRepo, leadRepo, e.clock)
	e.scheduler = visit.NewScheduler(e.visitRepo, e.taskRepo, db, e.clock, e.notifier, e.logger, opts...)
	return e
}

func (e *env) session(t *testing.T, title string, start time.Time) visit.Session {
	return testutil.CreateSession(t, e.visitRepo, title, start, 2*time.Hour)
}

func (e *env) invite(t *testing.T, sess visit.Session, name string) visit.Attendee {
	ld := testutil.CreateLead(t, e.leads, name, name+"@example.com")
	return testutil.Invite(t, e.visits, sess.ID, ld.ID)
}

func (e *env) attendee(t *testing.T, id string) visit.Attendee {
	att, err := e.visitRepo.GetAttendee(context.Background(), id)
	require.NoError(t, err)
	return att
}

func (e *env) storedSession(t *testing.T, id string) visit.Session {
	sess, err := e.visits.Get(context.Background(), id)
	require.NoError(t, err)
	return sess
}

func TestScheduler_RunReminders_exactlyOnce(t *testing.T) {
	e := setup()
	ctx := context.Background()
	sess := e.session(t, "Open morning", now.Add(24*time.Hour))
	att := e.invite(t, sess, "ada")

	rep, err := e.scheduler.RunReminders(ctx, visit.Reminder24h)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Candidates)
	assert.Equal(t, 1, rep.Claimed)
	assert.Equal(t, 1, rep.Notified)

	rep, err = e.scheduler.RunReminders(ctx, visit.Reminder24h)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Candidates)
	assert.Equal(t, 0, rep.Notified)

	sent := e.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "24h", sent[0].Window)
	assert.Equal(t, sess.ID, sent[0].Session.ID)
	assert.Equal(t, att.ID, sent[0].Attendee.ID)
	assert.Equal(t, "ada@example.com", sent[0].Attendee.LeadEmail)
	assert.Equal(t, "ada Doe", sent[0].Attendee.LeadName)

	stored := e.storedSession(t, sess.ID)
	require.NotNil(t, stored.Reminder24hStampedAt)
	assert.Equal(t, now, *stored.Reminder24hStampedAt)
	assert.Nil(t, stored.Reminder2hStampedAt)

	storedAtt := e.attendee(t, att.ID)
	require.NotNil(t, storedAtt.Reminder24hNotifiedAt)
	assert.Nil(t, storedAtt.Reminder2hNotifiedAt)
}

func TestScheduler_RunReminders_claimIsConditional(t *testing.T) {
	e := setup()
	ctx := context.Background()
	sess := e.session(t, "Open morning", now.Add(24*time.Hour))

	ok, err := e.visitRepo.ClaimSession(ctx, sess.ID, visit.StampReminder24h, now)
	require.NoError(t, err)
	assert.True(t, ok)

	later := now.Add(time.Minute)
	ok, err = e.visitRepo.ClaimSession(ctx, sess.ID, visit.StampReminder24h, later)
	require.NoError(t, err)
	assert.False(t, ok, "a claimed stamp is never overwritten")
	assert.Equal(t, now, *e.storedSession(t, sess.ID).Reminder24hStampedAt)
}

func TestScheduler_RunReminders_concurrentPasses(t *testing.T) {
	e := setup()
	sessions := []visit.Session{
		e.session(t, "Open morning", now.Add(24*time.Hour)),
		e.session(t, "Taster day", now.Add(24*time.Hour+3*time.Minute)),
	}
	for _, sess := range sessions {
		e.invite(t, sess, "ada-"+sess.Title)
		e.invite(t, sess, "bob-"+sess.Title)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.scheduler.RunReminders(context.Background(), visit.Reminder24h)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sent := e.notifier.Sent()
	assert.Len(t, sent, 4, "each attendee is reminded exactly once")
	seen := make(map[string]bool)
	for _, r := range sent {
		assert.False(t, seen[r.Attendee.ID], "attendee %s reminded twice", r.Attendee.ID)
		seen[r.Attendee.ID] = true
	}
}

func TestScheduler_RunReminders_alreadyStamped(t *testing.T) {
	e := setup()
	ctx := context.Background()
	sess := e.session(t, "Open morning", now.Add(24*time.Hour))
	att := e.invite(t, sess, "ada")

	ok, err := e.visitRepo.ClaimSession(ctx, sess.ID, visit.StampReminder24h, now.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	rep, err := e.scheduler.RunReminders(ctx, visit.Reminder24h)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Candidates)
	assert.Empty(t, e.notifier.Sent())
	assert.Nil(t, e.attendee(t, att.ID).Reminder24hNotifiedAt)
}

func TestScheduler_RunReminders_window(t *testing.T) {
	tests := []struct {
		name   string
		start  time.Time
		offset visit.ReminderOffset
		want   int
	}{
		{name: "24h at lower bound", start: now.Add(24*time.Hour - 5*time.Minute), offset: visit.Reminder24h, want: 1},
		{name: "24h at upper bound", start: now.Add(24*time.Hour + 5*time.Minute), offset: visit.Reminder24h, want: 1},
		{name: "24h too early", start: now.Add(24*time.Hour + 6*time.Minute), offset: visit.Reminder24h, want: 0},
		{name: "24h too late", start: now.Add(24*time.Hour - 6*time.Minute), offset: visit.Reminder24h, want: 0},
		{name: "2h", start: now.Add(2 * time.Hour), offset: visit.Reminder2h, want: 1},
		{name: "2h ignores 24h sessions", start: now.Add(24 * time.Hour), offset: visit.Reminder2h, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setup()
			sess := e.session(t, "Open morning", tt.start)
			e.invite(t, sess, "ada")

			rep, err := e.scheduler.RunReminders(context.Background(), tt.offset)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rep.Claimed)
			assert.Len(t, e.notifier.Sent(), tt.want)
		})
	}
}

func TestScheduler_RunReminders_attendanceSuppresses(t *testing.T) {
	e := setup()
	ctx := context.Background()
	sess := e.session(t, "Open morning", now.Add(2*time.Hour))
	present := e.invite(t, sess, "ada")
	absent := e.invite(t, sess, "bob")

	_, err := e.visits.CheckIn(ctx, sess.ID, present.ID)
	require.NoError(t, err)

	rep, err := e.scheduler.RunReminders(ctx, visit.Reminder2h)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Claimed)

	sent := e.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, absent.ID, sent[0].Attendee.ID)
	assert.Nil(t, e.attendee(t, present.ID).Reminder2hNotifiedAt)
	assert.NotNil(t, e.attendee(t, absent.ID).Reminder2hNotifiedAt)
}

func TestScheduler_RunReminders_notificationFailure(t *testing.T) {
	e := setup()
	ctx := context.Background()
	sess := e.session(t, "Open morning", now.Add(24*time.Hour))
	failing := e.invite(t, sess, "ada")
	delivered := e.invite(t, sess, "bob")
	e.notifier.FailFor = map[string]bool{failing.ID: true}

	rep, err := e.scheduler.RunReminders(ctx, visit.Reminder24h)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Notified)
	assert.Equal(t, 1, rep.NotifyErrs)
	assert.Len(t, e.logger.Entries("ERROR"), 1)

	// the claim stands: the failed reminder is not retried
	e.notifier.FailFor = nil
	rep, err = e.scheduler.RunReminders(ctx, visit.Reminder24h)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Candidates)

	sent := e.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, delivered.ID, sent[0].Attendee.ID)
	assert.NotNil(t, e.attendee(t, failing.ID).Reminder24hNotifiedAt)
}

func TestScheduler_RunReminders_sessionWithoutAttendees(t *testing.T) {
	e := setup()
	ctx := context.Background()
	sess := e.session(t, "Open morning", now.Add(24*time.Hour))

	rep, err := e.scheduler.RunReminders(ctx, visit.Reminder24h)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Claimed)
	assert.NotNil(t, e.storedSession(t, sess.ID).Reminder24hStampedAt)
	assert.Empty(t, e.notifier.Sent())
}

func TestScheduler_SweepNoShows(t *testing.T) {
	e := setup()
	ctx := context.Background()
	// ended exactly 24h ago
	sess := e.session(t, "Taster day", now.Add(-26*time.Hour))
	present := e.invite(t, sess, "ada")
	absent := e.invite(t, sess, "bob")
	recent := e.session(t, "Yesterday evening", now.Add(-20*time.Hour))
	e.invite(t, recent, "carl")

	_, err := e.visits.CheckIn(ctx, sess.ID, present.ID)
	require.NoError(t, err)

	rep, err := e.scheduler.SweepNoShows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Candidates)
	assert.Equal(t, 1, rep.Claimed)
	assert.Equal(t, 1, rep.NoShows)
	assert.Equal(t, 1, rep.TasksOpened)

	assert.Nil(t, e.attendee(t, present.ID).NoShowAt)
	noShow := e.attendee(t, absent.ID)
	require.NotNil(t, noShow.NoShowAt)
	assert.Equal(t, now, *noShow.NoShowAt)
	require.NotNil(t, e.storedSession(t, sess.ID).NoShowSweepCompletedAt)
	assert.Nil(t, e.storedSession(t, recent.ID).NoShowSweepCompletedAt)

	tasks, err := e.taskRepo.QueryTasks(ctx, task.QueryFilter{AutomationTag: task.TagTasterNoShow})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	tk := tasks[0]
	assert.Equal(t, "Follow up missed visit: Taster day", tk.Title)
	assert.Equal(t, task.StatusPending, tk.Status)
	assert.Equal(t, now.Add(24*time.Hour), tk.DueAt)
	require.NotNil(t, tk.LeadID)
	assert.Equal(t, absent.LeadID, *tk.LeadID)
	assert.Nil(t, tk.ApplicationID)

	// sweeping again changes nothing
	rep, err = e.scheduler.SweepNoShows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Candidates)
	tasks, err = e.taskRepo.QueryTasks(ctx, task.QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

// flakyTasks fails the first `failures` task creations.
type flakyTasks struct {
	task.Repository
	failures int
}

func (r *flakyTasks) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	if r.failures > 0 {
		r.failures--
		return task.Task{}, errors.New("store unavailable")
	}
	return r.Repository.CreateTask(ctx, t)
}

func TestScheduler_SweepNoShows_rollsBack(t *testing.T) {
	e := setup()
	ctx := context.Background()
	flaky := &flakyTasks{Repository: e.taskRepo, failures: 1}
	e.scheduler = visit.NewScheduler(e.visitRepo, flaky, e.db, e.clock, e.notifier, e.logger)

	sess := e.session(t, "Taster day", now.Add(-48*time.Hour))
	a := e.invite(t, sess, "ada")
	b := e.invite(t, sess, "bob")

	rep, err := e.scheduler.SweepNoShows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 0, rep.Claimed)
	assert.Nil(t, e.storedSession(t, sess.ID).NoShowSweepCompletedAt, "a failed sweep leaves the session unclaimed")
	assert.Nil(t, e.attendee(t, a.ID).NoShowAt)
	assert.Nil(t, e.attendee(t, b.ID).NoShowAt)
	assert.Len(t, e.logger.Entries("ERROR"), 1)

	// next tick retries
	e.clock.Advance(time.Minute)
	rep, err = e.scheduler.SweepNoShows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Claimed)
	assert.Equal(t, 2, rep.TasksOpened)
	assert.NotNil(t, e.attendee(t, a.ID).NoShowAt)

	tasks, err := e.taskRepo.QueryTasks(ctx, task.QueryFilter{AutomationTag: task.TagTasterNoShow})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

// steppingClock moves one second forward on every read.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

func TestScheduler_usesOneInstantPerPass(t *testing.T) {
	e := setup()
	ctx := context.Background()
	tomorrow := e.session(t, "Open morning", now.Add(24*time.Hour))
	invited := e.invite(t, tomorrow, "ada")
	past := e.session(t, "Taster day", now.Add(-26*time.Hour))
	absent := e.invite(t, past, "bob")

	tests := []struct {
		name string
		run  func(sch *visit.Scheduler) error
		want func(t *testing.T, at time.Time)
	}{
		{
			name: "reminders",
			run: func(sch *visit.Scheduler) error {
				_, err := sch.RunReminders(ctx, visit.Reminder24h)
				return err
			},
			want: func(t *testing.T, at time.Time) {
				stamp := e.storedSession(t, tomorrow.ID).Reminder24hStampedAt
				require.NotNil(t, stamp)
				assert.Equal(t, at, *stamp)
				mark := e.attendee(t, invited.ID).Reminder24hNotifiedAt
				require.NotNil(t, mark)
				assert.Equal(t, at, *mark)
			},
		},
		{
			name: "no-show sweep",
			run: func(sch *visit.Scheduler) error {
				_, err := sch.SweepNoShows(ctx)
				return err
			},
			want: func(t *testing.T, at time.Time) {
				stamp := e.storedSession(t, past.ID).NoShowSweepCompletedAt
				require.NotNil(t, stamp)
				assert.Equal(t, at, *stamp)
				mark := e.attendee(t, absent.ID).NoShowAt
				require.NotNil(t, mark)
				assert.Equal(t, at, *mark)

				tasks, err := e.taskRepo.QueryTasks(ctx, task.QueryFilter{LeadID: absent.LeadID})
				require.NoError(t, err)
				require.Len(t, tasks, 1)
				assert.Equal(t, at, tasks[0].CreatedAt)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := now.Add(time.Minute)
			clock := &steppingClock{now: start}
			sch := visit.NewScheduler(e.visitRepo, e.taskRepo, e.db, clock, e.notifier, e.logger)

			require.NoError(t, tt.run(sch))
			tt.want(t, start)
		})
	}
}

func TestScheduler_Tick(t *testing.T) {
	e := setup()
	ctx := context.Background()
	soon := e.session(t, "Open morning", now.Add(2*time.Hour))
	tomorrow := e.session(t, "Taster day", now.Add(24*time.Hour))
	past := e.session(t, "Last week", now.Add(-7*24*time.Hour))
	e.invite(t, soon, "ada")
	e.invite(t, tomorrow, "bob")
	e.invite(t, past, "carl")

	e.scheduler.Tick(ctx)
	e.scheduler.Tick(ctx)

	sent := e.notifier.Sent()
	require.Len(t, sent, 2)
	windows := map[string]string{}
	for _, r := range sent {
		windows[r.Session.ID] = r.Window
	}
	assert.Equal(t, "2h", windows[soon.ID])
	assert.Equal(t, "24h", windows[tomorrow.ID])

	tasks, err := e.taskRepo.QueryTasks(ctx, task.QueryFilter{AutomationTag: task.TagTasterNoShow})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Empty(t, e.logger.Entries("ERROR"))
}

func TestScheduler_WithOffsets(t *testing.T) {
	e := setup(visit.WithOffsets(visit.Reminder2h))
	ctx := context.Background()
	tomorrow := e.session(t, "Taster day", now.Add(24*time.Hour))
	e.invite(t, tomorrow, "bob")

	e.scheduler.Tick(ctx)
	assert.Empty(t, e.notifier.Sent())
	assert.Len(t, e.scheduler.Offsets(), 1)
}

func TestService_CheckIn(t *testing.T) {
	e := setup()
	ctx := context.Background()
	sess := e.session(t, "Open morning", now.Add(time.Hour))
	att := e.invite(t, sess, "ada")

	got, err := e.visits.CheckIn(ctx, sess.ID, att.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AttendedAt)
	assert.Equal(t, now, *got.AttendedAt)

	e.clock.Advance(time.Hour)
	got, err = e.visits.CheckIn(ctx, sess.ID, att.ID)
	require.NoError(t, err)
	assert.Equal(t, now, *got.AttendedAt, "a second check-in keeps the first time")

	_, err = e.visits.CheckIn(ctx, "other-session", att.ID)
	assert.Equal(t, visit.ErrAttendeeNotFound, errors.Cause(err))
}

func TestService_Invite(t *testing.T) {
	e := setup()
	ctx := context.Background()
	sess := e.session(t, "Open morning", now.Add(time.Hour))
	ld := testutil.CreateLead(t, e.leads, "ada", "ada@example.com")

	_, err := e.visits.Invite(ctx, sess.ID, ld.ID)
	require.NoError(t, err)

	_, err = e.visits.Invite(ctx, sess.ID, ld.ID)
	if assert.True(t, core.IsValidationError(err)) {
		assert.Equal(t, visit.ErrAlreadyInvited, errors.Cause(err).(*core.ValidationError).Err)
	}

	_, err = e.visits.Invite(ctx, sess.ID, "ghost")
	assert.Equal(t, lead.ErrNotFound, errors.Cause(err))

	_, err = e.visits.Invite(ctx, "nope", ld.ID)
	assert.Equal(t, visit.ErrNotFound, errors.Cause(err))

	attendees, err := e.visits.Attendees(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, attendees, 1)
}

func TestService_CreateSession(t *testing.T) {
	e := setup()
	ctx := context.Background()

	sess, err := e.visits.CreateSession(ctx, visit.NewSession{
		BranchID:  "branch-1",
		Title:     " Open morning ",
		StartTime: now,
		EndTime:   now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "Open morning", sess.Title)
	assert.Nil(t, sess.Reminder24hStampedAt)

	_, err = e.visits.CreateSession(ctx, visit.NewSession{BranchID: "b", Title: "t", StartTime: now, EndTime: now})
	assert.Error(t, err)
}

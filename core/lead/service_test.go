package lead_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/lead"
	inmemdb "github.com/trezcool/admissions/storage/database/inmem"
	testutil "github.com/trezcool/admissions/tests"
)

var t0 = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func setup(opts ...lead.Option) (*lead.Service, *testutil.Clock) {
	db := inmemdb.Open()
	clock := testutil.NewClock(t0)
	return lead.NewService(inmemdb.NewLeadRepository(db), db, clock, opts...), clock
}

func TestService_Create(t *testing.T) {
	svc, _ := setup()
	ctx := context.Background()

	ld, err := svc.Create(ctx, lead.NewLead{
		BranchID:  " branch-1 ",
		FirstName: " Ada ",
		LastName:  "Lovelace",
		Email:     " ADA@example.com",
	}, "staff-1")
	require.NoError(t, err)

	assert.NotEmpty(t, ld.ID)
	assert.Equal(t, lead.StageNew, ld.Stage)
	assert.Equal(t, "branch-1", ld.BranchID)
	assert.Equal(t, "ada@example.com", ld.Email)
	assert.Equal(t, "Ada Lovelace", ld.FullName())
	assert.Equal(t, t0, ld.CreatedAt)

	history, err := svc.History(ctx, ld.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].FromStage)
	assert.Equal(t, lead.StageNew, history[0].ToStage)
	require.NotNil(t, history[0].Reason)
	assert.Equal(t, lead.CreationReason, *history[0].Reason)
	require.NotNil(t, history[0].ChangedBy)
	assert.Equal(t, "staff-1", *history[0].ChangedBy)
}

func TestService_Create_withoutActor(t *testing.T) {
	svc, _ := setup()
	ctx := context.Background()

	ld, err := svc.Create(ctx, lead.NewLead{BranchID: "b", FirstName: "Web form"}, "")
	require.NoError(t, err)

	history, err := svc.History(ctx, ld.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].ChangedBy)
}

func TestService_Transition(t *testing.T) {
	lost := lead.StageLost
	staff2 := "staff-2"

	tests := []struct {
		name       string
		tr         lead.Transition
		wantStage  lead.Stage
		wantErr    bool
		wantFields []string
		history    int
	}{
		{
			name:      "valid transition",
			tr:        lead.Transition{ToStage: lead.StageContacted, ActorID: "staff-1", Reason: "  called back  "},
			wantStage: lead.StageContacted,
			history:   2,
		},
		{
			name:      "same stage is a no-op",
			tr:        lead.Transition{ToStage: lead.StageNew},
			wantStage: lead.StageNew,
			history:   1,
		},
		{
			name:       "missing actor",
			tr:         lead.Transition{ToStage: lead.StageContacted},
			wantErr:    true,
			wantFields: []string{"actor_id"},
			history:    1,
		},
		{
			name:       "lost without reason",
			tr:         lead.Transition{ToStage: lost, ActorID: "staff-1", Reason: "   "},
			wantErr:    true,
			wantFields: []string{"reason"},
			history:    1,
		},
		{
			name:      "lost with reason and reassignment",
			tr:        lead.Transition{ToStage: lost, ActorID: "staff-1", Reason: "moved abroad", AssignTo: &staff2},
			wantStage: lead.StageLost,
			history:   2,
		},
		{
			name:       "unknown stage",
			tr:         lead.Transition{ToStage: "GRADUATED", ActorID: "staff-1"},
			wantErr:    true,
			wantFields: []string{"to_stage"},
			history:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := setup()
			ctx := context.Background()
			ld := testutil.CreateLead(t, svc, "Ada", "ada@example.com")

			got, err := svc.Transition(ctx, ld.ID, tt.tr)
			if tt.wantErr {
				require.Error(t, err)
				verr, ok := errors.Cause(err).(*core.ValidationError)
				require.True(t, ok, "want a *core.ValidationError, got %T", err)
				var fields []string
				for _, f := range verr.Fields {
					fields = append(fields, f.Field)
				}
				assert.Equal(t, tt.wantFields, fields)

				stored, err := svc.Get(ctx, ld.ID)
				require.NoError(t, err)
				assert.Equal(t, lead.StageNew, stored.Stage)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantStage, got.Stage)
				if tt.tr.AssignTo != nil {
					require.NotNil(t, got.AssignedStaffID)
					assert.Equal(t, *tt.tr.AssignTo, *got.AssignedStaffID)
				}
			}

			history, err := svc.History(ctx, ld.ID)
			require.NoError(t, err)
			assert.Len(t, history, tt.history)
		})
	}
}

func TestService_Transition_trimsReason(t *testing.T) {
	svc, _ := setup()
	ctx := context.Background()
	ld := testutil.CreateLead(t, svc, "Ada", "ada@example.com")

	_, err := svc.Transition(ctx, ld.ID, lead.Transition{ToStage: lead.StageContacted, ActorID: "staff-1", Reason: "  called back  "})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, ld.ID, lead.Transition{ToStage: lead.StageVisitBooked, ActorID: "staff-1", Reason: "   "})
	require.NoError(t, err)

	history, err := svc.History(ctx, ld.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.NotNil(t, history[1].Reason)
	assert.Equal(t, "called back", *history[1].Reason)
	assert.Nil(t, history[2].Reason)
	require.NotNil(t, history[2].FromStage)
	assert.Equal(t, lead.StageContacted, *history[2].FromStage)
}

func TestService_Transition_notFound(t *testing.T) {
	svc, _ := setup()

	_, err := svc.Transition(context.Background(), "nope", lead.Transition{ToStage: lead.StageContacted, ActorID: "staff-1"})
	assert.Equal(t, lead.ErrNotFound, errors.Cause(err))
}

func TestService_Transition_policy(t *testing.T) {
	svc, _ := setup(lead.WithPolicy(lead.GraphPolicy(map[lead.Stage][]lead.Stage{
		lead.StageNew:       {lead.StageContacted, lead.StageLost},
		lead.StageContacted: {lead.StageVisitBooked, lead.StageLost},
	})))
	ctx := context.Background()
	ld := testutil.CreateLead(t, svc, "Ada", "ada@example.com")

	_, err := svc.Transition(ctx, ld.ID, lead.Transition{ToStage: lead.StageEnrolled, ActorID: "staff-1"})
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))
	assert.Contains(t, err.Error(), ld.ID)

	got, err := svc.Transition(ctx, ld.ID, lead.Transition{ToStage: lead.StageContacted, ActorID: "staff-1"})
	require.NoError(t, err)
	assert.Equal(t, lead.StageContacted, got.Stage)
}

func TestService_BulkTransition(t *testing.T) {
	graph := lead.GraphPolicy(map[lead.Stage][]lead.Stage{
		lead.StageNew:       {lead.StageContacted},
		lead.StageContacted: {lead.StageVisitBooked},
	})

	t.Run("empty batch", func(t *testing.T) {
		svc, _ := setup()
		_, err := svc.BulkTransition(context.Background(), lead.BulkTransition{ToStage: lead.StageContacted, ActorID: "staff-1"})
		assert.True(t, core.IsValidationError(err))
	})

	t.Run("missing lead", func(t *testing.T) {
		svc, _ := setup()
		ctx := context.Background()
		ld := testutil.CreateLead(t, svc, "Ada", "ada@example.com")

		_, err := svc.BulkTransition(ctx, lead.BulkTransition{
			LeadIDs: []string{ld.ID, "ghost"},
			ToStage: lead.StageContacted,
			ActorID: "staff-1",
		})
		assert.Equal(t, lead.ErrNotFound, errors.Cause(err))
		var nfErr *core.NotFoundError
		require.True(t, errors.As(err, &nfErr))
		assert.Equal(t, []string{"ghost"}, nfErr.IDs)

		stored, err := svc.Get(ctx, ld.ID)
		require.NoError(t, err)
		assert.Equal(t, lead.StageNew, stored.Stage)
	})

	t.Run("invalid leads reject the whole batch", func(t *testing.T) {
		svc, _ := setup(lead.WithPolicy(graph))
		ctx := context.Background()
		a := testutil.CreateLead(t, svc, "A", "a@example.com")
		b := testutil.CreateLead(t, svc, "B", "b@example.com")
		c := testutil.CreateLead(t, svc, "C", "c@example.com")
		_, err := svc.Transition(ctx, b.ID, lead.Transition{ToStage: lead.StageContacted, ActorID: "staff-1"})
		require.NoError(t, err)
		_, err = svc.Transition(ctx, b.ID, lead.Transition{ToStage: lead.StageVisitBooked, ActorID: "staff-1"})
		require.NoError(t, err)

		// b is VISIT_BOOKED: the graph does not allow VISIT_BOOKED -> CONTACTED
		_, err = svc.BulkTransition(ctx, lead.BulkTransition{
			LeadIDs: []string{a.ID, b.ID, c.ID},
			ToStage: lead.StageContacted,
			ActorID: "staff-1",
		})
		require.Error(t, err)
		assert.True(t, core.IsValidationError(err))
		assert.Contains(t, err.Error(), b.ID)
		assert.NotContains(t, err.Error(), a.ID)

		for _, id := range []string{a.ID, c.ID} {
			stored, err := svc.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, lead.StageNew, stored.Stage, "no lead moves when the batch is rejected")
			history, err := svc.History(ctx, id)
			require.NoError(t, err)
			assert.Len(t, history, 1)
		}
	})

	t.Run("leads already at target are skipped", func(t *testing.T) {
		svc, _ := setup()
		ctx := context.Background()
		a := testutil.CreateLead(t, svc, "A", "a@example.com")
		b := testutil.CreateLead(t, svc, "B", "b@example.com")
		_, err := svc.Transition(ctx, b.ID, lead.Transition{ToStage: lead.StageContacted, ActorID: "staff-1"})
		require.NoError(t, err)

		updated, err := svc.BulkTransition(ctx, lead.BulkTransition{
			LeadIDs: []string{a.ID, b.ID, a.ID},
			ToStage: lead.StageContacted,
			ActorID: "staff-2",
			Reason:  "campaign",
		})
		require.NoError(t, err)
		require.Len(t, updated, 1)
		assert.Equal(t, a.ID, updated[0].ID)
		assert.Equal(t, lead.StageContacted, updated[0].Stage)

		history, err := svc.History(ctx, b.ID)
		require.NoError(t, err)
		assert.Len(t, history, 2)
		history, err = svc.History(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "staff-2", *history[1].ChangedBy)
		assert.Equal(t, "campaign", *history[1].Reason)
	})
}

func TestHistoryReplay(t *testing.T) {
	svc, clock := setup()
	ctx := context.Background()
	ld := testutil.CreateLead(t, svc, "Ada", "ada@example.com")

	path := []lead.Stage{
		lead.StageContacted,
		lead.StageVisitBooked,
		lead.StageVisited,
		lead.StageContacted,
		lead.StageApplied,
		lead.StageEnrolled,
	}
	for _, st := range path {
		clock.Advance(time.Hour)
		_, err := svc.Transition(ctx, ld.ID, lead.Transition{ToStage: st, ActorID: "staff-1"})
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, ld.ID)
	require.NoError(t, err)
	assert.Len(t, history, len(path)+1)

	replayed, err := lead.Replay(history)
	require.NoError(t, err)
	stored, err := svc.Get(ctx, ld.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.Stage, replayed)
	assert.Equal(t, lead.StageEnrolled, replayed)
}

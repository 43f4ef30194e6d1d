package planner_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/plannerd/internal/ident"
	"github.com/nhle/plannerd/internal/model"
	"github.com/nhle/plannerd/internal/planner"
	"github.com/nhle/plannerd/internal/runner"
	"github.com/nhle/plannerd/internal/scheduler"
	"github.com/nhle/plannerd/internal/store"
	"github.com/nhle/plannerd/internal/testutil"
)

type stubRunner struct {
	mu      sync.Mutex
	failAll bool

	triggered []runner.TriggerPayload
	canceled  []string
	nextRun   int
}

func (r *stubRunner) Trigger(ctx context.Context, task string, payload runner.TriggerPayload) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return "", errors.New("runner unavailable")
	}
	r.triggered = append(r.triggered, payload)
	r.nextRun++
	return "run-" + string(rune('a'-1+r.nextRun)), nil
}

func (r *stubRunner) Cancel(ctx context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.canceled = append(r.canceled, runID)
	return nil
}

type harness struct {
	svc      *planner.Service
	store    *store.SQLiteStore
	ids      *ident.Registry
	stub     *stubRunner
	userID   int64
	template string // encoded template id
}

// newHarness seeds one user and a template with a single task event carrying
// one email reminder and one desktop-only reminder. Trigger times land far
// in the future so the scheduler's filter keeps them.
func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	st := testutil.NewTestStore(t)
	ids := testutil.NewRegistry(t)
	stub := &stubRunner{}
	sched := scheduler.New(stub, ids, "send-reminder", nil)
	svc := planner.New(st, ids, sched, nil)

	user, err := st.CreateUser(ctx, "owner@example.com")
	require.NoError(t, err)

	template, err := st.CreateProjectTemplate(ctx, user.ID, "Launch", "")
	require.NoError(t, err)

	event, err := st.CreateEventTemplate(ctx, user.ID, model.EventTemplate{
		ProjectTemplateID: template.ID,
		Name:              "Kickoff",
		OffsetDays:        1,
		Duration:          1,
		EventType:         model.EventTypeTask,
	})
	require.NoError(t, err)

	_, err = st.CreateReminderTemplate(ctx, user.ID, model.ReminderTemplate{
		EventTemplateID:    event.ID,
		TimeOfDay:          "09:00",
		EmailNotifications: true,
	})
	require.NoError(t, err)

	_, err = st.CreateReminderTemplate(ctx, user.ID, model.ReminderTemplate{
		EventTemplateID:      event.ID,
		TimeOfDay:            "10:00",
		DesktopNotifications: true,
	})
	require.NoError(t, err)

	return &harness{
		svc:      svc,
		store:    st,
		ids:      ids,
		stub:     stub,
		userID:   user.ID,
		template: ids.MustEncode(ident.NSProjectTemplate, template.ID),
	}
}

func (h *harness) createProject(t *testing.T, name string) *model.ProjectGraph {
	t.Helper()
	graph, err := h.svc.CreateProject(context.Background(), h.userID, planner.CreateProjectInput{
		Name:       name,
		StartsAt:   time.Date(2125, 6, 1, 0, 0, 0, 0, time.UTC),
		TemplateID: &h.template,
	})
	require.NoError(t, err)
	return graph
}

func TestCreateProject_SchedulesAndPersistsRunHandles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	graph := h.createProject(t, "Q1 Launch")
	require.Len(t, graph.Events, 1)
	require.Len(t, graph.Events[0].Reminders, 2)

	// Only the email reminder goes to the runner.
	require.Len(t, h.stub.triggered, 1)
	email, desktop := graph.Events[0].Reminders[0], graph.Events[0].Reminders[1]
	assert.Equal(t, h.ids.MustEncode(ident.NSReminder, email.ID), h.stub.triggered[0].ReminderID)

	// The issued handle lands on the in-memory graph and the stored row.
	require.NotNil(t, email.RunID)
	assert.Equal(t, "run-a", *email.RunID)
	assert.Nil(t, desktop.RunID)

	stored, err := h.store.GetRemindersForEvent(ctx, graph.Events[0].ID)
	require.NoError(t, err)
	require.NotNil(t, stored[0].RunID)
	assert.Equal(t, "run-a", *stored[0].RunID)
	assert.Nil(t, stored[1].RunID)
}

func TestCreateProject_ScheduleFailureStillCommits(t *testing.T) {
	h := newHarness(t)
	h.stub.failAll = true

	graph, err := h.svc.CreateProject(context.Background(), h.userID, planner.CreateProjectInput{
		Name:       "Q1 Launch",
		StartsAt:   time.Date(2125, 6, 1, 0, 0, 0, 0, time.UTC),
		TemplateID: &h.template,
	})
	require.Error(t, err)
	assert.True(t, planner.IsScheduleFailure(err))
	require.NotNil(t, graph, "project committed despite the scheduling failure")

	// The name is taken: the rows are really there.
	_, err = h.svc.CreateProject(context.Background(), h.userID, planner.CreateProjectInput{
		Name:     "Q1 Launch",
		StartsAt: time.Date(2125, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.True(t, model.IsDuplicateName(err))
}

func TestReconcileEvent_ReschedulesChangedDelivery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	graph := h.createProject(t, "Q1 Launch")
	event := graph.Events[0]
	email := event.Reminders[0]
	require.NotNil(t, email.RunID)

	newTrigger := email.TriggerTime.Add(3 * time.Hour)
	updated, err := h.svc.ReconcileEvent(ctx, h.userID,
		h.ids.MustEncode(ident.NSEvent, event.ID),
		model.EventPatch{
			RemindersUpdate: []model.ReminderPatch{
				{ID: email.ID, TriggerTime: &newTrigger},
			},
		})
	require.NoError(t, err)

	// Old run canceled, new run issued and persisted.
	assert.Equal(t, []string{*email.RunID}, h.stub.canceled)
	require.Len(t, h.stub.triggered, 2)

	stored, err := h.store.GetRemindersForEvent(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, stored[0].RunID)
	assert.NotEqual(t, *email.RunID, *stored[0].RunID)

	require.Len(t, updated.Reminders, 1)
	require.NotNil(t, updated.Reminders[0].RunID)
	assert.Equal(t, *stored[0].RunID, *updated.Reminders[0].RunID)
}

func TestDeleteProject_CancelsScheduledRuns(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	graph := h.createProject(t, "Q1 Launch")
	email := graph.Events[0].Reminders[0]
	require.NotNil(t, email.RunID)

	err := h.svc.DeleteProject(ctx, h.userID,
		h.ids.MustEncode(ident.NSProject, graph.Project.ID))
	require.NoError(t, err)
	assert.Equal(t, []string{*email.RunID}, h.stub.canceled)
}

func TestService_MalformedIDs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var malformed *ident.MalformedIDError

	_, err := h.svc.ExpandTemplate(ctx, h.userID, "garbage")
	assert.ErrorAs(t, err, &malformed)

	_, err = h.svc.ReconcileEvent(ctx, h.userID, "garbage", model.EventPatch{})
	assert.ErrorAs(t, err, &malformed)

	err = h.svc.DeleteProject(ctx, h.userID, "garbage")
	assert.ErrorAs(t, err, &malformed)

	// Ids from the wrong namespace read as malformed too.
	wrongNS := h.ids.MustEncode(ident.NSProject, 1)
	_, err = h.svc.ExpandTemplate(ctx, h.userID, wrongNS)
	assert.ErrorAs(t, err, &malformed)
}

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/plannerd/internal/model"
)

func TestSetReminderRunID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := seedEvent(t, f)
	r := event.Reminders[0]

	require.NoError(t, f.store.SetReminderRunID(ctx, r.ID, "run-1"))

	stored, err := f.store.GetRemindersForEvent(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, stored[0].RunID)
	assert.Equal(t, "run-1", *stored[0].RunID)
}

func TestSetReminderRunID_Missing(t *testing.T) {
	f := newFixture(t)

	err := f.store.SetReminderRunID(context.Background(), 99999, "run-1")
	assert.True(t, model.IsDoesNotExist(err))
}

func TestDeleteEvent_ReturnsScheduledRunIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := seedEvent(t, f)
	require.Len(t, event.Reminders, 2)

	// Only one of the two reminders is scheduled externally.
	require.NoError(t, f.store.SetReminderRunID(ctx, event.Reminders[0].ID, "run-a"))

	runIDs, err := f.store.DeleteEvent(ctx, f.userID, event.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a"}, runIDs)

	stored, err := f.store.GetRemindersForEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Empty(t, stored, "cascade removed the reminders")
}

func TestDeleteEvent_NotOwned(t *testing.T) {
	f := newFixture(t)
	event := seedEvent(t, f)
	intruder := f.otherUser(t)

	_, err := f.store.DeleteEvent(context.Background(), intruder, event.ID)
	assert.True(t, model.IsDoesNotExist(err))
}

func TestDeleteProject_CollectsRunIDsAcrossEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	graph, err := f.store.InstantiateProject(ctx, f.userID,
		projectInput("Q1 Launch", "2025-01-01", &f.template.ID))
	require.NoError(t, err)
	kickoff := graph.Events[0]
	require.NoError(t, f.store.SetReminderRunID(ctx, kickoff.Reminders[0].ID, "run-a"))
	require.NoError(t, f.store.SetReminderRunID(ctx, kickoff.Reminders[1].ID, "run-b"))

	runIDs, err := f.store.DeleteProject(ctx, f.userID, graph.Project.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"run-a", "run-b"}, runIDs)

	// The name frees up once the project is gone.
	_, err = f.store.InstantiateProject(ctx, f.userID, projectInput("Q1 Launch", "2025-01-01", nil))
	assert.NoError(t, err)
}

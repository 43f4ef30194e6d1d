package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/plannerd/internal/model"
)

func TestExpandTemplate_GroupsChildrenByEvent(t *testing.T) {
	f := newFixture(t)

	graph, err := f.store.ExpandTemplate(context.Background(), f.userID, f.template.ID)
	require.NoError(t, err)

	assert.Equal(t, f.template.ID, graph.Template.ID)
	assert.Equal(t, "Launch", graph.Template.Name)
	require.Len(t, graph.Events, 2)

	// First-seen order follows insertion order of the event templates.
	kickoff := graph.Events[0]
	assert.Equal(t, "Kickoff", kickoff.Name)
	require.Len(t, kickoff.Reminders, 2, "cross product rows must dedupe back to 2 reminders")
	assert.Equal(t, "09:00", kickoff.Reminders[0].TimeOfDay)
	assert.Equal(t, 0, kickoff.Reminders[0].DaysBefore)
	assert.True(t, kickoff.Reminders[0].EmailNotifications)
	assert.Equal(t, "18:30", kickoff.Reminders[1].TimeOfDay)
	assert.Equal(t, 1, kickoff.Reminders[1].DaysBefore)

	require.Len(t, kickoff.Tags, 2, "cross product rows must dedupe back to 2 tags")
	assert.Equal(t, "planning", kickoff.Tags[0].Name)
	assert.Equal(t, "urgent", kickoff.Tags[1].Name)

	retro := graph.Events[1]
	assert.Equal(t, "Retro", retro.Name)
	assert.Empty(t, retro.Reminders)
	assert.Empty(t, retro.Tags)
	assert.NotNil(t, retro.Reminders, "childless events carry empty slices, not nil")
	assert.NotNil(t, retro.Tags)
}

func TestExpandTemplate_EmptyTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.store.CreateProjectTemplate(ctx, f.userID, "Empty", "")
	require.NoError(t, err)

	graph, err := f.store.ExpandTemplate(ctx, f.userID, empty.ID)
	require.NoError(t, err)
	assert.NotNil(t, graph.Events)
	assert.Empty(t, graph.Events)
}

func TestExpandTemplate_NotOwned(t *testing.T) {
	f := newFixture(t)
	intruder := f.otherUser(t)

	_, err := f.store.ExpandTemplate(context.Background(), intruder, f.template.ID)
	assert.True(t, model.IsDoesNotExist(err))
}

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/plannerd/internal/model"
)

func TestReconcileEventTemplate_ScalarsAndTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tags := []string{"prep"}
	result, err := f.store.ReconcileEventTemplate(ctx, f.userID, f.kickoff.ID, model.EventTemplatePatch{
		Name:       strPtr("Kickoff v2"),
		OffsetDays: intPtr(3),
		Tags:       &tags,
	})
	require.NoError(t, err)

	assert.Equal(t, "Kickoff v2", result.Name)
	assert.Equal(t, 3, result.OffsetDays)
	require.Len(t, result.Tags, 1)
	assert.Equal(t, "prep", result.Tags[0].Name)

	// Later instantiations pick up the edit.
	graph, err := f.store.InstantiateProject(ctx, f.userID,
		projectInput("After Edit", "2025-01-01", &f.template.ID))
	require.NoError(t, err)
	assert.Equal(t, "Kickoff v2", graph.Events[0].Name)
	assert.Equal(t, date(2025, 1, 4), graph.Events[0].StartDate)
}

func TestReconcileEventTemplate_ReminderDeltas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	keep, drop := f.kickoffReminders[0], f.kickoffReminders[1]

	result, err := f.store.ReconcileEventTemplate(ctx, f.userID, f.kickoff.ID, model.EventTemplatePatch{
		RemindersUpdate: []model.ReminderTemplatePatch{
			{ID: keep.ID, TimeOfDay: strPtr("07:45"), DaysBefore: intPtr(2)},
		},
		RemindersDelete: []int64{drop.ID},
		RemindersInsert: []model.ReminderTemplateInput{
			{DaysBefore: 1, TimeOfDay: "12:00", EmailNotifications: true},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Reminders, 2)
	assert.Equal(t, keep.ID, result.Reminders[0].ID)
	assert.Equal(t, "07:45", result.Reminders[0].TimeOfDay)
	assert.Equal(t, 2, result.Reminders[0].DaysBefore)
	assert.Equal(t, "12:00", result.Reminders[1].TimeOfDay)
	assert.NotZero(t, result.Reminders[1].ID)
}

func TestReconcileEventTemplate_InvalidTimeOfDay(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.ReconcileEventTemplate(context.Background(), f.userID, f.kickoff.ID,
		model.EventTemplatePatch{
			RemindersInsert: []model.ReminderTemplateInput{
				{TimeOfDay: "25:99"},
			},
		})
	var validation *model.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestReconcileEventTemplate_ForeignReminderTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Reminders under a different event template cannot be named in the
	// deltas.
	_, err := f.store.ReconcileEventTemplate(ctx, f.userID, f.retro.ID, model.EventTemplatePatch{
		RemindersDelete: []int64{f.kickoffReminders[0].ID},
	})
	assert.True(t, model.IsDoesNotExist(err))
}

func TestReconcileEventTemplate_NotOwned(t *testing.T) {
	f := newFixture(t)
	intruder := f.otherUser(t)

	_, err := f.store.ReconcileEventTemplate(context.Background(), intruder, f.kickoff.ID,
		model.EventTemplatePatch{Name: strPtr("mine now")})
	assert.True(t, model.IsDoesNotExist(err))
}

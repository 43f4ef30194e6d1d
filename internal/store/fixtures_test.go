package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhle/plannerd/internal/model"
	"github.com/nhle/plannerd/internal/store"
	"github.com/nhle/plannerd/internal/testutil"
)

// fixture is one user plus a fully populated project template:
//
//	"Launch" template
//	├── "Kickoff" (task, offset 1): reminders at 09:00 day-of and 18:30
//	│   the day before, tags [planning, urgent]
//	└── "Retro" (activity, offset 7): no reminders, no tags
type fixture struct {
	store            *store.SQLiteStore
	userID           int64
	template         *model.ProjectTemplate
	kickoff          *model.EventTemplate
	retro            *model.EventTemplate
	kickoffReminders []*model.ReminderTemplate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	user, err := s.CreateUser(ctx, "owner@example.com")
	require.NoError(t, err)

	template, err := s.CreateProjectTemplate(ctx, user.ID, "Launch", "product launch playbook")
	require.NoError(t, err)

	kickoff, err := s.CreateEventTemplate(ctx, user.ID, model.EventTemplate{
		ProjectTemplateID: template.ID,
		Name:              "Kickoff",
		OffsetDays:        1,
		Duration:          1,
		EventType:         model.EventTypeTask,
	})
	require.NoError(t, err)

	r1, err := s.CreateReminderTemplate(ctx, user.ID, model.ReminderTemplate{
		EventTemplateID:    kickoff.ID,
		DaysBefore:         0,
		TimeOfDay:          "09:00",
		EmailNotifications: true,
	})
	require.NoError(t, err)

	r2, err := s.CreateReminderTemplate(ctx, user.ID, model.ReminderTemplate{
		EventTemplateID:      kickoff.ID,
		DaysBefore:           1,
		TimeOfDay:            "18:30",
		DesktopNotifications: true,
	})
	require.NoError(t, err)

	_, err = s.SetEventTemplateTags(ctx, user.ID, kickoff.ID, []string{"planning", "urgent"})
	require.NoError(t, err)

	retro, err := s.CreateEventTemplate(ctx, user.ID, model.EventTemplate{
		ProjectTemplateID: template.ID,
		Name:              "Retro",
		OffsetDays:        7,
		Duration:          3,
		EventType:         model.EventTypeActivity,
	})
	require.NoError(t, err)

	return &fixture{
		store:            s,
		userID:           user.ID,
		template:         template,
		kickoff:          kickoff,
		retro:            retro,
		kickoffReminders: []*model.ReminderTemplate{r1, r2},
	}
}

// otherUser seeds a second account in the same store.
func (f *fixture) otherUser(t *testing.T) int64 {
	t.Helper()
	user, err := f.store.CreateUser(context.Background(), "intruder@example.com")
	require.NoError(t, err)
	return user.ID
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/plannerd/internal/ident"
	"github.com/nhle/plannerd/internal/model"
	"github.com/nhle/plannerd/internal/runner"
	"github.com/nhle/plannerd/internal/testutil"
)

// stubRunner records calls and fails the reminders whose encoded id is in
// failFor. Safe for concurrent use; the scheduler fans out.
type stubRunner struct {
	mu        sync.Mutex
	failFor   map[string]bool
	cancelErr error

	triggered []runner.TriggerPayload
	canceled  []string
}

func (r *stubRunner) Trigger(ctx context.Context, task string, payload runner.TriggerPayload) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[payload.ReminderID] {
		return "", errors.New("runner rejected the task")
	}
	r.triggered = append(r.triggered, payload)
	return "run-" + payload.ReminderID, nil
}

func (r *stubRunner) Cancel(ctx context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelErr != nil {
		return r.cancelErr
	}
	r.canceled = append(r.canceled, runID)
	return nil
}

func newTestScheduler(t *testing.T, stub *stubRunner) (*Scheduler, *ident.Registry) {
	t.Helper()
	ids := testutil.NewRegistry(t)
	s := New(stub, ids, "send-reminder", nil)
	s.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	return s, ids
}

func reminderAt(id int64, trigger time.Time, email bool) model.Reminder {
	return model.Reminder{
		ID:                 id,
		EventID:            100,
		TriggerTime:        trigger,
		EmailNotifications: email,
	}
}

func TestSchedule_SubmitsEligibleReminders(t *testing.T) {
	stub := &stubRunner{}
	s, ids := newTestScheduler(t, stub)
	future := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)

	scheduled, err := s.Schedule(context.Background(), []model.Reminder{
		reminderAt(1, future, true),
		reminderAt(2, future.Add(time.Hour), true),
	})
	require.NoError(t, err)
	require.Len(t, scheduled, 2)

	for _, sc := range scheduled {
		assert.Equal(t, "run-"+ids.MustEncode(ident.NSReminder, sc.Reminder.ID), sc.RunID)
	}
	assert.Len(t, stub.triggered, 2)
}

func TestSchedule_FiltersDesktopOnlyAndPast(t *testing.T) {
	stub := &stubRunner{}
	s, ids := newTestScheduler(t, stub)
	future := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	past := time.Date(2024, 12, 31, 9, 0, 0, 0, time.UTC)

	scheduled, err := s.Schedule(context.Background(), []model.Reminder{
		reminderAt(1, future, false), // desktop only
		reminderAt(2, past, true),    // already in the past
		reminderAt(3, future, true),
	})
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, int64(3), scheduled[0].Reminder.ID)

	require.Len(t, stub.triggered, 1)
	assert.Equal(t, ids.MustEncode(ident.NSReminder, 3), stub.triggered[0].ReminderID)
}

func TestSchedule_EmptyBatch(t *testing.T) {
	stub := &stubRunner{}
	s, _ := newTestScheduler(t, stub)

	scheduled, err := s.Schedule(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, scheduled)
	assert.Empty(t, stub.triggered)
}

func TestSchedule_PartialFailureCompensates(t *testing.T) {
	ids := testutil.NewRegistry(t)
	stub := &stubRunner{failFor: map[string]bool{
		ids.MustEncode(ident.NSReminder, 2): true,
	}}
	s := New(stub, ids, "send-reminder", nil)
	s.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	future := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	scheduled, err := s.Schedule(context.Background(), []model.Reminder{
		reminderAt(1, future, true),
		reminderAt(2, future, true),
		reminderAt(3, future, true),
	})
	assert.Nil(t, scheduled)

	var schedErr *ScheduleReminderError
	require.ErrorAs(t, err, &schedErr)
	require.Len(t, schedErr.Issues, 1, "only the failed reminder is reported")
	assert.Equal(t, int64(2), schedErr.Issues[0].ReminderID)
	assert.Contains(t, schedErr.Issues[0].Reason, "rejected")

	// The two successful runs must have been canceled.
	assert.ElementsMatch(t, []string{
		"run-" + ids.MustEncode(ident.NSReminder, 1),
		"run-" + ids.MustEncode(ident.NSReminder, 3),
	}, stub.canceled)
}

func TestSchedule_CompensationFailureIsSwallowed(t *testing.T) {
	ids := testutil.NewRegistry(t)
	stub := &stubRunner{
		failFor:   map[string]bool{ids.MustEncode(ident.NSReminder, 2): true},
		cancelErr: fmt.Errorf("runner unreachable"),
	}
	s := New(stub, ids, "send-reminder", nil)
	s.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	future := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	_, err := s.Schedule(context.Background(), []model.Reminder{
		reminderAt(1, future, true),
		reminderAt(2, future, true),
	})

	// The schedule error reports the submission failure only; the failed
	// compensating cancel is logged, not surfaced.
	var schedErr *ScheduleReminderError
	require.ErrorAs(t, err, &schedErr)
	require.Len(t, schedErr.Issues, 1)
	assert.Equal(t, int64(2), schedErr.Issues[0].ReminderID)
}

func TestCancel(t *testing.T) {
	stub := &stubRunner{}
	s, _ := newTestScheduler(t, stub)

	require.NoError(t, s.Cancel(context.Background(), "run-7"))
	assert.Equal(t, []string{"run-7"}, stub.canceled)
}

func TestCancel_Failure(t *testing.T) {
	stub := &stubRunner{cancelErr: fmt.Errorf("gone")}
	s, _ := newTestScheduler(t, stub)

	err := s.Cancel(context.Background(), "run-7")
	var cancelErr *CancelReminderError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "run-7", cancelErr.RunID)
	assert.Equal(t, "gone", cancelErr.Reason)
}

func TestCancelAll_BestEffort(t *testing.T) {
	stub := &stubRunner{cancelErr: fmt.Errorf("gone")}
	s, _ := newTestScheduler(t, stub)

	// Must not panic or return; failures are logged per run.
	s.CancelAll(context.Background(), []string{"run-1", "run-2"})
	assert.Empty(t, stub.canceled)
}

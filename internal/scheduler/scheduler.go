// Package scheduler submits reminders to the external task runner and
// cancels them again as the user edits. Submissions for one batch are issued
// concurrently and joined before any decision is made, so a partial failure
// can compensate every sibling that did succeed.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"

	"github.com/nhle/plannerd/internal/ident"
	"github.com/nhle/plannerd/internal/model"
	"github.com/nhle/plannerd/internal/runner"
)

// ReminderIssue is one per-reminder submission failure.
type ReminderIssue struct {
	ReminderID int64  `json:"reminder_id"`
	Reason     string `json:"reason"`
}

// ScheduleReminderError reports a batch in which at least one submission
// failed. Every sibling submission that succeeded has already been canceled
// (best effort) by the time this error is returned. Database rows are NOT
// rolled back by the scheduler; the enclosing mutation has already
// committed, so callers must surface both "the edit saved" and "reminders
// may be inconsistent".
type ScheduleReminderError struct {
	Issues []ReminderIssue
}

func (e *ScheduleReminderError) Error() string {
	reasons := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		reasons = append(reasons, fmt.Sprintf("reminder %d: %s", issue.ReminderID, issue.Reason))
	}
	return fmt.Sprintf("scheduling %d reminder(s) failed: %s",
		len(e.Issues), strings.Join(reasons, "; "))
}

// CancelReminderError reports a failed cancellation of one external run.
type CancelReminderError struct {
	RunID  string
	Reason string
}

func (e *CancelReminderError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("canceling run %s failed", e.RunID)
	}
	return fmt.Sprintf("canceling run %s failed: %s", e.RunID, e.Reason)
}

// Scheduled pairs a reminder with the run handle the runner issued for it.
type Scheduled struct {
	Reminder model.Reminder
	RunID    string
}

// Scheduler drives the per-reminder state machine against the runner:
// unscheduled → scheduled → canceled → rescheduled. No terminal "fired"
// state is tracked locally.
type Scheduler struct {
	runner runner.Runner
	ids    *ident.Registry
	task   string
	log    *slog.Logger

	// now is swapped in tests to pin the future-trigger filter.
	now func() time.Time
}

// New creates a Scheduler submitting to the named runner task.
func New(r runner.Runner, ids *ident.Registry, task string, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		runner: r,
		ids:    ids,
		task:   task,
		log:    log,
		now:    time.Now,
	}
}

// submitOutcome is the settled result of one concurrent submission.
type submitOutcome struct {
	reminder model.Reminder
	runID    string
	err      error
}

// Schedule submits every eligible reminder (email delivery on, trigger time
// still in the future) concurrently, joins all submissions, and partitions
// the outcomes. On any failure it cancels this batch's successful runs and
// returns a ScheduleReminderError listing every per-reminder failure.
func (s *Scheduler) Schedule(ctx context.Context, reminders []model.Reminder) ([]Scheduled, error) {
	now := s.now()
	eligible := make([]model.Reminder, 0, len(reminders))
	for _, r := range reminders {
		if r.EmailNotifications && r.TriggerTime.After(now) {
			eligible = append(eligible, r)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	// Unbounded fan-out: latency is bounded by the slowest single call
	// rather than the sum.
	p := pool.NewWithResults[submitOutcome]()
	for _, r := range eligible {
		r := r
		p.Go(func() submitOutcome {
			payload := runner.TriggerPayload{
				ReminderID:  s.ids.MustEncode(ident.NSReminder, r.ID),
				EventID:     s.ids.MustEncode(ident.NSEvent, r.EventID),
				TriggerTime: r.TriggerTime,
			}
			runID, err := s.runner.Trigger(ctx, s.task, payload)
			return submitOutcome{reminder: r, runID: runID, err: err}
		})
	}
	outcomes := p.Wait()

	var scheduled []Scheduled
	var issues []ReminderIssue
	for _, out := range outcomes {
		if out.err != nil {
			issues = append(issues, ReminderIssue{
				ReminderID: out.reminder.ID,
				Reason:     out.err.Error(),
			})
			continue
		}
		scheduled = append(scheduled, Scheduled{Reminder: out.reminder, RunID: out.runID})
	}

	if len(issues) > 0 {
		s.compensate(ctx, scheduled)
		return nil, &ScheduleReminderError{Issues: issues}
	}

	return scheduled, nil
}

// compensate cancels every run that succeeded in a failed batch,
// concurrently and best-effort: a failed compensating cancel is logged with
// its run id but neither retried nor surfaced.
func (s *Scheduler) compensate(ctx context.Context, scheduled []Scheduled) {
	var wg conc.WaitGroup
	for _, sc := range scheduled {
		sc := sc
		wg.Go(func() {
			if err := s.runner.Cancel(ctx, sc.RunID); err != nil {
				s.log.Warn("compensating cancel failed; external run may be orphaned",
					slog.String("run_id", sc.RunID),
					slog.Int64("reminder_id", sc.Reminder.ID),
					slog.String("error", err.Error()))
			}
		})
	}
	wg.Wait()
}

// Cancel revokes one externally scheduled run.
func (s *Scheduler) Cancel(ctx context.Context, runID string) error {
	if err := s.runner.Cancel(ctx, runID); err != nil {
		return &CancelReminderError{RunID: runID, Reason: err.Error()}
	}
	return nil
}

// CancelAll revokes a set of runs concurrently, best-effort, logging each
// failure. Used when edits or deletes invalidate already-scheduled runs.
func (s *Scheduler) CancelAll(ctx context.Context, runIDs []string) {
	var wg conc.WaitGroup
	for _, id := range runIDs {
		id := id
		wg.Go(func() {
			if err := s.Cancel(ctx, id); err != nil {
				s.log.Warn("cancel failed; external run may be orphaned",
					slog.String("run_id", id),
					slog.String("error", err.Error()))
			}
		})
	}
	wg.Wait()
}

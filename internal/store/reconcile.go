package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/plannerd/internal/ident"
	"github.com/nhle/plannerd/internal/model"
)

// ReconcileEventResult is an updated event graph plus the bookkeeping the
// scheduling layer needs: run handles whose external task is now stale, and
// reminders whose delivery must be (re)submitted.
type ReconcileEventResult struct {
	Event model.ExpandedEvent

	// StaleRunIDs are run handles of deleted reminders and of updated
	// reminders whose trigger time or email flag changed.
	StaleRunIDs []string

	// NeedsScheduling holds inserted reminders and updated reminders whose
	// trigger time or email flag changed. The scheduler applies its own
	// email/future filter on top.
	NeedsScheduling []model.Reminder
}

// ReconcileEvent applies an EventPatch inside one transaction: scalar field
// changes first, then the full-replacement tag set, then the caller-supplied
// reminder deltas (updates individually, deletes as one statement, inserts
// as one statement). The returned reminder list is exactly updated rows
// followed by inserted rows.
func (s *SQLiteStore) ReconcileEvent(
	ctx context.Context,
	userID int64,
	eventID int64,
	patch model.EventPatch,
) (*ReconcileEventResult, error) {
	if err := s.VerifyOwnership(ctx, userID, ident.NSEvent, []int64{eventID}); err != nil {
		return nil, err
	}

	result := &ReconcileEventResult{}
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var event model.Event
		var autoInt, notifInt int
		err := tx.QueryRowxContext(ctx, "SELECT * FROM events WHERE id = ?", eventID).Scan(
			&event.ID, &event.ProjectID, &event.Name, &event.StartDate,
			&event.Duration, &event.Note, &event.EventType, &autoInt,
			&event.Status, &notifInt, &event.EventTemplateID,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return &model.DoesNotExistError{Entity: "event"}
		}
		if err != nil {
			return fmt.Errorf("loading event %d: %w", eventID, err)
		}
		event.AutoReschedule = autoInt != 0
		event.NotificationsEnabled = notifInt != 0

		// Reminder ids named in the deltas must belong to this very event;
		// the event-level ownership check above does not cover them.
		deltaIDs := append(reminderPatchIDs(patch.RemindersUpdate), patch.RemindersDelete...)
		if len(deltaIDs) > 0 {
			if err := verifyRemindersBelongTo(ctx, tx, eventID, deltaIDs); err != nil {
				return err
			}
		}

		if err := applyEventScalars(ctx, tx, &event, patch); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE projects SET updated_at = ? WHERE id = ?",
			time.Now().UTC(), event.ProjectID); err != nil {
			return fmt.Errorf("touching project %d: %w", event.ProjectID, err)
		}

		tags, err := reconcileTags(ctx, tx, userID, eventTagTable, eventTagParent, eventID, patch.Tags)
		if err != nil {
			return err
		}

		updated, stale, reschedule, err := applyReminderUpdates(ctx, tx, eventID, patch.RemindersUpdate)
		if err != nil {
			return err
		}

		deletedRunIDs, err := deleteReminders(ctx, tx, eventID, patch.RemindersDelete)
		if err != nil {
			return err
		}

		inserted, err := insertReminders(ctx, tx, eventID, patch.RemindersInsert)
		if err != nil {
			return err
		}

		result.Event = model.ExpandedEvent{
			Event:     event,
			Reminders: append(updated, inserted...),
			Tags:      tags,
		}
		result.StaleRunIDs = append(stale, deletedRunIDs...)
		result.NeedsScheduling = append(reschedule, inserted...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyEventScalars builds and runs the dynamic UPDATE for an event's scalar
// fields, mutating event to the post-update values.
func applyEventScalars(ctx context.Context, tx *sqlx.Tx, event *model.Event, patch model.EventPatch) error {
	var sets []string
	var args []interface{}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return &model.ValidationError{Issues: []model.FieldIssue{
				{Field: "name", Message: "must not be empty"},
			}}
		}
		event.Name = name
		sets = append(sets, "name = ?")
		args = append(args, name)
	}
	if patch.StartDate != nil {
		event.StartDate = dateOnly(*patch.StartDate)
		sets = append(sets, "start_date = ?")
		args = append(args, event.StartDate)
	}
	if patch.Duration != nil {
		if err := validateDuration(event.EventType, *patch.Duration); err != nil {
			return err
		}
		event.Duration = *patch.Duration
		sets = append(sets, "duration = ?")
		args = append(args, event.Duration)
	}
	if patch.Note != nil {
		event.Note = *patch.Note
		sets = append(sets, "note = ?")
		args = append(args, event.Note)
	}
	if patch.Status != nil {
		// The event type is fixed; the status must fit it.
		if !model.ValidStatusFor(event.EventType, *patch.Status) {
			return &model.InvalidEventStatusError{EventType: event.EventType, Status: *patch.Status}
		}
		event.Status = *patch.Status
		sets = append(sets, "status = ?")
		args = append(args, event.Status)
	}
	if patch.AutoReschedule != nil {
		event.AutoReschedule = *patch.AutoReschedule
		sets = append(sets, "auto_reschedule = ?")
		args = append(args, boolToInt(event.AutoReschedule))
	}
	if patch.NotificationsEnabled != nil {
		event.NotificationsEnabled = *patch.NotificationsEnabled
		sets = append(sets, "notifications_enabled = ?")
		args = append(args, boolToInt(event.NotificationsEnabled))
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, event.ID)
	query := "UPDATE events SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating event %d: %w", event.ID, err)
	}
	return nil
}

// reconcileTags replaces the tag set when names is non-nil (clear and
// rebuild) or returns the stored set untouched when it is nil.
func reconcileTags(
	ctx context.Context,
	tx *sqlx.Tx,
	userID int64,
	table, parentCol string,
	parentID int64,
	names *[]string,
) ([]model.Tag, error) {
	if names == nil {
		return tagsForParent(ctx, tx, table, parentCol, parentID)
	}
	tags, err := ensureTags(ctx, tx, userID, *names)
	if err != nil {
		return nil, err
	}
	if err := relinkTags(ctx, tx, table, parentCol, parentID, tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// applyReminderUpdates applies each ReminderPatch as its own UPDATE. When a
// patch changes the trigger time or email flag of a reminder holding a run
// handle, the handle is cleared on the row and reported as stale so the
// caller can cancel and resubmit.
func applyReminderUpdates(
	ctx context.Context,
	tx *sqlx.Tx,
	eventID int64,
	patches []model.ReminderPatch,
) (updated []model.Reminder, staleRunIDs []string, reschedule []model.Reminder, err error) {
	for _, p := range patches {
		var r model.Reminder
		var emailInt, desktopInt int
		err := tx.QueryRowxContext(ctx,
			"SELECT * FROM reminders WHERE id = ? AND event_id = ?", p.ID, eventID).Scan(
			&r.ID, &r.EventID, &r.TriggerTime, &emailInt, &desktopInt,
			&r.ReminderTemplateID, &r.RunID,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, &model.DoesNotExistError{Entity: "reminder"}
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading reminder %d: %w", p.ID, err)
		}
		r.EmailNotifications = emailInt != 0
		r.DesktopNotifications = desktopInt != 0

		deliveryChanged := false
		if p.TriggerTime != nil && !p.TriggerTime.Equal(r.TriggerTime) {
			r.TriggerTime = p.TriggerTime.UTC()
			deliveryChanged = true
		}
		if p.EmailNotifications != nil && *p.EmailNotifications != r.EmailNotifications {
			r.EmailNotifications = *p.EmailNotifications
			deliveryChanged = true
		}
		if p.DesktopNotifications != nil {
			r.DesktopNotifications = *p.DesktopNotifications
		}

		if deliveryChanged && r.RunID != nil {
			staleRunIDs = append(staleRunIDs, *r.RunID)
			r.RunID = nil
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE reminders SET trigger_time = ?, email_notifications = ?, desktop_notifications = ?, run_id = ?
			WHERE id = ?`,
			r.TriggerTime, boolToInt(r.EmailNotifications),
			boolToInt(r.DesktopNotifications), r.RunID, r.ID); err != nil {
			return nil, nil, nil, fmt.Errorf("updating reminder %d: %w", r.ID, err)
		}

		updated = append(updated, r)
		if deliveryChanged {
			reschedule = append(reschedule, r)
		}
	}
	return updated, staleRunIDs, reschedule, nil
}

// deleteReminders removes the given reminders in one statement, returning
// the run handles of any that were scheduled externally.
func deleteReminders(ctx context.Context, tx *sqlx.Tx, eventID int64, ids []int64) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		"SELECT run_id FROM reminders WHERE event_id = ? AND id IN (?) AND run_id IS NOT NULL",
		eventID, ids)
	if err != nil {
		return nil, fmt.Errorf("expanding reminder run-id query: %w", err)
	}
	var runIDs []string
	if err := tx.SelectContext(ctx, &runIDs, query, args...); err != nil {
		return nil, fmt.Errorf("collecting reminder run ids: %w", err)
	}

	query, args, err = sqlx.In("DELETE FROM reminders WHERE event_id = ? AND id IN (?)", eventID, ids)
	if err != nil {
		return nil, fmt.Errorf("expanding reminder delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("deleting reminders: %w", err)
	}
	return runIDs, nil
}

// insertReminders bulk inserts new reminders for the event and returns them
// with their fresh row ids (via RETURNING), insertion order preserved.
func insertReminders(ctx context.Context, tx *sqlx.Tx, eventID int64, inputs []model.ReminderInput) ([]model.Reminder, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	reminders := make([]model.Reminder, 0, len(inputs))
	placeholders := make([]string, 0, len(inputs))
	args := make([]interface{}, 0, 4*len(inputs))
	for _, in := range inputs {
		r := model.Reminder{
			EventID:              eventID,
			TriggerTime:          in.TriggerTime.UTC(),
			EmailNotifications:   in.EmailNotifications,
			DesktopNotifications: in.DesktopNotifications,
		}
		reminders = append(reminders, r)
		placeholders = append(placeholders, "(?, ?, ?, ?)")
		args = append(args, r.EventID, r.TriggerTime,
			boolToInt(r.EmailNotifications), boolToInt(r.DesktopNotifications))
	}

	query := "INSERT INTO reminders (event_id, trigger_time, email_notifications, desktop_notifications) VALUES " +
		strings.Join(placeholders, ", ") + " RETURNING id"
	rows, err := tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("inserting reminders: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		if i >= len(reminders) {
			return nil, &model.AssertionError{Message: "reminder insert returned more ids than rows"}
		}
		if err := rows.Scan(&reminders[i].ID); err != nil {
			return nil, fmt.Errorf("scanning reminder id: %w", err)
		}
		i++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading reminder ids: %w", err)
	}
	if i != len(reminders) {
		return nil, &model.AssertionError{Message: "reminder insert returned fewer ids than rows"}
	}

	return reminders, nil
}

// verifyRemindersBelongTo checks that every reminder id is a child of the
// event being reconciled, with the same count semantics as ownership
// verification.
func verifyRemindersBelongTo(ctx context.Context, tx *sqlx.Tx, eventID int64, ids []int64) error {
	distinct := dedupeIDs(ids)
	query, args, err := sqlx.In(
		"SELECT COUNT(DISTINCT id) FROM reminders WHERE event_id = ? AND id IN (?)",
		eventID, distinct)
	if err != nil {
		return fmt.Errorf("expanding reminder membership query: %w", err)
	}
	var count int
	if err := tx.GetContext(ctx, &count, query, args...); err != nil {
		return fmt.Errorf("checking reminder membership: %w", err)
	}
	switch {
	case count < len(distinct):
		return &model.DoesNotExistError{Entity: "reminder"}
	case count > len(distinct):
		return &model.AssertionError{Message: fmt.Sprintf(
			"reminder membership returned %d rows for %d ids", count, len(distinct))}
	}
	return nil
}

// reminderPatchIDs extracts the target ids of a ReminderPatch slice.
func reminderPatchIDs(patches []model.ReminderPatch) []int64 {
	ids := make([]int64, 0, len(patches))
	for _, p := range patches {
		ids = append(ids, p.ID)
	}
	return ids
}

// validateDuration enforces the task/activity duration rule.
func validateDuration(eventType string, duration int) error {
	switch eventType {
	case model.EventTypeTask:
		if duration != 1 {
			return &model.ValidationError{Issues: []model.FieldIssue{
				{Field: "duration", Message: "tasks last exactly one day"},
			}}
		}
	case model.EventTypeActivity:
		if duration < 1 {
			return &model.ValidationError{Issues: []model.FieldIssue{
				{Field: "duration", Message: "must be at least one day"},
			}}
		}
	}
	return nil
}

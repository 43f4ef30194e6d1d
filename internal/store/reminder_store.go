package store

import (
	"context"
	"fmt"

	"github.com/nhle/plannerd/internal/ident"
	"github.com/nhle/plannerd/internal/model"
)

// SetReminderRunID persists the external run handle onto a reminder row
// after a successful submission.
func (s *SQLiteStore) SetReminderRunID(ctx context.Context, reminderID int64, runID string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE reminders SET run_id = ? WHERE id = ?", runID, reminderID)
	if err != nil {
		return fmt.Errorf("setting run id on reminder %d: %w", reminderID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &model.DoesNotExistError{Entity: "reminder"}
	}
	return nil
}

// GetRemindersForEvent retrieves an event's reminders in insertion order.
func (s *SQLiteStore) GetRemindersForEvent(ctx context.Context, eventID int64) ([]model.Reminder, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM reminders WHERE event_id = ? ORDER BY id", eventID)
	if err != nil {
		return nil, fmt.Errorf("querying reminders for event %d: %w", eventID, err)
	}
	defer rows.Close()

	var reminders []model.Reminder
	for rows.Next() {
		var r model.Reminder
		var emailInt, desktopInt int
		if err := rows.Scan(&r.ID, &r.EventID, &r.TriggerTime, &emailInt, &desktopInt,
			&r.ReminderTemplateID, &r.RunID); err != nil {
			return nil, fmt.Errorf("scanning reminder row: %w", err)
		}
		r.EmailNotifications = emailInt != 0
		r.DesktopNotifications = desktopInt != 0
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// DeleteEvent removes an event; FK cascade takes its tag links and
// reminders. Returns the run handles of externally scheduled reminders so
// the caller can cancel them.
func (s *SQLiteStore) DeleteEvent(ctx context.Context, userID, eventID int64) ([]string, error) {
	if err := s.VerifyOwnership(ctx, userID, ident.NSEvent, []int64{eventID}); err != nil {
		return nil, err
	}

	var runIDs []string
	err := s.db.SelectContext(ctx, &runIDs,
		"SELECT run_id FROM reminders WHERE event_id = ? AND run_id IS NOT NULL", eventID)
	if err != nil {
		return nil, fmt.Errorf("collecting run ids for event %d: %w", eventID, err)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", eventID); err != nil {
		return nil, fmt.Errorf("deleting event %d: %w", eventID, err)
	}
	return runIDs, nil
}

// DeleteProject removes a project and, via cascade, its whole event graph.
// Returns the run handles of externally scheduled reminders.
func (s *SQLiteStore) DeleteProject(ctx context.Context, userID, projectID int64) ([]string, error) {
	if err := s.VerifyOwnership(ctx, userID, ident.NSProject, []int64{projectID}); err != nil {
		return nil, err
	}

	var runIDs []string
	err := s.db.SelectContext(ctx, &runIDs, `
		SELECT r.run_id FROM reminders r
		INNER JOIN events e ON r.event_id = e.id
		WHERE e.project_id = ? AND r.run_id IS NOT NULL`, projectID)
	if err != nil {
		return nil, fmt.Errorf("collecting run ids for project %d: %w", projectID, err)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", projectID); err != nil {
		return nil, fmt.Errorf("deleting project %d: %w", projectID, err)
	}
	return runIDs, nil
}

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

// ReconcileEventTemplate applies an EventTemplatePatch inside one
// transaction, mirroring ReconcileEvent. Templates have no external-system
// counterpart, so there is no run-handle bookkeeping: edits affect only
// projects instantiated later.
func (s *SQLiteStore) ReconcileEventTemplate(
	ctx context.Context,
	userID int64,
	eventTemplateID int64,
	patch model.EventTemplatePatch,
) (*model.ExpandedEventTemplate, error) {
	if err := s.VerifyOwnership(ctx, userID, ident.NSEventTemplate, []int64{eventTemplateID}); err != nil {
		return nil, err
	}

	var result model.ExpandedEventTemplate
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var et model.EventTemplate
		var autoInt int
		err := tx.QueryRowxContext(ctx,
			"SELECT * FROM event_templates WHERE id = ?", eventTemplateID).Scan(
			&et.ID, &et.ProjectTemplateID, &et.Name, &et.OffsetDays,
			&et.Duration, &et.Note, &et.EventType, &autoInt,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return &model.DoesNotExistError{Entity: "event template"}
		}
		if err != nil {
			return fmt.Errorf("loading event template %d: %w", eventTemplateID, err)
		}
		et.AutoReschedule = autoInt != 0

		deltaIDs := append(reminderTemplatePatchIDs(patch.RemindersUpdate), patch.RemindersDelete...)
		if len(deltaIDs) > 0 {
			if err := verifyReminderTemplatesBelongTo(ctx, tx, eventTemplateID, deltaIDs); err != nil {
				return err
			}
		}

		if err := applyEventTemplateScalars(ctx, tx, &et, patch); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE project_templates SET updated_at = ? WHERE id = ?",
			time.Now().UTC(), et.ProjectTemplateID); err != nil {
			return fmt.Errorf("touching project template %d: %w", et.ProjectTemplateID, err)
		}

		tags, err := reconcileTags(ctx, tx, userID, eventTemplateTagTable, eventTemplateParent, eventTemplateID, patch.Tags)
		if err != nil {
			return err
		}

		updated, err := applyReminderTemplateUpdates(ctx, tx, eventTemplateID, patch.RemindersUpdate)
		if err != nil {
			return err
		}

		if len(patch.RemindersDelete) > 0 {
			query, args, err := sqlx.In(
				"DELETE FROM reminder_templates WHERE event_template_id = ? AND id IN (?)",
				eventTemplateID, patch.RemindersDelete)
			if err != nil {
				return fmt.Errorf("expanding reminder template delete: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("deleting reminder templates: %w", err)
			}
		}

		inserted, err := insertReminderTemplates(ctx, tx, eventTemplateID, patch.RemindersInsert)
		if err != nil {
			return err
		}

		result = model.ExpandedEventTemplate{
			EventTemplate: et,
			Reminders:     append(updated, inserted...),
			Tags:          tags,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// applyEventTemplateScalars builds and runs the dynamic UPDATE for an event
// template's scalar fields, mutating et to the post-update values.
func applyEventTemplateScalars(ctx context.Context, tx *sqlx.Tx, et *model.EventTemplate, patch model.EventTemplatePatch) error {
	var sets []string
	var args []interface{}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return &model.ValidationError{Issues: []model.FieldIssue{
				{Field: "name", Message: "must not be empty"},
			}}
		}
		et.Name = name
		sets = append(sets, "name = ?")
		args = append(args, name)
	}
	if patch.OffsetDays != nil {
		if *patch.OffsetDays < 0 {
			return &model.ValidationError{Issues: []model.FieldIssue{
				{Field: "offset_days", Message: "must not be negative"},
			}}
		}
		et.OffsetDays = *patch.OffsetDays
		sets = append(sets, "offset_days = ?")
		args = append(args, et.OffsetDays)
	}
	if patch.Duration != nil {
		if err := validateDuration(et.EventType, *patch.Duration); err != nil {
			return err
		}
		et.Duration = *patch.Duration
		sets = append(sets, "duration = ?")
		args = append(args, et.Duration)
	}
	if patch.Note != nil {
		et.Note = *patch.Note
		sets = append(sets, "note = ?")
		args = append(args, et.Note)
	}
	if patch.AutoReschedule != nil {
		et.AutoReschedule = *patch.AutoReschedule
		sets = append(sets, "auto_reschedule = ?")
		args = append(args, boolToInt(et.AutoReschedule))
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, et.ID)
	query := "UPDATE event_templates SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating event template %d: %w", et.ID, err)
	}
	return nil
}

// applyReminderTemplateUpdates applies each ReminderTemplatePatch as its own
// UPDATE.
func applyReminderTemplateUpdates(
	ctx context.Context,
	tx *sqlx.Tx,
	eventTemplateID int64,
	patches []model.ReminderTemplatePatch,
) ([]model.ReminderTemplate, error) {
	var updated []model.ReminderTemplate
	for _, p := range patches {
		var rt model.ReminderTemplate
		var emailInt, desktopInt int
		err := tx.QueryRowxContext(ctx,
			"SELECT * FROM reminder_templates WHERE id = ? AND event_template_id = ?",
			p.ID, eventTemplateID).Scan(
			&rt.ID, &rt.EventTemplateID, &rt.DaysBefore, &rt.TimeOfDay,
			&emailInt, &desktopInt,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &model.DoesNotExistError{Entity: "reminder template"}
		}
		if err != nil {
			return nil, fmt.Errorf("loading reminder template %d: %w", p.ID, err)
		}
		rt.EmailNotifications = emailInt != 0
		rt.DesktopNotifications = desktopInt != 0

		if p.DaysBefore != nil {
			if *p.DaysBefore < 0 {
				return nil, &model.ValidationError{Issues: []model.FieldIssue{
					{Field: "days_before", Message: "must not be negative"},
				}}
			}
			rt.DaysBefore = *p.DaysBefore
		}
		if p.TimeOfDay != nil {
			if _, err := parseTimeOfDay(*p.TimeOfDay); err != nil {
				return nil, &model.ValidationError{Issues: []model.FieldIssue{
					{Field: "time_of_day", Message: "must be HH:MM"},
				}}
			}
			rt.TimeOfDay = *p.TimeOfDay
		}
		if p.EmailNotifications != nil {
			rt.EmailNotifications = *p.EmailNotifications
		}
		if p.DesktopNotifications != nil {
			rt.DesktopNotifications = *p.DesktopNotifications
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE reminder_templates SET days_before = ?, time_of_day = ?, email_notifications = ?, desktop_notifications = ?
			WHERE id = ?`,
			rt.DaysBefore, rt.TimeOfDay,
			boolToInt(rt.EmailNotifications), boolToInt(rt.DesktopNotifications),
			rt.ID); err != nil {
			return nil, fmt.Errorf("updating reminder template %d: %w", rt.ID, err)
		}

		updated = append(updated, rt)
	}
	return updated, nil
}

// insertReminderTemplates bulk inserts new reminder templates and returns
// them with fresh row ids.
func insertReminderTemplates(
	ctx context.Context,
	tx *sqlx.Tx,
	eventTemplateID int64,
	inputs []model.ReminderTemplateInput,
) ([]model.ReminderTemplate, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	templates := make([]model.ReminderTemplate, 0, len(inputs))
	placeholders := make([]string, 0, len(inputs))
	args := make([]interface{}, 0, 5*len(inputs))
	for _, in := range inputs {
		if in.DaysBefore < 0 {
			return nil, &model.ValidationError{Issues: []model.FieldIssue{
				{Field: "days_before", Message: "must not be negative"},
			}}
		}
		if _, err := parseTimeOfDay(in.TimeOfDay); err != nil {
			return nil, &model.ValidationError{Issues: []model.FieldIssue{
				{Field: "time_of_day", Message: "must be HH:MM"},
			}}
		}
		rt := model.ReminderTemplate{
			EventTemplateID:      eventTemplateID,
			DaysBefore:           in.DaysBefore,
			TimeOfDay:            in.TimeOfDay,
			EmailNotifications:   in.EmailNotifications,
			DesktopNotifications: in.DesktopNotifications,
		}
		templates = append(templates, rt)
		placeholders = append(placeholders, "(?, ?, ?, ?, ?)")
		args = append(args, rt.EventTemplateID, rt.DaysBefore, rt.TimeOfDay,
			boolToInt(rt.EmailNotifications), boolToInt(rt.DesktopNotifications))
	}

	query := "INSERT INTO reminder_templates (event_template_id, days_before, time_of_day, email_notifications, desktop_notifications) VALUES " +
		strings.Join(placeholders, ", ") + " RETURNING id"
	rows, err := tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("inserting reminder templates: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		if i >= len(templates) {
			return nil, &model.AssertionError{Message: "reminder template insert returned more ids than rows"}
		}
		if err := rows.Scan(&templates[i].ID); err != nil {
			return nil, fmt.Errorf("scanning reminder template id: %w", err)
		}
		i++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading reminder template ids: %w", err)
	}
	if i != len(templates) {
		return nil, &model.AssertionError{Message: "reminder template insert returned fewer ids than rows"}
	}

	return templates, nil
}

// verifyReminderTemplatesBelongTo checks that every reminder-template id is
// a child of the event template being reconciled.
func verifyReminderTemplatesBelongTo(ctx context.Context, tx *sqlx.Tx, eventTemplateID int64, ids []int64) error {
	distinct := dedupeIDs(ids)
	query, args, err := sqlx.In(
		"SELECT COUNT(DISTINCT id) FROM reminder_templates WHERE event_template_id = ? AND id IN (?)",
		eventTemplateID, distinct)
	if err != nil {
		return fmt.Errorf("expanding reminder template membership query: %w", err)
	}
	var count int
	if err := tx.GetContext(ctx, &count, query, args...); err != nil {
		return fmt.Errorf("checking reminder template membership: %w", err)
	}
	switch {
	case count < len(distinct):
		return &model.DoesNotExistError{Entity: "reminder template"}
	case count > len(distinct):
		return &model.AssertionError{Message: fmt.Sprintf(
			"reminder template membership returned %d rows for %d ids", count, len(distinct))}
	}
	return nil
}

// reminderTemplatePatchIDs extracts the target ids of a
// ReminderTemplatePatch slice.
func reminderTemplatePatchIDs(patches []model.ReminderTemplatePatch) []int64 {
	ids := make([]int64, 0, len(patches))
	for _, p := range patches {
		ids = append(ids, p.ID)
	}
	return ids
}

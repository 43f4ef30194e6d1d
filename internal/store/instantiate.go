package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/plannerd/internal/model"
)

// CreateProjectInput is the shell of a new project. TemplateID, when set,
// selects the template whose graph the project is instantiated from.
type CreateProjectInput struct {
	Name        string
	Description string
	StartsAt    time.Time
	TemplateID  *int64
}

// InstantiateProject creates a project, expanding the selected template's
// graph into dated events, tag links, and reminders inside one transaction.
// The copy is one-shot: later template edits never propagate to the project.
// On any failure inside the transaction the whole graph rolls back, so a
// partial project is never observable.
func (s *SQLiteStore) InstantiateProject(
	ctx context.Context,
	userID int64,
	input CreateProjectInput,
) (*model.ProjectGraph, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, &model.ValidationError{Issues: []model.FieldIssue{
			{Field: "name", Message: "must not be empty"},
		}}
	}

	// Pre-check the per-owner name. The unique index still backs the
	// read-then-write race; a concurrent duplicate fails the transaction
	// below instead of slipping through.
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM projects WHERE user_id = ? AND name = ?",
		userID, name)
	if err != nil {
		return nil, fmt.Errorf("checking project name: %w", err)
	}
	if count > 0 {
		return nil, &model.DuplicateNameError{Entity: "project", Name: name}
	}

	// Expand the template outside the transaction; it is read-only and
	// carries its own ownership check.
	var template *model.TemplateGraph
	if input.TemplateID != nil {
		template, err = s.ExpandTemplate(ctx, userID, *input.TemplateID)
		if err != nil {
			return nil, err
		}
	}

	startsAt := dateOnly(input.StartsAt)
	now := time.Now().UTC()

	graph := &model.ProjectGraph{
		Project: model.Project{
			UserID:            userID,
			Name:              name,
			Description:       input.Description,
			StartsAt:          startsAt,
			ProjectTemplateID: input.TemplateID,
			CreatedAt:         now,
			UpdatedAt:         now,
		},
		Events: []model.ExpandedEvent{},
	}

	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO projects (user_id, name, description, starts_at, project_template_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			userID, name, input.Description, startsAt, input.TemplateID, now, now)
		if err != nil {
			return fmt.Errorf("inserting project: %w", err)
		}
		graph.Project.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading project id: %w", err)
		}

		if template == nil {
			return nil
		}

		if err := s.instantiateEvents(ctx, tx, graph, template); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return graph, nil
}

// instantiateEvents copies the template's event graph under the freshly
// inserted project row. Events are inserted through one prepared statement
// (each needs its new row id for the children); tag links and reminders go
// in as one multi-VALUES statement each across all events.
func (s *SQLiteStore) instantiateEvents(
	ctx context.Context,
	tx *sqlx.Tx,
	graph *model.ProjectGraph,
	template *model.TemplateGraph,
) error {
	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO events (project_id, name, start_date, duration, note, event_type, auto_reschedule, status, notifications_enabled, event_template_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing event insert: %w", err)
	}
	defer stmt.Close()

	for _, et := range template.Events {
		templateID := et.ID
		event := model.Event{
			ProjectID:            graph.Project.ID,
			Name:                 et.Name,
			StartDate:            graph.Project.StartsAt.AddDate(0, 0, et.OffsetDays),
			Duration:             et.Duration,
			Note:                 et.Note,
			EventType:            et.EventType,
			AutoReschedule:       et.AutoReschedule,
			Status:               model.DefaultStatusFor(et.EventType),
			NotificationsEnabled: true,
			EventTemplateID:      &templateID,
		}

		res, err := stmt.ExecContext(ctx,
			event.ProjectID, event.Name, event.StartDate, event.Duration,
			event.Note, event.EventType, boolToInt(event.AutoReschedule),
			event.Status, boolToInt(event.NotificationsEnabled), event.EventTemplateID)
		if err != nil {
			return fmt.Errorf("inserting event %q: %w", event.Name, err)
		}
		event.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading event id: %w", err)
		}

		graph.Events = append(graph.Events, model.ExpandedEvent{
			Event:     event,
			Reminders: []model.Reminder{},
			Tags:      append([]model.Tag{}, et.Tags...),
		})
	}

	if err := insertInstanceTagLinks(ctx, tx, graph); err != nil {
		return err
	}
	return insertInstanceReminders(ctx, tx, graph, template)
}

// insertInstanceTagLinks links every new event to its source template's tags
// with a single bulk statement across all events.
func insertInstanceTagLinks(ctx context.Context, tx *sqlx.Tx, graph *model.ProjectGraph) error {
	var placeholders []string
	var args []interface{}
	for _, ev := range graph.Events {
		for _, tag := range ev.Tags {
			placeholders = append(placeholders, "(?, ?)")
			args = append(args, ev.ID, tag.ID)
		}
	}
	if len(placeholders) == 0 {
		return nil
	}

	query := "INSERT INTO event_tags (event_id, tag_id) VALUES " + strings.Join(placeholders, ", ")
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("linking event tags: %w", err)
	}
	return nil
}

// insertInstanceReminders derives one reminder per reminder template of each
// event's source, bulk inserts them, and attaches the new rows (ids included,
// via RETURNING) to the in-memory graph.
func insertInstanceReminders(
	ctx context.Context,
	tx *sqlx.Tx,
	graph *model.ProjectGraph,
	template *model.TemplateGraph,
) error {
	type pending struct {
		eventPos int
		reminder model.Reminder
	}

	var all []pending
	var placeholders []string
	var args []interface{}

	for pos := range graph.Events {
		ev := &graph.Events[pos]
		if ev.EventTemplateID == nil {
			continue
		}
		src := findEventTemplate(template, *ev.EventTemplateID)
		if src == nil {
			continue
		}
		for _, rt := range src.Reminders {
			timeOfDay, err := parseTimeOfDay(rt.TimeOfDay)
			if err != nil {
				return &model.AssertionError{Message: fmt.Sprintf(
					"reminder template %d carries unparseable time %q", rt.ID, rt.TimeOfDay,
				)}
			}
			templateID := rt.ID
			reminder := model.Reminder{
				EventID:              ev.ID,
				TriggerTime:          ev.StartDate.Add(timeOfDay).AddDate(0, 0, -rt.DaysBefore),
				EmailNotifications:   rt.EmailNotifications,
				DesktopNotifications: rt.DesktopNotifications,
				ReminderTemplateID:   &templateID,
			}

			all = append(all, pending{eventPos: pos, reminder: reminder})
			placeholders = append(placeholders, "(?, ?, ?, ?, ?)")
			args = append(args,
				reminder.EventID, reminder.TriggerTime,
				boolToInt(reminder.EmailNotifications),
				boolToInt(reminder.DesktopNotifications),
				reminder.ReminderTemplateID)
		}
	}
	if len(all) == 0 {
		return nil
	}

	query := `INSERT INTO reminders (event_id, trigger_time, email_notifications, desktop_notifications, reminder_template_id) VALUES ` +
		strings.Join(placeholders, ", ") + " RETURNING id"
	rows, err := tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("inserting reminders: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		if i >= len(all) {
			return &model.AssertionError{Message: "reminder insert returned more ids than rows"}
		}
		if err := rows.Scan(&all[i].reminder.ID); err != nil {
			return fmt.Errorf("scanning reminder id: %w", err)
		}
		i++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading reminder ids: %w", err)
	}
	if i != len(all) {
		return &model.AssertionError{Message: "reminder insert returned fewer ids than rows"}
	}

	for _, p := range all {
		graph.Events[p.eventPos].Reminders = append(graph.Events[p.eventPos].Reminders, p.reminder)
	}
	return nil
}

// findEventTemplate locates an expanded event template by id.
func findEventTemplate(template *model.TemplateGraph, id int64) *model.ExpandedEventTemplate {
	for i := range template.Events {
		if template.Events[i].ID == id {
			return &template.Events[i]
		}
	}
	return nil
}

// dateOnly truncates a timestamp to midnight UTC.
func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/plannerd/internal/ident"
	"github.com/nhle/plannerd/internal/model"
)

// CreateUser inserts a new user row.
func (s *SQLiteStore) CreateUser(ctx context.Context, email string) (*model.User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, &model.ValidationError{Issues: []model.FieldIssue{
			{Field: "email", Message: "must not be empty"},
		}}
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (email, created_at) VALUES (?, ?)", email, now)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading user id: %w", err)
	}

	return &model.User{ID: id, Email: email, CreatedAt: now}, nil
}

// CreateProjectTemplate inserts a new project template for userID.
// Names are trimmed and unique per owner.
func (s *SQLiteStore) CreateProjectTemplate(
	ctx context.Context,
	userID int64,
	name, description string,
) (*model.ProjectTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &model.ValidationError{Issues: []model.FieldIssue{
			{Field: "name", Message: "must not be empty"},
		}}
	}

	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM project_templates WHERE user_id = ? AND name = ?",
		userID, name)
	if err != nil {
		return nil, fmt.Errorf("checking template name: %w", err)
	}
	if count > 0 {
		return nil, &model.DuplicateNameError{Entity: "template", Name: name}
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO project_templates (user_id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		userID, name, description, now, now)
	if err != nil {
		return nil, fmt.Errorf("creating project template: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading project template id: %w", err)
	}

	return &model.ProjectTemplate{
		ID:          id,
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// validateEventTemplateShape checks the invariants shared by event templates
// and events: non-empty name, non-negative offset, and the duration rule
// (tasks are always one day; activities at least one day).
func validateEventTemplateShape(name string, offsetDays, duration int, eventType string) error {
	var issues []model.FieldIssue
	if strings.TrimSpace(name) == "" {
		issues = append(issues, model.FieldIssue{Field: "name", Message: "must not be empty"})
	}
	if offsetDays < 0 {
		issues = append(issues, model.FieldIssue{Field: "offset_days", Message: "must not be negative"})
	}
	switch eventType {
	case model.EventTypeTask:
		if duration != 1 {
			issues = append(issues, model.FieldIssue{Field: "duration", Message: "tasks last exactly one day"})
		}
	case model.EventTypeActivity:
		if duration < 1 {
			issues = append(issues, model.FieldIssue{Field: "duration", Message: "must be at least one day"})
		}
	default:
		issues = append(issues, model.FieldIssue{Field: "event_type", Message: "must be task or activity"})
	}
	if len(issues) > 0 {
		return &model.ValidationError{Issues: issues}
	}
	return nil
}

// CreateEventTemplate inserts a new event template under the given project
// template, which must be owned by userID.
func (s *SQLiteStore) CreateEventTemplate(
	ctx context.Context,
	userID int64,
	et model.EventTemplate,
) (*model.EventTemplate, error) {
	et.Name = strings.TrimSpace(et.Name)
	if err := validateEventTemplateShape(et.Name, et.OffsetDays, et.Duration, et.EventType); err != nil {
		return nil, err
	}
	if err := s.VerifyOwnership(ctx, userID, ident.NSProjectTemplate, []int64{et.ProjectTemplateID}); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO event_templates (project_template_id, name, offset_days, duration, note, event_type, auto_reschedule)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		et.ProjectTemplateID, et.Name, et.OffsetDays, et.Duration, et.Note,
		et.EventType, boolToInt(et.AutoReschedule))
	if err != nil {
		return nil, fmt.Errorf("creating event template: %w", err)
	}
	et.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading event template id: %w", err)
	}

	return &et, nil
}

// CreateReminderTemplate inserts a new reminder template under the given
// event template, which must be owned by userID.
func (s *SQLiteStore) CreateReminderTemplate(
	ctx context.Context,
	userID int64,
	rt model.ReminderTemplate,
) (*model.ReminderTemplate, error) {
	var issues []model.FieldIssue
	if rt.DaysBefore < 0 {
		issues = append(issues, model.FieldIssue{Field: "days_before", Message: "must not be negative"})
	}
	if _, err := parseTimeOfDay(rt.TimeOfDay); err != nil {
		issues = append(issues, model.FieldIssue{Field: "time_of_day", Message: "must be HH:MM"})
	}
	if len(issues) > 0 {
		return nil, &model.ValidationError{Issues: issues}
	}
	if err := s.VerifyOwnership(ctx, userID, ident.NSEventTemplate, []int64{rt.EventTemplateID}); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reminder_templates (event_template_id, days_before, time_of_day, email_notifications, desktop_notifications)
		VALUES (?, ?, ?, ?, ?)`,
		rt.EventTemplateID, rt.DaysBefore, rt.TimeOfDay,
		boolToInt(rt.EmailNotifications), boolToInt(rt.DesktopNotifications))
	if err != nil {
		return nil, fmt.Errorf("creating reminder template: %w", err)
	}
	var err2 error
	rt.ID, err2 = res.LastInsertId()
	if err2 != nil {
		return nil, fmt.Errorf("reading reminder template id: %w", err2)
	}

	return &rt, nil
}

// GetProjectTemplate loads a single project template row by id.
func (s *SQLiteStore) GetProjectTemplate(ctx context.Context, id int64) (*model.ProjectTemplate, error) {
	var t model.ProjectTemplate
	err := s.db.GetContext(ctx, &t,
		"SELECT * FROM project_templates WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.DoesNotExistError{Entity: "template"}
	}
	if err != nil {
		return nil, fmt.Errorf("getting project template %d: %w", id, err)
	}
	return &t, nil
}

// parseTimeOfDay parses a wall-clock "HH:MM" value into hour and minute.
func parseTimeOfDay(value string) (time.Duration, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("parsing time of day %q: %w", value, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

package model

import "time"

// Project is a concrete, dated instance of a project. Names are unique per
// owner. ProjectTemplateID records which template (if any) the project was
// instantiated from; it is provenance only and never used for authorization.
type Project struct {
	ID                int64     `json:"id" db:"id"`
	UserID            int64     `json:"user_id" db:"user_id"`
	Name              string    `json:"name" db:"name"`
	Description       string    `json:"description" db:"description"`
	StartsAt          time.Time `json:"starts_at" db:"starts_at"`
	ProjectTemplateID *int64    `json:"project_template_id,omitempty" db:"project_template_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Event is a dated entry within a project. EventTemplateID is provenance
// only.
type Event struct {
	ID                   int64     `json:"id" db:"id"`
	ProjectID            int64     `json:"project_id" db:"project_id"`
	Name                 string    `json:"name" db:"name"`
	StartDate            time.Time `json:"start_date" db:"start_date"`
	Duration             int       `json:"duration" db:"duration"`
	Note                 string    `json:"note" db:"note"`
	EventType            string    `json:"event_type" db:"event_type"`
	AutoReschedule       bool      `json:"auto_reschedule" db:"auto_reschedule"`
	Status               string    `json:"status" db:"status"`
	NotificationsEnabled bool      `json:"notifications_enabled" db:"notifications_enabled"`
	EventTemplateID      *int64    `json:"event_template_id,omitempty" db:"event_template_id"`
}

// Reminder is the only entity with an external-system counterpart: RunID
// holds the task runner's handle for the scheduled delivery, nil while
// unscheduled.
type Reminder struct {
	ID                   int64     `json:"id" db:"id"`
	EventID              int64     `json:"event_id" db:"event_id"`
	TriggerTime          time.Time `json:"trigger_time" db:"trigger_time"`
	EmailNotifications   bool      `json:"email_notifications" db:"email_notifications"`
	DesktopNotifications bool      `json:"desktop_notifications" db:"desktop_notifications"`
	ReminderTemplateID   *int64    `json:"reminder_template_id,omitempty" db:"reminder_template_id"`
	RunID                *string   `json:"run_id,omitempty" db:"run_id"`
}

// ExpandedEvent is an event with its child collections loaded.
type ExpandedEvent struct {
	Event
	Reminders []Reminder `json:"reminders"`
	Tags      []Tag      `json:"tags"`
}

// ProjectGraph is a project plus every event with its reminders and tags,
// as produced by instantiation.
type ProjectGraph struct {
	Project Project         `json:"project"`
	Events  []ExpandedEvent `json:"events"`
}

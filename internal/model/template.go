package model

import "time"

// Event type constants. The type of an event (or event template) is fixed at
// creation time and constrains which status values the event may take.
const (
	EventTypeTask     = "task"
	EventTypeActivity = "activity"
)

// Event status constants. Activities always carry StatusNone; tasks move
// between the three task statuses.
const (
	StatusNone       = "none"
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// ValidStatusFor reports whether status is allowed for the given event type.
func ValidStatusFor(eventType, status string) bool {
	switch eventType {
	case EventTypeActivity:
		return status == StatusNone
	case EventTypeTask:
		return status == StatusNotStarted ||
			status == StatusInProgress ||
			status == StatusCompleted
	}
	return false
}

// DefaultStatusFor returns the status a freshly instantiated event gets.
func DefaultStatusFor(eventType string) string {
	if eventType == EventTypeTask {
		return StatusNotStarted
	}
	return StatusNone
}

// ProjectTemplate is a reusable blueprint for a project. Names are unique
// per owner.
type ProjectTemplate struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// EventTemplate is a blueprint for one event within a project template.
// OffsetDays positions the instantiated event relative to the project start.
type EventTemplate struct {
	ID                int64  `json:"id" db:"id"`
	ProjectTemplateID int64  `json:"project_template_id" db:"project_template_id"`
	Name              string `json:"name" db:"name"`
	OffsetDays        int    `json:"offset_days" db:"offset_days"`
	Duration          int    `json:"duration" db:"duration"`
	Note              string `json:"note" db:"note"`
	EventType         string `json:"event_type" db:"event_type"`
	AutoReschedule    bool   `json:"auto_reschedule" db:"auto_reschedule"`
}

// ReminderTemplate is a blueprint for one reminder on an event template.
// TimeOfDay is a wall-clock "HH:MM" string; DaysBefore counts back from the
// instantiated event's start date.
type ReminderTemplate struct {
	ID                   int64  `json:"id" db:"id"`
	EventTemplateID      int64  `json:"event_template_id" db:"event_template_id"`
	DaysBefore           int    `json:"days_before" db:"days_before"`
	TimeOfDay            string `json:"time_of_day" db:"time_of_day"`
	EmailNotifications   bool   `json:"email_notifications" db:"email_notifications"`
	DesktopNotifications bool   `json:"desktop_notifications" db:"desktop_notifications"`
}

// ExpandedEventTemplate is an event template with its child collections
// loaded.
type ExpandedEventTemplate struct {
	EventTemplate
	Reminders []ReminderTemplate `json:"reminders"`
	Tags      []Tag              `json:"tags"`
}

// TemplateGraph is a fully materialized project template: the template row
// plus every event template with its reminder templates and tags.
type TemplateGraph struct {
	Template ProjectTemplate         `json:"template"`
	Events   []ExpandedEventTemplate `json:"events"`
}

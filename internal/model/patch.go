package model

import "time"

// The patch types carry optional scalar changes (nil means "leave as is")
// plus explicit child-collection deltas. Reminder deltas are supplied by the
// caller, which already tracks per-row dirtiness; the store applies them as
// given and does not recompute a diff against stored state.

// ReminderInput is a reminder to be created (no id yet).
type ReminderInput struct {
	TriggerTime          time.Time `json:"trigger_time"`
	EmailNotifications   bool      `json:"email_notifications"`
	DesktopNotifications bool      `json:"desktop_notifications"`
}

// ReminderPatch updates an existing reminder.
type ReminderPatch struct {
	ID                   int64      `json:"id"`
	TriggerTime          *time.Time `json:"trigger_time,omitempty"`
	EmailNotifications   *bool      `json:"email_notifications,omitempty"`
	DesktopNotifications *bool      `json:"desktop_notifications,omitempty"`
}

// EventPatch reconciles an event and its child collections. Tags, when
// non-nil, fully replaces the tag set; nil leaves it untouched.
type EventPatch struct {
	Name                 *string         `json:"name,omitempty"`
	StartDate            *time.Time      `json:"start_date,omitempty"`
	Duration             *int            `json:"duration,omitempty"`
	Note                 *string         `json:"note,omitempty"`
	Status               *string         `json:"status,omitempty"`
	AutoReschedule       *bool           `json:"auto_reschedule,omitempty"`
	NotificationsEnabled *bool           `json:"notifications_enabled,omitempty"`
	Tags                 *[]string       `json:"tags,omitempty"`
	RemindersInsert      []ReminderInput `json:"reminders_insert,omitempty"`
	RemindersUpdate      []ReminderPatch `json:"reminders_update,omitempty"`
	RemindersDelete      []int64         `json:"reminders_delete,omitempty"`
}

// ReminderTemplateInput is a reminder template to be created (no id yet).
type ReminderTemplateInput struct {
	DaysBefore           int    `json:"days_before"`
	TimeOfDay            string `json:"time_of_day"`
	EmailNotifications   bool   `json:"email_notifications"`
	DesktopNotifications bool   `json:"desktop_notifications"`
}

// ReminderTemplatePatch updates an existing reminder template.
type ReminderTemplatePatch struct {
	ID                   int64   `json:"id"`
	DaysBefore           *int    `json:"days_before,omitempty"`
	TimeOfDay            *string `json:"time_of_day,omitempty"`
	EmailNotifications   *bool   `json:"email_notifications,omitempty"`
	DesktopNotifications *bool   `json:"desktop_notifications,omitempty"`
}

// EventTemplatePatch reconciles an event template and its child collections.
type EventTemplatePatch struct {
	Name            *string                 `json:"name,omitempty"`
	OffsetDays      *int                    `json:"offset_days,omitempty"`
	Duration        *int                    `json:"duration,omitempty"`
	Note            *string                 `json:"note,omitempty"`
	AutoReschedule  *bool                   `json:"auto_reschedule,omitempty"`
	Tags            *[]string               `json:"tags,omitempty"`
	RemindersInsert []ReminderTemplateInput `json:"reminders_insert,omitempty"`
	RemindersUpdate []ReminderTemplatePatch `json:"reminders_update,omitempty"`
	RemindersDelete []int64                 `json:"reminders_delete,omitempty"`
}

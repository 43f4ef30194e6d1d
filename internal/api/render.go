package api

import (
	"time"

	"github.com/nhle/plannerd/internal/ident"
	"github.com/nhle/plannerd/internal/model"
)

// The view types mirror the model graphs with every row id replaced by its
// encoded public form. Internal ids never leave the process.

type tagView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type reminderView struct {
	ID                   string    `json:"id"`
	TriggerTime          time.Time `json:"trigger_time"`
	EmailNotifications   bool      `json:"email_notifications"`
	DesktopNotifications bool      `json:"desktop_notifications"`
	Scheduled            bool      `json:"scheduled"`
}

type eventView struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	StartDate            string         `json:"start_date"`
	Duration             int            `json:"duration"`
	Note                 string         `json:"note"`
	EventType            string         `json:"event_type"`
	AutoReschedule       bool           `json:"auto_reschedule"`
	Status               string         `json:"status"`
	NotificationsEnabled bool           `json:"notifications_enabled"`
	Reminders            []reminderView `json:"reminders"`
	Tags                 []tagView      `json:"tags"`
}

type projectGraphView struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	StartsAt    string      `json:"starts_at"`
	Events      []eventView `json:"events"`
}

type reminderTemplateView struct {
	ID                   string `json:"id"`
	DaysBefore           int    `json:"days_before"`
	TimeOfDay            string `json:"time_of_day"`
	EmailNotifications   bool   `json:"email_notifications"`
	DesktopNotifications bool   `json:"desktop_notifications"`
}

type eventTemplateView struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	OffsetDays     int                    `json:"offset_days"`
	Duration       int                    `json:"duration"`
	Note           string                 `json:"note"`
	EventType      string                 `json:"event_type"`
	AutoReschedule bool                   `json:"auto_reschedule"`
	Reminders      []reminderTemplateView `json:"reminders"`
	Tags           []tagView              `json:"tags"`
}

type templateGraphView struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Events      []eventTemplateView `json:"events"`
}

const dateFormat = "2006-01-02"

func renderTags(ids *ident.Registry, tags []model.Tag) []tagView {
	out := make([]tagView, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagView{
			ID:   ids.MustEncode(ident.NSTag, t.ID),
			Name: t.Name,
		})
	}
	return out
}

func renderReminders(ids *ident.Registry, reminders []model.Reminder) []reminderView {
	out := make([]reminderView, 0, len(reminders))
	for _, r := range reminders {
		out = append(out, reminderView{
			ID:                   ids.MustEncode(ident.NSReminder, r.ID),
			TriggerTime:          r.TriggerTime,
			EmailNotifications:   r.EmailNotifications,
			DesktopNotifications: r.DesktopNotifications,
			Scheduled:            r.RunID != nil,
		})
	}
	return out
}

func renderEvent(ids *ident.Registry, ev model.ExpandedEvent) eventView {
	return eventView{
		ID:                   ids.MustEncode(ident.NSEvent, ev.ID),
		Name:                 ev.Name,
		StartDate:            ev.StartDate.Format(dateFormat),
		Duration:             ev.Duration,
		Note:                 ev.Note,
		EventType:            ev.EventType,
		AutoReschedule:       ev.AutoReschedule,
		Status:               ev.Status,
		NotificationsEnabled: ev.NotificationsEnabled,
		Reminders:            renderReminders(ids, ev.Reminders),
		Tags:                 renderTags(ids, ev.Tags),
	}
}

func renderProjectGraph(ids *ident.Registry, graph *model.ProjectGraph) projectGraphView {
	view := projectGraphView{
		ID:          ids.MustEncode(ident.NSProject, graph.Project.ID),
		Name:        graph.Project.Name,
		Description: graph.Project.Description,
		StartsAt:    graph.Project.StartsAt.Format(dateFormat),
		Events:      make([]eventView, 0, len(graph.Events)),
	}
	for _, ev := range graph.Events {
		view.Events = append(view.Events, renderEvent(ids, ev))
	}
	return view
}

func renderEventTemplate(ids *ident.Registry, et model.ExpandedEventTemplate) eventTemplateView {
	view := eventTemplateView{
		ID:             ids.MustEncode(ident.NSEventTemplate, et.ID),
		Name:           et.Name,
		OffsetDays:     et.OffsetDays,
		Duration:       et.Duration,
		Note:           et.Note,
		EventType:      et.EventType,
		AutoReschedule: et.AutoReschedule,
		Reminders:      make([]reminderTemplateView, 0, len(et.Reminders)),
		Tags:           renderTags(ids, et.Tags),
	}
	for _, rt := range et.Reminders {
		view.Reminders = append(view.Reminders, reminderTemplateView{
			ID:                   ids.MustEncode(ident.NSReminderTemplate, rt.ID),
			DaysBefore:           rt.DaysBefore,
			TimeOfDay:            rt.TimeOfDay,
			EmailNotifications:   rt.EmailNotifications,
			DesktopNotifications: rt.DesktopNotifications,
		})
	}
	return view
}

func renderTemplateGraph(ids *ident.Registry, graph *model.TemplateGraph) templateGraphView {
	view := templateGraphView{
		ID:          ids.MustEncode(ident.NSProjectTemplate, graph.Template.ID),
		Name:        graph.Template.Name,
		Description: graph.Template.Description,
		Events:      make([]eventTemplateView, 0, len(graph.Events)),
	}
	for _, et := range graph.Events {
		view.Events = append(view.Events, renderEventTemplate(ids, et))
	}
	return view
}

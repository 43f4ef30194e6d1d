// Package api exposes the core entry points over HTTP. It owns request
// decoding, input validation, id decoding, and the mapping from the typed
// error set to status codes; all semantics live in the planner service.
package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nhle/plannerd/internal/ident"
	"github.com/nhle/plannerd/internal/model"
	"github.com/nhle/plannerd/internal/planner"
	"github.com/nhle/plannerd/internal/scheduler"
)

// Server holds the handler dependencies.
type Server struct {
	svc *planner.Service
	log *slog.Logger
}

// NewApp builds the fiber application with all routes registered.
func NewApp(svc *planner.Service, jwtSecret string, log *slog.Logger) *fiber.App {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{svc: svc, log: log}

	app := fiber.New(fiber.Config{
		AppName: "plannerd",
	})

	api := app.Group("/api", JWTProtected(jwtSecret))
	api.Post("/projects", s.createProject)
	api.Delete("/projects/:id", s.deleteProject)
	api.Get("/templates/:id/expanded", s.expandTemplate)
	api.Patch("/events/:id", s.reconcileEvent)
	api.Delete("/events/:id", s.deleteEvent)
	api.Patch("/event-templates/:id", s.reconcileEventTemplate)

	return app
}

// createProjectRequest is the wire shape for project creation.
type createProjectRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	StartsAt    string  `json:"starts_at"`
	TemplateID  *string `json:"template_id,omitempty"`
}

func (s *Server) createProject(c *fiber.Ctx) error {
	var req createProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed JSON body"})
	}

	var issues []model.FieldIssue
	if req.Name == "" {
		issues = append(issues, model.FieldIssue{Field: "name", Message: "must not be empty"})
	}
	startsAt, err := time.Parse(dateFormat, req.StartsAt)
	if err != nil {
		issues = append(issues, model.FieldIssue{Field: "starts_at", Message: "must be YYYY-MM-DD"})
	}
	if len(issues) > 0 {
		return s.fail(c, &model.ValidationError{Issues: issues})
	}

	graph, err := s.svc.CreateProject(c.Context(), callerID(c), planner.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		StartsAt:    startsAt,
		TemplateID:  req.TemplateID,
	})
	if err != nil && !planner.IsScheduleFailure(err) {
		return s.fail(c, err)
	}

	body := fiber.Map{"project": renderProjectGraph(s.svc.IDs(), graph)}
	addReminderWarnings(body, err)
	return c.Status(fiber.StatusCreated).JSON(body)
}

func (s *Server) expandTemplate(c *fiber.Ctx) error {
	graph, err := s.svc.ExpandTemplate(c.Context(), callerID(c), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"template": renderTemplateGraph(s.svc.IDs(), graph)})
}

// reminderPatchRequest carries an update delta for one reminder, id encoded.
type reminderPatchRequest struct {
	ID                   string     `json:"id"`
	TriggerTime          *time.Time `json:"trigger_time,omitempty"`
	EmailNotifications   *bool      `json:"email_notifications,omitempty"`
	DesktopNotifications *bool      `json:"desktop_notifications,omitempty"`
}

// reconcileEventRequest is the wire shape of an event patch: optional scalar
// changes, three reminder delta arrays, and an optional full-replacement tag
// list.
type reconcileEventRequest struct {
	Name                 *string                `json:"name,omitempty"`
	StartDate            *string                `json:"start_date,omitempty"`
	Duration             *int                   `json:"duration,omitempty"`
	Note                 *string                `json:"note,omitempty"`
	Status               *string                `json:"status,omitempty"`
	AutoReschedule       *bool                  `json:"auto_reschedule,omitempty"`
	NotificationsEnabled *bool                  `json:"notifications_enabled,omitempty"`
	Tags                 *[]string              `json:"tags,omitempty"`
	RemindersInsert      []model.ReminderInput  `json:"reminders_insert,omitempty"`
	RemindersUpdate      []reminderPatchRequest `json:"reminders_update,omitempty"`
	RemindersDelete      []string               `json:"reminders_delete,omitempty"`
}

func (s *Server) reconcileEvent(c *fiber.Ctx) error {
	var req reconcileEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed JSON body"})
	}

	patch := model.EventPatch{
		Name:                 req.Name,
		Duration:             req.Duration,
		Note:                 req.Note,
		Status:               req.Status,
		AutoReschedule:       req.AutoReschedule,
		NotificationsEnabled: req.NotificationsEnabled,
		Tags:                 req.Tags,
		RemindersInsert:      req.RemindersInsert,
	}

	if req.StartDate != nil {
		startDate, err := time.Parse(dateFormat, *req.StartDate)
		if err != nil {
			return s.fail(c, &model.ValidationError{Issues: []model.FieldIssue{
				{Field: "start_date", Message: "must be YYYY-MM-DD"},
			}})
		}
		patch.StartDate = &startDate
	}

	for _, rp := range req.RemindersUpdate {
		id, err := s.svc.IDs().Decode(ident.NSReminder, rp.ID)
		if err != nil {
			return s.fail(c, err)
		}
		patch.RemindersUpdate = append(patch.RemindersUpdate, model.ReminderPatch{
			ID:                   id,
			TriggerTime:          rp.TriggerTime,
			EmailNotifications:   rp.EmailNotifications,
			DesktopNotifications: rp.DesktopNotifications,
		})
	}
	for _, enc := range req.RemindersDelete {
		id, err := s.svc.IDs().Decode(ident.NSReminder, enc)
		if err != nil {
			return s.fail(c, err)
		}
		patch.RemindersDelete = append(patch.RemindersDelete, id)
	}

	event, err := s.svc.ReconcileEvent(c.Context(), callerID(c), c.Params("id"), patch)
	if err != nil && !planner.IsScheduleFailure(err) {
		return s.fail(c, err)
	}

	body := fiber.Map{"event": renderEvent(s.svc.IDs(), *event)}
	addReminderWarnings(body, err)
	return c.JSON(body)
}

// reconcileEventTemplateRequest mirrors reconcileEventRequest for event
// templates.
type reconcileEventTemplateRequest struct {
	Name            *string                        `json:"name,omitempty"`
	OffsetDays      *int                           `json:"offset_days,omitempty"`
	Duration        *int                           `json:"duration,omitempty"`
	Note            *string                        `json:"note,omitempty"`
	AutoReschedule  *bool                          `json:"auto_reschedule,omitempty"`
	Tags            *[]string                      `json:"tags,omitempty"`
	RemindersInsert []model.ReminderTemplateInput  `json:"reminders_insert,omitempty"`
	RemindersUpdate []reminderTemplatePatchRequest `json:"reminders_update,omitempty"`
	RemindersDelete []string                       `json:"reminders_delete,omitempty"`
}

type reminderTemplatePatchRequest struct {
	ID                   string  `json:"id"`
	DaysBefore           *int    `json:"days_before,omitempty"`
	TimeOfDay            *string `json:"time_of_day,omitempty"`
	EmailNotifications   *bool   `json:"email_notifications,omitempty"`
	DesktopNotifications *bool   `json:"desktop_notifications,omitempty"`
}

func (s *Server) reconcileEventTemplate(c *fiber.Ctx) error {
	var req reconcileEventTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed JSON body"})
	}

	patch := model.EventTemplatePatch{
		Name:            req.Name,
		OffsetDays:      req.OffsetDays,
		Duration:        req.Duration,
		Note:            req.Note,
		AutoReschedule:  req.AutoReschedule,
		Tags:            req.Tags,
		RemindersInsert: req.RemindersInsert,
	}
	for _, rp := range req.RemindersUpdate {
		id, err := s.svc.IDs().Decode(ident.NSReminderTemplate, rp.ID)
		if err != nil {
			return s.fail(c, err)
		}
		patch.RemindersUpdate = append(patch.RemindersUpdate, model.ReminderTemplatePatch{
			ID:                   id,
			DaysBefore:           rp.DaysBefore,
			TimeOfDay:            rp.TimeOfDay,
			EmailNotifications:   rp.EmailNotifications,
			DesktopNotifications: rp.DesktopNotifications,
		})
	}
	for _, enc := range req.RemindersDelete {
		id, err := s.svc.IDs().Decode(ident.NSReminderTemplate, enc)
		if err != nil {
			return s.fail(c, err)
		}
		patch.RemindersDelete = append(patch.RemindersDelete, id)
	}

	et, err := s.svc.ReconcileEventTemplate(c.Context(), callerID(c), c.Params("id"), patch)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"event_template": renderEventTemplate(s.svc.IDs(), *et)})
}

func (s *Server) deleteEvent(c *fiber.Ctx) error {
	if err := s.svc.DeleteEvent(c.Context(), callerID(c), c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) deleteProject(c *fiber.Ctx) error {
	if err := s.svc.DeleteProject(c.Context(), callerID(c), c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// addReminderWarnings attaches post-commit scheduling failures to an
// otherwise successful response: the edit saved, but external reminder
// state may be inconsistent.
func addReminderWarnings(body fiber.Map, err error) {
	var schedErr *scheduler.ScheduleReminderError
	if errors.As(err, &schedErr) {
		body["reminder_warnings"] = schedErr.Issues
	}
}

// fail maps the typed error set to HTTP responses. Assertion and unknown
// errors are logged and returned as a generic 500 — they indicate a server
// bug and are never shown verbatim.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  "validation failed",
			"issues": validationErr.Issues,
		})
	}

	var malformedErr *ident.MalformedIDError
	if errors.As(err, &malformedErr) || model.IsDoesNotExist(err) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}

	if model.IsDuplicateName(err) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	var statusErr *model.InvalidEventStatusError
	if errors.As(err, &statusErr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	var cancelErr *scheduler.CancelReminderError
	if errors.As(err, &cancelErr) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	s.log.Error("request failed", slog.String("path", c.Path()), slog.String("error", err.Error()))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

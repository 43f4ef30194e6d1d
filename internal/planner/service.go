// Package planner exposes the core entry points on public (encoded) ids:
// template expansion, project instantiation, event/event-template
// reconciliation, and the reminder scheduling that follows each committed
// mutation.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nhle/plannerd/internal/ident"
	"github.com/nhle/plannerd/internal/model"
	"github.com/nhle/plannerd/internal/scheduler"
	"github.com/nhle/plannerd/internal/store"
)

// Service wires the store, the codec registry, and the scheduler into the
// request-scoped operations callers use. It holds no mutable state of its
// own; the relational store is the only shared resource.
type Service struct {
	store *store.SQLiteStore
	ids   *ident.Registry
	sched *scheduler.Scheduler
	log   *slog.Logger
}

// New creates a Service.
func New(s *store.SQLiteStore, ids *ident.Registry, sched *scheduler.Scheduler, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: s, ids: ids, sched: sched, log: log}
}

// IDs returns the codec registry, for callers rendering public ids.
func (s *Service) IDs() *ident.Registry {
	return s.ids
}

// CreateProjectInput is the shell of a new project, with the source template
// referenced by its public id.
type CreateProjectInput struct {
	Name        string
	Description string
	StartsAt    time.Time
	TemplateID  *string
}

// CreateProject instantiates a project, optionally expanding a template
// graph, then schedules every eligible new reminder. The instantiation is
// atomic; scheduling happens after commit, so a ScheduleReminderError is
// returned ALONGSIDE the committed graph — the project exists even when the
// error is non-nil.
func (s *Service) CreateProject(ctx context.Context, userID int64, input CreateProjectInput) (*model.ProjectGraph, error) {
	storeInput := store.CreateProjectInput{
		Name:        input.Name,
		Description: input.Description,
		StartsAt:    input.StartsAt,
	}
	if input.TemplateID != nil {
		id, err := s.ids.Decode(ident.NSProjectTemplate, *input.TemplateID)
		if err != nil {
			return nil, err
		}
		storeInput.TemplateID = &id
	}

	graph, err := s.store.InstantiateProject(ctx, userID, storeInput)
	if err != nil {
		return nil, err
	}

	var reminders []model.Reminder
	for _, ev := range graph.Events {
		reminders = append(reminders, ev.Reminders...)
	}

	if schedErr := s.scheduleAndPersist(ctx, reminders, graph); schedErr != nil {
		return graph, schedErr
	}
	return graph, nil
}

// ExpandTemplate materializes a template graph by its public id.
func (s *Service) ExpandTemplate(ctx context.Context, userID int64, templateID string) (*model.TemplateGraph, error) {
	id, err := s.ids.Decode(ident.NSProjectTemplate, templateID)
	if err != nil {
		return nil, err
	}
	return s.store.ExpandTemplate(ctx, userID, id)
}

// ReconcileEvent applies a patch to an event, cancels runs made stale by the
// edit, and schedules the reminders whose delivery changed. The
// reconciliation itself commits before any runner call; a
// ScheduleReminderError is returned alongside the committed event.
func (s *Service) ReconcileEvent(ctx context.Context, userID int64, eventID string, patch model.EventPatch) (*model.ExpandedEvent, error) {
	id, err := s.ids.Decode(ident.NSEvent, eventID)
	if err != nil {
		return nil, err
	}

	result, err := s.store.ReconcileEvent(ctx, userID, id, patch)
	if err != nil {
		return nil, err
	}

	// Stale handles first: a rescheduled reminder is cancel-then-submit.
	if len(result.StaleRunIDs) > 0 {
		s.sched.CancelAll(ctx, result.StaleRunIDs)
	}

	event := result.Event
	if schedErr := s.scheduleAndPersistEvent(ctx, result.NeedsScheduling, &event); schedErr != nil {
		return &event, schedErr
	}
	return &event, nil
}

// ReconcileEventTemplate applies a patch to an event template. Templates
// have no scheduled runs, so no runner traffic follows.
func (s *Service) ReconcileEventTemplate(ctx context.Context, userID int64, eventTemplateID string, patch model.EventTemplatePatch) (*model.ExpandedEventTemplate, error) {
	id, err := s.ids.Decode(ident.NSEventTemplate, eventTemplateID)
	if err != nil {
		return nil, err
	}
	return s.store.ReconcileEventTemplate(ctx, userID, id, patch)
}

// DeleteEvent removes an event and best-effort cancels its scheduled runs.
func (s *Service) DeleteEvent(ctx context.Context, userID int64, eventID string) error {
	id, err := s.ids.Decode(ident.NSEvent, eventID)
	if err != nil {
		return err
	}
	runIDs, err := s.store.DeleteEvent(ctx, userID, id)
	if err != nil {
		return err
	}
	s.sched.CancelAll(ctx, runIDs)
	return nil
}

// DeleteProject removes a project graph and best-effort cancels its
// scheduled runs.
func (s *Service) DeleteProject(ctx context.Context, userID int64, projectID string) error {
	id, err := s.ids.Decode(ident.NSProject, projectID)
	if err != nil {
		return err
	}
	runIDs, err := s.store.DeleteProject(ctx, userID, id)
	if err != nil {
		return err
	}
	s.sched.CancelAll(ctx, runIDs)
	return nil
}

// scheduleAndPersist schedules the given reminders and writes each issued
// run handle back onto its row and into the in-memory graph.
func (s *Service) scheduleAndPersist(ctx context.Context, reminders []model.Reminder, graph *model.ProjectGraph) error {
	scheduled, err := s.sched.Schedule(ctx, reminders)
	if err != nil {
		return err
	}
	for _, sc := range scheduled {
		if err := s.persistRunID(ctx, sc); err != nil {
			return err
		}
		for ei := range graph.Events {
			setRunID(graph.Events[ei].Reminders, sc)
		}
	}
	return nil
}

// scheduleAndPersistEvent is scheduleAndPersist scoped to one event.
func (s *Service) scheduleAndPersistEvent(ctx context.Context, reminders []model.Reminder, event *model.ExpandedEvent) error {
	scheduled, err := s.sched.Schedule(ctx, reminders)
	if err != nil {
		return err
	}
	for _, sc := range scheduled {
		if err := s.persistRunID(ctx, sc); err != nil {
			return err
		}
		setRunID(event.Reminders, sc)
	}
	return nil
}

func (s *Service) persistRunID(ctx context.Context, sc scheduler.Scheduled) error {
	if err := s.store.SetReminderRunID(ctx, sc.Reminder.ID, sc.RunID); err != nil {
		return fmt.Errorf("persisting run handle for reminder %d: %w", sc.Reminder.ID, err)
	}
	return nil
}

// setRunID copies a freshly issued run handle onto the matching in-memory
// reminder, if present.
func setRunID(reminders []model.Reminder, sc scheduler.Scheduled) {
	for i := range reminders {
		if reminders[i].ID == sc.Reminder.ID {
			runID := sc.RunID
			reminders[i].RunID = &runID
			return
		}
	}
}

// IsScheduleFailure reports whether err is a post-commit scheduling failure,
// i.e. the mutation saved but the external runner state may be inconsistent.
func IsScheduleFailure(err error) bool {
	var target *scheduler.ScheduleReminderError
	return errors.As(err, &target)
}

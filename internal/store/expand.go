package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nhle/plannerd/internal/ident"
	"github.com/nhle/plannerd/internal/model"
)

// ExpandTemplate materializes a template graph: the template row plus every
// event template with its reminder templates and tags. One wide query joins
// event templates against both child tables and the rows are partitioned
// client-side by event-template id, so expansion never degrades into
// per-child queries. Read-only.
func (s *SQLiteStore) ExpandTemplate(
	ctx context.Context,
	userID int64,
	templateID int64,
) (*model.TemplateGraph, error) {
	if err := s.VerifyOwnership(ctx, userID, ident.NSProjectTemplate, []int64{templateID}); err != nil {
		return nil, err
	}

	template, err := s.GetProjectTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	// The cross product of reminders × tags per event template is fine:
	// both sets are small, and one round trip beats N+1 child queries.
	rows, err := s.db.QueryxContext(ctx, `
		SELECT
			et.id, et.project_template_id, et.name, et.offset_days,
			et.duration, et.note, et.event_type, et.auto_reschedule,
			rt.id, rt.days_before, rt.time_of_day,
			rt.email_notifications, rt.desktop_notifications,
			tg.id, tg.name
		FROM event_templates et
		LEFT JOIN reminder_templates rt ON rt.event_template_id = et.id
		LEFT JOIN event_template_tags lk ON lk.event_template_id = et.id
		LEFT JOIN tags tg ON tg.id = lk.tag_id
		WHERE et.project_template_id = ?
		ORDER BY et.id, rt.id, lk.rowid`,
		templateID)
	if err != nil {
		return nil, fmt.Errorf("querying template graph %d: %w", templateID, err)
	}
	defer rows.Close()

	graph := &model.TemplateGraph{Template: *template, Events: []model.ExpandedEventTemplate{}}

	// index of event-template id → position in graph.Events; seen-sets
	// dedupe the join's cross product while keeping first-seen order.
	index := make(map[int64]int)
	seenReminders := make(map[int64]map[int64]struct{})
	seenTags := make(map[int64]map[int64]struct{})

	for rows.Next() {
		var (
			et          model.EventTemplate
			autoInt     int
			rtID        sql.NullInt64
			rtDays      sql.NullInt64
			rtTime      sql.NullString
			rtEmail     sql.NullInt64
			rtDesktop   sql.NullInt64
			tagID       sql.NullInt64
			tagName     sql.NullString
		)

		err := rows.Scan(
			&et.ID, &et.ProjectTemplateID, &et.Name, &et.OffsetDays,
			&et.Duration, &et.Note, &et.EventType, &autoInt,
			&rtID, &rtDays, &rtTime, &rtEmail, &rtDesktop,
			&tagID, &tagName,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning template graph row: %w", err)
		}
		et.AutoReschedule = autoInt != 0

		pos, ok := index[et.ID]
		if !ok {
			pos = len(graph.Events)
			index[et.ID] = pos
			graph.Events = append(graph.Events, model.ExpandedEventTemplate{
				EventTemplate: et,
				Reminders:     []model.ReminderTemplate{},
				Tags:          []model.Tag{},
			})
			seenReminders[et.ID] = make(map[int64]struct{})
			seenTags[et.ID] = make(map[int64]struct{})
		}

		if rtID.Valid {
			if _, dup := seenReminders[et.ID][rtID.Int64]; !dup {
				seenReminders[et.ID][rtID.Int64] = struct{}{}
				graph.Events[pos].Reminders = append(graph.Events[pos].Reminders, model.ReminderTemplate{
					ID:                   rtID.Int64,
					EventTemplateID:      et.ID,
					DaysBefore:           int(rtDays.Int64),
					TimeOfDay:            rtTime.String,
					EmailNotifications:   rtEmail.Int64 != 0,
					DesktopNotifications: rtDesktop.Int64 != 0,
				})
			}
		}

		if tagID.Valid {
			if _, dup := seenTags[et.ID][tagID.Int64]; !dup {
				seenTags[et.ID][tagID.Int64] = struct{}{}
				graph.Events[pos].Tags = append(graph.Events[pos].Tags, model.Tag{
					ID:     tagID.Int64,
					UserID: userID,
					Name:   tagName.String,
				})
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading template graph rows: %w", err)
	}

	return graph, nil
}

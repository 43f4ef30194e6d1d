package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/plannerd/internal/ident"
	"github.com/nhle/plannerd/internal/model"
)

// ownershipChains maps each namespace to the join from users down to the
// target table. Every chain selects COUNT(DISTINCT t.id) for the given user
// and id set; t always aliases the target table. Provenance columns never
// appear here: ownership is resolved through the live parent chain only.
var ownershipChains = map[ident.Namespace]string{
	ident.NSProjectTemplate: `
		SELECT COUNT(DISTINCT t.id) FROM project_templates t
		WHERE t.user_id = ? AND t.id IN (?)`,
	ident.NSEventTemplate: `
		SELECT COUNT(DISTINCT t.id) FROM event_templates t
		INNER JOIN project_templates pt ON t.project_template_id = pt.id
		WHERE pt.user_id = ? AND t.id IN (?)`,
	ident.NSReminderTemplate: `
		SELECT COUNT(DISTINCT t.id) FROM reminder_templates t
		INNER JOIN event_templates et ON t.event_template_id = et.id
		INNER JOIN project_templates pt ON et.project_template_id = pt.id
		WHERE pt.user_id = ? AND t.id IN (?)`,
	ident.NSProject: `
		SELECT COUNT(DISTINCT t.id) FROM projects t
		WHERE t.user_id = ? AND t.id IN (?)`,
	ident.NSEvent: `
		SELECT COUNT(DISTINCT t.id) FROM events t
		INNER JOIN projects p ON t.project_id = p.id
		WHERE p.user_id = ? AND t.id IN (?)`,
	ident.NSReminder: `
		SELECT COUNT(DISTINCT t.id) FROM reminders t
		INNER JOIN events e ON t.event_id = e.id
		INNER JOIN projects p ON e.project_id = p.id
		WHERE p.user_id = ? AND t.id IN (?)`,
	ident.NSTag: `
		SELECT COUNT(DISTINCT t.id) FROM tags t
		WHERE t.user_id = ? AND t.id IN (?)`,
}

// VerifyOwnership checks that every id in ids is transitively owned by
// userID, using one join query per call. A short count means some id is
// absent or unowned (DoesNotExistError); a long count means the schema or
// query invariant is broken (AssertionError, a bug signal).
func (s *SQLiteStore) VerifyOwnership(
	ctx context.Context,
	userID int64,
	ns ident.Namespace,
	ids []int64,
) error {
	return verifyOwnership(ctx, s.db, userID, ns, ids)
}

// queryer is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx that
// ownership checks need.
type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func verifyOwnership(
	ctx context.Context,
	q queryer,
	userID int64,
	ns ident.Namespace,
	ids []int64,
) error {
	if len(ids) == 0 {
		return &model.AssertionError{Message: "ownership check on empty id set"}
	}

	chain, ok := ownershipChains[ns]
	if !ok {
		return &model.AssertionError{Message: fmt.Sprintf("no ownership chain for namespace %q", ns)}
	}

	distinct := dedupeIDs(ids)

	query, args, err := sqlx.In(chain, userID, distinct)
	if err != nil {
		return fmt.Errorf("expanding ownership query for %s: %w", ns, err)
	}

	var count int
	if err := q.GetContext(ctx, &count, query, args...); err != nil {
		return fmt.Errorf("verifying %s ownership: %w", ns, err)
	}

	switch {
	case count < len(distinct):
		return &model.DoesNotExistError{Entity: string(ns)}
	case count > len(distinct):
		return &model.AssertionError{Message: fmt.Sprintf(
			"%s ownership join returned %d rows for %d ids", ns, count, len(distinct),
		)}
	}
	return nil
}

// dedupeIDs returns ids with duplicates removed, first-seen order preserved.
func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/plannerd/internal/ident"
	"github.com/nhle/plannerd/internal/model"
)

// tag link tables, keyed by the parent kind they attach to.
const (
	eventTagTable         = "event_tags"
	eventTagParent        = "event_id"
	eventTemplateTagTable = "event_template_tags"
	eventTemplateParent   = "event_template_id"
)

// ensureTags finds or creates one tag row per name for userID, idempotently
// keyed on the (user_id, name) unique index. The returned tags preserve the
// order of names; duplicate and empty names are skipped.
func ensureTags(ctx context.Context, tx *sqlx.Tx, userID int64, names []string) ([]model.Tag, error) {
	tags := make([]model.Tag, 0, len(names))
	seen := make(map[string]struct{}, len(names))

	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO tags (user_id, name) VALUES (?, ?)",
			userID, name); err != nil {
			return nil, fmt.Errorf("ensuring tag %q: %w", name, err)
		}

		var tag model.Tag
		if err := tx.GetContext(ctx, &tag,
			"SELECT * FROM tags WHERE user_id = ? AND name = ?",
			userID, name); err != nil {
			return nil, fmt.Errorf("loading tag %q: %w", name, err)
		}
		tags = append(tags, tag)
	}

	return tags, nil
}

// relinkTags clears every tag link for the parent row and bulk re-links the
// given tags. Tag sets are small, so clear-and-rebuild beats maintaining a
// set diff.
func relinkTags(
	ctx context.Context,
	tx *sqlx.Tx,
	table, parentCol string,
	parentID int64,
	tags []model.Tag,
) error {
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, parentCol),
		parentID); err != nil {
		return fmt.Errorf("clearing %s: %w", table, err)
	}

	if len(tags) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(tags))
	args := make([]interface{}, 0, 2*len(tags))
	for _, tag := range tags {
		placeholders = append(placeholders, "(?, ?)")
		args = append(args, parentID, tag.ID)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s, tag_id) VALUES %s",
		table, parentCol, strings.Join(placeholders, ", "))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("linking %s: %w", table, err)
	}

	return nil
}

// tagsForParent loads the tags linked to one parent row, in link insertion
// order (rowid order on the link table).
func tagsForParent(
	ctx context.Context,
	q queryer2,
	table, parentCol string,
	parentID int64,
) ([]model.Tag, error) {
	query := fmt.Sprintf(`
		SELECT t.* FROM tags t
		INNER JOIN %s lk ON t.id = lk.tag_id
		WHERE lk.%s = ?
		ORDER BY lk.rowid`, table, parentCol)

	var tags []model.Tag
	if err := q.SelectContext(ctx, &tags, query, parentID); err != nil {
		return nil, fmt.Errorf("querying tags for %s %d: %w", parentCol, parentID, err)
	}
	return tags, nil
}

// queryer2 is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx that list
// queries need.
type queryer2 interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// GetTagsForEvent retrieves the tags linked to an event.
func (s *SQLiteStore) GetTagsForEvent(ctx context.Context, eventID int64) ([]model.Tag, error) {
	return tagsForParent(ctx, s.db, eventTagTable, eventTagParent, eventID)
}

// GetTagsForEventTemplate retrieves the tags linked to an event template.
func (s *SQLiteStore) GetTagsForEventTemplate(ctx context.Context, eventTemplateID int64) ([]model.Tag, error) {
	return tagsForParent(ctx, s.db, eventTemplateTagTable, eventTemplateParent, eventTemplateID)
}

// SetEventTemplateTags replaces the tag set of an event template with the
// named tags, creating missing tag rows for the owner.
func (s *SQLiteStore) SetEventTemplateTags(
	ctx context.Context,
	userID int64,
	eventTemplateID int64,
	names []string,
) ([]model.Tag, error) {
	if err := s.VerifyOwnership(ctx, userID, ident.NSEventTemplate, []int64{eventTemplateID}); err != nil {
		return nil, err
	}

	var tags []model.Tag
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		tags, err = ensureTags(ctx, tx, userID, names)
		if err != nil {
			return err
		}
		return relinkTags(ctx, tx, eventTemplateTagTable, eventTemplateParent, eventTemplateID, tags)
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

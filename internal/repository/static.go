package repository

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/debemdeboas/folio/internal/db"
	"github.com/debemdeboas/folio/internal/model"
)

func (s *PostStore) isStaticGroup(group model.StaticGroup) bool {
	return s.groupSet[group]
}

// staticMembers returns the ids of a group in display order.
func staticMembers(ctx context.Context, q db.Querier, group model.StaticGroup) ([]model.PostID, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id FROM posts WHERE static_group = ? ORDER BY static_rank, id`, group)
	if err != nil {
		return nil, fmt.Errorf("error querying static group %s: %w", group, err)
	}
	defer rows.Close()

	ids := make([]model.PostID, 0)
	for rows.Next() {
		var id model.PostID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning static member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// placeAfter removes id from order and reinserts it right after the page
// after, or at the head when after is nil. The caller has checked that after
// is a member.
func placeAfter(order []model.PostID, id model.PostID, after *model.PostID) []model.PostID {
	if after != nil && *after == id && slices.Contains(order, id) {
		return order
	}

	order = slices.DeleteFunc(slices.Clone(order), func(m model.PostID) bool { return m == id })
	at := 0
	if after != nil {
		at = slices.Index(order, *after) + 1
	}
	return slices.Insert(order, at, id)
}

// writeRanks assigns ranks 0..n-1 to the members of group following order.
// Rows already holding their rank are left untouched.
func writeRanks(ctx context.Context, tx *sql.Tx, group model.StaticGroup, order []model.PostID) error {
	for rank, id := range order {
		_, err := tx.ExecContext(ctx,
			`UPDATE posts SET static_group = ?, static_rank = ?
			WHERE id = ? AND (static_group IS NOT ? OR static_rank IS NOT ?)`,
			group, rank, id, group, rank,
		)
		if err != nil {
			return fmt.Errorf("error ranking %s in %s: %w", id, group, err)
		}
	}
	return nil
}

// renormalize closes the gaps left in group after a member was removed.
func renormalize(ctx context.Context, tx *sql.Tx, group model.StaticGroup) error {
	order, err := staticMembers(ctx, tx, group)
	if err != nil {
		return err
	}
	return writeRanks(ctx, tx, group, order)
}

// GetAllStaticPages returns every configured group with its members in
// display order. Groups without members map to an empty slice.
func (s *PostStore) GetAllStaticPages(ctx context.Context) (model.StaticPages, error) {
	pages := make(model.StaticPages, len(s.groups))
	for _, g := range s.groups {
		pages[g] = make([]model.Post, 0)
	}

	posts, err := s.queryPosts(ctx, s.db.Get(),
		`SELECT `+postColumns+` FROM posts WHERE static_group IS NOT NULL ORDER BY static_group, static_rank, id`)
	if err != nil {
		return nil, err
	}

	for _, p := range posts {
		if _, ok := pages[*p.StaticGroup]; !ok {
			// Group removed from the configuration since the post was published.
			repoLogger.Warn().
				Str("post_id", string(p.ID)).
				Str("group", string(*p.StaticGroup)).
				Msg("Static page in unconfigured group")
			continue
		}
		pages[*p.StaticGroup] = append(pages[*p.StaticGroup], p)
	}
	return pages, nil
}

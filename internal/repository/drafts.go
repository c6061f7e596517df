package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/debemdeboas/folio/internal/db"
	"github.com/debemdeboas/folio/internal/model"
)

const draftColumns = `id, post_id, title, content, created_at, updated_at`

// Drafts are ordered by creation time, then by insertion order for drafts
// created within the same instant.
const newestDraftFirst = `ORDER BY created_at DESC, rowid DESC`

func (s *PostStore) scanDraft(row scanner) (*model.Draft, error) {
	var (
		draft   model.Draft
		content []byte
	)
	if err := row.Scan(&draft.ID, &draft.PostID, &draft.Title, &content, &draft.CreatedAt, &draft.UpdatedAt); err != nil {
		return nil, err
	}
	draft.CreatedAt = draft.CreatedAt.UTC()
	draft.UpdatedAt = draft.UpdatedAt.UTC()

	var err error
	if draft.Content, err = s.decompress(content); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (s *PostStore) insertDraft(ctx context.Context, tx *sql.Tx, draft *model.Draft) error {
	compressed, err := s.compress(draft.Content)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO drafts (id, post_id, title, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		draft.ID, draft.PostID, draft.Title, compressed, draft.CreatedAt, draft.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving draft: %w", err)
	}
	return nil
}

// newestDraft returns nil when the post has no drafts.
func (s *PostStore) newestDraft(ctx context.Context, q db.Querier, postID model.PostID) (*model.Draft, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE post_id = ? `+newestDraftFirst+` LIMIT 1`, postID)
	draft, err := s.scanDraft(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading newest draft of %s: %w", postID, err)
	}
	return draft, nil
}

func (s *PostStore) getDraft(ctx context.Context, q db.Querier, id model.DraftID) (*model.Draft, error) {
	row := q.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id = ?`, id)
	draft, err := s.scanDraft(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: draft %s", model.ErrPostNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading draft %s: %w", id, err)
	}
	return draft, nil
}

func setWorkingTitle(ctx context.Context, tx *sql.Tx, postID model.PostID, title string, suggestedLocation *string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE posts SET working_title = ?, suggested_location = COALESCE(?, suggested_location) WHERE id = ?`,
		title, nullString(suggestedLocation), postID,
	)
	if err != nil {
		return fmt.Errorf("error updating working title: %w", err)
	}
	return nil
}

// AppendDraft records an edit. The newest draft is rewritten in place when it
// is not the published draft and was created less than the coalescing window
// ago; otherwise a new draft is appended.
func (s *PostStore) AppendDraft(ctx context.Context, postID model.PostID, title string, content []byte, suggestedLocation *string) (*model.Draft, error) {
	now := s.Now()

	var result *model.Draft
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		post, err := s.getPost(ctx, tx, postID)
		if err != nil {
			return err
		}

		latest, err := s.newestDraft(ctx, tx, postID)
		if err != nil {
			return err
		}

		if latest != nil && !post.IsPublishedDraft(latest.ID) && now.Sub(latest.CreatedAt) < s.coalesceWindow {
			compressed, err := s.compress(content)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx,
				`UPDATE drafts SET title = ?, content = ?, updated_at = ? WHERE id = ?`,
				title, compressed, now, latest.ID,
			)
			if err != nil {
				return fmt.Errorf("error updating draft: %w", err)
			}
			latest.Title = title
			latest.Content = content
			latest.UpdatedAt = now
			result = latest
		} else {
			result = &model.Draft{
				ID:        newDraftID(),
				PostID:    postID,
				Title:     title,
				Content:   content,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.insertDraft(ctx, tx, result); err != nil {
				return err
			}
		}

		return setWorkingTitle(ctx, tx, postID, title, suggestedLocation)
	})
	if err != nil {
		return nil, err
	}

	repoLogger.Debug().
		Str("post_id", string(postID)).
		Str("draft_id", string(result.ID)).
		Msg("Draft saved")
	return result, nil
}

// RestoreDraft appends a copy of the given draft as the newest version of its
// post. It never coalesces.
func (s *PostStore) RestoreDraft(ctx context.Context, draftID model.DraftID) (*model.Draft, error) {
	now := s.Now()

	var restored *model.Draft
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		source, err := s.getDraft(ctx, tx, draftID)
		if err != nil {
			return err
		}

		restored = &model.Draft{
			ID:        newDraftID(),
			PostID:    source.PostID,
			Title:     source.Title,
			Content:   source.Content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.insertDraft(ctx, tx, restored); err != nil {
			return err
		}
		return setWorkingTitle(ctx, tx, source.PostID, source.Title, nil)
	})
	if err != nil {
		return nil, err
	}

	repoLogger.Info().
		Str("post_id", string(restored.PostID)).
		Str("from_draft_id", string(draftID)).
		Str("draft_id", string(restored.ID)).
		Msg("Draft restored")
	return restored, nil
}

func (s *PostStore) GetNewestDraft(ctx context.Context, postID model.PostID) (*model.Draft, error) {
	draft, err := s.newestDraft(ctx, s.db.Get(), postID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, fmt.Errorf("%w: no drafts for %s", model.ErrPostNotFound, postID)
	}
	return draft, nil
}

func (s *PostStore) GetDraft(ctx context.Context, id model.DraftID) (*model.Draft, error) {
	return s.getDraft(ctx, s.db.Get(), id)
}

// GetDrafts returns the draft history of a post, newest first.
func (s *PostStore) GetDrafts(ctx context.Context, postID model.PostID) ([]model.Draft, error) {
	return s.getDrafts(ctx, s.db.Get(), postID)
}

func (s *PostStore) getDrafts(ctx context.Context, q db.Querier, postID model.PostID) ([]model.Draft, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE post_id = ? `+newestDraftFirst, postID)
	if err != nil {
		return nil, fmt.Errorf("error querying drafts: %w", err)
	}
	defer rows.Close()

	drafts := make([]model.Draft, 0)
	for rows.Next() {
		draft, err := s.scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning draft: %w", err)
		}
		drafts = append(drafts, *draft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drafts: %w", err)
	}
	return drafts, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/debemdeboas/folio/internal/model"
	"github.com/debemdeboas/folio/internal/util"
)

// PublishParams describes a publish of one draft. Exactly one of URL and
// StaticGroup must be set.
type PublishParams struct {
	PostID  model.PostID
	DraftID model.DraftID

	PublishedAt   time.Time
	RepublishedAt *time.Time

	Title   string
	Content []byte
	Summary string

	URL *string

	StaticGroup *model.StaticGroup
	// AfterPageID places the post right after this member of StaticGroup.
	// Nil places it at the head of the group.
	AfterPageID *model.PostID

	PublishedImages []model.PublishedImage
}

func (p *PublishParams) validate() error {
	if (p.URL == nil) == (p.StaticGroup == nil) {
		return model.ErrInvalidPublishTarget
	}
	return nil
}

// PublishPost makes a draft live, either at a url or inside a static group.
// Another post holding the url loses it. Everything happens in one
// transaction.
func (s *PostStore) PublishPost(ctx context.Context, params PublishParams) (*model.Post, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if params.StaticGroup != nil && !s.isStaticGroup(*params.StaticGroup) {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownStaticGroup, *params.StaticGroup)
	}

	content, err := s.compress(params.Content)
	if err != nil {
		return nil, err
	}

	var published *model.Post
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		post, err := s.getPost(ctx, tx, params.PostID)
		if err != nil {
			return err
		}

		draft, err := s.getDraft(ctx, tx, params.DraftID)
		if err != nil {
			return err
		}
		if draft.PostID != post.ID {
			return fmt.Errorf("%w: draft %s does not belong to post %s", model.ErrPostNotFound, draft.ID, post.ID)
		}

		if params.URL != nil {
			if err := s.demoteURLHolder(ctx, tx, post, *params.URL); err != nil {
				return err
			}
		}

		var (
			group *model.StaticGroup
			rank  sql.NullInt64
			order []model.PostID
		)
		if params.StaticGroup != nil {
			group = params.StaticGroup
			order, err = staticOrderFor(ctx, tx, *group, post.ID, params.AfterPageID)
			if err != nil {
				return err
			}
			for i, id := range order {
				if id == post.ID {
					rank = sql.NullInt64{Int64: int64(i), Valid: true}
				}
			}
		}

		var groupArg sql.NullString
		if group != nil {
			groupArg = sql.NullString{String: string(*group), Valid: true}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE posts SET url = ?, static_group = ?, static_rank = ?, draft_id = ?,
			published_at = ?, republished_at = ?, title = ?, content = ?, summary = ?
			WHERE id = ?`,
			nullString(params.URL), groupArg, rank, params.DraftID,
			params.PublishedAt.UTC(), nullTime(params.RepublishedAt), params.Title, content, params.Summary,
			post.ID,
		)
		if err != nil {
			return fmt.Errorf("error publishing post %s: %w", post.ID, err)
		}

		if group != nil {
			if err := writeRanks(ctx, tx, *group, order); err != nil {
				return err
			}
		}
		if post.StaticGroup != nil && (group == nil || *group != *post.StaticGroup) {
			if err := renormalize(ctx, tx, *post.StaticGroup); err != nil {
				return err
			}
		}

		if err := publishImages(ctx, tx, post.ID, params.PublishedImages); err != nil {
			return err
		}

		published, err = s.getPost(ctx, tx, post.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	event := repoLogger.Info().
		Str("post_id", string(published.ID)).
		Str("draft_id", string(params.DraftID))
	if published.URL != nil {
		event = event.Str("url", *published.URL)
	} else {
		event = event.Str("group", string(*published.StaticGroup))
	}
	event.Int("images", len(params.PublishedImages)).Msg("Post published")

	return published, nil
}

// demoteURLHolder takes url away from whichever other post holds it.
func (s *PostStore) demoteURLHolder(ctx context.Context, tx *sql.Tx, post *model.Post, url string) error {
	if post.URL != nil && *post.URL == url {
		return nil
	}

	var holder model.PostID
	err := tx.QueryRowContext(ctx, `SELECT id FROM posts WHERE url = ? AND id != ?`, url, post.ID).Scan(&holder)
	if isNoRows(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error looking up url %q: %w", url, err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE posts SET url = NULL, published_at = NULL, republished_at = NULL WHERE id = ?`, holder)
	if err != nil {
		return fmt.Errorf("error demoting post %s: %w", holder, err)
	}

	repoLogger.Info().
		Str("post_id", string(holder)).
		Str("url", url).
		Str("new_holder", string(post.ID)).
		Msg("Post lost its url")
	return nil
}

// staticOrderFor computes the order of group once id is placed after the page
// after.
func staticOrderFor(ctx context.Context, tx *sql.Tx, group model.StaticGroup, id model.PostID, after *model.PostID) ([]model.PostID, error) {
	members, err := staticMembers(ctx, tx, group)
	if err != nil {
		return nil, err
	}

	if after != nil {
		found := false
		for _, m := range members {
			if m == *after {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s is not in %s", model.ErrUnknownAfterPageID, *after, group)
		}
	}

	return placeAfter(members, id, after), nil
}

// publishImages resets the publication flags of the post's images and marks
// the listed ones as published under their final filenames. Unlisted images
// already holding one of those names are renamed out of the way.
func publishImages(ctx context.Context, tx *sql.Tx, postID model.PostID, listed []model.PublishedImage) error {
	if _, err := tx.ExecContext(ctx, `UPDATE images SET published = 0 WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("error clearing published images: %w", err)
	}
	if len(listed) == 0 {
		return nil
	}

	names, order, err := imageFilenames(ctx, tx, postID)
	if err != nil {
		return err
	}

	final := make(map[model.ImageID]string, len(listed))
	reserved := make(map[string]bool, len(listed))
	for _, img := range listed {
		current, ok := names[img.ImageID]
		if !ok {
			return fmt.Errorf("%w: %s in post %s", model.ErrImageNotFound, img.ImageID, postID)
		}
		if _, dup := final[img.ImageID]; dup {
			continue
		}
		want := img.Filename
		if want == "" {
			want = current
		}
		name := util.DisambiguateFilename(want, func(n string) bool { return reserved[n] })
		final[img.ImageID] = name
		reserved[name] = true
	}

	// Names that stay put once the listed images are renamed.
	kept := make(map[string]bool, len(names))
	for id, name := range names {
		if _, ok := final[id]; !ok && !reserved[name] {
			kept[name] = true
		}
	}
	for _, id := range order {
		name := names[id]
		if _, ok := final[id]; ok || !reserved[name] {
			continue
		}
		renamed := util.DisambiguateFilename(name, func(n string) bool { return reserved[n] || kept[n] })
		final[id] = renamed
		kept[renamed] = true
		repoLogger.Debug().
			Str("image_id", string(id)).
			Str("from", name).
			Str("to", renamed).
			Msg("Renamed unpublished image")
	}

	// Two passes so swapped names never collide on UNIQUE(post_id, filename).
	for id, name := range final {
		if names[id] == name {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE images SET filename = ? WHERE id = ?`, string(id), id); err != nil {
			return fmt.Errorf("error renaming image %s: %w", id, err)
		}
	}
	for id, name := range final {
		if names[id] == name {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE images SET filename = ? WHERE id = ?`, name, id); err != nil {
			return fmt.Errorf("error renaming image %s: %w", id, err)
		}
	}

	for _, img := range listed {
		_, err := tx.ExecContext(ctx,
			`UPDATE images SET published = 1, mimetype = CASE WHEN ? = '' THEN mimetype ELSE ? END WHERE id = ?`,
			img.Mimetype, img.Mimetype, img.ImageID,
		)
		if err != nil {
			return fmt.Errorf("error publishing image %s: %w", img.ImageID, err)
		}
	}
	return nil
}

// UnPublishPost takes a post offline. Its drafts, published snapshot and
// images are kept.
func (s *PostStore) UnPublishPost(ctx context.Context, id model.PostID) error {
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		post, err := s.getPost(ctx, tx, id)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE posts SET url = NULL, static_group = NULL, static_rank = NULL,
			published_at = NULL, republished_at = NULL WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("error unpublishing post %s: %w", id, err)
		}

		if post.StaticGroup != nil {
			return renormalize(ctx, tx, *post.StaticGroup)
		}
		return nil
	})
	if err != nil {
		return err
	}

	repoLogger.Info().Str("post_id", string(id)).Msg("Post unpublished")
	return nil
}

// DeletePost removes a post with its drafts and images. Offloaded image
// blobs are removed once the rows are gone.
func (s *PostStore) DeletePost(ctx context.Context, id model.PostID) error {
	var blobKeys []string
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		post, err := s.getPost(ctx, tx, id)
		if err != nil {
			return err
		}

		blobKeys, err = imageBlobKeys(ctx, tx, id)
		if err != nil {
			return err
		}

		for _, stmt := range []string{
			`DELETE FROM images WHERE post_id = ?`,
			`DELETE FROM drafts WHERE post_id = ?`,
			`DELETE FROM posts WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("error deleting post %s: %w", id, err)
			}
		}

		if post.StaticGroup != nil {
			return renormalize(ctx, tx, *post.StaticGroup)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.deleteBlobs(ctx, blobKeys)
	repoLogger.Info().Str("post_id", string(id)).Int("offloaded_images", len(blobKeys)).Msg("Post deleted")
	return nil
}

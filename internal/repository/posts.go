package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/debemdeboas/folio/internal/db"
	"github.com/debemdeboas/folio/internal/model"
)

const postColumns = `id, working_title, suggested_location, title, url, static_group, draft_id,
	published_at, republished_at, summary, content, created_at`

func (s *PostStore) scanPost(row scanner) (*model.Post, error) {
	var (
		post                       model.Post
		url, group, draftID        sql.NullString
		publishedAt, republishedAt sql.NullTime
		content                    []byte
	)

	err := row.Scan(&post.ID, &post.WorkingTitle, &post.SuggestedLocation, &post.Title, &url, &group, &draftID,
		&publishedAt, &republishedAt, &post.Summary, &content, &post.CreatedAt)
	if err != nil {
		return nil, err
	}

	if url.Valid {
		post.URL = &url.String
	}
	if group.Valid {
		g := model.StaticGroup(group.String)
		post.StaticGroup = &g
	}
	if draftID.Valid {
		d := model.DraftID(draftID.String)
		post.DraftID = &d
	}
	if publishedAt.Valid {
		t := publishedAt.Time.UTC()
		post.PublishedAt = &t
	}
	if republishedAt.Valid {
		t := republishedAt.Time.UTC()
		post.RepublishedAt = &t
	}
	post.CreatedAt = post.CreatedAt.UTC()

	if post.Content, err = s.decompress(content); err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *PostStore) queryPosts(ctx context.Context, q db.Querier, query string, args ...any) ([]model.Post, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0)
	for rows.Next() {
		post, err := s.scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning post: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}
	return posts, nil
}

// getPost loads a post through q, translating a missing row into ErrPostNotFound.
func (s *PostStore) getPost(ctx context.Context, q db.Querier, id model.PostID) (*model.Post, error) {
	row := q.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	post, err := s.scanPost(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: %s", model.ErrPostNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading post %s: %w", id, err)
	}
	return post, nil
}

// CreatePost inserts a post together with its first, empty draft.
func (s *PostStore) CreatePost(ctx context.Context, title, suggestedLocation string) (*model.Post, *model.Draft, error) {
	now := s.Now()

	post := &model.Post{
		ID:                newPostID(),
		WorkingTitle:      title,
		SuggestedLocation: suggestedLocation,
		Content:           []byte{},
		CreatedAt:         now,
	}
	draft := &model.Draft{
		ID:        newDraftID(),
		PostID:    post.ID,
		Title:     title,
		Content:   []byte{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO posts (id, working_title, suggested_location, created_at) VALUES (?, ?, ?, ?)`,
			post.ID, post.WorkingTitle, post.SuggestedLocation, post.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("error saving post: %w", err)
		}
		return s.insertDraft(ctx, tx, draft)
	})
	if err != nil {
		return nil, nil, err
	}

	repoLogger.Debug().Str("post_id", string(post.ID)).Str("title", title).Msg("Post created")
	return post, draft, nil
}

func (s *PostStore) GetPost(ctx context.Context, id model.PostID) (*model.Post, error) {
	return s.getPost(ctx, s.db.Get(), id)
}

// GetPostAndDrafts returns the post and its drafts, newest first, read in one
// transaction.
func (s *PostStore) GetPostAndDrafts(ctx context.Context, id model.PostID) (*model.PostAndDrafts, error) {
	var result *model.PostAndDrafts
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		post, err := s.getPost(ctx, tx, id)
		if err != nil {
			return err
		}
		drafts, err := s.getDrafts(ctx, tx, id)
		if err != nil {
			return err
		}
		result = &model.PostAndDrafts{Post: *post, Drafts: drafts}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// limitArg maps a non-positive limit to SQLite's "no limit".
func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func offsetArg(skip int) int {
	if skip < 0 {
		return 0
	}
	return skip
}

// GetPosts lists every post, most recently created first.
func (s *PostStore) GetPosts(ctx context.Context, skip, limit int) ([]model.Post, error) {
	return s.queryPosts(ctx, s.db.Get(),
		`SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		limitArg(limit), offsetArg(skip),
	)
}

// GetPublishedPosts lists posts published to a url, most recently published first.
func (s *PostStore) GetPublishedPosts(ctx context.Context, skip, limit int) ([]model.Post, error) {
	return s.queryPosts(ctx, s.db.Get(),
		`SELECT `+postColumns+` FROM posts WHERE url IS NOT NULL
		ORDER BY published_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		limitArg(limit), offsetArg(skip),
	)
}

func (s *PostStore) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := s.db.Get().QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting posts: %w", err)
	}
	return n, nil
}

func (s *PostStore) CountPublishedPosts(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM posts WHERE url IS NOT NULL`)
}

func (s *PostStore) CountAllPosts(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM posts`)
}

func (s *PostStore) GetPostFromURL(ctx context.Context, url string) (*model.Post, error) {
	post, err := s.GetPostFromURLOrNil(ctx, url)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, fmt.Errorf("%w: url %q", model.ErrPostNotFound, url)
	}
	return post, nil
}

// GetPostFromURLOrNil returns nil without an error when no post holds url.
func (s *PostStore) GetPostFromURLOrNil(ctx context.Context, url string) (*model.Post, error) {
	row := s.db.Get().QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE url = ?`, url)
	post, err := s.scanPost(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading post for url %q: %w", url, err)
	}
	return post, nil
}

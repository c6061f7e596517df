// Package model defines the records owned by the publication store.
package model

import (
	"time"
)

type PostID string

type DraftID string

type ImageID string

type Post struct {
	ID PostID

	// WorkingTitle mirrors the title of the newest draft.
	WorkingTitle      string
	SuggestedLocation string

	// Published snapshot. URL and StaticGroup are mutually exclusive; the
	// index post is the one holding the empty URL.
	Title         string
	URL           *string
	StaticGroup   *StaticGroup
	DraftID       *DraftID
	PublishedAt   *time.Time
	RepublishedAt *time.Time
	Summary       string
	Content       []byte

	CreatedAt time.Time
}

// IsPublished reports whether the post is reachable either by URL or through a
// static group.
func (p *Post) IsPublished() bool {
	return p.URL != nil || p.StaticGroup != nil
}

// IsIndex reports whether the post is published as the site index.
func (p *Post) IsIndex() bool {
	return p.URL != nil && *p.URL == ""
}

// IsPublishedDraft reports whether id is the draft currently live for the post.
func (p *Post) IsPublishedDraft(id DraftID) bool {
	return p.DraftID != nil && *p.DraftID == id
}

type Draft struct {
	ID     DraftID
	PostID PostID

	Title   string
	Content []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostAndDrafts is a post together with its draft history, newest first.
type PostAndDrafts struct {
	Post   Post
	Drafts []Draft
}

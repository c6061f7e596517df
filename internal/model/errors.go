package model

import "errors"

var (
	ErrPostNotFound         = errors.New("post not found")
	ErrUnknownStaticGroup   = errors.New("unknown static group")
	ErrUnknownAfterPageID   = errors.New("unknown after page id")
	ErrInvalidPublishTarget = errors.New("exactly one of url or static group must be set")

	ErrImageNotFound = errors.New("image not found")
)

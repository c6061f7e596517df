// Package repository implements the post, draft, image and static page store
// on top of SQLite.
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/debemdeboas/folio/internal/clock"
	"github.com/debemdeboas/folio/internal/config"
	"github.com/debemdeboas/folio/internal/db"
	"github.com/debemdeboas/folio/internal/model"
	"github.com/debemdeboas/folio/internal/util/compression"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var repoLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

const DefaultCoalesceWindow = 5 * time.Minute

var DefaultStaticGroups = []model.StaticGroup{model.StaticGroupHeader, model.StaticGroupFooter}

type Options struct {
	Clock      clock.Clock
	Compressor compression.Compressor

	// Blobs offloads image variants. Nil keeps them in the images table.
	Blobs BlobStore

	CoalesceWindow time.Duration
	StaticGroups   []model.StaticGroup
}

// OptionsFromConfig translates the store section of cfg. The blob store is
// left for the caller to attach.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	compressor, err := compression.New(cfg.Store.Compression)
	if err != nil {
		return Options{}, err
	}

	groups := make([]model.StaticGroup, 0, len(cfg.Store.StaticGroups))
	for _, g := range cfg.Store.StaticGroups {
		groups = append(groups, model.StaticGroup(g))
	}

	return Options{
		Clock:          clock.System{},
		Compressor:     compressor,
		CoalesceWindow: cfg.Store.CoalesceWindow,
		StaticGroups:   groups,
	}, nil
}

type PostStore struct {
	db         db.DB
	clock      clock.Clock
	compressor compression.Compressor
	blobs      BlobStore

	coalesceWindow time.Duration
	groups         []model.StaticGroup
	groupSet       map[model.StaticGroup]bool
}

func NewPostStore(database db.DB, opts Options) *PostStore {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Compressor == nil {
		opts.Compressor = compression.ZstdCompressor{}
	}
	if opts.CoalesceWindow == 0 {
		opts.CoalesceWindow = DefaultCoalesceWindow
	}
	if len(opts.StaticGroups) == 0 {
		opts.StaticGroups = DefaultStaticGroups
	}

	groupSet := make(map[model.StaticGroup]bool, len(opts.StaticGroups))
	for _, g := range opts.StaticGroups {
		groupSet[g] = true
	}

	return &PostStore{
		db:         database,
		clock:      opts.Clock,
		compressor: opts.Compressor,
		blobs:      opts.Blobs,

		coalesceWindow: opts.CoalesceWindow,
		groups:         opts.StaticGroups,
		groupSet:       groupSet,
	}
}

// StaticGroups returns the configured groups in declaration order.
func (s *PostStore) StaticGroups() []model.StaticGroup {
	return append([]model.StaticGroup(nil), s.groups...)
}

// Now reads the store's clock in UTC.
func (s *PostStore) Now() time.Time {
	return s.clock.Now().UTC()
}

func newPostID() model.PostID {
	return model.PostID(uuid.New().String())
}

func newDraftID() model.DraftID {
	return model.DraftID(uuid.New().String())
}

func newImageID() model.ImageID {
	return model.ImageID(uuid.New().String())
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *PostStore) compress(content []byte) ([]byte, error) {
	compressed, err := s.compressor.Compress(content)
	if err != nil {
		return nil, fmt.Errorf("error compressing content: %w", err)
	}
	return compressed, nil
}

func (s *PostStore) decompress(content []byte) ([]byte, error) {
	if len(content) == 0 {
		return []byte{}, nil
	}
	out, err := s.compressor.Decompress(content)
	if err != nil {
		return nil, fmt.Errorf("error decompressing content: %w", err)
	}
	return out, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.UTC(), Valid: true}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// prefixColumns qualifies every column of a comma separated list with prefix.
func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, c := range parts {
		parts[i] = prefix + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}

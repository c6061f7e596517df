package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/debemdeboas/folio/internal/clock"
	"github.com/debemdeboas/folio/internal/config"
	"github.com/debemdeboas/folio/internal/db"
	"github.com/debemdeboas/folio/internal/model"
	"github.com/debemdeboas/folio/internal/util/compression"
	"github.com/rs/zerolog"
)

var testStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type testStore struct {
	*PostStore
	db    *db.SQLite
	clock *clock.Mock
}

func newTestStore(t *testing.T, opts ...func(*Options)) *testStore {
	t.Helper()
	quiet := zerolog.New(os.Stdout).Level(zerolog.ErrorLevel)
	SetLogger(quiet)
	db.SetLogger(quiet)

	database := db.NewSQLite(db.Options{Path: filepath.Join(t.TempDir(), "store.db")})
	if err := database.InitDB(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	mock := clock.NewMock(testStart)
	o := Options{Clock: mock}
	for _, opt := range opts {
		opt(&o)
	}

	return &testStore{
		PostStore: NewPostStore(database, o),
		db:        database,
		clock:     mock,
	}
}

// memBlobs is an in-memory BlobStore.
type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (m *memBlobs) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memBlobs) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return data, nil
}

func (m *memBlobs) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.objects, k)
	}
	return nil
}

func (m *memBlobs) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func withBlobs(b BlobStore) func(*Options) {
	return func(o *Options) { o.Blobs = b }
}

func strPtr(s string) *string { return &s }

func groupPtr(g model.StaticGroup) *model.StaticGroup { return &g }

func idPtr(id model.PostID) *model.PostID { return &id }

func mustCreate(t *testing.T, s *testStore, title string) (*model.Post, *model.Draft) {
	t.Helper()
	post, draft, err := s.CreatePost(context.Background(), title, "")
	if err != nil {
		t.Fatalf("CreatePost(%q) failed: %v", title, err)
	}
	return post, draft
}

func publishURL(t *testing.T, s *testStore, title, url string) *model.Post {
	t.Helper()
	post, draft := mustCreate(t, s, title)
	published, err := s.PublishPost(context.Background(), PublishParams{
		PostID:      post.ID,
		DraftID:     draft.ID,
		PublishedAt: s.clock.Now(),
		Title:       title,
		Content:     []byte("<p>" + title + "</p>"),
		URL:         strPtr(url),
	})
	if err != nil {
		t.Fatalf("PublishPost(%q, %q) failed: %v", title, url, err)
	}
	return published
}

func publishStatic(t *testing.T, s *testStore, title string, group model.StaticGroup, after *model.PostID) *model.Post {
	t.Helper()
	post, draft := mustCreate(t, s, title)
	published, err := s.PublishPost(context.Background(), PublishParams{
		PostID:      post.ID,
		DraftID:     draft.ID,
		PublishedAt: s.clock.Now(),
		Title:       title,
		StaticGroup: groupPtr(group),
		AfterPageID: after,
	})
	if err != nil {
		t.Fatalf("PublishPost(%q, %s) failed: %v", title, group, err)
	}
	return published
}

func TestNewPostStoreDefaults(t *testing.T) {
	s := NewPostStore(db.NewSQLite(db.Options{}), Options{})

	if s.coalesceWindow != DefaultCoalesceWindow {
		t.Errorf("Expected window %v, got %v", DefaultCoalesceWindow, s.coalesceWindow)
	}
	if _, ok := s.clock.(clock.System); !ok {
		t.Errorf("Expected system clock, got %T", s.clock)
	}
	if _, ok := s.compressor.(compression.ZstdCompressor); !ok {
		t.Errorf("Expected zstd compressor, got %T", s.compressor)
	}
	groups := s.StaticGroups()
	if len(groups) != 2 || groups[0] != model.StaticGroupHeader || groups[1] != model.StaticGroupFooter {
		t.Errorf("Unexpected default groups: %v", groups)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Store.Compression = "gzip"
	cfg.Store.StaticGroups = []string{"nav"}
	cfg.Store.CoalesceWindow = time.Minute

	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig failed: %v", err)
	}
	if _, ok := opts.Compressor.(compression.GzipCompressor); !ok {
		t.Errorf("Expected gzip compressor, got %T", opts.Compressor)
	}
	if len(opts.StaticGroups) != 1 || opts.StaticGroups[0] != "nav" {
		t.Errorf("Unexpected groups: %v", opts.StaticGroups)
	}
	if opts.CoalesceWindow != time.Minute {
		t.Errorf("Expected 1m window, got %v", opts.CoalesceWindow)
	}

	cfg.Store.Compression = "lz4"
	if _, err := OptionsFromConfig(cfg); err == nil {
		t.Error("Expected unknown compression to fail")
	}
}

func TestCreatePost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	post, draft, err := s.CreatePost(ctx, "Hello", "blog")
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	if post.WorkingTitle != "Hello" || post.SuggestedLocation != "blog" {
		t.Errorf("Unexpected post: %+v", post)
	}
	if post.IsPublished() {
		t.Error("Expected new post to be unpublished")
	}
	if draft.PostID != post.ID || draft.Title != "Hello" || len(draft.Content) != 0 {
		t.Errorf("Unexpected initial draft: %+v", draft)
	}

	got, err := s.GetPostAndDrafts(ctx, post.ID)
	if err != nil {
		t.Fatalf("GetPostAndDrafts failed: %v", err)
	}
	if got.Post.ID != post.ID || !got.Post.CreatedAt.Equal(testStart) {
		t.Errorf("Unexpected stored post: %+v", got.Post)
	}
	if len(got.Drafts) != 1 || got.Drafts[0].ID != draft.ID {
		t.Errorf("Expected the initial draft, got %+v", got.Drafts)
	}
}

func TestGetPostNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetPost(ctx, "missing"); !errors.Is(err, model.ErrPostNotFound) {
		t.Errorf("GetPost: expected ErrPostNotFound, got %v", err)
	}
	if _, err := s.GetPostAndDrafts(ctx, "missing"); !errors.Is(err, model.ErrPostNotFound) {
		t.Errorf("GetPostAndDrafts: expected ErrPostNotFound, got %v", err)
	}
	if _, err := s.GetPostFromURL(ctx, "nowhere"); !errors.Is(err, model.ErrPostNotFound) {
		t.Errorf("GetPostFromURL: expected ErrPostNotFound, got %v", err)
	}

	post, err := s.GetPostFromURLOrNil(ctx, "nowhere")
	if err != nil || post != nil {
		t.Errorf("GetPostFromURLOrNil: expected nil, nil; got %v, %v", post, err)
	}
}

func TestListingAndCounting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := publishURL(t, s, "First", "first")
	s.clock.Advance(time.Minute)
	mustCreate(t, s, "Unpublished")
	s.clock.Advance(time.Minute)
	index := publishURL(t, s, "Index", "")
	s.clock.Advance(time.Minute)
	publishStatic(t, s, "About", model.StaticGroupHeader, nil)

	all, err := s.GetPosts(ctx, 0, 0)
	if err != nil {
		t.Fatalf("GetPosts failed: %v", err)
	}
	titles := make([]string, 0, len(all))
	for _, p := range all {
		titles = append(titles, p.WorkingTitle)
	}
	if fmt.Sprint(titles) != "[About Index Unpublished First]" {
		t.Errorf("Unexpected post order: %v", titles)
	}

	page, err := s.GetPosts(ctx, 1, 2)
	if err != nil {
		t.Fatalf("GetPosts with paging failed: %v", err)
	}
	if len(page) != 2 || page[0].WorkingTitle != "Index" || page[1].WorkingTitle != "Unpublished" {
		t.Errorf("Unexpected page: %+v", page)
	}

	published, err := s.GetPublishedPosts(ctx, 0, 10)
	if err != nil {
		t.Fatalf("GetPublishedPosts failed: %v", err)
	}
	if len(published) != 2 || published[0].ID != index.ID || published[1].ID != first.ID {
		t.Errorf("Unexpected published posts: %+v", published)
	}
	if !published[0].IsIndex() {
		t.Error("Expected the empty url to mark the index post")
	}

	tests := []struct {
		name  string
		count func(context.Context) (int, error)
		want  int
	}{
		{"published", s.CountPublishedPosts, 2},
		{"all", s.CountAllPosts, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tt.count(ctx)
			if err != nil {
				t.Fatalf("Count failed: %v", err)
			}
			if n != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, n)
			}
		})
	}

	got, err := s.GetPostFromURL(ctx, "first")
	if err != nil || got.ID != first.ID {
		t.Errorf("GetPostFromURL(first) = %v, %v", got, err)
	}
	if string(got.Content) != "<p>First</p>" {
		t.Errorf("Expected published content to round-trip, got %q", got.Content)
	}
}

func TestPrefixColumns(t *testing.T) {
	got := prefixColumns("i.", "id, post_id,\n\thash")
	if got != "i.id, i.post_id, i.hash" {
		t.Errorf("Unexpected columns: %q", got)
	}
}

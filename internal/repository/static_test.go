package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/debemdeboas/folio/internal/model"
)

func TestPlaceAfter(t *testing.T) {
	ids := func(s ...string) []model.PostID {
		out := make([]model.PostID, 0, len(s))
		for _, v := range s {
			out = append(out, model.PostID(v))
		}
		return out
	}

	tests := []struct {
		name  string
		order []model.PostID
		id    model.PostID
		after *model.PostID
		want  []model.PostID
	}{
		{"insert at head of empty", ids(), "x", nil, ids("x")},
		{"insert at head", ids("a", "b"), "x", nil, ids("x", "a", "b")},
		{"insert after middle", ids("a", "b", "c"), "x", idPtr("b"), ids("a", "b", "x", "c")},
		{"insert after last", ids("a", "b"), "x", idPtr("b"), ids("a", "b", "x")},
		{"move forward", ids("x", "a", "b"), "x", idPtr("b"), ids("a", "b", "x")},
		{"move backward", ids("a", "b", "x"), "x", idPtr("a"), ids("a", "x", "b")},
		{"move to head", ids("a", "x", "b"), "x", nil, ids("x", "a", "b")},
		{"after own predecessor", ids("a", "x", "b"), "x", idPtr("a"), ids("a", "x", "b")},
		{"after itself", ids("a", "x", "b"), "x", idPtr("x"), ids("a", "x", "b")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := fmt.Sprint(tt.order)
			got := placeAfter(tt.order, tt.id, tt.after)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
			if fmt.Sprint(tt.order) != original {
				t.Errorf("Input order was modified: %v", tt.order)
			}
		})
	}
}

func staticIDs(t *testing.T, s *testStore, group model.StaticGroup) []model.PostID {
	t.Helper()
	pages, err := s.GetAllStaticPages(context.Background())
	if err != nil {
		t.Fatalf("GetAllStaticPages failed: %v", err)
	}
	return pages.IDs(group)
}

// assertDenseRanks checks that the ranks of group are exactly 0..n-1.
func assertDenseRanks(t *testing.T, s *testStore, group model.StaticGroup) {
	t.Helper()
	rows, err := s.db.Get().Query(`SELECT static_rank FROM posts WHERE static_group = ? ORDER BY static_rank`, group)
	if err != nil {
		t.Fatalf("Failed to query ranks: %v", err)
	}
	defer rows.Close()

	want := 0
	for rows.Next() {
		var rank int
		if err := rows.Scan(&rank); err != nil {
			t.Fatalf("Failed to scan rank: %v", err)
		}
		if rank != want {
			t.Errorf("Expected rank %d in %s, got %d", want, group, rank)
		}
		want++
	}
}

func assertOrder(t *testing.T, s *testStore, group model.StaticGroup, want ...model.PostID) {
	t.Helper()
	got := staticIDs(t, s, group)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Expected %s order %v, got %v", group, want, got)
	}
	assertDenseRanks(t, s, group)
}

func TestGetAllStaticPagesEmptyGroups(t *testing.T) {
	s := newTestStore(t)

	pages, err := s.GetAllStaticPages(context.Background())
	if err != nil {
		t.Fatalf("GetAllStaticPages failed: %v", err)
	}
	for _, g := range []model.StaticGroup{model.StaticGroupHeader, model.StaticGroupFooter} {
		list, ok := pages[g]
		if !ok {
			t.Errorf("Expected group %s to be present", g)
		}
		if len(list) != 0 {
			t.Errorf("Expected group %s to be empty, got %d", g, len(list))
		}
	}
}

func TestStaticInsertAndMove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	header := model.StaticGroupHeader

	p3 := publishStatic(t, s, "P3", header, nil)
	p2 := publishStatic(t, s, "P2", header, nil)
	p1 := publishStatic(t, s, "P1", header, nil)
	assertOrder(t, s, header, p1.ID, p2.ID, p3.ID)

	post, draft := mustCreate(t, s, "New")
	publish := func(after *model.PostID) {
		t.Helper()
		_, err := s.PublishPost(ctx, PublishParams{
			PostID:      post.ID,
			DraftID:     draft.ID,
			PublishedAt: s.clock.Now(),
			StaticGroup: &header,
			AfterPageID: after,
		})
		if err != nil {
			t.Fatalf("PublishPost failed: %v", err)
		}
	}

	t.Run("insert after member", func(t *testing.T) {
		publish(idPtr(p2.ID))
		assertOrder(t, s, header, p1.ID, p2.ID, post.ID, p3.ID)
	})

	t.Run("move after another member", func(t *testing.T) {
		publish(idPtr(p1.ID))
		assertOrder(t, s, header, p1.ID, post.ID, p2.ID, p3.ID)
	})

	t.Run("republish in place", func(t *testing.T) {
		publish(idPtr(p1.ID))
		assertOrder(t, s, header, p1.ID, post.ID, p2.ID, p3.ID)
	})

	t.Run("after itself", func(t *testing.T) {
		publish(idPtr(post.ID))
		assertOrder(t, s, header, p1.ID, post.ID, p2.ID, p3.ID)
	})

	t.Run("move to head", func(t *testing.T) {
		publish(nil)
		assertOrder(t, s, header, post.ID, p1.ID, p2.ID, p3.ID)
	})

	t.Run("other group untouched", func(t *testing.T) {
		assertOrder(t, s, model.StaticGroupFooter)
	})
}

func TestStaticMoveBetweenGroups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	header, footer := model.StaticGroupHeader, model.StaticGroupFooter

	a := publishStatic(t, s, "A", header, nil)
	b := publishStatic(t, s, "B", header, idPtr(a.ID))
	c := publishStatic(t, s, "C", header, idPtr(b.ID))
	f := publishStatic(t, s, "F", footer, nil)

	_, err := s.PublishPost(ctx, PublishParams{
		PostID:      b.ID,
		DraftID:     *b.DraftID,
		PublishedAt: s.clock.Now(),
		StaticGroup: &footer,
		AfterPageID: idPtr(f.ID),
	})
	if err != nil {
		t.Fatalf("PublishPost failed: %v", err)
	}

	assertOrder(t, s, header, a.ID, c.ID)
	assertOrder(t, s, footer, f.ID, b.ID)
}

func TestStaticPublishErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	header, footer := model.StaticGroupHeader, model.StaticGroupFooter

	member := publishStatic(t, s, "Member", header, nil)
	inFooter := publishStatic(t, s, "Footer", footer, nil)
	post, draft := mustCreate(t, s, "New")

	tests := []struct {
		name  string
		group model.StaticGroup
		after *model.PostID
		want  error
	}{
		{"unknown group", "sidebar", nil, model.ErrUnknownStaticGroup},
		{"unknown after page", header, idPtr("missing"), model.ErrUnknownAfterPageID},
		{"after page in other group", header, idPtr(inFooter.ID), model.ErrUnknownAfterPageID},
		{"after itself while not a member", header, idPtr(post.ID), model.ErrUnknownAfterPageID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group := tt.group
			_, err := s.PublishPost(ctx, PublishParams{
				PostID:      post.ID,
				DraftID:     draft.ID,
				PublishedAt: s.clock.Now(),
				StaticGroup: &group,
				AfterPageID: tt.after,
			})
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}

			got, _ := s.GetPost(ctx, post.ID)
			if got.IsPublished() {
				t.Errorf("Expected post to stay unpublished, got %+v", got)
			}
			assertOrder(t, s, header, member.ID)
		})
	}
}

func TestUnPublishRenormalizes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	header := model.StaticGroupHeader

	c := publishStatic(t, s, "C", header, nil)
	b := publishStatic(t, s, "B", header, nil)
	a := publishStatic(t, s, "A", header, nil)

	if err := s.UnPublishPost(ctx, b.ID); err != nil {
		t.Fatalf("UnPublishPost failed: %v", err)
	}
	assertOrder(t, s, header, a.ID, c.ID)

	got, _ := s.GetPost(ctx, b.ID)
	if got.IsPublished() || got.PublishedAt != nil || got.RepublishedAt != nil {
		t.Errorf("Expected publication fields to be cleared, got %+v", got)
	}
}

package relation

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/snackoverflow/snack-gateway/types"
	"github.com/snackoverflow/snack-gateway/world"
)

func TestExtractID(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"full url", "https://snack.example.com/api/authors/0b30cd12-1d4c-43d7-be88-bdbf139f1c35", "0b30cd12-1d4c-43d7-be88-bdbf139f1c35"},
		{"trailing slash", "https://snack.example.com/api/authors/u2/", "u2"},
		{"bare uuid", "u1", "u1"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ExtractID(c.in); got != c.want {
				t.Errorf("ExtractID(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestResolveButton(t *testing.T) {
	sets := Sets{
		Followings:      SetOfIDs([]string{"https://snack.example.com/api/authors/followed"}),
		PendingIncoming: SetOfIDs([]string{"asker", "followed"}),
		PendingOutgoing: SetOfIDs([]string{"requested"}),
	}

	cases := []struct {
		name   string
		owner  bool
		target string
		want   ButtonState
	}{
		{"owner sees followed target as Following", true, "followed", Following},
		{"owner sees incoming request as Request", true, "asker", Request},
		{"precedence: followings wins over incoming request", true, "followed", Following},
		{"owner with unrelated target gets None", true, "stranger", None},
		{"non-owner with unrelated target gets Follow", false, "stranger", Follow},
		{"non-owner with pending outgoing request gets None", false, "requested", None},
		{"non-owner already following gets None", false, "followed", None},
		{"full url targets are reduced to the uuid", true, "https://other.host/api/authors/followed", Following},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ResolveButton(c.owner, c.target, sets); got != c.want {
				t.Errorf("ResolveButton(%v, %q) = %q, want %q", c.owner, c.target, got, c.want)
			}
		})
	}
}

func post(id, visibility string, published time.Time) types.Post {
	return types.Post{ID: id, Visibility: visibility, Published: published}
}

func TestVisiblePosts(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p1 := post("p1", world.VisibilityPublic, base.Add(2*time.Hour))
	p2 := post("p2", world.VisibilityFriends, base.Add(time.Hour))
	p3 := post("p3", world.VisibilityUnlisted, base)

	friends := SetOfIDs([]string{"u1"})
	posts := []types.Post{p3, p1, p2} // deliberately unsorted

	t.Run("friend sees public and friends posts in published order", func(t *testing.T) {
		got := VisiblePosts("u1", false, friends, posts)
		want := []types.Post{p1, p2}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Error(diff)
		}
	})

	t.Run("stranger sees public posts only", func(t *testing.T) {
		got := VisiblePosts("u9", false, friends, posts)
		want := []types.Post{p1}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Error(diff)
		}
	})

	t.Run("unlisted posts never appear for non-owners", func(t *testing.T) {
		for _, viewer := range []string{"u1", "u9"} {
			for _, got := range VisiblePosts(viewer, false, friends, posts) {
				if got.Visibility == world.VisibilityUnlisted {
					t.Errorf("viewer %s was shown unlisted post %s", viewer, got.ID)
				}
			}
		}
	})

	t.Run("owner sees everything sorted", func(t *testing.T) {
		got := VisiblePosts("owner", true, friends, posts)
		want := []types.Post{p1, p2, p3}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Error(diff)
		}
	})

	t.Run("filter is idempotent", func(t *testing.T) {
		once := VisiblePosts("u1", false, friends, posts)
		twice := VisiblePosts("u1", false, friends, once)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Error(diff)
		}
	})

	t.Run("input order does not leak through", func(t *testing.T) {
		shuffled := []types.Post{p2, p3, p1}
		got := VisiblePosts("u1", false, friends, shuffled)
		want := []types.Post{p1, p2}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Error(diff)
		}
	})
}

package bridge

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/snackoverflow/snack-gateway/types"
	"github.com/snackoverflow/snack-gateway/world"
)

func event(id, typ, repo, login string) types.GithubEvent {
	return types.GithubEvent{
		ID:    id,
		Type:  typ,
		Actor: types.GithubActor{Login: login},
		Repo:  types.GithubRepo{Name: repo},
	}
}

func TestSelectNew(t *testing.T) {
	// GitHub serves newest first.
	feed := []types.GithubEvent{
		event("5", "PushEvent", "alice/app", "alice"),
		event("4", "WatchEvent", "bob/lib", "alice"),
		event("3", "PushEvent", "alice/app", "alice"),
		event("2", "ForkEvent", "bob/lib", "alice"),
		event("1", "PushEvent", "alice/app", "alice"),
	}

	tests := []struct {
		name     string
		lastSeen string
		want     []string
	}{
		{"first ever poll takes everything", "", []string{"1", "2", "3", "4", "5"}},
		{"stops at the marker", "3", []string{"4", "5"}},
		{"marker at head means nothing new", "5", nil},
		{"marker absent from feed takes everything", "0", []string{"1", "2", "3", "4", "5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fresh := SelectNew(feed, tt.lastSeen)
			var got []string
			for _, e := range fresh {
				got = append(got, e.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SelectNew mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSelectNewEmptyFeed(t *testing.T) {
	if got := SelectNew(nil, "3"); len(got) != 0 {
		t.Errorf("expected no events, got %v", got)
	}
}

func TestEventToPost(t *testing.T) {
	user := types.Author{
		ID:          "https://snack.example.com/api/authors/u1",
		DisplayName: "Alice Liddell",
	}
	draft := EventToPost(user, event("42", "PushEvent", "alice/wonderland", "alice-gh"))

	if draft.Title != "Github PushEvent" {
		t.Errorf("title = %q", draft.Title)
	}
	if draft.ContentType != world.ContentTypeMarkdown {
		t.Errorf("contentType = %q", draft.ContentType)
	}
	if draft.Visibility != world.VisibilityPublic {
		t.Errorf("visibility = %q", draft.Visibility)
	}
	for _, fragment := range []string{"Alice Liddell", "alice-gh", "alice/wonderland"} {
		if !strings.Contains(draft.Content, fragment) {
			t.Errorf("content %q missing %q", draft.Content, fragment)
		}
	}
}

func TestRenderMarkdown(t *testing.T) {
	got := RenderMarkdown("**bold** and [link](https://example.com)")
	if !strings.Contains(got, "<strong>bold</strong>") {
		t.Errorf("rendered = %q", got)
	}
	if !strings.Contains(got, `<a href="https://example.com"`) {
		t.Errorf("rendered = %q", got)
	}
}

func TestHTMLToMarkdown(t *testing.T) {
	got, err := HTMLToMarkdown(strings.NewReader(`<p>hello <a href="https://example.com">there</a></p>`))
	if err != nil {
		t.Fatal(err)
	}
	got = strings.Trim(got, "\n")
	want := "hello [there](https://example.com)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

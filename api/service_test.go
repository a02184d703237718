package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/snackoverflow/snack-gateway/apiclient"
	"github.com/snackoverflow/snack-gateway/relation"
	"github.com/snackoverflow/snack-gateway/session"
	"github.com/snackoverflow/snack-gateway/types"
)

func collection(items any) []byte {
	payload, _ := json.Marshal(map[string]any{"type": "collection", "items": items})
	return payload
}

func author(host, id, name string) types.Author {
	return types.Author{
		ID:          host + "/api/authors/" + id,
		DisplayName: name,
	}
}

// fakeUpstream serves the slice of the Snack Overflow REST API the profile
// and notification views read from.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/authors/u2":
			json.NewEncoder(w).Encode(author(server.URL, "u2", "Bob"))
		case "/authors/u2/posts":
			now := time.Now()
			w.Write(collection([]types.Post{
				{ID: "p-old", Title: "old", Visibility: "PUBLIC", Published: now.Add(-2 * time.Hour)},
				{ID: "p-friends", Title: "secret", Visibility: "FRIENDS", Published: now.Add(-time.Hour)},
				{ID: "p-unlisted", Title: "hidden", Visibility: "UNLISTED", Published: now.Add(-30 * time.Minute)},
				{ID: "p-new", Title: "new", Visibility: "PUBLIC", Published: now},
			}))
		case "/authors/u1/followings":
			w.Write(collection([]types.Author{author(server.URL, "u3", "Carol")}))
		case "/authors/u1/inbox":
			w.Write(collection([]map[string]any{
				{"type": "Follow", "summary": "Carol wants to follow you",
					"author": author(server.URL, "u3", "Carol"), "object": author(server.URL, "u1", "Alice")},
				{"type": "like", "summary": "Bob likes your post",
					"author": author(server.URL, "u2", "Bob"), "object": server.URL + "/api/authors/u1/posts/p9"},
				{"type": "Mystery", "summary": "should be dropped"},
			}))
		case "/authors/u2/posts/p-friends":
			json.NewEncoder(w).Encode(types.Post{ID: "p-friends", Visibility: "FRIENDS"})
		default:
			// every other relationship listing is empty
			w.Write(collection([]types.Author{}))
		}
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestService(t *testing.T, upstream *httptest.Server) *Service {
	t.Helper()

	config := types.GatewayConfig{APIBase: upstream.URL + "/", FQDN: "snackgw.example.com"}
	// nothing listens on this port; cache misses fall through to the API
	client, err := apiclient.NewClient(memcache.New("127.0.0.1:1"), config, nil)
	if err != nil {
		t.Fatal(err)
	}

	manager := session.NewManager(session.NewMemoryKV())
	if err := manager.Login(context.Background(), author(upstream.URL, "u1", "Alice")); err != nil {
		t.Fatal(err)
	}

	return NewService(nil, client, manager, config)
}

func TestGetProfileVisibilityAndButton(t *testing.T) {
	upstream := fakeUpstream(t)
	service := newTestService(t, upstream)

	view, err := service.GetProfile(context.Background(), "u2")
	if err != nil {
		t.Fatal(err)
	}

	// u1 neither follows u2 nor has a pending request, so the card offers
	// a follow action
	if view.Button != relation.Follow {
		t.Errorf("button = %v, want %v", view.Button, relation.Follow)
	}

	// a non-friend viewer sees public posts only, newest first
	if len(view.Posts) != 2 {
		t.Fatalf("visible posts = %d, want 2", len(view.Posts))
	}
	if view.Posts[0].ID != "p-new" || view.Posts[1].ID != "p-old" {
		t.Errorf("post order = %v, %v", view.Posts[0].ID, view.Posts[1].ID)
	}
}

func TestNotificationsDropsUnknownKinds(t *testing.T) {
	upstream := fakeUpstream(t)
	service := newTestService(t, upstream)

	notifications, err := service.Notifications(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(notifications) != 2 {
		t.Fatalf("notifications = %d, want 2", len(notifications))
	}
	if notifications[0].Kind != "Follow" || notifications[1].Kind != "Like" {
		t.Errorf("kinds = %v, %v", notifications[0].Kind, notifications[1].Kind)
	}
}

func TestSharePostRejectsNonPublic(t *testing.T) {
	upstream := fakeUpstream(t)
	service := newTestService(t, upstream)

	_, err := service.SharePost(context.Background(), "u2", "p-friends")
	if err == nil {
		t.Fatal("sharing a FRIENDS post must fail")
	}
}

func TestOperationsRequireSession(t *testing.T) {
	upstream := fakeUpstream(t)
	service := newTestService(t, upstream)

	if err := service.session.Logout(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := service.GetProfile(context.Background(), "u2"); err != ErrNotLoggedIn {
		t.Errorf("GetProfile error = %v, want ErrNotLoggedIn", err)
	}
	if err := service.Follow(context.Background(), "u2"); err != ErrNotLoggedIn {
		t.Errorf("Follow error = %v, want ErrNotLoggedIn", err)
	}
}

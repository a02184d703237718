package worker

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/snackoverflow/snack-gateway/githubclient"
	"github.com/snackoverflow/snack-gateway/session"
	"github.com/snackoverflow/snack-gateway/types"
	"github.com/snackoverflow/snack-gateway/world"
)

var errMissing = errors.New("not found")

type fakeStore struct {
	mu       sync.Mutex
	states   map[string]types.SyncState
	settings map[string]types.UserSettings
	refs     map[string]types.EventReference
	cleared  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		states:   make(map[string]types.SyncState),
		settings: make(map[string]types.UserSettings),
		refs:     make(map[string]types.EventReference),
	}
}

func (f *fakeStore) GetSyncState(ctx context.Context, userID string) (types.SyncState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[userID]
	if !ok {
		return types.SyncState{}, errMissing
	}
	return state, nil
}

func (f *fakeStore) UpsertSyncState(ctx context.Context, state types.SyncState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[state.UserID] = state
	return nil
}

func (f *fakeStore) SetPollingActive(ctx context.Context, userID string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := f.states[userID]
	state.UserID = userID
	state.PollingActive = active
	f.states[userID] = state
	return nil
}

func (f *fakeStore) ClearSyncState(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, userID)
	f.cleared = append(f.cleared, userID)
	return nil
}

func (f *fakeStore) GetUserSettings(ctx context.Context, userID string) (types.UserSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	settings, ok := f.settings[userID]
	if !ok {
		return types.UserSettings{}, errMissing
	}
	return settings, nil
}

func (f *fakeStore) GetEventReferenceByEventID(ctx context.Context, eventID string) (types.EventReference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref, ok := f.refs[eventID]
	if !ok {
		return types.EventReference{}, errMissing
	}
	return ref, nil
}

func (f *fakeStore) CreateEventReference(ctx context.Context, reference types.EventReference) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs[reference.EventID] = reference
	return nil
}

type fakeGithub struct {
	mu      sync.Mutex
	events  []types.GithubEvent
	etag    string
	fetches int
}

func (f *fakeGithub) FetchEvents(ctx context.Context, username string, etag string) ([]types.GithubEvent, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if etag != "" && etag == f.etag {
		return nil, etag, githubclient.ErrNotModified
	}
	return f.events, f.etag, nil
}

func (f *fakeGithub) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type fakePoster struct {
	mu     sync.Mutex
	drafts []any
}

func (f *fakePoster) CreatePost(ctx context.Context, authorID string, draft any) (types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, draft)
	return types.Post{ID: "https://snack.example.com/api/authors/" + authorID + "/posts/p1"}, nil
}

var testUser = types.Author{
	ID:          "https://snack.example.com/api/authors/u1",
	DisplayName: "Alice",
	Github:      "https://github.com/alice",
}

func newTestWorker(store *fakeStore, github *fakeGithub, poster *fakePoster) *Worker {
	return NewWorker(session.NewMemoryKV(), store, github, poster, types.GatewayConfig{PollInterval: 1})
}

func TestPollOnceSyncsNewEventsOldestFirst(t *testing.T) {
	store := newFakeStore()
	github := &fakeGithub{
		etag: `W/"abc"`,
		events: []types.GithubEvent{
			{ID: "3", Type: "PushEvent", Repo: types.GithubRepo{Name: "alice/r3"}},
			{ID: "2", Type: "WatchEvent", Repo: types.GithubRepo{Name: "alice/r2"}},
			{ID: "1", Type: "PushEvent", Repo: types.GithubRepo{Name: "alice/r1"}},
		},
	}
	poster := &fakePoster{}
	w := newTestWorker(store, github, poster)

	if err := w.PollOnce(context.Background(), testUser, "alice"); err != nil {
		t.Fatal(err)
	}

	if len(poster.drafts) != 3 {
		t.Fatalf("created %d posts, want 3", len(poster.drafts))
	}
	for i, repo := range []string{"alice/r1", "alice/r2", "alice/r3"} {
		draft, ok := poster.drafts[i].(world.PostDraft)
		if !ok {
			t.Fatalf("post %d is a %T", i, poster.drafts[i])
		}
		if !strings.Contains(draft.Content, repo) {
			t.Errorf("post %d content %q, want mention of %s", i, draft.Content, repo)
		}
	}

	state, err := store.GetSyncState(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if state.LastSeenEventID != "3" {
		t.Errorf("lastSeenEventID = %q, want 3", state.LastSeenEventID)
	}
	if state.Etag != `W/"abc"` {
		t.Errorf("etag = %q", state.Etag)
	}
}

func TestPollOnceNotModifiedIsANoop(t *testing.T) {
	store := newFakeStore()
	store.states["u1"] = types.SyncState{UserID: "u1", LastSeenEventID: "3", Etag: `W/"abc"`}
	github := &fakeGithub{etag: `W/"abc"`}
	poster := &fakePoster{}
	w := newTestWorker(store, github, poster)

	if err := w.PollOnce(context.Background(), testUser, "alice"); err != nil {
		t.Fatal(err)
	}
	if len(poster.drafts) != 0 {
		t.Errorf("created %d posts on a 304", len(poster.drafts))
	}
	state, _ := store.GetSyncState(context.Background(), "u1")
	if state.LastSeenEventID != "3" {
		t.Errorf("lastSeenEventID moved to %q on a 304", state.LastSeenEventID)
	}
}

func TestPollOnceSkipsAlreadyMirroredEvents(t *testing.T) {
	store := newFakeStore()
	store.refs["2"] = types.EventReference{EventID: "2", PostID: "p2", UserID: "u1"}
	github := &fakeGithub{
		etag: `W/"abc"`,
		events: []types.GithubEvent{
			{ID: "2", Type: "PushEvent", Repo: types.GithubRepo{Name: "alice/r2"}},
			{ID: "1", Type: "PushEvent", Repo: types.GithubRepo{Name: "alice/r1"}},
		},
	}
	poster := &fakePoster{}
	w := newTestWorker(store, github, poster)

	if err := w.PollOnce(context.Background(), testUser, "alice"); err != nil {
		t.Fatal(err)
	}
	if len(poster.drafts) != 1 {
		t.Fatalf("created %d posts, want 1", len(poster.drafts))
	}
}

func TestPollOnceSingleFlight(t *testing.T) {
	store := newFakeStore()
	github := &fakeGithub{etag: `W/"abc"`}
	poster := &fakePoster{}
	w := newTestWorker(store, github, poster)

	w.mu.Lock()
	w.inFlight["u1"] = true
	w.mu.Unlock()

	if err := w.PollOnce(context.Background(), testUser, "alice"); err != nil {
		t.Fatal(err)
	}
	if github.fetchCount() != 0 {
		t.Errorf("overlapping cycle fetched %d times", github.fetchCount())
	}
}

func TestLogoutStopsPolling(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	github := &fakeGithub{etag: `W/"abc"`}
	poster := &fakePoster{}
	w := newTestWorker(store, github, poster)

	w.OnLogin(ctx, testUser)

	deadline := time.Now().Add(2 * time.Second)
	for github.fetchCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("poller never fetched after login")
		}
		time.Sleep(5 * time.Millisecond)
	}

	w.OnLogout(ctx, testUser)
	seen := github.fetchCount()

	// the next tick of the 1s interval must never fire
	time.Sleep(1300 * time.Millisecond)
	if got := github.fetchCount(); got != seen {
		t.Errorf("poller fetched %d times after logout, want %d", got, seen)
	}

	if len(store.cleared) != 1 || store.cleared[0] != "u1" {
		t.Errorf("sync state cleared for %v", store.cleared)
	}
}

func TestLoginWithoutGithubURLStaysIdle(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	github := &fakeGithub{}
	w := newTestWorker(store, github, &fakePoster{})

	user := testUser
	user.Github = ""
	w.OnLogin(ctx, user)

	time.Sleep(50 * time.Millisecond)
	if github.fetchCount() != 0 {
		t.Errorf("poller fetched without a github url")
	}
}

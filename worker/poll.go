package worker

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/snackoverflow/snack-gateway/bridge"
	"github.com/snackoverflow/snack-gateway/githubclient"
	"github.com/snackoverflow/snack-gateway/types"
	"github.com/snackoverflow/snack-gateway/world"
)

var tracer = otel.Tracer("worker")

const defaultPollInterval = 5 * time.Minute

func (w *Worker) interval() time.Duration {
	if w.config.PollInterval > 0 {
		return time.Duration(w.config.PollInterval) * time.Second
	}
	return defaultPollInterval
}

// githubUsername resolves the GitHub username to poll for a user, trying
// the gateway settings first and the profile field second.
func (w *Worker) githubUsername(ctx context.Context, user types.Author) (string, bool) {
	profileURL := user.Github
	settings, err := w.store.GetUserSettings(ctx, user.UUID())
	if err == nil && settings.GithubURL != "" {
		profileURL = settings.GithubURL
	}
	if profileURL == "" {
		return "", false
	}

	username, err := githubclient.ParseHandle(profileURL)
	if err != nil {
		log.Printf("worker/poll/%v bad github url %q: %v", user.UUID(), profileURL, err)
		return "", false
	}
	return username, true
}

// OnLogin starts the poll loop for the user. A profile without a usable
// GitHub URL leaves the poller idle.
func (w *Worker) OnLogin(ctx context.Context, user types.Author) {
	userID := user.UUID()

	username, ok := w.githubUsername(ctx, user)
	if !ok {
		return
	}

	w.mu.Lock()
	if cancel, running := w.cancels[userID]; running {
		cancel()
	}
	runctx, cancel := context.WithCancel(context.Background())
	w.cancels[userID] = cancel
	w.mu.Unlock()

	if err := w.store.SetPollingActive(ctx, userID, true); err != nil {
		log.Printf("worker/poll/%v SetPollingActive: %v", userID, err)
	}
	if err := w.kv.Set(ctx, world.StorageKeyPolling, "true"); err != nil {
		log.Printf("worker/poll/%v kv.Set polling: %v", userID, err)
	}

	log.Printf("worker/poll/%v start polling %v every %v", userID, username, w.interval())
	go w.loop(runctx, user, username)
}

// OnLogout stops the poll loop before returning and discards the poll
// bookkeeping, so the next login starts from a clean slate.
func (w *Worker) OnLogout(ctx context.Context, user types.Author) {
	userID := user.UUID()

	w.mu.Lock()
	if cancel, running := w.cancels[userID]; running {
		cancel()
		delete(w.cancels, userID)
	}
	w.mu.Unlock()

	if err := w.kv.Set(ctx, world.StorageKeyPolling, "false"); err != nil {
		log.Printf("worker/poll/%v kv.Set polling: %v", userID, err)
	}
	if err := w.store.ClearSyncState(ctx, userID); err != nil {
		log.Printf("worker/poll/%v ClearSyncState: %v", userID, err)
	}

	log.Printf("worker/poll/%v stopped polling", userID)
}

func (w *Worker) loop(ctx context.Context, user types.Author, username string) {
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()

	for {
		if err := w.PollOnce(ctx, user, username); err != nil {
			log.Printf("worker/poll/%v cycle: %v", user.UUID(), err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PollOnce runs one fetch-and-sync cycle. Cycles never overlap: a cycle
// that finds another one in flight for the same user returns immediately.
// Failures are left for the next interval; the cycle never retries inline.
func (w *Worker) PollOnce(ctx context.Context, user types.Author, username string) error {
	ctx, span := tracer.Start(ctx, "PollOnce")
	defer span.End()

	userID := user.UUID()

	w.mu.Lock()
	if w.inFlight[userID] {
		w.mu.Unlock()
		return nil
	}
	w.inFlight[userID] = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.inFlight, userID)
		w.mu.Unlock()
	}()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	state, err := w.store.GetSyncState(ctx, userID)
	if err != nil {
		state = types.SyncState{UserID: userID, PollingActive: true}
	}

	events, etag, err := w.github.FetchEvents(ctx, username, state.Etag)
	if err == githubclient.ErrNotModified {
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return err
	}
	if len(events) == 0 {
		state.Etag = etag
		return w.store.UpsertSyncState(ctx, state)
	}

	fresh := bridge.SelectNew(events, state.LastSeenEventID)
	for _, event := range fresh {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if _, err := w.store.GetEventReferenceByEventID(ctx, event.ID); err == nil {
			continue
		}

		draft := bridge.EventToPost(user, event)
		post, err := w.api.CreatePost(ctx, userID, draft)
		if err != nil {
			log.Printf("worker/poll/%v CreatePost for event %v: %v", userID, event.ID, err)
			span.RecordError(err)
			continue
		}

		err = w.store.CreateEventReference(ctx, types.EventReference{
			EventID: event.ID,
			PostID:  post.ID,
			UserID:  userID,
		})
		if err != nil {
			log.Printf("worker/poll/%v CreateEventReference: %v", userID, err)
		}
	}

	// The marker moves to the newest fetched event even when some creates
	// failed: an event is mirrored at most once, never twice.
	state.Etag = etag
	state.LastSeenEventID = events[0].ID
	return w.store.UpsertSyncState(ctx, state)
}

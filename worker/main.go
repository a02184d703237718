// Package worker runs the per-user GitHub activity poller. A poll loop
// starts when the session manager reports a login and is torn down, before
// Logout returns, when it reports a logout.
package worker

import (
	"context"
	"sync"

	"github.com/snackoverflow/snack-gateway/session"
	"github.com/snackoverflow/snack-gateway/types"
)

// EventSource fetches a user's public GitHub events conditionally.
type EventSource interface {
	FetchEvents(ctx context.Context, username string, etag string) ([]types.GithubEvent, string, error)
}

// PostCreator publishes a post on an author's behalf.
type PostCreator interface {
	CreatePost(ctx context.Context, authorID string, draft any) (types.Post, error)
}

// SyncStore is the slice of the store the poller needs.
type SyncStore interface {
	GetSyncState(ctx context.Context, userID string) (types.SyncState, error)
	UpsertSyncState(ctx context.Context, state types.SyncState) error
	SetPollingActive(ctx context.Context, userID string, active bool) error
	ClearSyncState(ctx context.Context, userID string) error
	GetUserSettings(ctx context.Context, userID string) (types.UserSettings, error)
	GetEventReferenceByEventID(ctx context.Context, eventID string) (types.EventReference, error)
	CreateEventReference(ctx context.Context, reference types.EventReference) error
}

type Worker struct {
	kv     session.KV
	store  SyncStore
	github EventSource
	api    PostCreator
	config types.GatewayConfig

	mu       sync.Mutex
	cancels  map[string]context.CancelFunc
	inFlight map[string]bool
}

func NewWorker(kv session.KV, store SyncStore, github EventSource, api PostCreator, config types.GatewayConfig) *Worker {
	return &Worker{
		kv:       kv,
		store:    store,
		github:   github,
		api:      api,
		config:   config,
		cancels:  make(map[string]context.CancelFunc),
		inFlight: make(map[string]bool),
	}
}

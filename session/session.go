// Package session owns the gateway's durable client storage and the login
// lifecycle. The browser client scattered localStorage reads across views;
// here the same keys live behind one Manager with explicit OnLogin/OnLogout
// hooks that the poller subscribes to.
package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/snackoverflow/snack-gateway/types"
	"github.com/snackoverflow/snack-gateway/world"
)

var tracer = otel.Tracer("session")

// ErrNotFound reports a missing storage key.
var ErrNotFound = errors.New("session: key not found")

// KV is the durable key-value storage the session and poll state live in.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// LifecycleHooks get told about session transitions. Hooks run
// synchronously on the calling goroutine; Logout does not return until
// every OnLogout has, which is what lets the poller guarantee no timer
// survives the call.
type LifecycleHooks interface {
	OnLogin(ctx context.Context, user types.Author)
	OnLogout(ctx context.Context, user types.Author)
}

// Manager is the gateway's single login session.
type Manager struct {
	kv KV

	mu    sync.Mutex
	hooks []LifecycleHooks
}

func NewManager(kv KV) *Manager {
	return &Manager{kv: kv}
}

// Subscribe registers hooks for future logins and logouts.
func (m *Manager) Subscribe(hooks LifecycleHooks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hooks)
}

// Login persists the user record and marks the session live, then fires
// OnLogin hooks.
func (m *Manager) Login(ctx context.Context, user types.Author) error {
	ctx, span := tracer.Start(ctx, "SessionLogin")
	defer span.End()

	record, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "marshal user record")
	}
	if err := m.kv.Set(ctx, world.StorageKeyUser, string(record)); err != nil {
		return err
	}
	if err := m.kv.Set(ctx, world.StorageKeyIsLoggedIn, "true"); err != nil {
		return err
	}

	for _, hooks := range m.snapshotHooks() {
		hooks.OnLogin(ctx, user)
	}
	return nil
}

// Logout clears the session and fires OnLogout hooks. The logged-in flag
// flips before the hooks run so that a poll cycle racing with logout
// observes a dead session.
func (m *Manager) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "SessionLogout")
	defer span.End()

	user, ok := m.Current(ctx)

	if err := m.kv.Set(ctx, world.StorageKeyIsLoggedIn, "false"); err != nil {
		return err
	}
	if err := m.kv.Delete(ctx, world.StorageKeyUser); err != nil {
		log.Printf("session: delete user record: %v", err)
	}

	if !ok {
		return nil
	}
	for _, hooks := range m.snapshotHooks() {
		hooks.OnLogout(ctx, user)
	}
	return nil
}

// Current returns the logged-in user record, if any.
func (m *Manager) Current(ctx context.Context) (types.Author, bool) {
	flag, err := m.kv.Get(ctx, world.StorageKeyIsLoggedIn)
	if err != nil || flag != "true" {
		return types.Author{}, false
	}

	record, err := m.kv.Get(ctx, world.StorageKeyUser)
	if err != nil {
		return types.Author{}, false
	}

	var user types.Author
	if err := json.Unmarshal([]byte(record), &user); err != nil {
		log.Printf("session: corrupt user record: %v", err)
		return types.Author{}, false
	}
	return user, true
}

func (m *Manager) snapshotHooks() []LifecycleHooks {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LifecycleHooks(nil), m.hooks...)
}

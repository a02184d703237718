package session

import (
	"context"
	"testing"

	"github.com/snackoverflow/snack-gateway/types"
	"github.com/snackoverflow/snack-gateway/world"
)

type recordingHooks struct {
	logins  []string
	logouts []string
}

func (r *recordingHooks) OnLogin(ctx context.Context, user types.Author) {
	r.logins = append(r.logins, user.UUID())
}

func (r *recordingHooks) OnLogout(ctx context.Context, user types.Author) {
	r.logouts = append(r.logouts, user.UUID())
}

func TestLoginLogoutLifecycle(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	manager := NewManager(kv)

	hooks := &recordingHooks{}
	manager.Subscribe(hooks)

	user := types.Author{ID: "https://snack.example.com/api/authors/u1", DisplayName: "Pat"}
	if err := manager.Login(ctx, user); err != nil {
		t.Fatal(err)
	}

	current, ok := manager.Current(ctx)
	if !ok {
		t.Fatal("expected a live session after login")
	}
	if current.DisplayName != "Pat" {
		t.Errorf("current user = %+v", current)
	}
	if len(hooks.logins) != 1 || hooks.logins[0] != "u1" {
		t.Errorf("login hooks = %v", hooks.logins)
	}

	if err := manager.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := manager.Current(ctx); ok {
		t.Error("session still live after logout")
	}
	if len(hooks.logouts) != 1 || hooks.logouts[0] != "u1" {
		t.Errorf("logout hooks = %v", hooks.logouts)
	}

	flag, err := kv.Get(ctx, world.StorageKeyIsLoggedIn)
	if err != nil || flag != "false" {
		t.Errorf("isLoggedIn = %q, %v", flag, err)
	}
}

func TestLogoutWithoutLoginFiresNoHooks(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(NewMemoryKV())
	hooks := &recordingHooks{}
	manager.Subscribe(hooks)

	if err := manager.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if len(hooks.logouts) != 0 {
		t.Errorf("unexpected logout hooks %v", hooks.logouts)
	}
}

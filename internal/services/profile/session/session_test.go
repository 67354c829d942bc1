package session

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/louisbranch/messenger/internal/storage/kv"
)

func TestStoreSetGetClear(t *testing.T) {
	t.Parallel()

	cache := &kv.Memory{}
	store := NewStore(cache)
	if err := store.Set(Identity{Email: "ann@x.com", DisplayName: "Ann Lee"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := store.Get()
	if err != nil || !ok {
		t.Fatalf("get = %v, %v", ok, err)
	}
	if got.DisplayName != "Ann Lee" || got.Email != "ann@x.com" {
		t.Fatalf("identity = %+v", got)
	}
	if display := cache.Snapshot()[KeyDisplay]; display != "Ann Lee ann@x.com" {
		t.Fatalf("display = %q", display)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := store.Get(); ok {
		t.Fatal("expected empty store after clear")
	}
	if len(cache.Snapshot()) != 0 {
		t.Fatalf("cache = %v, want empty", cache.Snapshot())
	}
}

func TestStoreRejectsIncompleteIdentity(t *testing.T) {
	t.Parallel()

	store := NewStore(&kv.Memory{})
	for _, identity := range []Identity{{Email: "ann@x.com"}, {DisplayName: "Ann"}, {Email: " ", DisplayName: "Ann"}} {
		if err := store.Set(identity); !errors.Is(err, ErrIncompleteIdentity) {
			t.Fatalf("Set(%+v) err = %v, want %v", identity, err, ErrIncompleteIdentity)
		}
	}
	if _, ok, _ := store.Get(); ok {
		t.Fatal("rejected identity must not be persisted")
	}
}

func TestStorePartialRecordReadsAsEmpty(t *testing.T) {
	t.Parallel()

	store := NewStore(kv.NewMemory(map[string]string{KeyName: "Ann Lee"}))
	if _, ok, err := store.Get(); ok || err != nil {
		t.Fatalf("get = %v, %v, want empty", ok, err)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "defaults.db")
	cache, err := kv.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := NewStore(cache).Set(Identity{Email: "ann@x.com", DisplayName: "Ann Lee"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	_ = cache.Close()

	reopened, err := kv.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, ok, err := NewStore(reopened).Get()
	if err != nil || !ok || got.DisplayName != "Ann Lee" {
		t.Fatalf("get after reopen = %+v, %v, %v", got, ok, err)
	}
}

func TestStoreSurfacesCacheErrors(t *testing.T) {
	t.Parallel()

	cache, err := kv.Open(filepath.Join(t.TempDir(), "defaults.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = cache.Close()
	if _, _, err := NewStore(cache).Get(); !errors.Is(err, kv.ErrClosed) {
		t.Fatalf("err = %v, want %v", err, kv.ErrClosed)
	}
}

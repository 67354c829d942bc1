package redis

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/louisbranch/messenger/internal/platform/id"
	"github.com/louisbranch/messenger/internal/services/records"
)

func TestStaleFields(t *testing.T) {
	t.Parallel()

	existing := []string{"ann", "ann/first_name", "ann/is_active", "annex/is_active", "ann/conversations/c1/name"}
	got := staleFields("ann/conversations", existing)
	want := []string{"ann", "ann/conversations/c1/name"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("staleFields = %v, want %v", got, want)
	}
}

func TestToRowsSorted(t *testing.T) {
	t.Parallel()

	rows := toRows(map[string]string{"b/x": "1", "a/y": "2"})
	if rows[0].Path != "a/y" || rows[1].Path != "b/x" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestHashKeyUsesTopSegment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{prefix: "", path: "ann", want: "records:ann"},
		{prefix: "", path: "ann/conversations/c1/name", want: "records:ann"},
		{prefix: "test:", path: "bob/is_active", want: "test:bob"},
	}
	for _, tc := range tests {
		store := New(nil, tc.prefix)
		if got := store.hashKey(tc.path); got != tc.want {
			t.Fatalf("hashKey(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestHashLayoutRoundTrip(t *testing.T) {
	t.Parallel()

	value := map[string]any{
		"first_name": "Ann",
		"is_active":  true,
		"conversations": map[string]any{
			"c1": map[string]any{"name": "Bob", "latest_message": map[string]any{"is_read": false}},
		},
	}
	leaves, err := records.Flatten("ann", value)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	fields := hashFields(leaves)
	if fields["ann/first_name"] != `"Ann"` || fields["ann/is_active"] != "true" {
		t.Fatalf("fields = %v", fields)
	}

	stored := make(map[string]string, len(fields))
	for path, payload := range fields {
		stored[path] = payload.(string)
	}
	got, err := records.Assemble("ann", toRows(stored))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if !reflect.DeepEqual(got, value) {
		t.Fatalf("got %#v, want %#v", got, value)
	}
	conversation, err := records.Assemble("ann/conversations/c1", toRows(stored))
	if err != nil {
		t.Fatalf("assemble subtree: %v", err)
	}
	if name := conversation.(map[string]any)["name"]; name != "Bob" {
		t.Fatalf("name = %v, want Bob", name)
	}
}

func TestStoreRequiresClient(t *testing.T) {
	t.Parallel()

	var store *Store
	if _, err := store.Get(context.Background(), "ann"); err == nil {
		t.Fatal("expected get error without client")
	}
	if err := New(nil, "").Set(context.Background(), "ann", true); err == nil {
		t.Fatal("expected set error without client")
	}
}

func TestOpenRequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for empty addr")
	}
}

func openLiveStore(t *testing.T) *Store {
	t.Helper()
	addr := strings.TrimSpace(os.Getenv("MESSENGER_TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("MESSENGER_TEST_REDIS_ADDR not set")
	}
	suffix, err := id.NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	store, err := Open(context.Background(), Options{Addr: addr, Prefix: "test-records-" + suffix + ":"})
	if err != nil {
		t.Fatalf("open redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreRoundTripAgainstRedis(t *testing.T) {
	store := openLiveStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "ann", map[string]any{"first_name": "Ann", "last_name": "Lee"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "ann/is_active", true); err != nil {
		t.Fatalf("set presence: %v", err)
	}
	got, err := store.Get(ctx, "ann")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := map[string]any{"first_name": "Ann", "last_name": "Lee", "is_active": true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}

	if err := store.Set(ctx, "ann", nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "ann"); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, records.ErrNotFound)
	}
}

package conversations

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/louisbranch/messenger/internal/services/records/sqlite"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestListWithoutConversations(t *testing.T) {
	t.Parallel()

	svc, err := NewService(Config{Records: openStore(t), Blobs: &gatedBlobs{}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	list, err := svc.List(context.Background(), "ann@x.com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("list = %v, want empty", list)
	}
}

func TestPutThenPreviews(t *testing.T) {
	t.Parallel()

	var logged atomic.Int32
	blobs := &gatedBlobs{
		urls: map[string]string{bobPicture: "https://cdn.test/bob.png"},
		errs: map[string]error{cyPicture: errors.New("not found")},
	}
	svc, err := NewService(Config{Records: openStore(t), Blobs: blobs, Logf: func(string, ...any) { logged.Add(1) }})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	err = svc.Put(context.Background(), "ann@x.com", []Conversation{
		{ID: "c1", Name: "Bob", OtherUserEmail: "bob@x.com", LatestMessage: Message{Text: "hi", Date: "Mar 6, 2024 at 8:00:00 AM PST", IsRead: true}},
		{ID: "c2", Name: "Cy", OtherUserEmail: "cy@x.com", LatestMessage: Message{Text: "yo", Date: "Mar 5, 2024 at 1:07:09 PM PST"}},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	previews, err := svc.Previews(context.Background(), "ann@x.com")
	if err != nil {
		t.Fatalf("previews: %v", err)
	}
	want := []Preview{
		{ID: "c1", Name: "Bob", Message: "hi", Date: "Mar 6, 8:00 AM", ImageURL: "https://cdn.test/bob.png"},
		{ID: "c2", Name: "Cy", Message: "yo", Date: "Mar 5, 1:07 PM", Unread: true},
	}
	if len(previews) != len(want) {
		t.Fatalf("previews = %+v, want %+v", previews, want)
	}
	for i := range want {
		if previews[i] != want[i] {
			t.Fatalf("preview[%d] = %+v, want %+v", i, previews[i], want[i])
		}
	}
	if got := logged.Load(); got != 1 {
		t.Fatalf("logged = %d, want 1", got)
	}
}

func TestPutRequiresID(t *testing.T) {
	t.Parallel()

	svc, err := NewService(Config{Records: openStore(t), Blobs: &gatedBlobs{}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Put(context.Background(), "ann@x.com", []Conversation{{Name: "Bob", OtherUserEmail: "bob@x.com"}}); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestListRejectsBlankEmail(t *testing.T) {
	t.Parallel()

	svc, err := NewService(Config{Records: openStore(t), Blobs: &gatedBlobs{}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.List(context.Background(), " "); err == nil {
		t.Fatal("expected error for blank email")
	}
}

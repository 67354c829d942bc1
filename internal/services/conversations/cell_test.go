package conversations

import (
	"context"
	"errors"
	"testing"
	"time"
)

const (
	bobPicture = "images/bob-40x-2ecom_profile_picture.png"
	cyPicture  = "images/cy-40x-2ecom_profile_picture.png"
)

func waitClosed(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for picture lookup")
	}
}

func TestCellConfigure(t *testing.T) {
	t.Parallel()

	loop := startLoop(t)
	images := &recordingImages{}
	blobs := &gatedBlobs{urls: map[string]string{bobPicture: "https://cdn.test/bob.png"}}
	cell, err := NewCell(CellOptions{Loop: loop, Blobs: blobs, Images: images})
	if err != nil {
		t.Fatalf("new cell: %v", err)
	}

	done, err := cell.Configure(context.Background(), Conversation{
		ID:             "c1",
		Name:           "Bob",
		OtherUserEmail: "bob@x.com",
		LatestMessage:  Message{Text: "hi", Date: "Mar 5, 2024 at 1:07:09 PM PST"},
	})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	waitClosed(t, done)

	state, err := cell.State(context.Background())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	want := CellState{Name: "Bob", Message: "hi", Date: "Mar 5, 1:07 PM", Unread: true, ImageURL: "https://cdn.test/bob.png"}
	if state != want {
		t.Fatalf("state = %+v, want %+v", state, want)
	}
	if len(blobs.calls) != 1 || blobs.calls[0] != bobPicture {
		t.Fatalf("calls = %v, want [%s]", blobs.calls, bobPicture)
	}
}

func TestCellDropsStalePicture(t *testing.T) {
	t.Parallel()

	loop := startLoop(t)
	images := &recordingImages{}
	slow := make(chan struct{})
	blobs := &gatedBlobs{
		urls: map[string]string{
			bobPicture: "https://cdn.test/bob.png",
			cyPicture:  "https://cdn.test/cy.png",
		},
		gates: map[string]chan struct{}{bobPicture: slow},
	}
	cell, err := NewCell(CellOptions{Loop: loop, Blobs: blobs, Images: images})
	if err != nil {
		t.Fatalf("new cell: %v", err)
	}

	first, err := cell.Configure(context.Background(), Conversation{ID: "c1", Name: "Bob", OtherUserEmail: "bob@x.com"})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	second, err := cell.Configure(context.Background(), Conversation{ID: "c2", Name: "Cy", OtherUserEmail: "cy@x.com"})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	waitClosed(t, second)
	close(slow)
	waitClosed(t, first)

	state, err := cell.State(context.Background())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Name != "Cy" || state.ImageURL != "https://cdn.test/cy.png" {
		t.Fatalf("state = %+v, want Cy with Cy's picture", state)
	}
	if got := images.urls[len(images.urls)-1]; got != "https://cdn.test/cy.png" {
		t.Fatalf("last image = %q, want Cy's picture", got)
	}
}

func TestCellPrepareClearsAndInvalidates(t *testing.T) {
	t.Parallel()

	loop := startLoop(t)
	images := &recordingImages{}
	slow := make(chan struct{})
	blobs := &gatedBlobs{
		urls:  map[string]string{bobPicture: "https://cdn.test/bob.png"},
		gates: map[string]chan struct{}{bobPicture: slow},
	}
	cell, err := NewCell(CellOptions{Loop: loop, Blobs: blobs, Images: images})
	if err != nil {
		t.Fatalf("new cell: %v", err)
	}

	done, err := cell.Configure(context.Background(), Conversation{ID: "c1", Name: "Bob", OtherUserEmail: "bob@x.com"})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := cell.Prepare(context.Background()); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	close(slow)
	waitClosed(t, done)

	state, err := cell.State(context.Background())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state != (CellState{}) {
		t.Fatalf("state = %+v, want empty", state)
	}
}

func TestCellPictureFailureLeavesImageEmpty(t *testing.T) {
	t.Parallel()

	loop := startLoop(t)
	var logged int
	blobs := &gatedBlobs{errs: map[string]error{bobPicture: errors.New("not found")}}
	cell, err := NewCell(CellOptions{Loop: loop, Blobs: blobs, Logf: func(string, ...any) { logged++ }})
	if err != nil {
		t.Fatalf("new cell: %v", err)
	}

	done, err := cell.Configure(context.Background(), Conversation{ID: "c1", Name: "Bob", OtherUserEmail: "bob@x.com"})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	waitClosed(t, done)

	state, err := cell.State(context.Background())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.ImageURL != "" {
		t.Fatalf("image = %q, want empty", state.ImageURL)
	}
	if logged != 1 {
		t.Fatalf("logged = %d, want 1", logged)
	}
}

func TestNewCellRequiresLoop(t *testing.T) {
	t.Parallel()

	if _, err := NewCell(CellOptions{}); !errors.Is(err, ErrCellNotConfigured) {
		t.Fatalf("err = %v, want %v", err, ErrCellNotConfigured)
	}
}

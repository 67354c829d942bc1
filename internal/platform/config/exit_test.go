package config

import (
	"bytes"
	"testing"
)

func TestExitfWritesMessageAndExitsWithOne(t *testing.T) {
	var buf bytes.Buffer
	var code int
	origStderr, origExit := stderr, exit
	stderr = &buf
	exit = func(c int) { code = c }
	t.Cleanup(func() {
		stderr = origStderr
		exit = origExit
	})

	Exitf("open store: %v", "boom")

	if got := buf.String(); got != "open store: boom\n" {
		t.Fatalf("stderr = %q, want %q", got, "open store: boom\n")
	}
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

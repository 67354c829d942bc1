// Package records defines the remote record store: a tree of JSON-like
// values addressed by slash-separated paths.
//
// Reading a path returns the whole subtree below it. Writing a path
// replaces that subtree, including any leaf previously stored at an
// ancestor path.
package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates no record exists at the requested path.
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable indicates a transient transport or backend failure.
	ErrUnavailable = errors.New("record store unavailable")
	// ErrInvalidPath indicates a blank path or an empty segment.
	ErrInvalidPath = errors.New("invalid record path")
)

// Store reads and writes record subtrees.
//
// Values are the shapes produced by encoding/json decoding into any:
// map[string]any, []any, string, float64, bool and nil.
type Store interface {
	Get(ctx context.Context, path string) (any, error)
	Set(ctx context.Context, path string, value any) error
}

// UnavailableError wraps a backend failure so it matches ErrUnavailable.
type UnavailableError struct {
	Op   string
	Path string
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

// Unavailable wraps err as an UnavailableError unless it is nil.
func Unavailable(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &UnavailableError{Op: op, Path: path, Err: err}
}

// CleanPath normalizes path and validates its segments.
func CleanPath(path string) (string, error) {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return "", ErrInvalidPath
	}
	for _, segment := range strings.Split(trimmed, "/") {
		if strings.TrimSpace(segment) == "" {
			return "", fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
	}
	return trimmed, nil
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Ancestors returns the strict ancestor paths of path, nearest last.
func Ancestors(path string) []string {
	segments := strings.Split(path, "/")
	ancestors := make([]string, 0, len(segments)-1)
	for i := 1; i < len(segments); i++ {
		ancestors = append(ancestors, strings.Join(segments[:i], "/"))
	}
	return ancestors
}

// TopSegment returns the first segment of path.
func TopSegment(path string) string {
	top, _, _ := strings.Cut(path, "/")
	return top
}

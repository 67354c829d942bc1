// Package session persists the signed-in identity across restarts.
//
// The store holds either a complete identity or nothing. Writes go through
// the cache batch operations so a crash never leaves a name without an
// email.
package session

import (
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/messenger/internal/platform/errors"
	"github.com/louisbranch/messenger/internal/storage/kv"
)

// Cache keys written by Store.
const (
	KeyEmail   = "email"
	KeyName    = "name"
	KeyDisplay = "display"
)

// ErrIncompleteIdentity rejects identities missing an email or display name.
var ErrIncompleteIdentity = apperrors.New(apperrors.CodeIncompleteSession, "identity requires email and display name")

// Identity is the signed-in account as shown on the profile screen.
type Identity struct {
	Email       string
	DisplayName string
}

// Complete reports whether both fields are present.
func (i Identity) Complete() bool {
	return strings.TrimSpace(i.Email) != "" && strings.TrimSpace(i.DisplayName) != ""
}

// Display is the cached one-line rendering of the identity.
func (i Identity) Display() string {
	return i.DisplayName + " " + i.Email
}

// Store reads and writes the identity in a kv.Cache.
type Store struct {
	cache kv.Cache
}

// NewStore wraps cache.
func NewStore(cache kv.Cache) *Store {
	return &Store{cache: cache}
}

// Set replaces the stored identity.
func (s *Store) Set(identity Identity) error {
	if !identity.Complete() {
		return ErrIncompleteIdentity
	}
	if err := s.cache.SetAll(map[string]string{
		KeyEmail:   identity.Email,
		KeyName:    identity.DisplayName,
		KeyDisplay: identity.Display(),
	}); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Get returns the stored identity. A partially persisted record is
// reported as empty.
func (s *Store) Get() (Identity, bool, error) {
	email, ok, err := s.cache.Get(KeyEmail)
	if err != nil || !ok {
		return Identity{}, false, wrapLoad(err)
	}
	name, ok, err := s.cache.Get(KeyName)
	if err != nil || !ok {
		return Identity{}, false, wrapLoad(err)
	}
	if _, ok, err := s.cache.Get(KeyDisplay); err != nil || !ok {
		return Identity{}, false, wrapLoad(err)
	}
	identity := Identity{Email: email, DisplayName: name}
	if !identity.Complete() {
		return Identity{}, false, nil
	}
	return identity, true, nil
}

// Clear removes every session key.
func (s *Store) Clear() error {
	if err := s.cache.RemoveAll(KeyEmail, KeyName, KeyDisplay); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func wrapLoad(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("load session: %w", err)
}

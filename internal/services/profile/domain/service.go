// Package domain synchronizes the signed-in profile with the remote record
// store and drives the profile screen model.
//
// All session, presence and model state is owned by a uiloop.Loop. Remote
// reads and writes run on their own goroutines and post their completions
// back to the loop, so the state is never touched concurrently.
package domain

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"

	"github.com/louisbranch/messenger/internal/platform/bus"
	apperrors "github.com/louisbranch/messenger/internal/platform/errors"
	"github.com/louisbranch/messenger/internal/platform/uiloop"
	"github.com/louisbranch/messenger/internal/services/auth/authtoken"
	"github.com/louisbranch/messenger/internal/services/blob"
	"github.com/louisbranch/messenger/internal/services/profile/render"
	"github.com/louisbranch/messenger/internal/services/profile/session"
	"github.com/louisbranch/messenger/internal/services/records"
)

const (
	dependencyProfile  = "records.profile"
	dependencyPresence = "records.presence"
	dependencyHeader   = "blob.header"
	dependencySession  = "session.store"
	dependencyAuth     = "auth"
)

var (
	// ErrServiceNotConfigured indicates a nil service or missing collaborator.
	ErrServiceNotConfigured = errors.New("profile service is not configured")
	// ErrMalformedProfile indicates a profile record without string name fields.
	ErrMalformedProfile = apperrors.New(apperrors.CodeMalformedProfile, "profile record requires first_name and last_name")
	// ErrMalformedPresence indicates a presence record that is not a boolean.
	ErrMalformedPresence = apperrors.New(apperrors.CodeMalformedProfile, "presence record must be a boolean")
	// ErrNoActiveSession indicates no signed-in user.
	ErrNoActiveSession = apperrors.New(apperrors.CodeUnauthenticated, "no active session")
)

var tracer = otel.Tracer("github.com/louisbranch/messenger/internal/services/profile/domain")

// DependencyError reports which collaborator failed.
type DependencyError struct {
	Dependency string
	Err        error
}

// Error returns the dependency failure message.
func (e *DependencyError) Error() string {
	if e == nil {
		return "dependency failed"
	}
	if e.Err == nil {
		return e.Dependency + " failed"
	}
	return e.Dependency + ": " + e.Err.Error()
}

// Unwrap exposes the wrapped failure.
func (e *DependencyError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Policy decides which of several overlapping refreshes reconciles last.
type Policy int

const (
	// PolicyLastCompletionWins applies every successful result in completion
	// order, so the last refresh to complete wins even if it was invoked first.
	PolicyLastCompletionWins Policy = iota
	// PolicyLatestInvocationWins tags refreshes with their invocation sequence
	// and discards results older than the newest one already applied.
	PolicyLatestInvocationWins
)

// ParsePolicy maps a config value to a Policy.
func ParsePolicy(value string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "last-completion", "last_completion":
		return PolicyLastCompletionWins, nil
	case "latest-invocation", "latest_invocation":
		return PolicyLatestInvocationWins, nil
	default:
		return PolicyLastCompletionWins, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "unknown refresh policy", map[string]string{"Policy": value})
	}
}

// Config tunes the documented edge-case behavior.
type Config struct {
	Policy Policy
	// ShowUnavailableRow appends a "data unavailable" row after a failed
	// profile fetch instead of degrading silently.
	ShowUnavailableRow bool
	// RevertPresenceOnFailure restores the last confirmed presence after a
	// rejected write and flags the toggle row.
	RevertPresenceOnFailure bool
	// NavigateOnSignOutFailure shows the signed-out screen even when the auth
	// provider reports a sign-out failure.
	NavigateOnSignOutFailure bool
	Localizer                render.Localizer
}

// AuthProvider identifies the signed-in user and ends the session.
type AuthProvider interface {
	CurrentUser(ctx context.Context) (authtoken.User, bool, error)
	SignOut(ctx context.Context) error
}

// View receives every rebuilt model. It is called on the loop.
type View interface {
	Render(model Model)
}

// Navigator moves to the unauthenticated entry point. It is called on the loop.
type Navigator interface {
	ShowSignedOut()
}

// Header is the profile picture slot above the rows.
type Header struct {
	ImageURL string
}

// Model is the profile screen presentation model.
type Model struct {
	Header Header
	Rows   []render.Row
}

// Clone returns a copy that does not share the row slice.
func (m Model) Clone() Model {
	out := m
	if m.Rows != nil {
		out.Rows = append([]render.Row(nil), m.Rows...)
	}
	return out
}

// Deps lists the collaborators of Service.
type Deps struct {
	Auth      AuthProvider
	Records   records.Store
	Blobs     blob.Resolver
	Session   *session.Store
	Loop      *uiloop.Loop
	View      View
	Navigator Navigator
	Reporter  Reporter
}

// Service is the profile synchronizer.
type Service struct {
	deps Deps
	cfg  Config

	seq atomic.Uint64

	// Loop-confined state.
	model              Model
	hasModel           bool
	presence           render.Presence
	confirmedPresence  render.Presence
	presenceFailed     bool
	profileUnavailable bool
	appliedProfileSeq  uint64
	appliedPresenceSeq uint64
	clearedAtSeq       uint64
	headerGen          uint64
}

// NewService validates deps and returns a Service.
func NewService(deps Deps, cfg Config) (*Service, error) {
	if deps.Auth == nil || deps.Records == nil || deps.Blobs == nil || deps.Session == nil || deps.Loop == nil {
		return nil, ErrServiceNotConfigured
	}
	if deps.View == nil {
		deps.View = noopView{}
	}
	if deps.Navigator == nil {
		deps.Navigator = noopNavigator{}
	}
	if deps.Reporter == nil {
		deps.Reporter = NewTelemetryReporter(nil)
	}
	return &Service{deps: deps, cfg: cfg}, nil
}

// Subscribe refreshes the current user on every login notification.
func (s *Service) Subscribe(b *bus.Bus) func() {
	return b.Subscribe(bus.TopicLoginCompleted, func(ctx context.Context, _ bus.Event) {
		s.RefreshCurrent(ctx)
	})
}

// Model returns a snapshot of the current presentation model.
func (s *Service) Model(ctx context.Context) (Model, error) {
	if s == nil {
		return Model{}, ErrServiceNotConfigured
	}
	var snapshot Model
	err := s.deps.Loop.Do(ctx, func() {
		snapshot = s.model.Clone()
	})
	return snapshot, err
}

// Session returns the persisted identity, read on the loop.
func (s *Service) Session(ctx context.Context) (session.Identity, bool, error) {
	if s == nil {
		return session.Identity{}, false, ErrServiceNotConfigured
	}
	var (
		identity session.Identity
		ok       bool
		loadErr  error
	)
	if err := s.deps.Loop.Do(ctx, func() {
		identity, ok, loadErr = s.deps.Session.Get()
	}); err != nil {
		return session.Identity{}, false, err
	}
	return identity, ok, loadErr
}

// Activate renders the persisted session, if any, and then refreshes it.
func (s *Service) Activate(ctx context.Context) *RefreshHandle {
	if s == nil {
		return resolvedRefresh(0, RefreshResult{ProfileErr: ErrServiceNotConfigured})
	}
	if err := s.deps.Loop.Do(ctx, func() {
		identity, ok, err := s.deps.Session.Get()
		if err != nil {
			s.report(ctx, dependencySession, err)
			return
		}
		if ok {
			s.rebuild(identity)
		}
	}); err != nil {
		return resolvedRefresh(0, RefreshResult{ProfileErr: err})
	}
	return s.RefreshCurrent(ctx)
}

// rebuild replaces the rows from identity and current presence and
// renders. Must run on the loop.
func (s *Service) rebuild(identity session.Identity) {
	rows := render.Build(s.cfg.Localizer, identity, s.presence, s.logoutEffect)
	rows[2] = render.PresenceRow(s.cfg.Localizer, s.presence, s.presenceFailed)
	if s.profileUnavailable && s.cfg.ShowUnavailableRow {
		rows = append(rows, render.UnavailableRow(s.cfg.Localizer))
	}
	s.model.Rows = rows
	s.hasModel = true
	s.deps.View.Render(s.model.Clone())
}

// refreshToggle rewrites only the presence row. Must run on the loop.
func (s *Service) refreshToggle() {
	if !s.hasModel {
		return
	}
	s.model.Rows[2] = render.PresenceRow(s.cfg.Localizer, s.presence, s.presenceFailed)
	s.deps.View.Render(s.model.Clone())
}

// logoutEffect is the logout row action. It must be invoked off the loop.
func (s *Service) logoutEffect() {
	s.Logout(context.Background())
}

func (s *Service) report(ctx context.Context, dependency string, err error) {
	s.deps.Reporter.Report(ctx, dependency, err)
}

type noopView struct{}

func (noopView) Render(Model) {}

type noopNavigator struct{}

func (noopNavigator) ShowSignedOut() {}

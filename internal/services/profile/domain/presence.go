package domain

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/louisbranch/messenger/internal/platform/timeouts"
	"github.com/louisbranch/messenger/internal/platform/uiloop"
	"github.com/louisbranch/messenger/internal/services/profile/lookupkey"
	"github.com/louisbranch/messenger/internal/services/profile/render"
)

// TogglePresence writes active for the signed-in user. Without a session
// it resolves immediately with ErrNoActiveSession.
func (s *Service) TogglePresence(ctx context.Context, active bool) *PresenceWrite {
	if s == nil {
		return resolvedPresenceWrite(ErrServiceNotConfigured)
	}
	identity, ok, err := s.Session(ctx)
	if err != nil {
		return resolvedPresenceWrite(err)
	}
	if !ok {
		return resolvedPresenceWrite(ErrNoActiveSession)
	}
	return s.SetPresence(ctx, identity.Email, active)
}

// SetPresence flips the toggle optimistically and writes the flag to the
// remote store without blocking the caller.
//
// A rejected write is reported but leaves the toggle as the user set it,
// unless RevertPresenceOnFailure is configured.
func (s *Service) SetPresence(ctx context.Context, email string, active bool) *PresenceWrite {
	if s == nil {
		return resolvedPresenceWrite(ErrServiceNotConfigured)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	key, err := lookupkey.Sanitize(email)
	if err != nil {
		s.report(ctx, dependencyPresence, err)
		return resolvedPresenceWrite(err)
	}

	ctx, span := tracer.Start(ctx, "profile.set_presence")
	span.SetAttributes(attribute.Bool("profile.presence.active", active))
	w := newPresenceWrite()

	optimistic := render.Presence{Known: true, Active: active}
	if !s.deps.Loop.Post(func() {
		s.presence = optimistic
		s.presenceFailed = false
		s.refreshToggle()
	}) {
		span.End()
		return resolvedPresenceWrite(uiloop.ErrClosed)
	}

	go func() {
		writeCtx, cancel := context.WithTimeout(ctx, timeouts.RemoteWrite)
		writeErr := s.deps.Records.Set(writeCtx, lookupkey.PresencePath(key), active)
		cancel()
		if !s.deps.Loop.Post(func() {
			defer span.End()
			if writeErr == nil {
				s.confirmedPresence = optimistic
				w.resolve(nil)
				return
			}
			err := &DependencyError{Dependency: dependencyPresence, Err: writeErr}
			s.report(ctx, dependencyPresence, err)
			if s.cfg.RevertPresenceOnFailure && s.presence == optimistic {
				s.presence = s.confirmedPresence
				s.presenceFailed = true
				s.refreshToggle()
			}
			w.resolve(err)
		}) {
			span.End()
			if writeErr == nil {
				writeErr = uiloop.ErrClosed
			}
			w.resolve(writeErr)
		}
	}()
	return w
}

package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/louisbranch/messenger/internal/platform/timeouts"
	"github.com/louisbranch/messenger/internal/platform/uiloop"
	"github.com/louisbranch/messenger/internal/services/profile/lookupkey"
	"github.com/louisbranch/messenger/internal/services/profile/render"
	"github.com/louisbranch/messenger/internal/services/profile/session"
)

// RefreshCurrent refreshes the user reported by the auth provider.
func (s *Service) RefreshCurrent(ctx context.Context) *RefreshHandle {
	if s == nil {
		return resolvedRefresh(0, RefreshResult{ProfileErr: ErrServiceNotConfigured})
	}
	user, ok, err := s.deps.Auth.CurrentUser(ctx)
	if err != nil {
		err = &DependencyError{Dependency: dependencyAuth, Err: err}
		s.report(ctx, dependencyAuth, err)
		return resolvedRefresh(s.seq.Add(1), RefreshResult{ProfileErr: err})
	}
	if !ok {
		return s.Refresh(ctx, "")
	}
	return s.Refresh(ctx, user.Email)
}

// Refresh fetches the profile and presence of email and reconciles them
// into the session store and model. It does not block: the returned handle
// resolves after both reads have been applied on the loop.
//
// A blank email means no active session; nothing changes.
func (s *Service) Refresh(ctx context.Context, email string) *RefreshHandle {
	if s == nil {
		return resolvedRefresh(0, RefreshResult{ProfileErr: ErrServiceNotConfigured})
	}
	if ctx == nil {
		ctx = context.Background()
	}
	seq := s.seq.Add(1)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return resolvedRefresh(seq, RefreshResult{NoActiveSession: true})
	}
	key, err := lookupkey.Sanitize(email)
	if err != nil {
		s.report(ctx, dependencyProfile, err)
		return resolvedRefresh(seq, RefreshResult{ProfileErr: err})
	}

	ctx, span := tracer.Start(ctx, "profile.refresh")
	span.SetAttributes(attribute.Int64("profile.refresh.seq", int64(seq)))
	h := newRefreshHandle(seq, 2, func() { span.End() })

	go func() {
		readCtx, cancel := context.WithTimeout(ctx, timeouts.RemoteRead)
		value, err := s.deps.Records.Get(readCtx, lookupkey.ProfilePath(key))
		cancel()
		s.post(h, func() { s.applyProfile(ctx, h, email, key, value, err) })
	}()
	go func() {
		readCtx, cancel := context.WithTimeout(ctx, timeouts.RemoteRead)
		value, err := s.deps.Records.Get(readCtx, lookupkey.PresencePath(key))
		cancel()
		s.post(h, func() { s.applyPresence(ctx, h, value, err) })
	}()
	return h
}

// post runs fn on the loop and then marks one part of h done. When the
// loop has stopped the part resolves with uiloop.ErrClosed.
func (s *Service) post(h *RefreshHandle, fn func()) {
	if s.deps.Loop.Post(func() {
		fn()
		h.partDone()
	}) {
		return
	}
	h.update(func(r *RefreshResult) {
		if r.ProfileErr == nil {
			r.ProfileErr = uiloop.ErrClosed
		}
	})
	h.partDone()
}

func (s *Service) applyProfile(ctx context.Context, h *RefreshHandle, email, key string, value any, fetchErr error) {
	if h.seq <= s.clearedAtSeq {
		h.update(func(r *RefreshResult) { r.Discarded = true })
		return
	}

	identity, err := parseProfile(email, value, fetchErr)
	if err != nil {
		if s.cfg.Policy == PolicyLatestInvocationWins && h.seq < s.appliedProfileSeq {
			h.update(func(r *RefreshResult) { r.Discarded = true; r.ProfileErr = err })
			return
		}
		h.update(func(r *RefreshResult) { r.ProfileErr = err })
		s.report(ctx, dependencyProfile, err)
		if s.cfg.ShowUnavailableRow && !s.profileUnavailable {
			s.profileUnavailable = true
			if s.hasModel {
				s.model.Rows = append(s.model.Rows, render.UnavailableRow(s.cfg.Localizer))
				s.deps.View.Render(s.model.Clone())
			}
		}
		return
	}

	if s.cfg.Policy == PolicyLatestInvocationWins && h.seq < s.appliedProfileSeq {
		h.update(func(r *RefreshResult) { r.Discarded = true })
		return
	}
	if err := s.deps.Session.Set(identity); err != nil {
		err = &DependencyError{Dependency: dependencySession, Err: err}
		h.update(func(r *RefreshResult) { r.ProfileErr = err })
		s.report(ctx, dependencySession, err)
		return
	}
	s.appliedProfileSeq = max(s.appliedProfileSeq, h.seq)
	s.profileUnavailable = false
	s.rebuild(identity)
	h.update(func(r *RefreshResult) { r.Applied = true })
	s.loadHeader(ctx, key)
}

func (s *Service) applyPresence(ctx context.Context, h *RefreshHandle, value any, fetchErr error) {
	if h.seq <= s.clearedAtSeq {
		return
	}
	if s.cfg.Policy == PolicyLatestInvocationWins && h.seq < s.appliedPresenceSeq {
		return
	}
	s.appliedPresenceSeq = max(s.appliedPresenceSeq, h.seq)

	active, err := parsePresence(value, fetchErr)
	if err != nil {
		h.update(func(r *RefreshResult) { r.PresenceErr = err })
		s.report(ctx, dependencyPresence, err)
		s.presence = render.Presence{}
	} else {
		s.presence = render.Presence{Known: true, Active: active}
		s.confirmedPresence = s.presence
	}
	s.presenceFailed = false
	s.refreshToggle()
}

// loadHeader resolves the profile picture and applies it only if no newer
// header request or logout happened in between. Must run on the loop.
func (s *Service) loadHeader(ctx context.Context, key string) {
	s.headerGen++
	gen := s.headerGen
	go func() {
		resolveCtx, cancel := context.WithTimeout(ctx, timeouts.BlobResolve)
		url, err := s.deps.Blobs.DownloadURL(resolveCtx, lookupkey.ProfilePicturePath(key))
		cancel()
		s.deps.Loop.Post(func() {
			if gen != s.headerGen {
				return
			}
			if err != nil {
				s.report(ctx, dependencyHeader, &DependencyError{Dependency: dependencyHeader, Err: err})
				return
			}
			s.model.Header.ImageURL = url
			if s.hasModel {
				s.deps.View.Render(s.model.Clone())
			}
		})
	}()
}

func parseProfile(email string, value any, fetchErr error) (session.Identity, error) {
	if fetchErr != nil {
		return session.Identity{}, &DependencyError{Dependency: dependencyProfile, Err: fetchErr}
	}
	fields, ok := value.(map[string]any)
	if !ok {
		return session.Identity{}, fmt.Errorf("%w: got %T", ErrMalformedProfile, value)
	}
	first, firstOK := fields["first_name"].(string)
	last, lastOK := fields["last_name"].(string)
	if !firstOK || !lastOK {
		return session.Identity{}, ErrMalformedProfile
	}
	name := strings.TrimSpace(first + " " + last)
	if name == "" {
		return session.Identity{}, ErrMalformedProfile
	}
	return session.Identity{Email: email, DisplayName: name}, nil
}

func parsePresence(value any, fetchErr error) (bool, error) {
	if fetchErr != nil {
		return false, &DependencyError{Dependency: dependencyPresence, Err: fetchErr}
	}
	active, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("%w: got %T", ErrMalformedPresence, value)
	}
	return active, nil
}

// isDependencyFailure reports whether err came from a remote collaborator.
func isDependencyFailure(err error) bool {
	var depErr *DependencyError
	return errors.As(err, &depErr)
}

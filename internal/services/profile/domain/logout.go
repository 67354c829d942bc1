package domain

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/louisbranch/messenger/internal/services/profile/render"
)

// Logout clears the local session on the loop and returns once it is
// empty. Sign-out then runs asynchronously; navigation to the signed-out
// screen follows only a successful sign-out unless NavigateOnSignOutFailure
// is configured. Local state stays cleared either way.
//
// Logout must not be called from inside a loop func.
func (s *Service) Logout(ctx context.Context) *LogoutHandle {
	h := newLogoutHandle()
	if s == nil {
		h.resolve(LogoutResult{}, ErrServiceNotConfigured)
		return h
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracer.Start(ctx, "profile.logout")

	var clearErr error
	if err := s.deps.Loop.Do(ctx, func() {
		s.clearedAtSeq = s.seq.Load()
		clearErr = s.deps.Session.Clear()
		s.model = Model{}
		s.hasModel = false
		s.presence = render.Presence{}
		s.confirmedPresence = render.Presence{}
		s.presenceFailed = false
		s.profileUnavailable = false
		s.headerGen++
	}); err != nil {
		span.End()
		h.resolve(LogoutResult{}, err)
		return h
	}
	if clearErr != nil {
		s.report(ctx, dependencySession, &DependencyError{Dependency: dependencySession, Err: clearErr})
	}

	go func() {
		signOutErr := s.deps.Auth.SignOut(ctx)
		if !s.deps.Loop.Post(func() {
			defer span.End()
			result := LogoutResult{ClearErr: clearErr, SignOutErr: signOutErr}
			if signOutErr != nil {
				s.report(ctx, dependencyAuth, &DependencyError{Dependency: dependencyAuth, Err: signOutErr})
			}
			if signOutErr == nil || s.cfg.NavigateOnSignOutFailure {
				s.deps.Navigator.ShowSignedOut()
				result.Navigated = true
			}
			span.SetAttributes(attribute.Bool("profile.logout.navigated", result.Navigated))
			h.resolve(result, nil)
		}) {
			span.End()
			h.resolve(LogoutResult{ClearErr: clearErr, SignOutErr: signOutErr}, nil)
		}
	}()
	return h
}

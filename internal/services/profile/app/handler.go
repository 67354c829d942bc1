package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	apperrors "github.com/louisbranch/messenger/internal/platform/errors"
	"github.com/louisbranch/messenger/internal/platform/httpx"
	"github.com/louisbranch/messenger/internal/services/auth/authtoken"
	"github.com/louisbranch/messenger/internal/services/blob"
	"github.com/louisbranch/messenger/internal/services/conversations"
	"github.com/louisbranch/messenger/internal/services/profile/domain"
	"github.com/louisbranch/messenger/internal/services/profile/render"
	"github.com/louisbranch/messenger/internal/services/records"
)

// ErrHandlerNotConfigured indicates missing handler dependencies.
var ErrHandlerNotConfigured = errors.New("profile handler is not configured")

// Authenticator signs users in and reports the current one.
type Authenticator interface {
	SignIn(ctx context.Context, email string) (authtoken.User, error)
	CurrentUser(ctx context.Context) (authtoken.User, bool, error)
}

// HandlerDeps lists the collaborators of the HTTP API.
type HandlerDeps struct {
	Auth          Authenticator
	Profile       *domain.Service
	Conversations *conversations.Service
	Logf          httpx.Logf
}

type handler struct {
	auth          Authenticator
	profile       *domain.Service
	conversations *conversations.Service
}

// NewHandler returns the JSON API wrapped in the standard middleware.
func NewHandler(deps HandlerDeps) (http.Handler, error) {
	if deps.Auth == nil || deps.Profile == nil || deps.Conversations == nil {
		return nil, ErrHandlerNotConfigured
	}
	h := &handler{auth: deps.Auth, profile: deps.Profile, conversations: deps.Conversations}

	mux := http.NewServeMux()
	route := func(method, path string, fn http.HandlerFunc) {
		mux.Handle(path, httpx.Chain(fn, httpx.RequireMethod(method)))
	}
	route(http.MethodGet, "/healthz", h.healthz)
	route(http.MethodPost, "/v1/login", h.login)
	route(http.MethodGet, "/v1/profile", h.getProfile)
	route(http.MethodPost, "/v1/profile/refresh", h.refresh)
	route(http.MethodPost, "/v1/profile/presence", h.setPresence)
	route(http.MethodPost, "/v1/logout", h.logout)
	route(http.MethodGet, "/v1/conversations", h.listConversations)

	return httpx.Chain(mux,
		httpx.RequestID(),
		httpx.RecoverPanic(deps.Logf),
		httpx.RequestLogger(deps.Logf),
	), nil
}

type rowResponse struct {
	Kind   string `json:"kind"`
	Label  string `json:"label"`
	State  *bool  `json:"state,omitempty"`
	Failed bool   `json:"failed,omitempty"`
}

type profileResponse struct {
	ImageURL string        `json:"image_url,omitempty"`
	Rows     []rowResponse `json:"rows"`
}

func newProfileResponse(model domain.Model) profileResponse {
	out := profileResponse{ImageURL: model.Header.ImageURL, Rows: make([]rowResponse, 0, len(model.Rows))}
	for _, row := range model.Rows {
		item := rowResponse{Kind: row.Kind.String(), Label: row.Label, Failed: row.Failed}
		if row.Kind == render.RowToggle {
			state := row.State
			item.State = &state
		}
		out.Rows = append(out.Rows, item)
	}
	return out
}

type refreshResponse struct {
	Seq             uint64          `json:"seq"`
	NoActiveSession bool            `json:"no_active_session,omitempty"`
	Applied         bool            `json:"applied"`
	Discarded       bool            `json:"discarded,omitempty"`
	ProfileError    string          `json:"profile_error,omitempty"`
	PresenceError   string          `json:"presence_error,omitempty"`
	Profile         profileResponse `json:"profile"`
}

type loginRequest struct {
	Email string `json:"email"`
}

type presenceRequest struct {
	Active *bool `json:"active"`
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	user, err := h.auth.SignIn(r.Context(), req.Email)
	if err != nil {
		httpx.WriteError(w, apiError(err))
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{"email": user.Email})
}

func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	model, err := h.profile.Model(r.Context())
	if err != nil {
		httpx.WriteError(w, apiError(err))
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, newProfileResponse(model))
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.profile.RefreshCurrent(context.WithoutCancel(r.Context())).Wait(r.Context())
	if err != nil {
		httpx.WriteError(w, apiError(err))
		return
	}
	model, err := h.profile.Model(r.Context())
	if err != nil {
		httpx.WriteError(w, apiError(err))
		return
	}
	resp := refreshResponse{
		Seq:             result.Seq,
		NoActiveSession: result.NoActiveSession,
		Applied:         result.Applied,
		Discarded:       result.Discarded,
		ProfileError:    errorText(result.ProfileErr),
		PresenceError:   errorText(result.PresenceErr),
		Profile:         newProfileResponse(model),
	}
	_ = httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *handler) setPresence(w http.ResponseWriter, r *http.Request) {
	var req presenceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.Active == nil {
		httpx.WriteError(w, apperrors.New(apperrors.CodeInvalidArgument, "active is required"))
		return
	}
	if _, err := h.profile.TogglePresence(context.WithoutCancel(r.Context()), *req.Active).Wait(r.Context()); err != nil {
		httpx.WriteError(w, apiError(err))
		return
	}
	h.getProfile(w, r)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	logout := h.profile.Logout(context.WithoutCancel(r.Context()))
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		select {
		case <-logout.Done():
			if _, err := logout.Wait(r.Context()); err != nil {
				httpx.WriteError(w, apiError(err))
				return
			}
		default:
		}
		_ = httpx.WriteJSON(w, http.StatusAccepted, map[string]bool{"cleared": true})
		return
	}
	result, err := logout.Wait(r.Context())
	if err != nil {
		httpx.WriteError(w, apiError(err))
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"cleared":        result.ClearErr == nil,
		"signed_out":     result.Navigated,
		"sign_out_error": errorText(result.SignOutErr),
	})
}

func (h *handler) listConversations(w http.ResponseWriter, r *http.Request) {
	identity, ok, err := h.profile.Session(r.Context())
	if err != nil {
		httpx.WriteError(w, apiError(err))
		return
	}
	if !ok {
		httpx.WriteError(w, domain.ErrNoActiveSession)
		return
	}
	previews, err := h.conversations.Previews(r.Context(), identity.Email)
	if err != nil {
		httpx.WriteError(w, apiError(err))
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"conversations": previews})
}

// apiError attaches a status code to collaborator failures.
func apiError(err error) error {
	var appErr *apperrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, records.ErrUnavailable), errors.Is(err, blob.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(apperrors.CodeUnavailable, "dependency unavailable", err)
	case errors.Is(err, records.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		return apperrors.Wrap(apperrors.CodeNotFound, "not found", err)
	default:
		return err
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

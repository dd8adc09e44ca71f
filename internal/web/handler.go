// Package web exposes the login, callback and logout flows over HTTP along
// with the handful of pages around them.
package web

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/savaki/sso-frontend/internal/auth"
	"github.com/savaki/sso-frontend/internal/constants"
	"github.com/savaki/sso-frontend/internal/errors"
)

type Handler struct {
	controller *auth.Controller
	sessions   *auth.SessionStore
}

func NewHandler(controller *auth.Controller, sessions *auth.SessionStore) *Handler {
	return &Handler{
		controller: controller,
		sessions:   sessions,
	}
}

// Routes configures all HTTP routes behind the standard middleware stack.
// trustProxy enables X-Forwarded-Proto when building absolute URLs.
func (h *Handler) Routes(logger zerolog.Logger, pathBase string, trustProxy bool) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TrustProxyMiddleware(trustProxy))
	r.Use(PathBaseMiddleware(pathBase))
	r.Use(h.RecoveryMiddleware)

	r.Get("/", h.handleIndex)
	r.Get("/Home/Index", h.handleIndex)
	r.Get("/Home/Privacy", h.handlePrivacy)
	r.Get("/Home/Error", h.handleError)
	r.Get("/Home/AccessDenied", h.handleAccessDenied)

	// Auth routes (no authentication required)
	r.Get(auth.LoginPath, h.handleLogin)
	r.Post(auth.LoginPath, h.handleLogin)
	r.Get(constants.CallbackPath, h.handleCallback)
	r.Post(constants.CallbackPath, h.handleCallback)

	// POST only: a cross-site link must not end the session.
	// The controller checks the session itself.
	r.Post("/Account/Logout", h.handleLogout)

	r.With(h.controller.RequireAuth(false)).Get("/Account/Profile", h.handleProfile)

	return r
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	returnURL := r.FormValue("returnUrl")
	if err := h.controller.Login(w, r, returnURL); err != nil {
		h.fail(w, r, err)
	}
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Callback(w, r); err != nil {
		h.fail(w, r, err)
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Logout(w, r); err != nil {
		h.fail(w, r, err)
	}
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, _ := auth.ProfileFromContext(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(profile)
}

// fail maps a flow error onto the response. Details are logged, never rendered.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger := zerolog.Ctx(r.Context())

	switch {
	case stderrors.Is(err, errors.ErrUnauthorizedLogout):
		auth.HandleAuthFailure(w, r, true, "Logout requires a session")
	case stderrors.Is(err, errors.ErrAccessDenied):
		logger.Warn().Err(err).Msg("Access denied")
		h.renderAccessDenied(w, r)
	default:
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("Authentication flow failed")
		h.renderError(w, r, http.StatusInternalServerError)
	}
}

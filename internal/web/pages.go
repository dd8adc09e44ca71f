package web

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/savaki/sso-frontend/internal/auth"
	"github.com/savaki/sso-frontend/internal/openid"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type pageData struct {
	Title     string
	PathBase  string
	Profile   *auth.Profile
	RequestID string
	Message   string
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	data.PathBase = openid.PathBase(r.Context())
	if data.Profile == nil {
		if profile, ok := h.sessions.Current(r); ok {
			data.Profile = &profile
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("Failed to render page")
	}
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "index.html", pageData{Title: "Home"})
}

func (h *Handler) handlePrivacy(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "privacy.html", pageData{Title: "Privacy"})
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, http.StatusOK)
}

func (h *Handler) handleAccessDenied(w http.ResponseWriter, r *http.Request) {
	h.renderAccessDenied(w, r)
}

// renderError shows the generic error page; only the request id is exposed.
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int) {
	w.Header().Set("Cache-Control", "no-store, no-cache")
	h.render(w, r, status, "error.html", pageData{
		Title:     "Error",
		RequestID: RequestID(r.Context()),
	})
}

func (h *Handler) renderAccessDenied(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusForbidden, "accessdenied.html", pageData{
		Title:   "Access Denied",
		Message: "Insufficient permissions.",
	})
}

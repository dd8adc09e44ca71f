package di

import (
	"github.com/savaki/sso-frontend/internal/auth"
	"github.com/savaki/sso-frontend/internal/web"
)

func ProvideWebHandler(controller *auth.Controller, sessions *auth.SessionStore) *web.Handler {
	return web.NewHandler(controller, sessions)
}

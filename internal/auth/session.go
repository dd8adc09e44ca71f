package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
)

const (
	sessionName = "auth-session"
	profileKey  = "profile" // stores full profile JSON
	tokenKey    = "access_token"
)

// Profile is the identity kept in the local session.
type Profile struct {
	Sub    string `json:"sub"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Issuer string `json:"iss"`
}

// SessionStore is the local cookie scheme. A user is authenticated when the
// cookie carries a profile.
type SessionStore struct {
	store *sessions.CookieStore
}

type SessionStoreInput struct {
	SessionKeys [][]byte
	IsLocalDev  bool // Set to true for local development (disables Secure cookie flag)
}

func NewSessionStore(ctx context.Context, input SessionStoreInput) (*SessionStore, error) {
	logger := zerolog.Ctx(ctx)
	sessionKeys := input.SessionKeys

	// Without configured keys cookies only survive this process
	if len(sessionKeys) == 0 {
		logger.Warn().Msg("No session keys provided, generating ephemeral fallback key")
		fallbackKey := make([]byte, 32)
		if _, err := rand.Read(fallbackKey); err != nil {
			return nil, fmt.Errorf("failed to generate fallback session key: %w", err)
		}
		sessionKeys = [][]byte{fallbackKey}
	}

	// Each key signs and encrypts; newest first, older keys still decode
	keyPairs := make([][]byte, 0, len(sessionKeys)*2)
	for _, key := range sessionKeys {
		keyPairs = append(keyPairs, key, key)
	}

	store := sessions.NewCookieStore(keyPairs...)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   !input.IsLocalDev,
		SameSite: http.SameSiteLaxMode,
	}

	logger.Info().
		Int("session_key_count", len(sessionKeys)).
		Bool("secure_cookies", !input.IsLocalDev).
		Msg("Session store initialized")

	return &SessionStore{store: store}, nil
}

// Store exposes the underlying gorilla store for other cookies sharing the keys.
func (s *SessionStore) Store() sessions.Store {
	return s.store
}

// SignIn writes profile into the local session.
func (s *SessionStore) SignIn(w http.ResponseWriter, r *http.Request, profile Profile, accessToken string) error {
	// An undecodable cookie is replaced by a fresh session
	session, _ := s.store.Get(r, sessionName)

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	session.Values[profileKey] = string(profileJSON)
	session.Values[tokenKey] = accessToken

	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// SignOut expires the local session cookie.
func (s *SessionStore) SignOut(w http.ResponseWriter, r *http.Request) error {
	session, _ := s.store.Get(r, sessionName)

	session.Values = map[interface{}]interface{}{}
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Current returns the profile of the authenticated user, if any.
func (s *SessionStore) Current(r *http.Request) (Profile, bool) {
	logger := zerolog.Ctx(r.Context())

	session, err := s.store.Get(r, sessionName)
	if err != nil {
		// Expected for rotated keys, tampered or expired cookies
		logger.Debug().
			Str("path", r.URL.Path).
			Str("error", err.Error()).
			Msg("Invalid or expired session cookie")
		return Profile{}, false
	}

	profileJSON, ok := session.Values[profileKey].(string)
	if !ok || profileJSON == "" {
		return Profile{}, false
	}

	var profile Profile
	if err := json.Unmarshal([]byte(profileJSON), &profile); err != nil {
		logger.Error().Err(err).Msg("Failed to parse profile from session")
		return Profile{}, false
	}
	return profile, true
}

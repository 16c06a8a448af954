package auth

import (
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	sessionName     = "helix_session"
	accessTokenKey  = "access_token"
	refreshTokenKey = "refresh_token"
)

// SessionStore keeps the auth service token pair in a signed cookie.
type SessionStore struct {
	store sessions.Store
}

func NewSessionStore(secret string, secure bool) *SessionStore {
	cs := sessions.NewCookieStore([]byte(secret))
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionStore{store: cs}
}

// Load returns the stored tokens; an empty AccessToken means no session.
func (s *SessionStore) Load(r *http.Request) Tokens {
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		return Tokens{}
	}
	access, _ := sess.Values[accessTokenKey].(string)
	refresh, _ := sess.Values[refreshTokenKey].(string)
	return Tokens{AccessToken: access, RefreshToken: refresh}
}

func (s *SessionStore) Save(w http.ResponseWriter, r *http.Request, t Tokens) error {
	sess, _ := s.store.Get(r, sessionName)
	sess.Values[accessTokenKey] = t.AccessToken
	sess.Values[refreshTokenKey] = t.RefreshToken
	return sess.Save(r, w)
}

func (s *SessionStore) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, sessionName)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

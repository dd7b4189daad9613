// Package session keeps per-browser state on the server. A session's payload
// lives in the key-value store under session:<id>; the browser only holds the
// id, signed with the cookie secret.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/hoanghai1803/haak/internal/models"
	"github.com/hoanghai1803/haak/internal/storage"
	"github.com/hoanghai1803/haak/internal/token"
)

// ErrInvalidCookie is returned when a session cookie fails signature or
// format checks.
var ErrInvalidCookie = errors.New("invalid session cookie")

// payload is what gets stored for a session.
type payload struct {
	Email        string                 `json:"email,omitempty"`
	PendingLogin *models.LoginChallenge `json:"pending_login,omitempty"`
}

// Session is the request-scoped view of one browser's state. Mutations are
// recorded and written back by Manager.Commit.
type Session struct {
	id       string
	data     payload
	modified bool
	purged   bool
	rotate   bool
}

// Email returns the logged-in identity, or "" when anonymous.
func (s *Session) Email() string {
	return s.data.Email
}

// Authenticated reports whether the session carries an identity.
func (s *Session) Authenticated() bool {
	return s.data.Email != ""
}

// PendingLogin returns the challenge awaiting verification, if any.
func (s *Session) PendingLogin() (models.LoginChallenge, bool) {
	if s.data.PendingLogin == nil {
		return models.LoginChallenge{}, false
	}
	return *s.data.PendingLogin, true
}

// SetPendingLogin replaces the pending login challenge.
func (s *Session) SetPendingLogin(lc models.LoginChallenge) {
	s.data.PendingLogin = &lc
	s.modified = true
}

// Authenticate sets the identity and drops the pending challenge. The
// session gets a new id on commit, so an id known before login is useless
// afterwards.
func (s *Session) Authenticate(email string) {
	s.data.Email = email
	s.data.PendingLogin = nil
	s.modified = true
	s.rotate = true
}

// Purge discards everything in the session.
func (s *Session) Purge() {
	s.data = payload{}
	s.purged = true
}

// Options configure the session cookie.
type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Manager loads and stores sessions.
type Manager struct {
	kv    storage.KV
	codec *securecookie.SecureCookie
	opts  Options
}

// NewManager creates a Manager storing payloads in kv. secret signs the
// session cookie and should be at least 32 bytes.
func NewManager(kv storage.KV, secret []byte, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "haak_session"
	}
	if opts.TTL == 0 {
		opts.TTL = 24 * time.Hour
	}

	codec := securecookie.New(secret, nil)
	codec.MaxAge(int(opts.TTL / time.Second))

	return &Manager{kv: kv, codec: codec, opts: opts}
}

func key(id string) string {
	return "session:" + id
}

// Load returns the session of the request. A missing, tampered or expired
// cookie yields a fresh anonymous session; only store failures are errors.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	id, err := m.readCookie(r)
	if err != nil {
		if !errors.Is(err, http.ErrNoCookie) {
			slog.Debug("ignoring session cookie", "error", err)
		}
		return &Session{}, nil
	}

	raw, err := m.kv.Get(r.Context(), key(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &Session{}, nil
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var data payload
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		slog.Warn("discarding corrupt session payload", "error", err)
		return &Session{}, nil
	}

	return &Session{id: id, data: data}, nil
}

func (m *Manager) readCookie(r *http.Request) (string, error) {
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil {
		return "", err
	}

	var id string
	if err := m.codec.Decode(m.opts.CookieName, c.Value, &id); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}
	if id == "" {
		return "", ErrInvalidCookie
	}
	return id, nil
}

// Commit writes back whatever the request did to the session: a purged
// session is deleted and its cookie expired, a modified one is stored and its
// cookie refreshed. It must run before the response status is written.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, s *Session) error {
	switch {
	case s.purged:
		if s.id != "" {
			if _, err := m.kv.Del(ctx, key(s.id)); err != nil {
				return fmt.Errorf("deleting session: %w", err)
			}
		}
		m.clearCookie(w)
		s.id = ""
		s.purged = false
		s.modified = false
		s.rotate = false
		return nil

	case s.modified:
		if s.rotate && s.id != "" {
			if _, err := m.kv.Del(ctx, key(s.id)); err != nil {
				return fmt.Errorf("rotating session: %w", err)
			}
			s.id = ""
		}
		if s.id == "" {
			s.id = token.New()
		}

		data, err := json.Marshal(s.data)
		if err != nil {
			return fmt.Errorf("marshaling session: %w", err)
		}
		if err := m.kv.SetEX(ctx, key(s.id), string(data), m.opts.TTL); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}

		value, err := m.codec.Encode(m.opts.CookieName, s.id)
		if err != nil {
			return fmt.Errorf("encoding session cookie: %w", err)
		}
		m.setCookie(w, value, time.Now().Add(m.opts.TTL))
		s.modified = false
		s.rotate = false
		return nil
	}
	return nil
}

func (m *Manager) setCookie(w http.ResponseWriter, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   m.opts.Secure,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   m.opts.Secure,
	})
}

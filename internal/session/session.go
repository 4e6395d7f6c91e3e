// Package session keeps the signed-in user in a signed cookie and expires
// it after a period without activity.
package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const (
	// CookieName is the session cookie.
	CookieName = "genio_session"
	// ExpiredURL is where pages send a user whose session lapsed.
	ExpiredURL = "/?msg=sessao_expirada"
	// DefaultIdle is the inactivity window.
	DefaultIdle = 180 * time.Second
)

var (
	// ErrNoSession is returned when the request carries no session.
	ErrNoSession = errors.New("no session")
	// ErrExpired is returned when the inactivity window has passed.
	ErrExpired = errors.New("session expired")
)

type ctxKey struct{}

// UserFrom returns the user stored by the middleware, "" when none.
func UserFrom(ctx context.Context) string {
	user, _ := ctx.Value(ctxKey{}).(string)
	return user
}

// WithUser returns a context carrying user.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// Manager issues and checks session cookies. The token's expiry is the
// last activity plus the idle window, so touching a session slides it.
type Manager struct {
	secret []byte
	idle   time.Duration
	now    func() time.Time
	secure bool
	// passive keeps polled endpoints from sliding the session.
	passive bool
	log     logrus.FieldLogger
}

// NewManager creates a Manager. An empty secret gets a random one, which
// signs everyone out on restart.
func NewManager(secret string, idle time.Duration, log logrus.FieldLogger) (*Manager, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating session secret: %w", err)
		}
	}
	if idle <= 0 {
		idle = DefaultIdle
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{secret: key, idle: idle, now: time.Now, log: log}, nil
}

// WithClock replaces the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// SetSecure marks cookies Secure, for deployments behind TLS.
func (m *Manager) SetSecure(secure bool) {
	m.secure = secure
}

// Idle returns the inactivity window.
func (m *Manager) Idle() time.Duration {
	return m.idle
}

// Issue starts or slides the session of user.
func (m *Manager) Issue(w http.ResponseWriter, user string) error {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.idle)),
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("signing session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read returns the user of the request's session.
func (m *Manager) Read(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrNoSession
	}

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(cookie.Value, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpired
	case err != nil:
		return "", ErrNoSession
	case claims.Subject == "":
		return "", ErrNoSession
	}
	return claims.Subject, nil
}

// Clear removes the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequirePage guards HTML pages: a missing or lapsed session redirects to
// the login page, a live one is slid forward.
func (m *Manager) RequirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.Read(r)
		if err != nil {
			m.Clear(w)
			http.Redirect(w, r, ExpiredURL, http.StatusSeeOther)
			return
		}
		if err := m.Issue(w, user); err != nil {
			m.log.WithError(err).Warn("sliding session failed")
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireAPI guards JSON endpoints: a missing or lapsed session gets a 401
// with the given body. touch slides the session on success.
func (m *Manager) RequireAPI(body any, touch bool) func(http.Handler) http.Handler {
	payload, _ := json.Marshal(body)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := m.Read(r)
			if err != nil {
				m.log.WithFields(logrus.Fields{
					"path":   r.URL.Path,
					"reason": err.Error(),
				}).Debug("session rejected")
				m.Clear(w)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write(payload)
				return
			}
			if touch {
				if err := m.Issue(w, user); err != nil {
					m.log.WithError(err).Warn("sliding session failed")
				}
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// SetPassivePolling makes RequirePolling leave the session alone, so that
// only user activity keeps an open page signed in.
func (m *Manager) SetPassivePolling(passive bool) {
	m.passive = passive
}

// RequirePolling guards the endpoints a page polls on a timer. They slide
// the session like any other request unless polling is passive.
func (m *Manager) RequirePolling(body any) func(http.Handler) http.Handler {
	return m.RequireAPI(body, !m.passive)
}

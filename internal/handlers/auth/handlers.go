package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	httpx "genio/internal/http"
	"genio/internal/session"
	"genio/internal/templates"
)

// Login messages.
const (
	MsgInvalidUser    = "Usuário inválido"
	MsgSessionExpired = "Sua sessão expirou por inatividade. Entre novamente."
)

// Authenticator checks a login.
type Authenticator interface {
	Authenticate(user, password string) error
}

var (
	users    Authenticator
	sessions *session.Manager
	renderer *templates.Renderer
	log      logrus.FieldLogger = logrus.StandardLogger()
)

// Initialize sets up the auth package with required dependencies
func Initialize(a Authenticator, sm *session.Manager, r *templates.Renderer, logger logrus.FieldLogger) {
	users = a
	sessions = sm
	renderer = r
	if logger != nil {
		log = logger
	}
}

// RegisterRoutes registers the login and logout routes. They are the only
// pages reachable without a session.
func RegisterRoutes(r chi.Router) {
	r.Get("/", handleLoginPage)
	r.Post("/", handleLogin)
	r.Get("/logout", handleLogout)
}

func handleLoginPage(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Title": "Entrar", "Usuario": ""}
	if r.URL.Query().Get("msg") == "sessao_expirada" {
		data["Notice"] = MsgSessionExpired
	}
	httpx.RenderTemplate(w, renderer, "login", data)
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.ErrorResponse(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	user := strings.TrimSpace(r.FormValue("usuario"))
	password := r.FormValue("senha")

	if err := users.Authenticate(user, password); err != nil {
		if !errors.Is(err, session.ErrInvalidCredentials) {
			log.WithError(err).Error("checking login")
		}
		log.WithField("user", user).Info("login rejected")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		httpx.RenderTemplate(w, renderer, "login", map[string]any{
			"Title":   "Entrar",
			"Error":   MsgInvalidUser,
			"Usuario": user,
		})
		return
	}

	if err := sessions.Issue(w, user); err != nil {
		log.WithError(err).Error("issuing session")
		httpx.ErrorResponse(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	log.WithField("user", user).Info("login")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	sessions.Clear(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"genio/internal/services/storage"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestManager(t *testing.T) (*Manager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m, err := NewManager("test-secret", 180*time.Second, nil)
	if err != nil {
		t.Fatal(err)
	}
	return m.WithClock(clock.now), clock
}

// sessionCookie issues a session for user and returns the cookie.
func sessionCookie(t *testing.T, m *Manager, user string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := m.Issue(rec, user); err != nil {
		t.Fatal(err)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func requestWith(cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func TestIssueAndRead(t *testing.T) {
	m, clock := newTestManager(t)
	cookie := sessionCookie(t, m, "52998224725")
	if !cookie.HttpOnly || cookie.Path != "/" {
		t.Errorf("cookie attributes = %+v", cookie)
	}

	user, err := m.Read(requestWith(cookie))
	if err != nil || user != "52998224725" {
		t.Fatalf("Read = %q, %v", user, err)
	}

	clock.t = clock.t.Add(179 * time.Second)
	if _, err := m.Read(requestWith(cookie)); err != nil {
		t.Errorf("within the window: %v", err)
	}

	clock.t = clock.t.Add(2 * time.Second)
	if _, err := m.Read(requestWith(cookie)); !errors.Is(err, ErrExpired) {
		t.Errorf("after the window: err = %v, want ErrExpired", err)
	}
}

func TestReadRejects(t *testing.T) {
	m, _ := newTestManager(t)

	if _, err := m.Read(requestWith(nil)); !errors.Is(err, ErrNoSession) {
		t.Errorf("no cookie: %v", err)
	}
	if _, err := m.Read(requestWith(&http.Cookie{Name: CookieName, Value: "garbage"})); !errors.Is(err, ErrNoSession) {
		t.Errorf("garbage cookie: %v", err)
	}

	other, _ := NewManager("another-secret", time.Minute, nil)
	forged := sessionCookie(t, other, "intruso")
	if _, err := m.Read(requestWith(forged)); !errors.Is(err, ErrNoSession) {
		t.Errorf("foreign signature: %v", err)
	}
}

func TestRequirePage(t *testing.T) {
	m, clock := newTestManager(t)
	var seen string
	h := m.RequirePage(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWith(nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != ExpiredURL {
		t.Errorf("no session: %d %s", rec.Code, rec.Header().Get("Location"))
	}

	cookie := sessionCookie(t, m, "52998224725")
	clock.t = clock.t.Add(170 * time.Second)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestWith(cookie))
	if rec.Code != http.StatusOK || seen != "52998224725" {
		t.Fatalf("live session: %d user=%q", rec.Code, seen)
	}

	// The page view slid the session: the refreshed cookie outlives the
	// original window.
	var slid *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			slid = c
		}
	}
	if slid == nil {
		t.Fatal("page view did not refresh the cookie")
	}
	clock.t = clock.t.Add(100 * time.Second)
	if _, err := m.Read(requestWith(slid)); err != nil {
		t.Errorf("slid session: %v", err)
	}
	if _, err := m.Read(requestWith(cookie)); !errors.Is(err, ErrExpired) {
		t.Errorf("original cookie should have lapsed: %v", err)
	}
}

func TestRequireAPI(t *testing.T) {
	m, clock := newTestManager(t)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	polling := m.RequireAPI(map[string]string{"status": "erro"}, false)(ok)
	ping := m.RequireAPI(map[string]string{"status": "expired"}, true)(ok)

	rec := httptest.NewRecorder()
	polling.ServeHTTP(rec, requestWith(nil))
	if rec.Code != http.StatusUnauthorized || strings.TrimSpace(rec.Body.String()) != `{"status":"erro"}` {
		t.Errorf("polling without session: %d %s", rec.Code, rec.Body)
	}

	cookie := sessionCookie(t, m, "52998224725")
	rec = httptest.NewRecorder()
	polling.ServeHTTP(rec, requestWith(cookie))
	if rec.Code != http.StatusOK {
		t.Errorf("polling with session: %d", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("polling must not slide the session")
	}

	rec = httptest.NewRecorder()
	ping.ServeHTTP(rec, requestWith(cookie))
	if rec.Code != http.StatusOK || len(rec.Result().Cookies()) == 0 {
		t.Errorf("ping should slide the session: %d", rec.Code)
	}

	clock.t = clock.t.Add(time.Hour)
	rec = httptest.NewRecorder()
	ping.ServeHTTP(rec, requestWith(cookie))
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "expired") {
		t.Errorf("lapsed ping: %d %s", rec.Code, rec.Body)
	}
}

func TestAuthenticate(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	hash, err := HashPassword("segredo-forte")
	if err != nil {
		t.Fatal(err)
	}
	content := "usuario,senha\n52998224725," + hash + "\n11144477735,1234\n"
	if err := os.WriteFile(filepath.Join(dir, "usuarios.csv"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	users := NewUsers(store, "usuarios.csv")

	tests := []struct {
		user, password string
		ok             bool
	}{
		{"52998224725", "segredo-forte", true},
		{"52998224725", "errada", false},
		{"11144477735", "1234", true},
		{" 11144477735 ", "1234", true},
		{"11144477735", "12345", false},
		{"00000000000", "1234", false},
		{"", "", false},
	}
	for _, tt := range tests {
		err := users.Authenticate(tt.user, tt.password)
		if tt.ok && err != nil {
			t.Errorf("Authenticate(%q) = %v", tt.user, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Authenticate(%q, %q) = %v, want ErrInvalidCredentials", tt.user, tt.password, err)
		}
	}
}

func TestAuthenticateMissingFile(t *testing.T) {
	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	err = NewUsers(store, "usuarios.csv").Authenticate("52998224725", "x")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("missing file should be an I/O error, got %v", err)
	}
}

func TestRequirePolling(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		name    string
		passive bool
		slides  bool
	}{
		{"polling counts as activity", false, true},
		{"passive polling", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager(t)
			m.SetPassivePolling(tt.passive)
			cookie := sessionCookie(t, m, "52998224725")

			rec := httptest.NewRecorder()
			m.RequirePolling([]string{})(ok).ServeHTTP(rec, requestWith(cookie))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if slid := len(rec.Result().Cookies()) > 0; slid != tt.slides {
				t.Errorf("slid = %v, want %v", slid, tt.slides)
			}
		})
	}
}

// Package keepalive polls the dashboard host: a periodic refresh that
// re-fetches the evolution series, and an activity-driven session ping.
package keepalive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"genio/internal/models"
)

// Host paths polled by the client.
const (
	PathRefreshReport  = "/relatorio/atualizar"
	PathRefreshInfo    = "/informacoes/atualizar"
	PathSeries         = "/evolucao/dados"
	PathPing           = "/session/ping"
	PathLogin          = "/"
	ExpiredRedirectURL = "/?msg=sessao_expirada"
)

// DefaultSchedule is the refresh cadence.
const DefaultSchedule = "@every 40s"

// ErrSessionExpired is returned when the host answers 401.
var ErrSessionExpired = errors.New("session expired")

// Client talks to one dashboard host. The zero value is not usable; build
// one with New.
type Client struct {
	base     *url.URL
	http     *http.Client
	log      logrus.FieldLogger
	schedule string

	// OnSeries receives every successfully fetched series.
	OnSeries func([]models.Point)
	// OnExpired receives the login URL to navigate to after a 401.
	OnExpired func(loginURL string)
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, typically to share a cookie jar.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger for swallowed failures.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

// WithSchedule overrides the refresh cron spec.
func WithSchedule(spec string) Option {
	return func(c *Client) { c.schedule = spec }
}

// New returns a client for the host at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL %q needs a scheme and host", baseURL)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c := &Client{
		base:     base,
		http:     &http.Client{Timeout: 15 * time.Second},
		log:      logger,
		schedule: DefaultSchedule,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL resolves path against the host.
func (c *Client) URL(path string) string {
	u := *c.base
	ref, err := url.Parse(path)
	if err != nil {
		return c.base.String() + path
	}
	u.Path = strings.TrimRight(u.Path, "/") + ref.Path
	u.RawQuery = ref.RawQuery
	return u.String()
}

// Login posts the login form. The HTTP client needs a cookie jar for the
// session to stick.
func (c *Client) Login(ctx context.Context, cpf, password string) error {
	form := url.Values{"usuario": {cpf}, "senha": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(PathLogin), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	noFollow := *c.http
	noFollow.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := noFollow.Do(req)
	if err != nil {
		return fmt.Errorf("posting login: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusSeeOther && resp.StatusCode != http.StatusFound {
		return fmt.Errorf("login rejected: status %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "" && strings.HasPrefix(loc, "/?") {
		return fmt.Errorf("login rejected: redirected to %s", loc)
	}
	return nil
}

// get issues a GET and maps 401 to ErrSessionExpired. Other failures are
// returned as plain errors for the caller to swallow.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrSessionExpired
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return body, nil
}

// expire reports a 401 to OnExpired and returns ErrSessionExpired.
func (c *Client) expire() error {
	if c.OnExpired != nil {
		c.OnExpired(c.URL(ExpiredRedirectURL))
	}
	return ErrSessionExpired
}

// Refresh triggers the two host-side refreshes and then fetches the series.
// Only session expiry is reported; every other failure is logged at debug
// level and left for the next tick.
func (c *Client) Refresh(ctx context.Context) error {
	for _, path := range []string{PathRefreshReport, PathRefreshInfo} {
		if _, err := c.get(ctx, path); err != nil {
			if errors.Is(err, ErrSessionExpired) {
				return c.expire()
			}
			c.log.WithError(err).WithField("path", path).Debug("refresh trigger failed")
		}
	}

	body, err := c.get(ctx, PathSeries)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return c.expire()
		}
		c.log.WithError(err).Debug("series fetch failed")
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		c.log.WithError(err).Debug("series payload is not an array")
		return nil
	}
	if c.OnSeries != nil {
		c.OnSeries(models.ParseSeries(body))
	}
	return nil
}

// Run refreshes immediately and then on the client's schedule until ctx is
// done or the session expires. Ticks are not serialised: a slow refresh
// may overlap the next one.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	tick := func() {
		if err := c.Refresh(ctx); errors.Is(err, ErrSessionExpired) {
			cancel(err)
		}
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(c.schedule, tick); err != nil {
		return fmt.Errorf("scheduling refresh %q: %w", c.schedule, err)
	}

	tick()
	scheduler.Start()
	<-ctx.Done()
	<-scheduler.Stop().Done()

	if cause := context.Cause(ctx); errors.Is(cause, ErrSessionExpired) {
		return ErrSessionExpired
	}
	return ctx.Err()
}

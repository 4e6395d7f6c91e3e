package keepalive

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultPingInterval is the minimum gap between two pings.
const DefaultPingInterval = 15 * time.Second

// Pinger turns user activity into session pings, at most one per interval.
type Pinger struct {
	client   *Client
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewPinger returns a pinger that uses client's host and HTTP client.
func NewPinger(client *Client) *Pinger {
	return &Pinger{
		client:   client,
		interval: DefaultPingInterval,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for rate limiting.
func (p *Pinger) WithClock(now func() time.Time) *Pinger {
	p.now = now
	return p
}

// WithInterval replaces the minimum gap between pings.
func (p *Pinger) WithInterval(d time.Duration) *Pinger {
	p.interval = d
	return p
}

// Activity records one user event (click, move, key, scroll or touch) and
// pings the host unless a ping was sent within the interval. The timestamp
// is taken before the request, so a failed ping still holds the slot. It
// reports whether a ping was sent; only session expiry is returned as an
// error.
func (p *Pinger) Activity(ctx context.Context) (bool, error) {
	p.mu.Lock()
	now := p.now()
	if !p.last.IsZero() && now.Sub(p.last) < p.interval {
		p.mu.Unlock()
		return false, nil
	}
	p.last = now
	p.mu.Unlock()

	if _, err := p.client.get(ctx, PathPing); err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return true, p.client.expire()
		}
		p.client.log.WithError(err).Debug("session ping failed")
	}
	return true, nil
}

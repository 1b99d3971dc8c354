package api

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// SessionGuard wraps the transport and recovers from an expired access
// credential: a 401 triggers one credential refresh and exactly one
// replay of the original request. Every other failure propagates
// untouched. Constructed once at startup and injected into every call
// site.
type SessionGuard struct {
	transport *Transport
	refresher *RefreshCoordinator
	log       zerolog.Logger

	mu      sync.Mutex
	expired func()
}

// NewSessionGuard creates a guard over the given transport and refresh
// coordinator.
func NewSessionGuard(t *Transport, rc *RefreshCoordinator, log zerolog.Logger) *SessionGuard {
	return &SessionGuard{transport: t, refresher: rc, log: log}
}

// OnAuthExpired registers the hook invoked when a credential refresh
// fails. Later registrations replace earlier ones.
func (g *SessionGuard) OnAuthExpired(fn func()) {
	g.mu.Lock()
	g.expired = fn
	g.mu.Unlock()
}

// Do executes the request. On a 401 for a request not yet replayed, it
// refreshes the credential and resends the identical request once; the
// resend's outcome, success or failure, is what the caller sees. If the
// refresh itself fails the registered expiry hook fires and the refresh
// failure propagates as a session-expired condition.
func (g *SessionGuard) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := g.transport.Do(ctx, req)
	if err == nil || !IsAuth(err) || req.retried {
		return resp, err
	}

	req.retried = true
	g.log.Debug().Str("path", req.Path).Msg("401 received, refreshing credential")

	if rerr := g.refresher.Refresh(ctx); rerr != nil {
		g.notifyExpired()
		return nil, &Error{Kind: KindAuth, Detail: "session expired", Err: rerr}
	}

	return g.transport.Do(ctx, req)
}

func (g *SessionGuard) notifyExpired() {
	g.mu.Lock()
	fn := g.expired
	g.mu.Unlock()
	if fn != nil {
		fn()
	}
}

package api

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// refreshKey is the single flight key; there is only ever one credential
// to refresh.
const refreshKey = "refresh"

// RefreshCoordinator renews the access credential, collapsing concurrent
// callers onto one outstanding POST /refresh. All callers of a wave
// observe the same outcome, and the flight is cleared on settlement so a
// later failure can start a fresh one. The refresh call itself is never
// retried.
//
// Refresh goes straight through the Transport, never through
// SessionGuard, so a 401 from /refresh cannot recurse.
type RefreshCoordinator struct {
	transport *Transport
	group     singleflight.Group
	log       zerolog.Logger
}

// NewRefreshCoordinator creates a coordinator over the given transport.
func NewRefreshCoordinator(t *Transport, log zerolog.Logger) *RefreshCoordinator {
	return &RefreshCoordinator{transport: t, log: log}
}

// Refresh renews the access credential cookie. The first caller's
// context drives the shared round trip; joiners inherit its outcome.
func (r *RefreshCoordinator) Refresh(ctx context.Context) error {
	_, err, shared := r.group.Do(refreshKey, func() (any, error) {
		r.log.Debug().Msg("refreshing access credential")
		_, err := r.transport.Do(ctx, &Request{Method: http.MethodPost, Path: "/refresh"})
		return nil, err
	})
	if shared {
		r.log.Debug().Msg("joined in-flight refresh")
	}
	return err
}

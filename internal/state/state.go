// Package state wires the client's long-lived singletons together.
package state

import (
	"tasker/internal/api"
	"tasker/internal/config"
	"tasker/internal/session"
	"tasker/internal/taskstore"
)

// State is the application state: one transport, one refresh
// coordinator, one session guard, and the two stores every collaborator
// reads from. Constructed once per process and passed by reference;
// there is no global lookup.
type State struct {
	Transport *api.Transport
	Refresher *api.RefreshCoordinator
	Guard     *api.SessionGuard
	Session   *session.Session
	Tasks     *taskstore.Store
}

// New builds the state from the given config. The session registers as
// the guard's expiry hook, so a failed credential refresh anywhere
// drives it to Unauthenticated.
func New(cfg *config.Config) (*State, error) {
	log := cfg.Logger()

	opts := []api.Option{api.WithLogger(log)}
	if cfg.Dir != "" {
		opts = append(opts, api.WithCookieFile(cfg.CookiePath()))
	}
	transport, err := api.NewTransport(cfg.APIURL, opts...)
	if err != nil {
		return nil, err
	}

	refresher := api.NewRefreshCoordinator(transport, log)
	guard := api.NewSessionGuard(transport, refresher, log)
	sess := session.New(guard)
	guard.OnAuthExpired(sess.Expire)

	return &State{
		Transport: transport,
		Refresher: refresher,
		Guard:     guard,
		Session:   sess,
		Tasks:     taskstore.New(guard),
	}, nil
}

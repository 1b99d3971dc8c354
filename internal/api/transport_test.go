package api_test

import (
	"context"
	"net/http"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"tasker/internal/api"
	"tasker/internal/testutil"
)

func newTransport(t *testing.T, f *testutil.FakeAPI, opts ...api.Option) *api.Transport {
	t.Helper()
	tr, err := api.NewTransport(f.URL(), opts...)
	require.NoError(t, err)
	return tr
}

// login establishes a session at the transport level.
func login(t *testing.T, tr *api.Transport, username, password string) {
	t.Helper()
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	_, err := tr.Do(context.Background(), &api.Request{Method: http.MethodPost, Path: "/login", Form: form})
	require.NoError(t, err)
}

func TestNewTransport_RejectsBadBaseURL(t *testing.T) {
	_, err := api.NewTransport("not a url")
	require.Error(t, err)

	_, err = api.NewTransport("/relative/only")
	require.Error(t, err)
}

func TestTransport_MapsUnauthorized(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	tr := newTransport(t, f)

	_, err := tr.Do(context.Background(), &api.Request{Method: http.MethodGet, Path: "/me"})
	require.True(t, api.IsAuth(err))

	var ae *api.Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, http.StatusUnauthorized, ae.Status)
	require.Equal(t, "Invalid token", ae.Detail)
}

func TestTransport_MapsNotFound(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.AddUser("bob", "password1", "bob@example.com")
	tr := newTransport(t, f)
	login(t, tr, "bob", "password1")

	_, err := tr.Do(context.Background(), &api.Request{Method: http.MethodGet, Path: "/task/99"})
	require.True(t, api.IsNotFound(err))
	require.Equal(t, "Task not found", err.Error())
}

func TestTransport_MapsServerDetail(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	tr := newTransport(t, f)

	form := url.Values{}
	form.Set("username", "nobody")
	form.Set("password", "whatever1")
	_, err := tr.Do(context.Background(), &api.Request{Method: http.MethodPost, Path: "/login", Form: form})

	require.True(t, api.IsKind(err, api.KindServer))
	require.Equal(t, "User does not exist", err.Error())
}

func TestTransport_MapsConnectionFailure(t *testing.T) {
	// A port nothing listens on.
	tr, err := api.NewTransport("http://127.0.0.1:1")
	require.NoError(t, err)

	_, err = tr.Do(context.Background(), &api.Request{Method: http.MethodGet, Path: "/task"})
	require.True(t, api.IsTransport(err))
}

func TestTransport_CookiePersistenceAcrossRestarts(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.AddUser("bob", "password1", "bob@example.com")
	cookiePath := filepath.Join(t.TempDir(), "cookies.json")

	tr := newTransport(t, f, api.WithCookieFile(cookiePath), api.WithLogger(zerolog.Nop()))
	login(t, tr, "bob", "password1")

	// A fresh transport loading the same cookie file should have the
	// session without logging in again.
	tr2 := newTransport(t, f, api.WithCookieFile(cookiePath))
	resp, err := tr2.Do(context.Background(), &api.Request{Method: http.MethodGet, Path: "/me"})
	require.NoError(t, err)

	var u api.User
	require.NoError(t, resp.Decode(&u))
	require.Equal(t, "bob", u.Username)
}

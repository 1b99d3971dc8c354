package taskstore_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"tasker/internal/api"
	"tasker/internal/session"
	"tasker/internal/taskstore"
	"tasker/internal/testutil"
)

// newStore builds a store behind a logged-in session.
func newStore(t *testing.T, f *testutil.FakeAPI) *taskstore.Store {
	t.Helper()
	tr, err := api.NewTransport(f.URL())
	require.NoError(t, err)
	rc := api.NewRefreshCoordinator(tr, zerolog.Nop())
	guard := api.NewSessionGuard(tr, rc, zerolog.Nop())

	f.AddUser("bob", "password1", "bob@example.com")
	s := session.New(guard)
	_, err = s.Login(context.Background(), "bob", "password1")
	require.NoError(t, err)

	return taskstore.New(guard)
}

func TestList_ReplacesCacheInServerOrder(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	a := f.SeedTask("Buy milk", "two liters of milk", false)
	b := f.SeedTask("Water plants", "the ones on the balcony", true)
	store := newStore(t, f)

	got, err := store.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, []api.Task{a, b}, got)
	require.Empty(t, store.LastError())
}

// Calling list twice with no intervening mutation yields identical
// snapshots.
func TestList_Idempotent(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.SeedTask("Buy milk", "two liters of milk", false)
	f.SeedTask("Water plants", "the ones on the balcony", true)
	store := newStore(t, f)

	first, err := store.List(context.Background())
	require.NoError(t, err)
	second, err := store.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)
}

// Scenario A: too-short fields are rejected locally; nothing is sent.
func TestCreate_ValidationFailsLocally(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	store := newStore(t, f)

	_, err := store.Create(context.Background(), "ab", "short", false)
	require.True(t, api.IsValidation(err))
	require.Equal(t, 0, f.RequestCount("POST /task"))
	require.NotEmpty(t, store.LastError())

	_, err = store.Create(context.Background(), "long enough title", "short", false)
	require.True(t, api.IsValidation(err))
	require.Equal(t, 0, f.RequestCount("POST /task"))
}

// Scenario B: a valid create reaches the server and grows the cache by
// exactly one.
func TestCreate_AppendsServerTask(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	store := newStore(t, f)

	_, err := store.List(context.Background())
	require.NoError(t, err)
	before := len(store.Snapshot())

	task, err := store.Create(context.Background(), "Buy milk", "two liters of milk", false)
	require.NoError(t, err)
	require.NotZero(t, task.ID)
	require.Equal(t, 1, f.RequestCount("POST /task"))

	snap := store.Snapshot()
	require.Len(t, snap, before+1)
	require.Equal(t, task, snap[len(snap)-1])
	require.Empty(t, store.LastError())
}

func TestFetchOne_NotFound(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	store := newStore(t, f)

	_, err := store.FetchOne(context.Background(), 42)
	require.True(t, api.IsNotFound(err))
	require.NotEmpty(t, store.LastError())
}

func TestFetchOne_Upserts(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	a := f.SeedTask("Buy milk", "two liters of milk", false)
	b := f.SeedTask("Water plants", "the ones on the balcony", false)
	store := newStore(t, f)

	// Unknown id appends.
	got, err := store.FetchOne(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, a, got)
	require.Len(t, store.Snapshot(), 1)

	// Change server-side, refetch: replaced in place, no duplicate.
	_, err = store.Patch(context.Background(), a.ID, taskstore.Fields{Completed: boolPtr(true)})
	require.NoError(t, err)
	got, err = store.FetchOne(context.Background(), a.ID)
	require.NoError(t, err)
	require.True(t, got.Completed)
	require.Len(t, store.Snapshot(), 1)

	// Another unknown id appends after the first.
	_, err = store.FetchOne(context.Background(), b.ID)
	require.NoError(t, err)
	snap := store.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, a.ID, snap[0].ID)
	require.Equal(t, b.ID, snap[1].ID)
}

func TestToggle_ConfirmedByServer(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	seeded := f.SeedTask("Buy milk", "two liters of milk", false)
	store := newStore(t, f)

	_, err := store.List(context.Background())
	require.NoError(t, err)

	got, err := store.Toggle(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.True(t, got.Completed)

	serverCopy, ok := f.ServerTask(seeded.ID)
	require.True(t, ok)
	require.True(t, serverCopy.Completed)
	require.Empty(t, store.LastError())
}

// Scenario D: the optimistic flip is rolled back when the patch fails,
// and the error is recorded.
func TestToggle_RollsBackOnFailure(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	seeded := f.SeedTask("Buy milk", "two liters of milk", false)
	store := newStore(t, f)

	_, err := store.List(context.Background())
	require.NoError(t, err)

	f.SetFailTasks(true)

	_, err = store.Toggle(context.Background(), seeded.ID)
	require.Error(t, err)

	cached, ok := store.Get(seeded.ID)
	require.True(t, ok)
	require.False(t, cached.Completed, "flip must be rolled back to its pre-toggle value")
	require.NotEmpty(t, store.LastError())
}

func TestToggle_UnknownIDFailsWithoutNetwork(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	store := newStore(t, f)

	_, err := store.Toggle(context.Background(), 7)
	require.True(t, api.IsNotFound(err))
	require.Equal(t, 0, f.RequestCount("PATCH /task/7"))
}

// Concurrent toggles on one id are serialized: every flip lands, and
// the cache matches the server afterwards.
func TestToggle_SerializedPerTask(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	seeded := f.SeedTask("Buy milk", "two liters of milk", false)
	store := newStore(t, f)

	_, err := store.List(context.Background())
	require.NoError(t, err)

	const n = 5 // odd, so the final state is flipped
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Toggle(context.Background(), seeded.ID)
		}(i)
	}
	wg.Wait()
	for _, terr := range errs {
		require.NoError(t, terr)
	}

	cached, ok := store.Get(seeded.ID)
	require.True(t, ok)
	serverCopy, _ := f.ServerTask(seeded.ID)
	require.Equal(t, serverCopy.Completed, cached.Completed)
	require.True(t, cached.Completed)
}

func TestPatch_ServerRepresentationWins(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	seeded := f.SeedTask("Buy milk", "two liters of milk", false)
	store := newStore(t, f)

	_, err := store.List(context.Background())
	require.NoError(t, err)

	got, err := store.Patch(context.Background(), seeded.ID, taskstore.Fields{Title: strPtr("Buy oat milk")})
	require.NoError(t, err)
	require.Equal(t, "Buy oat milk", got.Title)
	require.Equal(t, seeded.Description, got.Description)

	cached, _ := store.Get(seeded.ID)
	require.Equal(t, got, cached)
}

func TestDelete_RemovesOnMatchingEcho(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	seeded := f.SeedTask("Buy milk", "two liters of milk", false)
	store := newStore(t, f)

	_, err := store.List(context.Background())
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), seeded.ID))
	_, ok := store.Get(seeded.ID)
	require.False(t, ok)
	require.Empty(t, store.Snapshot())
}

// An echo mismatch is an error; the cache keeps the entry.
func TestDelete_EchoMismatchKeepsCache(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	seeded := f.SeedTask("Buy milk", "two liters of milk", false)
	store := newStore(t, f)

	_, err := store.List(context.Background())
	require.NoError(t, err)

	f.SetDeletedEcho(seeded.ID + 100)

	err = store.Delete(context.Background(), seeded.ID)
	require.True(t, api.IsKind(err, api.KindServer))

	_, ok := store.Get(seeded.ID)
	require.True(t, ok, "cache must be unchanged on echo mismatch")
	require.NotEmpty(t, store.LastError())
}

func TestFilter_NarrowsVisibleOnly(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	open := f.SeedTask("Buy milk", "two liters of milk", false)
	done := f.SeedTask("Water plants", "the ones on the balcony", true)
	store := newStore(t, f)

	_, err := store.List(context.Background())
	require.NoError(t, err)

	store.SetFilter(taskstore.FilterCompleted)
	require.Equal(t, []api.Task{done}, store.Visible())

	store.SetFilter(taskstore.FilterNotCompleted)
	require.Equal(t, []api.Task{open}, store.Visible())

	// The cache itself is untouched by the filter.
	require.Len(t, store.Snapshot(), 2)

	store.SetFilter(taskstore.FilterAll)
	require.Len(t, store.Visible(), 2)
}

// A success after a failure clears the error field.
func TestLastError_ClearedOnSuccess(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.SeedTask("Buy milk", "two liters of milk", false)
	store := newStore(t, f)

	f.SetFailTasks(true)
	_, err := store.List(context.Background())
	require.Error(t, err)
	require.NotEmpty(t, store.LastError())

	f.SetFailTasks(false)
	_, err = store.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, store.LastError())
}

func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

package taskstore_test

import (
	"context"
	"testing"
	"unicode/utf8"

	"pgregory.net/rapid"

	"tasker/internal/api"
	"tasker/internal/taskstore"
	"tasker/internal/testutil"
)

// TestProperty_CacheMatchesServerAfterMutations verifies that after any
// sequence of settled mutations the cached tasks are exact copies of the
// server's, with unique ids, in a stable order.
func TestProperty_CacheMatchesServerAfterMutations(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := testutil.NewFakeAPI(t)
		store := newStore(t, f)
		ctx := context.Background()

		if _, err := store.List(ctx); err != nil {
			rt.Fatalf("List failed: %v", err)
		}

		var ids []int
		n := rapid.IntRange(1, 15).Draw(rt, "num_ops")
		for i := 0; i < n; i++ {
			op := rapid.SampledFrom([]string{"create", "toggle", "patch", "delete", "list"}).Draw(rt, "op")
			switch {
			case op == "create" || len(ids) == 0:
				task, err := store.Create(ctx, "Generated task", "a placeholder description", rapid.Bool().Draw(rt, "completed"))
				if err != nil {
					rt.Fatalf("Create failed: %v", err)
				}
				ids = append(ids, task.ID)
			case op == "toggle":
				id := rapid.SampledFrom(ids).Draw(rt, "toggle_id")
				if _, err := store.Toggle(ctx, id); err != nil {
					rt.Fatalf("Toggle(%d) failed: %v", id, err)
				}
			case op == "patch":
				id := rapid.SampledFrom(ids).Draw(rt, "patch_id")
				title := rapid.StringMatching(`[a-z ]{4,40}`).Draw(rt, "title")
				if _, err := store.Patch(ctx, id, taskstore.Fields{Title: &title}); err != nil {
					rt.Fatalf("Patch(%d) failed: %v", id, err)
				}
			case op == "delete":
				idx := rapid.IntRange(0, len(ids)-1).Draw(rt, "delete_idx")
				if err := store.Delete(ctx, ids[idx]); err != nil {
					rt.Fatalf("Delete(%d) failed: %v", ids[idx], err)
				}
				ids = append(ids[:idx], ids[idx+1:]...)
			case op == "list":
				if _, err := store.List(ctx); err != nil {
					rt.Fatalf("List failed: %v", err)
				}
			}
		}

		snap := store.Snapshot()
		if len(snap) != len(ids) {
			rt.Fatalf("cache holds %d tasks, expected %d", len(snap), len(ids))
		}
		seen := make(map[int]bool, len(snap))
		for i, cached := range snap {
			if cached.ID != ids[i] {
				rt.Fatalf("cache[%d].ID = %d, want %d (insertion order)", i, cached.ID, ids[i])
			}
			if seen[cached.ID] {
				rt.Fatalf("duplicate id %d in cache", cached.ID)
			}
			seen[cached.ID] = true
			server, ok := f.ServerTask(cached.ID)
			if !ok {
				rt.Fatalf("task %d cached but absent from server", cached.ID)
			}
			if cached != server {
				rt.Fatalf("cache diverged for task %d: %+v != %+v", cached.ID, cached, server)
			}
		}
	})
}

// TestProperty_FailedTogglesNeverDiverge verifies that toggles that fail
// mid-flight roll back, so the cache keeps matching the server no matter
// how failures are interleaved.
func TestProperty_FailedTogglesNeverDiverge(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := testutil.NewFakeAPI(t)
		seeded := f.SeedTask("Buy milk", "two liters of milk", false)
		store := newStore(t, f)
		ctx := context.Background()

		if _, err := store.List(ctx); err != nil {
			rt.Fatalf("List failed: %v", err)
		}

		n := rapid.IntRange(1, 20).Draw(rt, "num_toggles")
		for i := 0; i < n; i++ {
			fail := rapid.Bool().Draw(rt, "fail")
			f.SetFailTasks(fail)
			_, err := store.Toggle(ctx, seeded.ID)
			if fail && err == nil {
				rt.Fatalf("toggle #%d succeeded while the backend was failing", i+1)
			}
			if !fail && err != nil {
				rt.Fatalf("toggle #%d failed: %v", i+1, err)
			}
		}
		f.SetFailTasks(false)

		cached, ok := store.Get(seeded.ID)
		if !ok {
			rt.Fatalf("task %d missing from cache", seeded.ID)
		}
		server, _ := f.ServerTask(seeded.ID)
		if cached.Completed != server.Completed {
			rt.Fatalf("cache diverged: completed=%v, server has %v", cached.Completed, server.Completed)
		}
	})
}

// TestProperty_ContentValidationGatesNetwork verifies that create only
// reaches the network when both fields are within bounds.
func TestProperty_ContentValidationGatesNetwork(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := testutil.NewFakeAPI(t)
		store := newStore(t, f)

		title := rapid.StringMatching(`[a-z ]{0,45}`).Draw(rt, "title")
		description := rapid.StringMatching(`[a-z ]{0,255}`).Draw(rt, "description")
		titleOK := utf8.RuneCountInString(title) >= 4 && utf8.RuneCountInString(title) <= 40
		descOK := utf8.RuneCountInString(description) >= 11 && utf8.RuneCountInString(description) <= 250

		before := f.RequestCount("POST /task")
		_, err := store.Create(context.Background(), title, description, false)

		if titleOK && descOK {
			if err != nil {
				rt.Fatalf("Create rejected valid content: %v", err)
			}
			if got := f.RequestCount("POST /task"); got != before+1 {
				rt.Fatalf("expected one create request, counted %d", got-before)
			}
		} else {
			if !api.IsValidation(err) {
				rt.Fatalf("expected a validation error, got %v", err)
			}
			if got := f.RequestCount("POST /task"); got != before {
				rt.Fatalf("invalid content reached the network (%d requests)", got-before)
			}
		}
	})
}

// Package taskstore holds the cached task collection and keeps it
// consistent with the server.
//
// Every operation goes through the session guard and settles to either
// an updated snapshot or a typed error. Mutations to the same task id
// are serialized: at most one is in flight per id, later ones wait for
// the previous settlement so a stale response can never overwrite newer
// local state. Cross-id mutations are unordered.
package taskstore

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"unicode/utf8"

	"tasker/internal/api"
)

// Filter selects which tasks Visible returns. It never mutates the
// cache.
type Filter string

const (
	FilterAll          Filter = "all"
	FilterCompleted    Filter = "completed"
	FilterNotCompleted Filter = "not_completed"
)

// Fields is a partial task update. Nil members are omitted from the
// request and left untouched server-side.
type Fields struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

type taskEnvelope struct {
	Task api.Task `json:"task"`
}

type tasksEnvelope struct {
	Tasks []api.Task `json:"tasks"`
}

type deletedEnvelope struct {
	DeletedID int `json:"deleted_id"`
}

// Store is the process-wide task cache. Insertion order is arrival
// order; at most one entry exists per id.
type Store struct {
	guard *api.SessionGuard

	mu        sync.Mutex
	order     []int
	tasks     map[int]api.Task
	filter    Filter
	loading   bool
	lastError string

	gateMu sync.Mutex
	gates  map[int]chan struct{}
}

// New creates an empty store with the all filter.
func New(guard *api.SessionGuard) *Store {
	return &Store{
		guard:  guard,
		tasks:  make(map[int]api.Task),
		filter: FilterAll,
		gates:  make(map[int]chan struct{}),
	}
}

// List replaces the entire cache with the server's task collection, in
// server order.
func (s *Store) List(ctx context.Context) ([]api.Task, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	resp, err := s.guard.Do(ctx, &api.Request{Method: http.MethodGet, Path: "/task"})
	if err != nil {
		s.recordError(err)
		return nil, err
	}
	var env tasksEnvelope
	if err := resp.Decode(&env); err != nil {
		s.recordError(err)
		return nil, err
	}

	s.mu.Lock()
	s.order = s.order[:0]
	s.tasks = make(map[int]api.Task, len(env.Tasks))
	for _, t := range env.Tasks {
		if _, seen := s.tasks[t.ID]; !seen {
			s.order = append(s.order, t.ID)
		}
		s.tasks[t.ID] = t
	}
	s.lastError = ""
	s.mu.Unlock()

	return s.Snapshot(), nil
}

// Task content constraints, mirrored from the server's schema. Checked
// locally so violations never reach the network.
const (
	titleMinLen = 4
	titleMaxLen = 40
	descMinLen  = 11
	descMaxLen  = 250
)

// Create validates locally, then creates the task server-side and
// appends the returned representation to the cache.
func (s *Store) Create(ctx context.Context, title, description string, completed bool) (api.Task, error) {
	if err := validateContent(title, description); err != nil {
		s.recordError(err)
		return api.Task{}, err
	}

	s.setLoading(true)
	defer s.setLoading(false)

	body := map[string]any{
		"title":       title,
		"description": description,
		"completed":   completed,
	}
	resp, err := s.guard.Do(ctx, &api.Request{Method: http.MethodPost, Path: "/task", JSON: body})
	if err != nil {
		s.recordError(err)
		return api.Task{}, err
	}
	var env taskEnvelope
	if err := resp.Decode(&env); err != nil {
		s.recordError(err)
		return api.Task{}, err
	}

	s.mu.Lock()
	s.upsertLocked(env.Task)
	s.lastError = ""
	s.mu.Unlock()
	return env.Task, nil
}

// FetchOne retrieves a single task and upserts it: an existing entry is
// replaced in place, an unknown id is appended in arrival order.
func (s *Store) FetchOne(ctx context.Context, id int) (api.Task, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	resp, err := s.guard.Do(ctx, &api.Request{Method: http.MethodGet, Path: taskPath(id)})
	if err != nil {
		s.recordError(err)
		return api.Task{}, err
	}
	var env taskEnvelope
	if err := resp.Decode(&env); err != nil {
		s.recordError(err)
		return api.Task{}, err
	}

	s.mu.Lock()
	s.upsertLocked(env.Task)
	s.lastError = ""
	s.mu.Unlock()
	return env.Task, nil
}

// Toggle flips a task's completed flag optimistically, then patches the
// server with the new value. If the patch fails the local flip is
// rolled back to its pre-toggle value and the error surfaced.
func (s *Store) Toggle(ctx context.Context, id int) (api.Task, error) {
	release := s.lockTask(id)
	defer release()

	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		err := &api.Error{Kind: api.KindNotFound, Detail: fmt.Sprintf("task %d is not in the local cache", id)}
		s.recordError(err)
		return api.Task{}, err
	}
	next := !t.Completed
	t.Completed = next
	s.tasks[id] = t
	s.mu.Unlock()

	resp, err := s.guard.Do(ctx, &api.Request{
		Method: http.MethodPatch,
		Path:   taskPath(id),
		JSON:   Fields{Completed: &next},
	})
	if err != nil {
		// Roll the optimistic flip back to its pre-toggle value.
		s.mu.Lock()
		if cur, still := s.tasks[id]; still {
			cur.Completed = !next
			s.tasks[id] = cur
		}
		s.lastError = err.Error()
		s.mu.Unlock()
		return api.Task{}, err
	}

	var env taskEnvelope
	if err := resp.Decode(&env); err != nil {
		s.recordError(err)
		return api.Task{}, err
	}

	s.mu.Lock()
	s.upsertLocked(env.Task)
	s.lastError = ""
	s.mu.Unlock()
	return env.Task, nil
}

// Patch sends a partial update. On success the server's returned
// representation replaces the stored task, so server-computed fields
// stay authoritative.
func (s *Store) Patch(ctx context.Context, id int, fields Fields) (api.Task, error) {
	release := s.lockTask(id)
	defer release()

	resp, err := s.guard.Do(ctx, &api.Request{Method: http.MethodPatch, Path: taskPath(id), JSON: fields})
	if err != nil {
		s.recordError(err)
		return api.Task{}, err
	}
	var env taskEnvelope
	if err := resp.Decode(&env); err != nil {
		s.recordError(err)
		return api.Task{}, err
	}

	s.mu.Lock()
	s.upsertLocked(env.Task)
	s.lastError = ""
	s.mu.Unlock()
	return env.Task, nil
}

// Delete removes the task from the cache only after the server confirms
// deletion and echoes the same id. An echo mismatch leaves the cache
// untouched and is an error.
func (s *Store) Delete(ctx context.Context, id int) error {
	release := s.lockTask(id)
	defer release()

	resp, err := s.guard.Do(ctx, &api.Request{Method: http.MethodDelete, Path: taskPath(id)})
	if err != nil {
		s.recordError(err)
		return err
	}
	var env deletedEnvelope
	if err := resp.Decode(&env); err != nil {
		s.recordError(err)
		return err
	}
	if env.DeletedID != id {
		err := &api.Error{
			Kind:   api.KindServer,
			Detail: fmt.Sprintf("server deleted task %d, expected %d", env.DeletedID, id),
		}
		s.recordError(err)
		return err
	}

	s.mu.Lock()
	if _, ok := s.tasks[id]; ok {
		delete(s.tasks, id)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.lastError = ""
	s.mu.Unlock()
	return nil
}

// SetFilter changes which tasks Visible returns. Local only.
func (s *Store) SetFilter(f Filter) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
}

// CurrentFilter returns the active filter.
func (s *Store) CurrentFilter() Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Snapshot returns a copy of all cached tasks in insertion order.
func (s *Store) Snapshot() []api.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id])
	}
	return out
}

// Visible returns the snapshot narrowed by the active filter.
func (s *Store) Visible() []api.Task {
	s.mu.Lock()
	filter := s.filter
	s.mu.Unlock()

	all := s.Snapshot()
	if filter == FilterAll {
		return all
	}
	want := filter == FilterCompleted
	out := make([]api.Task, 0, len(all))
	for _, t := range all {
		if t.Completed == want {
			out = append(out, t)
		}
	}
	return out
}

// Get returns the cached task for id, if present.
func (s *Store) Get(id int) (api.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

// LastError returns the most recent operation error, or "" after a
// success.
func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Loading reports whether an operation is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// upsertLocked inserts or replaces by id. Caller holds s.mu.
func (s *Store) upsertLocked(t api.Task) {
	if _, ok := s.tasks[t.ID]; !ok {
		s.order = append(s.order, t.ID)
	}
	s.tasks[t.ID] = t
}

// lockTask acquires the per-id mutation gate and returns its release.
// Gates are kept for the life of the process; the id space is the set
// of tasks ever touched.
func (s *Store) lockTask(id int) func() {
	s.gateMu.Lock()
	g, ok := s.gates[id]
	if !ok {
		g = make(chan struct{}, 1)
		s.gates[id] = g
	}
	s.gateMu.Unlock()

	g <- struct{}{}
	return func() { <-g }
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Store) recordError(err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

func taskPath(id int) string {
	return fmt.Sprintf("/task/%d", id)
}

func validateContent(title, description string) error {
	if n := utf8.RuneCountInString(title); n < titleMinLen {
		return api.NewValidation("title must be longer than %d characters", titleMinLen-1)
	} else if n > titleMaxLen {
		return api.NewValidation("title must be at most %d characters", titleMaxLen)
	}
	if n := utf8.RuneCountInString(description); n < descMinLen {
		return api.NewValidation("description must be longer than %d characters", descMinLen-1)
	} else if n > descMaxLen {
		return api.NewValidation("description must be at most %d characters", descMaxLen)
	}
	return nil
}

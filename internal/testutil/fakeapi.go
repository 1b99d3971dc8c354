// Package testutil provides testing utilities.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"tasker/internal/api"
)

type fakeUser struct {
	id       int
	email    string
	password string
}

// FakeAPI is an in-process stand-in for the task service: cookie-based
// sessions, a refresh endpoint, and the task CRUD surface. Failure
// injection knobs let tests expire access credentials, fail refreshes,
// or break task endpoints mid-run.
type FakeAPI struct {
	srv *httptest.Server

	mu         sync.Mutex
	users      map[string]fakeUser
	nextUserID int
	tasks      map[int]api.Task
	order      []int
	nextTaskID int
	access     map[string]string // access token -> username
	refreshTok map[string]string // refresh token -> username
	tokenSeq   int

	refreshFails bool
	failTasks    bool
	deletedEcho  *int // overrides the deleted_id echo
	refreshDelay time.Duration
	onRefresh    func()

	refreshCalls int
	requests     map[string]int
	unauthorized int
}

// NewFakeAPI starts a fake service and registers its shutdown with t.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()
	f := &FakeAPI{
		users:      make(map[string]fakeUser),
		tasks:      make(map[int]api.Task),
		access:     make(map[string]string),
		refreshTok: make(map[string]string),
		requests:   make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", f.handleRegister)
	mux.HandleFunc("POST /login", f.handleLogin)
	mux.HandleFunc("POST /logout", f.handleLogout)
	mux.HandleFunc("POST /refresh", f.handleRefresh)
	mux.HandleFunc("GET /me", f.handleMe)
	mux.HandleFunc("GET /task", f.handleListTasks)
	mux.HandleFunc("POST /task", f.handleCreateTask)
	mux.HandleFunc("GET /task/{id}", f.handleGetTask)
	mux.HandleFunc("PATCH /task/{id}", f.handlePatchTask)
	mux.HandleFunc("DELETE /task/{id}", f.handleDeleteTask)

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests[r.Method+" "+r.URL.Path]++
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

// URL returns the base URL of the fake service.
func (f *FakeAPI) URL() string { return f.srv.URL }

// AddUser registers an account without going through /register.
func (f *FakeAPI) AddUser(username, password, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextUserID++
	f.users[username] = fakeUser{id: f.nextUserID, email: email, password: password}
}

// SeedTask adds a task server-side and returns it.
func (f *FakeAPI) SeedTask(title, description string, completed bool) api.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTaskID++
	t := api.Task{ID: f.nextTaskID, Title: title, Description: description, Completed: completed}
	f.tasks[t.ID] = t
	f.order = append(f.order, t.ID)
	return t
}

// ServerTask returns the server-side copy of a task.
func (f *FakeAPI) ServerTask(id int) (api.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	return t, ok
}

// ExpireAccess invalidates every outstanding access token. Requests
// carrying one get 401 until a refresh mints a new token.
func (f *FakeAPI) ExpireAccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = make(map[string]string)
}

// SetRefreshFails makes POST /refresh answer 401.
func (f *FakeAPI) SetRefreshFails(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshFails = v
}

// SetFailTasks makes every task endpoint answer 500.
func (f *FakeAPI) SetFailTasks(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failTasks = v
}

// SetDeletedEcho overrides the deleted_id echoed by DELETE.
func (f *FakeAPI) SetDeletedEcho(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedEcho = &id
}

// SetRefreshDelay stalls the refresh handler, widening the window in
// which concurrent callers can join a refresh wave.
func (f *FakeAPI) SetRefreshDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshDelay = d
}

// SetOnRefresh installs a hook run inside the refresh handler before
// the new credential is minted.
func (f *FakeAPI) SetOnRefresh(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onRefresh = fn
}

// RefreshCount reports how many POST /refresh calls were served.
func (f *FakeAPI) RefreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

// RequestCount reports served requests for a "METHOD /path" key.
func (f *FakeAPI) RequestCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[key]
}

// UnauthorizedCount reports how many 401s the authed endpoints served.
func (f *FakeAPI) UnauthorizedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unauthorized
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (f *FakeAPI) newToken() string {
	f.tokenSeq++
	return fmt.Sprintf("tok-%d", f.tokenSeq)
}

// issueSession mints access+refresh cookies for username. Caller holds
// f.mu.
func (f *FakeAPI) issueSession(w http.ResponseWriter, username string) {
	access := f.newToken()
	refresh := f.newToken()
	f.access[access] = username
	f.refreshTok[refresh] = username
	http.SetCookie(w, &http.Cookie{Name: "access_token", Value: access, Path: "/"})
	http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: refresh, Path: "/"})
}

// authed resolves the request's access cookie to a username, serving a
// 401 on failure.
func (f *FakeAPI) authed(w http.ResponseWriter, r *http.Request) (string, bool) {
	c, err := r.Cookie("access_token")
	f.mu.Lock()
	username, ok := "", false
	if err == nil {
		username, ok = f.access[c.Value]
	}
	if !ok {
		f.unauthorized++
	}
	f.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid token")
		return "", false
	}
	return username, true
}

func (f *FakeAPI) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		Password1 string `json:"password1"`
		Password2 string `json:"password2"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[body.Username]; exists {
		writeDetail(w, http.StatusBadRequest, "Name already in use")
		return
	}
	for _, u := range f.users {
		if u.email == body.Email {
			writeDetail(w, http.StatusBadRequest, "Email is already in use")
			return
		}
	}
	f.nextUserID++
	f.users[body.Username] = fakeUser{id: f.nextUserID, email: body.Email, password: body.Password1}
	f.issueSession(w, body.Username)
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Register in successfully"})
}

func (f *FakeAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid form")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		writeDetail(w, http.StatusBadRequest, "User does not exist")
		return
	}
	if u.password != password {
		writeDetail(w, http.StatusBadRequest, "Incorrect password or login")
		return
	}
	f.issueSession(w, username)
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Logged in successfully"})
}

func (f *FakeAPI) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "", Path: "/", MaxAge: -1})
	http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Logout successful"})
}

func (f *FakeAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.refreshCalls++
	fails := f.refreshFails
	delay := f.refreshDelay
	hook := f.onRefresh
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	c, err := r.Cookie("refresh_token")
	f.mu.Lock()
	username, ok := "", false
	if err == nil {
		username, ok = f.refreshTok[c.Value]
	}
	if fails || !ok {
		f.mu.Unlock()
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	access := f.newToken()
	f.access[access] = username
	f.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "access_token", Value: access, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Access token refreshed"})
}

func (f *FakeAPI) handleMe(w http.ResponseWriter, r *http.Request) {
	username, ok := f.authed(w, r)
	if !ok {
		return
	}
	f.mu.Lock()
	u := f.users[username]
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, api.User{ID: u.id, Username: username, Email: u.email})
}

func (f *FakeAPI) tasksUnavailable(w http.ResponseWriter) bool {
	f.mu.Lock()
	failing := f.failTasks
	f.mu.Unlock()
	if failing {
		writeDetail(w, http.StatusInternalServerError, "task backend unavailable")
	}
	return failing
}

func (f *FakeAPI) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if _, ok := f.authed(w, r); !ok {
		return
	}
	if f.tasksUnavailable(w) {
		return
	}
	f.mu.Lock()
	tasks := make([]api.Task, 0, len(f.order))
	for _, id := range f.order {
		tasks = append(tasks, f.tasks[id])
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (f *FakeAPI) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := f.authed(w, r); !ok {
		return
	}
	if f.tasksUnavailable(w) {
		return
	}
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Completed   bool   `json:"completed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid body")
		return
	}
	f.mu.Lock()
	f.nextTaskID++
	t := api.Task{ID: f.nextTaskID, Title: body.Title, Description: body.Description, Completed: body.Completed}
	f.tasks[t.ID] = t
	f.order = append(f.order, t.ID)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"task": t})
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	return id, err == nil
}

func (f *FakeAPI) handleGetTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := f.authed(w, r); !ok {
		return
	}
	if f.tasksUnavailable(w) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	f.mu.Lock()
	t, found := f.tasks[id]
	f.mu.Unlock()
	if !found {
		writeDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": t})
}

func (f *FakeAPI) handlePatchTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := f.authed(w, r); !ok {
		return
	}
	if f.tasksUnavailable(w) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	var body struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Completed   *bool   `json:"completed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid body")
		return
	}
	f.mu.Lock()
	t, found := f.tasks[id]
	if !found {
		f.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	if body.Title != nil {
		t.Title = *body.Title
	}
	if body.Description != nil {
		t.Description = *body.Description
	}
	if body.Completed != nil {
		t.Completed = *body.Completed
	}
	f.tasks[id] = t
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"task": t})
}

func (f *FakeAPI) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := f.authed(w, r); !ok {
		return
	}
	if f.tasksUnavailable(w) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	f.mu.Lock()
	_, found := f.tasks[id]
	if !found {
		f.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	delete(f.tasks, id)
	for i, oid := range f.order {
		if oid == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	echo := id
	if f.deletedEcho != nil {
		echo = *f.deletedEcho
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"msg": "Task deleted successfully", "deleted_id": echo})
}

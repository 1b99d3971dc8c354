// Package api implements the HTTP client for the task service: the
// transport that carries session cookies, the session guard that recovers
// from expired access credentials, and the refresh coordinator that keeps
// credential renewal single-flight.
package api

// User is the authenticated account as returned by GET /me.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Task is a single task item. IDs are server-assigned and unique.
type Task struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

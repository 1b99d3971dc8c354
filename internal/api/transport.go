package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestTimeout is the per-call timeout for API requests.
const RequestTimeout = 10 * time.Second

// Request describes one outbound call. JSON and Form are mutually
// exclusive; a Request is single-use.
type Request struct {
	Method string
	Path   string // relative to the base URL, leading slash
	JSON   any
	Form   url.Values

	// retried marks a request that has already been replayed once after
	// a credential refresh. Owned by SessionGuard.
	retried bool
}

// Response is a settled 2xx response.
type Response struct {
	Status int
	Body   []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &Error{Kind: KindServer, Status: r.Status, Detail: "malformed response body", Err: err}
	}
	return nil
}

type detailEnvelope struct {
	Detail string `json:"detail"`
}

// Transport issues HTTP requests with session cookies attached. It has
// no retry or auth logic of its own; that lives in SessionGuard.
type Transport struct {
	base       *url.URL
	client     *http.Client
	cookiePath string
	log        zerolog.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the transport logger.
func WithLogger(log zerolog.Logger) Option {
	return func(t *Transport) { t.log = log }
}

// WithHTTPClient replaces the underlying HTTP client. The client's
// cookie jar is preserved if the replacement has none.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		if c.Jar == nil {
			c.Jar = t.client.Jar
		}
		t.client = c
	}
}

// WithCookieFile persists the session cookies for the API host to the
// given path, and loads any previously saved cookies at construction.
func WithCookieFile(path string) Option {
	return func(t *Transport) { t.cookiePath = path }
}

// NewTransport creates a Transport for the given base URL. The base URL
// carries any path prefix the server mounts its routes under.
func NewTransport(baseURL string, opts ...Option) (*Transport, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	t := &Transport{
		base:   base,
		client: &http.Client{Jar: jar},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.cookiePath != "" {
		if err := t.loadCookies(); err != nil {
			// A corrupt or missing cookie file just means no session.
			t.log.Debug().Err(err).Msg("no saved cookies loaded")
		}
	}
	return t, nil
}

// BaseURL returns the configured base URL.
func (t *Transport) BaseURL() string { return t.base.String() }

// Do executes the request and maps the outcome:
//
//	2xx        -> Response
//	401        -> *Error{Kind: KindAuth}
//	404        -> *Error{Kind: KindNotFound}
//	other non-2xx -> *Error{Kind: KindServer} carrying the server detail
//	network failure -> *Error{Kind: KindTransport}
func (t *Transport) Do(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	var body io.Reader
	contentType := ""
	switch {
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Detail: "unencodable request body", Err: err}
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, t.base.String()+req.Path, body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	reqID := uuid.NewString()
	t.log.Debug().
		Str("request_id", reqID).
		Str("method", req.Method).
		Str("path", req.Path).
		Bool("replay", req.retried).
		Msg("request")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		t.log.Debug().Str("request_id", reqID).Err(err).Msg("transport failure")
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}

	t.log.Debug().Str("request_id", reqID).Int("status", resp.StatusCode).Msg("response")

	if len(resp.Cookies()) > 0 {
		t.saveCookies()
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &Response{Status: resp.StatusCode, Body: data}, nil
	}

	detail := serverDetail(data)
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if detail == "" {
			detail = "not authenticated"
		}
		return nil, &Error{Kind: KindAuth, Status: resp.StatusCode, Detail: detail}
	case http.StatusNotFound:
		if detail == "" {
			detail = "not found"
		}
		return nil, &Error{Kind: KindNotFound, Status: resp.StatusCode, Detail: detail}
	default:
		if detail == "" {
			detail = fmt.Sprintf("server returned status %d", resp.StatusCode)
		}
		return nil, &Error{Kind: KindServer, Status: resp.StatusCode, Detail: detail}
	}
}

func serverDetail(body []byte) string {
	var env detailEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Detail
}

// storedCookie is the serialized form of one session cookie. Values are
// opaque to the client; only name and value need to survive a restart.
type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (t *Transport) saveCookies() {
	if t.cookiePath == "" {
		return
	}
	cookies := t.client.Jar.Cookies(t.base)
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{Name: c.Name, Value: c.Value})
	}
	data, err := json.Marshal(stored)
	if err != nil {
		t.log.Debug().Err(err).Msg("encoding cookies failed")
		return
	}
	if err := os.WriteFile(t.cookiePath, data, 0600); err != nil {
		t.log.Debug().Err(err).Msg("saving cookies failed")
	}
}

func (t *Transport) loadCookies() error {
	data, err := os.ReadFile(t.cookiePath)
	if err != nil {
		return err
	}
	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("parsing cookie file: %w", err)
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	t.client.Jar.SetCookies(t.base, cookies)
	return nil
}

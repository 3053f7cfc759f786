package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/todolist-api/apiserver/config"
	"github.com/todolist-api/apiserver/internal/auth"
	"github.com/todolist-api/apiserver/internal/events"
	"github.com/todolist-api/apiserver/internal/handlers"
	"github.com/todolist-api/apiserver/internal/storage"
	"github.com/todolist-api/apiserver/internal/store/memstore"
	"github.com/todolist-api/apiserver/types"
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
	store   *memstore.Store
	events  *recordingPublisher
}

type apiOption func(*Dependencies)

func withObjects(objects storage.ObjectStorage) apiOption {
	return func(d *Dependencies) { d.Objects = objects }
}

func withRateLimit(rps float64, burst int) apiOption {
	return func(d *Dependencies) { d.RateLimit = config.RateLimitConfig{RPS: rps, Burst: burst} }
}

func withTrustedProxies(t *testing.T, values ...string) apiOption {
	t.Helper()
	trusted, err := handlers.ParseTrustedProxies(values)
	if err != nil {
		t.Fatalf("parse trusted proxies: %v", err)
	}
	return func(d *Dependencies) { d.TrustedProxies = trusted }
}

func withTokens(tokens *auth.TokenManager) apiOption {
	return func(d *Dependencies) { d.Tokens = tokens }
}

func withPinger(p handlers.Pinger) apiOption {
	return func(d *Dependencies) { d.DB = p }
}

func newTestAPI(t *testing.T, opts ...apiOption) *testAPI {
	t.Helper()

	tokens, err := auth.NewTokenManager("test-secret")
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	st := memstore.New()
	publisher := &recordingPublisher{}
	deps := Dependencies{
		Users:  st.Users(),
		Todos:  st.Todos(),
		Events: publisher,
		Tokens: tokens,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &testAPI{
		t:       t,
		handler: NewRouter(deps),
		store:   st,
		events:  publisher,
	}
}

func (a *testAPI) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	a.t.Helper()

	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.serve(req)
}

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func (a *testAPI) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) loginRequest(email, password string) *httptest.ResponseRecorder {
	a.t.Helper()
	return a.serve(a.newLoginRequest(email, password))
}

func (a *testAPI) newLoginRequest(email, password string) *http.Request {
	a.t.Helper()

	form := url.Values{}
	if email != "" {
		form.Set("username", email)
	}
	if password != "" {
		form.Set("password", password)
	}
	req := httptest.NewRequest(http.MethodPost, "/auth/token/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func (a *testAPI) signup(username, email, password string) types.PublicUser {
	a.t.Helper()

	rec := a.do(http.MethodPost, "/users/", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, "")
	if rec.Code != http.StatusCreated {
		a.t.Fatalf("signup %s: expected 201, got %d: %s", username, rec.Code, rec.Body.String())
	}
	var user types.PublicUser
	decode(a.t, rec, &user)
	return user
}

func (a *testAPI) login(email, password string) string {
	a.t.Helper()

	rec := a.loginRequest(email, password)
	if rec.Code != http.StatusOK {
		a.t.Fatalf("login %s: expected 200, got %d: %s", email, rec.Code, rec.Body.String())
	}
	var token handlers.TokenResponse
	decode(a.t, rec, &token)
	return token.AccessToken
}

func (a *testAPI) createTodo(token, title, description string, state types.TodoState) types.Todo {
	a.t.Helper()

	rec := a.do(http.MethodPost, "/todos/", map[string]string{
		"title":       title,
		"description": description,
		"state":       string(state),
	}, token)
	if rec.Code != http.StatusOK {
		a.t.Fatalf("create todo: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var todo types.Todo
	decode(a.t, rec, &todo)
	return todo
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, detail string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	var resp handlers.ErrorResponse
	decode(t, rec, &resp)
	if detail != "" && resp.Detail != detail {
		t.Fatalf("expected detail %q, got %q", detail, resp.Detail)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error {
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: make(map[string][]byte)}
}

func (m *memoryObjects) EnsureBucket(context.Context) error {
	return nil
}

func (m *memoryObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryObjects) Bucket() string {
	return "test"
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error {
	return errors.New("connection refused")
}

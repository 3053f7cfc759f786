package server

import (
	"fmt"
	"net/http"
	"reflect"
	"testing"

	"github.com/todolist-api/apiserver/internal/events"
	"github.com/todolist-api/apiserver/internal/handlers"
	"github.com/todolist-api/apiserver/internal/services"
	"github.com/todolist-api/apiserver/types"
)

func listTodos(t *testing.T, api *testAPI, token, query string) []types.Todo {
	t.Helper()
	rec := api.do(http.MethodGet, "/todos/"+query, nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("list %q: expected 200, got %d: %s", query, rec.Code, rec.Body.String())
	}
	var resp handlers.TodoListResponse
	decode(t, rec, &resp)
	return resp.Todos
}

func todoTitles(todos []types.Todo) []string {
	titles := make([]string, 0, len(todos))
	for _, todo := range todos {
		titles = append(titles, todo.Title)
	}
	return titles
}

func TestTodoLifecycle(t *testing.T) {
	api := newTestAPI(t)
	api.signup("alex", "alex@email.com", "1234")
	token := api.login("alex@email.com", "1234")

	created := api.createTodo(token, "Groceries", "milk and eggs", types.TodoStateTodo)
	if created.ID == 0 || created.Title != "Groceries" || created.State != types.TodoStateTodo {
		t.Fatalf("unexpected created todo %+v", created)
	}
	if created.CreatedAt.IsZero() || !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("expected matching timestamps on create, got %s / %s", created.CreatedAt, created.UpdatedAt)
	}

	if got := listTodos(t, api, token, ""); len(got) != 1 || got[0].ID != created.ID {
		t.Fatalf("unexpected list %+v", got)
	}

	path := fmt.Sprintf("/todos/%d", created.ID)
	rec := api.do(http.MethodPatch, path, map[string]string{"state": "done"}, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var patched types.Todo
	decode(t, rec, &patched)
	if patched.State != types.TodoStateDone || patched.Title != "Groceries" || patched.Description != "milk and eggs" {
		t.Fatalf("expected only state to change, got %+v", patched)
	}

	rec = api.do(http.MethodDelete, path, nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var msg handlers.MessageResponse
	decode(t, rec, &msg)
	if msg.Message != "Task has been deleted successfully" {
		t.Fatalf("unexpected message %q", msg.Message)
	}

	expectError(t, api.do(http.MethodDelete, path, nil, token), http.StatusNotFound, "Task not found")
	expectError(t, api.do(http.MethodPatch, path, map[string]string{"state": "todo"}, token), http.StatusNotFound, "Task not found")
}

func TestTodoRoutesRequireAuth(t *testing.T) {
	api := newTestAPI(t)

	expectError(t, api.do(http.MethodGet, "/todos/", nil, ""), http.StatusUnauthorized, "Could not validate credentials")
	expectError(t, api.do(http.MethodPost, "/todos/", map[string]string{"title": "x", "state": "todo"}, ""), http.StatusUnauthorized, "")
	expectError(t, api.do(http.MethodPatch, "/todos/1", map[string]string{}, ""), http.StatusUnauthorized, "")
	expectError(t, api.do(http.MethodDelete, "/todos/1", nil, ""), http.StatusUnauthorized, "")
}

func TestTodoOwnershipIsHidden(t *testing.T) {
	api := newTestAPI(t)
	api.signup("alex", "alex@email.com", "1234")
	api.signup("bob", "bob@email.com", "1234")
	alexToken := api.login("alex@email.com", "1234")
	bobToken := api.login("bob@email.com", "1234")

	todo := api.createTodo(alexToken, "Private", "alex only", types.TodoStateTodo)
	path := fmt.Sprintf("/todos/%d", todo.ID)

	if got := listTodos(t, api, bobToken, ""); len(got) != 0 {
		t.Fatalf("expected bob to see nothing, got %+v", got)
	}
	expectError(t, api.do(http.MethodPatch, path, map[string]string{"title": "Hijacked"}, bobToken), http.StatusNotFound, "Task not found")
	expectError(t, api.do(http.MethodDelete, path, nil, bobToken), http.StatusNotFound, "Task not found")

	got := listTodos(t, api, alexToken, "")
	if len(got) != 1 || got[0].Title != "Private" {
		t.Fatalf("expected alex's todo untouched, got %+v", got)
	}
}

func TestTodoListFilters(t *testing.T) {
	api := newTestAPI(t)
	api.signup("alex", "alex@email.com", "1234")
	token := api.login("alex@email.com", "1234")

	api.createTodo(token, "Unique Title", "first", types.TodoStateTodo)
	api.createTodo(token, "Groceries", "Unique Desc", types.TodoStateDoing)
	api.createTodo(token, "Laundry", "100% cotton", types.TodoStateTodo)
	api.createTodo(token, "Taxes", "", types.TodoStateDone)

	cases := []struct {
		query string
		want  []string
	}{
		{query: "?title=Unique", want: []string{"Unique Title"}},
		{query: "?description=Unique%20Desc", want: []string{"Groceries"}},
		{query: "?state=todo", want: []string{"Unique Title", "Laundry"}},
		{query: "?state=todo&title=Laun", want: []string{"Laundry"}},
		{query: "?description=100%25", want: []string{"Laundry"}},
		{query: "?title=nothing", want: []string{}},
		{query: "?offset=1&limit=2", want: []string{"Groceries", "Laundry"}},
	}
	for _, tc := range cases {
		got := todoTitles(listTodos(t, api, token, tc.query))
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.query, tc.want, got)
		}
	}
}

func TestTodoListDefaultPage(t *testing.T) {
	api := newTestAPI(t)
	api.signup("alex", "alex@email.com", "1234")
	token := api.login("alex@email.com", "1234")

	for i := 0; i < 15; i++ {
		api.createTodo(token, fmt.Sprintf("todo %02d", i), "", types.TodoStateTodo)
	}

	if got := listTodos(t, api, token, ""); len(got) != 10 {
		t.Fatalf("expected default page of 10, got %d", len(got))
	}
	if got := listTodos(t, api, token, "?offset=10"); len(got) != 5 || got[0].Title != "todo 10" {
		t.Fatalf("unexpected second page %v", todoTitles(got))
	}
}

func TestTodoValidation(t *testing.T) {
	api := newTestAPI(t)
	api.signup("alex", "alex@email.com", "1234")
	token := api.login("alex@email.com", "1234")
	todo := api.createTodo(token, "Groceries", "", types.TodoStateTodo)
	path := fmt.Sprintf("/todos/%d", todo.ID)

	expectError(t, api.do(http.MethodPost, "/todos/", map[string]string{"title": "x", "state": "later"}, token), http.StatusUnprocessableEntity, "")
	expectError(t, api.do(http.MethodPost, "/todos/", map[string]string{"state": "todo"}, token), http.StatusUnprocessableEntity, "")
	expectError(t, api.do(http.MethodPost, "/todos/", `{"title":`, token), http.StatusUnprocessableEntity, "invalid request body")
	expectError(t, api.do(http.MethodGet, "/todos/?state=later", nil, token), http.StatusUnprocessableEntity, "")
	expectError(t, api.do(http.MethodGet, "/todos/?limit=0", nil, token), http.StatusUnprocessableEntity, "")
	expectError(t, api.do(http.MethodGet, "/todos/?offset=-1", nil, token), http.StatusUnprocessableEntity, "")
	expectError(t, api.do(http.MethodPatch, path, map[string]string{"state": "later"}, token), http.StatusUnprocessableEntity, "")
	expectError(t, api.do(http.MethodPatch, path, `{"title": 5}`, token), http.StatusUnprocessableEntity, "invalid request body")
	expectError(t, api.do(http.MethodPatch, "/todos/abc", map[string]string{}, token), http.StatusUnprocessableEntity, "")
}

func TestTodoEmptyPatchChangesNothing(t *testing.T) {
	api := newTestAPI(t)
	api.signup("alex", "alex@email.com", "1234")
	token := api.login("alex@email.com", "1234")
	todo := api.createTodo(token, "Groceries", "milk", types.TodoStateTodo)
	path := fmt.Sprintf("/todos/%d", todo.ID)

	for _, body := range []string{`{}`, `{"title": null, "state": null}`} {
		rec := api.do(http.MethodPatch, path, body, token)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", body, rec.Code)
		}
		var got types.Todo
		decode(t, rec, &got)
		if got.Title != todo.Title || got.Description != todo.Description || got.State != todo.State || !got.UpdatedAt.Equal(todo.UpdatedAt) {
			t.Fatalf("%s: expected todo unchanged, got %+v", body, got)
		}
	}
}

func TestTodoEventsPublished(t *testing.T) {
	api := newTestAPI(t)
	api.signup("alex", "alex@email.com", "1234")
	token := api.login("alex@email.com", "1234")
	todo := api.createTodo(token, "Groceries", "", types.TodoStateTodo)
	path := fmt.Sprintf("/todos/%d", todo.ID)

	api.do(http.MethodPatch, path, map[string]string{"state": "doing"}, token)
	api.do(http.MethodDelete, path, nil, token)
	api.do(http.MethodDelete, "/users/1", nil, token)

	want := []events.Type{
		events.UserCreated,
		events.TodoCreated,
		events.TodoUpdated,
		events.TodoDeleted,
		events.UserDeleted,
	}
	if got := api.events.types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
}

func TestExportsDisabled(t *testing.T) {
	api := newTestAPI(t)
	api.signup("alex", "alex@email.com", "1234")
	token := api.login("alex@email.com", "1234")

	expectError(t, api.do(http.MethodPost, "/todos/exports/", nil, token), http.StatusServiceUnavailable, "Export storage is not configured")
	expectError(t, api.do(http.MethodGet, "/todos/exports/1.json", nil, token), http.StatusServiceUnavailable, "Export storage is not configured")
}

func TestExports(t *testing.T) {
	api := newTestAPI(t, withObjects(newMemoryObjects()))
	api.signup("alex", "alex@email.com", "1234")
	api.signup("bob", "bob@email.com", "1234")
	alexToken := api.login("alex@email.com", "1234")
	bobToken := api.login("bob@email.com", "1234")

	api.createTodo(alexToken, "Groceries", "", types.TodoStateTodo)
	api.createTodo(alexToken, "Laundry", "", types.TodoStateDone)
	api.createTodo(bobToken, "Bob's", "", types.TodoStateTodo)

	rec := api.do(http.MethodPost, "/todos/exports/", nil, alexToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var export services.Export
	decode(t, rec, &export)
	if export.Count != 2 || export.Name == "" {
		t.Fatalf("unexpected export %+v", export)
	}

	rec = api.do(http.MethodGet, "/todos/exports/"+export.Name, nil, alexToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var doc services.ExportDocument
	decode(t, rec, &doc)
	if got := todoTitles(doc.Todos); !reflect.DeepEqual(got, []string{"Groceries", "Laundry"}) {
		t.Fatalf("unexpected exported todos %v", got)
	}

	expectError(t, api.do(http.MethodGet, "/todos/exports/"+export.Name, nil, bobToken), http.StatusNotFound, "Export not found")
	expectError(t, api.do(http.MethodGet, "/todos/exports/missing.json", nil, alexToken), http.StatusNotFound, "Export not found")
}

package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/todolist-api/apiserver/internal/services"
	"github.com/todolist-api/apiserver/internal/storage"
	"github.com/todolist-api/apiserver/internal/store"
	"github.com/todolist-api/apiserver/types"
)

// TodoRequest is the body of todo creation.
type TodoRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	State       types.TodoState `json:"state"`
}

// TodoPatchRequest is the body of a partial update. Absent and null fields
// are left unchanged.
type TodoPatchRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	State       *types.TodoState `json:"state"`
}

// TodoListResponse wraps a page of todos.
type TodoListResponse struct {
	Todos []types.Todo `json:"todos"`
}

// TodoHandler provides HTTP handlers for the caller's todos.
type TodoHandler struct {
	todoService   *services.TodoService
	exportService *services.ExportService
}

func NewTodoHandler(todoService *services.TodoService, exportService *services.ExportService) *TodoHandler {
	return &TodoHandler{todoService: todoService, exportService: exportService}
}

// TodoRouter registers todo routes on the given router. Every route requires
// authentication.
func TodoRouter(
	r chi.Router,
	todoService *services.TodoService,
	exportService *services.ExportService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewTodoHandler(todoService, exportService)

	r.Use(authMiddleware)
	r.Post("/", handler.Create)
	r.Get("/", handler.List)
	r.Patch("/{todoID}", handler.Patch)
	r.Delete("/{todoID}", handler.Delete)
	r.Post("/exports", handler.CreateExport)
	r.Get("/exports/{name}", handler.GetExport)
}

func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentUser(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req TodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	v := newValidator()
	v.checkTitle(req.Title)
	v.checkState(req.State)
	if !v.valid() {
		writeError(w, http.StatusUnprocessableEntity, v.message())
		return
	}

	todo, err := h.todoService.Create(r.Context(), owner, types.Todo{
		Title:       req.Title,
		Description: req.Description,
		State:       req.State,
	})
	if err != nil {
		writeInternalError(w, r, "create todo", err)
		return
	}

	writeJSON(w, http.StatusOK, todo)
}

func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentUser(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	offset, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	query := r.URL.Query()
	filter := types.TodoFilter{
		Title:       query.Get("title"),
		Description: query.Get("description"),
		State:       types.TodoState(strings.TrimSpace(query.Get("state"))),
		Offset:      offset,
		Limit:       limit,
	}
	if filter.State != "" {
		v := newValidator()
		v.checkState(filter.State)
		if !v.valid() {
			writeError(w, http.StatusUnprocessableEntity, v.message())
			return
		}
	}

	todos, err := h.todoService.List(r.Context(), owner, filter)
	if err != nil {
		writeInternalError(w, r, "list todos", err)
		return
	}
	if todos == nil {
		todos = []types.Todo{}
	}

	writeJSON(w, http.StatusOK, TodoListResponse{Todos: todos})
}

func (h *TodoHandler) Patch(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentUser(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}
	id, err := parseID(r, "todoID")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var req TodoPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	v := newValidator()
	if req.Title != nil {
		v.checkTitle(*req.Title)
	}
	if req.State != nil {
		v.checkState(*req.State)
	}
	if !v.valid() {
		writeError(w, http.StatusUnprocessableEntity, v.message())
		return
	}

	todo, err := h.todoService.Patch(r.Context(), owner, id, types.TodoPatch{
		Title:       req.Title,
		Description: req.Description,
		State:       req.State,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgTaskNotFound)
			return
		}
		writeInternalError(w, r, "patch todo", err)
		return
	}

	writeJSON(w, http.StatusOK, todo)
}

func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentUser(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}
	id, err := parseID(r, "todoID")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.todoService.Delete(r.Context(), owner, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgTaskNotFound)
			return
		}
		writeInternalError(w, r, "delete todo", err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: msgTaskDeleted})
}

// CreateExport snapshots the caller's todos into object storage.
func (h *TodoHandler) CreateExport(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentUser(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	export, err := h.exportService.Create(r.Context(), owner)
	if err != nil {
		if errors.Is(err, services.ErrExportsDisabled) {
			writeError(w, http.StatusServiceUnavailable, msgExportsDisabled)
			return
		}
		writeInternalError(w, r, "create export", err)
		return
	}

	writeJSON(w, http.StatusCreated, export)
}

// GetExport streams a previous export of the caller.
func (h *TodoHandler) GetExport(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentUser(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	body, err := h.exportService.Open(r.Context(), owner, chi.URLParam(r, "name"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrExportsDisabled):
			writeError(w, http.StatusServiceUnavailable, msgExportsDisabled)
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, msgExportNotFound)
		default:
			writeInternalError(w, r, "open export", err)
		}
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

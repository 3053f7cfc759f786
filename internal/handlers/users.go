package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/todolist-api/apiserver/internal/services"
	"github.com/todolist-api/apiserver/internal/store"
	"github.com/todolist-api/apiserver/types"
)

// UserRequest is the body of signup and profile replacement.
type UserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserListResponse wraps a page of users.
type UserListResponse struct {
	Users []types.PublicUser `json:"users"`
}

// UserHandler provides HTTP handlers for accounts.
type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, userService *services.UserService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewUserHandler(userService)

	r.Post("/", handler.Create)
	r.Get("/{userID}", handler.Get)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", handler.List)
		r.Put("/{userID}", handler.Update)
		r.Delete("/{userID}", handler.Delete)
	})
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeUserRequest(w, r)
	if !ok {
		return
	}

	user, err := h.userService.Create(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUsernameExists):
			writeError(w, http.StatusConflict, msgUsernameExists)
		case errors.Is(err, services.ErrEmailExists):
			writeError(w, http.StatusConflict, msgEmailExists)
		default:
			writeInternalError(w, r, "create user", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, user.Public())
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	users, err := h.userService.List(r.Context(), offset, limit)
	if err != nil {
		writeInternalError(w, r, "list users", err)
		return
	}

	resp := UserListResponse{Users: make([]types.PublicUser, 0, len(users))}
	for _, user := range users {
		resp.Users = append(resp.Users, user.Public())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgUserNotFound)
			return
		}
		writeInternalError(w, r, "get user", err)
		return
	}

	writeJSON(w, http.StatusOK, user.Public())
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	in, ok := decodeUserRequest(w, r)
	if !ok {
		return
	}

	user, err := h.userService.Update(r.Context(), current, id, in)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrForbidden):
			writeError(w, http.StatusForbidden, msgForbidden)
		case errors.Is(err, services.ErrUserConflict):
			writeError(w, http.StatusConflict, msgUserConflict)
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, msgUserNotFound)
		default:
			writeInternalError(w, r, "update user", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, user.Public())
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.userService.Delete(r.Context(), current, id); err != nil {
		switch {
		case errors.Is(err, services.ErrForbidden):
			writeError(w, http.StatusForbidden, msgForbidden)
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, msgUserNotFound)
		default:
			writeInternalError(w, r, "delete user", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: msgUserDeleted})
}

func decodeUserRequest(w http.ResponseWriter, r *http.Request) (services.UserInput, bool) {
	var req UserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return services.UserInput{}, false
	}

	v := newValidator()
	v.checkUsername(req.Username)
	v.checkEmail(req.Email)
	v.checkPassword(req.Password)
	if !v.valid() {
		writeError(w, http.StatusUnprocessableEntity, v.message())
		return services.UserInput{}, false
	}

	return services.UserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}, true
}

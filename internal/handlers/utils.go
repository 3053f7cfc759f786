package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/todolist-api/apiserver/types"
)

const (
	defaultOffset   = 0
	defaultLimit    = 10
	maxLimit        = 100
	maxRequestBytes = 1 << 20
)

// Fixed client-facing messages. Their wording is part of the API.
const (
	msgCredentials       = "Could not validate credentials"
	msgBadLogin          = "Incorrect username or password"
	msgForbidden         = "Not enough permissions"
	msgUsernameExists    = "Username already exists"
	msgEmailExists       = "Email already exists"
	msgUserConflict      = "Username or Email already exists"
	msgUserNotFound      = "User not found"
	msgUserDeleted       = "User deleted successfully"
	msgTaskNotFound      = "Task not found"
	msgTaskDeleted       = "Task has been deleted successfully"
	msgExportNotFound    = "Export not found"
	msgExportsDisabled   = "Export storage is not configured"
	msgTooManyRequests   = "Too many requests"
	msgInternal          = "Internal server error"
	msgInvalidBody       = "invalid request body"
	msgInvalidPagination = "invalid pagination"
)

type contextKey string

const contextUserKey contextKey = "user"

func withCurrentUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

// currentUser returns the user resolved by RequireAuth.
func currentUser(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok && user.ID > 0
}

// ErrorResponse is the error payload.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// MessageResponse confirms an operation without returning a resource.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Detail: message})
}

// writeInternalError logs err with the request id and hides it from the client.
func writeInternalError(w http.ResponseWriter, r *http.Request, action string, err error) {
	log.Printf("[%s] %s %s: %s: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, action, err)
	writeError(w, http.StatusInternalServerError, msgInternal)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(dst); err != nil {
		return errors.New(msgInvalidBody)
	}
	return nil
}

func parsePagination(r *http.Request) (offset, limit int, err error) {
	offset = defaultOffset
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errors.New(msgInvalidPagination)
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxLimit {
			return 0, 0, errors.New(msgInvalidPagination)
		}
	}
	return offset, limit, nil
}

func parseID(r *http.Request, param string) (int, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid " + strings.TrimSuffix(param, "ID") + " id")
	}
	return id, nil
}

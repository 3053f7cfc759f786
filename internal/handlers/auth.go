package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/todolist-api/apiserver/internal/auth"
	"github.com/todolist-api/apiserver/internal/services"
	"github.com/todolist-api/apiserver/internal/store"
)

// TokenResponse is returned by the token endpoints.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// AuthHandler issues bearer tokens.
type AuthHandler struct {
	userService *services.UserService
	tokens      *auth.TokenManager
}

func NewAuthHandler(userService *services.UserService, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{userService: userService, tokens: tokens}
}

// AuthRouter registers auth routes on the given router. Login goes through
// loginLimiter when it is non-nil.
func AuthRouter(
	r chi.Router,
	userService *services.UserService,
	tokens *auth.TokenManager,
	authMiddleware func(http.Handler) http.Handler,
	loginLimiter func(http.Handler) http.Handler,
) {
	handler := NewAuthHandler(userService, tokens)

	if loginLimiter != nil {
		r.With(loginLimiter).Post("/token", handler.Login)
	} else {
		r.Post("/token", handler.Login)
	}
	r.With(authMiddleware).Post("/refresh_token", handler.Refresh)
}

// RequireAuth resolves the bearer token to a stored user. The token subject
// is the user's email.
func RequireAuth(tokens *auth.TokenManager, userService *services.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				writeUnauthorized(w)
				return
			}

			email, err := tokens.Verify(tokenString)
			if err != nil {
				writeUnauthorized(w)
				return
			}

			user, err := userService.GetByEmail(r.Context(), email)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeUnauthorized(w)
					return
				}
				writeInternalError(w, r, "load current user", err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withCurrentUser(r.Context(), user)))
		})
	}
}

// Login exchanges form credentials for a token. The username field carries
// the email address.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, msgInvalidBody)
		return
	}

	email := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if email == "" || password == "" {
		writeError(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	user, err := h.userService.Authenticate(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, msgBadLogin)
			return
		}
		writeInternalError(w, r, "authenticate", err)
		return
	}

	h.writeToken(w, r, user.Email)
}

// Refresh issues a fresh token for the authenticated caller.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}
	h.writeToken(w, r, user.Email)
}

func (h *AuthHandler) writeToken(w http.ResponseWriter, r *http.Request, subject string) {
	token, err := h.tokens.Issue(subject)
	if err != nil {
		writeInternalError(w, r, "issue token", err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, msgCredentials)
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

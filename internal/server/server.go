package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/todolist-api/apiserver/config"
	"github.com/todolist-api/apiserver/internal/auth"
	"github.com/todolist-api/apiserver/internal/db"
	"github.com/todolist-api/apiserver/internal/events"
	"github.com/todolist-api/apiserver/internal/handlers"
	"github.com/todolist-api/apiserver/internal/services"
	"github.com/todolist-api/apiserver/internal/storage"
	"github.com/todolist-api/apiserver/internal/store"
)

// Dependencies are the collaborators the router is assembled from.
type Dependencies struct {
	DB        handlers.Pinger
	Users     services.UserRepository
	Todos     services.TodoRepository
	Events    events.Publisher
	Objects   storage.ObjectStorage
	Tokens    *auth.TokenManager
	CORS      []string
	RateLimit config.RateLimitConfig

	// TrustedProxies are the parsed RateLimit.TrustedProxies.
	TrustedProxies []netip.Prefix
}

const (
	writeTimeout = 15 * time.Second
	// handlerTimeout leaves room to write the 504 before the connection
	// deadline.
	handlerTimeout = 10 * time.Second
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     events.Publisher
}

// New connects every backend named by cfg and assembles the server.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	tokens, err := auth.NewTokenManager(cfg.JWT.Secret, auth.WithTTL(cfg.JWT.TTL))
	if err != nil {
		return nil, err
	}
	trusted, err := handlers.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	publisher, err := events.New(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("init events: %w", err)
	}

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = publisher.Close()
		_ = dbConn.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}

	router := NewRouter(Dependencies{
		DB:        dbConn,
		Users:     store.NewUserRepository(dbConn),
		Todos:     store.NewTodoRepository(dbConn),
		Events:    publisher,
		Objects:   objects,
		Tokens:    tokens,
		CORS:      cfg.CORSOrigins,
		RateLimit: cfg.RateLimit,

		TrustedProxies: trusted,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		events:     publisher,
	}, nil
}

// NewRouter wires services and handlers onto a chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	userService := services.NewUserService(deps.Users, deps.Events)
	todoService := services.NewTodoService(deps.Todos, deps.Events)
	exportService := services.NewExportService(deps.Todos, deps.Objects)

	authMiddleware := handlers.RequireAuth(deps.Tokens, userService)

	var loginLimiter func(http.Handler) http.Handler
	if limiter := handlers.NewIPRateLimiter(deps.RateLimit.RPS, deps.RateLimit.Burst, deps.TrustedProxies...); limiter != nil {
		loginLimiter = limiter.Middleware
	}

	origins := deps.CORS
	if len(origins) == 0 {
		origins = []string{"https://*", "http://*"}
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.StripSlashes,
		middleware.Timeout(handlerTimeout),
		cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)
	router.Get("/healthz", handlers.Healthz(deps.DB))
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, authMiddleware)
	})
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, deps.Tokens, authMiddleware, loginLimiter)
	})
	router.Route("/todos", func(r chi.Router) {
		handlers.TodoRouter(r, todoService, exportService, authMiddleware)
	})

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases the broker and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.events != nil {
		if closeErr := s.events.Close(); closeErr != nil {
			log.Printf("close event publisher: %v", closeErr)
		}
	}
	if s.db != nil {
		if closeErr := s.db.Close(); closeErr != nil {
			log.Printf("close database: %v", closeErr)
		}
	}
	return err
}

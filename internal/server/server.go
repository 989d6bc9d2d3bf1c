package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/medialog/apiserver/config"
	"github.com/medialog/apiserver/internal/artwork"
	"github.com/medialog/apiserver/internal/db"
	"github.com/medialog/apiserver/internal/events"
	"github.com/medialog/apiserver/internal/handlers"
	"github.com/medialog/apiserver/internal/search"
	"github.com/medialog/apiserver/internal/services"
	"github.com/medialog/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     *events.Events
	logger     *log.Logger
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	favoriteRepo := store.NewFavoriteRepository(dbConn)

	userService := services.NewUserService(userRepo)
	favoriteService := services.NewFavoriteService(favoriteRepo)

	jwtSecret := strings.TrimSpace(cfg.JWTSecret)
	if jwtSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	gateway := newGateway(cfg, logger)

	ev, err := newEvents(ctx, cfg, logger)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	aw, err := newArtwork(ctx, cfg, logger)
	if err != nil {
		_ = ev.Close()
		_ = dbConn.Close()
		return nil, err
	}

	authMiddleware := handlers.RequireAuth(jwtSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, userService, jwtSecret)
		})
		r.Route("/favorites", func(r chi.Router) {
			r.Use(authMiddleware)
			handlers.FavoritesRouter(r, favoriteService, ev, aw)
		})
		r.Route("/search", func(r chi.Router) {
			handlers.SearchRouter(r, gateway)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		events:     ev,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.events != nil {
		_ = s.events.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}

func newGateway(cfg config.Config, logger *log.Logger) *search.Gateway {
	providers := make([]search.Provider, 0, 3)
	if cfg.Search.TMDBAPIKey != "" {
		providers = append(providers, search.NewTMDBClient(cfg.Search.TMDBAPIKey))
	}
	// Google Books works without a key at a reduced quota.
	providers = append(providers, search.NewGoogleBooksClient(cfg.Search.GoogleBooksAPIKey))
	if cfg.Search.RAWGAPIKey != "" {
		providers = append(providers, search.NewRAWGClient(cfg.Search.RAWGAPIKey))
	}
	return search.NewGateway(logger, providers...)
}

func newEvents(ctx context.Context, cfg config.Config, logger *log.Logger) (*events.Events, error) {
	switch cfg.Events.Backend {
	case "rabbitmq":
		client, err := events.NewRabbitMQClient(cfg.Events.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return events.New(client, logger), nil
	case "pubsub":
		client, err := events.NewPubSubClient(ctx, cfg.Events.PubSub)
		if err != nil {
			return nil, err
		}
		return events.New(client, logger), nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
	}
}

func newArtwork(ctx context.Context, cfg config.Config, logger *log.Logger) (*artwork.Service, error) {
	var backend artwork.ObjectStorage
	switch cfg.Artwork.Backend {
	case "minio":
		client, err := artwork.NewMinioClient(cfg.Artwork.Minio)
		if err != nil {
			return nil, err
		}
		backend = client
	case "gcs":
		client, err := artwork.NewGCSClient(ctx, cfg.Artwork.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown artwork backend %q", cfg.Artwork.Backend)
	}

	service := artwork.NewService(backend, logger)
	if err := service.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return service, nil
}

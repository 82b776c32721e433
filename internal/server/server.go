package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/resourcehub/apiserver/config"
	"github.com/resourcehub/apiserver/internal/auth"
	"github.com/resourcehub/apiserver/internal/db"
	"github.com/resourcehub/apiserver/internal/events"
	"github.com/resourcehub/apiserver/internal/handlers"
	"github.com/resourcehub/apiserver/internal/services"
	"github.com/resourcehub/apiserver/internal/storage"
	"github.com/resourcehub/apiserver/internal/store"
	"github.com/resourcehub/apiserver/types"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and its collaborators.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	publisher  *events.Publisher
	logger     *zap.Logger
}

// New constructs a Server: opens the database, seeds the superuser,
// builds the auth core, and mounts all routes.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	resourceRepo := store.NewResourceRepository(dbConn)

	broker, err := events.NewBroker(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	publisher := events.NewPublisher(broker, logger)

	userService := services.NewUserService(userRepo, publisher)
	resourceService := services.NewResourceService(resourceRepo, publisher)

	if err := seedSuperuser(ctx, userService, cfg.Superuser, logger); err != nil {
		_ = publisher.Close()
		_ = dbConn.Close()
		return nil, err
	}

	objectStorage, err := storage.NewObjectStorage(ctx, cfg.Storage)
	if err != nil {
		_ = publisher.Close()
		_ = dbConn.Close()
		return nil, err
	}
	var attachments *storage.Attachments
	if objectStorage != nil {
		attachments = storage.NewAttachments(objectStorage)
		if err := attachments.EnsureBucket(ctx); err != nil {
			_ = publisher.Close()
			_ = dbConn.Close()
			return nil, err
		}
		logger.Info("attachments enabled", zap.String("bucket", attachments.Bucket()))
	}

	codec := auth.NewCodec(cfg.Token.SecretKey, time.Duration(cfg.Token.ExpireMinutes)*time.Minute)
	authenticator := auth.NewAuthenticator(userService)
	guard := handlers.NewGuard(codec, userService, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route(cfg.APIPrefix, func(r chi.Router) {
		r.Route("/login", func(r chi.Router) {
			handlers.LoginRouter(r, authenticator, codec, logger)
		})
		r.Route("/user", func(r chi.Router) {
			handlers.UserRouter(r, userService, guard)
		})
		r.Route("/resources", func(r chi.Router) {
			handlers.ResourceRouter(r, resourceService, attachments, guard)
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
		publisher:  publisher,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}

// seedSuperuser creates the bootstrap superuser when it does not exist
// yet. The configured password is used only here; existing rows are
// never touched.
func seedSuperuser(ctx context.Context, users *services.UserService, cfg config.SuperuserConfig, logger *zap.Logger) error {
	if _, err := users.Get(ctx, cfg.ID); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hashed, err := auth.HashPassword(cfg.Password)
	if err != nil {
		return err
	}

	if _, err := users.Create(ctx, types.User{
		ID:             cfg.ID,
		Status:         types.UserStatusActive,
		Scopes:         []string{auth.ScopeSuperuser},
		HashedPassword: hashed,
	}); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return err
	}

	logger.Info("seeded superuser", zap.String("id", cfg.ID))
	return nil
}

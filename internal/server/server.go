package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/marvinalivio/p4-backend/config"
	"github.com/marvinalivio/p4-backend/internal/db"
	"github.com/marvinalivio/p4-backend/internal/handlers"
	"github.com/marvinalivio/p4-backend/internal/hash"
	"github.com/marvinalivio/p4-backend/internal/logger"
	"github.com/marvinalivio/p4-backend/internal/mq"
	"github.com/marvinalivio/p4-backend/internal/services"
	"github.com/marvinalivio/p4-backend/internal/storage"
	"github.com/marvinalivio/p4-backend/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Repository is a user store that can also report its health.
type Repository interface {
	services.UserRepository
	handlers.Pinger
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     *zap.Logger
	closers    []func(context.Context) error
}

// New wires the store, broker and object storage selected in cfg and
// builds the HTTP router.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{logger: log}

	repo, err := s.openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	opts := []services.UserServiceOption{
		services.WithLogger(logger.WithComponent(log, "users")),
	}
	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		s.closeAll(ctx)
		return nil, fmt.Errorf("open message queue: %w", err)
	}
	if broker != nil {
		s.closers = append(s.closers, func(context.Context) error { return broker.Close() })
		opts = append(opts, services.WithEventPublisher(mq.NewEventPublisher(broker, cfg.MQ.Channel)))
		log.Info("publishing user events", zap.String("backend", cfg.MQ.Backend), zap.String("channel", cfg.MQ.Channel))
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		s.closeAll(ctx)
		return nil, fmt.Errorf("open object storage: %w", err)
	}

	userService := services.NewUserService(repo, hash.NewService(cfg.HashCost), opts...)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.AccessLog(logger.WithComponent(log, "http")),
		middleware.Recoverer,
		handlers.Metrics,
		handlers.SecureHeaders,
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz(repo))
	router.Handle("/metrics", promhttp.Handler())

	handlers.UserRouter(router, handlers.NewUserHandler(userService, log, cfg.RedactPasswordHash))
	if objects != nil {
		assetService := services.NewAssetService(repo, objects, cfg.Storage.ObjectURL)
		handlers.AssetRouter(router, handlers.NewAssetHandler(assetService, log))
		log.Info("asset uploads enabled", zap.String("backend", cfg.Storage.Backend), zap.String("bucket", objects.Bucket()))
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) openStore(ctx context.Context, cfg config.StoreConfig) (Repository, error) {
	switch cfg.Driver {
	case config.StoreDriverMongo:
		client, coll, err := db.OpenMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, client.Disconnect)

		repo := store.NewMongoUserRepository(coll)
		if err := repo.EnsureIndexes(ctx); err != nil {
			s.closeAll(ctx)
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		s.logger.Info("using mongodb store", zap.String("database", cfg.Mongo.Database), zap.String("collection", cfg.Mongo.Collection))
		return repo, nil
	case config.StoreDriverPostgres:
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return conn.Close() })
		s.logger.Info("using postgres store", zap.String("host", cfg.Database.Host), zap.String("database", cfg.Database.DBName))
		return store.NewPostgresUserRepository(conn), nil
	case config.StoreDriverMemory:
		s.logger.Warn("using in-memory store; data is lost on restart")
		return store.NewMemoryUserRepository(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the store and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeAll(ctx)
	return err
}

func (s *Server) closeAll(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			s.logger.Warn("close resource failed", zap.Error(err))
		}
	}
	s.closers = nil
}

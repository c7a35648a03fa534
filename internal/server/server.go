package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/securebank/backoffice/config"
	"github.com/securebank/backoffice/internal/db"
	"github.com/securebank/backoffice/internal/handlers"
	"github.com/securebank/backoffice/internal/logging"
	"github.com/securebank/backoffice/internal/mq"
	"github.com/securebank/backoffice/internal/notify"
	"github.com/securebank/backoffice/internal/otp"
	"github.com/securebank/backoffice/internal/services"
	"github.com/securebank/backoffice/internal/store"
)

const janitorInterval = time.Minute

// purger is implemented by in-process stores that accumulate expired entries.
type purger interface {
	Purge() int
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        logging.Logger

	db      *sql.DB
	closers []io.Closer
	purgers []purger

	stopJanitor context.CancelFunc
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config, log logging.Logger) (*Server, error) {
	if log == nil {
		log = logging.Nop()
	}
	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{log: log, db: dbConn}
	fail := func(err error) (*Server, error) {
		s.closeResources()
		return nil, err
	}

	registry, err := s.buildRegistry(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	broker, err := mq.Open(ctx, cfg)
	switch {
	case errors.Is(err, mq.ErrNotConfigured):
		broker = nil
	case err != nil:
		return fail(err)
	default:
		s.closers = append(s.closers, broker)
	}

	deliverer, err := buildDeliverer(cfg, broker, log)
	if err != nil {
		return fail(err)
	}

	sessions := services.NewSessionStore(cfg.Auth.SessionTTL, nil)
	s.purgers = append(s.purgers, sessions)

	authService := services.NewAuthService(
		store.NewUserRepository(dbConn),
		registry,
		deliverer,
		sessions,
		log.With("component", "auth"),
		services.AuthOptions{DeliveryTimeout: cfg.Delivery.Timeout},
	)

	ledgerOpts := services.LedgerOptions{
		DefaultHistoryLimit: cfg.Ledger.DefaultHistoryLimit,
		MaxHistoryLimit:     cfg.Ledger.MaxHistoryLimit,
	}
	if broker != nil {
		ledgerOpts.Events = broker
		ledgerOpts.EventsChannel = cfg.MQ.EventsChannel
	}
	ledgerService := services.NewLedgerService(
		store.NewLedgerRepository(dbConn),
		log.With("component", "ledger"),
		ledgerOpts,
	)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService, jwtSecret)
	})
	router.Route("/api", func(r chi.Router) {
		handlers.LedgerRouter(r, ledgerService, handlers.RequireSession(authService, jwtSecret))
	})

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

func (s *Server) buildRegistry(ctx context.Context, cfg config.Config) (otp.Registry, error) {
	opts := otp.Options{TTL: cfg.OTP.TTL, MaxAttempts: cfg.OTP.MaxAttempts}

	switch strings.ToLower(strings.TrimSpace(cfg.OTP.Backend)) {
	case "", "memory":
		registry := otp.NewMemoryRegistry(opts)
		s.purgers = append(s.purgers, registry)
		return registry, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		s.closers = append(s.closers, client)
		return otp.NewRedisRegistry(client, cfg.Redis.Prefix, opts), nil
	default:
		return nil, fmt.Errorf("unknown otp backend %q", cfg.OTP.Backend)
	}
}

func buildDeliverer(cfg config.Config, broker *mq.MQ, log logging.Logger) (notify.Deliverer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Delivery.Backend)) {
	case "", "smtp":
		return notify.NewSMTPDeliverer(cfg.SMTP, cfg.OTP.TTL), nil
	case "mq":
		if broker == nil {
			return nil, errors.New("DELIVERY_BACKEND=mq needs MQ_BACKEND")
		}
		return notify.NewQueueDeliverer(broker, cfg.Delivery.Queue), nil
	case "log":
		log.Warn(context.Background(), "codes are written to the log; never use this in production")
		return notify.NewLogDeliverer(log), nil
	default:
		return nil, fmt.Errorf("unknown delivery backend %q", cfg.Delivery.Backend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the janitor and the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopJanitor = cancel
	go s.runJanitor(ctx)

	s.log.Info(ctx, "server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := 0
			for _, p := range s.purgers {
				removed += p.Purge()
			}
			if removed > 0 {
				s.log.Debug(ctx, "purged expired entries", "count", removed)
			}
		}
	}
}

// Shutdown drains in-flight requests, then releases the database and brokers.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stopJanitor != nil {
		s.stopJanitor()
	}
	err := s.httpServer.Shutdown(ctx)
	s.closeResources()
	return err
}

func (s *Server) closeResources() {
	for _, c := range s.closers {
		_ = c.Close()
	}
	s.closers = nil
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
}

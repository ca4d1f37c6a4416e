package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"xhunt-server/config"
	"xhunt-server/database"
	"xhunt-server/jobs"
	"xhunt-server/middleware"
	"xhunt-server/routes"
	"xhunt-server/services"
	ws "xhunt-server/websocket"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the HTTP API until SIGINT or SIGTERM, then drain in-flight requests.

Migrations run on startup. Configuration comes from .env, an optional
--config file and the environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg, log, err := bootstrap(opts)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.Server.GinMode)

	if err := database.Initialize(cfg.Database, log); err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Warn("closing database", zap.Error(err))
		}
	}()

	sessions, closeSessions, err := newSessionStore(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeSessions()

	hub := ws.NewHub(log, cfg.CORS.AllowedOrigins)
	go hub.Run()
	defer hub.Stop()

	limiter := middleware.NewRateLimiter()
	stopCleanup := make(chan struct{})
	limiter.StartCleanup(10*time.Minute, stopCleanup)
	defer close(stopCleanup)

	retention := jobs.NewRetentionJob(database.DB, cfg.Retention, log)
	retention.Start()
	defer retention.Stop()

	users := services.NewUserService(database.DB, log)
	router := routes.NewRouter(routes.Dependencies{
		Config:        cfg,
		DB:            database.DB,
		Log:           log,
		Users:         users,
		Tokens:        services.NewJWTService(cfg.JWT, sessions),
		Notifications: services.NewNotificationService(database.DB, cfg.Notifications, hub, log),
		Hub:           hub,
		RateLimiter:   limiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", cfg.Server.GracefulTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// newSessionStore connects to redis when configured. Without it revocations are
// kept in process and lost on restart.
func newSessionStore(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (services.SessionStore, func(), error) {
	if cfg.Addr == "" {
		log.Warn("redis not configured, session revocation is in-process only")
		return services.NewMemorySessionStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	log.Info("connected to redis", zap.String("addr", cfg.Addr))
	return services.NewRedisSessionStore(client), func() { _ = client.Close() }, nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helix/phr/internal/config"
	"github.com/helix/phr/internal/domain/brief"
	"github.com/helix/phr/internal/domain/dashboard"
	"github.com/helix/phr/internal/domain/profile"
	"github.com/helix/phr/internal/domain/provider"
	"github.com/helix/phr/internal/domain/record"
	"github.com/helix/phr/internal/domain/share"
	"github.com/helix/phr/internal/platform/auth"
	"github.com/helix/phr/internal/platform/db"
	"github.com/helix/phr/internal/platform/llm"
	"github.com/helix/phr/internal/platform/middleware"
	"github.com/helix/phr/internal/platform/viewcache"
	"github.com/helix/phr/internal/platform/web"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "phr-server",
		Short: "Helix personal health record server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			v, err := db.NewMigrator(cfg.DatabaseURL).Up()
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database is at version %d.\n", v)
			return nil
		},
	})

	// migrate down
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			v, err := db.NewMigrator(cfg.DatabaseURL).Down(steps)
			if err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database is at version %d.\n", v)
			return nil
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(downCmd)

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			statuses, dirty, err := db.NewMigrator(cfg.DatabaseURL).Status()
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd, statuses, dirty)
			return nil
		},
	})

	return cmd
}

func printStatus(cmd *cobra.Command, statuses []db.MigrationStatus, dirty bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-40s %s\n", "VERSION", "NAME", "STATUS")
	fmt.Fprintln(out, "---------- ---------------------------------------- ----------")
	for _, s := range statuses {
		status := "pending"
		if s.Applied {
			status = "applied"
		}
		fmt.Fprintf(out, "%-10d %-40s %s\n", s.Version, s.Name, status)
	}
	if dirty {
		fmt.Fprintln(out, "WARNING: the database is marked dirty; fix the failed migration and force the version.")
	}
}

func newLogger(env, level string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if env == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}

// requestTimeout leaves room for one language model call.
func requestTimeout(cfg *config.Config) time.Duration {
	if d := cfg.LLMTimeout + 10*time.Second; d > 30*time.Second {
		return d
	}
	return 30 * time.Second
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 || rl.BurstSize <= 0 {
		return middleware.DefaultRateLimitConfig()
	}
	return rl
}

// newViewCache uses Redis when REDIS_URL is set and an in-process store otherwise.
func newViewCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*viewcache.Cache, func(), error) {
	if cfg.RedisURL == "" {
		store := viewcache.NewMemoryStore()
		store.StartCleanup(ctx, time.Minute)
		logger.Info().Msg("view cache: in-memory")
		return viewcache.New(store, cfg.ViewCacheTTL, logger), func() {}, nil
	}
	store, err := viewcache.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Msg("view cache: redis")
	return viewcache.New(store, cfg.ViewCacheTTL, logger), func() { store.Close() }, nil
}

// newEcho builds the server. Client addresses come from the socket peer
// unless TRUSTED_PROXIES names the proxies allowed to forward them.
func newEcho(cfg *config.Config, logger zerolog.Logger) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = web.ErrorHandler(logger)
	ipExtractor, err := middleware.ClientIPExtractor(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	e.IPExtractor = ipExtractor
	return e, nil
}

// services holds the wired handlers of every page family.
type services struct {
	session   echo.MiddlewareFunc
	auth      *auth.Handler
	dashboard *dashboard.Handler
	records   *record.Handler
	providers *provider.Handler
	profile   *profile.Handler
	share     *share.Handler
	brief     *brief.Handler
}

func buildServices(pool *pgxpool.Pool, cfg *config.Config, views *viewcache.Cache, logger zerolog.Logger) *services {
	recordRepo := record.NewRepoPG(pool)
	providerRepo := provider.NewRepoPG(pool)
	profileRepo := profile.NewRepoPG(pool)

	recordSvc := record.NewService(recordRepo)
	recordSvc.SetViewCache(views)

	providerSvc := provider.NewService(providerRepo)
	providerSvc.SetViewCache(views)

	profileSvc := profile.NewService(profileRepo, recordRepo, providerRepo, db.NewTxManager(pool))
	profileSvc.SetViewCache(views)

	shareSvc := share.NewService(share.NewRepoPG(pool), recordRepo, profileRepo, logger)
	shareSvc.SetViewCache(views)

	model := llm.NewOpenAIClient(llm.Config{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		Timeout:     cfg.LLMTimeout,
	})
	briefSvc := brief.NewService(brief.NewRepoPG(pool), recordRepo, profileRepo, model, logger)
	briefSvc.SetViewCache(views)

	dashboardSvc := dashboard.NewService(recordRepo, providerRepo, profileRepo)
	dashboardSvc.SetViewCache(views)

	authClient := auth.NewGoTrueClient(cfg.AuthURL, cfg.AuthAPIKey)
	var verifier *auth.TokenVerifier
	if cfg.AuthJWTSecret != "" {
		verifier = auth.NewTokenVerifier(cfg.AuthJWTSecret, "authenticated")
	}
	sessions := auth.NewSessionStore(cfg.SessionSecret, cfg.SessionSecure)
	resolver := auth.NewResolver(verifier, authClient)

	return &services{
		session:   auth.SessionMiddleware(sessions, resolver, authClient, logger),
		auth:      auth.NewHandler(authClient, sessions, resolver, profileSvc, logger),
		dashboard: dashboard.NewHandler(dashboardSvc),
		records:   record.NewHandler(recordSvc),
		providers: provider.NewHandler(providerSvc),
		profile:   profile.NewHandler(profileSvc, logger),
		share:     share.NewHandler(shareSvc, cfg.PublicBaseURL),
		brief:     brief.NewHandler(briefSvc),
	}
}

// registerRoutes mounts every page. publicLimiter guards the unauthenticated
// form posts and share tokens.
func registerRoutes(e *echo.Echo, s *services, publicLimiter echo.MiddlewareFunc) {
	s.auth.RegisterRoutes(e, publicLimiter)

	dash := e.Group("/dashboard", auth.RequireSession())
	s.dashboard.RegisterRoutes(dash)
	s.records.RegisterRoutes(dash)
	s.providers.RegisterRoutes(dash)
	s.share.RegisterRoutes(e, dash, publicLimiter)
	s.brief.RegisterRoutes(dash)

	onboarding := e.Group("/onboarding", auth.RequireSession())
	s.profile.RegisterRoutes(dash, onboarding)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	views, closeViews, err := newViewCache(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to view cache")
	}
	defer closeViews()

	renderer, err := web.NewRenderer()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse templates")
	}

	e, err := newEcho(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure server")
	}
	e.Renderer = renderer

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics())
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(requestTimeout(cfg)))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	svc := buildServices(pool, cfg, views, logger)
	e.Use(svc.session)

	// Operational endpoints
	e.GET("/health", db.ReadyHandler(version,
		db.Check{Name: "database", Ping: pool.Ping},
		db.Check{Name: "view_cache", Ping: views.Ping},
	))
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsGuard(cfg.MetricsToken))

	registerRoutes(e, svc, middleware.RateLimit(rateLimitConfig(cfg)))

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

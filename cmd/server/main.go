package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	httpadapter "trustscan/internal/adapters/http"
	"trustscan/internal/adapters/memory"
	pg "trustscan/internal/adapters/postgres"
	"trustscan/internal/adapters/rdap"
	redisadapter "trustscan/internal/adapters/redis"
	"trustscan/internal/adapters/tlsprobe"
	"trustscan/internal/auth"
	"trustscan/internal/cache"
	"trustscan/internal/config"
	"trustscan/internal/ports"
	"trustscan/internal/ratelimit"
	acctsvc "trustscan/internal/services/accounts"
	profsvc "trustscan/internal/services/profiles"
	reportsvc "trustscan/internal/services/reports"
	scansvc "trustscan/internal/services/scanner"
	"trustscan/internal/services/scoring"
	"trustscan/internal/workers/janitor"
)

func main() {
	v := config.New()
	root := &cobra.Command{
		Use:           "trustscan",
		Short:         "URL trust assessment service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("LOG_LEVEL", root.PersistentFlags().Lookup("log-level"))

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v)
		},
	}
	serve.Flags().String("addr", "", "listen address (overrides LISTEN_ADDR)")
	_ = v.BindPFlag("LISTEN_ADDR", serve.Flags().Lookup("addr"))

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrations(cmd.Context(), v)
		},
	}

	root.AddCommand(serve, migrate)
	if err := root.ExecuteContext(context.Background()); err != nil {
		zerolog.New(os.Stderr).With().Timestamp().Logger().Fatal().Err(err).Msg("trustscan failed")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if cfg.Development() {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}

func runMigrations(ctx context.Context, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}
	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	log.Info().Msg("migrations applied")
	return nil
}

type repositories struct {
	scans   ports.ScanRepository
	reports ports.ReportRepository
	users   ports.UserRepository
	close   func()
}

func openRepositories(ctx context.Context, cfg config.Config, log zerolog.Logger) (repositories, error) {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, keeping scans, users and reports in memory")
		store := memory.NewStore()
		return repositories{scans: store, reports: store.Reports(), users: store.Users(), close: func() {}}, nil
	}
	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return repositories{}, errors.Wrap(err, "db connect")
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return repositories{}, err
	}
	return repositories{scans: db, reports: pg.Reports{DB: db}, users: pg.Users{DB: db}, close: db.Close}, nil
}

func run(ctx context.Context, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	repos, err := openRepositories(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer repos.close()

	keyFunc, err := ratelimit.KeyStrategy(cfg.RateLimitKey)
	if err != nil {
		return err
	}

	// Shared state lives in Redis when configured; otherwise in process,
	// swept by the janitor.
	var (
		store   ports.ResultStore
		limiter ports.Limiter
		sweeps  []janitor.Task
	)
	if cfg.RedisURL != "" {
		rdb, err := redisadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		store = redisadapter.NewStore(rdb)
		limiter = redisadapter.NewLimiter(rdb, cfg.RateLimit, cfg.RateWindow, nil)
	} else {
		mem := cache.NewMemoryStore(cfg.CacheSize, cfg.CacheTTL, nil)
		window := ratelimit.NewWindow(cfg.RateLimit, cfg.RateWindow, nil)
		store, limiter = mem, window
		sweeps = append(sweeps, janitor.Task{Name: "cache", Sweeper: mem}, janitor.Task{Name: "ratelimit", Sweeper: window})
	}

	blocklist := scoring.DefaultBlocklist
	if len(cfg.Blocklist) > 0 {
		blocklist = cfg.Blocklist
	}
	pipeline := scoring.New(tlsprobe.New(), rdap.New(nil, rdap.Options{RequestsPerSecond: cfg.RDAPRPS}), scoring.Options{
		ProbeTimeout: cfg.ProbeTimeout,
		Budget:       cfg.ScanBudget,
		Blocklist:    scoring.NewBlocklist(blocklist),
		Logger:       log,
	})
	results := cache.New(store, cfg.CacheTTL, log)
	scanner := scansvc.New(limiter, results, pipeline, repos.scans, scansvc.Options{
		MaxURLLength:   cfg.MaxURLLength,
		PersistTimeout: cfg.PersistTimeout,
		Logger:         log,
	})
	tokens := auth.NewTokens(cfg.JWTSecret, nil)

	srv := httpadapter.New(httpadapter.Deps{
		Scans:          scanner,
		Profiles:       profsvc.New(repos.scans),
		Accounts:       acctsvc.New(repos.users, tokens, nil).WithAdmins(cfg.AdminEmails),
		Reports:        reportsvc.New(repos.reports, nil, log),
		Tokens:         tokens,
		ClientKey:      keyFunc,
		AllowedOrigins: cfg.CORSOrigins,
		TrustProxy:     cfg.TrustProxy,
		Logger:         log,
	})
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	go func() {
		if err := janitor.Run(ctx, cfg.SweepInterval, log, sweeps...); err != nil {
			log.Error().Err(err).Msg("janitor stopped")
		}
	}()

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	log.Info().Str("addr", cfg.ListenAddr).Bool("redis", cfg.RedisURL != "").Bool("postgres", cfg.DatabaseURL != "").Msg("listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server error")
	}
}

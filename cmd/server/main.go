package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/ai"
	"github.com/entrelaunch/platform/internal/api"
	"github.com/entrelaunch/platform/internal/app"
	iauth "github.com/entrelaunch/platform/internal/auth"
	"github.com/entrelaunch/platform/internal/cache"
	"github.com/entrelaunch/platform/internal/cascade"
	"github.com/entrelaunch/platform/internal/crud"
	"github.com/entrelaunch/platform/internal/database"
	"github.com/entrelaunch/platform/internal/geo"
	"github.com/entrelaunch/platform/internal/locks"
	"github.com/entrelaunch/platform/internal/permissions"
	"github.com/entrelaunch/platform/internal/proxy"
	"github.com/entrelaunch/platform/internal/services"
	"github.com/entrelaunch/platform/internal/sms"
	"github.com/entrelaunch/platform/internal/tasks"
	"github.com/entrelaunch/platform/pkg/logger"
	"github.com/entrelaunch/platform/pkg/paytabs"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("entrelaunch-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		return errors.New("auth.jwt.secret must be configured")
	}
	if err := permissions.ValidateDependencies(); err != nil {
		return err
	}

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	store := buildCacheStore(cfg, db)
	locker := buildLockService(db, log)

	jwtService, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         cfg.Auth.JWT.Secret,
		Issuer:         cfg.Auth.JWT.Issuer,
		AccessTokenTTL: cfg.Auth.JWT.TTL,
	})
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	refreshSvc, err := iauth.NewRefreshService(db)
	if err != nil {
		return fmt.Errorf("initialise refresh service: %w", err)
	}
	refreshSvc.WithTTL(cfg.Auth.Session.RefreshTTL)

	checker, err := permissions.NewChecker(db)
	if err != nil {
		return fmt.Errorf("initialise permission checker: %w", err)
	}
	cachedChecker, err := permissions.NewCachedChecker(checker, store)
	if err != nil {
		return fmt.Errorf("initialise permission cache: %w", err)
	}

	var crudOpts []crud.Option
	var cascadeOpts []cascade.Option
	if cfg.Retention.TombstoneTTL > 0 {
		crudOpts = append(crudOpts, crud.WithRetention(cfg.Retention.TombstoneTTL))
		cascadeOpts = append(cascadeOpts, cascade.WithRetention(cfg.Retention.TombstoneTTL))
	}

	cascadeSvc, err := cascade.NewService(db, cascadeOpts...)
	if err != nil {
		return fmt.Errorf("initialise cascade service: %w", err)
	}
	userSvc, err := services.NewUserService(db, cascadeSvc)
	if err != nil {
		return fmt.Errorf("initialise user service: %w", err)
	}

	paymentSvc, err := buildPaymentService(cfg, db, log)
	if err != nil {
		return err
	}
	examSvc, err := buildExamService(cfg, db, log)
	if err != nil {
		return err
	}
	otpSvc, err := buildOtpService(cfg, db, log)
	if err != nil {
		return err
	}

	status := tasks.NewStatusService()
	runner, err := tasks.NewRunner(db, locker, status, cfg.Tasks.IsEnabled)
	if err != nil {
		return fmt.Errorf("initialise task runner: %w", err)
	}
	if err := registerTasks(runner, db); err != nil {
		return fmt.Errorf("register tasks: %w", err)
	}

	if err := runner.Start(); err != nil {
		return fmt.Errorf("start task runner: %w", err)
	}
	defer func() { <-runner.Stop().Done() }()

	var proxySvc *proxy.Proxy
	if cfg.Proxy.Enabled {
		proxySvc, err = proxy.New(cfg.Proxy.Routes)
		if err != nil {
			return fmt.Errorf("configure reverse proxy: %w", err)
		}
	}

	router, err := api.NewRouter(api.Deps{
		DB:          db,
		Config:      cfg,
		JWT:         jwtService,
		Refresh:     refreshSvc,
		Checker:     cachedChecker,
		Users:       userSvc,
		Payments:    paymentSvc,
		Exams:       examSvc,
		Otp:         otpSvc,
		Runner:      runner,
		Status:      status,
		Proxy:       proxySvc,
		CrudOptions: crudOpts,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected",
		zap.String("driver", strings.ToLower(strings.TrimSpace(cfg.Database.Driver))))
	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("database handle unavailable on shutdown", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("database close failed", zap.Error(err))
	}
}

func buildCacheStore(cfg *app.Config, db *gorm.DB) cache.Store {
	if strings.EqualFold(cfg.Cache.Backend, "database") {
		return cache.NewDatabaseStore(db)
	}
	return cache.NewMemoryStore()
}

// buildLockService prefers Postgres advisory locks so concurrent instances
// coordinate through the shared database. Other drivers fall back to an
// in-process lock, which is correct for a single instance.
func buildLockService(db *gorm.DB, log *zap.Logger) locks.Service {
	if database.IsPostgres(db) {
		svc, err := locks.NewPostgresService(db)
		if err == nil {
			return svc
		}
		log.Warn("postgres lock service unavailable; using in-process locks", zap.Error(err))
	}
	return locks.NewMemoryService()
}

func buildPaymentService(cfg *app.Config, db *gorm.DB, log *zap.Logger) (*services.PaymentService, error) {
	if cfg.PayTabs.ProfileID == 0 || cfg.PayTabs.ServerKey == "" {
		log.Info("payment gateway not configured; payment routes disabled")
		return nil, nil
	}

	gateway, err := paytabs.NewClient(paytabs.Config{
		ProfileID: cfg.PayTabs.ProfileID,
		ServerKey: cfg.PayTabs.ServerKey,
		ClientKey: cfg.PayTabs.ClientKey,
		Region:    cfg.PayTabs.Region,
		Currency:  cfg.PayTabs.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise payment gateway: %w", err)
	}

	var geoClient *geo.Client
	if cfg.Geo.Enabled {
		geoClient, err = geo.NewClient(geo.Config{
			BaseURL: cfg.Geo.BaseURL,
			APIKey:  cfg.Geo.APIKey,
			Timeout: cfg.Geo.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("initialise geo client: %w", err)
		}
	}

	return services.NewPaymentService(db, gateway, geoClient)
}

func buildExamService(cfg *app.Config, db *gorm.DB, log *zap.Logger) (*services.ExamService, error) {
	if !cfg.Dify.Enabled {
		log.Info("assistant not configured; exam generation disabled")
		return nil, nil
	}

	client, err := ai.NewDifyClient(ai.DifyConfig{
		BaseURL: cfg.Dify.BaseURL,
		APIKey:  cfg.Dify.APIKey,
		Timeout: cfg.Dify.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise assistant client: %w", err)
	}
	return services.NewExamService(db, client)
}

func buildOtpService(cfg *app.Config, db *gorm.DB, log *zap.Logger) (*services.OtpService, error) {
	if cfg.SMS.Secret == "" {
		log.Info("otp secret not configured; otp routes disabled")
		return nil, nil
	}

	var sender sms.Sender
	if cfg.SMS.Enabled {
		webhook, err := sms.NewWebhookSender(sms.WebhookSettings{
			Enabled: true,
			URL:     cfg.SMS.URL,
			APIKey:  cfg.SMS.APIKey,
			From:    cfg.SMS.From,
			Timeout: cfg.SMS.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("initialise sms sender: %w", err)
		}
		sender = webhook
	} else {
		sender = sms.NewLogSender()
	}

	return services.NewOtpService(db, sender, cfg.SMS.Secret)
}

func registerTasks(runner *tasks.Runner, db *gorm.DB) error {
	tokenCleanup, err := tasks.NewTokenCleanupTask(db, nil)
	if err != nil {
		return err
	}
	subscriptionCleanup, err := tasks.NewSubscriptionCleanupTask(db, nil)
	if err != nil {
		return err
	}
	tombstoneSweep, err := tasks.NewTombstoneSweepTask(db, nil)
	if err != nil {
		return err
	}
	logPrune, err := tasks.NewLogPruneTask(db, 0, nil)
	if err != nil {
		return err
	}

	runner.Register(tokenCleanup, "@hourly")
	runner.Register(subscriptionCleanup, "@hourly")
	runner.Register(tombstoneSweep, "@daily")
	runner.Register(logPrune, "@daily")
	return nil
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/netpad/api/internal/app"
	"github.com/netpad/api/internal/config"
	"github.com/netpad/api/internal/infra/http"
	"github.com/netpad/api/internal/infra/http/handler"
	"github.com/netpad/api/internal/infra/jobs"
	"github.com/netpad/api/internal/infra/postgres"
	"github.com/netpad/api/internal/infra/redis"
	"github.com/netpad/api/pkg/crypto"
	"github.com/netpad/api/pkg/logger"
	"github.com/netpad/api/pkg/token"
	"github.com/netpad/api/pkg/validator"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	// ==========================================================================
	// Configuration & Logger
	// ==========================================================================
	cfg, err := config.Load()
	if err != nil {
		log := logger.New(logger.DefaultConfig())
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env)

	// ==========================================================================
	// Infrastructure
	// ==========================================================================
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closeWithLog(db, "database", log)
	log.Info("database connected")

	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer closeWithLog(redisClient, "redis", log)
	log.Info("redis connected")

	usageLimiter := redis.NewUsageLimiter(redisClient)

	encryptor, err := newEncryptor(cfg, log)
	if err != nil {
		log.Error("failed to initialize encryptor", "error", err)
		return 1
	}

	tokenGenerator, err := token.NewGenerator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenDuration)
	if err != nil {
		log.Error("failed to initialize token generator", "error", err)
		return 1
	}

	// ==========================================================================
	// Repositories
	// ==========================================================================
	workflowRepo := postgres.NewWorkflowRepository(db)
	executionRepo := postgres.NewExecutionRepository(db)
	logRepo := postgres.NewExecutionLogRepository(db)
	orgRepo := postgres.NewOrganizationRepository(db)
	formRepo := postgres.NewFormRepository(db)
	dataSourceRepo := postgres.NewDataSourceRepository(db)
	log.Info("repositories initialized")

	// ==========================================================================
	// Job Queue
	// ==========================================================================
	jobClient, err := jobs.NewClient(jobs.ClientConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		TaskTimeout:   cfg.Queue.TaskTimeout,
	}, log)
	if err != nil {
		log.Error("failed to initialize job client", "error", err)
		return 1
	}
	defer closeWithLog(jobClient, "job client", log)

	// ==========================================================================
	// Services
	// ==========================================================================
	workflowService := app.NewWorkflowService(workflowRepo, log,
		app.WithProjectionCache(redis.NewProjectionCache(redisClient, log)),
	)
	executionService := app.NewExecutionService(
		workflowRepo, executionRepo, logRepo, orgRepo,
		usageLimiter, jobClient, log,
		app.WithMaxPendingPerOrg(cfg.Queue.MaxPendingPerOrg),
		app.WithDefaultMaxRetries(cfg.Queue.DefaultMaxRetries),
	)
	formService := app.NewFormService(formRepo, workflowRepo, log)
	dataSourceService := app.NewDataSourceService(dataSourceRepo, encryptor, log)
	orgService := app.NewOrganizationService(orgRepo, log)
	executor := app.NewExecutor(workflowRepo, executionRepo, logRepo, log)
	log.Info("services initialized")

	// ==========================================================================
	// Workers
	// ==========================================================================
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Concurrency:   cfg.Queue.Concurrency,
	}, executor, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		return 1
	}

	var scanner *app.ScheduleScanner
	if cfg.Scheduler.Enabled {
		scanner = app.NewScheduleScanner(workflowRepo, executionService, log)
		scanner.Start(ctx)
	}

	// ==========================================================================
	// HTTP Server
	// ==========================================================================
	v := validator.New()
	handlers := http.Handlers{
		Health:        handler.NewHealthHandler(handler.WithDatabase(db), handler.WithRedis(redisClient)),
		Workflows:     handler.NewWorkflowHandler(workflowService, v, log),
		Executions:    handler.NewExecutionHandler(executionService, v, log),
		Forms:         handler.NewFormHandler(formService, v, log),
		DataSources:   handler.NewDataSourceHandler(dataSourceService, v, log),
		Organizations: handler.NewOrganizationHandler(orgService, v, log),
	}

	routes, routesCleanup := http.NewRouter(cfg, log, tokenGenerator, handlers)
	server := http.NewServer(cfg, log, routes, routesCleanup)

	// ==========================================================================
	// Run & Graceful Shutdown
	// ==========================================================================
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(server.Start)
	g.Go(func() error {
		err := worker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")

		if scanner != nil {
			scanner.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	log.Info("application started", "http_addr", cfg.Server.Addr())

	if err := g.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

// newEncryptor builds the data source vault cipher. Development setups
// without a key fall back to a pass-through encryptor; production requires
// a key via config validation.
func newEncryptor(cfg *config.Config, log *logger.Logger) (crypto.Encryptor, error) {
	if !cfg.Encryption.IsConfigured() {
		log.Warn("encryption key not configured, data source credentials stored unencrypted")
		return crypto.NewNoOpEncryptor(), nil
	}
	key, err := cfg.Encryption.DecodedKey()
	if err != nil {
		return nil, err
	}
	return crypto.NewCipher(key)
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}

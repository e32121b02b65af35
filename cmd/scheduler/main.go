// Package main is the entry point for the InboxInspire scheduler.
//
// Startup order:
//
//  1. Load configuration and build the logger.
//  2. Open the Postgres pool and build the repositories.
//  3. Build the delivery stack (LLM, content, mailer, rate limiter, metrics).
//  4. Build the registry, rescheduler and dispatch executor and bind them.
//  5. Recover every active owner, then start cron and the HTTP API.
//
// On SIGINT or SIGTERM the HTTP server and cron stop first, the registry
// drains in-flight dispatches, and the pool closes last.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"inboxinspire/internal/api/handlers"
	"inboxinspire/internal/config"
	"inboxinspire/internal/content"
	apicore "inboxinspire/internal/core"
	"inboxinspire/internal/db"
	"inboxinspire/internal/external"
	"inboxinspire/internal/logging"
	"inboxinspire/internal/notifications/core"
	"inboxinspire/internal/notifications/dispatch"
	"inboxinspire/internal/notifications/email"
	"inboxinspire/internal/scheduler"
	"inboxinspire/internal/types"
)

// registryDrainTimeout bounds how long shutdown waits for in-flight dispatches.
const registryDrainTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(secretProvider(os.Getenv("SECRETS_DIR")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel).With("service", cfg.Service)
	logger.Info("inboxinspire scheduler starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	owners := db.NewOwnerRepository(pool)
	pending := db.NewPendingSendRepository(pool)
	history := db.NewMessageHistoryRepository(pool)
	versions := db.NewScheduleVersionRepository(pool)
	jobLocks := db.NewJobLockRepository(pool)
	jobHistory := db.NewJobHistoryRepository(pool)

	adapter := logging.NewSlogAdapter(logger)
	clock := types.RealClock{}

	metrics, err := newMetrics(ctx, cfg.Observability, adapter)
	if err != nil {
		return err
	}

	generator := content.NewGenerator(newLLMClient(cfg.LLM, logger), adapter.With("component", "content"))
	mailer := email.NewMailer(
		newEmailProvider(cfg.Email, adapter),
		email.Sender{Address: cfg.Email.FromAddress, Name: cfg.Email.FromName},
		cfg.Email.RatePerSecond,
		adapter.With("component", "mailer"),
	)
	limiter := core.NewRateLimiter(pending, cfg.Dispatch.GlobalDailyCap, adapter.With("component", "ratelimit"))

	registry := scheduler.NewRegistry(logger.With("component", "registry"))
	rescheduler := scheduler.NewRescheduler(
		owners, pending, versions, registry, metrics, clock,
		scheduler.ReschedulerConfig{
			LookaheadDays:       cfg.Scheduler.LookaheadDays,
			GraceWindow:         cfg.Scheduler.GraceWindow,
			RecoveryParallelism: cfg.Scheduler.RecoveryParallelism,
		},
		logger.With("component", "rescheduler"),
	)

	executor := dispatch.NewExecutor(dispatch.Deps{
		Pending:  pending,
		Owners:   owners,
		History:  history,
		Content:  generator,
		Mailer:   mailer,
		Limiter:  limiter,
		FollowUp: rescheduler,
		Metrics:  metrics,
		Clock:    clock,
		Logger:   adapter.With("component", "dispatch"),
	}, dispatch.Config{
		ContentTimeout:  cfg.LLM.Timeout,
		DeliveryTimeout: cfg.Dispatch.DeliveryTimeout,
		RetryPolicy:     retryPolicy(cfg.Retry),
	})
	rescheduler.BindDispatch(func(ctx context.Context, pendingID string) {
		executor.Execute(ctx, pendingID)
	})

	recovered, err := rescheduler.RecoverAll(ctx)
	if err != nil {
		return fmt.Errorf("recovering owners: %w", err)
	}
	logger.Info("startup recovery complete",
		"owners", recovered.Owners,
		"failed", recovered.Failed,
		"registered", recovered.Registered,
		"inserted", recovered.Inserted,
		"missed", recovered.Missed,
	)

	runner := &scheduler.TaskRunner{
		Services: scheduler.TaskServices{
			Sweep:       scheduler.NewSweepService(rescheduler, logger.With("component", "sweep")),
			Maintenance: scheduler.NewMaintenanceService(pending, jobLocks, logger.With("component", "maintenance")),
		},
		JobLock:    jobLocks,
		JobHistory: jobHistory,
		WorkerID:   workerID(),
		StaleAge:   cfg.Scheduler.StalePendingAge,
		Clock:      clock,
		Logger:     logger.With("component", "tasks"),
	}
	crons, err := scheduler.NewCron(ctx, runner, scheduler.CronSpecs{
		scheduler.TaskSweep:       cfg.Scheduler.SweepCron,
		scheduler.TaskMaintenance: cfg.Scheduler.MaintenanceCron,
	}, logger)
	if err != nil {
		return fmt.Errorf("configuring cron: %w", err)
	}
	crons.Start()

	srv, err := apicore.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthChecks = []apicore.HealthChecker{
		apicore.CheckFunc{CheckName: "database", Fn: pool.Ping},
	}
	ownerHandler := handlers.NewOwnerHandler(rescheduler, registry, srv.Validator, logger)
	pendingHandler := handlers.NewPendingHandler(pending, logger)
	versionHandler := handlers.NewVersionHandler(versions, logger)
	taskHandler := handlers.NewTaskHandler(runner, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		ownerHandler.RegisterRoutes,
		pendingHandler.RegisterRoutes,
		versionHandler.RegisterRoutes,
		taskHandler.RegisterRoutes,
	)
	srv.MountRoutes()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("http server failed", "error", err)
		}
	}

	return shutdown(srv, crons.Stop(), registry, cfg.Server.ShutdownTimeout, logger)
}

// shutdown stops intake first and drains work second. cronDone is the
// context returned by cron.Stop.
func shutdown(srv *apicore.Server, cronDone context.Context, registry *scheduler.Registry, timeout time.Duration, logger *slog.Logger) error {
	logger.Info("initiating graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	select {
	case <-cronDone.Done():
	case <-ctx.Done():
		logger.Warn("cron jobs still running at shutdown deadline")
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), registryDrainTimeout)
	defer drainCancel()
	if err := registry.Shutdown(drainCtx); err != nil {
		errs = append(errs, fmt.Errorf("registry drain: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		logger.Error("shutdown completed with errors", "error", err)
		return err
	}
	logger.Info("scheduler stopped cleanly")
	return nil
}

// secretProvider reads _SECRET_REF values from files under dir when set,
// otherwise from other environment variables.
func secretProvider(dir string) config.SecretProvider {
	if dir != "" {
		return config.NewFileProvider(dir)
	}
	return config.NewEnvVarProvider()
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	applyPoolTuning(poolCfg, cfg)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

func applyPoolTuning(poolCfg *pgxpool.Config, cfg config.DatabaseConfig) {
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	}
}

// newMetrics returns CloudWatch metrics when enabled and no-op metrics
// otherwise.
func newMetrics(ctx context.Context, cfg config.ObservabilityConfig, logger types.Logger) (core.DispatchMetrics, error) {
	if !cfg.MetricsEnabled {
		return core.NoopMetrics{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return core.NewCloudWatchDispatchMetrics(
		cloudwatch.NewFromConfig(awsCfg),
		cfg.MetricNamespace,
		logger.With("component", "metrics"),
	), nil
}

func newLLMClient(cfg config.LLMConfig, logger *slog.Logger) external.LLMClient {
	if !cfg.APIKey.IsSet() {
		logger.Warn("LLM_API_KEY not set; every message uses the fallback text")
		return external.StubLLMClient{}
	}
	return external.NewChatClient(
		&http.Client{Timeout: cfg.Timeout},
		external.LLMClientConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model},
	)
}

func newEmailProvider(cfg config.EmailConfig, logger types.Logger) external.EmailProvider {
	if !cfg.SendGridAPIKey.IsSet() {
		logger.Warn("SENDGRID_API_KEY not set; using logging stub provider")
		return external.NewStubEmailProvider(logger.With("component", "email_stub"))
	}
	return external.NewSendGridClient(
		&http.Client{Timeout: 15 * time.Second},
		external.SendGridClientConfig{APIKey: cfg.SendGridAPIKey, BaseURL: cfg.SendGridURL},
	)
}

func retryPolicy(cfg config.RetryConfig) core.RetryPolicy {
	return core.RetryPolicy{
		MaxAttempts:   cfg.MaxAttempts,
		BaseDelay:     cfg.BaseDelay,
		MaxDelay:      cfg.MaxDelay,
		BackoffFactor: cfg.BackoffFactor,
	}
}

// workerID identifies this process in job locks.
func workerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "scheduler"
	}
	return host + "-" + uuid.NewString()[:8]
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/nimbusdb/controlplane/internal/activity"
	"github.com/nimbusdb/controlplane/internal/config"
	"github.com/nimbusdb/controlplane/internal/core"
	"github.com/nimbusdb/controlplane/internal/crypto"
	"github.com/nimbusdb/controlplane/internal/db"
	"github.com/nimbusdb/controlplane/internal/logging"
	"github.com/nimbusdb/controlplane/internal/metrics"
	"github.com/nimbusdb/controlplane/internal/notify"
	"github.com/nimbusdb/controlplane/internal/pgengine"
	"github.com/nimbusdb/controlplane/internal/provisioner"
	"github.com/nimbusdb/controlplane/internal/storage"
	"github.com/nimbusdb/controlplane/internal/telemetry"
	"github.com/nimbusdb/controlplane/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registryPool, err := db.NewRegistryPool(ctx, cfg.RegistryDatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to registry database")
	}
	defer registryPool.Close()

	adminPool, err := db.NewAdminPool(ctx, cfg.AdminDatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to engine admin database")
	}
	defer adminPool.Close()

	vault, err := crypto.NewVault(cfg.EncryptionKeyHex)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize credential vault")
	}

	tlsConfig, err := cfg.TemporalTLS()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure temporal TLS")
	}
	dialOpts := temporalclient.Options{HostPort: cfg.TemporalAddress}
	if tlsConfig != nil {
		dialOpts.ConnectionOptions = temporalclient.ConnectionOptions{TLS: tlsConfig}
		logger.Info().Msg("temporal mTLS enabled")
	}
	tc, err := temporalclient.Dial(dialOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	engineAdmin := pgengine.NewAdmin(logger, cfg.AdminDatabaseURL)
	usageReader := telemetry.NewReader(adminPool)
	prov := provisioner.New(logger, cfg.AdminDatabaseURL)

	store := storage.New(logger, storage.Options{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
	})

	notifier := buildNotifier(logger, cfg)

	w := worker.New(tc, core.TaskQueue, worker.Options{})

	// Register activities
	w.RegisterActivity(activity.NewRegistry(registryPool))
	w.RegisterActivity(activity.NewEngine(engineAdmin, usageReader, prov))
	w.RegisterActivity(activity.NewRotator(registryPool, vault, engineAdmin))
	w.RegisterActivity(activity.NewBackup(logger, store, cfg.AdminDatabaseURL, cfg.ScratchDir))
	w.RegisterActivity(activity.NewNotifier(logger, notifier))
	w.RegisterActivity(activity.NewStarter(tc, core.TaskQueue))

	// Register workflows
	w.RegisterWorkflow(workflow.IdleScanWorkflow)
	w.RegisterWorkflow(workflow.PauseDatabasesWorkflow)
	w.RegisterWorkflow(workflow.RotatePasswordWorkflow)
	w.RegisterWorkflow(workflow.SyncAccessRulesWorkflow)
	w.RegisterWorkflow(workflow.ProjectBackupWorkflow)
	w.RegisterWorkflow(workflow.RestoreBackupWorkflow)

	if cfg.MetricsAddr != "" {
		metrics.RegisterPgxPoolMetrics(registryPool, "registry")
		metrics.RegisterPgxPoolMetrics(adminPool, "engine_admin")
		metricsSrv := metrics.NewServer(cfg.MetricsAddr)
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	go func() {
		logger.Info().Str("taskQueue", core.TaskQueue).Msg("starting temporal worker")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("worker failed")
		}
	}()

	// Register cron schedules. Errors for already-existing schedules are
	// ignored so that re-deploys do not fail.
	registerCronSchedules(ctx, tc, cfg, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
}

func buildNotifier(logger zerolog.Logger, cfg *config.Config) notify.Notifier {
	var notifiers notify.Multi
	if cfg.ChatWebhookURL != "" {
		notifiers = append(notifiers, notify.NewChatNotifier(logger, cfg.ChatWebhookURL))
	}
	if cfg.SMTPAddr != "" {
		notifiers = append(notifiers, notify.NewMailNotifier(logger, cfg.SMTPAddr, cfg.SMTPFrom))
	}
	if len(notifiers) == 0 {
		logger.Warn().Msg("no notification channels configured")
		return notify.Noop{}
	}
	return notifiers
}

type cronSchedule struct {
	id       string
	every    time.Duration
	workflow interface{}
	args     []interface{}
}

func registerCronSchedules(ctx context.Context, tc temporalclient.Client, cfg *config.Config, logger zerolog.Logger) {
	schedules := []cronSchedule{
		{
			id:       "idle-scan-cron",
			every:    cfg.IdleScanInterval,
			workflow: workflow.IdleScanWorkflow,
			args: []interface{}{workflow.IdleScanParams{
				OwnerPattern: "%\\_%",
				IdleAfter:    cfg.IdleAfter,
				Grace:        cfg.DeleteGrace,
			}},
		},
		{
			id:       "access-sync-cron",
			every:    cfg.ReconcileInterval,
			workflow: workflow.SyncAccessRulesWorkflow,
			args: []interface{}{workflow.SyncAccessRulesParams{
				HBAPath:   cfg.HBAFilePath,
				AdminCIDR: cfg.AdminCIDR,
			}},
		},
	}

	scheduleClient := tc.ScheduleClient()

	for _, s := range schedules {
		_, err := scheduleClient.Create(ctx, temporalclient.ScheduleOptions{
			ID: s.id,
			Spec: temporalclient.ScheduleSpec{
				Intervals: []temporalclient.ScheduleIntervalSpec{{Every: s.every}},
			},
			Action: &temporalclient.ScheduleWorkflowAction{
				ID:        s.id,
				Workflow:  s.workflow,
				Args:      s.args,
				TaskQueue: core.TaskQueue,
			},
		})
		if err != nil {
			if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "AlreadyExists") || strings.Contains(err.Error(), "already registered") {
				logger.Info().Str("id", s.id).Msg("cron schedule already exists, skipping")
			} else {
				logger.Fatal().Err(err).Str("id", s.id).Msg("failed to create cron schedule")
			}
		} else {
			logger.Info().Str("id", s.id).Dur("every", s.every).Msg("created cron schedule")
		}
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/nimbusdb/controlplane/internal/api"
	"github.com/nimbusdb/controlplane/internal/config"
	"github.com/nimbusdb/controlplane/internal/core"
	"github.com/nimbusdb/controlplane/internal/crypto"
	"github.com/nimbusdb/controlplane/internal/db"
	"github.com/nimbusdb/controlplane/internal/logging"
	"github.com/nimbusdb/controlplane/internal/pgengine"
	"github.com/nimbusdb/controlplane/internal/provisioner"
	"github.com/nimbusdb/controlplane/internal/storage"
	"github.com/nimbusdb/controlplane/internal/telemetry"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations", "Migration files directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("core-api"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := db.RunMigrations(cfg.RegistryDatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

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

	store := storage.New(logger, storage.Options{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
	})

	services := core.NewServices(registryPool, core.Deps{
		TC:             tc,
		Prov:           provisioner.New(logger, cfg.AdminDatabaseURL),
		Engine:         pgengine.NewAdmin(logger, cfg.AdminDatabaseURL),
		Vault:          vault,
		Store:          store,
		DBHost:         cfg.TenantDBHost,
		DBPort:         cfg.TenantDBPort,
		RotationPeriod: cfg.RotationPeriod,
		BackupPeriod:   cfg.BackupPeriod,
	})

	usageReader := telemetry.NewReader(adminPool)

	srv := api.NewServer(logger, registryPool, tc, services, usageReader)

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting core API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
}

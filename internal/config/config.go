package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// RegistryDatabaseURL points at the control-plane's own database holding
	// project, access-rule and backup records.
	RegistryDatabaseURL string
	// AdminDatabaseURL is a privileged connection to the managed engine's
	// default database, used for role/database administration and telemetry.
	AdminDatabaseURL string

	TemporalAddress       string
	TemporalTLSCert       string
	TemporalTLSKey        string
	TemporalTLSCACert     string
	TemporalTLSServerName string

	HTTPListenAddr string
	MetricsAddr    string
	LogLevel       string
	ServiceName    string

	// EncryptionKeyHex is the hex-encoded 32-byte key for the credential vault.
	EncryptionKeyHex string

	// TenantDBHost/TenantDBPort are the coordinates handed to tenants for
	// connecting to their provisioned databases.
	TenantDBHost string
	TenantDBPort int

	// HBAFilePath is the pg_hba.conf the access reconciler rewrites.
	HBAFilePath string
	// AdminCIDR is the platform's own network, always allowed to authenticate.
	AdminCIDR string

	ScratchDir string

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	ChatWebhookURL string
	SMTPAddr       string
	SMTPFrom       string

	// Lifecycle cadences. All durations so call sites never hard-code them.
	IdleAfter         time.Duration
	DeleteGrace       time.Duration
	RotationPeriod    time.Duration
	BackupPeriod      time.Duration
	ReconcileInterval time.Duration
	IdleScanInterval  time.Duration
}

func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		RegistryDatabaseURL:   getEnv("REGISTRY_DATABASE_URL", ""),
		AdminDatabaseURL:      getEnv("ADMIN_DATABASE_URL", ""),
		TemporalAddress:       getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalTLSCert:       getEnv("TEMPORAL_TLS_CERT", ""),
		TemporalTLSKey:        getEnv("TEMPORAL_TLS_KEY", ""),
		TemporalTLSCACert:     getEnv("TEMPORAL_TLS_CA_CERT", ""),
		TemporalTLSServerName: getEnv("TEMPORAL_TLS_SERVER_NAME", ""),
		HTTPListenAddr:        getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsAddr:           getEnv("METRICS_ADDR", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		ServiceName:           getEnv("SERVICE_NAME", ""),
		EncryptionKeyHex:      getEnv("ENCRYPTION_KEY", ""),
		TenantDBHost:          getEnv("TENANT_DB_HOST", "localhost"),
		HBAFilePath:           getEnv("HBA_FILE_PATH", "/etc/postgresql/pg_hba.conf"),
		AdminCIDR:             getEnv("ADMIN_CIDR", "10.0.0.0/8"),
		ScratchDir:            getEnv("SCRATCH_DIR", os.TempDir()),
		S3Endpoint:            getEnv("S3_ENDPOINT", ""),
		S3Region:              getEnv("S3_REGION", "us-east-1"),
		S3Bucket:              getEnv("S3_BUCKET", ""),
		S3AccessKey:           getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:           getEnv("S3_SECRET_KEY", ""),
		ChatWebhookURL:        getEnv("CHAT_WEBHOOK_URL", ""),
		SMTPAddr:              getEnv("SMTP_ADDR", ""),
		SMTPFrom:              getEnv("SMTP_FROM", ""),
	}

	var err error
	if cfg.TenantDBPort, err = getEnvInt("TENANT_DB_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.IdleAfter, err = getEnvDuration("IDLE_AFTER", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.DeleteGrace, err = getEnvDuration("DELETE_GRACE", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RotationPeriod, err = getEnvDuration("ROTATION_PERIOD", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.BackupPeriod, err = getEnvDuration("BACKUP_PERIOD", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ReconcileInterval, err = getEnvDuration("RECONCILE_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.IdleScanInterval, err = getEnvDuration("IDLE_SCAN_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the fields required by the named binary are set.
func (c *Config) Validate(binary string) error {
	if c.RegistryDatabaseURL == "" {
		return fmt.Errorf("REGISTRY_DATABASE_URL is required")
	}
	if c.EncryptionKeyHex == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	switch binary {
	case "worker", "core-api":
		if c.AdminDatabaseURL == "" {
			return fmt.Errorf("ADMIN_DATABASE_URL is required for %s", binary)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

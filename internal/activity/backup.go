package activity

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nimbusdb/controlplane/internal/storage"
)

// Backup contains activities that dump, upload, and restore tenant database
// archives.
type Backup struct {
	logger     zerolog.Logger
	store      *storage.Store
	adminURL   string
	scratchDir string
}

func NewBackup(logger zerolog.Logger, store *storage.Store, adminURL, scratchDir string) *Backup {
	return &Backup{
		logger:     logger.With().Str("component", "backup").Logger(),
		store:      store,
		adminURL:   adminURL,
		scratchDir: scratchDir,
	}
}

func (a *Backup) connURL(dbName string) (string, error) {
	u, err := url.Parse(a.adminURL)
	if err != nil {
		return "", fmt.Errorf("parse admin url: %w", err)
	}
	u.Path = "/" + dbName
	return u.String(), nil
}

// shellQuote wraps an argument in single quotes for safe shell usage.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// DumpDatabaseParams holds the parameters for DumpDatabase.
type DumpDatabaseParams struct {
	ProjectID string `json:"project_id"`
	DBName    string `json:"db_name"`
}

// DumpResult names the scratch archive and the object key it should be
// stored under.
type DumpResult struct {
	Path      string `json:"path"`
	ObjectKey string `json:"object_key"`
}

// DumpDatabase runs pg_dump and compresses the output to a gzipped scratch
// file.
func (a *Backup) DumpDatabase(ctx context.Context, params DumpDatabaseParams) (*DumpResult, error) {
	connURL, err := a.connURL(params.DBName)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(a.scratchDir, 0o750); err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102T150405")
	path := filepath.Join(a.scratchDir, fmt.Sprintf("%s-%s.sql.gz", params.DBName, stamp))

	// Build: pg_dump {url} | gzip > {path}
	shell := fmt.Sprintf("pg_dump %s | gzip > %s", shellQuote(connURL), shellQuote(path))
	cmd := exec.CommandContext(ctx, "bash", "-c", shell)
	a.logger.Info().Str("database", params.DBName).Str("path", path).Msg("dumping database")
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pg_dump failed: %s: %w", string(output), err)
	}

	objectKey := fmt.Sprintf("backups/%s/%s/%s.sql.gz", params.ProjectID, params.DBName, stamp)
	return &DumpResult{Path: path, ObjectKey: objectKey}, nil
}

// UploadBackupParams holds the parameters for UploadBackup.
type UploadBackupParams struct {
	Path      string `json:"path"`
	ObjectKey string `json:"object_key"`
}

// UploadBackup streams the scratch archive into object storage and returns
// its size.
func (a *Backup) UploadBackup(ctx context.Context, params UploadBackupParams) (int64, error) {
	f, err := os.Open(params.Path)
	if err != nil {
		return 0, fmt.Errorf("open scratch archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat scratch archive: %w", err)
	}
	if err := a.store.Upload(ctx, params.ObjectKey, f, info.Size()); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// CleanupScratch removes the scratch archive. Runs whether or not the upload
// succeeded; a missing file is fine.
func (a *Backup) CleanupScratch(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove scratch archive: %w", err)
	}
	return nil
}

// RestoreDatabaseParams holds the parameters for RestoreDatabase.
type RestoreDatabaseParams struct {
	ObjectKey string `json:"object_key"`
	DBName    string `json:"db_name"`
}

// RestoreDatabase downloads an archive and replays it into the target
// database.
func (a *Backup) RestoreDatabase(ctx context.Context, params RestoreDatabaseParams) error {
	connURL, err := a.connURL(params.DBName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(a.scratchDir, 0o750); err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}

	path := filepath.Join(a.scratchDir, "restore-"+filepath.Base(params.ObjectKey))
	defer func() {
		_ = a.CleanupScratch(ctx, path)
	}()

	body, err := a.store.Download(ctx, params.ObjectKey)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create scratch archive: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return fmt.Errorf("write scratch archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close scratch archive: %w", err)
	}

	// Build: gunzip -c {path} | psql {url}
	shell := fmt.Sprintf("gunzip -c %s | psql %s", shellQuote(path), shellQuote(connURL))
	cmd := exec.CommandContext(ctx, "bash", "-c", shell)
	a.logger.Info().Str("database", params.DBName).Str("object_key", params.ObjectKey).Msg("restoring database")
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("psql restore failed: %s: %w", string(output), err)
	}
	return nil
}

package core

import (
	"context"
	"fmt"
	"time"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/nimbusdb/controlplane/internal/model"
)

// Presigner issues time-limited download URLs for stored archives.
type Presigner interface {
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// DownloadURLTTL bounds how long a signed backup link stays valid.
const DownloadURLTTL = 15 * time.Minute

type BackupService struct {
	db    DB
	tc    temporalclient.Client
	store Presigner
}

func NewBackupService(db DB, tc temporalclient.Client, store Presigner) *BackupService {
	return &BackupService{db: db, tc: tc, store: store}
}

func (s *BackupService) ListByProject(ctx context.Context, projectID string, limit int, cursor string) ([]model.Backup, bool, error) {
	query := `SELECT id, project_id, db_name, object_key, size_bytes, created_at FROM backups WHERE project_id = $1`
	args := []any{projectID}
	argIdx := 2

	if cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list backups for project %s: %w", projectID, err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		var b model.Backup
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.DBName, &b.ObjectKey, &b.SizeBytes, &b.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, b)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate backups: %w", err)
	}

	hasMore := len(backups) > limit
	if hasMore {
		backups = backups[:limit]
	}
	return backups, hasMore, nil
}

// SignedDownloadURL returns a short-lived link to the archive. Tenant
// credentials never leave the server; the link is the only thing handed out.
func (s *BackupService) SignedDownloadURL(ctx context.Context, backupID string) (string, error) {
	var objectKey string
	err := s.db.QueryRow(ctx, "SELECT object_key FROM backups WHERE id = $1", backupID).Scan(&objectKey)
	if err != nil {
		return "", fmt.Errorf("get backup %s: %w", backupID, err)
	}
	url, err := s.store.PresignDownload(ctx, objectKey, DownloadURLTTL)
	if err != nil {
		return "", fmt.Errorf("presign backup %s: %w", backupID, err)
	}
	return url, nil
}

// Restore starts the durable restore of one archive into its database.
func (s *BackupService) Restore(ctx context.Context, backupID string) error {
	var projectID string
	err := s.db.QueryRow(ctx, "SELECT project_id FROM backups WHERE id = $1", backupID).Scan(&projectID)
	if err != nil {
		return fmt.Errorf("get backup %s: %w", backupID, err)
	}

	_, err = s.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:        fmt.Sprintf("restore-backup-%s", backupID),
		TaskQueue: TaskQueue,
	}, "RestoreBackupWorkflow", backupID)
	if err != nil {
		return fmt.Errorf("start RestoreBackupWorkflow: %w", err)
	}
	return nil
}

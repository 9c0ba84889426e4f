// Package activity holds the Temporal activities behind the lifecycle
// workflows: registry reads and writes, engine administration, backups, and
// notifications.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nimbusdb/controlplane/internal/model"
)

// DB defines the database operations used by activity structs.
// *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Registry contains activities that read from and update the registry
// database.
type Registry struct {
	db DB
}

func NewRegistry(db DB) *Registry {
	return &Registry{db: db}
}

const projectColumns = `id, owner_id, owner_email, title, description, db_role, db_name, db_host, db_port,
	encrypted_password, schema_name, inactive_databases, action_in_progress,
	status, status_message, created_at, updated_at`

// GetProjectByID retrieves a project row.
func (a *Registry) GetProjectByID(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := a.db.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.OwnerID, &p.OwnerEmail, &p.Title, &p.Description, &p.DBRole, &p.DBName,
		&p.DBHost, &p.DBPort, &p.EncryptedPassword, &p.SchemaName, &p.InactiveDatabases,
		&p.ActionInProgress, &p.Status, &p.StatusMessage, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get project by id: %w", err)
	}
	return &p, nil
}

// ListProjectsByRoles maps engine role names back to their registry rows.
func (a *Registry) ListProjectsByRoles(ctx context.Context, roles []string) ([]model.Project, error) {
	rows, err := a.db.Query(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE db_role = ANY($1) AND status != 'deleted'`, roles)
	if err != nil {
		return nil, fmt.Errorf("list projects by roles: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.OwnerEmail, &p.Title, &p.Description, &p.DBRole, &p.DBName,
			&p.DBHost, &p.DBPort, &p.EncryptedPassword, &p.SchemaName, &p.InactiveDatabases,
			&p.ActionInProgress, &p.Status, &p.StatusMessage, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// SetActionInProgressParams holds the parameters for SetActionInProgress.
type SetActionInProgressParams struct {
	ProjectID  string `json:"project_id"`
	InProgress bool   `json:"in_progress"`
}

// SetActionInProgress flips the per-project transition guard.
func (a *Registry) SetActionInProgress(ctx context.Context, params SetActionInProgressParams) error {
	_, err := a.db.Exec(ctx,
		"UPDATE projects SET action_in_progress = $1, updated_at = now() WHERE id = $2",
		params.InProgress, params.ProjectID)
	if err != nil {
		return fmt.Errorf("set action_in_progress: %w", err)
	}
	return nil
}

// MergeInactiveDatabasesParams holds the parameters for MergeInactiveDatabases.
type MergeInactiveDatabasesParams struct {
	ProjectID string   `json:"project_id"`
	DBNames   []string `json:"db_names"`
}

// MergeInactiveDatabases adds names to the project's paused set. The merge
// is a set union so replays and overlapping batches cannot duplicate
// entries.
func (a *Registry) MergeInactiveDatabases(ctx context.Context, params MergeInactiveDatabasesParams) error {
	_, err := a.db.Exec(ctx,
		`UPDATE projects
		 SET inactive_databases = (
		         SELECT COALESCE(array_agg(DISTINCT name ORDER BY name), '{}')
		         FROM unnest(inactive_databases || $1::text[]) AS name
		     ),
		     status = $2,
		     updated_at = now()
		 WHERE id = $3`,
		params.DBNames, model.StatusPaused, params.ProjectID)
	if err != nil {
		return fmt.Errorf("merge inactive databases: %w", err)
	}
	return nil
}

// ClearInactiveDatabases empties the paused set after the databases are gone.
func (a *Registry) ClearInactiveDatabases(ctx context.Context, projectID string) error {
	_, err := a.db.Exec(ctx,
		"UPDATE projects SET inactive_databases = '{}', status = $1, updated_at = now() WHERE id = $2",
		model.StatusActive, projectID)
	if err != nil {
		return fmt.Errorf("clear inactive databases: %w", err)
	}
	return nil
}

// SetProjectFailedParams holds the parameters for SetProjectFailed.
type SetProjectFailedParams struct {
	ProjectID string `json:"project_id"`
	Message   string `json:"message"`
}

// SetProjectFailed records an exhausted lifecycle transition on the project
// row so it is visible for manual intervention.
func (a *Registry) SetProjectFailed(ctx context.Context, params SetProjectFailedParams) error {
	_, err := a.db.Exec(ctx,
		"UPDATE projects SET status = $1, status_message = $2, action_in_progress = false, updated_at = now() WHERE id = $3",
		model.StatusFailed, params.Message, params.ProjectID)
	if err != nil {
		return fmt.Errorf("set project failed: %w", err)
	}
	return nil
}

// ListRegisteredDatabaseNames returns the primary database name of every
// live project, the reference set for the orphan scan.
func (a *Registry) ListRegisteredDatabaseNames(ctx context.Context) ([]string, error) {
	rows, err := a.db.Query(ctx, "SELECT db_name FROM projects WHERE status != 'deleted'")
	if err != nil {
		return nil, fmt.Errorf("list registered database names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan database name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// CreateBackupRecordParams holds the parameters for CreateBackupRecord.
type CreateBackupRecordParams struct {
	ProjectID string `json:"project_id"`
	DBName    string `json:"db_name"`
	ObjectKey string `json:"object_key"`
	SizeBytes int64  `json:"size_bytes"`
}

// CreateBackupRecord registers one uploaded archive and returns its id.
func (a *Registry) CreateBackupRecord(ctx context.Context, params CreateBackupRecordParams) (string, error) {
	id := uuid.NewString()
	_, err := a.db.Exec(ctx,
		`INSERT INTO backups (id, project_id, db_name, object_key, size_bytes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, params.ProjectID, params.DBName, params.ObjectKey, params.SizeBytes, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert backup record: %w", err)
	}
	return id, nil
}

// GetBackupByID retrieves a backup record.
func (a *Registry) GetBackupByID(ctx context.Context, id string) (*model.Backup, error) {
	var b model.Backup
	err := a.db.QueryRow(ctx,
		`SELECT id, project_id, db_name, object_key, size_bytes, created_at
		 FROM backups WHERE id = $1`, id,
	).Scan(&b.ID, &b.ProjectID, &b.DBName, &b.ObjectKey, &b.SizeBytes, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get backup by id: %w", err)
	}
	return &b, nil
}

// ListAccessRules returns every allow-list entry with its owning role.
func (a *Registry) ListAccessRules(ctx context.Context) ([]model.AccessRule, error) {
	rows, err := a.db.Query(ctx,
		`SELECT r.id, r.project_id, r.db_name, p.db_role, r.cidr, r.is_active, r.created_at
		 FROM access_rules r
		 JOIN projects p ON p.id = r.project_id
		 WHERE p.status != 'deleted'
		 ORDER BY r.db_name, r.cidr`)
	if err != nil {
		return nil, fmt.Errorf("list access rules: %w", err)
	}
	defer rows.Close()

	var rules []model.AccessRule
	for rows.Next() {
		var r model.AccessRule
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.DBName, &r.Role, &r.CIDR, &r.IsActive, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan access rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// MarkAccessRulesActive flips the given rules to active once the engine has
// the corresponding lines loaded. Scoped to the ids that were actually
// written: a rule inserted mid-rebuild stays inactive until its own rebuild.
func (a *Registry) MarkAccessRulesActive(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := a.db.Exec(ctx, "UPDATE access_rules SET is_active = true WHERE id = ANY($1)", ids)
	if err != nil {
		return fmt.Errorf("mark access rules active: %w", err)
	}
	return nil
}

// SyncState is the registry-side dirty flag for the authentication file.
type SyncState struct {
	Dirty   bool  `json:"dirty"`
	Version int64 `json:"version"`
}

// GetSyncState reads the flag and the version observed with it.
func (a *Registry) GetSyncState(ctx context.Context) (*SyncState, error) {
	var s SyncState
	err := a.db.QueryRow(ctx, "SELECT dirty, version FROM access_sync_state").Scan(&s.Dirty, &s.Version)
	if err != nil {
		return nil, fmt.Errorf("get access sync state: %w", err)
	}
	return &s, nil
}

// ClearDirtyIfVersion clears the flag only if no writer bumped the version
// since the reconciler read it. Returns false when a concurrent change won
// and the flag must stay set.
func (a *Registry) ClearDirtyIfVersion(ctx context.Context, version int64) (bool, error) {
	tag, err := a.db.Exec(ctx,
		"UPDATE access_sync_state SET dirty = false, updated_at = now() WHERE version = $1", version)
	if err != nil {
		return false, fmt.Errorf("clear access sync state: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/nimbusdb/controlplane/internal/model"
	"github.com/nimbusdb/controlplane/internal/provisioner"
)

// TaskQueue is the Temporal task queue all lifecycle workflows run on.
const TaskQueue = "controlplane-tasks"

// Provisioner creates the engine-side role and database for a project.
type Provisioner interface {
	Provision(ctx context.Context, ownerID, title string) (*provisioner.Instance, error)
}

// EngineAdmin is the subset of pgengine.Admin the services call directly.
type EngineAdmin interface {
	ResumeDatabases(ctx context.Context, role string, dbNames []string) error
}

// Vault seals and opens tenant credentials.
type Vault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(envelope string) (string, error)
}

type ProjectService struct {
	db             DB
	tc             temporalclient.Client
	prov           Provisioner
	engine         EngineAdmin
	vault          Vault
	dbHost         string
	dbPort         int
	rotationPeriod time.Duration
	backupPeriod   time.Duration
}

func NewProjectService(db DB, tc temporalclient.Client, prov Provisioner, engine EngineAdmin, vault Vault,
	dbHost string, dbPort int, rotationPeriod, backupPeriod time.Duration) *ProjectService {
	return &ProjectService{
		db: db, tc: tc, prov: prov, engine: engine, vault: vault,
		dbHost: dbHost, dbPort: dbPort,
		rotationPeriod: rotationPeriod, backupPeriod: backupPeriod,
	}
}

// RotatePasswordParams mirrors the argument of RotatePasswordWorkflow.
type RotatePasswordParams struct {
	ProjectID string        `json:"project_id"`
	Period    time.Duration `json:"period"`
}

// ProjectBackupParams mirrors the argument of ProjectBackupWorkflow.
type ProjectBackupParams struct {
	ProjectID string        `json:"project_id"`
	Period    time.Duration `json:"period"`
}

// Create provisions the engine-side role and database, records the project,
// and starts its rotation and backup loops. If the registry insert fails the
// engine objects are left behind for the orphan scan to reap.
func (s *ProjectService) Create(ctx context.Context, ownerID, ownerEmail, title, description string) (*model.Project, error) {
	instance, err := s.prov.Provision(ctx, ownerID, title)
	if err != nil {
		return nil, err
	}

	envelope, err := s.vault.Encrypt(instance.Password)
	if err != nil {
		return nil, fmt.Errorf("seal credential: %w", err)
	}

	now := time.Now().UTC()
	project := &model.Project{
		ID:                uuid.NewString(),
		OwnerID:           ownerID,
		OwnerEmail:        ownerEmail,
		Title:             title,
		Description:       description,
		DBRole:            instance.Role,
		DBName:            instance.DBName,
		DBHost:            s.dbHost,
		DBPort:            s.dbPort,
		EncryptedPassword: envelope,
		Status:            model.StatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO projects (id, owner_id, owner_email, title, description, db_role, db_name, db_host, db_port,
		                       encrypted_password, inactive_databases, action_in_progress, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, '{}', false, $11, $12, $13)`,
		project.ID, project.OwnerID, project.OwnerEmail, project.Title, project.Description,
		project.DBRole, project.DBName, project.DBHost, project.DBPort,
		project.EncryptedPassword, project.Status, project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}

	_, err = s.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:        fmt.Sprintf("rotate-password-%s", project.ID),
		TaskQueue: TaskQueue,
	}, "RotatePasswordWorkflow", RotatePasswordParams{ProjectID: project.ID, Period: s.rotationPeriod})
	if err != nil {
		return nil, fmt.Errorf("start RotatePasswordWorkflow: %w", err)
	}

	_, err = s.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:        fmt.Sprintf("backup-%s", project.ID),
		TaskQueue: TaskQueue,
	}, "ProjectBackupWorkflow", ProjectBackupParams{ProjectID: project.ID, Period: s.backupPeriod})
	if err != nil {
		return nil, fmt.Errorf("start ProjectBackupWorkflow: %w", err)
	}

	return project, nil
}

const projectColumns = `id, owner_id, owner_email, title, description, db_role, db_name, db_host, db_port,
	encrypted_password, schema_name, inactive_databases, action_in_progress,
	status, status_message, created_at, updated_at`

func scanProject(row interface{ Scan(dest ...any) error }) (*model.Project, error) {
	var p model.Project
	err := row.Scan(&p.ID, &p.OwnerID, &p.OwnerEmail, &p.Title, &p.Description, &p.DBRole, &p.DBName,
		&p.DBHost, &p.DBPort, &p.EncryptedPassword, &p.SchemaName, &p.InactiveDatabases,
		&p.ActionInProgress, &p.Status, &p.StatusMessage, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProjectService) GetByID(ctx context.Context, id string) (*model.Project, error) {
	p, err := scanProject(s.db.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, nil
}

func (s *ProjectService) ListByOwner(ctx context.Context, ownerID string, limit int, cursor string) ([]model.Project, bool, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE owner_id = $1 AND status != 'deleted'`
	args := []any{ownerID}
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
		return nil, false, fmt.Errorf("list projects for owner %s: %w", ownerID, err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate projects: %w", err)
	}

	hasMore := len(projects) > limit
	if hasMore {
		projects = projects[:limit]
	}
	return projects, hasMore, nil
}

// Resume restores access to every paused database of a project and clears
// the inactive set. Only valid while something is actually paused and no
// lifecycle transition is mid-flight.
func (s *ProjectService) Resume(ctx context.Context, id string) error {
	project, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if project.Status == model.StatusDeleted {
		return fmt.Errorf("project %s is deleted", id)
	}
	if project.ActionInProgress {
		return fmt.Errorf("project %s has a lifecycle action in progress, try again shortly", id)
	}
	if len(project.InactiveDatabases) == 0 {
		return fmt.Errorf("project %s has no paused databases", id)
	}

	if err := s.engine.ResumeDatabases(ctx, project.DBRole, project.InactiveDatabases); err != nil {
		return fmt.Errorf("resume databases for project %s: %w", id, err)
	}

	_, err = s.db.Exec(ctx,
		"UPDATE projects SET inactive_databases = '{}', status = $1, updated_at = now() WHERE id = $2",
		model.StatusActive, id,
	)
	if err != nil {
		return fmt.Errorf("clear inactive databases for project %s: %w", id, err)
	}
	return nil
}

// Connection is the tenant-facing credential for reaching a project database.
type Connection struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// Connection opens the project's sealed credential and returns everything a
// tenant needs to connect directly.
func (s *ProjectService) Connection(p *model.Project) (*Connection, error) {
	password, err := s.vault.Decrypt(p.EncryptedPassword)
	if err != nil {
		return nil, fmt.Errorf("open credential for project %s: %w", p.ID, err)
	}
	return &Connection{
		Host:     p.DBHost,
		Port:     p.DBPort,
		User:     p.DBRole,
		Password: password,
		Database: p.DBName,
	}, nil
}

// UpdateDescription changes the free-text description only.
func (s *ProjectService) UpdateDescription(ctx context.Context, id, description string) error {
	_, err := s.db.Exec(ctx,
		"UPDATE projects SET description = $1, updated_at = now() WHERE id = $2",
		description, id,
	)
	if err != nil {
		return fmt.Errorf("update project %s description: %w", id, err)
	}
	return nil
}

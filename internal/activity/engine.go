package activity

import (
	"context"
	"time"

	"github.com/nimbusdb/controlplane/internal/model"
	"github.com/nimbusdb/controlplane/internal/pgengine"
	"github.com/nimbusdb/controlplane/internal/telemetry"
)

// OrphanFinder scans the engine for managed databases that lost their
// registry record.
type OrphanFinder interface {
	FindOrphans(ctx context.Context, registered []string) ([]string, error)
}

// Engine contains activities that mutate or inspect the managed PostgreSQL
// engine.
type Engine struct {
	admin   *pgengine.Admin
	reader  *telemetry.Reader
	orphans OrphanFinder
}

func NewEngine(admin *pgengine.Admin, reader *telemetry.Reader, orphans OrphanFinder) *Engine {
	return &Engine{admin: admin, reader: reader, orphans: orphans}
}

// EngineDatabasesParams identifies a set of databases and their owning role.
type EngineDatabasesParams struct {
	Role    string   `json:"role"`
	DBNames []string `json:"db_names"`
}

// PauseDatabases revokes access and terminates live sessions. Replay-safe.
func (a *Engine) PauseDatabases(ctx context.Context, params EngineDatabasesParams) error {
	return a.admin.PauseDatabases(ctx, params.Role, params.DBNames)
}

// DropDatabases removes the databases from the engine. Replay-safe.
func (a *Engine) DropDatabases(ctx context.Context, dbNames []string) error {
	return a.admin.DropDatabases(ctx, dbNames)
}

// FindOrphanDatabases lists engine databases with no registry record, the
// leftovers of a crash between the engine and registry writes.
func (a *Engine) FindOrphanDatabases(ctx context.Context, registered []string) ([]string, error) {
	return a.orphans.FindOrphans(ctx, registered)
}

// FindIdleParams holds the parameters for FindIdle.
type FindIdleParams struct {
	OwnerPattern string        `json:"owner_pattern"`
	IdleAfter    time.Duration `json:"idle_after"`
}

// FindIdle reports tenant databases that have seen no use inside the window.
func (a *Engine) FindIdle(ctx context.Context, params FindIdleParams) ([]model.IdleDatabase, error) {
	return a.reader.FindIdle(ctx, params.OwnerPattern, params.IdleAfter)
}

// ListOwnedDatabases names every live database owned by a role.
func (a *Engine) ListOwnedDatabases(ctx context.Context, role string) ([]string, error) {
	usages, err := a.reader.ListManagedDatabases(ctx, role)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(usages))
	for _, u := range usages {
		names = append(names, u.Name)
	}
	return names, nil
}

// WriteRulesetParams holds the parameters for WriteRuleset.
type WriteRulesetParams struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// WriteRuleset replaces the engine's authentication file and reloads the
// configuration so it takes effect.
func (a *Engine) WriteRuleset(ctx context.Context, params WriteRulesetParams) error {
	if err := pgengine.WriteRuleset(params.Path, params.Content); err != nil {
		return err
	}
	return a.admin.ReloadConfiguration(ctx)
}

// Package pgengine performs privileged operations against the managed
// PostgreSQL engine: privilege revocation and restoration, backend
// termination, database drops, role password changes, and host-based
// authentication reconciliation.
//
// Mutating statements always run on a freshly-opened connection that is
// closed immediately afterwards, never on the shared pool, so elevated
// sessions are not left open.
package pgengine

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/nimbusdb/controlplane/internal/db"
)

type Admin struct {
	logger   zerolog.Logger
	adminURL string
}

func NewAdmin(logger zerolog.Logger, adminURL string) *Admin {
	return &Admin{
		logger:   logger.With().Str("component", "pgengine").Logger(),
		adminURL: adminURL,
	}
}

func (a *Admin) withConn(ctx context.Context, fn func(conn *pgx.Conn) error) error {
	conn, err := db.ShortLivedConn(ctx, a.adminURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	return fn(conn)
}

// PauseDatabases revokes all privileges on the named databases from PUBLIC
// and from the owning role, then terminates any live backends. Safe to
// replay: REVOKE on an absent grant is a no-op.
func (a *Admin) PauseDatabases(ctx context.Context, role string, dbNames []string) error {
	return a.withConn(ctx, func(conn *pgx.Conn) error {
		for _, name := range dbNames {
			ident := pgx.Identifier{name}.Sanitize()
			if _, err := conn.Exec(ctx, fmt.Sprintf("REVOKE ALL ON DATABASE %s FROM PUBLIC", ident)); err != nil {
				return fmt.Errorf("revoke public on %s: %w", name, err)
			}
			if _, err := conn.Exec(ctx, fmt.Sprintf("REVOKE CONNECT ON DATABASE %s FROM %s", ident, pgx.Identifier{role}.Sanitize())); err != nil {
				return fmt.Errorf("revoke connect on %s from %s: %w", name, role, err)
			}
			a.logger.Info().Str("database", name).Msg("revoked access")
		}
		return a.terminateBackends(ctx, conn, dbNames)
	})
}

// ResumeDatabases grants access back on the named databases.
func (a *Admin) ResumeDatabases(ctx context.Context, role string, dbNames []string) error {
	return a.withConn(ctx, func(conn *pgx.Conn) error {
		for _, name := range dbNames {
			ident := pgx.Identifier{name}.Sanitize()
			if _, err := conn.Exec(ctx, fmt.Sprintf("GRANT ALL ON DATABASE %s TO %s", ident, pgx.Identifier{role}.Sanitize())); err != nil {
				return fmt.Errorf("grant on %s to %s: %w", name, role, err)
			}
			if _, err := conn.Exec(ctx, fmt.Sprintf("GRANT CONNECT ON DATABASE %s TO PUBLIC", ident)); err != nil {
				return fmt.Errorf("grant connect on %s: %w", name, err)
			}
			a.logger.Info().Str("database", name).Msg("restored access")
		}
		return nil
	})
}

// DropDatabases terminates remaining backends and drops the named databases.
// IF EXISTS keeps a replay after a mid-run crash from erroring.
func (a *Admin) DropDatabases(ctx context.Context, dbNames []string) error {
	return a.withConn(ctx, func(conn *pgx.Conn) error {
		if err := a.terminateBackends(ctx, conn, dbNames); err != nil {
			return err
		}
		for _, name := range dbNames {
			ident := pgx.Identifier{name}.Sanitize()
			if _, err := conn.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", ident)); err != nil {
				return fmt.Errorf("drop database %s: %w", name, err)
			}
			a.logger.Info().Str("database", name).Msg("dropped database")
		}
		return nil
	})
}

// AlterRolePassword sets a new password on the role.
func (a *Admin) AlterRolePassword(ctx context.Context, role, newPassword string) error {
	return a.withConn(ctx, func(conn *pgx.Conn) error {
		stmt := fmt.Sprintf("ALTER ROLE %s WITH PASSWORD %s",
			pgx.Identifier{role}.Sanitize(), pq.QuoteLiteral(newPassword))
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("alter role %s password: %w", role, err)
		}
		a.logger.Info().Str("role", role).Msg("rotated role password")
		return nil
	})
}

func (a *Admin) terminateBackends(ctx context.Context, conn *pgx.Conn, dbNames []string) error {
	_, err := conn.Exec(ctx,
		`SELECT pg_terminate_backend(pid)
		 FROM pg_stat_activity
		 WHERE datname = ANY($1) AND pid <> pg_backend_pid()`, dbNames)
	if err != nil {
		return fmt.Errorf("terminate backends: %w", err)
	}
	return nil
}

// ReloadConfiguration asks the engine to re-read its configuration files.
func (a *Admin) ReloadConfiguration(ctx context.Context) error {
	return a.withConn(ctx, func(conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, "SELECT pg_reload_conf()"); err != nil {
			return fmt.Errorf("reload configuration: %w", err)
		}
		return nil
	})
}


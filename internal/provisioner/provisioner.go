// Package provisioner creates tenant roles and databases on the managed
// engine and derives their canonical names and credentials.
package provisioner

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/nimbusdb/controlplane/internal/db"
)

// ErrProvisioningFailed wraps any failure after which the engine may hold
// partial state. Cleanup is attempted best-effort before it is returned.
var ErrProvisioningFailed = errors.New("provisioning failed")

const passwordBytes = 12

// Instance describes a freshly provisioned tenant database.
type Instance struct {
	Role     string
	Password string
	DBName   string
}

type Provisioner struct {
	logger   zerolog.Logger
	adminURL string
}

func New(logger zerolog.Logger, adminURL string) *Provisioner {
	return &Provisioner{
		logger:   logger.With().Str("component", "provisioner").Logger(),
		adminURL: adminURL,
	}
}

// SanitizeTitle lowercases a project title and strips everything outside
// [a-z0-9_] so it can be embedded in role and database identifiers.
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DeriveRole builds the login role name for a project.
func DeriveRole(ownerID, title string) string {
	return fmt.Sprintf("%s_%s", ownerID, SanitizeTitle(title))
}

// DeriveDBName builds a collision-resistant database name for a project.
func DeriveDBName(title string) (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate db name suffix: %w", err)
	}
	return fmt.Sprintf("%s_%s_db", SanitizeTitle(title), hex.EncodeToString(suffix)), nil
}

// GeneratePassword returns a fresh random credential.
func GeneratePassword() (string, error) {
	raw := make([]byte, passwordBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// Provision creates the login role and its database, then installs the
// extensions tenant databases rely on. On failure it tears down whatever
// it managed to create and returns ErrProvisioningFailed.
func (p *Provisioner) Provision(ctx context.Context, ownerID, title string) (*Instance, error) {
	role := DeriveRole(ownerID, title)
	dbName, err := DeriveDBName(title)
	if err != nil {
		return nil, err
	}
	password, err := GeneratePassword()
	if err != nil {
		return nil, err
	}

	conn, err := db.ShortLivedConn(ctx, p.adminURL)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	// A role left behind by an earlier failed run would make CREATE ROLE
	// fail with a less useful error, so it is checked up front.
	var leftover bool
	if err := conn.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", role).Scan(&leftover); err != nil {
		return nil, fmt.Errorf("check role %s: %w", role, err)
	}
	if leftover {
		return nil, fmt.Errorf("%w: role %s already exists", ErrProvisioningFailed, role)
	}

	roleCreated := false
	dbCreated := false
	fail := func(cause error) (*Instance, error) {
		p.cleanup(ctx, conn, role, dbName, roleCreated, dbCreated)
		return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, cause)
	}

	_, err = conn.Exec(ctx, fmt.Sprintf("CREATE ROLE %s WITH LOGIN PASSWORD %s CREATEDB",
		pgx.Identifier{role}.Sanitize(), pq.QuoteLiteral(password)))
	if err != nil {
		return fail(fmt.Errorf("create role %s: %w", role, err))
	}
	roleCreated = true

	_, err = conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s OWNER %s",
		pgx.Identifier{dbName}.Sanitize(), pgx.Identifier{role}.Sanitize()))
	if err != nil {
		return fail(fmt.Errorf("create database %s: %w", dbName, err))
	}
	dbCreated = true

	if err := p.installExtensions(ctx, dbName); err != nil {
		return fail(err)
	}

	p.logger.Info().Str("role", role).Str("database", dbName).Msg("provisioned tenant database")
	return &Instance{Role: role, Password: password, DBName: dbName}, nil
}

// installExtensions connects to the new database directly; extensions are
// installed per-database, not per-cluster.
func (p *Provisioner) installExtensions(ctx context.Context, dbName string) error {
	target, err := swapDatabase(p.adminURL, dbName)
	if err != nil {
		return err
	}
	conn, err := db.ShortLivedConn(ctx, target)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", dbName, err)
	}
	defer conn.Close(ctx)

	for _, ext := range []string{"pg_stat_statements", "dblink"} {
		if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE EXTENSION IF NOT EXISTS %s", pgx.Identifier{ext}.Sanitize())); err != nil {
			return fmt.Errorf("install extension %s in %s: %w", ext, dbName, err)
		}
	}
	return nil
}

func (p *Provisioner) cleanup(ctx context.Context, conn *pgx.Conn, role, dbName string, roleCreated, dbCreated bool) {
	if dbCreated {
		if _, err := conn.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", pgx.Identifier{dbName}.Sanitize())); err != nil {
			p.logger.Warn().Err(err).Str("database", dbName).Msg("cleanup: drop database failed")
		}
	}
	if roleCreated {
		if _, err := conn.Exec(ctx, fmt.Sprintf("DROP ROLE IF EXISTS %s", pgx.Identifier{role}.Sanitize())); err != nil {
			p.logger.Warn().Err(err).Str("role", role).Msg("cleanup: drop role failed")
		}
	}
}

// swapDatabase rewrites the database path of a connection URL.
func swapDatabase(connURL, dbName string) (string, error) {
	u, err := url.Parse(connURL)
	if err != nil {
		return "", fmt.Errorf("parse admin url: %w", err)
	}
	u.Path = "/" + dbName
	return u.String(), nil
}

// FindOrphans lists databases owned by managed roles that have no registry
// record, which indicates a crash between engine and registry writes.
func (p *Provisioner) FindOrphans(ctx context.Context, registered []string) ([]string, error) {
	if registered == nil {
		// A nil slice would reach the engine as NULL and filter every row.
		registered = []string{}
	}
	conn, err := db.ShortLivedConn(ctx, p.adminURL)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx,
		`SELECT d.datname
		 FROM pg_database d
		 JOIN pg_roles r ON r.oid = d.datdba
		 WHERE d.datname LIKE '%\_db' AND NOT d.datistemplate
		   AND NOT (d.datname = ANY($1))`, registered)
	if err != nil {
		return nil, fmt.Errorf("list orphan databases: %w", err)
	}
	defer rows.Close()

	var orphans []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan orphan database: %w", err)
		}
		orphans = append(orphans, name)
	}
	return orphans, rows.Err()
}

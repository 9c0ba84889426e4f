// Package telemetry reads the engine's statistics catalogs to classify
// managed databases as never-used, idle, or active. It is strictly read-only.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nimbusdb/controlplane/internal/model"
)

// DB is the subset of pgxpool.Pool the reader needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Reader struct {
	db DB
}

func NewReader(db DB) *Reader {
	return &Reader{db: db}
}

// Classify applies the idle-detection rule to one database's counters. A
// database with zero operations since the last statistics reset is NeverUsed
// regardless of elapsed time; with activity recorded but a statistics window
// starting before the idle threshold it is Idle; otherwise Active.
func Classify(totalOps int64, statsReset time.Time, now time.Time, idleAfter time.Duration) model.IdleStatus {
	if totalOps == 0 {
		return model.IdleStatusNeverUsed
	}
	if statsReset.IsZero() || now.Sub(statsReset) > idleAfter {
		return model.IdleStatusIdle
	}
	return model.IdleStatusActive
}

// ListManagedDatabases returns usage counters for every database whose owner
// role matches ownerPattern (SQL LIKE syntax).
func (r *Reader) ListManagedDatabases(ctx context.Context, ownerPattern string) ([]model.DatabaseUsage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT d.datname,
		        pg_database_size(d.datname),
		        COALESCE(s.numbackends, 0),
		        COALESCE(s.tup_returned + s.tup_fetched + s.tup_inserted + s.tup_updated + s.tup_deleted, 0)
		 FROM pg_database d
		 JOIN pg_roles r ON d.datdba = r.oid
		 LEFT JOIN pg_stat_database s ON s.datid = d.oid
		 WHERE r.rolname LIKE $1 AND NOT d.datistemplate
		 ORDER BY d.datname`, ownerPattern)
	if err != nil {
		return nil, fmt.Errorf("list managed databases: %w", err)
	}
	defer rows.Close()

	var usages []model.DatabaseUsage
	for rows.Next() {
		var u model.DatabaseUsage
		if err := rows.Scan(&u.Name, &u.SizeBytes, &u.ActiveConnections, &u.TotalOperations); err != nil {
			return nil, fmt.Errorf("scan database usage: %w", err)
		}
		usages = append(usages, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate database usage: %w", err)
	}
	return usages, nil
}

// FindIdle scans every managed database and returns those classified
// NeverUsed or Idle. Databases with no statistics row are treated as
// NeverUsed rather than failing the scan.
func (r *Reader) FindIdle(ctx context.Context, ownerPattern string, idleAfter time.Duration) ([]model.IdleDatabase, error) {
	rows, err := r.db.Query(ctx,
		`SELECT d.datname,
		        r.rolname,
		        COALESCE(s.tup_returned + s.tup_fetched + s.tup_inserted + s.tup_updated + s.tup_deleted, 0),
		        s.stats_reset
		 FROM pg_database d
		 JOIN pg_roles r ON d.datdba = r.oid
		 LEFT JOIN pg_stat_database s ON s.datid = d.oid
		 WHERE r.rolname LIKE $1 AND NOT d.datistemplate
		 ORDER BY d.datname`, ownerPattern)
	if err != nil {
		return nil, fmt.Errorf("scan idle databases: %w", err)
	}
	defer rows.Close()

	now := time.Now()

	var idle []model.IdleDatabase
	for rows.Next() {
		var (
			name, role string
			totalOps   int64
			statsReset *time.Time
		)
		if err := rows.Scan(&name, &role, &totalOps, &statsReset); err != nil {
			return nil, fmt.Errorf("scan idle row: %w", err)
		}

		reset := time.Time{}
		if statsReset != nil {
			reset = *statsReset
		}
		status := Classify(totalOps, reset, now, idleAfter)
		if status == model.IdleStatusActive {
			continue
		}
		idle = append(idle, model.IdleDatabase{
			DatabaseName: name,
			OwnerRole:    role,
			Status:       status,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate idle rows: %w", err)
	}
	return idle, nil
}

package core

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/nimbusdb/controlplane/internal/model"
	"github.com/nimbusdb/controlplane/internal/querybuilder"
)

// tenantConn is one short-lived connection into a tenant database, opened
// with the tenant's own role so engine-side privileges apply.
type tenantConn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (rowsAffected int64, err error)
	Close(ctx context.Context) error
}

type pgxTenantConn struct{ conn *pgx.Conn }

func (c pgxTenantConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.conn.Query(ctx, sql, args...)
}

func (c pgxTenantConn) Exec(ctx context.Context, sql string, arguments ...any) (int64, error) {
	tag, err := c.conn.Exec(ctx, sql, arguments...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c pgxTenantConn) Close(ctx context.Context) error { return c.conn.Close(ctx) }

func dialTenant(ctx context.Context, connURL string) (tenantConn, error) {
	conn, err := pgx.Connect(ctx, connURL)
	if err != nil {
		return nil, err
	}
	return pgxTenantConn{conn: conn}, nil
}

// QueryService runs tenant-authored filtered searches and bulk updates
// against a project's database.
type QueryService struct {
	db    DB
	vault Vault
	dial  func(ctx context.Context, connURL string) (tenantConn, error)
}

func NewQueryService(db DB, vault Vault) *QueryService {
	return &QueryService{db: db, vault: vault, dial: dialTenant}
}

// SearchResult carries column order alongside the rows so callers can render
// a stable table.
type SearchResult struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

func (s *QueryService) connectTo(ctx context.Context, projectID, dbName string) (tenantConn, error) {
	project, err := scanProject(s.db.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, projectID))
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}
	if project.Status == model.StatusDeleted {
		return nil, fmt.Errorf("project %s is deleted", projectID)
	}
	if project.HasInactive(dbName) {
		return nil, fmt.Errorf("database %s is paused, resume the project first", dbName)
	}

	password, err := s.vault.Decrypt(project.EncryptedPassword)
	if err != nil {
		return nil, fmt.Errorf("open credential for project %s: %w", projectID, err)
	}

	connURL := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		url.QueryEscape(project.DBRole), url.QueryEscape(password),
		project.DBHost, project.DBPort, url.PathEscape(dbName))
	conn, err := s.dial(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("connect to tenant database %s: %w", dbName, err)
	}
	return conn, nil
}

// Search builds and runs a filtered SELECT on the tenant database.
func (s *QueryService) Search(ctx context.Context, projectID, dbName, table string, predicates []querybuilder.Predicate) (*SearchResult, error) {
	query, err := querybuilder.BuildSearch(table, predicates)
	if err != nil {
		return nil, err
	}

	conn, err := s.connectTo(ctx, projectID, dbName)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("run search on %s: %w", dbName, err)
	}
	defer rows.Close()

	columns, data, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("read search rows: %w", err)
	}
	return &SearchResult{Columns: columns, Rows: data}, nil
}

// collectRows drains a result set into column-keyed maps, preserving the
// column order separately.
func collectRows(rows pgx.Rows) ([]string, []map[string]any, error) {
	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	data := []map[string]any{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, data, nil
}

// BulkUpdate builds and runs a multi-row update on the tenant database and
// reports how many rows changed.
func (s *QueryService) BulkUpdate(ctx context.Context, projectID, dbName, table, pkColumn string, updates map[string]map[string]string) (int64, error) {
	query, err := querybuilder.BuildBulkUpdate(table, pkColumn, updates)
	if err != nil {
		return 0, err
	}

	conn, err := s.connectTo(ctx, projectID, dbName)
	if err != nil {
		return 0, err
	}
	defer conn.Close(ctx)

	affected, err := conn.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("run bulk update on %s: %w", dbName, err)
	}
	return affected, nil
}

// TableInfo names a tenant table and its primary-key column. PrimaryKey is
// nil for tables without one; those cannot be browsed for row deletion.
type TableInfo struct {
	Name       string  `json:"name"`
	PrimaryKey *string `json:"primary_key"`
}

// ListTables enumerates the ordinary tables in the database's public schema
// together with their primary-key columns, read from the engine catalogs.
func (s *QueryService) ListTables(ctx context.Context, projectID, dbName string) ([]TableInfo, error) {
	conn, err := s.connectTo(ctx, projectID, dbName)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, `
		SELECT c.relname, a.attname
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_index i ON i.indrelid = c.oid AND i.indisprimary
		LEFT JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(i.indkey)
		WHERE c.relkind = 'r' AND n.nspname = 'public'
		ORDER BY c.relname`)
	if err != nil {
		return nil, fmt.Errorf("list tables of %s: %w", dbName, err)
	}
	defer rows.Close()

	tables := []TableInfo{}
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.Name, &t.PrimaryKey); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 200
)

// TablePage is one page of a table's rows plus the counts needed to render
// pagination controls.
type TablePage struct {
	Columns    []string         `json:"columns"`
	Rows       []map[string]any `json:"rows"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	Total      int64            `json:"total"`
	TotalPages int64            `json:"total_pages"`
}

// TableContent reads one page of a table. Page numbers start at 1; zero or
// negative values fall back to the first page and the default limit.
func (s *QueryService) TableContent(ctx context.Context, projectID, dbName, table string, page, limit int) (*TablePage, error) {
	if table == "" {
		return nil, fmt.Errorf("%w: empty table name", querybuilder.ErrInvalidQuery)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	conn, err := s.connectTo(ctx, projectID, dbName)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	quoted := pq.QuoteIdentifier(table)

	var total int64
	countRows, err := conn.Query(ctx, "SELECT count(*) FROM "+quoted)
	if err != nil {
		return nil, fmt.Errorf("count rows of %s: %w", table, err)
	}
	if countRows.Next() {
		if err := countRows.Scan(&total); err != nil {
			countRows.Close()
			return nil, fmt.Errorf("scan row count: %w", err)
		}
	}
	countRows.Close()
	if err := countRows.Err(); err != nil {
		return nil, fmt.Errorf("count rows of %s: %w", table, err)
	}

	rows, err := conn.Query(ctx,
		fmt.Sprintf("SELECT * FROM %s LIMIT %d OFFSET %d", quoted, limit, (page-1)*limit))
	if err != nil {
		return nil, fmt.Errorf("read page of %s: %w", table, err)
	}
	defer rows.Close()

	columns, data, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("read rows of %s: %w", table, err)
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	return &TablePage{
		Columns: columns, Rows: data,
		Page: page, Limit: limit,
		Total: total, TotalPages: totalPages,
	}, nil
}

// DeleteRows removes the rows whose primary-key values are listed and
// reports how many were actually deleted.
func (s *QueryService) DeleteRows(ctx context.Context, projectID, dbName, table, pkColumn string, pkValues []string) (int64, error) {
	query, err := querybuilder.BuildDelete(table, pkColumn, pkValues)
	if err != nil {
		return 0, err
	}

	conn, err := s.connectTo(ctx, projectID, dbName)
	if err != nil {
		return 0, err
	}
	defer conn.Close(ctx)

	affected, err := conn.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("run delete on %s: %w", dbName, err)
	}
	return affected, nil
}

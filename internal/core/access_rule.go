package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nimbusdb/controlplane/internal/model"
	"github.com/nimbusdb/controlplane/internal/pgengine"
)

type AccessRuleService struct {
	db DB
}

func NewAccessRuleService(db DB) *AccessRuleService {
	return &AccessRuleService{db: db}
}

// Create records an allow-list entry in canonical CIDR form and marks the
// engine's authentication file stale. The entry stays inactive until the
// reconciler has written and reloaded the file.
func (s *AccessRuleService) Create(ctx context.Context, projectID, dbName, rawCIDR string) (*model.AccessRule, error) {
	cidr, err := pgengine.NormalizeCIDR(rawCIDR)
	if err != nil {
		return nil, fmt.Errorf("invalid access rule address: %w", err)
	}

	var role string
	if err := s.db.QueryRow(ctx, "SELECT db_role FROM projects WHERE id = $1", projectID).Scan(&role); err != nil {
		return nil, fmt.Errorf("get project %s for access rule: %w", projectID, err)
	}

	rule := &model.AccessRule{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		DBName:    dbName,
		Role:      role,
		CIDR:      cidr,
		IsActive:  false,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO access_rules (id, project_id, db_name, cidr, is_active, created_at)
		 VALUES ($1, $2, $3, $4, false, $5)`,
		rule.ID, rule.ProjectID, rule.DBName, rule.CIDR, rule.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert access rule: %w", err)
	}

	if err := s.MarkDirty(ctx); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *AccessRuleService) ListByProject(ctx context.Context, projectID string) ([]model.AccessRule, error) {
	rows, err := s.db.Query(ctx,
		`SELECT r.id, r.project_id, r.db_name, p.db_role, r.cidr, r.is_active, r.created_at
		 FROM access_rules r
		 JOIN projects p ON p.id = r.project_id
		 WHERE r.project_id = $1
		 ORDER BY r.created_at, r.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list access rules for project %s: %w", projectID, err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access rules: %w", err)
	}
	return rules, nil
}

// Delete removes the entry and marks the file stale so the next
// reconciliation drops the corresponding line.
func (s *AccessRuleService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM access_rules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete access rule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("access rule %s not found", id)
	}
	return s.MarkDirty(ctx)
}

// MarkDirty flags the authentication file as stale. The version bump lets
// the reconciler detect writes that raced its rebuild.
func (s *AccessRuleService) MarkDirty(ctx context.Context) error {
	_, err := s.db.Exec(ctx,
		"UPDATE access_sync_state SET dirty = true, version = version + 1, updated_at = now()")
	if err != nil {
		return fmt.Errorf("mark access rules dirty: %w", err)
	}
	return nil
}

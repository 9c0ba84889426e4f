package activity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nimbusdb/controlplane/internal/model"
	"github.com/nimbusdb/controlplane/internal/provisioner"
)

// Vault seals fresh credentials before they touch the registry.
type Vault interface {
	Encrypt(plaintext string) (string, error)
}

// RoleAdmin applies a credential to the engine role.
type RoleAdmin interface {
	AlterRolePassword(ctx context.Context, role, password string) error
}

// Rotator rotates a project's role password end to end in one activity so
// the registry is only ever updated after the engine accepted the new
// credential.
type Rotator struct {
	db    DB
	vault Vault
	admin RoleAdmin
}

func NewRotator(db DB, vault Vault, admin RoleAdmin) *Rotator {
	return &Rotator{db: db, vault: vault, admin: admin}
}

// RotateResult tells the workflow whether the loop should continue and who
// to notify.
type RotateResult struct {
	Stopped    bool   `json:"stopped"`
	OwnerID    string `json:"owner_id"`
	OwnerEmail string `json:"owner_email"`
	Title      string `json:"title"`
}

// RotatePassword re-reads the project, generates a fresh credential, applies
// it to the engine role, then seals and stores it. A failed ALTER leaves the
// stored envelope untouched.
func (a *Rotator) RotatePassword(ctx context.Context, projectID string) (*RotateResult, error) {
	var p model.Project
	err := a.db.QueryRow(ctx,
		"SELECT id, owner_id, owner_email, title, db_role, status FROM projects WHERE id = $1", projectID,
	).Scan(&p.ID, &p.OwnerID, &p.OwnerEmail, &p.Title, &p.DBRole, &p.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return &RotateResult{Stopped: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project for rotation: %w", err)
	}
	if p.Status == model.StatusDeleted {
		return &RotateResult{Stopped: true}, nil
	}

	password, err := provisioner.GeneratePassword()
	if err != nil {
		return nil, err
	}
	if err := a.admin.AlterRolePassword(ctx, p.DBRole, password); err != nil {
		return nil, err
	}

	envelope, err := a.vault.Encrypt(password)
	if err != nil {
		return nil, fmt.Errorf("seal rotated credential: %w", err)
	}
	_, err = a.db.Exec(ctx,
		"UPDATE projects SET encrypted_password = $1, updated_at = now() WHERE id = $2",
		envelope, projectID)
	if err != nil {
		return nil, fmt.Errorf("store rotated credential: %w", err)
	}

	return &RotateResult{OwnerID: p.OwnerID, OwnerEmail: p.OwnerEmail, Title: p.Title}, nil
}

package model

import "time"

// AccessRule is a declarative allow-list entry for network access to one
// tenant database. IsActive flips to true only after the rule has been
// written into the engine's host-based authentication file and the
// configuration has been reloaded.
type AccessRule struct {
	ID        string    `json:"id" db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	DBName    string    `json:"db_name" db:"db_name"`
	Role      string    `json:"role" db:"role"`
	CIDR      string    `json:"cidr" db:"cidr"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

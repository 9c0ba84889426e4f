package model

import "time"

// Project is the registry row for one tenant project. Each project owns one
// PostgreSQL role and one or more databases owned by that role.
type Project struct {
	ID                string    `json:"id" db:"id"`
	OwnerID           string    `json:"owner_id" db:"owner_id"`
	OwnerEmail        string    `json:"owner_email,omitempty" db:"owner_email"`
	Title             string    `json:"title" db:"title"`
	Description       string    `json:"description" db:"description"`
	DBRole            string    `json:"db_role" db:"db_role"`
	DBName            string    `json:"db_name" db:"db_name"`
	DBHost            string    `json:"db_host" db:"db_host"`
	DBPort            int       `json:"db_port" db:"db_port"`
	EncryptedPassword string    `json:"-" db:"encrypted_password"`
	SchemaName        *string   `json:"schema_name,omitempty" db:"schema_name"`
	InactiveDatabases []string  `json:"inactive_databases" db:"inactive_databases"`
	ActionInProgress  bool      `json:"action_in_progress" db:"action_in_progress"`
	Status            string    `json:"status" db:"status"`
	StatusMessage     *string   `json:"status_message,omitempty" db:"status_message"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// HasInactive reports whether name is currently in the project's paused set.
func (p *Project) HasInactive(name string) bool {
	for _, n := range p.InactiveDatabases {
		if n == name {
			return true
		}
	}
	return false
}

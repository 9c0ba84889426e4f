package model

import "time"

// Backup records one successful dump of a tenant database. The underlying
// storage object is immutable once created.
type Backup struct {
	ID        string    `json:"id" db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	DBName    string    `json:"db_name" db:"db_name"`
	ObjectKey string    `json:"object_key" db:"object_key"`
	SizeBytes int64     `json:"size_bytes" db:"size_bytes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

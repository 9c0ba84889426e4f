package model

// IdleStatus classifies a managed database's recent usage.
type IdleStatus string

const (
	IdleStatusNeverUsed IdleStatus = "never_used"
	IdleStatusIdle      IdleStatus = "idle"
	IdleStatusActive    IdleStatus = "active"
)

// DatabaseUsage is a snapshot of one managed database's statistics counters.
type DatabaseUsage struct {
	Name              string `json:"name"`
	SizeBytes         int64  `json:"size_bytes"`
	ActiveConnections int    `json:"active_connections"`
	TotalOperations   int64  `json:"total_operations"`
}

// IdleDatabase is one row of an idle-detection scan.
type IdleDatabase struct {
	DatabaseName string     `json:"database_name"`
	OwnerRole    string     `json:"owner_role"`
	Status       IdleStatus `json:"status"`
}

package model

// Resource status constants.
const (
	StatusProvisioning = "provisioning"
	StatusActive       = "active"
	StatusPaused       = "paused"
	StatusFailed       = "failed"
	StatusDeleting     = "deleting"
	StatusDeleted      = "deleted"
)

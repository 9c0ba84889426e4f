// Package notify delivers lifecycle event notifications to project owners
// over chat webhooks and email.
package notify

import (
	"context"
	"time"
)

// Kind identifies the lifecycle event being announced.
type Kind string

const (
	KindPasswordRotated   Kind = "password_rotated"
	KindDatabasePaused    Kind = "database_paused"
	KindDatabaseDeleted   Kind = "database_deleted"
	KindBackupCompleted   Kind = "backup_completed"
	KindIntegrationLinked Kind = "integration_linked"
)

// Channel selects a delivery transport.
type Channel string

const (
	ChannelChat Channel = "chat"
	ChannelMail Channel = "mail"
)

// Event carries everything a transport needs to render a message.
type Event struct {
	Kind       Kind      `json:"kind"`
	Channels   []Channel `json:"channels,omitempty"`
	OwnerID    string    `json:"owner_id"`
	OwnerEmail string    `json:"owner_email,omitempty"`
	ProjectID  string    `json:"project_id"`
	Project    string    `json:"project"`
	Databases  []string  `json:"databases,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier delivers one event. Delivery failures are reported but callers
// treat notifications as best-effort and never fail the triggering
// operation on them.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Noop discards events. Used when no transport is configured.
type Noop struct{}

func (Noop) Notify(context.Context, Event) error { return nil }

func (e Event) wants(ch Channel) bool {
	if len(e.Channels) == 0 {
		return true
	}
	for _, c := range e.Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// Subject renders a short human-readable summary line.
func (e Event) Subject() string {
	switch e.Kind {
	case KindPasswordRotated:
		return "Database password rotated for " + e.Project
	case KindDatabasePaused:
		return "Inactive databases paused in " + e.Project
	case KindDatabaseDeleted:
		return "Paused databases deleted from " + e.Project
	case KindBackupCompleted:
		return "Backup completed for " + e.Project
	case KindIntegrationLinked:
		return "Integration linked to " + e.Project
	default:
		return "Notification for " + e.Project
	}
}

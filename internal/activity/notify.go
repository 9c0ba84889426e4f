package activity

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nimbusdb/controlplane/internal/notify"
)

// Notifier wraps event delivery as an activity. Delivery is best-effort: a
// transport failure is logged and swallowed so lifecycle transitions never
// block on it.
type Notifier struct {
	logger   zerolog.Logger
	notifier notify.Notifier
}

func NewNotifier(logger zerolog.Logger, n notify.Notifier) *Notifier {
	return &Notifier{
		logger:   logger.With().Str("component", "notifier").Logger(),
		notifier: n,
	}
}

func (a *Notifier) SendNotification(ctx context.Context, event notify.Event) error {
	if err := a.notifier.Notify(ctx, event); err != nil {
		a.logger.Warn().Err(err).Str("kind", string(event.Kind)).Str("project", event.ProjectID).
			Msg("notification delivery failed")
	}
	return nil
}

package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// MailNotifier sends plain-text email through an unauthenticated relay on
// the internal network.
type MailNotifier struct {
	logger zerolog.Logger
	addr   string
	from   string
}

func NewMailNotifier(logger zerolog.Logger, addr, from string) *MailNotifier {
	return &MailNotifier{
		logger: logger.With().Str("component", "mail-notifier").Logger(),
		addr:   addr,
		from:   from,
	}
}

func (n *MailNotifier) Notify(_ context.Context, event Event) error {
	if !event.wants(ChannelMail) || event.OwnerEmail == "" {
		return nil
	}
	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", n.from)
	fmt.Fprintf(&body, "To: %s\r\n", event.OwnerEmail)
	fmt.Fprintf(&body, "Subject: %s\r\n\r\n", event.Subject())
	if len(event.Databases) > 0 {
		fmt.Fprintf(&body, "Databases: %s\r\n", strings.Join(event.Databases, ", "))
	}
	if event.Detail != "" {
		fmt.Fprintf(&body, "%s\r\n", event.Detail)
	}

	if err := smtp.SendMail(n.addr, nil, n.from, []string{event.OwnerEmail}, []byte(body.String())); err != nil {
		return fmt.Errorf("send mail to %s: %w", event.OwnerEmail, err)
	}
	n.logger.Debug().Str("kind", string(event.Kind)).Str("to", event.OwnerEmail).Msg("mail notification delivered")
	return nil
}

// Multi fans one event out to several transports in parallel. Every
// transport gets a delivery attempt; the first failure is reported.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event Event) error {
	var g errgroup.Group
	for _, n := range m {
		g.Go(func() error {
			return n.Notify(ctx, event)
		})
	}
	return g.Wait()
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ChatNotifier posts events as JSON to an incoming-webhook URL.
type ChatNotifier struct {
	logger     zerolog.Logger
	client     *http.Client
	webhookURL string
}

func NewChatNotifier(logger zerolog.Logger, webhookURL string) *ChatNotifier {
	return &ChatNotifier{
		logger:     logger.With().Str("component", "chat-notifier").Logger(),
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (n *ChatNotifier) Notify(ctx context.Context, event Event) error {
	if !event.wants(ChannelChat) {
		return nil
	}
	payload := map[string]any{
		"text":  event.Subject(),
		"event": event,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal chat payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	n.logger.Debug().Str("kind", string(event.Kind)).Str("project", event.ProjectID).Msg("chat notification delivered")
	return nil
}

package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/italolelis/channel_downloader/internal/downloader"
)

type Notifier interface {
	Notify(ctx context.Context, content string) error
}

type DiscordNotifier struct {
	WebhookURL string
	Client     *http.Client
}

func (d *DiscordNotifier) Notify(ctx context.Context, content string) error {
	if d.WebhookURL == "" {
		return fmt.Errorf("webhook URL is not set")
	}

	payload := map[string]string{"content": content}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook failed with status %d", resp.StatusCode)
	}

	return nil
}

// SummaryMessage renders a session summary for a chat notification.
func SummaryMessage(s *downloader.Summary) string {
	icon := "✅"
	if s.Failed > 0 || s.ScanErr != nil {
		icon = "⚠️"
	}

	msg := fmt.Sprintf("%s Channel %q (%d): %d new, %d downloaded, %d failed",
		icon, s.ChannelTitle, s.ChannelID, s.Found, s.Succeeded, s.Failed)

	if s.ScanErr != nil {
		msg += "\nscan stopped early: " + s.ScanErr.Error()
	}

	return msg
}

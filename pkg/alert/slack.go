package alert

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Slack sends notifications via Slack incoming webhook.
type Slack struct {
	client     *http.Client
	webhookURL string
}

// NewSlack creates a new Slack notifier.
func NewSlack(webhookURL string) *Slack {
	return &Slack{client: newClient(), webhookURL: webhookURL}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, n *Notification) error {
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{"type": "plain_text", "text": n.Title},
		},
		{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Grade:* %s | *Score:* %.1f | *Sites:* %d | *Reviews:* %d", n.Grade, n.Score, n.Sites, n.Reviews),
			},
		},
	}

	if len(n.Tips) > 0 {
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": "• " + strings.Join(n.Tips, "\n• ")},
		})
	}
	if n.URL != "" {
		blocks = append(blocks, map[string]any{
			"type":     "context",
			"elements": []map[string]any{{"type": "mrkdwn", "text": fmt.Sprintf("<%s|Open report>", n.URL)}},
		})
	}

	return postJSON(ctx, s.client, "slack webhook", s.webhookURL, map[string]any{"blocks": blocks}, nil)
}

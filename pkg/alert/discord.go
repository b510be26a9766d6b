package alert

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// gradeColors maps grades to embed colors.
var gradeColors = map[string]int{
	"A": 0x2ECC71,
	"B": 0x27AE60,
	"C": 0xF1C40F,
	"D": 0xE67E22,
	"F": 0xE74C3C,
}

// Discord sends notifications via Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{client: newClient(), webhookURL: webhookURL}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	description := fmt.Sprintf("**Grade:** %s | **Score:** %.1f\n%s", n.Grade, n.Score, n.Body)
	if len(n.Tips) > 0 {
		description += "\n\n• " + strings.Join(n.Tips, "\n• ")
	}

	embed := map[string]any{
		"title":       n.Title,
		"description": description,
		"color":       gradeColors[n.Grade],
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
	if n.URL != "" {
		embed["url"] = n.URL
	}

	payload := map[string]any{"embeds": []map[string]any{embed}}
	return postJSON(ctx, d.client, "discord webhook", d.webhookURL, payload, nil)
}

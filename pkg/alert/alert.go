package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/elonfeng/presence/pkg/presence"
)

// maxTips bounds how many recommendations a notification carries.
const maxTips = 3

// Notification is the data sent to alert destinations.
type Notification struct {
	ReportID string   `json:"report_id"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	URL      string   `json:"url,omitempty"`
	Score    float64  `json:"score"`
	Grade    string   `json:"grade"`
	Sites    int      `json:"sites"`
	Reviews  int      `json:"reviews"`
	Tips     []string `json:"tips"`
}

// FromReport summarizes a report. dashboardURL, when set, links back to the
// results page.
func FromReport(r *presence.Report, dashboardURL string) *Notification {
	n := &Notification{
		ReportID: r.ID,
		Title:    fmt.Sprintf("Presence report: %s", r.Query),
		Body:     r.Summary(),
		URL:      dashboardURL,
		Score:    r.Score.Score,
		Grade:    r.Score.Grade,
		Sites:    r.Stats.NumSites,
		Reviews:  r.ReviewCount,
	}
	for _, t := range r.Tips {
		if len(n.Tips) == maxTips {
			break
		}
		n.Tips = append(n.Tips, fmt.Sprintf("[%s] %s", t.Category, t.Message))
	}
	return n
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers. Every notifier
// is attempted; failures are joined.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

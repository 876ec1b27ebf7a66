// Package notification delivers payout alerts to operators and payees over
// Telegram and Discord. Delivery is best effort; settlement never waits on it.
package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gig-marketplace/internal/logging"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifyPayoutCompleted NotificationType = "payout_completed"
	NotifyPayoutBlocked   NotificationType = "payout_blocked"
	NotifyBatchCompleted  NotificationType = "batch_completed"
	NotifyError           NotificationType = "error"
	NotifyInfo            NotificationType = "info"
)

// Notification represents a notification message
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	WorkerID  string
	EarningID string
	Amount    float64
	Timestamp time.Time
	Extra     map[string]interface{}
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager manages multiple notification providers
type Manager struct {
	notifiers []Notifier
	enabled   bool
	logger    *logging.Logger
}

// NewManager creates a new notification manager
func NewManager(enabled bool) *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   enabled,
		logger:    logging.WithComponent("notification"),
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send sends a notification to all enabled providers
func (m *Manager) Send(notification *Notification) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(notification); err != nil {
				m.logger.Warn("Notification delivery failed", "provider", n.Name(), "error", err)
				lastErr = err
			}
		}
	}
	return lastErr
}

// NotifyPayoutCompleted tells the payee their money moved. Fire-and-forget:
// errors are logged by Send and intentionally dropped here.
func (m *Manager) NotifyPayoutCompleted(workerID, earningID string, amount float64) {
	_ = m.Send(&Notification{
		Type:      NotifyPayoutCompleted,
		Title:     "Payout sent",
		Message:   fmt.Sprintf("Your earnings payout of $%.2f is on its way.", amount),
		WorkerID:  workerID,
		EarningID: earningID,
		Amount:    amount,
		Timestamp: time.Now(),
	})
}

// NotifyPayoutBlocked tells the payee to finish payout onboarding
func (m *Manager) NotifyPayoutBlocked(workerID, earningID, reason string) {
	_ = m.Send(&Notification{
		Type:      NotifyPayoutBlocked,
		Title:     "Payout on hold",
		Message:   fmt.Sprintf("We could not send your payout: %s. Please complete your payout account setup.", reason),
		WorkerID:  workerID,
		EarningID: earningID,
		Timestamp: time.Now(),
	})
}

// SendBatchSummary sends an operator summary after a bulk run
func (m *Manager) SendBatchSummary(batchID string, total, succeeded, alreadySettled, failed int) {
	_ = m.Send(&Notification{
		Type:      NotifyBatchCompleted,
		Title:     "Payout batch finished",
		Message:   fmt.Sprintf("Batch %s: %d processed, %d paid, %d already settled, %d failed.", batchID, total, succeeded, alreadySettled, failed),
		Timestamp: time.Now(),
		Extra: map[string]interface{}{
			"batch_id": batchID,
			"failed":   failed,
		},
	})
}

// SendError sends an error notification
func (m *Manager) SendError(title, message string) error {
	return m.Send(&Notification{
		Type:      NotifyError,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramNotifier sends notifications via Telegram
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(notification *Notification) error {
	if !t.enabled {
		return nil
	}

	message := fmt.Sprintf("*%s*\n\n%s", notification.Title, notification.Message)

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// =============================================================================
// DISCORD NOTIFIER
// =============================================================================

// DiscordNotifier sends notifications via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// DiscordConfig holds Discord configuration
type DiscordConfig struct {
	WebhookURL string
	Enabled    bool
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: config.WebhookURL,
		enabled:    config.Enabled && config.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func (d *DiscordNotifier) Send(notification *Notification) error {
	if !d.enabled {
		return nil
	}

	color := 0x00FF00 // payout completed
	switch notification.Type {
	case NotifyError:
		color = 0xFF0000
	case NotifyPayoutBlocked:
		color = 0xFFA500
	}

	embed := map[string]interface{}{
		"title":       notification.Title,
		"description": notification.Message,
		"color":       color,
		"timestamp":   notification.Timestamp.Format(time.RFC3339),
	}

	if notification.WorkerID != "" {
		fields := []map[string]interface{}{
			{"name": "Worker", "value": notification.WorkerID, "inline": true},
		}
		if notification.EarningID != "" {
			fields = append(fields, map[string]interface{}{
				"name": "Earning", "value": notification.EarningID, "inline": true,
			})
		}
		if notification.Amount > 0 {
			fields = append(fields, map[string]interface{}{
				"name": "Amount", "value": fmt.Sprintf("$%.2f", notification.Amount), "inline": true,
			})
		}
		embed["fields"] = fields
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}

	return nil
}

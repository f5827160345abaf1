// Package notification delivers run alerts to external channels
// (webhooks, Telegram, the log).
package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	ID         string     `json:"id"`
	Level      AlertLevel `json:"level"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	RunID      string     `json:"run_id,omitempty"`
	TargetDate string     `json:"target_date,omitempty"`
	At         time.Time  `json:"ts"`
}

func newAlert(level AlertLevel, title, message string) Alert {
	return Alert{
		ID:      uuid.New().String()[:8],
		Level:   level,
		Title:   title,
		Message: message,
		At:      time.Now().UTC(),
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the default logger.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	level := slog.LevelInfo
	switch alert.Level {
	case AlertWarning:
		level = slog.LevelWarn
	case AlertCritical:
		level = slog.LevelError
	}
	slog.Log(ctx, level, "[notify] "+alert.Title,
		"alert_id", alert.ID,
		"message", alert.Message,
		"run_id", alert.RunID,
		"target_date", alert.TargetDate,
	)
	return nil
}

// Multi fans an alert out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Package notify sends run reports to a Telegram chat.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gdelt-stars/storage"
)

// Sender sends messages to Telegram.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Report holds the outcome of a pipeline run for notification.
type Report struct {
	Status       string
	EventCount   int
	ClusterCount int
	Duration     time.Duration
	OutputPath   string
	Err          string
}

// Notifier delivers run reports to a single chat.
type Notifier struct {
	sender Sender
	chatID int64
}

// NewNotifier wires an existing Telegram client to a chat.
func NewNotifier(sender Sender, chatID int64) *Notifier {
	return &Notifier{
		sender: sender,
		chatID: chatID,
	}
}

// Connect authenticates with the Telegram Bot API and returns a
// notifier for the given chat.
func Connect(token string, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	slog.Info("telegram notifier ready", "username", bot.Self.UserName)
	return NewNotifier(bot, chatID), nil
}

// NotifyRun sends a run report to the configured chat.
func (n *Notifier) NotifyRun(ctx context.Context, report Report) error {
	if n.chatID == 0 {
		return errors.New("no chat id configured")
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatRunMessage(report))
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// FormatRunMessage formats a run report for display in Telegram.
func FormatRunMessage(report Report) string {
	duration := report.Duration.Round(time.Second)

	switch report.Status {
	case storage.StatusCompleted:
		return fmt.Sprintf(
			"⭐ <b>Star map updated</b>\n\n"+
				"🗺️ %d events in %d clusters\n"+
				"⏱️ %s\n"+
				"📄 <code>%s</code>",
			report.EventCount, report.ClusterCount, duration,
			html.EscapeString(report.OutputPath),
		)
	case storage.StatusEmpty:
		return fmt.Sprintf(
			"🌑 <b>Star map run finished</b>\n\n"+
				"No matching events in the window.\n"+
				"⏱️ %s", duration)
	default:
		return fmt.Sprintf(
			"🚨 <b>Star map run failed</b>\n\n"+
				"<code>%s</code>\n"+
				"⏱️ %s",
			html.EscapeString(report.Err), duration)
	}
}

// Package notify wraps go-telegram-bot-api as an optional run-completion
// notifier. Grounded on the teacher's bot/ package; kept thin and optional
// since notification is a collaborator interface per the core's Non-goals,
// not a required dependency for a run to execute.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// RunNotifier announces run lifecycle events (completion, publication) to
// an external channel. The no-op implementation is the default; callers
// wire in NewTelegramNotifier only when a bot token is configured.
type RunNotifier interface {
	NotifyRunComplete(runId string, summary string)
	NotifyPublished(runId string)
}

type NoopNotifier struct{}

func (NoopNotifier) NotifyRunComplete(string, string) {}
func (NoopNotifier) NotifyPublished(string)            {}

// TelegramNotifier sends run events to a single chat, matching the
// teacher's bot/telegram.go usage of go-telegram-bot-api.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: init telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (t *TelegramNotifier) send(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		log.Warn().Err(err).Msg("notify: failed to send telegram message")
	}
}

func (t *TelegramNotifier) NotifyRunComplete(runId string, summary string) {
	t.send(fmt.Sprintf("run %s complete\n%s", runId, summary))
}

func (t *TelegramNotifier) NotifyPublished(runId string) {
	t.send(fmt.Sprintf("run %s published", runId))
}

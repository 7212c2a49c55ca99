// Package notify delivers a one-shot scan summary to a Telegram chat.
package notify

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vkulagin/stockscan/internal/model"
)

// Telegram sends scan summaries to a fixed chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// NewTelegram creates a Telegram notifier for the given bot token and chat.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("initializing telegram bot: %w", err)
	}

	return &Telegram{
		bot:    bot,
		chatID: chatID,
		logger: log.With().Str("component", "telegram_notify").Logger(),
	}, nil
}

// SendScanSummary posts the matched rows and counters of a finished scan.
func (t *Telegram) SendScanSummary(setup string, rows []model.MatchRow, submitted, failed int, elapsed time.Duration) error {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s scan finished\n", setup)
	fmt.Fprintf(&b, "Matched %d of %d symbols (%d failed) in %s\n", len(rows), submitted, failed, elapsed.Round(time.Second))

	if len(rows) == 0 {
		b.WriteString("\nNo symbols matched today.")
	} else {
		b.WriteString("\n")
		for _, row := range rows {
			fmt.Fprintf(&b, "• %s %s  close %.2f  %+.2f%%  up-run %d\n",
				row.Symbol, row.Name, row.Close, row.PctChange, row.UpRun)
		}
	}

	msg := tgbotapi.NewMessage(t.chatID, b.String())
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error().Err(err).Msg("Failed to send scan summary")
		return fmt.Errorf("sending telegram message: %w", err)
	}

	t.logger.Info().Int("matched", len(rows)).Msg("Scan summary sent")
	return nil
}

package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bettycrystal/betty-backend/models"
)

// Telegram announces freshly generated weekly picks to a channel or chat.
// A nil *Telegram is valid and does nothing, so callers can wire it
// unconditionally and let configuration decide.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// NewTelegram creates a notifier for the given bot token and chat.
// An empty token returns (nil, nil): notifications are simply off.
func NewTelegram(botToken string, chatID int64) (*Telegram, error) {
	if botToken == "" {
		return nil, nil
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("initializing telegram bot: %w", err)
	}

	return &Telegram{
		bot:    bot,
		chatID: chatID,
		logger: log.With().Str("component", "telegram_notify").Logger(),
	}, nil
}

// AnnouncePicks sends the week's predictions as a single Markdown message
func (t *Telegram) AnnouncePicks(weekKey string, preds []models.Prediction) error {
	if t == nil {
		return nil
	}

	msg := tgbotapi.NewMessage(t.chatID, formatPicks(weekKey, preds))
	msg.ParseMode = "Markdown"

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("sending telegram announcement: %w", err)
	}

	t.logger.Info().Str("week", weekKey).Int("picks", len(preds)).Msg("Weekly picks announced")
	return nil
}

func formatPicks(weekKey string, preds []models.Prediction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔮 *Betty's picks for the week of %s*\n\n", weekKey)

	for _, p := range preds {
		arrow := "📈"
		if p.Direction == models.DirectionDown {
			arrow = "📉"
		}
		fmt.Fprintf(&b, "%s *%s* (%s)\n", arrow, p.Symbol, p.Name)
		fmt.Fprintf(&b, "   %s %.1f%% → target %.4f (confidence %.0f%%)\n",
			strings.ToUpper(string(p.Direction)), p.PredictedChangePercent,
			p.PredictedTargetPrice, p.Confidence*100)
		fmt.Fprintf(&b, "   _%s_\n\n", p.Reasoning)
	}

	b.WriteString("Check back next Monday to see how she did!")
	return b.String()
}

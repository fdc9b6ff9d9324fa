// Package telegram wires the Bot API client and its long-polling loop.
package telegram

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"

	"github.com/zagip/zagip-game/internal/common/config"
	"github.com/zagip/zagip-game/internal/common/logger"
)

// Sender is the slice of the Bot API the bot feature uses.
type Sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// UpdateHandler processes one incoming update.
type UpdateHandler func(ctx context.Context, update telego.Update)

func NewBot(cfg *config.Config) (*telego.Bot, error) {
	bot, err := telego.NewBot(cfg.Telegram.BotToken, telego.WithLogger(logger.Printf{L: logger.Component("telego")}))
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return bot, nil
}

// Poll long-polls updates until ctx is cancelled. Each update is handled in its own goroutine.
func Poll(ctx context.Context, bot *telego.Bot, handle UpdateHandler) error {
	log := logger.Component("telegram")

	me, err := bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("get bot identity: %w", err)
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}
	log.Info().Str("bot", me.Username).Msg("Bot polling started")

	for update := range updates {
		go func(u telego.Update) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Int("update_id", u.UpdateID).Msg("Update handler panicked")
				}
			}()
			handle(ctx, u)
		}(update)
	}

	log.Info().Msg("Bot polling stopped")
	return nil
}

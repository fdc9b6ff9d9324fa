// Package service answers bot messages and records referrals carried by /start links.
package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/rs/zerolog"

	"github.com/zagip/zagip-game/internal/common/logger"
	"github.com/zagip/zagip-game/internal/domain"
	"github.com/zagip/zagip-game/internal/platform/telegram"
)

const (
	startCommand = "/start"

	greeting        = "Hi! This is Zagip.Game, the most fun game in the world"
	openButtonText  = "Open"
	adminButtonText = "Admin panel"
)

// ReferralTracker remembers who invited a telegram id before the user first opens the app.
type ReferralTracker interface {
	Track(ctx context.Context, newTelegramID, referrerTelegramID int64) error
}

type Options struct {
	WebAppURL      string
	AdminWebAppURL string
	IsAdmin        func(telegramID int64) bool
}

type Service struct {
	store     domain.Store
	referrals ReferralTracker
	sender    telegram.Sender
	opts      Options
	log       zerolog.Logger
}

func NewService(store domain.Store, referrals ReferralTracker, sender telegram.Sender, opts Options) *Service {
	if opts.IsAdmin == nil {
		opts.IsAdmin = func(int64) bool { return false }
	}
	return &Service{store: store, referrals: referrals, sender: sender, opts: opts, log: logger.Component("bot")}
}

// HandleUpdate replies to every text message with the WebApp keyboard.
func (s *Service) HandleUpdate(ctx context.Context, update telego.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}

	var existing *domain.User
	if msg.From != nil {
		u, err := s.userByTelegramID(ctx, msg.From.ID)
		if err != nil {
			s.log.Error().Err(err).Int64("telegram_id", msg.From.ID).Msg("Failed to look up user")
		}
		existing = u

		if payload, ok := startPayload(msg.Text); ok && existing == nil && err == nil {
			s.trackReferral(ctx, msg.From.ID, payload)
		}
	}

	admin := msg.From != nil && (s.opts.IsAdmin(msg.From.ID) || (existing != nil && existing.IsAdmin()))
	if _, err := s.sender.SendMessage(ctx, s.welcome(msg.Chat.ID, admin)); err != nil {
		s.log.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("Failed to send welcome message")
	}
}

func (s *Service) trackReferral(ctx context.Context, telegramID int64, payload string) {
	referrerID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || referrerID <= 0 {
		s.log.Warn().Str("payload", payload).Int64("telegram_id", telegramID).Msg("Invalid referrer id in start command")
		return
	}
	if referrerID == telegramID {
		return
	}
	if err := s.referrals.Track(ctx, telegramID, referrerID); err != nil {
		s.log.Error().Err(err).Int64("telegram_id", telegramID).Msg("Failed to track referral")
		return
	}
	s.log.Info().Int64("telegram_id", telegramID).Int64("referrer_telegram_id", referrerID).Msg("Pending referral recorded")
}

func (s *Service) userByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	var u *domain.User
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		var err error
		u, err = tx.UserByTelegramID(ctx, telegramID)
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

func (s *Service) welcome(chatID int64, admin bool) *telego.SendMessageParams {
	row := []telego.InlineKeyboardButton{
		tu.InlineKeyboardButton(openButtonText).WithWebApp(&telego.WebAppInfo{URL: s.opts.WebAppURL}),
	}
	if admin && s.opts.AdminWebAppURL != "" {
		row = append(row, tu.InlineKeyboardButton(adminButtonText).WithWebApp(&telego.WebAppInfo{URL: s.opts.AdminWebAppURL}))
	}
	return tu.Message(tu.ID(chatID), greeting).WithReplyMarkup(tu.InlineKeyboard(row))
}

// startPayload extracts the argument of "/start <payload>" (also "/start@bot <payload>").
func startPayload(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return "", false
	}
	cmd := fields[0]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	if cmd != startCommand {
		return "", false
	}
	return fields[1], true
}

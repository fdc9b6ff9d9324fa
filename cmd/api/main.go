package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mymmrac/telego"

	"github.com/zagip/zagip-game/internal/app"
	"github.com/zagip/zagip-game/internal/common/config"
	"github.com/zagip/zagip-game/internal/common/logger"
	"github.com/zagip/zagip-game/internal/platform/telegram"
	"github.com/zagip/zagip-game/internal/workers"
)

// @title           Zagip Game API
// @version         1.0
// @description     Backend of the Zagip Telegram mini-game: balances, NFT shop, auctions, codes, tasks and referrals.

// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Session token issued by POST /auth/telegram, sent as "Bearer <token>"

// @tag.name auth
// @tag.description Telegram init data verification and sessions

// @tag.name users
// @tag.description Profile and activity stats

// @tag.name marketplace
// @tag.description Shop, transfers and player auctions

// @tag.name rewards
// @tag.description Promo codes and tasks

// @tag.name admin
// @tag.description Code, task, NFT and balance administration

func main() {
	cfg := config.MustLoad()

	logger.Init("zagip-game", cfg.Debug)
	logger.Info().Bool("debug", cfg.Debug).Msg("Starting Zagip game backend")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, closeInfra, err := app.OpenInfra(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open infrastructure")
	}
	defer closeInfra()

	bot, err := newBot(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Telegram bot")
	}
	if bot != nil {
		infra.Sender = bot
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	a := app.New(cfg, infra)

	scheduler := workers.NewScheduler(ctx)
	if err := a.Schedule(scheduler); err != nil {
		logger.Fatal().Err(err).Msg("Failed to schedule jobs")
	}
	scheduler.Start()
	defer scheduler.Stop()

	if bot != nil && a.Bot != nil {
		go func() {
			if err := telegram.Poll(ctx, bot, a.Bot.HandleUpdate); err != nil {
				logger.Error().Err(err).Msg("Bot polling failed")
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

func newBot(cfg *config.Config) (*telego.Bot, error) {
	if !cfg.Telegram.PollingEnabled {
		logger.Info().Msg("Bot polling disabled")
		return nil, nil
	}
	return telegram.NewBot(cfg)
}

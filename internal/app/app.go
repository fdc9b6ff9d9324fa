// Package app assembles services, handlers and background jobs from configured infrastructure.
package app

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/zagip/zagip-game/internal/common/cache"
	"github.com/zagip/zagip-game/internal/common/config"
	"github.com/zagip/zagip-game/internal/domain"
	adminhttp "github.com/zagip/zagip-game/internal/features/admin/delivery/http"
	adminservice "github.com/zagip/zagip-game/internal/features/admin/service"
	authhttp "github.com/zagip/zagip-game/internal/features/auth/delivery/http"
	"github.com/zagip/zagip-game/internal/features/auth/session"
	"github.com/zagip/zagip-game/internal/features/auth/verifier"
	botservice "github.com/zagip/zagip-game/internal/features/bot/service"
	identity "github.com/zagip/zagip-game/internal/features/identity/service"
	marketplacehttp "github.com/zagip/zagip-game/internal/features/marketplace/delivery/http"
	marketplace "github.com/zagip/zagip-game/internal/features/marketplace/service"
	redemptionhttp "github.com/zagip/zagip-game/internal/features/redemption/delivery/http"
	redemption "github.com/zagip/zagip-game/internal/features/redemption/service"
	referralhttp "github.com/zagip/zagip-game/internal/features/referral/delivery/http"
	referral "github.com/zagip/zagip-game/internal/features/referral/service"
	userhttp "github.com/zagip/zagip-game/internal/features/user/delivery/http"
	userservice "github.com/zagip/zagip-game/internal/features/user/service"
	apphttp "github.com/zagip/zagip-game/internal/http"
	"github.com/zagip/zagip-game/internal/platform/objectstore"
	"github.com/zagip/zagip-game/internal/platform/telegram"
	"github.com/zagip/zagip-game/internal/workers"
)

// Infra is the set of external dependencies the application runs on.
type Infra struct {
	Store   domain.Store
	KV      cache.KV
	Artwork objectstore.Store
	// Uploads is set when artwork is kept in process and must be served by the API.
	Uploads *objectstore.Memory
	// Sender is nil when the bot is disabled.
	Sender telegram.Sender
	// Jobs are extra periodic jobs contributed by the infrastructure, keyed by name.
	Jobs []ScheduledJob
}

type ScheduledJob struct {
	Name string
	Spec string
	Run  workers.Job
}

type App struct {
	Router *gin.Engine
	// Bot is nil when Infra.Sender is nil.
	Bot  *botservice.Service
	Jobs []ScheduledJob
}

func New(cfg *config.Config, infra Infra) *App {
	sessions := session.NewStore(infra.KV, cfg.Session.TTL)
	pending := referral.NewPending(infra.KV, cfg.Referral.PendingTTL)

	var verifierOpts []verifier.Option
	if cfg.Telegram.InitDataTTL > 0 {
		verifierOpts = append(verifierOpts, verifier.WithMaxAge(cfg.Telegram.InitDataTTL))
	}
	v := verifier.New(cfg.Telegram.BotToken, verifierOpts...)

	resolver := identity.NewResolver(infra.Store, pending, identity.Options{
		ReferralBonus: cfg.Economy.ReferralBonus,
		IsAdmin:       cfg.IsAdmin,
	})
	market := marketplace.NewService(infra.Store, marketplace.Options{
		SellBackPercent: cfg.Economy.SellBackPercent,
		TransferFee:     cfg.Economy.TransferFee,
	})
	rewards := redemption.NewService(infra.Store)
	referrals := referral.NewService(infra.Store, cfg.Telegram.BotUsername)
	users := userservice.NewService(infra.Store, cfg.Economy.LeaderboardLimit)
	admin := adminservice.NewService(infra.Store, infra.Artwork)

	probes := map[string]apphttp.Pinger{"store": infra.Store, "kv": infra.KV}
	router := apphttp.NewRouter(cfg, apphttp.Deps{
		Sessions: sessions,
		Handlers: []apphttp.RouteRegistrar{
			authhttp.NewAuthHandler(v, resolver, sessions),
			userhttp.NewUserHandler(users),
			marketplacehttp.NewMarketplaceHandler(market),
			redemptionhttp.NewRedemptionHandler(rewards),
			referralhttp.NewReferralHandler(referrals),
			adminhttp.NewAdminHandler(admin),
		},
		Probes:  probes,
		Uploads: infra.Uploads,
	})

	a := &App{Router: router, Jobs: infra.Jobs}
	if infra.Sender != nil {
		a.Bot = botservice.NewService(infra.Store, pending, infra.Sender, botservice.Options{
			WebAppURL:      cfg.Telegram.WebAppURL,
			AdminWebAppURL: cfg.Telegram.AdminWebAppURL,
			IsAdmin:        cfg.IsAdmin,
		})
	}
	return a
}

// Schedule registers the application's periodic jobs.
func (a *App) Schedule(s *workers.Scheduler) error {
	for _, j := range a.Jobs {
		if err := s.Add(j.Name, j.Spec, j.Run); err != nil {
			return err
		}
	}
	return nil
}

// noop keeps the Job signature for jobs that cannot fail.
func noop(fn func()) workers.Job {
	return func(context.Context) error {
		fn()
		return nil
	}
}

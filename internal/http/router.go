// Package http assembles the gin engine: middleware, feature routes, probes and docs.
package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/zagip/zagip-game/internal/common/config"
	"github.com/zagip/zagip-game/internal/common/middleware"
	_ "github.com/zagip/zagip-game/internal/docs"
	"github.com/zagip/zagip-game/internal/features/auth/session"
	"github.com/zagip/zagip-game/internal/platform/objectstore"
)

const serviceName = "zagip-game"

// RouteRegistrar is implemented by every feature handler.
type RouteRegistrar interface {
	RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Sessions *session.Store
	Handlers []RouteRegistrar
	// Probes are checked by /ready, keyed by dependency name.
	Probes map[string]Pinger
	// Uploads serves artwork when the in-process artwork driver is used.
	Uploads *objectstore.Memory
}

func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.Origin, ",")
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	api := router.Group("/api")
	auth := middleware.RequireSession(deps.Sessions)
	for _, h := range deps.Handlers {
		h.RegisterRoutes(api, auth)
	}
	if deps.Uploads != nil {
		api.GET("/uploads/*key", serveUpload(deps.Uploads))
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	registerProbes(router, deps.Probes)
	return router
}

func serveUpload(store *objectstore.Memory) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, contentType, err := store.Get(strings.TrimPrefix(c.Param("key"), "/"))
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.Header("Cache-Control", "public, max-age=86400")
		c.Data(http.StatusOK, contentType, body)
	}
}

func registerProbes(router *gin.Engine, probes map[string]Pinger) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		for name, p := range probes {
			if err := p.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unready",
					"error":   name + " unavailable",
					"details": err.Error(),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})
}

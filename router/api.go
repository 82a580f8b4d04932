// Package router registers every HTTP endpoint the gateway exposes, grouped
// the way the teacher's router package groups its own API surface.
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relaygate/core/apikey"
	"github.com/relaygate/core/controller"
	"github.com/relaygate/core/middleware"
)

// Handlers bundles every controller the router wires up, so main only
// constructs this once and hands it straight to SetAPIRouter.
type Handlers struct {
	Relay       *controller.Relay
	Credentials *controller.Credentials
	Tools       *controller.Tools
	APIKeys     apikey.Store
}

// SetAPIRouter registers the full client-facing and operator-facing surface
// on engine, mirroring the teacher's SetApiRouter grouped-registration shape.
func SetAPIRouter(engine *gin.Engine, h *Handlers) {
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", "X-Api-Key", "Anthropic-Version")
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsCfg.MaxAge = 12 * time.Hour
	engine.Use(cors.New(corsCfg))

	engine.GET("/healthz", healthz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	relayRoute := engine.Group("/")
	relayRoute.Use(middleware.Auth(h.APIKeys), middleware.RequestLogging(), gzip.Gzip(gzip.DefaultCompression))
	{
		relayRoute.POST("/v1/chat/completions", h.Relay.Handle)
		relayRoute.POST("/v1/messages", h.Relay.Handle)
		// gin's :model captures the whole path segment regardless of the
		// literal colon in Gemini's "{model}:generateContent" action verb,
		// so RouteForPath still sees the full, untouched request path.
		relayRoute.POST("/v1beta/models/:model", h.Relay.Handle)

		relayRoute.POST("/w/v1/chat/completions", h.Relay.Handle)
		relayRoute.POST("/w/v1/messages", h.Relay.Handle)
		relayRoute.POST("/w/v1/messages/proto", h.Relay.Handle)
		relayRoute.POST("/w/v1/tools/execute", h.Tools.Execute)
	}

	credRoute := engine.Group("/api/:vendor/credentials")
	{
		credRoute.GET("", h.Credentials.List)
		credRoute.POST("", h.Credentials.Create)
		credRoute.POST("/batch-import", h.Credentials.BatchImport)
		credRoute.GET("/errors", h.Credentials.ListErrors)
		credRoute.POST("/errors/:id/restore", h.Credentials.RestoreError)
		credRoute.PUT("/:id", h.Credentials.Update)
		credRoute.DELETE("/:id", h.Credentials.Delete)
		credRoute.POST("/:id/refresh", h.Credentials.Refresh)
		credRoute.POST("/:id/test", h.Credentials.Test)
		credRoute.GET("/:id/usage", h.Credentials.Usage)
	}
}

func healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

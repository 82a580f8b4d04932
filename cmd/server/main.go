// Package main is the gateway's HTTP server entry point: it wires together
// every package's production implementation and starts serving.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/relaygate/core/adaptor"
	"github.com/relaygate/core/adaptor/anthropic"
	"github.com/relaygate/core/adaptor/vertex"
	"github.com/relaygate/core/adaptor/warp"
	"github.com/relaygate/core/apikey"
	"github.com/relaygate/core/apilog"
	"github.com/relaygate/core/common/client"
	"github.com/relaygate/core/common/metrics"
	"github.com/relaygate/core/controller"
	"github.com/relaygate/core/credential"
	"github.com/relaygate/core/gatewayrouter"
	"github.com/relaygate/core/internal/config"
	"github.com/relaygate/core/internal/logging"
	"github.com/relaygate/core/quota"
	"github.com/relaygate/core/router"
	"github.com/relaygate/core/selector"
	"github.com/relaygate/core/token"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logging.SysError("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if err := config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "load config: %+v\n", err)
		return err
	}
	logging.Init(config.Debug)
	client.Init()

	if config.EnablePrometheusMetrics {
		metrics.GlobalRecorder = metrics.NewPrometheusRecorder()
	}

	db, err := gorm.Open(sqlite.Open(config.DatabaseDSN), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	credStore, err := credential.NewGormStore(db)
	if err != nil {
		return fmt.Errorf("init credential store: %w", err)
	}
	apiKeyStore, err := apikey.NewGormStore(db)
	if err != nil {
		return fmt.Errorf("init api key store: %w", err)
	}
	logStore, err := apilog.NewGormStore(db)
	if err != nil {
		return fmt.Errorf("init api log store: %w", err)
	}

	tokenRefresher := token.New(credStore, client.HTTPClient)
	tokenRefresher.RegisterVendor(credential.VendorAnthropic, &token.AnthropicOAuthRefresher{HTTPClient: client.ImpatientHTTPClient})
	tokenRefresher.RegisterVendor(credential.VendorVertex, &token.VertexJWTRefresher{
		HTTPClient: client.HTTPClient,
		KeyLookup: func(c *credential.Credential) (string, error) {
			return c.ClientSecret, nil
		},
	})
	tokenRefresher.RegisterVendor(credential.VendorWarp, &token.WarpFirebaseRefresher{HTTPClient: client.HTTPClient})

	var excluded selector.ExcludedSet
	if config.RedisAddr != "" {
		excluded = selector.NewRedisExcludedSet(config.RedisAddr)
	} else {
		excluded = selector.NewMemExcludedSet()
	}
	sel := selector.New(credStore, tokenRefresher, excluded)
	for _, vendor := range []credential.Vendor{credential.VendorAnthropic, credential.VendorVertex, credential.VendorWarp} {
		sel.StartExcludedSetResetLoop(ctx, vendor)
	}

	quotaRefresher := quota.New(credStore, metrics.GlobalRecorder)
	quotaRefresher.RegisterVendor(credential.VendorAnthropic, &quota.AnthropicProbe{HTTPClient: client.ImpatientHTTPClient})
	quotaRefresher.RegisterVendor(credential.VendorVertex, &quota.VertexProbe{Refresher: tokenRefresher})
	quotaRefresher.RegisterVendor(credential.VendorWarp, &quota.WarpProbe{Refresher: tokenRefresher})
	go quotaRefresher.Run(ctx)

	adaptors := map[gatewayrouter.Vendor]adaptor.Adaptor{
		gatewayrouter.VendorAnthropic: &anthropic.Adaptor{Refresher: tokenRefresher},
		gatewayrouter.VendorVertex:    &vertex.Adaptor{Refresher: tokenRefresher},
		gatewayrouter.VendorWarp:      &warp.Adaptor{Refresher: tokenRefresher},
	}

	handlers := &router.Handlers{
		Relay: &controller.Relay{
			Selector: sel,
			Adaptors: adaptors,
			Logs:     logStore,
		},
		Credentials: &controller.Credentials{
			Store:     credStore,
			Refresher: tokenRefresher,
			Quota:     quotaRefresher,
		},
		// No ToolExecutor is registered by default: the command executor
		// behind /w/v1/tools/execute is an untrusted external tool runner
		// outside this gateway's scope (see controller/tools.go).
		Tools:   &controller.Tools{},
		APIKeys: apiKeyStore,
	}

	gin.SetMode(gin.ReleaseMode)
	if config.Debug {
		gin.SetMode(gin.DebugMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	router.SetAPIRouter(engine, handlers)

	srv := &http.Server{Addr: config.ListenAddr, Handler: engine}
	errCh := make(chan error, 1)
	go func() {
		logging.SysLog("server listening", zap.String("addr", config.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logging.SysLog("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

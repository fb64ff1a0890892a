package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/netpulse/webclient/internal/ads"
	"github.com/netpulse/webclient/internal/apiclient"
	"github.com/netpulse/webclient/internal/config"
	"github.com/netpulse/webclient/internal/handler"
	"github.com/netpulse/webclient/internal/middleware"
	"github.com/netpulse/webclient/internal/util"
)

const (
	serviceName = "adslot-server"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	shutdownTracing, err := util.InitTracing(&util.TracingConfig{
		ServiceName: serviceName,
		Enabled:     cfg.Tracing.Enabled,
		SampleRate:  cfg.Tracing.SampleRate,
		Exporter:    cfg.Tracing.Exporter,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize tracing: %v", err)
	}

	metrics := util.NewMetrics("netpulse")
	client := apiclient.NewClient(apiclient.ConfigFromAPI(cfg.API), logger, metrics)

	resolverOpts := []ads.Option{
		ads.WithTTL(cfg.Ads.TTL),
		ads.WithLogger(logger),
		ads.WithMetrics(metrics),
	}

	var store *ads.RedisStore
	if cfg.Redis.Enabled {
		store, err = ads.NewRedisStore(&ads.StoreConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Key:      cfg.Redis.Key,
		}, logger)
		if err != nil {
			// The store only shares loads between instances; run without it.
			logger.Warnw("Redis ad store unavailable", "addr", cfg.GetRedisAddress(), "error", err)
			store = nil
		} else {
			defer store.Close()
			resolverOpts = append(resolverOpts, ads.WithStore(store))
		}
	}

	resolver := ads.NewResolver(client, resolverOpts...)
	defer resolver.Close()

	if store != nil {
		stopFollowing, err := resolver.Follow(context.Background())
		if err != nil {
			logger.Warnw("Ad invalidations from peers will not be seen", "error", err)
		} else {
			defer stopFollowing()
		}
	}

	if cfg.Ads.WarmOnStart {
		resolver.Warm(context.Background(), cfg.Ads.WarmTimeout)
	}

	rendererOpts := []ads.RendererOption{ads.WithRendererLogger(logger)}
	if cfg.Ads.DisableFallbacks {
		rendererOpts = append(rendererOpts, ads.WithoutFallbacks())
	}
	renderer := ads.NewRenderer(resolver, rendererOpts...)

	router := setupRouter(cfg, logger, metrics, resolver, renderer, store)

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Infow("Starting server", "addr", srv.Addr, "api", client.BaseURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	waitForShutdown(cfg, srv, shutdownTracing, logger)
}

func setupRouter(cfg *config.Config, logger *util.Logger, metrics *util.Metrics, resolver *ads.Resolver, renderer *ads.Renderer, store *ads.RedisStore) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(logger, metrics))
	router.Use(middleware.NewLoggingMiddleware(logger).Middleware())
	router.Use(middleware.CORS(middleware.CORSConfig{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowMethods:     cfg.CORS.AllowMethods,
		AllowHeaders:     cfg.CORS.AllowHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
	}))
	if cfg.Tracing.Enabled {
		router.Use(middleware.Tracing(serviceName))
	}
	if cfg.Metrics.Enabled {
		router.Use(middleware.Metrics(metrics))
	}

	var storeHealth handler.HealthChecker
	if store != nil {
		storeHealth = store
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	handler.SetupRoutes(router,
		handler.NewHealthHandler(serviceName, resolver, storeHealth, metrics),
		handler.NewSlotHandler(renderer, resolver, logger, cfg.Ads.ArticleAdInterval),
		metrics, metricsPath)

	return router
}

func waitForShutdown(cfg *config.Config, srv *http.Server, shutdownTracing func(context.Context) error, logger *util.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Infof("Received signal: %v", sig)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	if err := shutdownTracing(ctx); err != nil {
		logger.Errorf("Tracer shutdown error: %v", err)
	}

	logger.Infof("%s service stopped", serviceName)
}

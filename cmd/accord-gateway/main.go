package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/accordlabs/accord-gateway/internal/auth"
	"github.com/accordlabs/accord-gateway/internal/flows"
	"github.com/accordlabs/accord-gateway/internal/handlers"
	"github.com/accordlabs/accord-gateway/internal/importer"
	"github.com/accordlabs/accord-gateway/internal/metrics"
	"github.com/accordlabs/accord-gateway/internal/repository"
	"github.com/accordlabs/accord-gateway/internal/rewards"
	"github.com/accordlabs/accord-gateway/internal/rooms"
	"github.com/accordlabs/accord-gateway/internal/subscription"
	"github.com/accordlabs/accord-gateway/pkg/cache"
	"github.com/accordlabs/accord-gateway/pkg/config"
	"github.com/accordlabs/accord-gateway/pkg/crypto"
	"github.com/accordlabs/accord-gateway/pkg/httpclient"
	"github.com/accordlabs/accord-gateway/pkg/logger"
	"github.com/accordlabs/accord-gateway/pkg/messaging"
	"github.com/accordlabs/accord-gateway/pkg/middleware"
	"github.com/accordlabs/accord-gateway/pkg/session"
)

// bootstrap covers the few settings needed before the config file is
// even located.
type bootstrap struct {
	ConfigPath string `envconfig:"CONFIG_PATH" default:""`
}

func main() {
	var env bootstrap
	if err := envconfig.Process("accord", &env); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read bootstrap environment: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(env.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.LogLevel, cfg.App.LogFormat)
	log.Info("Starting accord-gateway",
		logger.Field{Key: "env", Value: cfg.App.Env},
		logger.Field{Key: "backend", Value: cfg.Backend.BaseURL},
	)

	// Redis backs preview caching, UI hints and token persistence. The
	// gateway still works without it, just stateless.
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		redisCache, err = cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("Redis unavailable, running without cache",
				logger.Field{Key: "error", Value: err.Error()},
			)
			redisCache = nil
		} else {
			defer redisCache.Close()
		}
	}

	var audit *repository.AuditRepository
	if cfg.Mongo.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(cfg.Mongo.URI))
		cancel()
		if err != nil {
			log.Fatal("Failed to connect to MongoDB", logger.Field{Key: "error", Value: err.Error()})
		}
		defer client.Disconnect(context.Background())
		audit = repository.NewAuditRepository(client.Database(cfg.Mongo.DBName))
		log.Info("Audit repository enabled", logger.Field{Key: "db", Value: cfg.Mongo.DBName})
	}

	var events messaging.Publisher = messaging.NopPublisher{}
	if cfg.RabbitMQ.Enabled {
		rabbit, err := messaging.NewRabbitMQ(cfg.RabbitMQ.URL)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ", logger.Field{Key: "error", Value: err.Error()})
		}
		defer rabbit.Close()
		if err := rabbit.SetupTopology(); err != nil {
			log.Fatal("Failed to set up RabbitMQ topology", logger.Field{Key: "error", Value: err.Error()})
		}
		events = rabbit
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	flowMetrics := metrics.New(registry)

	providers, err := auth.LoadProviders(cfg.OAuth.ProviderConfigPath)
	if err != nil {
		log.Warn("Provider catalog unavailable, no OAuth buttons will render",
			logger.Field{Key: "error", Value: err.Error()},
		)
	}

	factory := newInstanceFactory(cfg, redisCache, events, flowMetrics, log)
	flowRegistry := flows.NewRegistry(
		cfg.Backend.BaseURL, factory,
		cfg.Flow.InstanceTTL, cfg.Flow.InstanceTTL/4,
		flowMetrics, log,
	)
	defer flowRegistry.Close()

	var hints *rooms.Hints
	if redisCache != nil {
		hints = rooms.NewHints(redisCache, cfg.Flow.InstanceTTL)
	}

	handler := handlers.NewHTTPHandler(flowRegistry, hints, providers, audit, log)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORS.AllowedOrigins)))
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		router.Use(limiter.Middleware())
	}

	handler.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", logger.Field{Key: "addr", Value: server.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", logger.Field{Key: "error", Value: err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Graceful shutdown failed", logger.Field{Key: "error", Value: err.Error()})
	}
	log.Info("Stopped")
}

// newInstanceFactory wires one flow bundle per client instance. Every
// instance gets its own token store and HTTP client; the caches and
// event publisher are shared.
func newInstanceFactory(cfg *config.Config, redisCache *cache.RedisCache, events messaging.Publisher, flowMetrics *metrics.FlowMetrics, log logger.Logger) flows.Factory {
	qrCfg := auth.QRFlowConfig{
		PollInterval: cfg.Flow.QRPollInterval,
		Countdown:    cfg.Flow.QRCountdown,
	}
	importCfg := importer.Config{
		ContactPageSize:      cfg.Flow.ContactPageSize,
		PreviewLimit:         cfg.Flow.PreviewLimit,
		PreviewTTL:           cfg.Flow.PreviewTTL,
		DownloadPollInterval: cfg.Flow.DownloadPollInterval,
	}
	stripeCfg := subscription.Config{PublishableKey: cfg.Stripe.PublishableKey}

	var previews importer.PreviewCache
	if redisCache != nil {
		previews = redisCache
	}

	// Encrypted token persistence lets a resumed instance pick its
	// session back up after a gateway restart.
	var encryptor *crypto.Encryptor
	if redisCache != nil && cfg.Session.EncryptionPassphrase != "" {
		var err error
		encryptor, err = crypto.NewEncryptorFromPassphrase(cfg.Session.EncryptionPassphrase, "accord-gateway")
		if err != nil {
			log.Fatal("Failed to derive session encryption key", logger.Field{Key: "error", Value: err.Error()})
		}
	}

	return func(id string, store *session.Store, api *httpclient.Client) *flows.Instance {
		api.SetTimeout(cfg.Backend.RequestTimeout)

		if encryptor != nil {
			persist := session.NewPersistence(redisCache, encryptor, "session:"+id, cfg.Session.PersistTTL)
			if err := persist.Restore(context.Background(), store); err != nil {
				log.Warn("Could not restore persisted session",
					logger.Field{Key: "instance_id", Value: id},
					logger.Field{Key: "error", Value: err.Error()},
				)
			}
			persist.Attach(store, func(err error) {
				log.Warn("Session persistence failed", logger.Field{Key: "error", Value: err.Error()})
			})
		}

		return &flows.Instance{
			ID:           id,
			Store:        store,
			API:          api,
			QR:           auth.NewQRFlow(api, store, qrCfg, events, flowMetrics, log),
			Phone:        auth.NewPhoneFlow(api, store, events, flowMetrics, log),
			Auth:         auth.NewService(api, store, events, flowMetrics, log),
			Importer:     importer.NewService(api, previews, importCfg, events, flowMetrics, log),
			Subscription: subscription.NewService(api, stripeCfg, events, log),
			Rooms:        rooms.NewService(api, events, log),
			Rewards:      rewards.NewService(api, log),
		}
	}
}

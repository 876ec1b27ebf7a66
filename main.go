package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"gig-marketplace/config"
	"gig-marketplace/internal/api"
	"gig-marketplace/internal/auth"
	"gig-marketplace/internal/cache"
	"gig-marketplace/internal/database"
	"gig-marketplace/internal/events"
	"gig-marketplace/internal/fees"
	"gig-marketplace/internal/gateway"
	"gig-marketplace/internal/lock"
	"gig-marketplace/internal/logging"
	"gig-marketplace/internal/notification"
	"gig-marketplace/internal/payout"
	"gig-marketplace/internal/vault"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	// The settlement pipeline logs through zerolog
	zl := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Initialize event bus
	eventBus := events.NewEventBus()
	logger.Info("Event bus initialized")

	// Initialize notification manager
	notifyManager := notification.NewManager(cfg.NotificationConfig.Enabled)
	if cfg.NotificationConfig.Enabled {
		if cfg.NotificationConfig.Telegram.Enabled {
			notifyManager.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
				BotToken: cfg.NotificationConfig.Telegram.BotToken,
				ChatID:   cfg.NotificationConfig.Telegram.ChatID,
				Enabled:  cfg.NotificationConfig.Telegram.Enabled,
			}))
			logger.Info("Telegram notifications enabled")
		}

		if cfg.NotificationConfig.Discord.Enabled {
			notifyManager.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
				WebhookURL: cfg.NotificationConfig.Discord.WebhookURL,
				Enabled:    cfg.NotificationConfig.Discord.Enabled,
			}))
			logger.Info("Discord notifications enabled")
		}
	}

	// Initialize database
	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	repo := database.NewRepository(db)

	// Initialize redis-backed destination cache and batch lock. Both are
	// optional; the service runs correctly without them.
	var cacheService *cache.CacheService
	var lockClient *lock.Client
	if cfg.RedisConfig.Enabled {
		cacheService, err = cache.NewCacheService(cfg.RedisConfig)
		if err != nil {
			logger.Warn("Redis unavailable, running without cache and batch lock", "error", err)
		} else {
			lockClient = lock.New(cacheService.Client(), "")
			defer cacheService.Close()
		}
	}
	destCache := cache.NewDestinationCache(cacheService, repo)

	// Resolve payment processor credentials, Vault first, config fallback
	stripeKey := cfg.StripeConfig.SecretKey
	webhookSecret := cfg.StripeConfig.WebhookSecret
	if cfg.VaultConfig.Enabled {
		vaultClient, err := vault.NewClient(cfg.VaultConfig)
		if err != nil {
			logger.Warn("Vault client init failed, using configured credentials", "error", err)
		} else if creds, err := vaultClient.GetGatewayCredentials(ctx); err != nil {
			logger.Warn("Vault credential fetch failed, using configured credentials", "error", err)
		} else {
			stripeKey = creds.SecretKey
			webhookSecret = creds.WebhookSecret
			logger.Info("Payment processor credentials loaded from Vault")
		}
	}

	gatewayTimeout := time.Duration(cfg.PayoutConfig.GatewayTimeoutSeconds) * time.Second
	stripeService := gateway.NewStripeService(&gateway.Config{
		SecretKey:     stripeKey,
		WebhookSecret: webhookSecret,
		BaseURL:       cfg.StripeConfig.BaseURL,
		Timeout:       gatewayTimeout,
	})

	// Initialize fee policy
	feePolicy, err := fees.NewPolicy(cfg.PayoutConfig.FeeRate)
	if err != nil {
		log.Fatalf("Invalid fee rate: %v", err)
	}
	logger.Info("Fee policy initialized", "rate", feePolicy.Rate())

	// Settlement pipeline
	engine := payout.NewEngine(repo, destCache, stripeService, notifyManager, eventBus, gatewayTimeout, zl)
	coordinator := payout.NewCoordinator(repo, engine, eventBus, cfg.PayoutConfig.WorkerCount, zl)

	var scheduler *payout.Scheduler
	if cfg.PayoutConfig.SchedulerEnabled {
		scheduler = payout.NewScheduler(coordinator, lockClient, &payout.SchedulerConfig{
			Interval: time.Duration(cfg.PayoutConfig.IntervalMinutes) * time.Minute,
			LockTTL:  time.Duration(cfg.PayoutConfig.LockTTLMinutes) * time.Minute,
		}, zl)
	}

	// Persist every bus event as an audit row
	auditWriter := events.NewAuditWriter(repo)
	eventBus.SubscribeAll(auditWriter.Handle)

	// JWT validation, tokens are minted by the main marketplace app
	var jwtManager *auth.JWTManager
	if cfg.AuthConfig.Enabled {
		jwtManager = auth.NewJWTManager(cfg.AuthConfig.JWTSecret, cfg.AuthConfig.Issuer, cfg.AuthConfig.AccessTokenDuration)
		logger.Info("JWT authentication enabled", "issuer", cfg.AuthConfig.Issuer)
	} else {
		logger.Warn("Authentication disabled, all endpoints are open")
	}

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: cfg.ServerConfig.ProductionMode,
	}, repo, eventBus, feePolicy, engine, coordinator, scheduler, stripeService, destCache, jwtManager)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start web server: %v", err)
		}
	}()

	if scheduler != nil {
		if err := scheduler.Start(); err != nil {
			log.Fatalf("Failed to start payout scheduler: %v", err)
		}
		logger.Info("Payout scheduler started", "interval_minutes", cfg.PayoutConfig.IntervalMinutes)
	}

	logger.Info("Settlement service started", "address", cfg.ServerConfig.Host, "port", cfg.ServerConfig.Port)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")

	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Shutdown complete")
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boxshop-api/internal/clock"
	"boxshop-api/internal/config"
	"boxshop-api/internal/display"
	"boxshop-api/internal/handler"
	"boxshop-api/internal/messaging"
	"boxshop-api/internal/middleware"
	"boxshop-api/internal/model"
	"boxshop-api/internal/notify"
	"boxshop-api/internal/repository"
	"boxshop-api/internal/router"
	"boxshop-api/internal/service"

	"github.com/redis/go-redis/v9"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting box shop API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)
	if cfg.App.Debug {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
		log.Println("Debug logging enabled")
	}

	// Initialize ledger repository based on config
	var ledger repository.LedgerRepository
	switch cfg.InventoryDB.Type {
	case "mongodb", "mongo":
		mongoRepo, err := repository.NewMongoDBLedgerRepository(cfg.InventoryDB.MongoURI, cfg.InventoryDB.MongoDatabase)
		if err != nil {
			log.Fatalf("Failed to initialize MongoDB: %v", err)
		}
		ledger = mongoRepo
		log.Println("MongoDB ledger repository initialized")
	case "postgres", "postgresql":
		pgRepo, err := repository.NewPostgresLedgerRepository(cfg.InventoryDB.PostgresDSN())
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL: %v", err)
		}
		ledger = pgRepo
		log.Println("PostgreSQL ledger repository initialized")
	case "mysql":
		mysqlRepo, err := repository.NewMySQLLedgerRepository(cfg.InventoryDB.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL: %v", err)
		}
		ledger = mysqlRepo
		log.Println("MySQL ledger repository initialized")
	default: // sqlite
		sqliteRepo, err := repository.NewSQLiteLedgerRepository(cfg.InventoryDB.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		ledger = sqliteRepo
		log.Println("SQLite ledger repository initialized")
	}
	defer ledger.Close()

	// Initialize Redis client (optional order stream)
	var redisClient *redis.Client
	if cfg.Cache.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("Warning: Redis connection failed: %v", err)
			redisClient.Close()
			redisClient = nil
		} else {
			log.Println("Redis client initialized")
		}
		cancel()
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Messaging channels: Discord when configured, in-memory otherwise
	var stockChannel, ordersChannel messaging.Channel
	if cfg.Discord.Enabled() {
		session, err := messaging.NewDiscordSession(cfg.Discord.Token)
		if err != nil {
			log.Fatalf("Failed to initialize Discord: %v", err)
		}
		stockChannel = messaging.NewDiscordChannel(session, cfg.Discord.StockChannelID)
		if cfg.Discord.OrdersChannelID != "" {
			ordersChannel = messaging.NewDiscordChannel(session, cfg.Discord.OrdersChannelID)
		}
		log.Println("Discord channels initialized")
	} else {
		if cfg.App.IsProduction() {
			log.Fatal("DISCORD_TOKEN and DISCORD_STOCK_CHANNEL_ID are required in production")
		}
		if cfg.App.IsDevelopment() {
			log.Println("Discord not configured, using in-memory channels")
		} else {
			log.Println("Warning: Discord not configured, using in-memory channels")
		}
		stockChannel = messaging.NewMemoryChannel()
		ordersChannel = messaging.NewMemoryChannel()
	}

	// Order log sinks
	var notifiers notify.Multi
	if ordersChannel != nil {
		notifiers = append(notifiers, notify.NewChannelNotifier(ordersChannel))
	}
	if redisClient != nil {
		notifiers = append(notifiers, notify.NewRedisNotifier(redisClient,
			notify.WithStream(cfg.Cache.OrderStreamKey),
			notify.WithMaxLen(cfg.Cache.OrderStreamLen),
		))
	}

	// Initialize services
	shop := service.NewShopService(ledger, clock.NewSystem(), service.ShopConfig{
		Categories:    model.NewCategorySet(cfg.Shop.Categories),
		Policy:        model.QuotaPolicy{Ceiling: cfg.Shop.QuotaCeiling, Window: cfg.Shop.QuotaWindow},
		MaxPerRequest: cfg.Shop.MaxPerRequest,
	},
		service.WithNotifier(notifiers),
		service.WithNotifyTimeout(cfg.Discord.DisplayTimeout),
	)

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := shop.Init(initCtx); err != nil {
		log.Fatalf("Failed to seed stock: %v", err)
	}
	initCancel()

	displaySync := display.NewSynchronizer(stockChannel, ledger, shop.RenderStock, display.Config{
		Timeout:    cfg.Discord.DisplayTimeout,
		PointerKey: repository.MetaStockMessageID,
	})
	shop.SetDisplay(displaySync)

	resync := service.NewResyncScheduler(displaySync, service.ResyncConfig{
		Interval: cfg.Discord.ResyncInterval,
	})
	resync.Start()

	// Request throttling
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()
	limiter := middleware.NewLimiterStore(cfg.Auth.RateLimitRPS, cfg.Auth.RateLimitBurst)
	limiter.StartJanitor(appCtx, 2*time.Minute)

	// Initialize handlers
	checks := []handler.ReadinessCheck{{
		Name: "ledger",
		Check: func(ctx context.Context) error {
			_, err := shop.IsOpen(ctx)
			return err
		},
	}}
	if redisClient != nil {
		checks = append(checks, handler.ReadinessCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	healthHandler := handler.New(cfg.App.Name, cfg.App.Version, checks...)
	shopHandler := handler.NewShopHandler(shop)
	adminHandler := handler.NewAdminHandler(shop, cfg.InventoryDB.Type)

	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		APIKeys: cfg.Auth.APIKeys,
	})
	if len(cfg.Auth.APIKeys) == 0 {
		log.Println("Warning: API_KEYS not set, shop endpoints are unauthenticated")
	}

	// Create router
	r := router.New(router.Config{
		Handler:        healthHandler,
		ShopHandler:    shopHandler,
		AdminHandler:   adminHandler,
		AuthMiddleware: authMiddleware,
		AdminKey:       cfg.Auth.AdminKey,
		Limiter:        limiter,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Drain background work before the ledger closes
	resync.Stop()
	displaySync.Wait()
	shop.Close()

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}

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

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/velocex/velocex/internal/bookkeeper"
	"github.com/velocex/velocex/internal/bridge"
	"github.com/velocex/velocex/internal/bus"
	"github.com/velocex/velocex/internal/config"
	"github.com/velocex/velocex/internal/database"
	"github.com/velocex/velocex/internal/depth"
	"github.com/velocex/velocex/internal/execution"
	"github.com/velocex/velocex/internal/feed"
	"github.com/velocex/velocex/internal/notify"
	"github.com/velocex/velocex/internal/orders"
	"github.com/velocex/velocex/internal/server"
	"github.com/velocex/velocex/internal/settlement"
	"github.com/velocex/velocex/internal/symbols"
	"github.com/velocex/velocex/internal/trades"
	"github.com/velocex/velocex/pkg/logger"
	"github.com/velocex/velocex/pkg/models"
)

// Assets seeded into the catalog on first start.
var defaultAssets = map[string]string{
	"BTC": "Bitcoin",
	"ETH": "Ethereum",
	"SOL": "Solana",
}

// Seed mid prices for the depth simulator.
var simulatorSeeds = map[string]int64{
	"BTC": 65000,
	"ETH": 3200,
	"SOL": 150,
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	zapLogger, err := logger.NewLogger(logLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := database.NewPostgresDB(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		zapLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}

	if err := database.Migrate(db); err != nil {
		zapLogger.Fatal("Failed to migrate schema", zap.Error(err))
	}
	counterpartyID := uuid.MustParse(cfg.Exchange.CounterpartyID)
	if err := database.SeedReferenceData(db, counterpartyID, cfg.Exchange.QuoteCurrency); err != nil {
		zapLogger.Fatal("Failed to seed reference data", zap.Error(err))
	}
	if err := database.SeedCryptocurrencies(db, defaultAssets); err != nil {
		zapLogger.Fatal("Failed to seed asset catalog", zap.Error(err))
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create services
	bookkeeperSvc, err := bookkeeper.NewService(zapLogger, db, cfg.Exchange.QuoteCurrency)
	if err != nil {
		zapLogger.Fatal("Failed to create bookkeeper service", zap.Error(err))
	}

	var eventBus bus.OrderEventBus
	switch cfg.Bus.Kind {
	case "kafka":
		eventBus = bus.NewKafkaBus(zapLogger, cfg.Bus.Brokers, cfg.Bus.Topic, cfg.Bus.GroupID)
	default:
		eventBus = bus.NewMemoryBus(zapLogger, 256)
	}
	defer eventBus.Close()

	ordersSvc, err := orders.NewService(zapLogger, db, bookkeeperSvc, eventBus)
	if err != nil {
		zapLogger.Fatal("Failed to create order service", zap.Error(err))
	}

	tradeLedger := trades.NewLedger(zapLogger, db)
	depthCache := depth.NewCache(zapLogger)
	resolver := symbols.NewResolver(symbols.NewGormCatalog(db), cfg.Feed.QuoteSuffix)
	engine := execution.NewEngine(zapLogger)
	coordinator := settlement.NewCoordinator(zapLogger, db, bookkeeperSvc, tradeLedger, ordersSvc, counterpartyID)

	// Notification path: local hub always, redis fanout when clustered.
	hub := notify.NewHub(zapLogger)
	transports := []notify.Transport{hub}
	if cfg.Redis.Enabled {
		fanout := notify.NewRedisFanout(zapLogger, cfg.Redis.Addr, cfg.Redis.Channel)
		fanout.Subscribe(rootCtx, hub)
		transports = []notify.Transport{fanout}
	}
	relay := notify.NewRelay(zapLogger, transports...)

	executionBridge := bridge.NewBridge(zapLogger, ordersSvc, resolver, depthCache, engine, coordinator, relay)
	eventBus.Subscribe(executionBridge.HandleOrderCreated)

	startFeed(rootCtx, zapLogger, cfg, db, depthCache)

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewServer(zapLogger, bookkeeperSvc, ordersSvc, tradeLedger, depthCache, hub).Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		zapLogger.Info("Starting API server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	zapLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}
}

// startFeed connects the external depth stream, or the simulator when
// configured for local development.
func startFeed(ctx context.Context, zapLogger *zap.Logger, cfg *config.Config, db *gorm.DB, cache *depth.Cache) {
	var catalog []models.Cryptocurrency
	if err := db.Find(&catalog).Error; err != nil {
		zapLogger.Fatal("Failed to load asset catalog", zap.Error(err))
	}

	if cfg.Feed.Simulate {
		seeds := make(map[string]decimal.Decimal, len(catalog))
		for _, asset := range catalog {
			mid, ok := simulatorSeeds[asset.Symbol]
			if !ok {
				mid = 100
			}
			seeds[asset.Symbol+cfg.Feed.QuoteSuffix] = decimal.NewFromInt(mid)
		}
		feed.NewSimulator(zapLogger, cache, seeds, cfg.Feed.DepthLimit, time.Second).Start(ctx)
		return
	}

	marketSymbols := make([]string, 0, len(catalog))
	for _, asset := range catalog {
		marketSymbols = append(marketSymbols, asset.Symbol+cfg.Feed.QuoteSuffix)
	}
	feed.NewAdapter(zapLogger, cache, cfg.Feed.URL, cfg.Feed.DepthLimit).Start(ctx, marketSymbols)
}

package main

import (
	"fmt"
	"net/http"
	"os"

	"ge-ledger-go/internal/config"
	"ge-ledger-go/internal/database"
	"ge-ledger-go/internal/ledger"
	"ge-ledger-go/internal/logger"
	"ge-ledger-go/internal/prices"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Connect to the database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated")

	// Wire the engine: price feed behind a TTL cache, mutation service,
	// and the report read path.
	priceClient := prices.NewClient(&cfg.Prices, log.Named("prices"))
	priceSource := prices.NewCached(priceClient, cfg.Prices.CacheTTL)
	service := ledger.NewService(db, log.Named("ledger"))
	reporter := ledger.NewReporter(db, priceSource, log.Named("reports"), cfg.Reports.TopFlips)

	apiHandler := NewAPIHandler(log.Named("api"), db, service, reporter)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting API server", zap.String("address", addr))

	if err := http.ListenAndServe(addr, apiHandler.Routes()); err != nil {
		log.Fatal("API server failed", zap.Error(err))
	}
}

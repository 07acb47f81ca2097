package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solana-trade-bot-go/internal/chain"
	"solana-trade-bot-go/internal/config"
	"solana-trade-bot-go/internal/database"
	"solana-trade-bot-go/internal/ledger"
	"solana-trade-bot-go/internal/logger"
	"solana-trade-bot-go/internal/marketdata"
	"solana-trade-bot-go/internal/settlement"
	"solana-trade-bot-go/internal/trader"

	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Initialize the Solana RPC client and probe connectivity.
	rpcClient := chain.NewRPCClient(&cfg.Solana, log)
	probeCtx, probeCancel := context.WithTimeout(context.Background(), 15*time.Second)
	if _, err := rpcClient.LatestBlockhash(probeCtx); err != nil {
		probeCancel()
		log.Fatal("Failed to connect to Solana RPC node", zap.Error(err))
	}
	probeCancel()
	log.Info("Successfully connected to Solana RPC node.")

	tradeLedger := ledger.NewLedger(db, log)
	market := marketdata.NewClient(&cfg.MarketData, log)
	settler := settlement.NewEngine(rpcClient, log, settlement.RetryPolicy{
		MaxAttempts: cfg.Settlement.MaxAttempts,
		Backoff:     time.Duration(cfg.Settlement.BackoffSeconds) * time.Second,
	})

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Initialize and run the monitor engine
	engine := trader.NewEngine(log, &cfg, tradeLedger, market, settler, &trader.TargetStrategy{})
	engine.Run(ctx)

	log.Info("Bot has been shut down.")
}

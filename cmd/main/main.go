package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-relay/src/broker"
	"market-relay/src/config"
	datasource "market-relay/src/data_source"
	"market-relay/src/data_source/yahoo"
	"market-relay/src/grpc_control"
	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/network"
	"market-relay/src/reference"
	"market-relay/src/relay"
	"market-relay/src/server"
	"market-relay/src/storage"
	"market-relay/src/utils"

	"github.com/coreos/go-systemd/v22/daemon"
)

// SmartAPI sessions expire at the end of the trading day.
const sessionMaxAge = 12 * time.Hour

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to env file with broker secrets")
	flag.Parse()

	if err := config.LoadEnv(*envPath); err != nil {
		fmt.Printf("Error loading env: %v\n", err)
		os.Exit(1)
	}

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.MConfig, cfg.Name)
	defer appLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Storage
	db, err := storage.NewDatabase(cfg.MConfig, appLogger)
	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if err := db.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}
	defer db.Close()

	// 2. Broker session
	var networkManager interfaces.INetworkManager = network.NewAsyncNetworkManager(cfg.MConfig, appLogger)

	auth := broker.NewAuthenticator(cfg.Broker, networkManager, appLogger.Named("Broker"))
	sessions := broker.NewSessionCache(auth, sessionMaxAge)
	if _, err := sessions.Session(ctx); err != nil {
		appLogger.Critical("Broker login failed: %v", err)
	}

	// 3. Reference data
	loader := reference.NewHTTPLoader(networkManager, cfg.Reference)
	refs, err := reference.Load(ctx, loader, cfg.Reference.IndexListURL)
	if err != nil {
		appLogger.Critical("Failed to load instrument reference data: %v", err)
	}
	appLogger.Info("Loaded %d instruments", refs.Len())

	// 4. Relay
	heartbeat := time.Duration(cfg.Relay.HeartbeatIntervalSeconds) * time.Second
	dialer := broker.NewStreamDialer(cfg.Broker, heartbeat, appLogger.Named("Stream"))

	registry := relay.NewRegistry(sessions, dialer, broker.Decoder{}, refs, relay.Options{
		MaxRetryAttempts: cfg.Relay.MaxRetryAttempts,
		ConnectTimeout:   time.Duration(cfg.Relay.ConnectTimeoutSeconds) * time.Second,
		InitialBackoff:   time.Second,
		MaxBackoff:       30 * time.Second,
		SubscriberBuffer: cfg.Relay.ClientBufferSize,
	}, appLogger.Named("Relay"))

	control := grpc_control.NewControlService(cfg.MConfig, appLogger.Named("ControlService"))
	registry.OnStateChange(control.Observe)

	// 5. REST collaborators
	market := broker.NewMarketClient(cfg.Broker, networkManager, sessions)
	fundamentals := yahoo.NewYahooFinanceSource(cfg.Reference.FundamentalsURL, networkManager, appLogger.Named("Yahoo"))
	importer := datasource.NewFundamentalsImporter(cfg.MConfig, db, loader, fundamentals, appLogger.Named("Importer"))
	scheduler := utils.NewMarketScheduler(appLogger)

	if !scheduler.MarketOpen() {
		appLogger.Info("NSE is closed, feeds will stream once the session opens")
	}

	srv := server.NewRelayServer(cfg.MConfig, server.Deps{
		Registry:     registry,
		Refs:         refs,
		Candles:      market,
		Quotes:       market,
		Fundamentals: fundamentals,
		Importer:     importer,
		Scheduler:    scheduler,
	}, appLogger.Named("Server"))

	// 6. Start servers
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	lis, err := control.Listen()
	if err != nil {
		appLogger.Critical("%v", err)
	}
	go func() {
		if err := control.Serve(lis); err != nil {
			appLogger.Error("gRPC server stopped: %v", err)
		}
	}()

	// 7. Config hot reload, log level only
	watcher, err := config.NewWatcher(*configPath, func(next *config.Config) {
		appLogger.SetLevel(next.LogLevel)
	}, appLogger)
	if err != nil {
		appLogger.Warning("Config hot reload disabled: %v", err)
	} else if err := watcher.Start(ctx); err != nil {
		appLogger.Warning("Config hot reload disabled: %v", err)
		watcher = nil
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		appLogger.Warning("sd_notify failed: %v", err)
	} else if ok {
		appLogger.Debug("Notified systemd readiness")
	}
	appLogger.Info("Relay ready on %s:%d", cfg.Host, cfg.Port)

	// 8. Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()

	if err := srv.Stop(shutdownCtx); err != nil {
		appLogger.Warning("HTTP shutdown: %v", err)
	}
	registry.Close()
	control.Stop()
	if watcher != nil {
		watcher.Stop()
	}
	cancel()
}

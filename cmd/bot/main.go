package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitos/edgex_trade_bot/internal/config"
	"github.com/vitos/edgex_trade_bot/internal/console"
	"github.com/vitos/edgex_trade_bot/internal/domain"
	"github.com/vitos/edgex_trade_bot/internal/infrastructure/exchange"
	"github.com/vitos/edgex_trade_bot/internal/infrastructure/logger"
	"github.com/vitos/edgex_trade_bot/internal/infrastructure/metrics"
	"github.com/vitos/edgex_trade_bot/internal/infrastructure/storage"
	"github.com/vitos/edgex_trade_bot/internal/usecase"
	"github.com/vitos/edgex_trade_bot/internal/web"
	"go.uber.org/zap"
)

type exchangeClient interface {
	domain.Exchange
	domain.CandleSource
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	envFile := flag.String("env", ".env", "optional .env file with EDGEX_* credentials")
	flag.Parse()

	// 1. Load Config
	if err := config.LoadEnv(*envFile); err != nil {
		fmt.Printf("Failed to load env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log := logger.NewFileLogger(cfg.Logging.Level, logger.FileConfig{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 3. Init Exchange
	var client exchangeClient
	var stream *exchange.PriceStream
	if cfg.Exchange.Simulated {
		paper := exchange.NewPaperExchange(cfg.Exchange.PaperBalance)
		for symbol, price := range cfg.Exchange.PaperPrices {
			paper.SetPrice(symbol, price)
		}
		client = paper
		log.Warn("Running against the paper exchange, no real orders will be sent")
		if cfg.Trend.Provider == "ema" {
			log.Warn("Paper candles only grow with price updates, the EMA trend signal stays FLAT until enough history exists",
				zap.Int("slow_period", cfg.Trend.SlowPeriod))
		}
	} else {
		edgex := exchange.NewEdgeXAdapter(exchange.EdgeXConfig{
			APIKey:     cfg.Exchange.APIKey,
			APISecret:  cfg.Exchange.APISecret,
			PublicURL:  cfg.Exchange.PublicURL(),
			PrivateURL: cfg.Exchange.PrivateURL(),
			Timeout:    cfg.Exchange.RequestTimeout(),
		}, log.Named("edgex"))
		if cfg.Exchange.UseStream {
			stream = exchange.NewPriceStream(cfg.Exchange.WSEndpoint, 0, log.Named("stream"))
			if err := stream.Connect(exchange.SupportedSymbols()); err != nil {
				log.Error("Price stream unavailable, using REST prices", zap.Error(err))
				stream = nil
			} else {
				edgex.AttachStream(stream)
				go stream.Maintain(ctx, exchange.SupportedSymbols(), 5*time.Second)
			}
		}
		client = edgex
	}

	// 4. Init Journal and Metrics
	var opts []usecase.Option
	var store *storage.SQLiteStore
	var journal domain.OrderJournal
	if cfg.Storage.JournalPath != "" {
		store, err = storage.NewSQLiteStore(cfg.Storage.JournalPath)
		if err != nil {
			log.Fatal("Failed to init sqlite", zap.Error(err))
		}
		journal = store
		opts = append(opts, usecase.WithJournal(store))
	}
	stats := metrics.NewStatsdClient(cfg.Metrics.StatsdAddress, cfg.Metrics.Prefix,
		time.Duration(cfg.Metrics.FlushMs)*time.Millisecond, log)
	if stats.Enabled() {
		opts = append(opts, usecase.WithMetrics(stats))
	}
	opts = append(opts, usecase.WithPacer(usecase.NewRateLimitPacer(cfg.Trading.OrderPacing(), cfg.Trading.OrderBurst)))

	// 5. Init Engine
	engine := usecase.NewEngine(client, trendProvider(cfg.Trend, client, log), log, usecase.EngineConfig{
		RequestTimeout:  cfg.Exchange.RequestTimeout(),
		MaxPositionSize: cfg.Trading.MaxPositionSize,
		DefaultLeverage: cfg.Trading.DefaultLeverage,
	}, opts...)

	monitor := usecase.NewPositionMonitor(engine, log.Named("monitor"), usecase.MonitorConfig{
		Interval:             cfg.Trading.MonitorInterval(),
		EmergencyStopLossPct: cfg.Trading.EmergencyStopLossPct,
	})
	monitor.Start(ctx)

	log.Info("EdgeX trade bot started",
		zap.Bool("simulated", cfg.Exchange.Simulated),
		zap.Float64("max_position_size", cfg.Trading.MaxPositionSize),
		zap.Float64("emergency_stop_loss_pct", cfg.Trading.EmergencyStopLossPct),
		zap.Duration("monitor_interval", cfg.Trading.MonitorInterval()))

	var srv *web.Server
	if cfg.Server.Port > 0 {
		srv = web.NewServer(cfg.Server.Port, engine, journal, log.Named("web"))
		go func() {
			if err := srv.Start(); err != nil {
				log.Error("Status server failed", zap.Error(err))
			}
		}()
	}

	// 6. Command loop until exit, EOF or signal
	cli := console.New(engine, os.Stdout, log.Named("console"))
	if err := cli.Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
		log.Error("Console stopped", zap.Error(err))
	}

	// 7. Shutdown
	log.Info("Shutting down...")
	if srv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Status server shutdown failed", zap.Error(err))
		}
		cancelShutdown()
	}
	monitor.Stop()
	engine.Stop()
	cancel()
	if stream != nil {
		_ = stream.Close()
	}
	if store != nil {
		_ = store.Close()
	}
	_ = stats.Close()
}

func trendProvider(cfg config.TrendConfig, candles domain.CandleSource, log *zap.Logger) domain.TrendSignalProvider {
	if cfg.Provider == "random" {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		log.Warn("Trend strategy uses the random placeholder signal")
		return usecase.NewCoinFlipProvider(seed)
	}
	return usecase.NewEMACrossoverProvider(candles, cfg.Interval, cfg.FastPeriod, cfg.SlowPeriod, cfg.Candles)
}

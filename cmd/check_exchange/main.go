package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vitos/edgex_trade_bot/internal/config"
	"github.com/vitos/edgex_trade_bot/internal/infrastructure/exchange"
	"github.com/vitos/edgex_trade_bot/internal/infrastructure/logger"
)

// check_exchange performs read-only calls against EdgeX to verify endpoints
// and credentials. It never places orders.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	symbol := flag.String("symbol", "BTC", "symbol to query")
	flag.Parse()

	// 1. Load Config
	if err := config.LoadEnv(".env"); err != nil {
		fmt.Printf("Failed to load env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Testing EdgeX Interaction...\n")
	fmt.Printf("Public:  %s\n", cfg.Exchange.PublicURL())
	fmt.Printf("Private: %s\n", cfg.Exchange.PrivateURL())
	if len(cfg.Exchange.APIKey) >= 4 {
		fmt.Printf("API Key: %s...\n", cfg.Exchange.APIKey[:4])
	}

	log, err := logger.NewLogger(cfg.Logging.Level, true)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	adapter := exchange.NewEdgeXAdapter(exchange.EdgeXConfig{
		APIKey:     cfg.Exchange.APIKey,
		APISecret:  cfg.Exchange.APISecret,
		PublicURL:  cfg.Exchange.PublicURL(),
		PrivateURL: cfg.Exchange.PrivateURL(),
		Timeout:    cfg.Exchange.RequestTimeout(),
	}, log)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 2. Check Public Endpoint (Price)
	price, err := adapter.GetCurrentPrice(ctx, *symbol)
	if err != nil {
		fmt.Printf("❌ Failed to get price: %v\n", err)
	} else {
		fmt.Printf("✅ Current Price (%s): %f\n", *symbol, price)
	}

	candles, err := adapter.GetCandles(ctx, *symbol, cfg.Trend.Interval, 5)
	if err != nil {
		fmt.Printf("❌ Failed to get candles: %v\n", err)
	} else {
		fmt.Printf("✅ Candles (%s %s): %d\n", *symbol, cfg.Trend.Interval, len(candles))
	}

	if cfg.Exchange.APIKey == "" {
		fmt.Println("Skipping private endpoints: no credentials")
		return
	}

	// 3. Check Private Endpoints
	acct, err := adapter.GetAccountInfo(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to get account: %v\n", err)
	} else {
		fmt.Printf("✅ Account: total=%f available=%f margin=%f\n", acct.TotalBalance, acct.AvailableBalance, acct.MarginBalance)
	}

	pos, err := adapter.GetPosition(ctx, *symbol)
	switch {
	case err != nil:
		fmt.Printf("❌ Failed to get position: %v\n", err)
	case !pos.IsOpen():
		fmt.Printf("✅ Position (%s): flat\n", *symbol)
	default:
		fmt.Printf("✅ Position (%s): Size=%f, Entry=%f, PnL=%f\n", *symbol, pos.Size, pos.EntryPrice, pos.UnrealizedPnL)
	}

	orders, err := adapter.GetOpenOrders(ctx, "")
	if err != nil {
		fmt.Printf("❌ Failed to get open orders: %v\n", err)
	} else {
		fmt.Printf("✅ Open orders: %d\n", len(orders))
	}
}

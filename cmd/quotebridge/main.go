package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"quotebridge/internal/config"
	"quotebridge/internal/exchange/bybit"
	"quotebridge/internal/logging"
	"quotebridge/internal/paper"
	"quotebridge/internal/quote"
	"quotebridge/internal/retry"
	"quotebridge/internal/types"
)

func main() {
	configPath := flag.String("config", "configs/quotebridge.yaml", "path to config file")
	symbol := flag.String("symbol", "BTCUSDT", "symbol to stream and paper-trade")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logging.InitConsole(cfg.Log.Level)

	// The registry is built explicitly at startup; components receive it
	// by reference.
	registry := quote.NewRegistry()
	if vc, ok := cfg.Venues[bybit.Name]; ok {
		registry.Register(bybit.New(bybit.Config{
			WSURL:         vc.WSURL,
			APIKey:        vc.APIKey,
			APISecret:     vc.APISecret,
			PingInterval:  time.Duration(vc.PingIntervalSec) * time.Second,
			PostAuthDelay: time.Duration(vc.PostAuthDelayMs) * time.Millisecond,
		}))
	}

	adapter, err := registry.Resolve(bybit.Name)
	if err != nil {
		log.Fatal().Err(err).Msg("no venue configured")
	}

	engine := quote.NewEngine(adapter, nil, retry.Config{
		MaxRetries: cfg.Retry.MaxRetries,
		Delay:      time.Duration(cfg.Retry.DelayMs) * time.Millisecond,
	})
	defer engine.Close()

	broker := paper.NewBroker(
		paper.Latency{
			RestMin:   cfg.Paper.RestLatencyMinMs,
			RestMax:   cfg.Paper.RestLatencyMaxMs,
			StreamMin: cfg.Paper.StreamLatencyMinMs,
			StreamMax: cfg.Paper.StreamLatencyMaxMs,
		},
		paper.RateModel{Rate: decimal.NewFromFloat(cfg.Paper.CommissionRate)},
	)
	broker.SetFillListener(func(f paper.Fill) {
		log.Info().
			Str("order_id", f.OrderID).
			Str("qty", f.Quantity.String()).
			Str("price", f.Price.String()).
			Str("commission", f.Commission.String()).
			Str("cash_delta", f.CashDelta.String()).
			Stringer("status", f.Status).
			Msg("paper fill")
	})

	ticker := types.NewTicker(*symbol, bybit.Name, "USDT",
		decimal.RequireFromString("0.01"),
		decimal.RequireFromString("0.000001"),
		decimal.RequireFromString("0.000001"),
		decimal.RequireFromString("1"))

	if _, err := engine.SubscribeLevel1(ticker, broker.OnQuote); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe paper broker")
	}
	if _, err := engine.SubscribeLevel1(ticker, func(q *types.Level1Quote) {
		log.Info().
			Stringer("ticker", q.Ticker).
			Str("bid", q.Bid.Price.String()).
			Str("ask", q.Ask.Price.String()).
			Msg("top of book")
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe quote logger")
	}
	if _, err := engine.SubscribeOrderFlow(ticker, func(tr *types.Trade) {
		log.Debug().
			Stringer("ticker", tr.Ticker).
			Stringer("side", tr.Side).
			Str("price", tr.Price.String()).
			Str("size", tr.Size.String()).
			Msg("trade")
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe order flow")
	}

	log.Info().Str("symbol", *symbol).Msg("quotebridge started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")
}

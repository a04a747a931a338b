package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stocklab/internal/bus"
	"stocklab/internal/config"
	"stocklab/internal/db"
	"stocklab/internal/httpserver"
	"stocklab/internal/ledger"
	"stocklab/internal/market"
	"stocklab/internal/orders"
	"stocklab/internal/portfolio"
	"stocklab/internal/storage"

	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	openingBalance, err := decimal.NewFromString(cfg.OpeningBalance)
	if err != nil {
		log.Fatal(err)
	}
	catalog, err := market.LoadCatalog(cfg.SeedFile)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	eventBus := bus.NewBus()
	registry := market.NewRegistry(catalog)
	history := market.NewHistory()
	ledgerStore := ledger.NewStore(openingBalance)
	tradeLog := orders.NewTradeLog()

	var journal orders.Journal
	if cfg.DBDSN != "" {
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			log.Fatal(err)
		}
		defer pool.Close()
		pgJournal := storage.NewJournal(pool)
		if err := pgJournal.EnsureSchema(ctx); err != nil {
			log.Fatal(err)
		}
		if err := restore(ctx, pgJournal, ledgerStore, tradeLog); err != nil {
			log.Fatal(err)
		}
		journal = pgJournal
	} else {
		log.Printf("DB_DSN not set, running without durable journal")
	}

	executor := orders.NewExecutor(registry, ledgerStore, tradeLog, eventBus, journal, cfg.TradeTimeout)
	portfolioSvc := portfolio.NewService(ledgerStore, registry, tradeLog)

	simulator := market.NewSimulator(registry, eventBus, history)
	simulator.Start(cfg.TickInterval)
	defer simulator.Stop()
	broadcaster := market.NewBroadcaster(registry, eventBus)
	broadcaster.Start(cfg.BroadcastInterval)
	defer broadcaster.Stop()

	router := httpserver.NewRouter(httpserver.RouterDeps{
		MarketHandler:    market.NewHandler(registry, history),
		OrderHandler:     orders.NewHandler(executor),
		PortfolioHandler: portfolio.NewHandler(portfolioSvc),
		WSHandler:        httpserver.NewWSHandler(eventBus, cfg.WebSocketOrigin),
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	log.Printf("server listening on %s", cfg.HTTPAddr)
	log.Printf("health endpoint: http://localhost%s/health", cfg.HTTPAddr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

// restore reloads ledger state and recent trade history from the journal.
func restore(ctx context.Context, j *storage.Journal, lstore *ledger.Store, tradeLog *orders.TradeLog) error {
	accounts, err := j.LoadAccounts(ctx)
	if err != nil {
		return err
	}
	for _, a := range accounts {
		lstore.SeedAccount(a.UserID, a.CashBalance)
	}
	positions, err := j.LoadPositions(ctx)
	if err != nil {
		return err
	}
	for _, p := range positions {
		lstore.SeedPosition(p)
	}
	trades, err := j.LoadTrades(ctx, time.Now().UTC().AddDate(0, 0, -90))
	if err != nil {
		return err
	}
	for _, t := range trades {
		tradeLog.Append(t)
	}
	log.Printf("restored %d accounts, %d positions, %d trades", len(accounts), len(positions), len(trades))
	return nil
}

package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/SalomePA9/AgentFund-sub000/internal/broker"
	"github.com/SalomePA9/AgentFund-sub000/internal/config"
	"github.com/SalomePA9/AgentFund-sub000/internal/database"
	"github.com/SalomePA9/AgentFund-sub000/internal/database/repositories"
	"github.com/SalomePA9/AgentFund-sub000/internal/modules/execution"
	"github.com/SalomePA9/AgentFund-sub000/internal/modules/intraday"
	"github.com/SalomePA9/AgentFund-sub000/internal/modules/macro"
	"github.com/SalomePA9/AgentFund-sub000/internal/modules/strategy"
	"github.com/SalomePA9/AgentFund-sub000/internal/orchestrator"
	"github.com/SalomePA9/AgentFund-sub000/internal/scheduler"
	"github.com/SalomePA9/AgentFund-sub000/pkg/logger"
)

func main() {
	bootLog := logger.New(logger.Config{Level: "info", Pretty: true})

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})

	log.Info().Msg("starting agent fund execution core")

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	conn := db.Conn()
	agents := repositories.NewAgentRepository(conn, log)
	positions := repositories.NewPositionRepository(conn, log)
	activity := repositories.NewActivityRepository(conn, log)
	stocks := repositories.NewStockRepository(conn, log)
	overlays := repositories.NewMacroOverlayRepository(conn, log)
	users := repositories.NewUserRepository(conn, log)

	overlayCfg := macro.Config{
		Enabled: cfg.MacroOverlayEnabled, MinSignals: cfg.MacroOverlayMinSignals,
		MinScale: cfg.MacroOverlayMinScale, MaxScale: cfg.MacroOverlayMaxScale,
	}

	engine := strategy.NewEngine(agents, positions, stocks, activity, log)
	executor := execution.NewExecutor(agents, positions, activity, log)
	resolve := newBrokerResolver(users, log)

	pipeline := orchestrator.NewPipeline(agents, stocks, overlays, overlayCfg, engine, executor, resolve, log)
	monitor := intraday.NewMonitor(agents, positions, activity, log)

	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	if err := sched.AddJob(cronWithSeconds(cfg.NightlyPipelineCron), orchestrator.NewNightlyJob(pipeline, log)); err != nil {
		log.Fatal().Err(err).Msg("failed to register nightly pipeline job")
	}
	if err := sched.AddJob(cronWithSeconds(cfg.IntradayMonitorCron), intraday.NewJob(monitor, resolve, log)); err != nil {
		log.Fatal().Err(err).Msg("failed to register intraday monitor job")
	}

	log.Info().Msg("scheduler running, awaiting shutdown signal")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
}

// cronWithSeconds adapts a standard 5-field cron expression (as configured
// via the environment) to robfig/cron's 6-field, seconds-first format by
// prepending a seconds field of 0 when one isn't already present.
func cronWithSeconds(expr string) string {
	fields := 1
	for _, r := range expr {
		if r == ' ' {
			fields++
		}
	}
	if fields >= 6 {
		return expr
	}
	return "0 " + expr
}

// newBrokerResolver caches one broker connection per user, reused across
// that user's agents within a run (§5 resource policy). No concrete
// brokerage API adapter ships in this core — the external brokerage API is
// an out-of-scope collaborator specified only through the broker.Broker
// interface — so a credentialed user gets a reference InMemoryBroker seeded
// from their total capital; swapping in a real adapter means implementing
// broker.Broker and returning it here instead.
func newBrokerResolver(users *repositories.UserRepository, log zerolog.Logger) func(context.Context, int64) broker.Broker {
	var mu sync.Mutex
	cache := make(map[int64]broker.Broker)

	return func(ctx context.Context, userID int64) broker.Broker {
		mu.Lock()
		defer mu.Unlock()
		if brk, ok := cache[userID]; ok {
			return brk
		}

		user, err := users.GetUser(ctx, userID)
		if err != nil || user.BrokerAPIKey == "" {
			cache[userID] = nil
			return nil
		}

		brk := broker.NewInMemoryBroker(log, broker.Account{
			Equity: user.TotalCapital, BuyingPower: user.TotalCapital,
			Cash: user.TotalCapital, PortfolioValue: user.TotalCapital, Status: "ACTIVE",
		})
		cache[userID] = brk
		return brk
	}
}

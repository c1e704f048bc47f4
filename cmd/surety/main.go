// Command surety runs the flight-delay surety engine with a fleet of
// simulated oracle agents. It is the demonstration harness for the library;
// production embeddings construct engine.Engine directly.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Mindburn-Labs/surety/pkg/agent"
	"github.com/Mindburn-Labs/surety/pkg/config"
	"github.com/Mindburn-Labs/surety/pkg/dispatch"
	"github.com/Mindburn-Labs/surety/pkg/engine"
	"github.com/Mindburn-Labs/surety/pkg/flight"
	"github.com/Mindburn-Labs/surety/pkg/ledger"
	"github.com/Mindburn-Labs/surety/pkg/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("surety", flag.ContinueOnError)
	profilePath := fs.String("profile", "", "YAML configuration profile")
	simulate := fs.Bool("simulate", true, "drive a simulated flight through the oracle fleet")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := config.Load()
	if *profilePath != "" {
		merged, err := config.LoadProfile(cfg, *profilePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		cfg = merged
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	var opts []engine.Option
	if cfg.SQLitePath != "" {
		snaps, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			logger.Error("open snapshot store", "error", err)
			return 1
		}
		defer snaps.Close()
		opts = append(opts, engine.WithSnapshots(snaps))
	}

	eng, err := engine.New(cfg, ledger.NewMemLedger(), logger, opts...)
	if err != nil {
		logger.Error("build engine", "error", err)
		return 1
	}

	if cfg.RedisAddr != "" {
		rb := dispatch.NewRedisBroadcaster(cfg.RedisAddr, "", 0, "")
		defer rb.Close()
		eng.AttachBroadcaster(rb)
		logger.Info("redis broadcast attached", "addr", cfg.RedisAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for i := 0; i < cfg.OracleAgents; i++ {
		id := fmt.Sprintf("oracle-%d", i)
		labels, err := eng.RegisterOracle(id, cfg.RegistrationFeeMinor)
		if err != nil {
			logger.Error("register oracle", "oracle", id, "error", err)
			return 1
		}
		requests, unsub := eng.Subscribe()
		defer unsub()
		o := agent.New(id, labels, requests, eng, agent.RandomSource(int64(i)), logger)
		go func() { _ = o.Run(ctx) }()
	}
	logger.Info("oracle fleet running", "agents", cfg.OracleAgents)

	if *simulate {
		go simulateFlight(ctx, eng, cfg, logger)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return 0
}

// simulateFlight buys a policy on one flight and reopens its status request
// until the oracle fleet reaches quorum.
func simulateFlight(ctx context.Context, eng *engine.Engine, cfg *config.Config, logger *slog.Logger) {
	key := flight.Key{
		Airline:   cfg.FoundingAirline,
		Flight:    "ND1309",
		Timestamp: time.Now().Unix(),
	}
	if err := eng.BuyInsurance("insuree-1", key, cfg.PremiumCapMinor/2); err != nil {
		logger.Error("buy insurance", "error", err)
		return
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		if status, ok := eng.DecidedStatus(key); ok {
			logger.Info("flight decided",
				"flight", key.String(),
				"status", string(status),
				"insuree_balance", eng.InsureeBalance("insuree-1"))
			return
		}
		if _, err := eng.RequestFlightStatus(ctx, key.Airline, key.Flight, key.Timestamp); err != nil {
			logger.Error("request status", "error", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

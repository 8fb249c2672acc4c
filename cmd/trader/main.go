// Command trader runs the Strategy Execution Runtime: it loads
// configuration, wires the Strategy Engine, Risk Gate, matching engine,
// position tracker, and equity curve into a single Runtime, starts the
// dashboard API if enabled, and blocks until SIGINT/SIGTERM.
//
//	cmd/trader/main.go      — entry point: loads config, starts the runtime, waits for shutdown
//	cmd/trader/runtime.go   — orchestrator: wires MarketData -> StrategyEngine -> RiskGate -> MatchingEngine
//	internal/stratengine    — strategy registry and single-writer dispatch loop
//	internal/strategies     — built-in strategies, registered via init() factories
//	internal/riskgate       — signal -> order admission control and kill switch
//	internal/matching       — simulated matching engine (limit/stop/TP/trailing)
//	internal/position       — position tracker (VWAP entry, realized/unrealized P&L)
//	internal/equitycurve    — daily equity curve reconstruction and analytics
//	internal/venue          — restricted-account venue connector
//	internal/api            — REST + WebSocket dashboard façade
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"trader-core/internal/api"
	"trader-core/internal/config"
	_ "trader-core/internal/strategies"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("TRADER_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	rt, err := NewRuntime(*cfg, logger)
	if err != nil {
		logger.Error("failed to build runtime", "error", err)
		os.Exit(1)
	}

	if err := rt.StartSimulation(); err != nil {
		logger.Error("failed to start simulation", "error", err)
		os.Exit(1)
	}

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, rt, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	logger.Info("trading runtime started",
		"max_strategies", cfg.Engine.MaxStrategies,
		"max_open_positions", cfg.Risk.MaxOpenPositions,
		"max_global_exposure", cfg.Risk.MaxGlobalExposure,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}
	if err := rt.StopSimulation(); err != nil {
		logger.Error("failed to stop simulation", "error", err)
	}
	if err := rt.Shutdown(); err != nil {
		logger.Error("failed to shut down runtime", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

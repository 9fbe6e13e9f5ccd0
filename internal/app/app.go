// Package app wires configuration, logging, metrics, and the network surface
// into a runnable server process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"partyhall/server/internal/net/httpapi"
	"partyhall/server/internal/net/ws"
	"partyhall/server/internal/room"
	"partyhall/server/internal/telemetry"
	"partyhall/server/logging"
	loggingSinks "partyhall/server/logging/sinks"
)

// Run starts the server and blocks until the context ends or SIGINT/SIGTERM
// arrives, then drains rooms and shuts the listener down.
func Run(ctx context.Context) error {
	configPath := os.Getenv("PARTYHALL_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	stdLogger := telemetry.WrapLogger(log.Default())

	var named []logging.NamedSink
	if cfg.Log.Console {
		named = append(named, logging.NamedSink{Name: "console", Sink: loggingSinks.NewConsoleSink(os.Stdout)})
	}
	if cfg.Log.File.Enabled {
		named = append(named, logging.NamedSink{Name: "file", Sink: loggingSinks.NewZapFileSink(loggingSinks.ZapFileConfig{
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
		})})
	}
	if cfg.Log.JournalPath != "" {
		journal, jerr := loggingSinks.NewJSONSink(cfg.Log.JournalPath)
		if jerr != nil {
			return fmt.Errorf("open event journal %s: %w", cfg.Log.JournalPath, jerr)
		}
		named = append(named, logging.NamedSink{Name: "journal", Sink: journal})
	}
	routerCfg := logging.DefaultConfig()
	routerCfg.MinimumSeverity = parseSeverity(cfg.Log.MinSeverity)
	logRouter := logging.NewRouter(logging.SystemClock{}, routerCfg, named)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := logRouter.Close(closeCtx); cerr != nil {
			stdLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	promReg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(promReg)

	deps := room.Deps{Logs: logRouter, Metrics: metrics, Clock: logging.SystemClock{}}
	registry := room.NewRegistry(room.RegistryConfig{
		IdleTimeout:   cfg.Rooms.IdleTimeout,
		SweepInterval: cfg.Rooms.SweepInterval,
	}, deps)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go registry.RunSweeper(ctx)

	wsHandler := ws.NewHandler(registry, ws.HandlerConfig{
		Logger:  stdLogger,
		Metrics: metrics,
	})
	handler := httpapi.NewRouter(httpapi.Config{
		Registry:  registry,
		Gatherer:  promReg,
		WSHandler: wsHandler.Handle,
		StartedAt: time.Now(),
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	stdLogger.Printf("server listening on %s", cfg.ListenAddr)

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	registry.CloseAll(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func parseSeverity(name string) logging.Severity {
	switch name {
	case "debug":
		return logging.SeverityDebug
	case "warn":
		return logging.SeverityWarn
	case "error":
		return logging.SeverityError
	default:
		return logging.SeverityInfo
	}
}

// Package main implements the tracestore binary: it loads
// configuration, starts a Coordinator, and exposes a Prometheus
// /metrics endpoint. No RPC or CLI query surface is provided — per
// spec.md §6, "No file format, wire protocol, or CLI is prescribed by
// the core; these are the surrounding collaborators' concerns."
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arkilian/tracestore/internal/config"
	"github.com/arkilian/tracestore/internal/coordinator"
	"github.com/arkilian/tracestore/internal/httpx"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		metricsAddr string
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&metricsAddr, "metrics-addr", ":9100", "Address for the Prometheus /metrics endpoint")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("tracestore version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	coord, err := coordinator.New(cfg)
	if err != nil {
		log.Fatalf("failed to construct coordinator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := coord.Start(ctx); err != nil {
		log.Fatalf("failed to start coordinator: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", httpx.RequestIDMiddleware(promhttp.HandlerFor(coord.Metrics().Registry, promhttp.HandlerOpts{})))
	metricsServer := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		log.Printf("metrics server listening on %s", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	log.Printf("tracestore started: max_events=%d archiver=%s shard_count=%d",
		cfg.MaxEvents, cfg.Archiver, cfg.ShardCount)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	log.Printf("received signal: %v", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}

	if err := coord.Stop(); err != nil {
		log.Printf("coordinator stop error: %v", err)
		os.Exit(1)
	}
	log.Printf("tracestore stopped")
}

// loadConfig loads from --config when given, otherwise from
// environment variables (with .env loaded first for local
// development, per the teacher pack's config.Load idiom).
func loadConfig(configFile string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
	} else {
		_ = godotenv.Load()
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

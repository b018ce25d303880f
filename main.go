// fleetsim — simulated service fleet behind a self-healing JSON store.
// Author: vesaa | License: MIT | https://github.com/vesaa/fleetsim
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/vesaa/fleetsim/internal/config"
	"github.com/vesaa/fleetsim/internal/logger"
	"github.com/vesaa/fleetsim/internal/metrics"
	"github.com/vesaa/fleetsim/internal/server"
	"github.com/vesaa/fleetsim/internal/simulator"
	"github.com/vesaa/fleetsim/internal/store"
	"github.com/vesaa/fleetsim/internal/watch"
)

const version = "v0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "fleetsim",
		Short: "fleetsim — simulated service fleet API",
		Long: `fleetsim serves a simulated fleet of services (status, cpu, memory,
response time, errors) from a JSON document and randomizes it in the
background while clients are polling.`,
		SilenceUsage: true,
	}

	// ── serve subcommand ──────────────────────────────────────────────────────
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the on-demand simulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	serveCmd.Flags().Int("port", 0, "Listen port (overrides config / PORT)")
	serveCmd.Flags().String("store", "", "Store driver: file | sqlite | memory")

	// ── heal subcommand ───────────────────────────────────────────────────────
	healCmd := &cobra.Command{
		Use:   "heal",
		Short: "Validate the seed and repair the working document once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, closer := newLogger(cfg)
			defer closer.Close()

			st, err := store.Open(cfg.StoreOptions(), log)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer st.Close()

			repaired, err := st.EnsureHealthy(cmd.Context())
			if err != nil {
				return err
			}
			if repaired {
				fmt.Println("working document reinitialized from seed")
			} else {
				fmt.Println("working document healthy")
			}
			return nil
		},
	}
	healCmd.Flags().String("store", "", "Store driver: file | sqlite | memory")

	// ── watch subcommand ──────────────────────────────────────────────────────
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll a running fleetsim server and print the fleet",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			interval, _ := cmd.Flags().GetDuration("interval")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watch.Run(ctx, watch.Options{
				BaseURL:  addr,
				Interval: interval,
				Out:      os.Stdout,
			})
		},
	}
	watchCmd.Flags().String("addr", "http://127.0.0.1:8080", "Base URL of the fleetsim server")
	watchCmd.Flags().Duration("interval", 10*time.Second, "Poll interval")

	// ── version subcommand ────────────────────────────────────────────────────
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print fleetsim version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fleetsim %s\n", version)
		},
	}

	root.AddCommand(serveCmd, healCmd, watchCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads config and applies CLI flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if f := cmd.Flags().Lookup("port"); f != nil && f.Changed {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if f := cmd.Flags().Lookup("store"); f != nil && f.Changed {
		cfg.StoreDriver, _ = cmd.Flags().GetString("store")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, io.Closer) {
	log, closer := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	slog.SetDefault(log)
	return log, closer
}

func serve(cfg *config.Config) error {
	log, closer := newLogger(cfg)
	defer closer.Close()

	if cfg.MetricsEnabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
	}

	// An invalid seed aborts startup: there is nothing to recover from.
	st, err := store.Open(cfg.StoreOptions(), log)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()
	if _, err := st.EnsureHealthy(context.Background()); err != nil {
		return fmt.Errorf("initial self-heal: %w", err)
	}

	sim := simulator.NewLifecycle(st, simulator.NewRandomizer(simulator.DefaultPolicy, nil), simulator.Options{
		TickInterval:  cfg.TickInterval,
		IdleThreshold: cfg.IdleThreshold,
		Logger:        log,
	})
	defer sim.Stop()

	auth, err := server.NewAuthenticator(cfg.JWTSecret, cfg.AdminUser, cfg.AdminPass)
	if err != nil {
		return fmt.Errorf("initializing admin auth: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	api := server.New(server.Deps{
		Store:          st,
		Simulator:      sim,
		Auth:           auth,
		Driver:         st.Driver(),
		MetricsEnabled: cfg.MetricsEnabled,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("API listening", "addr", srv.Addr, "store", st.Driver(),
		"tick_interval", cfg.TickInterval, "idle_threshold", cfg.IdleThreshold)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-quit:
		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

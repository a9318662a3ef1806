package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ecstasoy/CipherInGo/pkg/config"
	"github.com/ecstasoy/CipherInGo/pkg/interceptor"
	"github.com/ecstasoy/CipherInGo/pkg/logging"
	"github.com/ecstasoy/CipherInGo/pkg/ratelimiter"
	"github.com/ecstasoy/CipherInGo/pkg/server"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cipherd -p port",
		Short: "Keyword cipher server",
		Long: `cipherd accepts one packet per connection, checks its checksum,
encrypts or decrypts the payload with the packet keyword and sends the
packet back.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	f := cmd.Flags()
	f.IntP("port", "p", 0, "TCP port to listen on (required unless set in the config file)")
	f.String("host", "", "Address to bind, empty for all interfaces")
	f.String("mode", config.ModeGoroutine, "Connection strategy: goroutine or multiplex")
	f.StringP("config", "c", "", "YAML configuration file")
	f.Int("pool-size", 1024, "Connection slots in multiplex mode")
	f.Int("max-connections", 0, "Concurrent connection cap in goroutine mode (0 = unlimited)")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9100")
	f.String("log-file", "", "Write logs to this file with rotation instead of stderr")
	f.String("log-level", "info", "Log level: debug, info, warn, error")

	return cmd
}

// loadConfig reads the optional config file and applies the flags the user
// set explicitly on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	f := cmd.Flags()

	cfg := config.Default()
	if path, _ := f.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if f.Changed("port") {
		cfg.Server.Port, _ = f.GetInt("port")
	}
	if f.Changed("host") {
		cfg.Server.Host, _ = f.GetString("host")
	}
	if f.Changed("mode") || cfg.Server.Mode == "" {
		cfg.Server.Mode, _ = f.GetString("mode")
	}
	if f.Changed("pool-size") {
		cfg.Server.PoolSize, _ = f.GetInt("pool-size")
	}
	if f.Changed("max-connections") {
		cfg.Server.MaxConnections, _ = f.GetInt("max-connections")
	}
	if f.Changed("metrics-addr") {
		cfg.Server.MetricsAddr, _ = f.GetString("metrics-addr")
	}
	if f.Changed("log-file") {
		cfg.Log.File, _ = f.GetString("log-file")
	}
	if f.Changed("log-level") {
		cfg.Log.Level, _ = f.GetString("log-level")
	}

	if cfg.Server.Port == 0 {
		return nil, errors.New("a port is required: pass -p or set server.port")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := interceptor.NewMetrics(reg, server.Classify)
	if err != nil {
		return err
	}

	opts := append(server.FromConfig(cfg.Server),
		server.WithLogger(logger),
		server.WithMetrics(metrics),
	)
	srv, err := server.NewServer(opts...)
	if err != nil {
		return err
	}

	if cfg.Server.Interceptors.Recovery {
		srv.Use(interceptor.Recovery())
	}
	if cfg.Server.Interceptors.Logging {
		srv.Use(interceptor.Logging(interceptor.NewSlogLogger(logger)))
	}
	if cfg.Server.RateLimit > 0 {
		limiter := ratelimiter.New(cfg.Server.RateLimit, cfg.Server.RateBurst)
		logger.Info("rate limiting enabled", slog.String("limiter", limiter.Name()))
		srv.Use(interceptor.RateLimit(limiter))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Listen(ctx); err != nil {
		return err
	}

	if cfg.Server.MetricsAddr != "" {
		metricsSrv := serveMetrics(cfg.Server.MetricsAddr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			stopMetrics(shutdownCtx, metricsSrv, logger)
		}()
	}

	err = srv.Serve(ctx)
	if stopErr := srv.Stop(); stopErr != nil {
		logger.Warn("stop server failed", slog.Any("error", stopErr))
	}
	logger.Info("server stopped")
	return err
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()

	return srv
}

func stopMetrics(ctx context.Context, srv *http.Server, logger *slog.Logger) {
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("stop metrics server failed", slog.Any("error", err))
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cipherd:", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Tyrowin/messenger/internal/logging"
	"github.com/Tyrowin/messenger/internal/metrics"
	"github.com/Tyrowin/messenger/internal/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		slog.Error("load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	hub := server.NewHub(cfg, logger, m)
	go hub.Run()

	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(hub, reg))

	logger.Info("starting messenger server",
		"addr", cfg.Port,
		"allowed_origins", cfg.AllowedOrigins,
		"max_frame", humanize.Bytes(uint64(cfg.MaxMessageSize)),
		"rate_limit", humanize.Comma(int64(cfg.RateLimit.Burst))+" per "+cfg.RateLimit.RefillInterval.String(),
		"history", humanize.Comma(int64(cfg.HistoryCapacity)),
		"replay", cfg.ReplayLimit,
		"send_buffer", cfg.SendBufferSize,
	)

	go func() {
		if err := server.StartServer(httpServer); err != nil {
			logger.Error("http server stopped", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				logger.Info("shutting down http server")
				return server.ShutdownServer(ctx, httpServer)
			},
			"hub": func(ctx context.Context) error {
				return hub.Shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	logger.Info("server exited", "code", exitCode)
	os.Exit(exitCode)
}

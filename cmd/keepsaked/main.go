// keepsaked runs the Keepsake sync core as a long-lived daemon: it opens the
// local store, watches connectivity via the heartbeat endpoint, and drains
// the operation queue against the remote API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/keepsakehq/keepsake-go/internal/engine"
	"github.com/keepsakehq/keepsake-go/internal/gateway"
	"github.com/keepsakehq/keepsake-go/internal/netmon"
	"github.com/keepsakehq/keepsake-go/internal/store"
)

type config struct {
	DataDir      string        `envconfig:"DATA_DIR" default:"/var/lib/keepsake"`
	APIBaseURL   string        `envconfig:"API_BASE_URL" required:"true"`
	APIKey       string        `envconfig:"API_KEY"`
	HeartbeatURL string        `envconfig:"HEARTBEAT_URL" required:"true"`
	MetricsAddr  string        `envconfig:"METRICS_ADDR" default:":9109"`
	HTTPTimeout  time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"`
}

func main() {
	var cfg config
	if err := envconfig.Process("keepsake", &cfg); err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DataDir, log)
	if err != nil {
		log.Fatal().Err(err).Str("data_dir", cfg.DataDir).Msg("failed to open local store")
	}
	defer func() { _ = st.Close() }()

	gw := gateway.New(cfg.APIBaseURL, cfg.APIKey,
		gateway.WithTimeout(cfg.HTTPTimeout),
		gateway.WithLogger(log),
	)

	if total, waiting, err := st.QueueStats(time.Now().Unix()); err == nil {
		log.Info().Int("queued", total).Int("deferred", waiting).Msg("operation queue loaded")
	}

	mon := netmon.NewMonitor(log)
	heartbeat := netmon.NewHeartbeatSource(cfg.HeartbeatURL, mon, log)

	eng := engine.New(st, gw, mon, engine.WithLogger(log))
	eng.Start(ctx)
	defer eng.Stop()

	go heartbeat.Run(ctx)

	metrics := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listener started")
		if err := metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics listener failed")
		}
	}()

	log.Info().Str("data_dir", cfg.DataDir).Str("api", cfg.APIBaseURL).Msg("keepsaked started")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metrics.Shutdown(shutdownCtx)
	log.Info().Msg("keepsaked stopped")
}

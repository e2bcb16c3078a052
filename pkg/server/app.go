package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"MarketLens/internal/service/ratelimit"
	"MarketLens/pkg/config"
	xhttp "MarketLens/pkg/http"
	pkgkafka "MarketLens/pkg/kafka"
	applogger "MarketLens/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	l           *applogger.Logger
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	consumer    *pkgkafka.Consumer
}

// New creates a new App. consumer may be nil when Kafka is disabled.
func New(cfg *config.Config, l *applogger.Logger, h xhttp.Handler, consumer *pkgkafka.Consumer) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, l: l, httpHandler: h, consumer: consumer}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler, a.serverOptions()...)

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.l.Info("kafka consumer started",
			applogger.String("anomalies_topic", a.cfg.Kafka.AnomaliesTopic),
			applogger.String("thresholds_topic", a.cfg.Kafka.ThresholdsTopic),
		)
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

func (a *App) serverOptions() []xhttp.ServerOption {
	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestTimeout(a.cfg.Server.RequestTimeout),
		xhttp.WithCORS(true, a.cfg.Server.CORSOrigins...),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(a.l),
	}
	if rl := a.cfg.Server.RateLimit; rl.Enabled {
		opts = append(opts, xhttp.WithMiddleware(ratelimit.New(rl.RPS, rl.Burst).Middleware()))
	}
	return opts
}

// shutdown stops intake. Stores and clients are released by the caller once
// Run returns.
func (a *App) shutdown(ctx context.Context) error {
	a.l.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}

// Package service runs the optional HTTP endpoints of a test run.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ethereum-optimism/infra/op-soltest/metrics"
	"github.com/ethereum-optimism/optimism/op-service/httputil"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum/go-ethereum/log"
)

const (
	HealthzPort = 8080

	shutdownTimeout = 5 * time.Second
)

// Config selects which servers to run. An empty healthz address disables
// the healthz server; metrics are served only when MetricsEnabled is set.
type Config struct {
	Log            log.Logger
	HealthzAddr    string
	MetricsEnabled bool
	MetricsHost    string
	MetricsPort    int
}

// ConfigFromMetrics serves metrics on host:port and healthz on the same host
// when enabled is true; otherwise both servers stay off.
func ConfigFromMetrics(logger log.Logger, enabled bool, host string, port int) Config {
	cfg := Config{Log: logger}
	if enabled {
		cfg.MetricsEnabled = true
		cfg.MetricsHost = host
		cfg.MetricsPort = port
		cfg.HealthzAddr = net.JoinHostPort(host, fmt.Sprint(HealthzPort))
	}
	return cfg
}

type Service struct {
	log     log.Logger
	config  Config
	Healthz *HealthzServer
	Metrics *httputil.HTTPServer
}

func New(cfg Config) *Service {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Service{
		log:     cfg.Log,
		config:  cfg,
		Healthz: &HealthzServer{log: cfg.Log},
	}
}

// Enabled reports whether any server is configured.
func (s *Service) Enabled() bool {
	return s.config.HealthzAddr != "" || s.config.MetricsEnabled
}

// Start binds the configured servers and serves them in the background.
func (s *Service) Start() error {
	if !s.Enabled() {
		return nil
	}
	s.log.Info("service starting")

	if addr := s.config.HealthzAddr; addr != "" {
		if err := s.Healthz.Listen(addr); err != nil {
			metrics.RecordErrorDetails("healthz_listen", err)
			return fmt.Errorf("starting healthz server: %w", err)
		}
		s.log.Info("starting healthz server", "addr", s.Healthz.Addr())
		go func() {
			if err := s.Healthz.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("error serving healthz", "err", err)
				metrics.RecordErrorDetails("healthz_serve", err)
			}
		}()
	}

	if s.config.MetricsEnabled {
		s.log.Info("Starting metrics server", "addr", s.config.MetricsHost, "port", s.config.MetricsPort)
		metricsServer, err := opmetrics.StartServer(metrics.Registry, s.config.MetricsHost, s.config.MetricsPort)
		if err != nil {
			metrics.RecordErrorDetails("metrics_listen", err)
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		s.log.Info("Started metrics server", "endpoint", metricsServer.Addr())
		s.Metrics = metricsServer
	}

	s.log.Info("service started")
	return nil
}

func (s *Service) Shutdown() {
	if !s.Enabled() {
		return
	}
	s.log.Info("service shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	_ = s.Healthz.Shutdown(ctx)
	s.log.Info("healthz stopped")

	if s.Metrics != nil {
		if err := s.Metrics.Stop(ctx); err != nil {
			s.log.Error("failed to stop metrics server", "err", err)
		}
		s.log.Info("metrics stopped")
	}

	s.log.Info("service stopped")
}

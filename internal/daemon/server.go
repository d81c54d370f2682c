package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"chatlink/internal/config"
	"chatlink/internal/metrics"
)

// MetricsServer exposes the engine's prometheus registry over HTTP. A nil
// server means metrics export is not configured.
type MetricsServer struct {
	srv      *http.Server
	listener net.Listener
	logger   *zap.Logger
}

// NewMetricsServer binds the metrics listener if an address is configured.
func NewMetricsServer(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*MetricsServer, error) {
	if cfg.MetricsAddr == "" {
		return nil, nil
	}

	listener, err := net.Listen("tcp", cfg.MetricsAddr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	return &MetricsServer{
		srv:      &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		listener: listener,
		logger:   logger,
	}, nil
}

// Start begins serving metrics requests. Blocks until stopped.
func (s *MetricsServer) Start() error {
	s.logger.Info("metrics server starting", zap.String("addr", s.listener.Addr().String()))
	err := s.srv.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop performs a graceful shutdown.
func (s *MetricsServer) Stop(ctx context.Context) {
	s.logger.Info("metrics server stopping")
	_ = s.srv.Shutdown(ctx)
}

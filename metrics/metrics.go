// Package metrics serves the Prometheus /metrics endpoint for consumers
// that want to scrape the mailconn connection counters.
package metrics

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Host        string `envconfig:"METRICS_HOST" required:"true"`
	Port        int    `envconfig:"METRICS_PORT" required:"true"`
	ReadTimeout int    `envconfig:"METRICS_READ_TIMEOUT" default:"30"`
}

// Server exposes the default Prometheus registry over HTTP.
type Server struct {
	io.Closer
	config Config
	server *http.Server
}

// InitDefault creates a Server, wires the OpenTelemetry meter provider and
// starts serving.
func InitDefault(config Config) (io.Closer, error) {
	srv := New(config)
	if err := srv.Start(); err != nil {
		return nil, errors.Wrap(err, "failed to start metrics server")
	}

	return srv, nil
}

// New creates a Server without starting it.
func New(config Config) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		config: config,
		server: &http.Server{
			Addr:        fmt.Sprintf("%s:%d", config.Host, config.Port),
			Handler:     mux,
			ReadTimeout: time.Duration(config.ReadTimeout) * time.Second,
		},
	}
}

// Start installs the otel meter provider and serves in the background.
func (s *Server) Start() error {
	if err := InitPrometheus(); err != nil {
		return errors.Wrap(err, "failed to init prometheus")
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Default().Warn("metrics server failed", "error", err.Error())
		}
	}()

	return nil
}

// Close shuts the HTTP listener down.
func (s *Server) Close() error {
	return errors.Wrap(s.server.Close(), "failed to close metrics server")
}

package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tphakala/replayclip/internal/logger"
	metricspkg "github.com/tphakala/replayclip/internal/observability/metrics"
)

// Endpoint serves the Prometheus metrics over HTTP.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
	log           logger.Logger
}

// NewEndpoint creates an endpoint listening on listenAddress.
func NewEndpoint(listenAddress string, metrics *Metrics) (*Endpoint, error) {
	if listenAddress == "" {
		return nil, fmt.Errorf("telemetry listen address is empty")
	}
	if metrics == nil {
		return nil, fmt.Errorf("metrics are required")
	}
	return &Endpoint{
		listenAddress: listenAddress,
		metrics:       metrics,
		log:           logger.Global().Module("telemetry"),
	}, nil
}

// Start binds the listener and serves until quitChan is closed. Binding
// errors are returned immediately.
func (e *Endpoint) Start(wg *sync.WaitGroup, quitChan <-chan struct{}) error {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)

	listener, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", e.listenAddress, err)
	}
	e.listenAddress = listener.Addr().String()

	e.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wg.Go(func() {
		e.log.Info("telemetry endpoint starting", logger.String("address", e.listenAddress))
		if err := e.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("telemetry HTTP server error", logger.Error(err))
		}
	})

	wg.Go(func() {
		<-quitChan
		e.gracefulShutdown()
	})
	return nil
}

// gracefulShutdown shuts the server down within the metrics shutdown timeout.
func (e *Endpoint) gracefulShutdown() {
	e.log.Info("stopping telemetry server")
	ctx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		e.log.Error("telemetry server shutdown error", logger.Error(err))
	}
}

// Address returns the bound address once Start succeeded.
func (e *Endpoint) Address() string {
	return e.listenAddress
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}

// --- File: bridgeservice/service.go ---
package bridgeservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/tinywideclouds/go-notification-bridge/bridgeservice/config"
	"github.com/tinywideclouds/go-notification-bridge/internal/trigger/httpapi"
)

const (
	invokePath  = "/v1/invoke"
	metricsPath = "/v1/metrics"

	serverShutdownTimeout = 10 * time.Second
)

// Consumer is the queue-driven trigger, normally *pubsub.Consumer.
type Consumer interface {
	Run(ctx context.Context) error
}

type Wrapper struct {
	*microservice.BaseServer
	consumer Consumer
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New assembles the service: the Pub/Sub consumer plus the HTTP invoke and
// metrics endpoints on the base server.
func New(
	cfg *config.Config,
	consumer Consumer,
	batchHandler httpapi.BatchHandler,
	gatherer prometheus.Gatherer,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {
	if consumer == nil {
		return nil, errors.New("consumer is required")
	}

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. API (Synchronous Invoke)
	invokeAPI := httpapi.NewInvokeAPI(batchHandler, logger)

	// Register Routes
	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	mux.Handle("POST "+invokePath, corsMiddleware(authMiddleware(http.HandlerFunc(invokeAPI.Invoke))))
	mux.Handle("OPTIONS "+invokePath, corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	mux.Handle("GET "+metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Wrapper{
		BaseServer: baseServer,
		consumer:   consumer,
		logger:     logger,
		stopped:    make(chan struct{}),
	}, nil
}

// Start runs the consumer and the HTTP server until ctx is cancelled,
// Shutdown is called, or either of them fails.
func (w *Wrapper) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()
	defer close(w.stopped)

	g, gctx := errgroup.WithContext(runCtx)

	w.logger.Info("Pub/Sub consumer starting...")
	g.Go(func() error {
		if err := w.consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("pubsub consumer failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := w.BaseServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	// Take the HTTP server down with the consumer.
	g.Go(func() error {
		<-gctx.Done()
		sctx, scancel := context.WithTimeout(context.WithoutCancel(ctx), serverShutdownTimeout)
		defer scancel()
		if err := w.BaseServer.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Warn("HTTP server shutdown returned an error", "err", err)
		}
		return nil
	})

	w.SetReady(true)
	w.logger.Info("Service is now ready.")

	err := g.Wait()
	w.SetReady(false)
	return err
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")

	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()

	if cancel == nil {
		// Never started.
		return w.BaseServer.Shutdown(ctx)
	}
	cancel()

	var finalErr error
	select {
	case <-w.stopped:
	case <-ctx.Done():
		w.logger.Error("Timed out waiting for in-flight batch to finish.", "err", ctx.Err())
		finalErr = ctx.Err()
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}

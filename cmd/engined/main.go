// Command engined runs the tracing engine as a standalone process: an
// ingress listener, a query HTTP API, and a metrics endpoint, supervised
// by a suture tree and backed by a SQLite durability log.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"

	"github.com/embertrace/engine/config"
	"github.com/embertrace/engine/engine"
	"github.com/embertrace/engine/httpapi"
	"github.com/embertrace/engine/ingress"
	"github.com/embertrace/engine/storage/sqlite"
)

// ctxService adapts a context-taking run function to suture.Service.
type ctxService struct {
	name string
	run  func(ctx context.Context) error
}

func (s ctxService) Serve(ctx context.Context) error { return s.run(ctx) }
func (s ctxService) String() string                  { return s.name }

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("engined exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	configPath := os.Getenv("ENGINE_CONFIG_FILE")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	eng, err := engine.New(store, logger, nil)
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer eng.Close()

	ingressListener := ingress.New(cfg.IngressAddr, eng, logger, *cfg.IngressRateLimit, cfg.IngressBurst)
	api := httpapi.New(eng, logger)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	tree := suture.NewSimple("engined")

	tree.Add(ctxService{name: "ingress", run: ingressListener.ListenAndServe})
	tree.Add(ctxService{name: "http-api", run: func(ctx context.Context) error {
		return api.ListenAndServe(ctx, cfg.HTTPAddr)
	}})
	tree.Add(ctxService{name: "metrics", run: func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			metricsServer.Shutdown(shutdownCtx)
		}()
		logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			logger.Error("supervisor tree error", zap.Error(err))
		}
	}

	shutdownTimer := time.NewTimer(cfg.ShutdownTimeout)
	defer shutdownTimer.Stop()
	select {
	case <-errCh:
	case <-shutdownTimer.C:
		logger.Warn("shutdown timed out waiting for services to stop")
	}

	logger.Info("engined stopped")
	return nil
}

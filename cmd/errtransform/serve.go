package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/KirkDiggler/errtransform/internal/errors"
	"github.com/KirkDiggler/errtransform/internal/interceptors"
	"github.com/KirkDiggler/errtransform/internal/metrics"
	"github.com/KirkDiggler/errtransform/internal/pkg/clock"
	"github.com/KirkDiggler/errtransform/internal/pkg/idgen"
	"github.com/KirkDiggler/errtransform/internal/redis"
	errorreport "github.com/KirkDiggler/errtransform/internal/repositories/error_report"
	"github.com/KirkDiggler/errtransform/internal/reporter"
	"github.com/KirkDiggler/errtransform/internal/transform"
)

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start a gRPC server that classifies handler errors",
		Long: `Serve starts a gRPC server whose interceptors classify handler errors with
the rules file. Reportable errors are logged and, when redis.addrs is set,
stored for the reports command. Outcome counters are exposed on /metrics.`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}

	cmd.Flags().Int("port", 50051, "gRPC server port")
	cmd.Flags().Int("metrics-port", 9090, "metrics HTTP port, 0 disables it")

	a.bind("server.port", cmd.Flags().Lookup("port"))
	a.bind("server.metrics_port", cmd.Flags().Lookup("metrics-port"))

	return cmd
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	reportSink, closeSink, err := a.newReporter()
	if err != nil {
		return err
	}
	defer closeSink()

	registry := transform.NewRegistry[interceptors.Method](
		transform.WithReporter(reportSink),
		transform.WithObserver(metrics.NewObserver(promRegistry)),
		transform.WithLogger(a.logger),
	)
	if a.cfg.Rules != "" {
		catalog, err := loadRules(a.cfg.Rules, registry)
		if err != nil {
			return err
		}
		a.logger.Info("rules loaded",
			"path", a.cfg.Rules,
			"kinds", len(catalog.Names()),
			"groups", registry.Groups())
	} else {
		a.logger.Warn("no rules file configured, handler errors are only converted to status errors")
	}

	srv := newGRPCServer(a.logger, registry)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return errors.Wrapf(err, "failed to listen on port %d", a.cfg.Server.Port)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("gRPC server starting", "port", a.cfg.Server.Port)
		if err := srv.Serve(lis); err != nil {
			return errors.Wrap(err, "failed to serve")
		}
		return nil
	})

	var metricsServer *http.Server
	if a.cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{Registry: promRegistry}))
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Server.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			a.logger.Info("metrics server starting", "port", a.cfg.Server.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, "failed to serve metrics")
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down gRPC server")
		a.shutdown(srv, metricsServer)
		return nil
	})

	return g.Wait()
}

// shutdown stops both servers, forcing the gRPC server once the shutdown
// timeout passes
func (a *app) shutdown(srv *grpc.Server, metricsServer *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("metrics server shutdown failed", "error", err)
		}
	}

	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()

	select {
	case <-shutdownCtx.Done():
		a.logger.Warn("graceful shutdown timeout exceeded, forcing stop")
		srv.Stop()
	case <-stopped:
		a.logger.Info("server stopped gracefully")
	}
}

// newGRPCServer chains logging, panic recovery and classification, in that
// order, and registers health and reflection
func newGRPCServer(logger *slog.Logger, registry *transform.Registry[interceptors.Method]) *grpc.Server {
	recoveryOpt := grpc_recovery.WithRecoveryHandlerContext(func(ctx context.Context, p any) error {
		logger.ErrorContext(ctx, "handler panicked", "panic", fmt.Sprint(p))
		return errors.ToGRPCError(errors.Internal("internal error"))
	})

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc_logging.UnaryServerInterceptor(interceptorLogger(logger)),
			grpc_recovery.UnaryServerInterceptor(recoveryOpt),
			interceptors.UnaryServerInterceptor(registry),
		),
		grpc.ChainStreamInterceptor(
			grpc_logging.StreamServerInterceptor(interceptorLogger(logger)),
			grpc_recovery.StreamServerInterceptor(recoveryOpt),
			interceptors.StreamServerInterceptor(registry),
		),
	)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	reflection.Register(srv)
	return srv
}

// newReporter builds the reporter chain: the logger always, and the Redis
// store when configured. The returned func closes the store connection.
func (a *app) newReporter() (transform.Reporter, func(), error) {
	sinks := []transform.Reporter{reporter.NewLogger(a.logger)}
	if !a.cfg.Redis.Enabled() {
		return reporter.NewMulti(sinks...), func() {}, nil
	}

	repo, client, err := a.openReportRepository()
	if err != nil {
		return nil, nil, err
	}

	store, err := reporter.NewStore(&reporter.StoreConfig{Repository: repo})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			a.logger.Warn("failed to close redis client", "error", err)
		}
	}
	return reporter.NewMulti(append(sinks, store)...), closeFn, nil
}

func (a *app) openReportRepository() (errorreport.Repository, redis.Client, error) {
	client, err := redis.Open(a.cfg.Redis.ClientConfig())
	if err != nil {
		return nil, nil, err
	}

	repo, err := errorreport.NewRedisRepository(&errorreport.Config{
		Client:      client,
		Clock:       clock.New(),
		IDGenerator: idgen.NewUUID("rpt"),
		TTL:         a.cfg.Redis.TTL,
		MaxPerKind:  a.cfg.Redis.MaxPerKind,
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return repo, client, nil
}

func interceptorLogger(l *slog.Logger) grpc_logging.Logger {
	return grpc_logging.LoggerFunc(func(ctx context.Context, lvl grpc_logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

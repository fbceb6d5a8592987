package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"voxid/internal/platform/config"
	"voxid/internal/platform/health"
	"voxid/internal/platform/httpserver"
	"voxid/internal/platform/logger"
	"voxid/internal/verification/handler"
	"voxid/internal/verification/metrics"
	"voxid/internal/verification/query"
	"voxid/internal/verification/service"
	"voxid/internal/verification/tracer"
	"voxid/pkg/platform/middleware/request"
)

const redisStatsInterval = 15 * time.Second

// main wires dependencies and owns the process lifecycle. Business logic lives
// in the internal/verification packages.
func main() {
	if err := run(); err != nil {
		slog.Error("voxid exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	log := logger.New(level)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing voxid",
		"addr", cfg.Server.Addr,
		"records_backend", cfg.Storage.Records,
		"fingerprints_backend", cfg.Storage.Fingerprints,
		"extractor", cfg.Verification.Extractor,
		"kafka_enabled", cfg.KafkaEnabled(),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	verificationMetrics := metrics.New(reg)
	checks := health.New()

	in, err := openInfra(ctx, cfg, reg, verificationMetrics, checks, log)
	defer in.close(log)
	if err != nil {
		return err
	}

	t := tracer.NewOTel()
	records := in.recordStore(cfg)
	svc := service.New(records, in.fingerprintStore(cfg),
		newExtractor(cfg.Verification, verificationMetrics, t, checks, log),
		service.WithLogger(log),
		service.WithMetrics(verificationMetrics),
		service.WithTracer(t),
		service.WithAuditPublisher(in.audit),
	)
	if err := svc.SyncRecordGauge(ctx); err != nil {
		return fmt.Errorf("count existing records: %w", err)
	}
	queries := query.New(records,
		query.WithLogger(log),
		query.WithMetrics(verificationMetrics),
		query.WithTracer(t),
		query.WithDefaultUseCase(cfg.Verification.DefaultUseCase),
	)

	verificationHandler := handler.New(svc, queries, handler.Limits{
		MaxDocumentBytes: cfg.Verification.MaxDocumentBytes,
		MaxAudioBytes:    cfg.Verification.MaxAudioBytes,
	}, cfg.Admin.Token, log)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:         log,
		RequestTimeout: cfg.Server.RequestTimeout,
		Metrics:        request.NewMetrics(reg),
		Gatherer:       reg,
		Health:         checks,
	}, verificationHandler)
	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	if in.redis != nil {
		g.Go(func() error {
			ticker := time.NewTicker(redisStatsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					in.redis.RecordPoolStats()
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

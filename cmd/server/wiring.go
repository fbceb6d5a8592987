package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"voxid/internal/platform/config"
	"voxid/internal/platform/database"
	"voxid/internal/platform/health"
	"voxid/internal/platform/kafka/producer"
	vredis "voxid/internal/platform/redis"
	"voxid/internal/verification/extractor"
	"voxid/internal/verification/metrics"
	"voxid/internal/verification/service"
	"voxid/internal/verification/store/fingerprint"
	"voxid/internal/verification/store/record"
	"voxid/internal/verification/tracer"
	"voxid/pkg/platform/audit"
	"voxid/pkg/platform/audit/publisher"
	kafkaaudit "voxid/pkg/platform/audit/store/kafka"
	memoryaudit "voxid/pkg/platform/audit/store/memory"
	postgresaudit "voxid/pkg/platform/audit/store/postgres"
	"voxid/pkg/platform/circuit"
)

const auditBufferSize = 256

// infra holds the connections opened at startup. Nil fields are not configured.
type infra struct {
	db       *database.Pool
	redis    *vredis.Client
	producer *producer.Producer
	audit    *publisher.Publisher
}

func openInfra(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, m *metrics.Metrics, checks *health.Handler, log *slog.Logger) (*infra, error) {
	in := &infra{}

	if cfg.UsesPostgres() {
		pool, err := database.New(database.FromConfig(cfg.Database), reg)
		if err != nil {
			return in, fmt.Errorf("open postgres: %w", err)
		}
		in.db = pool
		checks.RegisterChecker(pool)
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, pool.DB(), log); err != nil {
				return in, err
			}
		}
	}

	if cfg.UsesRedis() {
		client, err := vredis.New(ctx, cfg.Redis, reg)
		if err != nil {
			return in, fmt.Errorf("open redis: %w", err)
		}
		in.redis = client
		checks.RegisterChecker(client)
	}

	if cfg.KafkaEnabled() {
		p, err := producer.New(producer.FromConfig(cfg.Kafka), log)
		if err != nil {
			return in, fmt.Errorf("open kafka producer: %w", err)
		}
		in.producer = p
		checks.RegisterChecker(p)
	}

	in.audit = publisher.New(in.auditStore(cfg),
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(log),
		publisher.WithDropHook(func(e audit.Event) { m.RecordAuditDropped(e.Action) }),
	)
	return in, nil
}

// auditStore persists alongside the records when they are durable and mirrors
// to Kafka when brokers are configured.
func (in *infra) auditStore(cfg *config.Config) audit.Store {
	var sinks audit.Fanout
	if in.db != nil {
		sinks = append(sinks, postgresaudit.New(in.db.DB()))
	} else {
		sinks = append(sinks, memoryaudit.NewInMemoryStore())
	}
	if in.producer != nil {
		sinks = append(sinks, kafkaaudit.New(in.producer, cfg.Kafka.AuditTopic))
	}
	if len(sinks) == 1 {
		return sinks[0]
	}
	return sinks
}

// close releases resources in reverse order of opening. The audit publisher
// drains before the producer it may write to is closed.
func (in *infra) close(log *slog.Logger) {
	if in.audit != nil {
		in.audit.Close()
	}
	if in.producer != nil {
		in.producer.Close(5 * time.Second)
	}
	var errs []error
	if in.redis != nil {
		errs = append(errs, in.redis.Close())
	}
	if in.db != nil {
		errs = append(errs, in.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		log.Error("failed to close resources", "error", err)
	}
}

func (in *infra) recordStore(cfg *config.Config) service.RecordStore {
	if cfg.Storage.Records == config.BackendPostgres {
		return record.NewPostgres(in.db.DB())
	}
	return record.NewInMemory()
}

func (in *infra) fingerprintStore(cfg *config.Config) service.FingerprintStore {
	switch cfg.Storage.Fingerprints {
	case config.BackendPostgres:
		return fingerprint.NewPostgres(in.db.DB())
	case config.BackendRedis:
		return fingerprint.NewRedis(in.redis.Client)
	default:
		return fingerprint.NewInMemory()
	}
}

func newExtractor(cfg config.VerificationConfig, m *metrics.Metrics, t tracer.Tracer, checks *health.Handler, log *slog.Logger) service.Extractor {
	if cfg.Extractor != config.ExtractorHTTP {
		return extractor.NewSimulated()
	}

	breaker := circuit.New("classifier",
		circuit.WithFailureThreshold(cfg.ClassifierMaxFailures),
		circuit.WithStateChangeHook(func(name string, to circuit.State) {
			m.SetClassifierCircuitOpen(to == circuit.StateOpen)
			log.Warn("circuit state changed", "circuit", name, "state", to.String())
		}),
	)
	cls := extractor.NewHTTPClassifier(extractor.HTTPClassifierConfig{
		BaseURL:       cfg.ClassifierURL,
		APIKey:        cfg.ClassifierAPIKey,
		Timeout:       cfg.ClassifierTimeout,
		ProbeInterval: cfg.ClassifierProbeEvery,
		Breaker:       breaker,
		Tracer:        t,
		Logger:        log,
	})
	checks.RegisterCheck("classifier", cls.Health)
	return cls
}

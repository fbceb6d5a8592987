// Package query answers read-only questions over the verified-record index:
// attribute filters, aggregate statistics and dataset assembly.
//
// Every operation works on a snapshot returned by the record store, so a
// query never observes a half-written intake.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"

	"voxid/internal/verification/metrics"
	"voxid/internal/verification/models"
	"voxid/internal/verification/tracer"
	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/validation"
)

// DefaultUseCase is recorded on datasets requested without one.
const DefaultUseCase = "AI Training"

// RecordLister returns a snapshot of every stored record.
type RecordLister interface {
	All(ctx context.Context) ([]models.Record, error)
}

type Engine struct {
	records        RecordLister
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         tracer.Tracer
	defaultUseCase string

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

func WithDefaultUseCase(useCase string) Option {
	return func(e *Engine) {
		if useCase != "" {
			e.defaultUseCase = useCase
		}
	}
}

// WithRand injects the random source for dataset ids.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = r
	}
}

func New(records RecordLister, opts ...Option) *Engine {
	e := &Engine{
		records:        records,
		defaultUseCase: DefaultUseCase,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.tracer == nil {
		e.tracer = tracer.NewNoop()
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // dataset ids are labels, not secrets
	}
	return e
}

// Criteria is a conjunction of exact attribute matches.
type Criteria map[models.Attribute]string

// ParseCriteria resolves raw request keys. Unknown keys and empty values are
// dropped; the raw key count and value lengths are bounded.
func ParseCriteria(raw map[string]string) (Criteria, error) {
	if len(raw) > validation.MaxCriteria {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("too many filter keys: max %d allowed", validation.MaxCriteria))
	}
	c := make(Criteria, len(raw))
	for key, value := range raw {
		attr, ok := models.ParseAttribute(key)
		if !ok || value == "" {
			continue
		}
		if len(value) > validation.MaxCriterionValueLength {
			return nil, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("filter value for %s exceeds %d characters", key, validation.MaxCriterionValueLength))
		}
		c[attr] = value
	}
	return c, nil
}

// Matches reports whether every criterion equals the corresponding attribute.
// A record missing a criterion's attribute does not match.
func (c Criteria) Matches(d models.Demographics) bool {
	for attr, want := range c {
		got, ok := d.Field(attr)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Filter returns the verified records matching c, ordered by account id.
func (e *Engine) Filter(ctx context.Context, c Criteria) (out []models.Summary, err error) {
	_, span := e.tracer.Start(ctx, tracer.SpanFilter, tracer.Int(tracer.AttrCriteria, len(c)))
	defer func() { span.End(err) }()

	records, err := e.records.All(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verification records")
	}

	out = make([]models.Summary, 0)
	for _, rec := range records {
		if !rec.IsVerified || !c.Matches(rec.Demographics) {
			continue
		}
		out = append(out, rec.Summarize())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })

	span.SetAttributes(tracer.Int(tracer.AttrMatches, len(out)))
	return out, nil
}

package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	dErrors "voxid/pkg/domain-errors"
	audit "voxid/pkg/platform/audit"
)

const defaultAppendTimeout = 5 * time.Second

// Publisher stamps audit events and hands them to a store, either inline or
// through a bounded queue drained by one worker. Emit never blocks on a full
// queue: the event is dropped and reported through the drop hook.
type Publisher struct {
	store         audit.Store
	logger        *slog.Logger
	now           func() time.Time
	appendTimeout time.Duration
	onDrop        func(audit.Event)

	queue     chan audit.Event
	done      chan struct{}
	closeOnce sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer queues up to size events for background persistence.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.queue = make(chan audit.Event, size)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithAppendTimeout bounds each background append. Inline appends use the caller's context.
func WithAppendTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.appendTimeout = d
		}
	}
}

// WithDropHook is called for every event that was not persisted, either
// because the queue was full or because the store rejected it in the background.
func WithDropHook(fn func(audit.Event)) Option {
	return func(p *Publisher) {
		p.onDrop = fn
	}
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:         store,
		logger:        slog.Default(),
		now:           time.Now,
		appendTimeout: defaultAppendTimeout,
		onDrop:        func(audit.Event) {},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		p.done = make(chan struct{})
		go p.drain()
	}
	return p
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.appendTimeout)
		err := p.store.Append(ctx, event)
		cancel()
		if err != nil {
			p.logger.Error("failed to persist audit event",
				"error", err,
				"action", event.Action,
				"account_id", event.AccountID,
				"request_id", event.RequestID,
			)
			p.onDrop(event)
		}
	}
}

// Emit records event. In async mode a nil error only means the event was queued.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now().UTC()
	}
	if p.queue == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.WarnContext(ctx, "audit queue full, event dropped",
			"action", event.Action,
			"account_id", event.AccountID,
		)
		p.onDrop(event)
		return dErrors.New(dErrors.CodeUnavailable, "audit queue full")
	}
}

// Close stops accepting events and waits for queued ones to be persisted.
// It must not race with Emit; callers close after the HTTP server has stopped.
func (p *Publisher) Close() {
	if p.queue == nil {
		return
	}
	p.closeOnce.Do(func() {
		close(p.queue)
		<-p.done
	})
}

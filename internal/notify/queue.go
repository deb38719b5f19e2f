package notify

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/catalog-service/internal/domain/product"
)

// Queue errors.
var (
	ErrQueueFull   = errors.New("notification queue is full")
	ErrQueueClosed = errors.New("notification queue is closed")
)

// QueueConfig bounds background delivery.
type QueueConfig struct {
	// Size is the number of events buffered before Notify starts dropping.
	Size int
	// Workers is the number of concurrent deliveries.
	Workers int
	// Timeout bounds a single delivery.
	Timeout time.Duration
}

type queued struct {
	ctx   context.Context
	event product.Event
}

// Queue hands events to a fixed pool of workers so a slow mail relay never
// delays the mutation that produced them.
type Queue struct {
	next    product.Notifier
	timeout time.Duration
	events  chan queued
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var _ product.Notifier = (*Queue)(nil)

// NewQueue starts cfg.Workers goroutines delivering through next. Call Close
// to flush and stop them.
func NewQueue(next product.Notifier, cfg QueueConfig) *Queue {
	cfg.Size = max(cfg.Size, 1)
	cfg.Workers = max(cfg.Workers, 1)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	q := &Queue{
		next:    next,
		timeout: cfg.Timeout,
		events:  make(chan queued, cfg.Size),
	}
	for range cfg.Workers {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

// Notify enqueues e without blocking. The request context is kept only for
// its values, so delivery survives the request finishing.
func (q *Queue) Notify(ctx context.Context, e product.Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.events <- queued{ctx: context.WithoutCancel(ctx), event: e}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Queue) work() {
	defer q.wg.Done()
	for item := range q.events {
		q.deliver(item)
	}
}

func (q *Queue) deliver(item queued) {
	ctx, cancel := context.WithTimeout(item.ctx, q.timeout)
	defer cancel()

	if err := q.next.Notify(ctx, item.event); err != nil {
		zctx.From(ctx).Warn("Product notification failed",
			zap.String("kind", string(item.event.Kind)),
			zap.Int64("id", item.event.Product.ID),
			zap.Error(err),
		)
	}
}

// Close stops accepting events and waits for queued ones to be delivered or
// for ctx to expire.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.events)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "drain notifications")
	}
}

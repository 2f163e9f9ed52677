// Package worker runs fire-and-forget work detached from HTTP requests.
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kycdesk/intake-service/internal/events"
)

// Pool runs background jobs and lets shutdown wait for them.
type Pool struct {
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool returns an empty pool.
func NewPool(logger *zap.Logger) *Pool {
	return &Pool{logger: logger}
}

// Go runs job on its own goroutine. A panicking job is logged, not fatal.
func (p *Pool) Go(job func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("background job panicked", zap.Any("panic", r))
			}
		}()
		job()
	}()
}

// Wait blocks until running jobs finish or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publisher hands events to the dispatcher on the pool, each bounded by
// timeout and detached from the caller's context.
type Publisher struct {
	pool       *Pool
	dispatcher events.Dispatcher
	timeout    time.Duration
	logger     *zap.Logger
}

// NewPublisher returns a background publisher.
func NewPublisher(pool *Pool, dispatcher events.Dispatcher, timeout time.Duration, logger *zap.Logger) *Publisher {
	return &Publisher{pool: pool, dispatcher: dispatcher, timeout: timeout, logger: logger}
}

// Publish returns immediately; handler failures are logged.
func (p *Publisher) Publish(event events.Event) {
	p.pool.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.dispatcher.Publish(ctx, event); err != nil {
			p.logger.Warn("event handlers failed",
				zap.String("event_type", string(event.Type)),
				zap.String("subject_id", event.SubjectID),
				zap.Error(err))
		}
	})
}

// HandlerRegistrar subscribes its handlers to a dispatcher. Implementations
// must tolerate a nil receiver.
type HandlerRegistrar interface {
	RegisterHandlers()
}

// StartNotificationWorker registers the notification handlers.
func StartNotificationWorker(handlers HandlerRegistrar) {
	if handlers == nil {
		return
	}
	handlers.RegisterHandlers()
}

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	errPersisterClosed = errors.New("persister closed")
	errQueueFull       = errors.New("persist queue full")
)

// writeOp is a queued storage write
type writeOp struct {
	name      string
	sessionID string
	run       func(ctx context.Context) error
	retry     bool          // only for writes that are safe to repeat
	done      chan struct{} // set only for flush barriers
}

// persister applies storage writes in FIFO order on a single goroutine.
// Each attempt is bounded by timeout. A failed retryable write is retried
// once after retryDelay, then logged.
type persister struct {
	ops        chan writeOp
	retryDelay time.Duration
	timeout    time.Duration
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func newPersister(queueSize int, retryDelay, timeout time.Duration, logger *slog.Logger) *persister {
	if queueSize <= 0 {
		queueSize = 1
	}
	p := &persister{
		ops:        make(chan writeOp, queueSize),
		retryDelay: retryDelay,
		timeout:    timeout,
		logger:     logger,
	}
	p.wg.Add(1)
	go p.loop()
	return p
}

func (p *persister) loop() {
	defer p.wg.Done()
	for op := range p.ops {
		if op.done != nil {
			close(op.done)
			continue
		}
		p.apply(op)
	}
}

func (p *persister) apply(op writeOp) {
	err := p.attempt(op)
	if err == nil {
		return
	}
	if !op.retry {
		p.logger.Error("storage write failed",
			slog.String("op", op.name),
			slog.String("session_id", op.sessionID),
			slog.String("error", err.Error()),
		)
		return
	}

	p.logger.Warn("storage write failed, retrying",
		slog.String("op", op.name),
		slog.String("session_id", op.sessionID),
		slog.String("error", err.Error()),
	)
	if p.retryDelay > 0 {
		time.Sleep(p.retryDelay)
	}
	if err := p.attempt(op); err != nil {
		p.logger.Error("storage write failed after retry",
			slog.String("op", op.name),
			slog.String("session_id", op.sessionID),
			slog.String("error", err.Error()),
		)
	}
}

func (p *persister) attempt(op writeOp) error {
	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return op.run(ctx)
}

// enqueue queues a write without blocking. A full queue drops the write.
func (p *persister) enqueue(op writeOp) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errPersisterClosed
	}
	select {
	case p.ops <- op:
		return nil
	default:
		return errQueueFull
	}
}

// flush waits until every write queued before the call has been applied
func (p *persister) flush(ctx context.Context) error {
	done := make(chan struct{})
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return errPersisterClosed
	}
	select {
	case p.ops <- writeOp{name: "flush", done: done}:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting writes and waits for the queue to drain
func (p *persister) close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.ops)
	}
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

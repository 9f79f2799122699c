package events

import (
	"context"
	"sync"

	"github.com/im-knots/ea-monorepo/internal/app/dto"
	"github.com/im-knots/ea-monorepo/internal/infrastructure/metrics"
)

// MemoryConfig sizes the in-process channel.
type MemoryConfig struct {
	Buffer int `yaml:"buffer"`
}

// MemoryPublisher queues events on a buffered channel. Mainly for tests and
// single-process hosts.
type MemoryPublisher struct {
	ch     chan dto.Event
	mu     sync.Mutex
	closed bool
}

// NewMemoryPublisher creates a publisher with the given buffer (default 64).
func NewMemoryPublisher(size int) *MemoryPublisher {
	if size <= 0 {
		size = 64
	}
	return &MemoryPublisher{ch: make(chan dto.Event, size)}
}

// Publish enqueues ev without blocking. When the buffer is full the event
// is dropped and ErrBufferFull returned, so slow consumers never stall the
// status poller.
func (p *MemoryPublisher) Publish(ctx context.Context, ev dto.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.ch <- ev:
		metrics.EventPublished(string(ev.Type))
		return nil
	default:
		return ErrBufferFull
	}
}

// Events exposes the queue to consumers. It is closed by Close.
func (p *MemoryPublisher) Events() <-chan dto.Event {
	return p.ch
}

// Close stops publishing and closes the events channel.
func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	return nil
}

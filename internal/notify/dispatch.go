package notify

import (
	"context"
	"errors"
	"time"
)

// ErrQueueFull is returned by MemoryQueue when its buffer has no room.
var ErrQueueFull = errors.New("notification queue full")

// Dispatcher hands a message to the delivery path.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// Source yields queued messages to a Worker. Next blocks until a message is
// available or ctx is done.
type Source interface {
	Next(ctx context.Context) (Message, error)
}

// MemoryQueue is an in-process buffered queue. Dispatch never blocks.
type MemoryQueue struct {
	ch chan Message
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1
	}
	return &MemoryQueue{ch: make(chan Message, size)}
}

func (q *MemoryQueue) Dispatch(_ context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Next(ctx context.Context) (Message, error) {
	select {
	case msg := <-q.ch:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Len reports the number of buffered messages.
func (q *MemoryQueue) Len() int { return len(q.ch) }

// SyncDispatcher delivers inline. It is the fallback when no queue is
// configured; each delivery is bounded by Timeout so a stuck transport
// cannot hold the request.
type SyncDispatcher struct {
	Sender  Sender
	Timeout time.Duration
}

func (d SyncDispatcher) Dispatch(ctx context.Context, msg Message) error {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Sender.Send(ctx, msg)
}

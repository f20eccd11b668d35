package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Worker drains a Source and hands each message to a Sender. Failed
// deliveries are logged and dropped; the queue is not a delivery guarantee.
type Worker struct {
	source  Source
	sender  Sender
	logger  *zap.SugaredLogger
	timeout time.Duration
	threads int
}

func NewWorker(source Source, sender Sender, logger *zap.SugaredLogger, timeout time.Duration, threads int) *Worker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if threads <= 0 {
		threads = 1
	}
	return &Worker{source: source, sender: sender, logger: logger, timeout: timeout, threads: threads}
}

// Run blocks until ctx is done and every goroutine has returned.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.threads; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.loop(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context, id int) {
	for {
		msg, err := w.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var poison *PoisonError
			if errors.As(err, &poison) {
				w.logger.Errorw("dropping undecodable notification", "worker", id, "err", err)
				continue
			}
			w.logger.Warnw("notification queue read failed", "worker", id, "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		w.deliver(ctx, id, msg)
	}
}

func (w *Worker) deliver(ctx context.Context, id int, msg Message) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()
	start := time.Now()
	if err := w.sender.Send(sendCtx, msg); err != nil {
		w.logger.Warnw("notification delivery failed", "worker", id, "message_id", msg.ID, "to", msg.To, "err", err)
		return
	}
	w.logger.Debugw("notification delivered",
		"worker", id,
		"message_id", msg.ID,
		"subject", msg.Subject,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
}

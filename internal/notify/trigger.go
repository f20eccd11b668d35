package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-task-go/internal/task"
)

// Trigger is the task hook that turns committed mutations into queued
// notifications. Errors are logged here and never reach the mutation.
type Trigger struct {
	users      Recipients
	dispatcher Dispatcher
	logger     *zap.SugaredLogger
}

func NewTrigger(users Recipients, dispatcher Dispatcher, logger *zap.SugaredLogger) *Trigger {
	return &Trigger{users: users, dispatcher: dispatcher, logger: logger}
}

var _ task.Hook = (*Trigger)(nil)

func (t *Trigger) OnTaskEvent(ctx context.Context, ev task.Event) {
	// the request may finish before delivery; keep its values, drop its deadline
	ctx = context.WithoutCancel(ctx)
	msg, err := Decide(ctx, ev, t.users)
	if err != nil {
		t.logger.Warnw("notification decision failed", "event", ev.Kind.String(), "task_id", ev.New.ID, "err", err)
		return
	}
	if msg == nil {
		t.logger.Debugw("no notification", "event", ev.Kind.String(), "task_id", ev.New.ID)
		return
	}
	if err := t.dispatcher.Dispatch(ctx, *msg); err != nil {
		t.logger.Warnw("notification dispatch failed",
			"event", ev.Kind.String(),
			"task_id", ev.New.ID,
			"message_id", msg.ID,
			"subject", msg.Subject,
			"err", err,
		)
		return
	}
	t.logger.Infow("notification dispatched", "task_id", ev.New.ID, "message_id", msg.ID, "subject", msg.Subject)
}

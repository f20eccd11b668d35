package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-task-go/internal/notify"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/task/entity"
	taskrepo "github.com/ovaphlow/pitchfork/service-task-go/internal/task/repo"
)

// OverdueLister lists overdue tasks; *repo.TaskRepo satisfies it.
type OverdueLister interface {
	ListOverdue(ctx context.Context, today entity.Date) ([]taskrepo.Overdue, error)
}

// Service sends each project owner a summary of their overdue tasks.
type Service struct {
	tasks      OverdueLister
	dispatcher notify.Dispatcher
	logger     *zap.SugaredLogger
}

func NewService(tasks OverdueLister, dispatcher notify.Dispatcher, logger *zap.SugaredLogger) *Service {
	return &Service{tasks: tasks, dispatcher: dispatcher, logger: logger}
}

// Run queues one summary per owner with tasks due before today that are not
// done. It returns the number of messages queued. A failed dispatch is
// logged and does not stop the other owners.
func (s *Service) Run(ctx context.Context, today entity.Date) (int, error) {
	rows, err := s.tasks.ListOverdue(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list overdue: %w", err)
	}
	sent := 0
	for start := 0; start < len(rows); {
		end := start
		for end < len(rows) && rows[end].OwnerID == rows[start].OwnerID {
			end++
		}
		group := rows[start:end]
		start = end

		lines := make([]string, 0, len(group))
		for _, r := range group {
			lines = append(lines, fmt.Sprintf("- %s (due %s)", r.Title, r.DueDate))
		}
		msg := notify.NewMessage(group[0].OwnerEmail, notify.SubjectOverdueDigest, "Your overdue tasks:\n"+strings.Join(lines, "\n"))
		if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
			s.logger.Warnw("overdue digest dispatch failed", "owner_id", group[0].OwnerID, "err", err)
			continue
		}
		sent++
	}
	s.logger.Infow("overdue digest queued", "owners", sent, "tasks", len(rows), "day", today.String())
	return sent, nil
}

// Scheduler runs the digest on a cron spec.
type Scheduler struct {
	cron   *cron.Cron
	svc    *Service
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewScheduler registers the digest under spec (standard 5-field cron).
func NewScheduler(spec string, svc *Service, logger *zap.SugaredLogger) (*Scheduler, error) {
	s := &Scheduler{cron: cron.New(), svc: svc, logger: logger, now: time.Now}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("digest schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, err := s.svc.Run(ctx, entity.DateOf(s.now())); err != nil {
		s.logger.Errorw("overdue digest failed", "err", err)
	}
}

// Start begins scheduling in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop prevents further runs and waits for a running digest to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

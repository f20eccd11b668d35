package task

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-task-go/internal/apperr"
	projectentity "github.com/ovaphlow/pitchfork/service-task-go/internal/project/entity"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/task/entity"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/task/query"
)

// Store is the persistence the service needs; *repo.TaskRepo satisfies it.
type Store interface {
	Create(ctx context.Context, t *entity.Task) error
	GetOwned(ctx context.Context, id, ownerID int64) (*entity.Task, error)
	ListOwned(ctx context.Context, ownerID int64, f query.Filter, p query.Page) ([]entity.Task, error)
	Update(ctx context.Context, id, ownerID int64, patch entity.Patch) (before, after *entity.Task, err error)
	Delete(ctx context.Context, id, ownerID int64) error
}

// ProjectLookup resolves owned projects; *repo.ProjectRepo satisfies it.
type ProjectLookup interface {
	GetOwned(ctx context.Context, id, ownerID int64) (*projectentity.Project, error)
}

// EventKind tells which mutation produced an Event.
type EventKind int

const (
	EventCreated EventKind = iota + 1
	EventUpdated
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventUpdated:
		return "updated"
	}
	return "unknown"
}

// Event describes a committed task mutation. Old is nil for EventCreated.
type Event struct {
	Kind EventKind
	Old  *entity.Task
	New  entity.Task
}

// Hook observes committed task mutations. Hooks run after the transaction
// commits; they cannot change or fail the mutation.
type Hook interface {
	OnTaskEvent(ctx context.Context, ev Event)
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, ev Event)

func (f HookFunc) OnTaskEvent(ctx context.Context, ev Event) { f(ctx, ev) }

// Defaults are applied to fields omitted at creation.
type Defaults struct {
	Status   string
	Priority int
}

// Service implements owner-scoped task operations.
type Service struct {
	store    Store
	projects ProjectLookup
	defaults Defaults
	hooks    []Hook
	logger   *zap.SugaredLogger
}

func NewService(store Store, projects ProjectLookup, defaults Defaults, logger *zap.SugaredLogger, hooks ...Hook) *Service {
	if defaults.Status == "" {
		defaults.Status = "pending"
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, projects: projects, defaults: defaults, hooks: hooks, logger: logger}
}

// Create adds a task to a project owned by ownerID. A project that is missing
// or owned by someone else yields apperr.ErrForbidden.
func (s *Service) Create(ctx context.Context, ownerID int64, in entity.Input) (*entity.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Invalid("title", "is required")
	}
	if in.ProjectID <= 0 {
		return nil, apperr.Invalid("project_id", "is required")
	}
	if in.Status != nil && strings.TrimSpace(*in.Status) == "" {
		return nil, apperr.Invalid("status", "must not be empty")
	}
	if _, err := s.projects.GetOwned(ctx, in.ProjectID, ownerID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrForbidden
		}
		return nil, err
	}

	t := &entity.Task{
		ProjectID:      in.ProjectID,
		AssignedUserID: in.AssignedUserID,
		Title:          title,
		Description:    in.Description,
		Status:         s.defaults.Status,
		Priority:       s.defaults.Priority,
		DueDate:        in.DueDate,
	}
	if in.Status != nil {
		t.Status = strings.TrimSpace(*in.Status)
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	s.emit(ctx, Event{Kind: EventCreated, New: *t})
	return t, nil
}

// Get returns an owned task or apperr.ErrNotFound.
func (s *Service) Get(ctx context.Context, id, ownerID int64) (*entity.Task, error) {
	return s.store.GetOwned(ctx, id, ownerID)
}

// List returns owned tasks matching f, paginated by p.
func (s *Service) List(ctx context.Context, ownerID int64, f query.Filter, p query.Page) ([]entity.Task, error) {
	f, p, err := query.Normalize(f, p)
	if err != nil {
		return nil, err
	}
	return s.store.ListOwned(ctx, ownerID, f, p)
}

// Update applies a partial update to an owned task. Only fields present in
// patch change; the pre-update snapshot is handed to the hooks with the
// result.
func (s *Service) Update(ctx context.Context, id, ownerID int64, patch entity.Patch) (*entity.Task, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperr.Invalid("title", "must not be empty")
		}
		patch.Title = &title
	}
	if patch.Status != nil {
		status := strings.TrimSpace(*patch.Status)
		if status == "" {
			return nil, apperr.Invalid("status", "must not be empty")
		}
		patch.Status = &status
	}
	if patch.ProjectID != nil && *patch.ProjectID <= 0 {
		return nil, apperr.Invalid("project_id", "must be a positive integer")
	}
	before, after, err := s.store.Update(ctx, id, ownerID, patch)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, Event{Kind: EventUpdated, Old: before, New: *after})
	return after, nil
}

// Delete removes an owned task.
func (s *Service) Delete(ctx context.Context, id, ownerID int64) error {
	return s.store.Delete(ctx, id, ownerID)
}

// emit runs the hooks for a committed mutation. A panicking hook is logged
// and does not reach the caller.
func (s *Service) emit(ctx context.Context, ev Event) {
	for _, h := range s.hooks {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					s.logger.Errorw("task hook panicked", "event", ev.Kind.String(), "task_id", ev.New.ID, "panic", fmt.Sprint(rec))
				}
			}()
			h.OnTaskEvent(ctx, ev)
		}()
	}
}

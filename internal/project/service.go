package project

import (
	"context"
	"strings"

	"github.com/ovaphlow/pitchfork/service-task-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/project/entity"
)

// Store is the persistence the service needs; *repo.ProjectRepo satisfies it.
type Store interface {
	Create(ctx context.Context, p *entity.Project) error
	ListByOwner(ctx context.Context, ownerID int64) ([]entity.Project, error)
	GetOwned(ctx context.Context, id, ownerID int64) (*entity.Project, error)
	Update(ctx context.Context, id, ownerID int64, name string, description *string) (*entity.Project, error)
	Delete(ctx context.Context, id, ownerID int64) error
}

// Service encapsulates owner-scoped project operations.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Input carries the writable project fields.
type Input struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func (in Input) validate() (string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", apperr.Invalid("name", "is required")
	}
	return name, nil
}

// Create makes a new project owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID int64, in Input) (*entity.Project, error) {
	name, err := in.validate()
	if err != nil {
		return nil, err
	}
	p := &entity.Project{OwnerID: ownerID, Name: name, Description: in.Description}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns every project owned by ownerID.
func (s *Service) List(ctx context.Context, ownerID int64) ([]entity.Project, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// Get returns the project or apperr.ErrNotFound when it is missing or owned
// by someone else.
func (s *Service) Get(ctx context.Context, id, ownerID int64) (*entity.Project, error) {
	return s.store.GetOwned(ctx, id, ownerID)
}

// Update fully replaces name and description; an omitted description clears it.
func (s *Service) Update(ctx context.Context, id, ownerID int64, in Input) (*entity.Project, error) {
	name, err := in.validate()
	if err != nil {
		return nil, err
	}
	return s.store.Update(ctx, id, ownerID, name, in.Description)
}

// Delete removes the project together with its tasks.
func (s *Service) Delete(ctx context.Context, id, ownerID int64) error {
	return s.store.Delete(ctx, id, ownerID)
}

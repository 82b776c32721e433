package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/resourcehub/apiserver/internal/events"
	"github.com/resourcehub/apiserver/types"
)

const (
	defaultListSize = 100
	maxListSize     = 10000
)

// ResourceRepository defines persistence operations for resources.
type ResourceRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Resource, error)
	Get(ctx context.Context, id uuid.UUID) (types.Resource, error)
	Create(ctx context.Context, resource types.Resource) (types.Resource, error)
	Update(ctx context.Context, resource types.Resource) (types.Resource, error)
	Upsert(ctx context.Context, resource types.Resource) (types.Resource, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ResourceService encapsulates resource use-cases and emits change
// events on mutations.
type ResourceService struct {
	repo      ResourceRepository
	publisher *events.Publisher
}

func NewResourceService(repo ResourceRepository, publisher *events.Publisher) *ResourceService {
	return &ResourceService{repo: repo, publisher: publisher}
}

func (s *ResourceService) List(ctx context.Context, skip, size int) ([]types.Resource, error) {
	if size <= 0 {
		size = defaultListSize
	}
	if size > maxListSize {
		size = maxListSize
	}
	return s.repo.List(ctx, skip, size)
}

func (s *ResourceService) Get(ctx context.Context, id uuid.UUID) (types.Resource, error) {
	return s.repo.Get(ctx, id)
}

func (s *ResourceService) Create(ctx context.Context, resource types.Resource) (types.Resource, error) {
	if resource.ID == uuid.Nil {
		resource.ID = uuid.New()
	}
	created, err := s.repo.Create(ctx, resource)
	if err != nil {
		return types.Resource{}, err
	}
	s.emit(ctx, events.ActionCreated, created)
	return created, nil
}

func (s *ResourceService) Update(ctx context.Context, resource types.Resource) (types.Resource, error) {
	updated, err := s.repo.Update(ctx, resource)
	if err != nil {
		return types.Resource{}, err
	}
	s.emit(ctx, events.ActionUpdated, updated)
	return updated, nil
}

// Replace stores the resource under the given id, creating it if
// necessary.
func (s *ResourceService) Replace(ctx context.Context, resource types.Resource) (types.Resource, error) {
	replaced, err := s.repo.Upsert(ctx, resource)
	if err != nil {
		return types.Resource{}, err
	}
	s.emit(ctx, events.ActionUpdated, replaced)
	return replaced, nil
}

func (s *ResourceService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.emit(ctx, events.ActionDeleted, types.Resource{ID: id})
	return nil
}

func (s *ResourceService) emit(ctx context.Context, action string, resource types.Resource) {
	s.publisher.Emit(ctx, events.ChannelResources, events.Event{
		Entity: "resource",
		Action: action,
		ID:     resource.ID.String(),
		Name:   resource.Name,
	})
}

package services

import (
	"context"

	"github.com/resourcehub/apiserver/internal/events"
	"github.com/resourcehub/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Get(ctx context.Context, id string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates user use-cases and emits change events on
// mutations. It also satisfies the auth package's UserStore interface,
// serving as the principal resolver for the authenticator and the
// access guard.
type UserService struct {
	repo      UserRepository
	publisher *events.Publisher
}

func NewUserService(repo UserRepository, publisher *events.Publisher) *UserService {
	return &UserService{repo: repo, publisher: publisher}
}

func (s *UserService) Get(ctx context.Context, id string) (types.User, error) {
	return s.repo.Get(ctx, id)
}

func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	if user.Status == "" {
		user.Status = types.UserStatusActive
	}
	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return types.User{}, err
	}
	s.emit(ctx, events.ActionCreated, created)
	return created, nil
}

func (s *UserService) Update(ctx context.Context, user types.User) (types.User, error) {
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, err
	}
	s.emit(ctx, events.ActionUpdated, updated)
	return updated, nil
}

func (s *UserService) emit(ctx context.Context, action string, user types.User) {
	s.publisher.Emit(ctx, events.ChannelUsers, events.Event{
		Entity: "user",
		Action: action,
		ID:     user.ID,
		Name:   user.Name,
	})
}

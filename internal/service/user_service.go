package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"user-api/internal/domain"
	"user-api/internal/repository"
)

// UserService describes user lifecycle operations. Every successful
// operation other than ListUsers notifies real-time clients and then
// publishes a domain event, in that order, before returning. A failure in
// either side effect is returned as is; the store change is not undone.
type UserService interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	PatchUser(ctx context.Context, id uuid.UUID, patch domain.UserPatch) (*domain.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type userService struct {
	users     repository.UserRepository
	notifier  Notifier
	publisher Publisher
}

func NewUserService(users repository.UserRepository, notifier Notifier, publisher Publisher) UserService {
	return &userService{
		users:     users,
		notifier:  notifier,
		publisher: publisher,
	}
}

func (s *userService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.announce(ctx, domain.NotifyUserFetched, user, domain.UserFetched{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	}); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	user.ID = uuid.New()

	if err := s.users.Create(ctx, &user); err != nil {
		return nil, err
	}

	if err := s.announce(ctx, domain.NotifyUserAdded, &user, domain.UserCreated{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	}); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *userService) PatchUser(ctx context.Context, id uuid.UUID, patch domain.UserPatch) (*domain.User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(user)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	if err := s.announce(ctx, domain.NotifyUserUpdated, user, domain.UserUpdated{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	}); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) DeleteUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		return nil, err
	}

	if err := s.announce(ctx, domain.NotifyUserDeleted, user, domain.UserDeleted{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	}); err != nil {
		return nil, err
	}
	return user, nil
}

// announce broadcasts a snapshot of user and then publishes event.
func (s *userService) announce(ctx context.Context, name string, user *domain.User, event domain.Event) error {
	snapshot := *user
	if err := s.notifier.Broadcast(ctx, name, snapshot); err != nil {
		return fmt.Errorf("notify %s: %w", name, err)
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventName(), err)
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"

	"chess-matchmaking/models"
	"chess-matchmaking/store"
)

// UserService reads the local snapshot of accounts kept by the profile sync.
type UserService struct {
	store store.Users
}

func NewUserService(s store.Users) *UserService {
	return &UserService{store: s}
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, ErrUnauthenticated
	}
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get user: %v", ErrSystem, err)
	}
	return u, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"coophours/internal/domain"
	"coophours/internal/events"
	"coophours/internal/models"
	"coophours/internal/session"

	"github.com/rs/zerolog"
)

// UserService handles member registration and lookup. Passwords are hashed
// here so raw credentials never reach the store.
type UserService struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewUserService(repo domain.Repository, eventBus domain.EventPublisher, logger *zerolog.Logger) *UserService {
	return &UserService{repo: repo, eventBus: eventBus, logger: logger}
}

// Register creates a member account. Usernames are unique across the
// cooperative; a taken name surfaces as ErrUsernameTaken.
func (s *UserService) Register(ctx context.Context, username, password, firstName, lastName, email string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	hash, err := session.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			return nil, domain.ErrUsernameTaken
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	s.logger.Info().Str("username", username).Msg("member registered")

	if err := s.eventBus.PublishJSON(events.EventUserRegistered, map[string]string{
		"username": username,
	}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish registration event")
	}

	return user, nil
}

// FindByUsername fetches a member by login name.
func (s *UserService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return user, nil
}

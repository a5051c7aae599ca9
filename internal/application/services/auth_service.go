package services

import (
	"context"
	"errors"

	"github.com/taskmaster/taskclient/internal/domain/entities"
	"github.com/taskmaster/taskclient/internal/infrastructure/logger"
)

// AuthService handles the email login flow. There are no passwords or
// tokens: the backend identifies a user by email alone.
type AuthService struct {
	users   *UserService
	session *SessionStore
	logger  *logger.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users *UserService, session *SessionStore, logger *logger.Logger) *AuthService {
	return &AuthService{
		users:   users,
		session: session,
		logger:  logger.WithComponent("auth"),
	}
}

// Login looks up email and starts a session for it. An unknown email returns
// entities.ErrUserNotFound so the caller can offer Signup.
func (s *AuthService) Login(ctx context.Context, email string) (*entities.Identity, error) {
	identity, err := s.users.Find(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.session.SetCurrent(identity); err != nil {
		return nil, err
	}

	s.logger.LogUserAction(identity.ID, "login", nil)
	return identity, nil
}

// Signup registers email and starts a session for the new user.
func (s *AuthService) Signup(ctx context.Context, email string) (*entities.Identity, error) {
	identity, err := s.users.Register(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.session.SetCurrent(identity); err != nil {
		return nil, err
	}

	s.logger.LogUserAction(identity.ID, "signup", nil)
	return identity, nil
}

// Logout ends the current session, if any. The session is gone even when
// the returned error reports that the stored record could not be removed.
func (s *AuthService) Logout() error {
	identity, ok := s.session.Current()
	err := s.session.Logout()
	if ok {
		s.logger.LogUserAction(identity.ID, "logout", nil)
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, entities.ErrNotFound)
}

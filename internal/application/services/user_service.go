package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/taskmaster/taskclient/internal/application/normalizer"
	"github.com/taskmaster/taskclient/internal/domain/entities"
	"github.com/taskmaster/taskclient/internal/infrastructure/logger"
	"github.com/taskmaster/taskclient/internal/ports"
)

// UserService looks up and registers backend users by email.
type UserService struct {
	gateway  ports.UserGateway
	validate *validator.Validate
	logger   *logger.Logger
}

// NewUserService creates a new user service
func NewUserService(gateway ports.UserGateway, validate *validator.Validate, logger *logger.Logger) *UserService {
	return &UserService{
		gateway:  gateway,
		validate: validate,
		logger:   logger.WithComponent("users"),
	}
}

// normalizeEmail trims email and checks its format. Case is kept; the backend
// decides how emails compare.
func (s *UserService) normalizeEmail(email string) (string, error) {
	req := entities.EmailRequest{Email: strings.TrimSpace(email)}
	if err := s.validate.Struct(req); err != nil {
		return "", fmt.Errorf("%w: %s", entities.ErrInvalidInput, validationMessage(err))
	}
	return req.Email, nil
}

// Find returns the user registered under email. A missing user is reported
// as entities.ErrUserNotFound.
func (s *UserService) Find(ctx context.Context, email string) (*entities.Identity, error) {
	email, err := s.normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	raw, err := s.gateway.CheckUser(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", entities.ErrUserNotFound, email)
		}
		return nil, fmt.Errorf("failed to check user: %w", err)
	}

	identity := normalizer.NormalizeIdentity(*raw)
	return &identity, nil
}

// Register creates a backend user for email.
func (s *UserService) Register(ctx context.Context, email string) (*entities.Identity, error) {
	email, err := s.normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	raw, err := s.gateway.CreateUser(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	identity := normalizer.NormalizeIdentity(*raw)
	s.logger.WithUserID(identity.ID).Infow("User created")
	return &identity, nil
}

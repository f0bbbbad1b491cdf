package users

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/stockroom-hq/stockroom/internal/shared"
)

// RepositoryPort abstracts user persistence for the service.
type RepositoryPort interface {
	GetByID(ctx context.Context, id int64) (User, error)
	GetByToken(ctx context.Context, token string) (User, error)
	ActiveIDsByRole(ctx context.Context, roles []string) ([]int64, error)
}

// Service resolves caller identity and role membership.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Resolve maps an opaque caller token to its actor identity.
func (s *Service) Resolve(ctx context.Context, token string) (shared.Actor, error) {
	if token == "" {
		return shared.Actor{}, fmt.Errorf("users: token required: %w", shared.ErrValidation)
	}
	u, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return shared.Actor{}, fmt.Errorf("users: unknown token: %w", shared.ErrNotFound)
		}
		return shared.Actor{}, err
	}
	return u.Actor(), nil
}

// ActiveUserIDsByRole lists active holders of any of the given roles. The
// set is resolved at call time, not persisted.
func (s *Service) ActiveUserIDsByRole(ctx context.Context, roles ...shared.Role) ([]int64, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return s.repo.ActiveIDsByRole(ctx, names)
}

// HashPassword derives a bcrypt hash for storage on the user row.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword verifies a password against its stored hash.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate checks the username and password and records the login time.
// Inactive accounts and unknown usernames return the same error so the
// response does not reveal which accounts exist.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if !user.IsActive {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	_ = s.repo.TouchLastLogin(ctx, user.ID)
	return user, nil
}

type CreateUserInput struct {
	Username string
	FullName string
	Role     Role
	Password string
}

func (s *Service) Create(ctx context.Context, input CreateUserInput) (User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.FullName = strings.TrimSpace(input.FullName)
	if input.Username == "" || input.FullName == "" {
		return User{}, fmt.Errorf("%w: username and full name required", ErrValidation)
	}
	if !input.Role.Valid() {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, input.Role)
	}
	if len(input.Password) < minPasswordLen {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.Create(ctx, User{
		Username:     input.Username,
		FullName:     input.FullName,
		Role:         input.Role,
		PasswordHash: string(hash),
	})
}

type UpdateUserInput struct {
	FullName *string
	Role     *Role
	IsActive *bool
}

func (s *Service) Update(ctx context.Context, id int64, input UpdateUserInput) (User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if input.FullName != nil {
		user.FullName = strings.TrimSpace(*input.FullName)
	}
	if input.Role != nil {
		if !input.Role.Valid() {
			return User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, *input.Role)
		}
		user.Role = *input.Role
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if err := s.repo.Update(ctx, id, user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Service) ChangePassword(ctx context.Context, id int64, current, next string) error {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	if len(next) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, id, string(hash))
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.Deactivate(ctx, id)
}

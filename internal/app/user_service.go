package app

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"botdesk/internal/model"
	"botdesk/internal/repository"
)

type UpdateUserInput struct {
	Name  string
	Email string
	Role  model.Role
}

type ChangePasswordInput struct {
	OldPassword string
	NewPassword string
}

// UserService is the admin surface over registered users.
type UserService struct {
	userRepo *repository.UserRepository
}

func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.userRepo.ListRegistered(ctx)
}

func (s *UserService) Get(ctx context.Context, id uint) (*model.User, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) Update(ctx context.Context, id uint, input UpdateUserInput) (*model.User, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	if id == 0 || name == "" || email == "" {
		return nil, ErrInvalidInput
	}
	if input.Role != "" && !input.Role.Valid() {
		return nil, ErrInvalidInput
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	taken, err := s.userRepo.EmailTakenByOther(ctx, email, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailExists
	}
	if err := s.userRepo.UpdateProfile(ctx, id, name, email, input.Role); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *UserService) Delete(ctx context.Context, id uint) error {
	if id == 0 {
		return ErrInvalidInput
	}
	deleted, err := s.userRepo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID uint, input ChangePasswordInput) error {
	oldPassword := strings.TrimSpace(input.OldPassword)
	newPassword := strings.TrimSpace(input.NewPassword)
	if oldPassword == "" || len(newPassword) < minPasswordLength {
		return ErrInvalidInput
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredential
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password failed: %w", err)
	}
	return s.userRepo.UpdatePassword(ctx, userID, string(hash))
}

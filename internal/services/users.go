package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"momolearn-backend/internal/models"
	"momolearn-backend/internal/repository"
	"momolearn-backend/internal/storage"
)

type userStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type userBlobIndex interface {
	ListStorageIDsByUser(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type UserService struct {
	users   userStore
	uploads userBlobIndex
	blobs   storage.Provider
	log     *zap.Logger
}

func NewUserService(users userStore, uploads userBlobIndex, blobs storage.Provider, log *zap.Logger) *UserService {
	return &UserService{users: users, uploads: uploads, blobs: blobs, log: log.Named("users")}
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Message: "User not found"}
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Update applies the fields present in req.
func (s *UserService) Update(ctx context.Context, id uuid.UUID, req models.UpdateUserRequest) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fieldErrors := make(map[string]string)
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			fieldErrors["name"] = "Name must not be blank"
		}
		user.Name = name
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if !emailRegex.MatchString(email) {
			fieldErrors["email"] = "Invalid email format"
		}
		user.Email = email
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	err = s.users.UpdateProfile(ctx, user)
	switch {
	case errors.Is(err, repository.ErrDuplicateEmail):
		return nil, &ConflictError{Message: "Email already in use"}
	case errors.Is(err, pgx.ErrNoRows):
		return nil, &NotFoundError{Message: "User not found"}
	case err != nil:
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// Delete removes the user and, through cascading foreign keys, everything
// they own. Blobs are removed first; a blob that cannot be removed is
// logged and left behind.
func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	keys, err := s.uploads.ListStorageIDsByUser(ctx, id)
	if err != nil {
		return fmt.Errorf("list user uploads: %w", err)
	}
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.log.Warn("failed to delete blob", zap.String("key", key), zap.Error(err))
		}
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.Info("user deleted", zap.String("user_id", id.String()), zap.Int("blobs", len(keys)))
	return nil
}

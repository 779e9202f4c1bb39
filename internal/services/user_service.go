package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nanafox/tiny-cart/internal/apperr"
	"github.com/nanafox/tiny-cart/internal/models"
	"github.com/nanafox/tiny-cart/internal/repositories"
	"github.com/nanafox/tiny-cart/internal/storage"
	"github.com/nanafox/tiny-cart/pkg/logger"
)

// UserCreate is the input for signing up.
type UserCreate struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Username string `json:"username" validate:"required,max=30"`
	Role     string `json:"role" validate:"required,oneof=buyer seller"`
	Password string `json:"password" validate:"required,min=8,max=40"`
}

// UserUpdate carries the profile fields a user may change. Nil fields are left alone.
type UserUpdate struct {
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Username *string `json:"username" validate:"omitempty,min=1,max=30"`
	Role     *string `json:"role" validate:"omitempty,oneof=buyer seller"`
}

// PasswordChange is the input for changing the current user's password.
type PasswordChange struct {
	CurrentPassword string `json:"current_password" validate:"required,min=8,max=40"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=40"`
}

// UserService handles business logic related to users.
type UserService struct {
	users    repositories.UserRepository
	products repositories.ProductRepository
	orders   repositories.OrderRepository
	tx       repositories.Transactor
	blobs    storage.BlobStore
}

// NewUserService creates a new UserService.
func NewUserService(
	users repositories.UserRepository,
	products repositories.ProductRepository,
	orders repositories.OrderRepository,
	tx repositories.Transactor,
	blobs storage.BlobStore,
) *UserService {
	return &UserService{users: users, products: products, orders: orders, tx: tx, blobs: blobs}
}

// Create registers a new user. The password is hashed before it is stored.
func (s *UserService) Create(ctx context.Context, in UserCreate) (*models.User, error) {
	role, err := models.ParseRole(in.Role)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, err, "role must be buyer or seller")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	username, err := normalizeUsername(in.Username)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, apperr.New(apperr.Conflict, "username '%s' already taken", username)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperr.New(apperr.Conflict, "email '%s' already registered", email)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:    email,
		Username: username,
		Role:     role,
		Password: hash,
		IsActive: true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.Log.Info("user created", zap.String("user_id", user.ID.String()), zap.String("role", string(role)))
	return user, nil
}

// Get retrieves a single user by their ID.
func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetByUsername retrieves a single user by their username.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.users.GetByUsername(ctx, username)
}

// GetByEmail retrieves a single user by their email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// List retrieves one page of users.
func (s *UserService) List(ctx context.Context, page repositories.Page) ([]models.User, error) {
	return s.users.List(ctx, page)
}

// Update changes the profile of user id on behalf of actor.
func (s *UserService) Update(ctx context.Context, id, actor uuid.UUID, in UserUpdate) (*models.User, error) {
	fields := map[string]any{}
	if in.Email != nil {
		fields["email"] = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.Username != nil {
		username, err := normalizeUsername(*in.Username)
		if err != nil {
			return nil, err
		}
		fields["username"] = username
	}
	if in.Role != nil {
		role, err := models.ParseRole(*in.Role)
		if err != nil {
			return nil, apperr.Wrap(apperr.InvalidInput, err, "role must be buyer or seller")
		}
		fields["role"] = role
	}

	user, err := s.users.Update(ctx, id, actor, fields)
	if err != nil {
		if errors.Is(err, apperr.ErrForbidden) {
			logger.Log.Warn("user update rejected", zap.String("user_id", id.String()), zap.String("actor", actor.String()))
		}
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the password of actor after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, actor uuid.UUID, in PasswordChange) error {
	if err := validatePassword(in.NewPassword); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, actor)
	if err != nil {
		return err
	}
	if !CheckPassword(user.Password, in.CurrentPassword) {
		return apperr.New(apperr.InvalidCredentials, "Current password is incorrect")
	}

	hash, err := HashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	_, err = s.users.Update(ctx, actor, actor, map[string]any{"password": hash})
	return err
}

// Delete removes user id with their products, images and orders. Image blobs
// are removed after the database transaction commits.
func (s *UserService) Delete(ctx context.Context, id, actor uuid.UUID) error {
	var keys []string
	err := s.tx.RunAtomic(ctx, func(ctx context.Context) error {
		var err error
		if keys, err = s.users.ImageKeysOwnedBy(ctx, id); err != nil {
			return err
		}
		return s.users.Delete(ctx, id, actor)
	})
	if err != nil {
		return err
	}

	removeBlobs(ctx, s.blobs, keys)
	logger.Log.Info("user deleted", zap.String("user_id", id.String()), zap.Int("images", len(keys)))
	return nil
}

// Orders lists the order lines placed by user id.
func (s *UserService) Orders(ctx context.Context, id uuid.UUID, page repositories.Page) ([]models.Order, error) {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return nil, err
	}
	page.Join = "product"
	return s.orders.List(ctx, page, repositories.PlacedBy(id))
}

// Products lists the products listed by user id.
func (s *UserService) Products(ctx context.Context, id uuid.UUID, page repositories.Page) ([]models.Product, error) {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.products.List(ctx, page, repositories.OwnedBy(id))
}

func normalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", apperr.New(apperr.InvalidInput, "username must not be empty")
	}
	return username, nil
}

// removeBlobs deletes blobs best-effort; failures are logged, not returned.
func removeBlobs(ctx context.Context, blobs storage.BlobStore, keys []string) {
	for _, key := range keys {
		if err := blobs.Delete(ctx, key); err != nil {
			logger.Log.Warn("failed to remove image blob", zap.String("key", key), zap.Error(err))
		}
	}
}

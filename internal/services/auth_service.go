package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nanafox/tiny-cart/internal/apperr"
	"github.com/nanafox/tiny-cart/internal/models"
	"github.com/nanafox/tiny-cart/internal/repositories"
	"github.com/nanafox/tiny-cart/pkg/logger"
)

// Claims is the payload of an access token. The subject carries the user id.
type Claims struct {
	Email string `json:"email"`
	jwt.StandardClaims
}

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Expires     time.Time `json:"expires"`
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo  repositories.UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time

	// checkPassword compares a stored hash with a login attempt.
	checkPassword func(hash, password string) bool
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		now:       time.Now,

		checkPassword: CheckPassword,
	}
}

var errInvalidCredentials = apperr.New(apperr.InvalidCredentials, "Invalid credentials")

// dummyPasswordHash is compared against when the email is unknown, so both
// login failures cost one bcrypt comparison.
var dummyPasswordHash = sync.OnceValue(func() string {
	hash, err := HashPassword("tiny-cart-unknown-user")
	if err != nil {
		panic(err)
	}
	return hash
})

// Login checks email and password and issues a token. Unknown emails and wrong
// passwords fail with the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Token, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.checkPassword(dummyPasswordHash(), password)
			logger.Log.Warn("login failed", zap.String("reason", "unknown email"))
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	if !s.checkPassword(user.Password, password) {
		logger.Log.Warn("login failed", zap.String("user_id", user.ID.String()), zap.String("reason", "password mismatch"))
		return nil, errInvalidCredentials
	}
	if !user.IsActive {
		logger.Log.Warn("login failed", zap.String("user_id", user.ID.String()), zap.String("reason", "inactive"))
		return nil, errInvalidCredentials
	}

	return s.IssueToken(user)
}

// IssueToken signs a new access token for user.
func (s *AuthService) IssueToken(user *models.User) (*Token, error) {
	now := s.now()
	expires := now.Add(s.tokenTTL)

	claims := Claims{
		Email: user.Email,
		StandardClaims: jwt.StandardClaims{
			Subject:   user.ID.String(),
			IssuedAt:  now.Unix(),
			ExpiresAt: expires.Unix(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &Token{AccessToken: signed, TokenType: "bearer", Expires: expires.UTC()}, nil
}

// VerifyToken checks signature, expiry and required claims, and returns the
// subject's user id.
func (s *AuthService) VerifyToken(tokenString string) (uuid.UUID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, apperr.Wrap(apperr.Unauthorized, err, "Could not validate credentials")
	}

	if claims.ExpiresAt == 0 || claims.Email == "" {
		return uuid.Nil, apperr.New(apperr.Unauthorized, "Could not validate credentials")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.Unauthorized, err, "Could not validate credentials")
	}
	return id, nil
}

// Authenticate resolves a bearer token to the active user it was issued for.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*models.User, error) {
	id, err := s.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.New(apperr.Unauthorized, "Could not validate credentials")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.New(apperr.Unauthorized, "Inactive user")
	}
	return user, nil
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/gchat-dev/gchat-api/internal/apperrors"
	"github.com/gchat-dev/gchat-api/internal/dto"
	"github.com/gchat-dev/gchat-api/internal/models"
	"github.com/gchat-dev/gchat-api/internal/repository"
)

// AuthService authenticates users. Unknown usernames are registered on the
// fly with the configured starting star balance.
type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (dto.AuthResponse, error)
	VerifyToken(tokenString string) (uint, string, error)
}

type authService struct {
	users           repository.UserRepository
	validator       *validator.Validate
	secret          []byte
	tokenTTL        time.Duration
	startingBalance int64
	logger          zerolog.Logger
}

// NewAuthService constructs the authentication service.
func NewAuthService(users repository.UserRepository, validate *validator.Validate, secret string, tokenTTL time.Duration, startingBalance int64, logger zerolog.Logger) AuthService {
	return &authService{
		users:           users,
		validator:       validate,
		secret:          []byte(secret),
		tokenTTL:        tokenTTL,
		startingBalance: startingBalance,
		logger:          logger.With().Str("component", "auth_service").Logger(),
	}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (dto.AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, apperrors.New(apperrors.CodeInvalidArgument, "username and password are required")
	}

	user, err := s.users.FindByUsername(ctx, req.Username)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user, err = s.register(ctx, req)
		if err != nil {
			return dto.AuthResponse{}, err
		}
	case err != nil:
		return dto.AuthResponse{}, err
	default:
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			return dto.AuthResponse{}, apperrors.New(apperrors.CodeUnauthorized, "invalid credentials")
		}
	}

	token, err := s.issueToken(user)
	if err != nil {
		return dto.AuthResponse{}, err
	}

	return dto.AuthResponse{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
		Avatar:   user.Avatar,
	}, nil
}

func (s *authService) register(ctx context.Context, req dto.LoginRequest) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Avatar:       "default.jpg",
		StarsBalance: s.startingBalance,
		LastSeen:     time.Now().UTC(),
	}
	if err := s.users.Create(ctx, &user); err != nil {
		return models.User{}, err
	}

	s.logger.Info().Str("username", user.Username).Msg("registered new user")
	return user, nil
}

func (s *authService) issueToken(user models.User) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"username": user.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(s.tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifyToken parses and validates a token, returning the user ID and
// username. Used during the websocket upgrade.
func (s *authService) VerifyToken(tokenString string) (uint, string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.New(apperrors.CodeUnauthorized, "unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, "", apperrors.New(apperrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", apperrors.New(apperrors.CodeUnauthorized, "invalid token claims")
	}

	sub, ok := claims["sub"].(float64)
	if !ok || sub < 0 {
		return 0, "", apperrors.New(apperrors.CodeUnauthorized, "invalid token subject")
	}
	username, _ := claims["username"].(string)
	if username == "" {
		return 0, "", apperrors.New(apperrors.CodeUnauthorized, "invalid token subject")
	}

	return uint(sub), username, nil
}

package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ecommerce-api/models"
	"ecommerce-api/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// AuthService handles registration and token issuance. Checkout and the rest
// of the API only consume the resolved user id the middleware extracts from
// the token.
type AuthService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	logger    *zap.Logger
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret []byte, logger *zap.Logger) *AuthService {
	return &AuthService{userRepo: userRepo, jwtSecret: jwtSecret, logger: logger}
}

// Register creates a new user with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*models.User, *ServiceError) {
	if _, err := s.userRepo.FindByEmail(ctx, req.Email); err == nil {
		return nil, &ServiceError{StatusCode: http.StatusConflict, Message: "Email already exists"}
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("failed to check existing email", zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to create account"}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to create account"}
	}

	user := &models.User{
		ID:       uuid.New(),
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashed),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		s.logger.Error("failed to create user", zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to create account"}
	}

	return user, nil
}

// Login verifies credentials and issues a signed token.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, *ServiceError) {
	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ServiceError{StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"}
		}
		s.logger.Error("failed to fetch user", zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to log in"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, &ServiceError{StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"}
	}

	token, err := s.generateToken(user)
	if err != nil {
		s.logger.Error("failed to generate token", zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to generate token"}
	}

	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(tokenTTL.Seconds()),
	}, nil
}

// Me returns the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, *ServiceError) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ServiceError{StatusCode: http.StatusNotFound, Message: "User not found"}
		}
		s.logger.Error("failed to fetch user", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to fetch user"}
	}
	return user, nil
}

func (s *AuthService) generateToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"exp":     time.Now().Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

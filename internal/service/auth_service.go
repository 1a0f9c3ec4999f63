package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/suar-net/apios/internal/config"
	"github.com/suar-net/apios/internal/model"
	"github.com/suar-net/apios/internal/repository"
)

const tokenIssuer = "apios"

type authService struct {
	userRepo  repository.IUserRepository
	jwtConfig config.AuthConfig
	now       func() time.Time
}

func NewAuthService(userRepo repository.IUserRepository, jwtConfig config.AuthConfig) IAuthService {
	return &authService{
		userRepo:  userRepo,
		jwtConfig: jwtConfig,
		now:       time.Now,
	}
}

func (s *authService) Register(ctx context.Context, userReg *model.DTOUserRegisterRequest) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(userReg.Email))

	existingUser, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("error checking for existing email: %w", err)
	}
	if existingUser != nil {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(userReg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	now := s.now()
	user := model.User{
		FullName:     strings.TrimSpace(userReg.FullName),
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	newUserID, err := s.userRepo.Create(ctx, &user)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	user.ID = newUserID
	return &user, nil
}

func (s *authService) Login(ctx context.Context, userLog *model.DTOLoginRequest) (*model.DTOLoginResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(userLog.Email)))
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(userLog.Password))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	claims := &model.Claims{
		ID:    user.ID,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtConfig.JWTTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtConfig.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	return &model.DTOLoginResponse{
		AccessToken: tokenString,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtConfig.JWTTTL.Seconds()),
	}, nil
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*model.Claims, error) {
	claims := &model.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtConfig.JWTSecret), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/thetanav/bit-bridge/internal/core"
	"github.com/thetanav/bit-bridge/internal/model"
	"github.com/thetanav/bit-bridge/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

const tokenIssuer = "bit-bridge"

type authService struct {
	userRepo     repository.UserRepository
	jwtSecretKey []byte
	tokenTTL     time.Duration
	now          func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, jwtSecretKey string, tokenTTL time.Duration) core.AuthService {
	return &authService{
		userRepo:     userRepo,
		jwtSecretKey: []byte(jwtSecretKey),
		tokenTTL:     tokenTTL,
		now:          time.Now,
	}
}

func (s *authService) Register(ctx context.Context, login, password string) (*model.User, string, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, "", ErrInvalidCredentials
	}

	existingUser, err := s.userRepo.GetByLogin(ctx, login)
	if err != nil {
		return nil, "", err
	}
	if existingUser != nil {
		return nil, "", ErrUserAlreadyExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	user := &model.User{
		Principal:    model.NewPrincipal(),
		Login:        login,
		PasswordHash: string(hashedPassword),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrLoginTaken) {
			return nil, "", ErrUserAlreadyExists
		}
		return nil, "", err
	}

	token, err := s.generateToken(user.Principal)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

func (s *authService) Login(ctx context.Context, login, password string) (*model.User, string, error) {
	user, err := s.userRepo.GetByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.generateToken(user.Principal)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// ValidateToken resolves a token to its principal. The principal must still be
// known to the registry; tokens outliving their user are rejected.
func (s *authService) ValidateToken(ctx context.Context, tokenString string) (model.Principal, error) {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.Parser{
		ValidMethods: []string{jwt.SigningMethodHS256.Alg()},
	}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecretKey, nil
	})
	if err != nil {
		return model.Anonymous, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.ExpiresAt == nil {
		return model.Anonymous, ErrInvalidToken
	}

	principal, err := model.ParsePrincipal(claims.Subject)
	if err != nil || principal.IsAnonymous() {
		return model.Anonymous, ErrInvalidToken
	}

	user, err := s.userRepo.GetByPrincipal(ctx, principal)
	if err != nil {
		return model.Anonymous, fmt.Errorf("failed to look up principal: %w", err)
	}
	if user == nil {
		return model.Anonymous, fmt.Errorf("%w: unknown principal %s", ErrInvalidToken, principal)
	}
	return principal, nil
}

func (s *authService) generateToken(principal model.Principal) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   principal.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecretKey)
}

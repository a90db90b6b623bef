package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/thetanav/bit-bridge/internal/core"
	"github.com/thetanav/bit-bridge/internal/middlewareinternal"
	"github.com/thetanav/bit-bridge/internal/model"
	"github.com/thetanav/bit-bridge/internal/service"
	"go.uber.org/zap"
)

type AuthController struct {
	authService core.AuthService
	tokenTTL    time.Duration
	logger      *zap.Logger
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type principalResponse struct {
	Principal model.Principal `json:"principal"`
}

func NewAuthController(authService core.AuthService, tokenTTL time.Duration, logger *zap.Logger) *AuthController {
	return &AuthController{
		authService: authService,
		tokenTTL:    tokenTTL,
		logger:      logger,
	}
}

func (c *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	var request credentialsRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil {
		c.logger.Debug("Invalid request format", zap.Error(err))
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	user, token, err := c.authService.Register(r.Context(), request.Login, request.Password)
	if err != nil {
		c.logger.Warn("Registration failed",
			zap.String("login", request.Login),
			zap.Error(err))

		switch {
		case errors.Is(err, service.ErrUserAlreadyExists):
			http.Error(w, "Login already exists", http.StatusConflict)
		case errors.Is(err, service.ErrInvalidCredentials):
			http.Error(w, "Login and password are required", http.StatusBadRequest)
		default:
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	c.logger.Info("User registered successfully",
		zap.Stringer("principal", user.Principal),
		zap.String("login", user.Login))

	c.issueToken(w, r, user, token)
}

func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var request credentialsRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil {
		c.logger.Debug("Invalid request format", zap.Error(err))
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	user, token, err := c.authService.Login(r.Context(), request.Login, request.Password)
	if err != nil {
		c.logger.Warn("Login failed",
			zap.String("login", request.Login),
			zap.Error(err))

		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			http.Error(w, "Invalid login or password", http.StatusUnauthorized)
		default:
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	c.logger.Info("User logged in successfully",
		zap.Stringer("principal", user.Principal),
		zap.String("login", user.Login))

	c.issueToken(w, r, user, token)
}

// Principal reports who the caller is authenticated as.
func (c *AuthController) Principal(w http.ResponseWriter, r *http.Request) {
	principal, ok := middlewareinternal.GetPrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	render.JSON(w, r, principalResponse{Principal: principal})
}

func (c *AuthController) issueToken(w http.ResponseWriter, r *http.Request, user *model.User, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middlewareinternal.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(c.tokenTTL),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	w.Header().Set("Authorization", "Bearer "+token)
	render.JSON(w, r, principalResponse{Principal: user.Principal})
}

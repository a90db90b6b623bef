package middlewareinternal

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/thetanav/bit-bridge/internal/core"
	"github.com/thetanav/bit-bridge/internal/model"
	"github.com/thetanav/bit-bridge/internal/types"
	"github.com/thetanav/bit-bridge/internal/util/logger"
	"go.uber.org/zap"
)

const TokenCookie = "jwt"

var ErrNoToken = errors.New("no token")

// JWTAuthMiddleware resolves the caller principal from the jwt cookie or a
// Bearer Authorization header. The header is still tried when the cookie
// holds a stale token.
func JWTAuthMiddleware(authService core.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokens := extractTokens(r)
			if len(tokens) == 0 {
				logger.Log.Debug("Failed to extract token",
					zap.String("path", r.URL.Path),
					zap.Error(ErrNoToken))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			var lastErr error
			for _, tokenString := range tokens {
				principal, err := authService.ValidateToken(r.Context(), tokenString)
				if err != nil {
					lastErr = err
					continue
				}

				logger.Log.Debug("User authenticated",
					zap.Stringer("principal", principal),
					zap.String("path", r.URL.Path))

				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
				return
			}

			logger.Log.Warn("Invalid token",
				zap.String("path", r.URL.Path),
				zap.Error(lastErr))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}

// extractTokens returns the cookie token first, then the Bearer token.
func extractTokens(r *http.Request) []string {
	var tokens []string

	if cookie, err := r.Cookie(TokenCookie); err == nil && cookie.Value != "" {
		tokens = append(tokens, cookie.Value)
	}

	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		tokens = append(tokens, parts[1])
	}

	return tokens
}

func WithPrincipal(ctx context.Context, principal model.Principal) context.Context {
	return context.WithValue(ctx, types.PrincipalKey, principal)
}

// GetPrincipalFromContext returns the caller, or model.Anonymous when the
// request did not pass through JWTAuthMiddleware.
func GetPrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	principal, ok := ctx.Value(types.PrincipalKey).(model.Principal)
	if !ok {
		return model.Anonymous, false
	}
	return principal, true
}

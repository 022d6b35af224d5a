// Package middlewarectx содержит middleware аутентификации и авторизации,
// складывающие данные токена в контекст запроса.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-engine/internal/http/response"
	"github.com/magabrotheeeer/entitlement-engine/internal/lib/jwt"
	"github.com/magabrotheeeer/entitlement-engine/internal/lib/sl"
)

// Key тип ключа контекста запроса.
type Key string

const (
	// UserUIDKey ключ контекста с идентификатором пользователя.
	UserUIDKey Key = "user_uid"
	// EmailKey ключ контекста с email пользователя.
	EmailKey Key = "email"
	// EmailVerifiedKey ключ контекста с признаком подтверждённого email.
	EmailVerifiedKey Key = "email_verified"
	// RoleKey ключ контекста с ролью пользователя.
	RoleKey Key = "role"
	// IsInternalKey ключ контекста с признаком служебного аккаунта.
	IsInternalKey Key = "is_internal"
)

// TokenParser проверяет токен и возвращает его полезную нагрузку.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// JWTMiddleware проверяет заголовок Authorization и кладёт данные
// пользователя в контекст запроса.
func JWTMiddleware(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing authorization header"))
				return
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenStr == authHeader {
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid authorization header format"))
				return
			}

			claims, err := parser.ParseToken(tokenStr)
			if err != nil {
				log.Warn("failed to parse token", sl.Err(err))
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), UserUIDKey, claims.UserUID)
			ctx = context.WithValue(ctx, EmailKey, claims.Email)
			ctx = context.WithValue(ctx, EmailVerifiedKey, claims.EmailVerified)
			ctx = context.WithValue(ctx, RoleKey, claims.Role)
			ctx = context.WithValue(ctx, IsInternalKey, claims.IsInternal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

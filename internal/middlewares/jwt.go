package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Renal37/orderbridge/internal/models"
	"github.com/Renal37/orderbridge/internal/services"
)

type operatorFieldType string

const operatorField operatorFieldType = "operatorField"

// AuthMiddlewareConfig настраивает проверку bearer-токена оператора.
type AuthMiddlewareConfig struct {
	excludePaths []string
}

func AuthMiddleware() *AuthMiddlewareConfig {
	return &AuthMiddlewareConfig{}
}

// WithExcludedPaths задаёт префиксы путей, которые не требуют токена.
func (a *AuthMiddlewareConfig) WithExcludedPaths(paths ...string) *AuthMiddlewareConfig {
	a.excludePaths = paths
	return a
}

func (a *AuthMiddlewareConfig) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, path := range a.excludePaths {
			if strings.HasPrefix(r.URL.Path, path) {
				next.ServeHTTP(w, r)
				return
			}
		}

		authService, ok := GetServiceFromContext[models.AuthService](w, r, AuthServiceKey)
		if !ok {
			return
		}
		jwtService, ok := GetServiceFromContext[models.JWTService](w, r, JwtServiceKey)
		if !ok {
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Требуется заголовок Authorization", http.StatusUnauthorized)
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || tokenString == "" {
			http.Error(w, "Токен Bearer пуст", http.StatusUnauthorized)
			return
		}

		token, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, services.ErrTokenIsExpired) {
				http.Error(w, "Токен истёк", http.StatusUnauthorized)
				return
			}

			http.Error(w, "Неверный токен", http.StatusUnauthorized)
			return
		}

		login, err := token.Claims.GetSubject()
		if err != nil || login == "" {
			http.Error(w, "В токене нет поля sub", http.StatusUnauthorized)
			return
		}

		operator, err := authService.GetOperator(r.Context(), login)
		if err != nil {
			if errors.Is(err, services.ErrOperatorIsNotExist) {
				http.Error(w, "Оператор не существует", http.StatusUnauthorized)
				return
			}

			http.Error(w, "Произошла ошибка при проверке оператора", http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), operatorField, operator)))
	})
}

// GetOperatorFromContext возвращает оператора, прошедшего проверку токена.
func GetOperatorFromContext(r *http.Request) (*models.Operator, bool) {
	operator, ok := r.Context().Value(operatorField).(*models.Operator)
	return operator, ok
}

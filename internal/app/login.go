package router

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Renal37/orderbridge/internal/middlewares"
	"github.com/Renal37/orderbridge/internal/models"
	"github.com/Renal37/orderbridge/internal/services"
)

// IsUnknownOperatorDataValid проверяет, что в запросе есть и логин, и пароль.
func IsUnknownOperatorDataValid(data models.UnknownOperator) bool {
	return data.Login != nil && *data.Login != "" && data.Password != nil && *data.Password != ""
}

// Register регистрирует оператора панели и сразу выдаёт ему токен.
func Register(w http.ResponseWriter, r *http.Request) {
	data, ok := middlewares.GetParsedJSONData[models.UnknownOperator](w, r)
	if !ok {
		return
	}

	authService, ok := middlewares.GetServiceFromContext[models.AuthService](w, r, middlewares.AuthServiceKey)
	if !ok {
		return
	}
	jwtService, ok := middlewares.GetServiceFromContext[models.JWTService](w, r, middlewares.JwtServiceKey)
	if !ok {
		return
	}

	if !IsUnknownOperatorDataValid(data) {
		http.Error(w, "Запрос не содержит логин или пароль", http.StatusBadRequest)
		return
	}

	if err := authService.Register(r.Context(), data); err != nil {
		if errors.Is(err, services.ErrOperatorIsAlreadyRegistered) {
			http.Error(w, "Оператор уже зарегистрирован", http.StatusConflict)
			return
		}

		http.Error(w, fmt.Sprintf("Произошла ошибка при регистрации: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	token, err := jwtService.GenerateJWT(*data.Login)
	if err != nil {
		http.Error(w, fmt.Sprintf("Ошибка при генерации JWT токена: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Authorization", fmt.Sprintf("Bearer %s", token))
}

// Login проверяет пароль оператора и возвращает JWT в заголовке Authorization.
func Login(w http.ResponseWriter, r *http.Request) {
	data, ok := middlewares.GetParsedJSONData[models.UnknownOperator](w, r)
	if !ok {
		return
	}

	authService, ok := middlewares.GetServiceFromContext[models.AuthService](w, r, middlewares.AuthServiceKey)
	if !ok {
		return
	}
	jwtService, ok := middlewares.GetServiceFromContext[models.JWTService](w, r, middlewares.JwtServiceKey)
	if !ok {
		return
	}

	if !IsUnknownOperatorDataValid(data) {
		http.Error(w, "Запрос не содержит логин или пароль", http.StatusBadRequest)
		return
	}

	if err := authService.Login(r.Context(), data); err != nil {
		if errors.Is(err, services.ErrOperatorIsNotExist) {
			http.Error(w, fmt.Sprintf("Оператор с логином %s не существует", *data.Login), http.StatusUnauthorized)
			return
		}

		if errors.Is(err, services.ErrPasswordIsIncorrect) {
			http.Error(w, "Неверный пароль", http.StatusUnauthorized)
			return
		}

		http.Error(w, fmt.Sprintf("Произошла ошибка при входе: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	token, err := jwtService.GenerateJWT(*data.Login)
	if err != nil {
		http.Error(w, fmt.Sprintf("Ошибка при генерации JWT токена: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Authorization", fmt.Sprintf("Bearer %s", token))
}

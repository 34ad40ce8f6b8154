package router

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Renal37/orderbridge/internal/logger"
	"github.com/Renal37/orderbridge/internal/middlewares"
	"github.com/Renal37/orderbridge/internal/models"
	"github.com/Renal37/orderbridge/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// GetOrders возвращает последние заказы. Параметр limit необязателен.
func GetOrders(w http.ResponseWriter, r *http.Request) {
	orderService, ok := middlewares.GetServiceFromContext[models.OrderService](w, r, middlewares.OrderServiceKey)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "Параметр limit должен быть неотрицательным числом", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	orders, err := orderService.GetOrders(r.Context(), limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Произошла ошибка при получении заказов: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	middlewares.EncodeJSONResponse(w, http.StatusOK, orders)
}

// GetOrder возвращает заказ с позициями.
func GetOrder(w http.ResponseWriter, r *http.Request) {
	orderService, ok := middlewares.GetServiceFromContext[models.OrderService](w, r, middlewares.OrderServiceKey)
	if !ok {
		return
	}

	order, err := orderService.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			http.Error(w, "Заказ не найден", http.StatusNotFound)
			return
		}

		http.Error(w, fmt.Sprintf("Произошла ошибка при получении заказа: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	middlewares.EncodeJSONResponse(w, http.StatusOK, order)
}

// ChangeOrderStatus применяет решение оператора. Переход на маркетплейсе уходит в фоне, поэтому 202.
func ChangeOrderStatus(w http.ResponseWriter, r *http.Request) {
	data, ok := middlewares.GetParsedJSONData[models.StatusChange](w, r)
	if !ok {
		return
	}

	if data.Status == nil || *data.Status == "" {
		http.Error(w, "Запрос не содержит статус", http.StatusBadRequest)
		return
	}

	orderService, ok := middlewares.GetServiceFromContext[models.OrderService](w, r, middlewares.OrderServiceKey)
	if !ok {
		return
	}

	err := orderService.ChangeStatus(r.Context(), chi.URLParam(r, "id"), *data.Status)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			http.Error(w, "Заказ не найден", http.StatusNotFound)
		case errors.Is(err, services.ErrInvalidStatus):
			http.Error(w, fmt.Sprintf("Неизвестный статус %s", *data.Status), http.StatusUnprocessableEntity)
		case errors.Is(err, services.ErrTransitionNotAllowed):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, services.ErrStatusPushUnavailable):
			http.Error(w, "Очередь отправки статусов переполнена", http.StatusServiceUnavailable)
		default:
			http.Error(w, fmt.Sprintf("Произошла ошибка при смене статуса: %s", err.Error()), http.StatusInternalServerError)
		}
		return
	}

	if operator, ok := middlewares.GetOperatorFromContext(r); ok {
		logger.Log.Info("order status changed by operator",
			zap.String("order_id", chi.URLParam(r, "id")),
			zap.String("status", string(*data.Status)),
			zap.String("operator", operator.Login),
		)
	}

	w.WriteHeader(http.StatusAccepted)
}

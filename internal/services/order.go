package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Renal37/orderbridge/internal/database"
	"github.com/Renal37/orderbridge/internal/logger"
	"github.com/Renal37/orderbridge/internal/marketplace"
	"github.com/Renal37/orderbridge/internal/metrics"
	"github.com/Renal37/orderbridge/internal/models"
	"github.com/Renal37/orderbridge/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrOrderNotFound         = errors.New("заказ не найден")
	ErrInvalidStatus         = errors.New("неизвестный статус заказа")
	ErrTransitionNotAllowed  = errors.New("переход статуса не разрешён")
	ErrStatusPushUnavailable = errors.New("очередь отправки статусов недоступна")
)

const (
	DefaultOrdersLimit = 50
	MaxOrdersLimit     = 500
)

// remoteActionFor is the marketplace transition an operator status change triggers.
// Closing is done by the marketplace itself, so CLOSED has no action.
var remoteActionFor = map[models.LocalStatus]models.EventCode{
	models.StatusPreparing: models.CodeConfirmed,
	models.StatusReady:     models.CodeReadyToPickup,
	models.StatusDelivered: models.CodeDispatched,
	models.StatusCancelled: models.CodeCancellationRequested,
}

// OrderService выполняет операции панели над заказами.
type OrderService struct {
	storage orderStorage
	client  models.MarketplaceClient
	queue   *JobQueueService
}

type orderStorage interface {
	FindOrders(ctx context.Context, limit int) ([]database.OrderDB, error)
	FindOrderByID(ctx context.Context, orderID uuid.UUID) (*database.OrderDB, error)
	FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItemDB, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, update database.StatusUpdate) error
	AddOrderNote(ctx context.Context, orderID uuid.UUID, note string) error
}

func NewOrderService(storage orderStorage, client models.MarketplaceClient, queue *JobQueueService) *OrderService {
	return &OrderService{storage: storage, client: client, queue: queue}
}

// GetOrders возвращает последние заказы, новые первыми. Позиции не загружаются.
func (o *OrderService) GetOrders(ctx context.Context, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = DefaultOrdersLimit
	}
	if limit > MaxOrdersLimit {
		limit = MaxOrdersLimit
	}

	orders, err := o.storage.FindOrders(ctx, limit)
	if err != nil {
		return nil, err
	}

	result := make([]models.Order, 0, len(orders))
	for _, order := range orders {
		result = append(result, toOrderModel(order, nil))
	}

	return result, nil
}

// GetOrder возвращает заказ вместе с позициями.
func (o *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := o.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	items, err := o.storage.FindOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	result := toOrderModel(*order, items)
	return &result, nil
}

// ChangeStatus применяет решение оператора и отправляет переход на маркетплейс в фоне.
// Отмена только запрашивается: локальный статус станет CANCELLED после события маркетплейса.
func (o *OrderService) ChangeStatus(ctx context.Context, orderID string, status models.LocalStatus) error {
	if !status.IsValid() {
		return ErrInvalidStatus
	}

	order, err := o.findOrder(ctx, orderID)
	if err != nil {
		return err
	}

	current := order.Status.LocalStatus
	if current == status || !current.CanAdvanceTo(status) {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, current, status)
	}

	if code, ok := remoteActionFor[status]; ok && order.RemoteOrderID != "" {
		if err := o.queue.Enqueue(o.pushStatusJob(order.RemoteOrderID, code)); err != nil {
			return fmt.Errorf("%w: %v", ErrStatusPushUnavailable, err)
		}
	}

	if status == models.StatusCancelled {
		return o.storage.AddOrderNote(ctx, order.ID, "Cancellation requested by operator")
	}

	update := database.StatusUpdate{
		LocalStatus:  status,
		RemoteStatus: models.EventCode(order.RemoteStatus),
	}
	if status == models.StatusClosed {
		closedAt := time.Now()
		update.ClosedAt = &closedAt
	}
	if err := o.storage.UpdateOrderStatus(ctx, order.ID, update); err != nil {
		return err
	}
	metrics.StatusUpdatesTotal.WithLabelValues("operator").Inc()

	return nil
}

func (o *OrderService) findOrder(ctx context.Context, orderID string) (*database.OrderDB, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	order, err := o.storage.FindOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	return order, nil
}

// pushStatusJob отправляет переход на маркетплейс. На 429 очередь встаёт на паузу
// на Retry-After, а задание планируется повторно.
func (o *OrderService) pushStatusJob(remoteOrderID string, code models.EventCode) Job {
	var job Job

	job = func(ctx context.Context) {
		result, err := o.client.UpdateOrderStatus(ctx, remoteOrderID, code)
		if err == nil {
			logger.Log.Info("order status pushed",
				zap.String("remote_order_id", remoteOrderID),
				zap.String("code", string(code)),
				zap.Bool("async", result.IsAsync),
			)
			return
		}

		var statusErr *marketplace.StatusError
		if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
			logger.Log.Warn("marketplace throttled status push",
				zap.String("remote_order_id", remoteOrderID),
				zap.Duration("retry_after", statusErr.RetryAfter),
			)
			o.queue.PauseAndResume(statusErr.RetryAfter)
			o.queue.ScheduleJob(job, statusErr.RetryAfter)
			return
		}

		logger.Log.Error("failed to push order status",
			zap.String("remote_order_id", remoteOrderID),
			zap.String("code", string(code)),
			zap.Error(err),
		)
	}

	return job
}

func toOrderModel(order database.OrderDB, items []database.OrderItemDB) models.Order {
	result := models.Order{
		ID:              order.ID.String(),
		RemoteOrderID:   order.RemoteOrderID,
		RemoteDisplayID: order.RemoteDisplayID,
		Customer:        order.Customer,
		Kind:            models.OrderKind(order.Kind),
		Total:           order.Total,
		Status:          order.Status.LocalStatus,
		RemoteStatus:    models.EventCode(order.RemoteStatus),
		CreatedAt:       utils.NewRFC3339Date(order.CreatedAt),
	}

	if order.ClosedAt != nil {
		closedAt := utils.NewRFC3339Date(*order.ClosedAt)
		result.ClosedAt = &closedAt
	}

	if len(items) > 0 {
		result.Items = make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			var productID *string
			if item.ProductID != nil {
				id := item.ProductID.String()
				productID = &id
			}

			result.Items = append(result.Items, models.OrderItem{
				ProductID:    productID,
				RemoteLineID: item.RemoteLineID,
				SKU:          item.SKU,
				Name:         item.Name,
				UnitPrice:    item.UnitPrice,
				Quantity:     item.Quantity,
			})
		}
	}

	return result
}

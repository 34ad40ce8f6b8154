package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Renal37/orderbridge/internal/database"
	"github.com/Renal37/orderbridge/internal/logger"
	"github.com/Renal37/orderbridge/internal/metrics"
	"github.com/Renal37/orderbridge/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// orderRepository is the storage the reconciler and the sync pass work against.
type orderRepository interface {
	FindOrderByRemoteID(ctx context.Context, remoteOrderID string) (*database.OrderDB, error)
	CreateOrderWithItems(ctx context.Context, order database.OrderDB, items []database.OrderItemDB) (*database.OrderDB, bool, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, update database.StatusUpdate) error
	FindProductMappingBySKU(ctx context.Context, sku string) (*database.ProductMappingDB, error)
	FindProductBySKU(ctx context.Context, sku string) (*database.ProductDB, error)
	CreateProductMapping(ctx context.Context, remoteLineID, sku string, productID uuid.UUID) error
	AddOrderNote(ctx context.Context, orderID uuid.UUID, note string) error
	FindSyncableOrders(ctx context.Context) ([]database.OrderDB, error)
}

type outcome string

const (
	outcomeCreated   outcome = "created"
	outcomeDuplicate outcome = "duplicate"
	outcomeUpdated   outcome = "updated"
	outcomeUnchanged outcome = "unchanged"
	outcomeRejected  outcome = "rejected"
	outcomeOrphan    outcome = "orphan"
	outcomeNoted     outcome = "noted"
	outcomeUnknown   outcome = "unknown"
	outcomeMalformed outcome = "malformed"
	outcomeError     outcome = "error"
)

// Reconciler applies marketplace events to local orders. It is shared by the polling
// cycle and the webhook, which may call Reconcile concurrently.
type Reconciler struct {
	repo        orderRepository
	client      models.MarketplaceClient
	autoConfirm bool
	now         func() time.Time
}

// NewReconciler builds a reconciler. With autoConfirm set, every order created here is
// confirmed on the marketplace right away; the local status still waits for the
// CONFIRMED event.
func NewReconciler(repo orderRepository, client models.MarketplaceClient, autoConfirm bool) *Reconciler {
	return &Reconciler{
		repo:        repo,
		client:      client,
		autoConfirm: autoConfirm,
		now:         time.Now,
	}
}

// Reconcile processes a batch of events in createdAt order. Every event with an id ends
// up in AcknowledgeIDs exactly once, whatever happened to it.
func (r *Reconciler) Reconcile(ctx context.Context, events []models.RemoteEvent) models.ReconcileResult {
	ordered := make([]models.RemoteEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	result := models.ReconcileResult{AcknowledgeIDs: make([]string, 0, len(ordered))}
	seen := make(map[string]struct{}, len(ordered))

	var errs error
	for _, event := range ordered {
		if event.ID == "" {
			logger.Log.Warn("skipping event without id", zap.String("code", string(event.Code)), zap.String("order_id", event.OrderID))
			metrics.EventsTotal.WithLabelValues(string(outcomeMalformed)).Inc()
			result.Skipped++
			continue
		}

		if _, ok := seen[event.ID]; ok {
			metrics.EventsTotal.WithLabelValues(string(outcomeDuplicate)).Inc()
			result.Skipped++
			continue
		}
		seen[event.ID] = struct{}{}
		result.AcknowledgeIDs = append(result.AcknowledgeIDs, event.ID)

		out, err := r.apply(ctx, event)
		if err != nil {
			out = outcomeError
			errs = multierr.Append(errs, fmt.Errorf("event %s (%s): %w", event.ID, event.Code, err))
			logger.Log.Error("failed to reconcile event",
				zap.String("event_id", event.ID),
				zap.String("code", string(event.Code)),
				zap.String("order_id", event.OrderID),
				zap.Error(err),
			)
		}
		metrics.EventsTotal.WithLabelValues(string(out)).Inc()

		switch out {
		case outcomeCreated:
			result.Created++
		case outcomeUpdated:
			result.Updated++
		case outcomeError:
			result.Errors++
		default:
			result.Skipped++
		}
	}

	if errs != nil {
		logger.Log.Warn("reconciliation finished with errors",
			zap.Int("events", len(events)),
			zap.Int("errors", result.Errors),
			zap.Error(errs),
		)
	}

	return result
}

func (r *Reconciler) apply(ctx context.Context, event models.RemoteEvent) (outcome, error) {
	class := models.Classify(event.Code)

	if class == models.EventClassUnknown {
		logger.Log.Warn("skipping event with unknown code",
			zap.String("event_id", event.ID),
			zap.String("code", string(event.Code)),
		)
		return outcomeUnknown, nil
	}

	if event.OrderID == "" {
		logger.Log.Warn("skipping event without order id",
			zap.String("event_id", event.ID),
			zap.String("code", string(event.Code)),
		)
		return outcomeMalformed, nil
	}

	switch class {
	case models.EventClassCreation:
		return r.createOrder(ctx, event)
	case models.EventClassStatusAdvance, models.EventClassCancellation:
		return r.advanceStatus(ctx, event)
	case models.EventClassCancellationRequested, models.EventClassCancellationFailed:
		return r.addNote(ctx, event, class)
	}

	return outcomeUnknown, nil
}

func (r *Reconciler) createOrder(ctx context.Context, event models.RemoteEvent) (outcome, error) {
	existing, err := r.repo.FindOrderByRemoteID(ctx, event.OrderID)
	if err != nil {
		return outcomeError, err
	}
	if existing != nil {
		return outcomeDuplicate, nil
	}

	remote, err := r.client.GetOrderDetails(ctx, event.OrderID)
	if err != nil {
		return outcomeError, fmt.Errorf("failed to fetch order details: %w", err)
	}

	stored, created, err := r.storeRemoteOrder(ctx, event.OrderID, remote, event.CreatedAt)
	if err != nil {
		return outcomeError, err
	}
	if !created {
		return outcomeDuplicate, nil
	}

	logger.Log.Info("order created",
		zap.String("order_id", stored.ID.String()),
		zap.String("remote_order_id", stored.RemoteOrderID),
		zap.String("total", stored.Total.String()),
	)

	if r.autoConfirm {
		r.confirm(ctx, stored.RemoteOrderID)
	}

	return outcomeCreated, nil
}

// storeRemoteOrder creates the order together with its items. An existing row is returned
// as is with created == false.
func (r *Reconciler) storeRemoteOrder(ctx context.Context, remoteOrderID string, remote *models.RemoteOrder, fallbackCreatedAt time.Time) (*database.OrderDB, bool, error) {
	items, computed := r.resolveItems(ctx, remote.Items)

	total := computed
	if remote.Total.Valid {
		total = remote.Total.Decimal
	}

	createdAt := remote.CreatedAt
	if createdAt.IsZero() {
		createdAt = fallbackCreatedAt
	}

	kind := remote.Kind
	if kind == "" {
		kind = models.KindDelivery
	}

	stored, created, err := r.repo.CreateOrderWithItems(ctx, database.OrderDB{
		RemoteOrderID:   remoteOrderID,
		RemoteDisplayID: remote.DisplayID,
		Customer:        remote.CustomerName,
		Kind:            string(kind),
		Total:           total,
		Status:          database.LocalStatusDB{LocalStatus: models.StatusPending},
		RemoteStatus:    string(models.CodePlaced),
		CreatedAt:       createdAt,
	}, items)
	if err != nil {
		return nil, false, err
	}
	if created {
		metrics.OrdersCreatedTotal.Inc()
	}

	return stored, created, nil
}

// resolveItems maps every remote line to a catalog product when it can. Lines that cannot
// be mapped are kept with a nil product id. Quantities are stored as reported; the second
// value is Σ price × quantity over the lines with a positive quantity.
func (r *Reconciler) resolveItems(ctx context.Context, remoteItems []models.RemoteOrderItem) ([]database.OrderItemDB, decimal.Decimal) {
	items := make([]database.OrderItemDB, 0, len(remoteItems))
	total := decimal.Zero

	for _, remoteItem := range remoteItems {
		item := database.OrderItemDB{
			RemoteLineID: remoteItem.ID,
			SKU:          remoteItem.SKU,
			Name:         remoteItem.Name,
			UnitPrice:    remoteItem.UnitPrice,
			Quantity:     remoteItem.Quantity,
		}
		item.ProductID = r.resolveProduct(ctx, remoteItem)

		if item.Quantity > 0 {
			total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		} else {
			logger.Log.Warn("order line has a non-positive quantity",
				zap.String("remote_line_id", item.RemoteLineID),
				zap.String("sku", item.SKU),
				zap.Int("quantity", item.Quantity),
			)
		}
		items = append(items, item)
	}

	return items, total
}

func (r *Reconciler) resolveProduct(ctx context.Context, item models.RemoteOrderItem) *uuid.UUID {
	if item.SKU == "" {
		return nil
	}

	mapping, err := r.repo.FindProductMappingBySKU(ctx, item.SKU)
	if err != nil {
		logger.Log.Warn("failed to look up product mapping", zap.String("sku", item.SKU), zap.Error(err))
		return nil
	}
	if mapping != nil {
		productID := mapping.ProductID
		return &productID
	}

	product, err := r.repo.FindProductBySKU(ctx, item.SKU)
	if err != nil {
		logger.Log.Warn("failed to look up product", zap.String("sku", item.SKU), zap.Error(err))
		return nil
	}
	if product == nil {
		logger.Log.Info("order line left unmapped", zap.String("sku", item.SKU), zap.String("name", item.Name))
		return nil
	}

	if err := r.repo.CreateProductMapping(ctx, item.ID, item.SKU, product.ID); err != nil {
		logger.Log.Warn("failed to save product mapping", zap.String("sku", item.SKU), zap.Error(err))
	}

	productID := product.ID
	return &productID
}

func (r *Reconciler) confirm(ctx context.Context, remoteOrderID string) {
	result, err := r.client.UpdateOrderStatus(ctx, remoteOrderID, models.CodeConfirmed)
	if err != nil {
		logger.Log.Warn("failed to auto-confirm order", zap.String("remote_order_id", remoteOrderID), zap.Error(err))
		return
	}

	logger.Log.Info("order auto-confirmed",
		zap.String("remote_order_id", remoteOrderID),
		zap.Bool("async", result.IsAsync),
	)
}

func (r *Reconciler) advanceStatus(ctx context.Context, event models.RemoteEvent) (outcome, error) {
	order, err := r.repo.FindOrderByRemoteID(ctx, event.OrderID)
	if err != nil {
		return outcomeError, err
	}
	if order == nil {
		logger.Log.Info("status event for unknown order",
			zap.String("event_id", event.ID),
			zap.String("code", string(event.Code)),
			zap.String("remote_order_id", event.OrderID),
		)
		return outcomeOrphan, nil
	}

	target, ok := models.LocalStatusFor(event.Code)
	if !ok {
		return outcomeUnknown, nil
	}

	current := order.Status.LocalStatus
	if !current.CanAdvanceTo(target) {
		logger.Log.Info("ignoring status regression",
			zap.String("order_id", order.ID.String()),
			zap.String("from", string(current)),
			zap.String("to", string(target)),
			zap.String("code", string(event.Code)),
		)
		return outcomeRejected, nil
	}

	if current == target && order.RemoteStatus == string(event.Code) {
		return outcomeUnchanged, nil
	}

	update := database.StatusUpdate{
		LocalStatus:  target,
		RemoteStatus: event.Code,
	}
	if event.Code == models.CodeConcluded && order.ClosedAt == nil {
		closedAt := event.CreatedAt
		if closedAt.IsZero() {
			closedAt = r.now()
		}
		update.ClosedAt = &closedAt
	}

	if err := r.repo.UpdateOrderStatus(ctx, order.ID, update); err != nil {
		return outcomeError, err
	}
	metrics.StatusUpdatesTotal.WithLabelValues("event").Inc()

	logger.Log.Info("order status updated",
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(current)),
		zap.String("to", string(target)),
		zap.String("code", string(event.Code)),
	)

	return outcomeUpdated, nil
}

func (r *Reconciler) addNote(ctx context.Context, event models.RemoteEvent, class models.EventClass) (outcome, error) {
	order, err := r.repo.FindOrderByRemoteID(ctx, event.OrderID)
	if err != nil {
		return outcomeError, err
	}
	if order == nil {
		return outcomeOrphan, nil
	}

	if err := r.repo.AddOrderNote(ctx, order.ID, cancellationNote(class, event)); err != nil {
		return outcomeError, err
	}

	return outcomeNoted, nil
}

// cancellationNote renders the audit note for informational cancellation events.
func cancellationNote(class models.EventClass, event models.RemoteEvent) string {
	var b strings.Builder

	if class == models.EventClassCancellationFailed {
		b.WriteString("Marketplace rejected the cancellation request")
	} else {
		b.WriteString("Cancellation requested on the marketplace")
	}

	keys := make([]string, 0, len(event.Metadata))
	for key := range event.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for i, key := range keys {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(event.Metadata[key])
	}

	return b.String()
}

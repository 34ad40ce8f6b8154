package services

import (
	"context"
	"fmt"

	"github.com/Renal37/orderbridge/internal/database"
	"github.com/Renal37/orderbridge/internal/logger"
	"github.com/Renal37/orderbridge/internal/metrics"
	"github.com/Renal37/orderbridge/internal/models"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultSyncConcurrency = 4

// StatusSyncResult counts what one sync pass did.
type StatusSyncResult struct {
	Synced  int
	Updated int
	Errors  int
}

// StatusSync re-derives the local status of open orders from the marketplace. Unlike the
// reconciler it may move a status backwards, but only on an answer of the details endpoint.
// A polled event used as a fallback advances the status like the reconciler does.
type StatusSync struct {
	reconciler  *Reconciler
	concurrency int
}

func NewStatusSync(reconciler *Reconciler, concurrency int) *StatusSync {
	if concurrency < 1 {
		concurrency = DefaultSyncConcurrency
	}
	return &StatusSync{reconciler: reconciler, concurrency: concurrency}
}

// Run sweeps every non-terminal order and adopts orders that polled events mention but
// that are not stored yet. polled is the batch of the cycle that precedes the pass; it is
// the fallback when a detail fetch fails.
func (s *StatusSync) Run(ctx context.Context, polled []models.RemoteEvent) (StatusSyncResult, error) {
	repo := s.reconciler.repo

	orders, err := repo.FindSyncableOrders(ctx)
	if err != nil {
		return StatusSyncResult{}, fmt.Errorf("failed to load orders for sync: %w", err)
	}

	latest := latestStatusEvents(polled)

	known := make(map[string]struct{}, len(orders))
	for _, order := range orders {
		known[order.RemoteOrderID] = struct{}{}
	}

	var synced, updated, failed atomic.Int64

	count := func(changed bool, err error) {
		if err != nil {
			failed.Inc()
			return
		}
		synced.Inc()
		if changed {
			updated.Inc()
		}
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i := range orders {
		order := &orders[i]
		g.Go(func() error {
			changed, err := s.syncOrder(ctx, order, latest[order.RemoteOrderID])
			if err != nil {
				logger.Log.Warn("failed to sync order status",
					zap.String("order_id", order.ID.String()),
					zap.String("remote_order_id", order.RemoteOrderID),
					zap.Error(err),
				)
			}
			count(changed, err)
			return nil
		})
	}

	for remoteOrderID, event := range latest {
		if _, ok := known[remoteOrderID]; ok {
			continue
		}
		g.Go(func() error {
			changed, err := s.adoptOrder(ctx, remoteOrderID, event)
			if err != nil {
				logger.Log.Warn("failed to adopt order",
					zap.String("remote_order_id", remoteOrderID),
					zap.Error(err),
				)
			}
			count(changed, err)
			return nil
		})
	}

	_ = g.Wait()

	return StatusSyncResult{
		Synced:  int(synced.Load()),
		Updated: int(updated.Load()),
		Errors:  int(failed.Load()),
	}, nil
}

// syncOrder brings one stored order in line with the marketplace.
func (s *StatusSync) syncOrder(ctx context.Context, order *database.OrderDB, fallback *models.RemoteEvent) (bool, error) {
	code, authoritative, err := s.remoteStatus(ctx, order.RemoteOrderID, fallback)
	if err != nil {
		return false, err
	}
	if code == "" {
		return false, nil
	}

	return s.applyStatus(ctx, order, code, authoritative, fallback)
}

// adoptOrder creates an order that only status events have mentioned so far, then syncs it.
func (s *StatusSync) adoptOrder(ctx context.Context, remoteOrderID string, event *models.RemoteEvent) (bool, error) {
	r := s.reconciler

	existing, err := r.repo.FindOrderByRemoteID(ctx, remoteOrderID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		// Known but already terminal, the reconciler has seen it.
		return false, nil
	}

	remote, err := r.client.GetOrderDetails(ctx, remoteOrderID)
	if err != nil {
		return false, fmt.Errorf("failed to fetch order details: %w", err)
	}

	stored, created, err := r.storeRemoteOrder(ctx, remoteOrderID, remote, event.CreatedAt)
	if err != nil {
		return false, err
	}
	if created {
		logger.Log.Info("order adopted by status sync", zap.String("remote_order_id", remoteOrderID))
	}

	code, authoritative := remote.Status, true
	if _, ok := models.LocalStatusFor(code); !ok {
		code, authoritative = event.Code, false
	}

	if _, err := s.applyStatus(ctx, stored, code, authoritative, event); err != nil {
		return created, err
	}

	return created, nil
}

// remoteStatus asks the marketplace for the current code of an order and falls back to the
// newest polled status event when the answer is unusable. The flag reports whether the code
// came from the details endpoint.
func (s *StatusSync) remoteStatus(ctx context.Context, remoteOrderID string, fallback *models.RemoteEvent) (models.EventCode, bool, error) {
	remote, err := s.reconciler.client.GetOrderDetails(ctx, remoteOrderID)
	if err == nil {
		if _, ok := models.LocalStatusFor(remote.Status); ok {
			return remote.Status, true, nil
		}
	}

	if fallback != nil {
		return fallback.Code, false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("failed to fetch order details: %w", err)
	}

	return "", false, nil
}

func (s *StatusSync) applyStatus(ctx context.Context, order *database.OrderDB, code models.EventCode, authoritative bool, event *models.RemoteEvent) (bool, error) {
	target, ok := models.LocalStatusFor(code)
	if !ok {
		return false, nil
	}

	current := order.Status.LocalStatus
	if current == target && order.RemoteStatus == string(code) {
		return false, nil
	}

	// A polled event may be older than the local state
	if !authoritative && !current.CanAdvanceTo(target) {
		logger.Log.Debug("stale polled status ignored",
			zap.String("order_id", order.ID.String()),
			zap.String("status", string(current)),
			zap.String("event_code", string(code)),
		)
		return false, nil
	}

	update := database.StatusUpdate{
		LocalStatus:  target,
		RemoteStatus: code,
	}
	if target == models.StatusClosed && order.ClosedAt == nil {
		closedAt := s.reconciler.now()
		if event != nil && event.Code == models.CodeConcluded && !event.CreatedAt.IsZero() {
			closedAt = event.CreatedAt
		}
		update.ClosedAt = &closedAt
	}

	if err := s.reconciler.repo.UpdateOrderStatus(ctx, order.ID, update); err != nil {
		return false, err
	}
	metrics.StatusUpdatesTotal.WithLabelValues("sync").Inc()

	if current != target {
		logger.Log.Info("order status re-derived",
			zap.String("order_id", order.ID.String()),
			zap.String("from", string(current)),
			zap.String("to", string(target)),
		)
	}

	return current != target, nil
}

// latestStatusEvents picks, per remote order, the newest polled event whose code maps to a
// local status.
func latestStatusEvents(events []models.RemoteEvent) map[string]*models.RemoteEvent {
	latest := make(map[string]*models.RemoteEvent)

	for i := range events {
		event := &events[i]
		if event.OrderID == "" {
			continue
		}
		if _, ok := models.LocalStatusFor(event.Code); !ok {
			continue
		}

		if current, ok := latest[event.OrderID]; !ok || !event.CreatedAt.Before(current.CreatedAt) {
			latest[event.OrderID] = event
		}
	}

	return latest
}

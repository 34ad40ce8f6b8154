package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Renal37/orderbridge/internal/logger"
	"github.com/Renal37/orderbridge/internal/models"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// PollingCycle is one full pull: poll, reconcile, acknowledge, then the status sync pass.
type PollingCycle struct {
	client     models.MarketplaceClient
	reconciler *Reconciler
	statusSync *StatusSync
	now        func() time.Time
}

func NewPollingCycle(client models.MarketplaceClient, reconciler *Reconciler, statusSync *StatusSync) *PollingCycle {
	return &PollingCycle{
		client:     client,
		reconciler: reconciler,
		statusSync: statusSync,
		now:        time.Now,
	}
}

// Run executes one cycle. A failed poll does not skip the sync pass, so known orders keep
// converging while the event feed is down. The returned error joins every stage failure.
func (c *PollingCycle) Run(ctx context.Context) (models.SyncSummary, error) {
	summary := models.SyncSummary{StartedAt: c.now()}

	var errs error

	events, err := c.client.PollEvents(ctx)
	if err != nil {
		summary.Errors++
		errs = multierr.Append(errs, fmt.Errorf("failed to poll events: %w", err))
	}
	summary.Polled = len(events)

	if len(events) > 0 {
		result := c.reconciler.Reconcile(ctx, events)
		summary.Updated += result.Created + result.Updated
		summary.Errors += result.Errors

		if len(result.AcknowledgeIDs) > 0 {
			if err := c.client.AcknowledgeEvents(ctx, result.AcknowledgeIDs); err != nil {
				summary.Errors++
				errs = multierr.Append(errs, fmt.Errorf("failed to acknowledge events: %w", err))
			} else {
				summary.Acknowledged = len(result.AcknowledgeIDs)
			}
		}
	}

	if c.statusSync != nil {
		syncResult, err := c.statusSync.Run(ctx, events)
		if err != nil {
			summary.Errors++
			errs = multierr.Append(errs, err)
		}
		summary.Synced = syncResult.Synced
		summary.Updated += syncResult.Updated
		summary.Errors += syncResult.Errors
	}

	summary.FinishedAt = c.now()

	logger.Log.Info("polling cycle finished",
		zap.Int("polled", summary.Polled),
		zap.Int("acknowledged", summary.Acknowledged),
		zap.Int("synced", summary.Synced),
		zap.Int("updated", summary.Updated),
		zap.Int("errors", summary.Errors),
		zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)),
	)

	return summary, errs
}

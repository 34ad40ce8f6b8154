package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/Renal37/orderbridge/internal/logger"
	"github.com/Renal37/orderbridge/internal/metrics"
	"github.com/Renal37/orderbridge/internal/models"
	"go.uber.org/zap"
)

var ErrInvalidSignature = errors.New("webhook signature mismatch")

type eventReconciler interface {
	Reconcile(ctx context.Context, events []models.RemoteEvent) models.ReconcileResult
}

// WebhookService turns a push callback into a single-event reconciliation.
type WebhookService struct {
	reconciler eventReconciler
	client     models.MarketplaceClient
	secret     []byte
	now        func() time.Time
}

// NewWebhookService builds the push channel. An empty secret disables signature checks.
func NewWebhookService(reconciler eventReconciler, client models.MarketplaceClient, secret string) *WebhookService {
	return &WebhookService{
		reconciler: reconciler,
		client:     client,
		secret:     []byte(secret),
		now:        time.Now,
	}
}

// Ingest verifies and reconciles one pushed event. Only a bad signature or a body that
// cannot be an event at all is reported as an error. Everything else is logged and the
// caller answers 200.
func (s *WebhookService) Ingest(ctx context.Context, body []byte, signature string) (models.ReconcileResult, error) {
	if err := s.verify(body, signature); err != nil {
		metrics.WebhooksTotal.WithLabelValues("unauthorized").Inc()
		return models.ReconcileResult{}, err
	}

	event, err := models.NormalizeEvent(body, s.now())
	if err != nil {
		if errors.Is(err, models.ErrUnrecognizedPayload) || (event.Code == "" && event.OrderID == "") {
			metrics.WebhooksTotal.WithLabelValues("rejected").Inc()
			return models.ReconcileResult{}, err
		}
		logger.Log.Warn("webhook payload is incomplete",
			zap.String("event_id", event.ID),
			zap.String("code", string(event.Code)),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}

	// The marketplace may hang up once it has its 200, the work must still finish.
	ctx = context.WithoutCancel(ctx)

	result := s.reconciler.Reconcile(ctx, []models.RemoteEvent{event})

	if len(result.AcknowledgeIDs) > 0 && s.client != nil {
		if err := s.client.AcknowledgeEvents(ctx, result.AcknowledgeIDs); err != nil {
			logger.Log.Warn("failed to acknowledge pushed event", zap.Strings("event_ids", result.AcknowledgeIDs), zap.Error(err))
		}
	}

	metrics.WebhooksTotal.WithLabelValues("accepted").Inc()

	return result, nil
}

func (s *WebhookService) verify(body []byte, signature string) error {
	if len(s.secret) == 0 {
		return nil
	}

	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) == 0 {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)

	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrInvalidSignature
	}

	return nil
}

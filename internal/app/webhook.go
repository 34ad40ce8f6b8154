package router

import (
	"errors"
	"net/http"

	"github.com/Renal37/orderbridge/internal/logger"
	"github.com/Renal37/orderbridge/internal/middlewares"
	"github.com/Renal37/orderbridge/internal/models"
	"github.com/Renal37/orderbridge/internal/services"
	"go.uber.org/zap"
)

const signatureHeader = "X-Marketplace-Signature"

// MarketplaceWebhook accepts one pushed event. Anything that is not a signature or
// payload problem answers 200 so the marketplace does not redeliver it.
func MarketplaceWebhook(w http.ResponseWriter, r *http.Request) {
	body, ok := middlewares.GetRawBody(w, r)
	if !ok {
		return
	}

	webhookService, ok := middlewares.GetServiceFromContext[models.WebhookService](w, r, middlewares.WebhookServiceKey)
	if !ok {
		return
	}

	result, err := webhookService.Ingest(r.Context(), body, r.Header.Get(signatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidSignature):
			http.Error(w, "invalid signature", http.StatusUnauthorized)
		case errors.Is(err, models.ErrMalformedPayload), errors.Is(err, models.ErrUnrecognizedPayload):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			logger.Log.Error("webhook ingestion failed", zap.Error(err))
			w.WriteHeader(http.StatusOK)
		}
		return
	}

	middlewares.EncodeJSONResponse(w, http.StatusOK, webhookResponse{
		Acknowledged: len(result.AcknowledgeIDs),
		Created:      result.Created,
		Updated:      result.Updated,
		Skipped:      result.Skipped,
		Errors:       result.Errors,
	})
}

type webhookResponse struct {
	Acknowledged int `json:"acknowledged"`
	Created      int `json:"created"`
	Updated      int `json:"updated"`
	Skipped      int `json:"skipped"`
	Errors       int `json:"errors"`
}

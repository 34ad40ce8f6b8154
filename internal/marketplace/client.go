package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Renal37/orderbridge/internal/logger"
	"github.com/Renal37/orderbridge/internal/models"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// MaxAcknowledgeBatch is the largest number of event ids the marketplace accepts per acknowledgment.
	MaxAcknowledgeBatch = 2000

	maxResponseSize = 10 * 1024 * 1024
	tokenLeeway     = time.Minute

	pollingMerchantsHeader = "x-polling-merchants"
)

type Config struct {
	BaseURL      string
	MerchantID   string
	ClientID     string
	ClientSecret string

	Timeout           time.Duration
	RequestsPerSecond float64
}

// Validate checks required fields and fills defaults.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if c.MerchantID == "" {
		return ErrConfigMissingMerchantID
	}
	if c.ClientID == "" {
		return ErrConfigMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrConfigMissingClientSecret
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return nil
}

// Client is the typed façade over the marketplace order API. Every call goes through the retrier.
type Client struct {
	config     Config
	httpClient *http.Client
	retrier    *Retrier
	limiter    *rate.Limiter
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func New(config Config, retrier *Retrier) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if retrier == nil {
		retrier = DefaultRetrier()
	}

	limit := rate.Inf
	burst := 1
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
		if b := int(config.RequestsPerSecond); b > 1 {
			burst = b
		}
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		retrier:    retrier,
		limiter:    rate.NewLimiter(limit, burst),
		now:        time.Now,
	}, nil
}

// Authenticate exchanges the client credentials for an access token and caches it.
func (c *Client) Authenticate(ctx context.Context) error {
	return c.retrier.Do(ctx, "authenticate", func(ctx context.Context) error {
		_, err := c.authenticate(ctx)
		return err
	})
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grantType", "client_credentials")
	form.Set("clientId", c.config.ClientID)
	form.Set("clientSecret", c.config.ClientSecret)

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/authentication/v1.0/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to authenticate: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("failed to read from response body: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return "", newStatusError("authenticate", res, body)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrInvalidResponse)
	}

	expiresIn := time.Duration(token.ExpiresIn) * time.Second
	if expiresIn <= tokenLeeway {
		expiresIn = 2 * tokenLeeway
	}

	c.mu.Lock()
	c.token = token.AccessToken
	c.tokenExpiry = c.now().Add(expiresIn - tokenLeeway)
	c.mu.Unlock()

	logger.Log.Debug("marketplace token refreshed", zap.Duration("expires_in", expiresIn))

	return token.AccessToken, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token, expiry := c.token, c.tokenExpiry
	c.mu.Unlock()

	if token != "" && c.now().Before(expiry) {
		return token, nil
	}

	return c.authenticate(ctx)
}

func (c *Client) dropToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// GetOrderDetails fetches the full order, including line items.
func (c *Client) GetOrderDetails(ctx context.Context, remoteOrderID string) (*models.RemoteOrder, error) {
	var order orderResponse

	err := c.retrier.Do(ctx, "get_order_details", func(ctx context.Context) error {
		_, err := c.do(ctx, "get_order_details", http.MethodGet, "/order/v1.0/orders/"+url.PathEscape(remoteOrderID), nil, nil, &order)
		return err
	})
	if err != nil {
		return nil, err
	}

	if order.ID == "" {
		order.ID = remoteOrderID
	}

	return order.toModel(), nil
}

// UpdateOrderStatus asks the marketplace to move the order to target.
// A 202 answer means the marketplace accepted the transition but applies it later.
func (c *Client) UpdateOrderStatus(ctx context.Context, remoteOrderID string, target models.EventCode) (models.StatusUpdateResult, error) {
	action, ok := statusActions[target]
	if !ok {
		return models.StatusUpdateResult{}, fmt.Errorf("%w: %s", ErrUnsupportedTransition, target)
	}

	var body []byte
	if action == "requestCancellation" {
		body, _ = json.Marshal(cancellationRequest{
			Reason:           "cancelled by the restaurant",
			CancellationCode: "501",
		})
	}

	var status int
	err := c.retrier.Do(ctx, "update_order_status", func(ctx context.Context) error {
		var err error
		status, err = c.do(ctx, "update_order_status", http.MethodPost,
			"/order/v1.0/orders/"+url.PathEscape(remoteOrderID)+"/"+action, nil, body, nil)
		return err
	})
	if err != nil {
		return models.StatusUpdateResult{}, err
	}

	return models.StatusUpdateResult{
		Success: true,
		IsAsync: status == http.StatusAccepted,
	}, nil
}

// PollEvents returns the events the marketplace has not seen acknowledged yet.
// No events is a normal answer, not an error.
func (c *Client) PollEvents(ctx context.Context) ([]models.RemoteEvent, error) {
	var raw []json.RawMessage

	err := c.retrier.Do(ctx, "poll_events", func(ctx context.Context) error {
		raw = nil
		_, err := c.do(ctx, "poll_events", http.MethodGet, "/order/v1.0/events:polling",
			map[string]string{pollingMerchantsHeader: c.config.MerchantID}, nil, &raw)
		return err
	})
	if err != nil {
		return nil, err
	}

	receivedAt := c.now()
	events := make([]models.RemoteEvent, 0, len(raw))
	for _, data := range raw {
		event, err := models.NormalizeEvent(data, receivedAt)
		if err != nil && event.ID == "" {
			logger.Log.Warn("dropping polled event without id", zap.Error(err), zap.ByteString("payload", data))
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

// AcknowledgeEvents acknowledges ids in chunks of at most MaxAcknowledgeBatch.
// A failed chunk does not stop the remaining ones, all failures are returned together.
func (c *Client) AcknowledgeEvents(ctx context.Context, eventIDs []string) error {
	var errs error

	for start := 0; start < len(eventIDs); start += MaxAcknowledgeBatch {
		end := start + MaxAcknowledgeBatch
		if end > len(eventIDs) {
			end = len(eventIDs)
		}

		chunk := make([]acknowledgment, 0, end-start)
		for _, id := range eventIDs[start:end] {
			chunk = append(chunk, acknowledgment{ID: id})
		}

		body, err := json.Marshal(chunk)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		err = c.retrier.Do(ctx, "acknowledge_events", func(ctx context.Context) error {
			_, err := c.do(ctx, "acknowledge_events", http.MethodPost, "/order/v1.0/events/acknowledgment", nil, body, nil)
			return err
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to acknowledge %d events: %w", len(chunk), err))
		}
	}

	return errs
}

// do sends one authenticated request and decodes a JSON answer into out when there is one.
func (c *Client) do(ctx context.Context, operation, method, path string, headers map[string]string, body []byte, out any) (int, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return 0, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send %s request: %w", operation, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return res.StatusCode, fmt.Errorf("failed to read from response body: %w", err)
	}

	if res.StatusCode == http.StatusUnauthorized {
		c.dropToken()
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return res.StatusCode, newStatusError(operation, res, data)
	}

	if out == nil || res.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return res.StatusCode, nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return res.StatusCode, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return res.StatusCode, nil
}

// IsNotFound reports whether err is a 404 answer of the marketplace.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

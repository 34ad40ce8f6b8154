package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Renal37/orderbridge/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMerchantID = "merchant-1"

type fakeMarketplace struct {
	tokenCalls atomic.Int32
	handler    http.HandlerFunc
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *fakeMarketplace) {
	t.Helper()

	fake := &fakeMarketplace{handler: handler}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/authentication/v1.0/oauth/token" {
			fake.tokenCalls.Add(1)
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "client_credentials", r.PostForm.Get("grantType"))
			assert.Equal(t, "client-id", r.PostForm.Get("clientId"))
			assert.Equal(t, "client-secret", r.PostForm.Get("clientSecret"))

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"accessToken":"token-%d","type":"bearer","expiresIn":21600}`, fake.tokenCalls.Load())
			return
		}

		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer token-"))
		fake.handler(w, r)
	}))
	t.Cleanup(ts.Close)

	client, err := New(Config{
		BaseURL:      ts.URL + "/",
		MerchantID:   testMerchantID,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}, newTestRetrier())
	require.NoError(t, err)

	return client, fake
}

func TestConfigValidate(t *testing.T) {
	valid := Config{BaseURL: "http://localhost", MerchantID: "m", ClientID: "c", ClientSecret: "s"}

	testCases := []struct {
		testName string
		mutate   func(c *Config)
		wantErr  error
	}{
		{testName: "Should accept a complete config", mutate: func(c *Config) {}},
		{testName: "Should require a base url", mutate: func(c *Config) { c.BaseURL = "" }, wantErr: ErrConfigMissingBaseURL},
		{testName: "Should require a merchant id", mutate: func(c *Config) { c.MerchantID = "" }, wantErr: ErrConfigMissingMerchantID},
		{testName: "Should require a client id", mutate: func(c *Config) { c.ClientID = "" }, wantErr: ErrConfigMissingClientID},
		{testName: "Should require a client secret", mutate: func(c *Config) { c.ClientSecret = "" }, wantErr: ErrConfigMissingClientSecret},
	}

	for _, tc := range testCases {
		t.Run(tc.testName, func(t *testing.T) {
			config := valid
			tc.mutate(&config)

			err := config.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				assert.NotZero(t, config.Timeout)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestGetOrderDetails(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/order/v1.0/orders/remote-1", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "remote-1",
			"displayId": "7781",
			"orderType": "TAKEOUT",
			"createdAt": "2024-05-01T12:00:00Z",
			"customer": {"name": "Ana"},
			"items": [
				{"id": "line-1", "externalCode": "SKU-1", "name": "Burger", "quantity": 2, "unitPrice": 12.5},
				{"id": "line-2", "name": "Fries", "quantity": 1, "unitPrice": 4}
			],
			"total": {"orderAmount": 29}
		}`)
	})

	order, err := client.GetOrderDetails(context.Background(), "remote-1")
	require.NoError(t, err)

	assert.Equal(t, "remote-1", order.ID)
	assert.Equal(t, "7781", order.DisplayID)
	assert.Equal(t, models.KindTakeout, order.Kind)
	assert.Equal(t, "Ana", order.CustomerName)
	require.True(t, order.Total.Valid)
	assert.True(t, decimal.NewFromInt(29).Equal(order.Total.Decimal))
	require.Len(t, order.Items, 2)
	assert.Equal(t, "SKU-1", order.Items[0].SKU)
	assert.True(t, decimal.RequireFromString("12.5").Equal(order.Items[0].UnitPrice))
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Empty(t, order.Items[1].SKU)

	_, err = client.GetOrderDetails(context.Background(), "remote-1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.tokenCalls.Load(), "token must be cached between calls")
}

func TestGetOrderDetailsTotal(t *testing.T) {
	testCases := []struct {
		testName  string
		body      string
		wantValid bool
		wantTotal decimal.Decimal
	}{
		{testName: "Should keep a zero total", body: `{"id": "remote-1", "total": {"orderAmount": 0}}`, wantValid: true, wantTotal: decimal.Zero},
		{testName: "Should mark an absent total", body: `{"id": "remote-1"}`},
		{testName: "Should mark a null amount", body: `{"id": "remote-1", "total": {"orderAmount": null}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.testName, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, tc.body)
			})

			order, err := client.GetOrderDetails(context.Background(), "remote-1")
			require.NoError(t, err)

			assert.Equal(t, tc.wantValid, order.Total.Valid)
			if tc.wantValid {
				assert.True(t, tc.wantTotal.Equal(order.Total.Decimal))
			}
		})
	}
}
func TestGetOrderDetailsNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "order not found", http.StatusNotFound)
	})

	_, err := client.GetOrderDetails(context.Background(), "missing")

	assert.True(t, IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"id":"remote-1","total":{"orderAmount":1}}`)
	})

	retries := 0
	client.retrier.OnRetry = func(string, int, error) { retries++ }

	order, err := client.GetOrderDetails(context.Background(), "remote-1")
	require.NoError(t, err)
	assert.Equal(t, "remote-1", order.ID)
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, 3, retries)
}

func TestUnauthorizedDropsToken(t *testing.T) {
	var calls atomic.Int32
	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"id":"remote-1"}`)
	})

	_, err := client.GetOrderDetails(context.Background(), "remote-1")
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))

	_, err = client.GetOrderDetails(context.Background(), "remote-1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.tokenCalls.Load())
}

func TestUpdateOrderStatus(t *testing.T) {
	testCases := []struct {
		testName   string
		target     models.EventCode
		statusCode int
		wantPath   string
		wantAsync  bool
		wantBody   bool
	}{
		{
			testName:   "Should confirm synchronously",
			target:     models.CodeConfirmed,
			statusCode: http.StatusOK,
			wantPath:   "/order/v1.0/orders/remote-1/confirm",
		},
		{
			testName:   "Should report an accepted dispatch as async",
			target:     models.CodeDispatched,
			statusCode: http.StatusAccepted,
			wantPath:   "/order/v1.0/orders/remote-1/dispatch",
			wantAsync:  true,
		},
		{
			testName:   "Should send a reason when requesting cancellation",
			target:     models.CodeCancelled,
			statusCode: http.StatusAccepted,
			wantPath:   "/order/v1.0/orders/remote-1/requestCancellation",
			wantAsync:  true,
			wantBody:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.testName, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, tc.wantPath, r.URL.Path)

				body, err := io.ReadAll(r.Body)
				assert.NoError(t, err)
				if tc.wantBody {
					var req cancellationRequest
					assert.NoError(t, json.Unmarshal(body, &req))
					assert.NotEmpty(t, req.Reason)
				} else {
					assert.Empty(t, body)
				}

				w.WriteHeader(tc.statusCode)
			})

			result, err := client.UpdateOrderStatus(context.Background(), "remote-1", tc.target)
			require.NoError(t, err)
			assert.True(t, result.Success)
			assert.Equal(t, tc.wantAsync, result.IsAsync)
		})
	}
}

func TestUpdateOrderStatusUnsupported(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	})

	_, err := client.UpdateOrderStatus(context.Background(), "remote-1", models.CodeConcluded)

	assert.ErrorIs(t, err, ErrUnsupportedTransition)
	assert.Equal(t, int32(0), fake.tokenCalls.Load())
}

func TestPollEvents(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order/v1.0/events:polling", r.URL.Path)
		assert.Equal(t, testMerchantID, r.Header.Get("x-polling-merchants"))

		io.WriteString(w, `[
			{"id":"e1","code":"PLC","orderId":"o1","createdAt":"2024-05-01T12:00:00Z"},
			{"id":"e2","fullCode":"CONFIRMED","orderId":"o1","createdAt":"2024-05-01T12:01:00Z"},
			{"id":"e3","code":"XYZ123","orderId":"o2"},
			{"id":"e4","orderId":"o3"},
			{"code":"CFM","orderId":"o4"}
		]`)
	})

	events, err := client.PollEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, models.CodePlaced, events[0].Code)
	assert.Equal(t, "o1", events[0].OrderID)
	assert.Equal(t, models.CodeConfirmed, events[1].Code)
	assert.Equal(t, models.EventCode("XYZ123"), events[2].Code)
	assert.Equal(t, "e4", events[3].ID)
	assert.Empty(t, events[3].Code)
}

func TestPollEventsNoContent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	events, err := client.PollEvents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAcknowledgeEventsInChunks(t *testing.T) {
	var sizes []int
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order/v1.0/events/acknowledgment", r.URL.Path)

		var acks []acknowledgment
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&acks))
		sizes = append(sizes, len(acks))

		w.WriteHeader(http.StatusAccepted)
	})

	ids := make([]string, 4500)
	for i := range ids {
		ids[i] = fmt.Sprintf("event-%d", i)
	}

	require.NoError(t, client.AcknowledgeEvents(context.Background(), ids))
	assert.Equal(t, []int{2000, 2000, 500}, sizes)
}

func TestAcknowledgeEventsCollectsFailures(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	ids := make([]string, MaxAcknowledgeBatch+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("event-%d", i)
	}

	err := client.AcknowledgeEvents(context.Background(), ids)

	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
	assert.Equal(t, int32(2), calls.Load(), "a failed chunk must not stop the next one")
}

func TestAcknowledgeNothing(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	})

	assert.NoError(t, client.AcknowledgeEvents(context.Background(), nil))
	assert.Equal(t, int32(0), fake.tokenCalls.Load())
}

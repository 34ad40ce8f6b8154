package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Renal37/orderbridge/internal/middlewares"
	"github.com/Renal37/orderbridge/internal/models"
	mock_models "github.com/Renal37/orderbridge/internal/models/mocks"
	"github.com/Renal37/orderbridge/internal/services"
	"github.com/Renal37/orderbridge/internal/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routerMocks struct {
	auth    *mock_models.MockAuthService
	jwt     *mock_models.MockJWTService
	order   *mock_models.MockOrderService
	sync    *mock_models.MockSyncTrigger
	webhook *mock_models.MockWebhookService
}

func newTestServer(t *testing.T, withSync bool) (*httptest.Server, routerMocks) {
	t.Helper()

	ctrl := gomock.NewController(t)
	mocks := routerMocks{
		auth:    mock_models.NewMockAuthService(ctrl),
		jwt:     mock_models.NewMockJWTService(ctrl),
		order:   mock_models.NewMockOrderService(ctrl),
		sync:    mock_models.NewMockSyncTrigger(ctrl),
		webhook: mock_models.NewMockWebhookService(ctrl),
	}

	svc := middlewares.Services{
		Auth:    mocks.auth,
		JWT:     mocks.jwt,
		Order:   mocks.order,
		Webhook: mocks.webhook,
	}
	if withSync {
		svc.Sync = mocks.sync
	}

	testServer := httptest.NewServer(New(Config{}, svc).get())
	t.Cleanup(testServer.Close)

	return testServer, mocks
}

// expectOperator ожидает проверку токена "token" для оператора "kitchen".
func expectOperator(mocks routerMocks) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "kitchen"})

	mocks.jwt.EXPECT().ValidateToken("token").Return(token, nil)
	mocks.auth.EXPECT().GetOperator(gomock.Any(), "kitchen").Return(&models.Operator{ID: "operator-id", Login: "kitchen"}, nil)
}

var authorized = map[string]string{
	"Content-Type":  "application/json",
	"Authorization": "Bearer token",
}

func credentials(login, password string) models.UnknownOperator {
	var operator models.UnknownOperator
	if login != "" {
		operator.Login = &login
	}
	if password != "" {
		operator.Password = &password
	}
	return operator
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

// Тестирование маршрутов регистрации и входа оператора
func TestOperatorRoutes(t *testing.T) {
	testServer, mocks := newTestServer(t, false)

	testCases := []struct {
		testName        string
		targetURL       string
		body            func(t *testing.T) io.Reader
		test            func(t *testing.T)
		expectedCode    int
		expectedMessage string
		expectedToken   string
	}{
		{
			testName:        "Должен вернуть ошибку разбора при пустом теле",
			targetURL:       "/api/operator/register",
			expectedCode:    http.StatusBadRequest,
			expectedMessage: "Ошибка при разборе данных JSON: unexpected end of JSON input\n",
		},
		{
			testName:  "Должен вернуть ошибку валидации без логина",
			targetURL: "/api/operator/register",
			body: func(t *testing.T) io.Reader {
				return utils.JSONBody(t, credentials("", "123"))
			},
			expectedCode:    http.StatusBadRequest,
			expectedMessage: "Запрос не содержит логин или пароль\n",
		},
		{
			testName:  "Должен вернуть ошибку валидации без пароля",
			targetURL: "/api/operator/login",
			body: func(t *testing.T) io.Reader {
				return utils.JSONBody(t, credentials("kitchen", ""))
			},
			expectedCode:    http.StatusBadRequest,
			expectedMessage: "Запрос не содержит логин или пароль\n",
		},
		{
			testName:  "Должен вернуть конфликт для зарегистрированного оператора",
			targetURL: "/api/operator/register",
			test: func(t *testing.T) {
				mocks.auth.EXPECT().Register(gomock.Any(), credentials("kitchen", "123")).Return(services.ErrOperatorIsAlreadyRegistered)
			},
			body: func(t *testing.T) io.Reader {
				return utils.JSONBody(t, credentials("kitchen", "123"))
			},
			expectedCode:    http.StatusConflict,
			expectedMessage: "Оператор уже зарегистрирован\n",
		},
		{
			testName:  "Должен зарегистрировать оператора и выдать токен",
			targetURL: "/api/operator/register",
			test: func(t *testing.T) {
				mocks.auth.EXPECT().Register(gomock.Any(), credentials("kitchen", "123")).Return(nil)
				mocks.jwt.EXPECT().GenerateJWT("kitchen").Return("token", nil)
			},
			body: func(t *testing.T) io.Reader {
				return utils.JSONBody(t, credentials("kitchen", "123"))
			},
			expectedCode:  http.StatusOK,
			expectedToken: "Bearer token",
		},
		{
			testName:  "Должен вернуть 401 для неизвестного оператора",
			targetURL: "/api/operator/login",
			test: func(t *testing.T) {
				mocks.auth.EXPECT().Login(gomock.Any(), credentials("kitchen", "123")).Return(services.ErrOperatorIsNotExist)
			},
			body: func(t *testing.T) io.Reader {
				return utils.JSONBody(t, credentials("kitchen", "123"))
			},
			expectedCode:    http.StatusUnauthorized,
			expectedMessage: "Оператор с логином kitchen не существует\n",
		},
		{
			testName:  "Должен вернуть 401 при неверном пароле",
			targetURL: "/api/operator/login",
			test: func(t *testing.T) {
				mocks.auth.EXPECT().Login(gomock.Any(), credentials("kitchen", "123")).Return(services.ErrPasswordIsIncorrect)
			},
			body: func(t *testing.T) io.Reader {
				return utils.JSONBody(t, credentials("kitchen", "123"))
			},
			expectedCode:    http.StatusUnauthorized,
			expectedMessage: "Неверный пароль\n",
		},
		{
			testName:  "Должен вернуть заголовок авторизации",
			targetURL: "/api/operator/login",
			test: func(t *testing.T) {
				mocks.auth.EXPECT().Login(gomock.Any(), credentials("kitchen", "123")).Return(nil)
				mocks.jwt.EXPECT().GenerateJWT("kitchen").Return("token", nil)
			},
			body: func(t *testing.T) io.Reader {
				return utils.JSONBody(t, credentials("kitchen", "123"))
			},
			expectedCode:  http.StatusOK,
			expectedToken: "Bearer token",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.testName, func(t *testing.T) {
			var body io.Reader
			if tc.body != nil {
				body = tc.body(t)
			}

			if tc.test != nil {
				tc.test(t)
			}

			res, mes := utils.TestRequest(
				t,
				testServer,
				http.MethodPost,
				tc.targetURL,
				map[string]string{"Content-Type": "application/json"},
				body,
			)

			assert.Equal(t, tc.expectedCode, res.StatusCode)
			assert.Equal(t, tc.expectedMessage, mes)
			assert.Equal(t, tc.expectedToken, res.Header.Get("Authorization"))
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	testServer, mocks := newTestServer(t, false)

	t.Run("Должен требовать заголовок Authorization", func(t *testing.T) {
		res, mes := utils.TestRequest(t, testServer, http.MethodGet, "/api/orders", nil, nil)

		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
		assert.Equal(t, "Требуется заголовок Authorization\n", mes)
	})

	t.Run("Должен отклонить истёкший токен", func(t *testing.T) {
		mocks.jwt.EXPECT().ValidateToken("token").Return(nil, services.ErrTokenIsExpired)

		res, mes := utils.TestRequest(t, testServer, http.MethodGet, "/api/orders", authorized, nil)

		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
		assert.Equal(t, "Токен истёк\n", mes)
	})

	t.Run("Должен отклонить удалённого оператора", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "kitchen"})
		mocks.jwt.EXPECT().ValidateToken("token").Return(token, nil)
		mocks.auth.EXPECT().GetOperator(gomock.Any(), "kitchen").Return(nil, services.ErrOperatorIsNotExist)

		res, _ := utils.TestRequest(t, testServer, http.MethodGet, "/api/orders", authorized, nil)

		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})
}

// Тестирование маршрутов заказов
func TestOrderRoutes(t *testing.T) {
	testServer, mocks := newTestServer(t, false)

	orders := []models.Order{
		{
			ID:            "order-1",
			RemoteOrderID: "remote-1",
			Customer:      "Jane",
			Kind:          models.KindDelivery,
			Total:         decimal.RequireFromString("25.50"),
			Status:        models.StatusPending,
			RemoteStatus:  models.CodePlaced,
			CreatedAt:     utils.NewRFC3339Date(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		},
	}

	status := func(s models.LocalStatus) func(t *testing.T) io.Reader {
		return func(t *testing.T) io.Reader {
			return utils.JSONBody(t, models.StatusChange{Status: &s})
		}
	}

	testCases := []struct {
		testName        string
		methodName      string
		targetURL       string
		body            func(t *testing.T) io.Reader
		test            func(t *testing.T)
		expectedCode    int
		expectedMessage string
	}{
		{
			testName:   "Должен вернуть список заказов",
			methodName: http.MethodGet,
			targetURL:  "/api/orders",
			test: func(t *testing.T) {
				mocks.order.EXPECT().GetOrders(gomock.Any(), 0).Return(orders, nil)
			},
			expectedCode:    http.StatusOK,
			expectedMessage: mustJSON(t, orders),
		},
		{
			testName:   "Должен передать limit",
			methodName: http.MethodGet,
			targetURL:  "/api/orders?limit=10",
			test: func(t *testing.T) {
				mocks.order.EXPECT().GetOrders(gomock.Any(), 10).Return(nil, nil)
			},
			expectedCode: http.StatusNoContent,
		},
		{
			testName:        "Должен отклонить неверный limit",
			methodName:      http.MethodGet,
			targetURL:       "/api/orders?limit=ten",
			expectedCode:    http.StatusBadRequest,
			expectedMessage: "Параметр limit должен быть неотрицательным числом\n",
		},
		{
			testName:   "Должен вернуть заказ",
			methodName: http.MethodGet,
			targetURL:  "/api/orders/order-1",
			test: func(t *testing.T) {
				mocks.order.EXPECT().GetOrder(gomock.Any(), "order-1").Return(&orders[0], nil)
			},
			expectedCode:    http.StatusOK,
			expectedMessage: mustJSON(t, orders[0]),
		},
		{
			testName:   "Должен вернуть 404 для неизвестного заказа",
			methodName: http.MethodGet,
			targetURL:  "/api/orders/missing",
			test: func(t *testing.T) {
				mocks.order.EXPECT().GetOrder(gomock.Any(), "missing").Return(nil, services.ErrOrderNotFound)
			},
			expectedCode:    http.StatusNotFound,
			expectedMessage: "Заказ не найден\n",
		},
		{
			testName:   "Должен принять смену статуса",
			methodName: http.MethodPost,
			targetURL:  "/api/orders/order-1/status",
			body:       status(models.StatusPreparing),
			test: func(t *testing.T) {
				mocks.order.EXPECT().ChangeStatus(gomock.Any(), "order-1", models.StatusPreparing).Return(nil)
			},
			expectedCode: http.StatusAccepted,
		},
		{
			testName:        "Должен требовать статус",
			methodName:      http.MethodPost,
			targetURL:       "/api/orders/order-1/status",
			body:            func(t *testing.T) io.Reader { return strings.NewReader(`{}`) },
			expectedCode:    http.StatusBadRequest,
			expectedMessage: "Запрос не содержит статус\n",
		},
		{
			testName:   "Должен отклонить неизвестный статус",
			methodName: http.MethodPost,
			targetURL:  "/api/orders/order-1/status",
			body:       status("COOKING"),
			test: func(t *testing.T) {
				mocks.order.EXPECT().ChangeStatus(gomock.Any(), "order-1", models.LocalStatus("COOKING")).Return(services.ErrInvalidStatus)
			},
			expectedCode:    http.StatusUnprocessableEntity,
			expectedMessage: "Неизвестный статус COOKING\n",
		},
		{
			testName:   "Должен вернуть конфликт для запрещённого перехода",
			methodName: http.MethodPost,
			targetURL:  "/api/orders/order-1/status",
			body:       status(models.StatusPending),
			test: func(t *testing.T) {
				mocks.order.EXPECT().
					ChangeStatus(gomock.Any(), "order-1", models.StatusPending).
					Return(fmt.Errorf("%w: READY -> PENDING", services.ErrTransitionNotAllowed))
			},
			expectedCode:    http.StatusConflict,
			expectedMessage: services.ErrTransitionNotAllowed.Error() + ": READY -> PENDING\n",
		},
		{
			testName:   "Должен вернуть 503, если очередь переполнена",
			methodName: http.MethodPost,
			targetURL:  "/api/orders/order-1/status",
			body:       status(models.StatusReady),
			test: func(t *testing.T) {
				mocks.order.EXPECT().ChangeStatus(gomock.Any(), "order-1", models.StatusReady).Return(services.ErrStatusPushUnavailable)
			},
			expectedCode:    http.StatusServiceUnavailable,
			expectedMessage: "Очередь отправки статусов переполнена\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.testName, func(t *testing.T) {
			var body io.Reader
			if tc.body != nil {
				body = tc.body(t)
			}

			expectOperator(mocks)
			if tc.test != nil {
				tc.test(t)
			}

			res, mes := utils.TestRequest(t, testServer, tc.methodName, tc.targetURL, authorized, body)

			assert.Equal(t, tc.expectedCode, res.StatusCode)
			assert.Equal(t, tc.expectedMessage, mes)
		})
	}
}

func TestWebhookRoute(t *testing.T) {
	testServer, mocks := newTestServer(t, false)

	const payload = `{"id":"e1","code":"CFM","orderId":"o1"}`

	testCases := []struct {
		testName     string
		signature    string
		ingestResult models.ReconcileResult
		ingestErr    error
		expectedCode int
	}{
		{
			testName:     "Should accept a pushed event",
			signature:    "abc",
			ingestResult: models.ReconcileResult{AcknowledgeIDs: []string{"e1"}, Updated: 1},
			expectedCode: http.StatusOK,
		},
		{
			testName:     "Should answer 401 on a bad signature",
			signature:    "bad",
			ingestErr:    services.ErrInvalidSignature,
			expectedCode: http.StatusUnauthorized,
		},
		{
			testName:     "Should answer 400 on a malformed payload",
			ingestErr:    fmt.Errorf("%w: unexpected end of JSON input", models.ErrMalformedPayload),
			expectedCode: http.StatusBadRequest,
		},
		{
			testName:     "Should answer 400 on an unrecognized payload",
			ingestErr:    models.ErrUnrecognizedPayload,
			expectedCode: http.StatusBadRequest,
		},
		{
			testName:     "Should hide internal failures",
			ingestErr:    errors.New("database is down"),
			expectedCode: http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.testName, func(t *testing.T) {
			mocks.webhook.EXPECT().
				Ingest(gomock.Any(), []byte(payload), tc.signature).
				Return(tc.ingestResult, tc.ingestErr)

			headers := map[string]string{"Content-Type": "application/json"}
			if tc.signature != "" {
				headers[signatureHeader] = tc.signature
			}

			res, mes := utils.TestRequest(t, testServer, http.MethodPost, "/api/webhooks/marketplace", headers, strings.NewReader(payload))

			assert.Equal(t, tc.expectedCode, res.StatusCode)
			if tc.ingestErr == nil {
				assert.JSONEq(t, `{"acknowledged":1,"created":0,"updated":1,"skipped":0,"errors":0}`, mes)
			}
		})
	}
}

func TestWebhookRouteRejectsLargeBodies(t *testing.T) {
	testServer, _ := newTestServer(t, false)

	body := strings.NewReader(`{"id":"` + strings.Repeat("x", maxWebhookBodySize) + `"}`)
	res, _ := utils.TestRequest(t, testServer, http.MethodPost, "/api/webhooks/marketplace", nil, body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
}

func TestSyncRoutes(t *testing.T) {
	t.Run("Should answer 503 when polling is not active", func(t *testing.T) {
		testServer, mocks := newTestServer(t, false)
		expectOperator(mocks)

		res, _ := utils.TestRequest(t, testServer, http.MethodPost, "/api/sync", authorized, nil)
		assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	})

	t.Run("Should start a cycle", func(t *testing.T) {
		testServer, mocks := newTestServer(t, true)
		expectOperator(mocks)
		mocks.sync.EXPECT().TriggerNow().Return(true)

		res, _ := utils.TestRequest(t, testServer, http.MethodPost, "/api/sync", authorized, nil)
		assert.Equal(t, http.StatusAccepted, res.StatusCode)
	})

	t.Run("Should answer 409 while a cycle runs", func(t *testing.T) {
		testServer, mocks := newTestServer(t, true)
		expectOperator(mocks)
		mocks.sync.EXPECT().TriggerNow().Return(false)

		res, _ := utils.TestRequest(t, testServer, http.MethodPost, "/api/sync", authorized, nil)
		assert.Equal(t, http.StatusConflict, res.StatusCode)
	})

	t.Run("Should return the last summary", func(t *testing.T) {
		testServer, mocks := newTestServer(t, true)
		expectOperator(mocks)

		summary := models.SyncSummary{Polled: 3, Synced: 2, Updated: 1, Acknowledged: 3}
		mocks.sync.EXPECT().LastSummary().Return(summary, true)

		res, mes := utils.TestRequest(t, testServer, http.MethodGet, "/api/sync", authorized, nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, mustJSON(t, summary), mes)
	})

	t.Run("Should answer 204 before the first cycle", func(t *testing.T) {
		testServer, mocks := newTestServer(t, true)
		expectOperator(mocks)
		mocks.sync.EXPECT().LastSummary().Return(models.SyncSummary{}, false)

		res, _ := utils.TestRequest(t, testServer, http.MethodGet, "/api/sync", authorized, nil)
		assert.Equal(t, http.StatusNoContent, res.StatusCode)
	})
}

func TestMetricsRouteIsPublic(t *testing.T) {
	testServer, _ := newTestServer(t, false)

	res, _ := utils.TestRequest(t, testServer, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

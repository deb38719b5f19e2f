package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/catalog-service/internal/domain/product"
	"github.com/xenking/catalog-service/internal/exchange"
	"github.com/xenking/catalog-service/internal/handler"
	"github.com/xenking/catalog-service/internal/notify"
	"github.com/xenking/catalog-service/internal/storage/memory"
	"github.com/xenking/catalog-service/pkg/health"
)

type noopTelemetry struct{}

func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }
func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }

func newTestRouter(t *testing.T, source exchange.RateFunc) http.Handler {
	t.Helper()
	converter, err := exchange.NewConverter(source, exchange.Config{MaxAttempts: 3}, zap.NewNop(), nil)
	require.NoError(t, err)

	svc, err := product.NewService(product.ServiceConfig{}, memory.NewProductRepository(), converter)
	require.NoError(t, err)

	healthSvc := health.New()
	healthSvc.SetReady(true)

	h := handler.NewHandler(handler.HandlerConfig{}, svc, converter.Cache())
	return NewRouter(h, healthSvc, noopTelemetry{})
}

func send(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_Probes(t *testing.T) {
	r := newTestRouter(t, func(context.Context, string, string) (decimal.Decimal, error) {
		return decimal.RequireFromString("1.1"), nil
	})

	assert.Equal(t, http.StatusOK, send(t, r, http.MethodGet, "/livez", "").Code)
	assert.Equal(t, http.StatusOK, send(t, r, http.MethodGet, "/readyz", "").Code)
}

func TestRouter_ProductLifecycle(t *testing.T) {
	calls := 0
	r := newTestRouter(t, func(_ context.Context, from, to string) (decimal.Decimal, error) {
		calls++
		assert.Equal(t, "USD", from)
		assert.Equal(t, "EUR", to)
		return decimal.RequireFromString("1.1"), nil
	})

	w := send(t, r, http.MethodPost, "/api/v1/products",
		`{"name":"Test Product","description":"This is a test product description","price":99.99,"category":"Gadgets"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"priceEUR":90.90`)

	w = send(t, r, http.MethodGet, "/api/v1/products/1", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = send(t, r, http.MethodGet, "/api/v1/products/category/Gadgets", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalElements":1`)

	w = send(t, r, http.MethodGet, "/api/v1/products/search?name=test", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Test Product"`)

	w = send(t, r, http.MethodPut, "/api/v1/products/1",
		`{"name":"Test Product","description":"Updated test product description","price":110}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"priceEUR":100.00`)

	w = send(t, r, http.MethodDelete, "/api/v1/products/1", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = send(t, r, http.MethodGet, "/api/v1/products/1", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 1, calls, "rate should be fetched once and then served from cache")
}

func TestRouter_FallbackRate(t *testing.T) {
	calls := 0
	r := newTestRouter(t, func(context.Context, string, string) (decimal.Decimal, error) {
		calls++
		return decimal.Decimal{}, exchange.ErrUpstream
	})

	w := send(t, r, http.MethodPost, "/api/v1/products",
		`{"name":"Test Product","description":"This is a test product description","price":99.99}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"priceEUR":99.99`)
	assert.Equal(t, 3, calls)
}

func TestRouter_CachePurge(t *testing.T) {
	calls := 0
	r := newTestRouter(t, func(context.Context, string, string) (decimal.Decimal, error) {
		calls++
		return decimal.RequireFromString("2"), nil
	})

	send(t, r, http.MethodGet, "/api/v1/products", "")
	send(t, r, http.MethodGet, "/api/v1/products", "")
	require.Equal(t, 1, calls)

	w := send(t, r, http.MethodDelete, "/api/v1/exchange/cache", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	send(t, r, http.MethodGet, "/api/v1/products", "")
	assert.Equal(t, 2, calls)
}

func TestIsProbe(t *testing.T) {
	assert.True(t, isProbe(httptest.NewRequest(http.MethodGet, "/livez", nil)))
	assert.True(t, isProbe(httptest.NewRequest(http.MethodGet, "/readyz", nil)))
	assert.False(t, isProbe(httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)))
}

func TestNewNotifier(t *testing.T) {
	cfg := validConfig()
	n, closeNotifier, err := newNotifier(zap.NewNop(), &cfg)
	require.NoError(t, err)
	require.NotNil(t, n)
	require.NoError(t, n.Notify(context.Background(), product.Event{Kind: product.EventDeleted, Product: product.Product{ID: 1}}))
	require.NoError(t, closeNotifier(context.Background()))

	cfg.Notify = NotifyConfig{
		Enabled: true,
		To:      "ops@example.com",
		From:    "catalog@example.com",
		SMTP:    SMTPConfig{Host: "smtp.example.com", Port: 587, TLS: "mandatory"},
	}
	n, closeNotifier, err = newNotifier(zap.NewNop(), &cfg)
	require.NoError(t, err)
	assert.IsType(t, &notify.Queue{}, n)
	require.NoError(t, closeNotifier(context.Background()))
}

func TestOpenStores_Memory(t *testing.T) {
	cfg := validConfig()
	st, err := openStores(context.Background(), zap.NewNop(), &cfg, health.New())
	require.NoError(t, err)
	defer st.close()

	assert.IsType(t, &memory.ProductRepository{}, st.products)
	assert.Nil(t, st.security)

	_, err = st.products.Count(context.Background())
	require.NoError(t, err)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/warehouse/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func newTracedRouter(t *testing.T, sr *tracetest.SpanRecorder, reader sdkmetric.Reader) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
		_ = mp.Shutdown(t.Context())
	})

	router := gin.New()
	router.Use(
		Tracing(TracingConfig{
			ServiceName:    "warehouse-test",
			Enabled:        true,
			SkipPaths:      []string{"/api/v1/health"},
			TracerProvider: tp,
			MeterProvider:  mp,
		}),
		logger.GinMiddleware(zap.NewNop()),
		Actor(),
		SpanAttributes(),
	)
	router.GET("/api/v1/products/:id", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/api/v1/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (string, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value.AsString(), true
		}
	}
	return "", false
}

func TestTracing_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(Tracing(TracingConfig{Enabled: false}))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTracing_RecordsSpanWithRequestAttributes(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	router := newTracedRouter(t, sr, sdkmetric.NewManualReader())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/7", nil)
	req.Header.Set(logger.RequestIDHeader, "req-123")
	req.Header.Set(ActorHeader, "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Name(), "/api/v1/products/:id")

	requestID, ok := spanAttr(spans[0], "request_id")
	assert.True(t, ok)
	assert.Equal(t, "req-123", requestID)
	actor, ok := spanAttr(spans[0], "enduser.id")
	assert.True(t, ok)
	assert.Equal(t, "alice", actor)
}

func TestTracing_SkipsHealthProbe(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	router := newTracedRouter(t, sr, sdkmetric.NewManualReader())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracing_RecordsRequestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	router := newTracedRouter(t, tracetest.NewSpanRecorder(), reader)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/products/1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &rm))

	var names []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names = append(names, m.Name)
		}
	}
	assert.NotEmpty(t, names)
}

func TestSpanAttributes_WithoutSpan(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(logger.GinMiddleware(zap.NewNop()), SpanAttributes())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))
}

package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fd1az/dexops/internal/logger"
)

func TestPrometheusPipeline(t *testing.T) {
	ctx := context.Background()

	mp, err := NewMetricProvider(ctx,
		WithServiceName("dexops-test"),
		WithProviderConfig(NewPrometheusConfig()),
	)
	if err != nil {
		t.Fatalf("NewMetricProvider: %v", err)
	}
	defer mp.Shutdown(ctx)

	counter, err := mp.Meter("metrics-test").Int64Counter("dexops_test_events_total")
	if err != nil {
		t.Fatal(err)
	}
	counter.Add(ctx, 3)

	srv := NewPrometheusServer(logger.New(io.Discard, logger.LevelError, "metrics-test", nil), WithPort(0))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "dexops_test_events_total") {
		t.Error("counter not exported on /metrics")
	}
}

func TestNewMetricProvider_NoReaders(t *testing.T) {
	mp, err := NewMetricProvider(context.Background(), WithServiceName("noop"))
	if err != nil {
		t.Fatal(err)
	}
	if mp.Meter("x") == nil {
		t.Error("meter must never be nil")
	}
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestStatusBucket(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{http.StatusContinue, "1xx"},
		{http.StatusOK, "2xx"},
		{http.StatusCreated, "2xx"},
		{http.StatusMovedPermanently, "3xx"},
		{http.StatusNotFound, "4xx"},
		{http.StatusConflict, "4xx"},
		{http.StatusInternalServerError, "5xx"},
		{http.StatusBadGateway, "5xx"},
	}

	for _, tt := range tests {
		if got := statusBucket(tt.code); got != tt.want {
			t.Errorf("statusBucket(%d) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestMiddlewareRecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware())
	r.GET("/v1/orders/:id", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	counter := HTTPRequestsTotal.WithLabelValues("GET", "/v1/orders/:id", "4xx")
	before := counterValue(t, counter)

	req := httptest.NewRequest("GET", "/v1/orders/pre_missing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	after := counterValue(t, counter)
	if after != before+1 {
		t.Errorf("expected counter to increment by 1, got %f -> %f", before, after)
	}
}

func TestAllMetricsRegistered(t *testing.T) {
	// Counters with zero observations are absent from Gather output, so
	// touch a few first.
	DecisionsTotal.WithLabelValues("APPROVED").Add(0)
	CheckFailuresTotal.WithLabelValues("velocity").Add(0)
	PromotionsTotal.Add(0)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	byName := map[string]*dto.MetricFamily{}
	for _, f := range families {
		byName[f.GetName()] = f
	}

	for _, name := range []string{
		"fraudgate_decisions_total",
		"fraudgate_check_failures_total",
		"fraudgate_promotions_total",
	} {
		if _, ok := byName[name]; !ok {
			t.Errorf("metric %s not registered", name)
		}
	}
}

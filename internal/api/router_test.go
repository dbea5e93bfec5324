package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/jengzang/coverage-backend-go/internal/config"
	"github.com/jengzang/coverage-backend-go/internal/handler"
)

func newRouter(t *testing.T, rateLimit int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "coverage_test_total", Help: "test"}))

	// Requests below never reach the service.
	return SetupRouter(&config.Config{RateLimit: rateLimit}, handler.NewCoverageHandler(nil), reg, log)
}

func serve(r *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	r := newRouter(t, 10)

	if w := serve(r, http.MethodGet, "/health"); w.Code != http.StatusOK {
		t.Errorf("/health status = %d", w.Code)
	}

	w := serve(r, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "coverage_test_total") {
		t.Errorf("/metrics = %d %q", w.Code, w.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(t, 10)
	w := serve(r, http.MethodOptions, "/api/v1/areas")
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestDeadSpotRoutesAreRateLimited(t *testing.T) {
	r := newRouter(t, 1)

	if w := serve(r, http.MethodGet, "/api/v1/deadspots"); w.Code != http.StatusBadRequest {
		t.Fatalf("first request status = %d, want 400", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/v1/deadspots/polyline"); w.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", w.Code)
	}
	// Other routes are not limited.
	if w := serve(r, http.MethodGet, "/health"); w.Code != http.StatusOK {
		t.Errorf("/health status = %d", w.Code)
	}
}

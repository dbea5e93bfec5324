package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request inside the window should be rejected")
	}
	if !rl.Allow("b") {
		t.Fatal("other clients are limited independently")
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatal("request after the window should pass")
	}
}

func TestRateLimiterSweepsIdleClients(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5, time.Second)
	rl.now = func() time.Time { return now }

	for _, ip := range []string{"a", "b", "c"} {
		rl.Allow(ip)
	}
	if got := rl.Clients(); got != 3 {
		t.Fatalf("Clients() = %d, want 3", got)
	}

	now = now.Add(2 * time.Second)
	rl.Allow("d")
	if got := rl.Clients(); got != 1 {
		t.Errorf("Clients() after sweep = %d, want 1", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(NewRateLimiter(1, time.Hour)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 2)
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes[i] = w.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [200 429]", codes)
	}
}

func TestLoggerFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	r := gin.New()
	r.Use(Logger(log))
	r.GET("/fail", func(c *gin.Context) {
		c.Error(errors.New("boom"))
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail?x=1", nil))

	out := buf.String()
	for _, want := range []string{`"level":"error"`, `"path":"/fail?x=1"`, `"status":500`, `"errors":`, "boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}

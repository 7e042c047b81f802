package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"quizai/internal/logger"
	"quizai/internal/ratelimit"
)

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func TestRateLimitBlocksOverLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/upload", RateLimit(ratelimit.BucketFileUpload, ratelimit.NewMemory(), logger.NewNop()), okHandler)

	// file_upload allows 2 per window.
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/upload", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, w.Code)
		}
		if w.Header().Get("X-RateLimit-Remaining") == "" {
			t.Fatal("missing X-RateLimit-Remaining header")
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/upload", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
	if w.Header().Get("X-RateLimit-Reset") == "" {
		t.Fatal("missing X-RateLimit-Reset header")
	}

	var body struct {
		Error      string `json:"error"`
		RetryAfter int    `json:"retryAfter"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "Too many requests" || body.RetryAfter < 1 {
		t.Fatalf("body = %+v", body)
	}
}

type failingLimiter struct{}

func (failingLimiter) Check(ctx context.Context, bucket, identifier string) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("redis down")
}

func TestRateLimitFailsOpenOnLimiterError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RateLimit(ratelimit.BucketAPI, failingLimiter{}, logger.NewNop()), okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want fail-open 200", w.Code)
	}
}

func TestAccessLogEmitsAuditEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	r := gin.New()
	r.Use(AccessLog(log))
	r.GET("/ok", okHandler)
	r.GET("/boom", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "x"})
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	if n := logs.FilterMessage(logger.EventAPIAccess).Len(); n != 1 {
		t.Fatalf("access entries = %d, want 1", n)
	}
	if n := logs.FilterMessage(logger.EventAPIError).Len(); n != 1 {
		t.Fatalf("error entries = %d, want 1", n)
	}
}

func TestAuthRequiredRejectsAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	store := cookie.NewStore([]byte("test-secret"))
	r.Use(sessions.Sessions("session", store))
	r.GET("/protected", AuthRequired(), okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, remote string) int {
	req := httptest.NewRequest(http.MethodPost, "/bank-notifications/poll", nil)
	req.RemoteAddr = remote
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	rl := NewRateLimiter(0.001, 2, zap.NewNop())
	h := rl.Limit(okHandler())

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:5002"))

	// Another client has its own bucket.
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:5000"))
}

func TestRateLimiter_Evict(t *testing.T) {
	rl := NewRateLimiter(1, 1, zap.NewNop())
	rl.allow("ip:a")
	rl.allow("ip:b")
	rl.clients["ip:a"].lastSeen = time.Now().Add(-time.Hour)

	assert.Equal(t, 1, rl.evict(time.Now()))
	_, ok := rl.clients["ip:b"]
	assert.True(t, ok)
}

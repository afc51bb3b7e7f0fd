package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type counterStore struct {
	counts map[string]int64
	ttls   map[string]time.Duration
}

func newCounterStore() *counterStore {
	return &counterStore{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (c *counterStore) CountRedemptionAttempt(_ context.Context, scope string, window time.Duration) (int64, error) {
	c.counts[scope]++
	c.ttls[scope] = window
	return c.counts[scope], nil
}

func redeemRequest(remoteAddr, userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/supplier/v1/restock-requests/fulfill", nil)
	req.RemoteAddr = remoteAddr
	if userID != "" {
		req = req.WithContext(WithUserID(req.Context(), userID))
	}
	return req
}

func TestRedemptionRateLimitBlocksPerUser(t *testing.T) {
	store := newCounterStore()
	policy := NewRedemptionRateLimitPolicy("fulfill", time.Minute, 100, 2)
	handler := RedemptionRateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, redeemRequest("10.0.0.1:1234", "supplier-1"))
		if resp.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i+1, resp.Code)
		}
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, redeemRequest("10.0.0.2:1234", "supplier-1"))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", resp.Header().Get("Retry-After"))
	}

	other := httptest.NewRecorder()
	handler.ServeHTTP(other, redeemRequest("10.0.0.3:1234", "supplier-2"))
	if other.Code != http.StatusOK {
		t.Fatalf("expected other supplier to pass, got %d", other.Code)
	}
	if store.ttls["fulfill:user:supplier-1"] != time.Minute {
		t.Fatalf("expected window ttl on user key")
	}
}

func TestRedemptionRateLimitBlocksPerIP(t *testing.T) {
	store := newCounterStore()
	policy := NewRedemptionRateLimitPolicy("scan", time.Minute, 1, 0)
	handler := RedemptionRateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, redeemRequest("192.0.2.10:5555", "device-1"))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, redeemRequest("192.0.2.10:6666", "device-2"))

	if first.Code != http.StatusOK {
		t.Fatalf("expected first attempt allowed, got %d", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected same ip to be blocked, got %d", second.Code)
	}
}

func TestRedemptionRateLimitDisabledPassesThrough(t *testing.T) {
	policy := NewRedemptionRateLimitPolicy("fulfill", 0, 1, 1)
	handler := RedemptionRateLimit(policy, newCounterStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, redeemRequest("10.0.0.1:1", "supplier-1"))
		if resp.Code != http.StatusOK {
			t.Fatalf("expected disabled policy to allow, got %d", resp.Code)
		}
	}
}

func TestClientIPPrefersForwardedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:80"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.7" {
		t.Fatalf("expected forwarded ip, got %s", got)
	}
}

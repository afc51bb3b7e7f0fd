package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
	pkgredis "github.com/angelmondragon/storefront-backoffice/pkg/redis"
)

const restockCreatePattern = "/api/admin/v1/restock-requests"

type fakeStore struct {
	data    map[string]string
	ttls    map[string]time.Duration
	aborted int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeStore) Reserve(_ context.Context, scope, key string, ttl time.Duration) (string, bool, error) {
	full := scope + ":" + key
	if v, ok := f.data[full]; ok {
		return v, false, nil
	}
	f.data[full] = pkgredis.PendingRecord
	f.ttls[full] = ttl
	return "", true, nil
}

func (f *fakeStore) Complete(_ context.Context, scope, key, record string, ttl time.Duration) error {
	f.data[scope+":"+key] = record
	f.ttls[scope+":"+key] = ttl
	return nil
}

func (f *fakeStore) Abandon(_ context.Context, scope, key string) error {
	delete(f.data, scope+":"+key)
	f.aborted++
	return nil
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func restockPolicy() IdempotencyPolicy {
	return IdempotencyPolicy{TTL: time.Hour, PendingTTL: time.Minute}
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	mw := Idempotency(restockPolicy(), newFakeStore(), nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, restockCreatePattern, restockCreatePattern, strings.NewReader(`{"inventory_id":"x"}`))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(restockPolicy(), store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	req := requestWithPattern(http.MethodPost, restockCreatePattern, restockCreatePattern, strings.NewReader(`{"inventory_id":"x"}`))
	req.Header.Set("Idempotency-Key", "abc")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected first response 201 got %d", resp.Code)
	}

	replay := requestWithPattern(http.MethodPost, restockCreatePattern, restockCreatePattern, strings.NewReader(`{"inventory_id":"x"}`))
	replay.Header.Set("Idempotency-Key", "abc")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, replay)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected replay status 201 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if rec.Header().Get(replayedHeader) != "true" {
		t.Fatalf("expected replay marker header")
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
	for key, ttl := range store.ttls {
		if ttl != time.Hour {
			t.Fatalf("expected completed record %s to keep the configured ttl, got %v", key, ttl)
		}
	}
}

func TestIdempotencyMiddlewareDoesNotStoreServerErrors(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(restockPolicy(), store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, restockCreatePattern, restockCreatePattern, strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "retry-me")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}

	if calls != 2 {
		t.Fatalf("expected handler to run twice, ran %d", calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("expected nothing stored, got %d records", len(store.data))
	}
	if store.aborted != 2 {
		t.Fatalf("expected both reservations released, got %d", store.aborted)
	}
}

func TestIdempotencyMiddlewareScopesKeysByUser(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(restockPolicy(), store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	for _, user := range []string{"admin-a", "admin-b"} {
		req := requestWithPattern(http.MethodPost, restockCreatePattern, restockCreatePattern, strings.NewReader(`{}`))
		req = req.WithContext(WithUserID(req.Context(), user))
		req.Header.Set("Idempotency-Key", "shared")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}

	if calls != 2 {
		t.Fatalf("expected separate scopes per user, handler ran %d times", calls)
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	mw := Idempotency(restockPolicy(), newFakeStore(), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, restockCreatePattern, restockCreatePattern, strings.NewReader(`{"note":"a"}`))
	req.Header.Set("Idempotency-Key", "xyz")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	replay := requestWithPattern(http.MethodPost, restockCreatePattern, restockCreatePattern, strings.NewReader(`{"note":"b"}`))
	replay.Header.Set("Idempotency-Key", "xyz")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, replay)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestIdempotencyMiddlewareRejectsDuplicateWhileInFlight(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(restockPolicy(), store, nil)
	var calls int
	var inner http.Handler
	inner = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// a retry lands while the first request is still being served
		dup := requestWithPattern(http.MethodPost, restockCreatePattern, restockCreatePattern, strings.NewReader(`{"note":"a"}`))
		dup.Header.Set("Idempotency-Key", "busy")
		dupResp := httptest.NewRecorder()
		mw(inner).ServeHTTP(dupResp, dup)
		if dupResp.Code != http.StatusConflict || dupResp.Header().Get("Retry-After") != "1" {
			t.Errorf("expected in-flight duplicate to get 409 with Retry-After, got %d", dupResp.Code)
		}
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, restockCreatePattern, restockCreatePattern, strings.NewReader(`{"note":"a"}`))
	req.Header.Set("Idempotency-Key", "busy")
	resp := httptest.NewRecorder()
	mw(inner).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if calls != 1 {
		t.Fatalf("expected a single execution, got %d", calls)
	}
}

func TestIdempotencyMiddlewareReleasesReservationOnPanic(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(restockPolicy(), store, nil)
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	req := requestWithPattern(http.MethodPost, restockCreatePattern, restockCreatePattern, strings.NewReader(`{}`))
	req.Header.Set("Idempotency-Key", "panicky")
	func() {
		defer func() { _ = recover() }()
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}()

	if len(store.data) != 0 || store.aborted != 1 {
		t.Fatalf("expected reservation released, data=%v aborted=%d", store.data, store.aborted)
	}
}

func TestIdempotencyMiddlewareRejectsOversizedKey(t *testing.T) {
	mw := Idempotency(restockPolicy(), newFakeStore(), nil)
	req := requestWithPattern(http.MethodPost, restockCreatePattern, restockCreatePattern, strings.NewReader(`{}`))
	req.Header.Set("Idempotency-Key", strings.Repeat("k", maxIdempotencyKeyLen+1))
	resp := httptest.NewRecorder()
	mw(http.NotFoundHandler()).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backoffice/internal/restock"
	pkgAuth "github.com/angelmondragon/storefront-backoffice/pkg/auth"
	"github.com/angelmondragon/storefront-backoffice/pkg/config"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/metrics"
	pkgredis "github.com/angelmondragon/storefront-backoffice/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memoryRedis struct {
	mu     sync.Mutex
	values map[string]string
	counts map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryRedis) Reserve(_ context.Context, scope, key string, _ time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	full := scope + ":" + key
	if v, ok := m.values[full]; ok {
		return v, false, nil
	}
	m.values[full] = pkgredis.PendingRecord
	return "", true, nil
}

func (m *memoryRedis) Complete(_ context.Context, scope, key, record string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[scope+":"+key] = record
	return nil
}

func (m *memoryRedis) Abandon(_ context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, scope+":"+key)
	return nil
}

func (m *memoryRedis) CountRedemptionAttempt(_ context.Context, scope string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[scope]++
	return m.counts[scope], nil
}

func (m *memoryRedis) Ping(context.Context) error {
	return nil
}

type stubRestockService struct {
	restock.Service
	mu      sync.Mutex
	creates int
}

func (s *stubRestockService) Create(ctx context.Context, input restock.CreateInput) (*restock.CreateResult, error) {
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	return &restock.CreateResult{Request: restock.RequestDTO{ID: uuid.New(), InventoryID: input.InventoryID}}, nil
}

func (s *stubRestockService) List(ctx context.Context, input restock.ListInput) (*restock.ListResult, error) {
	return &restock.ListResult{Requests: []restock.RequestDTO{}}, nil
}

func (s *stubRestockService) Scan(ctx context.Context, input restock.ScanInput) (*restock.FulfillResult, error) {
	return &restock.FulfillResult{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:  config.AppConfig{Env: "dev"},
		HTTP: config.HTTPConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		JWT:  config.JWTConfig{Secret: "router-secret", Issuer: "storefront", ExpirationMinutes: 60},
		RedemptionRateLimit: config.RedemptionRateLimitConfig{
			Window:    time.Minute,
			IPLimit:   100,
			UserLimit: 2,
		},
		Restock: config.RestockConfig{IdempotencyTTL: time.Hour},
	}
}

func newTestRouter(t *testing.T, svc *stubRestockService) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	metrics.NewRestockMetrics(reg)

	handler := NewRouter(RouterParams{
		Config:   cfg,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:       stubPinger{},
		Redis:    newMemoryRedis(),
		Gatherer: reg,
		Restock:  svc,
	})
	return handler, cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthRoutesArePublic(t *testing.T) {
	handler, _ := newTestRouter(t, &stubRestockService{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestMetricsEndpointExposesRestockCounters(t *testing.T) {
	handler, _ := newTestRouter(t, &stubRestockService{})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "restock_") {
		t.Fatalf("expected restock metrics in output")
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	handler, _ := newTestRouter(t, &stubRestockService{})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/admin/v1/restock-requests", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAdminRoutesRejectOtherRoles(t *testing.T) {
	handler, cfg := newTestRouter(t, &stubRestockService{})

	for _, role := range []enums.ActorRole{enums.ActorRoleSupplier, enums.ActorRoleDevice} {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/restock-requests", nil)
		req.Header.Set("Authorization", bearer(t, cfg, role))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403 got %d", role, resp.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/restock-requests", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.ActorRoleAdmin))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("admin: expected 200 got %d", resp.Code)
	}
}

func TestScanAllowsDeviceRole(t *testing.T) {
	handler, cfg := newTestRouter(t, &stubRestockService{})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/restock-requests/scan", strings.NewReader(`{"code":"ABCD2345"}`))
	req.Header.Set("Authorization", bearer(t, cfg, enums.ActorRoleDevice))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestScanIsRateLimitedPerUser(t *testing.T) {
	handler, cfg := newTestRouter(t, &stubRestockService{})
	token := bearer(t, cfg, enums.ActorRoleDevice)

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/restock-requests/scan", strings.NewReader(`{"code":"ABCD2345"}`))
		req.Header.Set("Authorization", token)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		last = resp.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected third attempt to be throttled, got %d", last)
	}
}

func TestRestockCreateReplaysIdempotentRequests(t *testing.T) {
	svc := &stubRestockService{}
	handler, cfg := newTestRouter(t, svc)
	token := bearer(t, cfg, enums.ActorRoleAdmin)
	body := `{"inventory_id":"` + uuid.NewString() + `","requested":{"S":1}}`

	var bodies []string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/restock-requests", strings.NewReader(body))
		req.Header.Set("Authorization", token)
		req.Header.Set("Idempotency-Key", "create-1")
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201 got %d: %s", i+1, resp.Code, resp.Body.String())
		}
		bodies = append(bodies, resp.Body.String())
	}

	if svc.creates != 1 {
		t.Fatalf("expected one create, got %d", svc.creates)
	}
	if bodies[0] != bodies[1] {
		t.Fatalf("expected replayed body")
	}
}

func TestRestockCreateRequiresIdempotencyKey(t *testing.T) {
	handler, cfg := newTestRouter(t, &stubRestockService{})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/restock-requests", strings.NewReader(`{}`))
	req.Header.Set("Authorization", bearer(t, cfg, enums.ActorRoleAdmin))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestSupplierFulfillRejectsAdmins(t *testing.T) {
	handler, cfg := newTestRouter(t, &stubRestockService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/supplier/restock/fulfill", strings.NewReader(`{"code":"ABCD2345"}`))
	req.Header.Set("Authorization", bearer(t, cfg, enums.ActorRoleAdmin))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

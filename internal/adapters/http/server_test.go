package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"trustscan/internal/adapters/memory"
	"trustscan/internal/auth"
	"trustscan/internal/cache"
	"trustscan/internal/domain"
	"trustscan/internal/ratelimit"
	"trustscan/internal/services/accounts"
	"trustscan/internal/services/profiles"
	"trustscan/internal/services/reports"
	"trustscan/internal/services/scanner"
	"trustscan/internal/services/scoring"
	"trustscan/internal/urlnorm"
)

type stubSSL struct{}

func (stubSSL) ProbeSSL(context.Context, urlnorm.NormalizedURL) (domain.SSLInfo, error) {
	issuer, proto := "Test CA", "TLS 1.3"
	return domain.SSLInfo{Valid: true, Issuer: &issuer, Protocol: &proto, Status: domain.ProbeOK}, nil
}

type stubRegistry struct{}

func (stubRegistry) ProbeDomain(context.Context, string) (domain.DomainInfo, error) {
	age, registrar := 4000, "Test Registrar"
	return domain.DomainInfo{Registrar: &registrar, AgeInDays: &age, Status: domain.ProbeOK}, nil
}

type harness struct {
	srv    *httptest.Server
	store  *memory.Store
	tokens *auth.Tokens
}

func newHarness(t *testing.T, opts ...func(*Deps)) *harness {
	t.Helper()
	log := zerolog.Nop()
	store := memory.NewStore()
	tokens := auth.NewTokens("test-secret", nil)

	pipeline := scoring.New(stubSSL{}, stubRegistry{}, scoring.Options{
		ProbeTimeout: time.Second,
		Blocklist:    scoring.NewBlocklist(scoring.DefaultBlocklist),
		Logger:       log,
	})
	results := cache.New(cache.NewMemoryStore(1000, time.Hour, nil), time.Hour, log)
	scans := scanner.New(ratelimit.NewWindow(5, time.Minute, nil), results, pipeline, store, scanner.Options{Logger: log})

	deps := Deps{
		Scans:    scans,
		Profiles: profiles.New(store),
		Accounts: accounts.New(store.Users(), tokens, nil).WithCost(bcrypt.MinCost),
		Reports:  reports.New(store.Reports(), nil, log),
		Tokens:   tokens,
		Logger:   log,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	s := New(deps)
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return &harness{srv: srv, store: store, tokens: tokens}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (h *harness) register(t *testing.T, email string) string {
	t.Helper()
	resp, body := h.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "password": "hunter22", "name": "Tester",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	return body["token"].(string)
}

func TestScanThenFetch(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodPost, "/scan", "", map[string]string{"url": "https://www.google.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "www.google.com", body["domain"])
	assert.Equal(t, "https://www.google.com", body["url"])
	assert.EqualValues(t, 0, body["riskScore"])
	assert.Equal(t, "trusted", body["trustRating"])
	assert.Contains(t, body, "sslInfo")
	assert.Contains(t, body, "domainInfo")
	assert.Equal(t, false, body["cached"])
	assert.Equal(t, "4", resp.Header.Get("X-RateLimit-Remaining"))

	id := body["scanId"].(string)
	resp, got := h.do(t, http.MethodGet, "/scan/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, got["id"])
	assert.Equal(t, id, got["_id"])
	assert.Equal(t, "www.google.com", got["domain"])

	resp, _ = h.do(t, http.MethodGet, "/scan/00000000-0000-0000-0000-000000000000", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = h.do(t, http.MethodPost, "/scan", "", map[string]string{"url": "google.com/"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_, body2 := h.do(t, http.MethodPost, "/scan", "", map[string]string{"url": "GOOGLE.com"})
	assert.Equal(t, true, body2["cached"])
	assert.Equal(t, body["riskScore"], body2["riskScore"])
}

func TestScanRejectsInvalidURL(t *testing.T) {
	h := newHarness(t)
	for _, u := range []string{"not-a-url", "", "ftp://example.com"} {
		resp, body := h.do(t, http.MethodPost, "/scan", "", map[string]string{"url": u})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, u)
		assert.NotEmpty(t, body["error"], u)
	}
}

func TestScanRateLimit(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 5; i++ {
		resp, _ := h.do(t, http.MethodPost, "/scan", "", map[string]string{"url": fmt.Sprintf("site%d.example.com", i)})
		require.Equal(t, http.StatusCreated, resp.StatusCode, "call %d", i+1)
	}
	resp, body := h.do(t, http.MethodPost, "/scan", "", map[string]string{"url": "example.com"})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, body["error"], "Rate limit exceeded")
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func scanFrom(t *testing.T, h *harness, forwardedFor string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, h.srv.URL+"/scan", strings.NewReader(`{"url":"example.com"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestForwardedForIgnoredByDefault(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusCreated, scanFrom(t, h, fmt.Sprintf("198.51.100.%d", i)))
	}
	assert.Equal(t, http.StatusTooManyRequests, scanFrom(t, h, "198.51.100.99"))
}

func TestForwardedForHonouredBehindTrustedProxy(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.TrustProxy = true })
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusCreated, scanFrom(t, h, "198.51.100.1"))
	}
	assert.Equal(t, http.StatusTooManyRequests, scanFrom(t, h, "198.51.100.1"))
	assert.Equal(t, http.StatusCreated, scanFrom(t, h, "198.51.100.2"))
}

func TestMalformedScanBodiesAreRateLimited(t *testing.T) {
	h := newHarness(t)
	post := func() *http.Response {
		resp, err := http.Post(h.srv.URL+"/scan", "application/json", strings.NewReader("{not json"))
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusBadRequest, post().StatusCode, "call %d", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, post().StatusCode)
}

func TestHistoryIsScopedToCaller(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(t, http.MethodGet, "/history", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = h.do(t, http.MethodGet, "/history", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ann := h.register(t, "ann@example.com")
	bob := h.register(t, "bob@example.com")

	resp, _ = h.do(t, http.MethodPost, "/scan", ann, map[string]string{"url": "example.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = h.do(t, http.MethodPost, "/scan", "", map[string]string{"url": "example.org"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := h.do(t, http.MethodGet, "/history", ann, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["scans"], 1)

	_, body = h.do(t, http.MethodGet, "/history", bob, nil)
	assert.Len(t, body["scans"], 0)
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)
	token := h.register(t, "ann@example.com")

	resp, _ := h.do(t, http.MethodPost, "/auth/register", "", map[string]string{"email": "ann@example.com", "password": "hunter22", "name": "Ann"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ann@example.com", "password": "hunter22"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])

	resp, _ = h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ann@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, me := h.do(t, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ann@example.com", me["email"])
	assert.NotContains(t, me, "password")
	assert.NotContains(t, me, "passwordHash")
	assert.NotContains(t, me, "PasswordHash")

	resp, _ = h.do(t, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestReport(t *testing.T) {
	h := newHarness(t)
	report := map[string]string{"url": "https://phishing-site.com", "reason": "phishing", "description": "clone of my bank login page"}

	resp, _ := h.do(t, http.MethodPost, "/report", "", report)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := h.register(t, "ann@example.com")
	resp, body := h.do(t, http.MethodPost, "/report", token, report)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body["reportId"])
	assert.NotEmpty(t, body["message"])

	resp, _ = h.do(t, http.MethodPost, "/report", token, map[string]string{"url": "https://x.io"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminEndpointsRequireAdminRole(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "ann@example.com")

	admin := &domain.User{ID: "admin-1", Email: "root@example.com", Name: "Root", Role: domain.RoleAdmin}
	require.NoError(t, h.store.Users().Create(context.Background(), admin))
	adminToken, err := h.tokens.Issue(admin)
	require.NoError(t, err)

	resp, _ := h.do(t, http.MethodGet, "/admin/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = h.do(t, http.MethodGet, "/admin/stats", user, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPost, "/scan", user, map[string]string{"url": "https://phishing-site.com/login"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, stats := h.do(t, http.MethodGet, "/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, stats["totalScans"])
	assert.EqualValues(t, 2, stats["totalUsers"])
	dist := stats["riskDistribution"].(map[string]any)
	// blocklisted (40) plus one keyword (5)
	assert.EqualValues(t, 1, dist["neutral"])
	assert.EqualValues(t, 0, dist["malicious"])

	resp, page := h.do(t, http.MethodGet, "/admin/scans?page=1&limit=10", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, page["scans"], 1)
	assert.EqualValues(t, 1, page["pagination"].(map[string]any)["pages"])

	resp, page = h.do(t, http.MethodGet, "/admin/scans?page=100000000000000000&limit=100", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, page["scans"])

	resp, _ = h.do(t, http.MethodDelete, "/admin/cache", adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProfiles(t *testing.T) {
	h := newHarness(t)
	resp, _ := h.do(t, http.MethodGet, "/profiles/example.com", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPost, "/scan", "", map[string]string{"url": "example.com/a"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, body := h.do(t, http.MethodGet, "/profiles/example.com", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["scanCount"])
}

func TestUnknownRoutesAndMethods(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(t, http.MethodPut, "/scan", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp, _ = h.do(t, http.MethodDelete, "/scan", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp, _ = h.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/internship-placement/app"
	"github.com/upb/internship-placement/config"
	"github.com/upb/internship-placement/identity"
	"github.com/upb/internship-placement/routes"
	"go.uber.org/zap/zaptest"
)

const testSecret = "test-secret"

func TestApplicationStartup(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestReadinessCheck(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Data.Status)
	assert.Equal(t, "healthy", body.Data.Checks["notifications"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	// one request so the http collectors have a sample
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK &&
			strings.Contains(string(raw), `placement_http_requests_total{method="GET",route="/healthz",status="200"}`)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAPIEndpoints_RequireAuth(t *testing.T) {
	ts, _ := newTestServer(t)
	id := uuid.NewString()

	testCases := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"submit", "POST", "/api/v1/applications", http.StatusUnauthorized},
		{"get application", "GET", "/api/v1/applications/" + id, http.StatusUnauthorized},
		{"accept", "POST", "/api/v1/applications/" + id + "/accept", http.StatusUnauthorized},
		{"student quota", "GET", "/api/v1/students/" + id + "/quota", http.StatusUnauthorized},
		{"company applications", "GET", "/api/v1/companies/" + id + "/applications", http.StatusUnauthorized},
		{"admin quota", "GET", "/api/v1/admin/quota", http.StatusUnauthorized},
		{"not found", "GET", "/nonexistent", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, ts.URL+tc.path, nil)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.expectedStatus, resp.StatusCode, "endpoint: %s %s", tc.method, tc.path)
		})
	}
}

func TestAPIEndpoints_Roles(t *testing.T) {
	ts, _ := newTestServer(t)

	student := uuid.New()
	studentToken := signToken(t, student, identity.RoleStudent)
	companyToken := signToken(t, uuid.New(), identity.RoleCompany)
	adminToken := signToken(t, uuid.New(), identity.RoleAdmin)

	body := map[string]interface{}{
		"company_id":       uuid.New(),
		"internship_id":    uuid.New(),
		"student_name":     "Ana Gómez",
		"email":            "ana@example.edu",
		"internship_title": "Backend Intern",
		"company_name":     "Acme",
		"gpa":              3.5,
		"interest_level":   80,
	}

	resp := call(t, ts, companyToken, http.MethodPost, "/api/v1/applications", body)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "companies cannot submit")
	resp.Body.Close()

	resp = call(t, ts, studentToken, http.MethodPost, "/api/v1/applications", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Data struct {
			ID        string `json:"id"`
			StudentID string `json:"student_id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.Equal(t, student.String(), created.Data.StudentID)

	resp = call(t, ts, studentToken, http.MethodPost, "/api/v1/applications/"+created.Data.ID+"/accept", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "students cannot decide")
	resp.Body.Close()

	resp = call(t, ts, companyToken, http.MethodPost, "/api/v1/applications/"+created.Data.ID+"/reject", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = call(t, ts, companyToken, http.MethodGet, "/api/v1/admin/quota", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = call(t, ts, adminToken, http.MethodPut, "/api/v1/admin/quota", map[string]int{"max_applications_per_student": 7})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// the rejection notification is written by a background worker
	assert.Eventually(t, func() bool {
		resp := call(t, ts, studentToken, http.MethodGet, "/api/v1/students/"+student.String()+"/notifications", nil)
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(raw), "was not successful")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestCORSMiddleware(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest("OPTIONS", ts.URL+"/api/v1/applications", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	cfg := testConfig()
	deps, err := app.NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	srv := newServer(cfg.Server, routes.SetupRoutes(deps))
	assert.Equal(t, "127.0.0.1:0", srv.Addr)
	assert.Equal(t, cfg.Server.ReadTimeout, srv.ReadTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, deps, time.Second) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
	assert.False(t, deps.Dispatcher.Stats().Started)
}

// Test helpers

func newTestServer(t *testing.T) (*httptest.Server, *app.Dependencies) {
	t.Helper()
	deps, err := app.NewDependencies(context.Background(), testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	ts := httptest.NewServer(routes.SetupRoutes(deps))
	t.Cleanup(func() {
		ts.Close()
		_ = deps.Close(context.Background())
	})
	return ts, deps
}

func signToken(t *testing.T, sub uuid.UUID, role string) string {
	t.Helper()
	token, err := identity.SignToken(testSecret, "placement", sub, role, time.Hour)
	require.NoError(t, err)
	return token
}

func call(t *testing.T, ts *httptest.Server, token, method, path string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			MaxUploadBytes:  1 << 20,
			AllowedOrigins:  []string{"http://localhost:5173"},
		},
		Storage:      config.StorageConfig{Backend: config.BackendMemory},
		Quota:        config.QuotaConfig{Backend: config.BackendMemory, DefaultMaxApplications: 5},
		Notification: config.NotificationConfig{Workers: 2, BufferSize: 16, Timeout: time.Second},
		Auth:         config.AuthConfig{JWTSecret: testSecret, JWTIssuer: "placement"},
		Observability: config.ObservabilityConfig{
			LogLevel:       "error",
			LogFormat:      "json",
			MetricsEnabled: true,
		},
	}
}

package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	httptransport "github.com/kycdesk/intake-service/internal/api/http"
	"github.com/kycdesk/intake-service/internal/api/http/handlers"
	"github.com/kycdesk/intake-service/internal/auth"
	"github.com/kycdesk/intake-service/internal/config"
	"github.com/kycdesk/intake-service/internal/observability"
	"github.com/kycdesk/intake-service/internal/repository"
	"github.com/kycdesk/intake-service/internal/service"
	"github.com/kycdesk/intake-service/internal/storage"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testServer struct {
	app   *fiber.App
	clock *clock
	token string
}

func newTestServer(t *testing.T, authRateLimit int) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	clk := &clock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}

	cfg := config.Config{
		App:          config.AppConfig{Name: "intake-service", Env: "test", PublicWebURL: "https://portal.example.com"},
		Auth:         config.AuthConfig{JWTSecret: "test-secret", TokenTTLHours: 8, RememberTTLDays: 30, PasswordResetTTLMinutes: 30, BcryptCost: bcrypt.MinCost},
		Applications: config.ApplicationConfig{EditWindowDays: 7},
	}

	files, err := storage.NewFileStore(t.TempDir(), "/uploads", 1<<20)
	require.NoError(t, err)

	appService := service.NewApplicationService(service.ApplicationDependencies{
		Stores:     repository.NewMemoryApplicationStores(),
		Files:      files,
		Metrics:    metrics,
		Logger:     logger,
		EditWindow: cfg.Applications.EditWindow(),
		Now:        clk.Now,
	})
	authService := service.NewAuthService(cfg, service.AuthDependencies{
		UserRepo: repository.NewMemoryUserRepository(),
		Logger:   logger,
		Now:      clk.Now,
	})

	app := fiber.New(fiber.Config{ErrorHandler: httptransport.ErrorHandler(logger, metrics)})
	httptransport.RegisterMiddlewares(app, logger, metrics, 5*time.Second, "*")
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("intake-service", "test", nil),
		Auth:           handlers.NewAuthHandler(authService),
		Applications:   handlers.NewApplicationsHandler(appService),
		AuthMiddleware: auth.NewAuthMiddleware(authService),
		Metrics:        metrics.Handler(),
		UploadsPrefix:  "/uploads",
		UploadsDir:     files.Dir(),
		AuthRateLimit:  authRateLimit,
	})

	return &testServer{app: app, clock: clk}
}

// signedIn registers an account and keeps a long-lived session for it.
func (s *testServer) signedIn(t *testing.T) *testServer {
	t.Helper()
	resp, body := s.do(t, jsonRequest(http.MethodPost, "/api/auth/signup", `{"name":"Ops","email":"ops@example.com","password":"correct-horse"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	resp, body = s.do(t, jsonRequest(http.MethodPost, "/api/auth/signin", `{"email":"ops@example.com","password":"correct-horse","remember":true}`))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	s.token = out.Token
	return s
}

func (s *testServer) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	if s.token != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type filePart struct {
	field, name, body string
}

func multipartRequest(t *testing.T, method, target, data string, files ...filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if data != "" {
		require.NoError(t, w.WriteField("data", data))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	e, ok := decode(t, body)["error"].(map[string]any)
	require.True(t, ok, string(body))
	return e["code"].(string)
}

const individualData = `{"region":"local","applicantType":"individual","formKey":"ind-v1","formData":{"clientRegistration":{"principal":{"email":"a@b.com"}}}}`

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)

	resp, body := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	resp, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestApplicationsRequireBearerToken(t *testing.T) {
	s := newTestServer(t, 0)

	resp, body := s.do(t, multipartRequest(t, http.MethodPost, "/api/applications", individualData))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	out := decode(t, body)
	assert.Equal(t, "Missing authorization header", out["message"])
	assert.Equal(t, "Missing authorization header", out["error"].(map[string]any)["message"])

	req := httptest.NewRequest(http.MethodGet, "/api/applications/whatever", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, body = s.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, body))
}

func TestSubmitFetchAndExpire(t *testing.T) {
	s := newTestServer(t, 0).signedIn(t)

	resp, body := s.do(t, multipartRequest(t, http.MethodPost, "/api/applications", individualData))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created struct {
		ID             string    `json:"id"`
		EditUntil      time.Time `json:"editUntil"`
		EditWindowDays int       `json:"editWindowDays"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 7, created.EditWindowDays)
	assert.WithinDuration(t, s.clock.Now().Add(7*24*time.Hour), created.EditUntil, time.Second)

	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/applications/"+created.ID, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	record := decode(t, body)
	assert.Equal(t, created.ID, record["id"])
	assert.Equal(t, "local", record["region"])
	assert.Equal(t, "individual", record["applicantType"])
	assert.Equal(t, []any{}, record["files"])
	assert.NotContains(t, record, "editToken")
	formData, err := json.Marshal(record["formData"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"clientRegistration":{"principal":{"email":"a@b.com"}}}`, string(formData))

	s.clock.Advance(7*24*time.Hour + time.Minute)
	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/applications/"+created.ID, nil))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "EDIT_WINDOW_EXPIRED", errorCode(t, body))
}

func TestUpdateMergesUploadsAndServesThem(t *testing.T) {
	s := newTestServer(t, 0).signedIn(t)

	resp, body := s.do(t, multipartRequest(t, http.MethodPost, "/api/applications", individualData,
		filePart{"principalSig", "sig.png", "signature"},
		filePart{"bankProof", "bank statement.pdf", "old statement"},
	))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	id := decode(t, body)["id"].(string)

	resp, body = s.do(t, multipartRequest(t, http.MethodPut, "/api/applications/"+id, individualData,
		filePart{"bankProof", "bank.pdf", "new statement"},
	))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, id, decode(t, body)["id"])

	_, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/applications/"+id, nil))
	var record struct {
		Files []struct {
			Field        string `json:"field"`
			OriginalName string `json:"originalName"`
			Path         string `json:"path"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal(body, &record))
	require.Len(t, record.Files, 2)
	assert.Equal(t, "principalSig", record.Files[0].Field)
	assert.Equal(t, "bankProof", record.Files[1].Field)
	assert.Equal(t, "bank.pdf", record.Files[1].OriginalName)
	assert.True(t, strings.HasPrefix(record.Files[1].Path, "/uploads/"), record.Files[1].Path)

	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, record.Files[1].Path, nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "new statement", string(body))
}

func TestSubmitKeepsClientPartOrder(t *testing.T) {
	s := newTestServer(t, 0).signedIn(t)

	resp, body := s.do(t, multipartRequest(t, http.MethodPost, "/api/applications", individualData,
		filePart{"zeta", "z.pdf", "z"},
		filePart{"alpha", "a.pdf", "a"},
		filePart{"mid", "m.pdf", "m"},
	))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	id := decode(t, body)["id"].(string)

	_, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/applications/"+id, nil))
	var record struct {
		Files []struct {
			Field string `json:"field"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal(body, &record))
	require.Len(t, record.Files, 3)
	assert.Equal(t, "zeta", record.Files[0].Field)
	assert.Equal(t, "alpha", record.Files[1].Field)
	assert.Equal(t, "mid", record.Files[2].Field)
}

func TestUpdateRejectsReclassification(t *testing.T) {
	s := newTestServer(t, 0).signedIn(t)
	_, body := s.do(t, multipartRequest(t, http.MethodPost, "/api/applications", individualData))
	id := decode(t, body)["id"].(string)

	changed := strings.Replace(individualData, `"local"`, `"foreign"`, 1)
	resp, body := s.do(t, multipartRequest(t, http.MethodPut, "/api/applications/"+id, changed))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "CLASSIFICATION_MISMATCH", errorCode(t, body))

	resp, body = s.do(t, multipartRequest(t, http.MethodPut, "/api/applications/missing-id", individualData))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))
}

func TestSubmitValidation(t *testing.T) {
	s := newTestServer(t, 0).signedIn(t)

	cases := []struct {
		name string
		req  *http.Request
		code string
	}{
		{"missing data", multipartRequest(t, http.MethodPost, "/api/applications", ""), "VALIDATION_FAILED"},
		{"broken json", multipartRequest(t, http.MethodPost, "/api/applications", `{"region":`), "VALIDATION_FAILED"},
		{"bad region", multipartRequest(t, http.MethodPost, "/api/applications", strings.Replace(individualData, `"local"`, `"mars"`, 1)), "INVALID_CLASSIFICATION"},
		{"empty form data", multipartRequest(t, http.MethodPost, "/api/applications", `{"region":"local","applicantType":"corporate","formKey":"c","formData":{}}`), "MISSING_FIELD"},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/api/applications", strings.NewReader("x")), "VALIDATION_FAILED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := s.do(t, tc.req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tc.code, errorCode(t, body))
		})
	}
}

func TestSubmitAcceptsJSONBody(t *testing.T) {
	s := newTestServer(t, 0).signedIn(t)
	resp, body := s.do(t, jsonRequest(http.MethodPost, "/api/applications", individualData))
	assert.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
}

func TestAdminList(t *testing.T) {
	s := newTestServer(t, 0).signedIn(t)
	for i := 0; i < 3; i++ {
		resp, _ := s.do(t, multipartRequest(t, http.MethodPost, "/api/applications", individualData))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		s.clock.Advance(time.Second)
	}

	resp, body := s.do(t, httptest.NewRequest(http.MethodGet, "/api/applications/admin/local-individual?limit=2", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var list struct {
		Category string `json:"category"`
		Count    int    `json:"count"`
		Rows     []struct {
			Email string `json:"email"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, "local-individual", list.Category)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "a@b.com", list.Rows[0].Email)

	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/applications/admin/local-corporate", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), decode(t, body)["count"])

	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/applications/admin/martian", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_CLASSIFICATION", errorCode(t, body))
}

func TestAuthEndpoints(t *testing.T) {
	s := newTestServer(t, 0)

	resp, body := s.do(t, jsonRequest(http.MethodPost, "/api/auth/signup", `{"name":"Ama","email":"Ama@Example.com","password":"correct-horse","tel":"020"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	out := decode(t, body)
	assert.NotEmpty(t, out["token"])
	user := out["user"].(map[string]any)
	assert.Equal(t, "ama@example.com", user["email"])
	assert.Equal(t, "020", user["tel"])
	assert.NotContains(t, user, "passwordHash")

	resp, body = s.do(t, jsonRequest(http.MethodPost, "/api/auth/signup", `{"name":"Ama","email":"ama@example.com","password":"correct-horse"}`))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "EMAIL_TAKEN", errorCode(t, body))

	resp, body = s.do(t, jsonRequest(http.MethodPost, "/api/auth/signin", `{"email":"ama@example.com","password":"nope-nope"}`))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid email or password", decode(t, body)["message"])

	resp, _ = s.do(t, jsonRequest(http.MethodPost, "/api/auth/signin", `{"email":"ama@example.com"}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+out["token"].(string))
	resp, body = s.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, user["id"], decode(t, body)["user"].(map[string]any)["id"])

	resp, body = s.do(t, jsonRequest(http.MethodPost, "/api/auth/forgot-password", `{"email":"ghost@example.com"}`))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	resp, body = s.do(t, jsonRequest(http.MethodPost, "/api/auth/reset-password", `{"token":"bogus","password":"brand-new-pass"}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_OR_EXPIRED_TOKEN", errorCode(t, body))
}

func TestAuthRateLimit(t *testing.T) {
	s := newTestServer(t, 2)
	for i := 0; i < 2; i++ {
		resp, _ := s.do(t, jsonRequest(http.MethodPost, "/api/auth/forgot-password", `{"email":"a@b.com"}`))
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := s.do(t, jsonRequest(http.MethodPost, "/api/auth/forgot-password", `{"email":"a@b.com"}`))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMITED", errorCode(t, body))

	resp, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 0)
	s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))

	resp, body := s.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `intake_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

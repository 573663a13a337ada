package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/observability"
	"github.com/jobfill/jobfill/internal/repository/memory"
	"github.com/jobfill/jobfill/internal/services/background"
)

// APIResponseSchema is the envelope every endpoint answers with
type APIResponseSchema struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *APIErrorSchema `json:"error,omitempty"`
}

// APIErrorSchema represents the error response schema
type APIErrorSchema struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ReadyResponseSchema represents the ready endpoint response
type ReadyResponseSchema struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type profileSource struct{ profile *domain.Profile }

func (s profileSource) LoadProfile(ctx context.Context) (*domain.Profile, error) {
	return s.profile, nil
}

type stubAgent struct{ fills int }

func (a *stubAgent) Fill(ctx context.Context) domain.FillResponse {
	a.fills++
	return domain.FillResponse{Success: true, Site: domain.SiteLever, Results: domain.FillResults{Filled: 3}}
}

func (a *stubAgent) SaveCorrections(ctx context.Context) domain.SaveCorrectionsResponse {
	return domain.SaveCorrectionsResponse{Saved: 2}
}

func (a *stubAgent) Status(ctx context.Context) domain.StatusResponse {
	return domain.StatusResponse{Site: domain.SiteLever, Supported: true, FieldsFound: 7}
}

func setupTestRouter(t *testing.T, profile *domain.Profile, apiKey string) (*Router, *background.Service) {
	t.Helper()

	svc := background.NewService(memory.New(), zaptest.NewLogger(t))
	var source background.ProfileSource
	if profile != nil {
		source = profileSource{profile: profile}
	}
	require.NoError(t, svc.Install(context.Background(), source))

	router := NewRouter(RouterConfig{
		Service:        svc,
		Metrics:        observability.NewMetrics("test", prometheus.NewRegistry()),
		Logger:         zaptest.NewLogger(t),
		EnableCORS:     true,
		RateLimit:      6000,
		RateBurst:      100,
		APIKey:         apiKey,
		MaxRequestSize: 1 << 10,
	})
	return router, svc
}

func testProfile() *domain.Profile {
	return &domain.Profile{
		Personal: domain.Personal{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"},
	}
}

func doAction(t *testing.T, router http.Handler, action, body string) (*httptest.ResponseRecorder, APIResponseSchema) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(http.MethodPost, "/api/v1/actions/"+action, nil)
	} else {
		req = httptest.NewRequest(http.MethodPost, "/api/v1/actions/"+action, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp APIResponseSchema
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "response should be an envelope: %s", rec.Body.String())
	return rec, resp
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t, nil, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var apiResp APIResponseSchema
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiResp))
	assert.True(t, apiResp.Success)

	var health map[string]string
	require.NoError(t, json.Unmarshal(apiResp.Data, &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, ServiceName, health["service"])
}

func TestReadyEndpoint(t *testing.T) {
	router, svc := setupTestRouter(t, nil, "")

	get := func() ReadyResponseSchema {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var apiResp APIResponseSchema
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiResp))
		var ready ReadyResponseSchema
		require.NoError(t, json.Unmarshal(apiResp.Data, &ready))
		return ready
	}

	ready := get()
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "healthy", ready.Checks["store"])
	assert.Equal(t, "none", ready.Checks["page"])

	detach := svc.AttachAgent(&stubAgent{})
	defer detach()
	assert.Equal(t, "attached", get().Checks["page"])
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t, testProfile(), "")

	doAction(t, router, "getProfile", "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
}

func TestGetProfile(t *testing.T) {
	t.Run("seeded profile", func(t *testing.T) {
		router, _ := setupTestRouter(t, testProfile(), "")

		rec, resp := doAction(t, router, "getProfile", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		require.True(t, resp.Success)

		var data domain.ProfileResponse
		require.NoError(t, json.Unmarshal(resp.Data, &data))
		require.NotNil(t, data.Profile)
		assert.Equal(t, "Jane", data.Profile.Personal.FirstName)
	})

	t.Run("no profile", func(t *testing.T) {
		router, _ := setupTestRouter(t, nil, "")

		_, resp := doAction(t, router, "getProfile", "")
		require.True(t, resp.Success)
		assert.JSONEq(t, `{"profile":null}`, string(resp.Data))
	})
}

func TestLearnedPatterns(t *testing.T) {
	router, _ := setupTestRouter(t, testProfile(), "")

	_, resp := doAction(t, router, "getLearnedPatterns", "")
	require.True(t, resp.Success)
	assert.JSONEq(t, `{"learnedPatterns":{}}`, string(resp.Data))

	rec, resp := doAction(t, router, "saveLearnedPattern",
		`{"site":"greenhouse","labelPattern":"  Given Name ","profileField":"personal.firstName"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, string(resp.Data))

	_, resp = doAction(t, router, "getLearnedPatterns", "")
	var data domain.LearnedPatternsResponse
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	field, ok := data.LearnedPatterns.Lookup(domain.SiteGreenhouse, "given name")
	require.True(t, ok)
	assert.Equal(t, domain.FieldFirstName, field)
}

func TestSaveLearnedPattern_Invalid(t *testing.T) {
	router, _ := setupTestRouter(t, testProfile(), "")

	tests := []struct {
		name string
		body string
	}{
		{"missing body", ""},
		{"malformed JSON", `{"site":`},
		{"unknown field", `{"site":"lever","labelPattern":"x","profileField":"personal.email","extra":1}`},
		{"unknown profile field", `{"site":"lever","labelPattern":"x","profileField":"personal.shoeSize"}`},
		{"blank label", `{"site":"lever","labelPattern":"   ","profileField":"personal.email"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := doAction(t, router, "saveLearnedPattern", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, domain.ErrCodeValidation, resp.Error.Code)
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	router, _ := setupTestRouter(t, testProfile(), "")

	rec, _ := doAction(t, router, "updateProfile", `{"personal":{"firstName":"Janet","email":"janet@example.com"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	_, resp := doAction(t, router, "getProfile", "")
	var data domain.ProfileResponse
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "Janet", data.Profile.Personal.FirstName)
	assert.Empty(t, data.Profile.Personal.LastName, "sections are replaced wholesale")

	rec, resp = doAction(t, router, "updateProfile", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.ErrCodeValidation, resp.Error.Code)
}

func TestRequestSizeLimit(t *testing.T) {
	router, _ := setupTestRouter(t, testProfile(), "")

	big := `{"coverLetter":"` + string(bytes.Repeat([]byte("a"), 2<<10)) + `"}`
	rec, resp := doAction(t, router, "updateProfile", big)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
}

func TestUnknownAction(t *testing.T) {
	router, _ := setupTestRouter(t, nil, "")

	rec, resp := doAction(t, router, "launchRockets", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.ErrCodeUnknownAction, resp.Error.Code)
}

func TestPageActions(t *testing.T) {
	router, svc := setupTestRouter(t, testProfile(), "")

	for _, action := range []string{"fillForm", "fill", "saveCorrections", "getStatus"} {
		t.Run(action+" without a page", func(t *testing.T) {
			rec, resp := doAction(t, router, action, "")
			assert.Equal(t, http.StatusConflict, rec.Code)
			assert.Equal(t, domain.ErrCodeNoActivePage, resp.Error.Code)
		})
	}

	agent := &stubAgent{}
	detach := svc.AttachAgent(agent)
	defer detach()

	_, resp := doAction(t, router, "fillForm", "")
	var fill domain.FillResponse
	require.NoError(t, json.Unmarshal(resp.Data, &fill))
	assert.True(t, fill.Success)
	assert.Equal(t, 3, fill.Results.Filled)

	doAction(t, router, "fill", "")
	assert.Equal(t, 2, agent.fills)

	_, resp = doAction(t, router, "saveCorrections", "")
	assert.JSONEq(t, `{"saved":2}`, string(resp.Data))

	_, resp = doAction(t, router, "getStatus", "")
	assert.JSONEq(t, `{"site":"lever","supported":true,"fieldsFound":7}`, string(resp.Data))
}

func TestAuth(t *testing.T) {
	router, _ := setupTestRouter(t, testProfile(), "k3y")

	rec, resp := doAction(t, router, "getProfile", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, domain.ErrCodeUnauthorized, resp.Error.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/actions/getProfile", nil)
	req.Header.Set("X-API-Key", "k3y")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// probes stay open
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

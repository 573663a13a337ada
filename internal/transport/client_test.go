package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jobfill/jobfill/internal/api"
	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/repository/memory"
	"github.com/jobfill/jobfill/internal/resilience"
	"github.com/jobfill/jobfill/internal/services/background"
	"github.com/jobfill/jobfill/internal/transport"
	"github.com/jobfill/jobfill/pkg/httputil"
)

func newClient(t *testing.T, baseURL, apiKey string) *transport.Client {
	t.Helper()
	cfg := transport.DefaultClientConfig()
	cfg.BaseURL = baseURL
	cfg.APIKey = apiKey
	cfg.Timeout = 2 * time.Second
	cfg.RequestsPerSecond = 0
	c, err := transport.NewClient(cfg, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := transport.NewClient(transport.ClientConfig{}, nil, nil)
	assert.Error(t, err)
}

func TestClient_AgainstBackgroundService(t *testing.T) {
	svc := background.NewService(memory.New(), zaptest.NewLogger(t))
	require.NoError(t, svc.Install(context.Background(), nil))

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		Logger:  zaptest.NewLogger(t),
		APIKey:  "secret",
	})
	server := httptest.NewServer(router)
	defer server.Close()

	ctx := context.Background()
	client := newClient(t, server.URL+"/", "secret")

	profile, err := client.GetProfile(ctx)
	require.NoError(t, err)
	assert.Nil(t, profile, "no profile before one is saved")

	require.NoError(t, client.UpdateProfile(ctx, domain.UpdateProfileRequest{
		"personal": []byte(`{"firstName":"Jane","email":"jane@example.com"}`),
	}))

	profile, err = client.GetProfile(ctx)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Jane", profile.Personal.FirstName)

	patterns, err := client.GetLearnedPatterns(ctx)
	require.NoError(t, err)
	assert.Zero(t, patterns.Count())

	require.NoError(t, client.SaveLearnedPattern(ctx, domain.LearnedPattern{
		Site:         domain.SiteWorkday,
		LabelPattern: "Legal First Name",
		ProfileField: domain.FieldFirstName,
	}))

	patterns, err = client.GetLearnedPatterns(ctx)
	require.NoError(t, err)
	field, ok := patterns.Lookup(domain.SiteWorkday, "legal first name")
	assert.True(t, ok)
	assert.Equal(t, domain.FieldFirstName, field)

	// rejections keep the server's code
	err = client.SaveLearnedPattern(ctx, domain.LearnedPattern{Site: domain.SiteWorkday})
	assert.Equal(t, domain.ErrCodeValidation, domain.GetErrorCode(err))

	_, err = client.FillForm(ctx)
	assert.Equal(t, domain.ErrCodeNoActivePage, domain.GetErrorCode(err))

	// a wrong key is rejected
	_, err = newClient(t, server.URL, "guess").GetProfile(ctx)
	assert.Equal(t, domain.ErrCodeUnauthorized, domain.GetErrorCode(err))
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		httputil.JSONError(w, http.StatusInternalServerError, domain.ErrCodeStorage, "storage error", nil)
	}))
	defer server.Close()

	client := newClient(t, server.URL, "")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.GetProfile(ctx)
		assert.Equal(t, domain.ErrCodeStorage, domain.GetErrorCode(err))
	}

	_, err := client.GetProfile(ctx)
	assert.Equal(t, domain.ErrCodeServiceUnavail, domain.GetErrorCode(err))
	assert.Equal(t, int32(3), hits.Load(), "an open circuit does not call the server")
	assert.Equal(t, resilience.StateOpen, client.Breakers()[string(domain.ActionGetProfile)])

	// breakers are per action
	_, err = client.GetLearnedPatterns(ctx)
	assert.Equal(t, domain.ErrCodeStorage, domain.GetErrorCode(err))
	assert.Equal(t, int32(4), hits.Load())
}

func TestClient_ClientErrorsDoNotTrip(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		httputil.JSONError(w, http.StatusBadRequest, domain.ErrCodeValidation, "bad pattern", nil)
	}))
	defer server.Close()

	client := newClient(t, server.URL, "")
	for i := 0; i < 5; i++ {
		err := client.SaveLearnedPattern(context.Background(), domain.LearnedPattern{})
		assert.Equal(t, domain.ErrCodeValidation, domain.GetErrorCode(err))
	}
	assert.Equal(t, int32(5), hits.Load())
	assert.Equal(t, resilience.StateClosed, client.Breakers()[string(domain.ActionSaveLearnedPattern)])
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newClient(t, url, "").GetProfile(context.Background())
	assert.Equal(t, domain.ErrCodeTransport, domain.GetErrorCode(err))
}

func TestClient_SendsHeaders(t *testing.T) {
	var got http.Header
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		path = r.URL.Path
		httputil.JSON(w, http.StatusOK, domain.LearnedPatternsResponse{})
	}))
	defer server.Close()

	patterns, err := newClient(t, server.URL, "k").GetLearnedPatterns(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, patterns, "a null pattern record decodes as empty")

	assert.Equal(t, transport.ActionsPath+"getLearnedPatterns", path)
	assert.Equal(t, "k", got.Get("X-API-Key"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
}

func TestClientConfigFrom(t *testing.T) {
	cfg := transport.ClientConfigFrom(config.TransportConfig{
		BaseURL:           "http://background:8080",
		Timeout:           3 * time.Second,
		RequestsPerSecond: 5,
		BreakerFailures:   1,
		BreakerTimeout:    time.Minute,
	}, "k")

	assert.Equal(t, "http://background:8080", cfg.BaseURL)
	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, 5.0, cfg.RequestsPerSecond)
	assert.Equal(t, 5, cfg.Burst, "unset burst keeps the default")
	assert.Equal(t, time.Minute, cfg.Breaker.Timeout)
	assert.True(t, cfg.Breaker.ReadyToTrip(resilience.Counts{ConsecutiveFailures: 1}))
}

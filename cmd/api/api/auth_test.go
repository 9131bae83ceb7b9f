package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashab24/batch-job-orch/cmd/api/config"
	"github.com/Ashab24/batch-job-orch/lib/images"
	"github.com/Ashab24/batch-job-orch/lib/middleware"
	"github.com/Ashab24/batch-job-orch/lib/paths"
	"github.com/Ashab24/batch-job-orch/lib/runs"
)

const testSecret = "test-secret"

func newAuthedServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		DataDir:       t.TempDir(),
		MaxSourceSize: 10 << 20,
		JwtSecret:     testSecret,
	}
	p := paths.New(cfg.DataDir)

	imageMgr, err := images.NewManager(p, testIndex, 1, nil, nil)
	require.NoError(t, err)
	runMgr, err := runs.NewManager(p, imageMgr, &fakeRuntime{}, nil, nil)
	require.NoError(t, err)

	service := New(cfg, imageMgr, runMgr)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(service.Router(log, middleware.NoopHTTPMetrics()))
	t.Cleanup(srv.Close)
	return srv
}

func signToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "tester",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuth(t *testing.T) {
	srv := newAuthedServer(t)

	// Health stays open.
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// API routes require a token.
	resp, err = http.Get(srv.URL + "/images")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/images", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong-secret"))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/stats", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"totalUsers":7,"activeSessions":2,"uptime":3720,"queueStatus":"busy"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, discardLogger())
	stats, err := client.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, stats.TotalUsers)
	assert.Equal(t, 2, stats.ActiveSessions)
	assert.Equal(t, 3720, stats.Uptime)
	assert.Equal(t, "busy", stats.QueueStatus)
}

func TestSpecs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderServerFingerprint, "fp-1")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"os": {"platform": "linux", "arch": "x64"},
			"cpu": {"model": "Xeon", "cores": 4},
			"memory": {"used": 2.5, "total": 8},
			"node": "v20.11.0"
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, discardLogger())
	specs, err := client.Specs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "linux", specs.OS.Platform)
	assert.Equal(t, 4, specs.CPU.Cores)
	assert.InDelta(t, 2.5, specs.Memory.Used, 0.001)
	assert.Equal(t, "v20.11.0", specs.Node)

	// The specs call is what seeds the fingerprint for later requests.
	value, ok := client.fp.Value()
	require.True(t, ok)
	assert.Equal(t, "fp-1", value)
}

func TestVerifyAuthDistinguishesInvalidFromUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "alice", r.URL.Query().Get("username"))
		assert.Equal(t, "device-1", r.URL.Query().Get("deviceId"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"valid":false,"reason":"expired"}`))
	}))

	client := NewClient(server.URL, nil, discardLogger())
	result, err := client.VerifyAuth(context.Background(), "alice", "device-1")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "expired", result.Reason)

	// A dead server is an error, not a rejection.
	server.Close()
	_, err = client.VerifyAuth(context.Background(), "alice", "device-1")
	require.Error(t, err)
}

func TestSubmitURLBuild(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/build", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"url":"https://example.com"`)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"downloadUrl":"/download/a.apk","expiresIn":120}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, discardLogger())
	result, err := client.SubmitURLBuild(context.Background(), &URLBuildParams{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "/download/a.apk", result.DownloadURL)
	assert.Equal(t, 120, result.ExpiresIn)
}

func TestSubmitZipBuildSendsMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()

		content, _ := io.ReadAll(file)
		assert.Equal(t, "project.zip", header.Filename)
		assert.Equal(t, "zip bytes", string(content))
		assert.Equal(t, "flutter", r.FormValue("projectType"))
		assert.Equal(t, "release", r.FormValue("buildType"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"downloadUrl":"/download/b.apk","expiresIn":90}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, discardLogger())
	result, err := client.SubmitZipBuild(context.Background(), &ZipBuildParams{
		Filename:    "project.zip",
		Content:     []byte("zip bytes"),
		ProjectType: "flutter",
		BuildType:   "release",
	})
	require.NoError(t, err)
	assert.Equal(t, 90, result.ExpiresIn)
}

func TestServerErrorTranslated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"a website URL is required"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, discardLogger())
	_, err := client.SubmitURLBuild(context.Background(), &URLBuildParams{URL: "https://example.com"})
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "a website URL is required", apiErr.Message)
}

func TestServerErrorWithoutBodyFallsBackToStatusText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, discardLogger())
	_, err := client.Stats(context.Background())

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), apiErr.Message)
}

func TestLogout(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/logout", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, discardLogger())
	err := client.Logout(context.Background(), "alice", "device-1")
	require.NoError(t, err)
	assert.Contains(t, gotBody, `"username":"alice"`)
	assert.Contains(t, gotBody, `"deviceId":"device-1"`)
}

package collyfetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sitesage/webscan/internal/scan"
)

func TestFetchReturnsStatusHeadersBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("X-Frame-Options", "DENY")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "test-agent", Timeout: 5 * time.Second})
	res, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "DENY", res.Headers.Get("X-Frame-Options"))
	require.Contains(t, string(res.Body), "ok")
	require.Greater(t, res.Duration, time.Duration(0))
}

func TestFetchSendsConfiguredUserAgent(t *testing.T) {
	t.Parallel()

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "SiteSageBot/1.0", Timeout: 5 * time.Second})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "SiteSageBot/1.0", gotUA)
}

func TestFetchHTTPErrorStatusIsStillAResult(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Server", "nginx")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	res, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Equal(t, "nginx", res.Headers.Get("Server"))
}

func TestFetchTimeoutIsClassified(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 100 * time.Millisecond})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.True(t, scan.IsFetchTimeout(err), "expected timeout classification, got %v", err)
}

func TestFetchRejectsUnsupportedScheme(t *testing.T) {
	t.Parallel()

	f := New(Config{Timeout: time.Second})
	_, err := f.Fetch(context.Background(), "ftp://example.com")
	require.Error(t, err)
	require.False(t, scan.IsFetchTimeout(err))
}

func TestFetchUnreachableHostIsNetworkError(t *testing.T) {
	t.Parallel()

	f := New(Config{Timeout: 2 * time.Second})
	_, err := f.Fetch(context.Background(), "http://127.0.0.1:1")
	require.Error(t, err)
	var fe *scan.FetchError
	require.ErrorAs(t, err, &fe)
}

package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic_ReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "groups.json")

	require.NoError(t, WriteFileAtomic(path, []byte(`[1]`), 0644))
	require.NoError(t, WriteFileAtomic(path, []byte(`[1,2]`), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestNewProxyFunc_NoProxyBypass(t *testing.T) {
	proxy := NewProxyFunc("http://proxy:3128", "", "internal.example, models.local")

	req, _ := http.NewRequest(http.MethodGet, "http://api.internal.example/embed", nil)
	u, err := proxy(req)
	require.NoError(t, err)
	assert.Nil(t, u)

	req, _ = http.NewRequest(http.MethodGet, "http://127.0.0.1:8000/embed", nil)
	u, err = proxy(req)
	require.NoError(t, err)
	assert.Nil(t, u)

	req, _ = http.NewRequest(http.MethodGet, "http://api.openai.com/v1", nil)
	u, err = proxy(req)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "proxy:3128", u.Host)
}

func TestRobotsChecker(t *testing.T) {
	var robotsHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits.Add(1)
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\nCrawl-delay: 2\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := NewRobotsChecker(server.Client(), "claimsynth/0.1 (+https://example.com)")

	delay, err := r.Check(context.Background(), server.URL+"/data/articles.json")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, delay)

	_, err = r.Check(context.Background(), server.URL+"/private/articles.json")
	assert.ErrorIs(t, err, ErrRobotsDisallowed)

	assert.Equal(t, int32(1), robotsHits.Load(), "robots.txt is fetched once per host")
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	delay, err := NewRobotsChecker(server.Client(), "claimsynth").Check(context.Background(), server.URL+"/private")
	require.NoError(t, err)
	assert.Zero(t, delay)
}

func TestNormalizeUserAgent(t *testing.T) {
	assert.Equal(t, "claimsynth", NormalizeUserAgent("claimsynth/0.1 (+https://example.com)"))
	assert.Equal(t, "", NormalizeUserAgent(""))
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/claimsynth/internal/util"
)

func noSleep(t *testing.T) {
	t.Helper()
	origSleep := fetchSleepFunc
	fetchSleepFunc = func(d time.Duration) {}
	t.Cleanup(func() { fetchSleepFunc = origSleep })
}

func TestFetchWithRetry_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("expected user agent test-agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `[{"text":"OK"}]`)
	}))
	defer server.Close()

	fetcher := NewFetcher(nil, 5*time.Second, "test-agent", 1<<20)
	body, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(body) != `[{"text":"OK"}]` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestFetchWithRetry_TransientThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, "[]")
	}))
	defer server.Close()
	noSleep(t)

	fetcher := NewFetcher(nil, 5*time.Second, "test-agent", 1<<20)
	body, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if string(body) != "[]" {
		t.Errorf("unexpected body: %s", body)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_PermanentFailure(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()
	noSleep(t)

	fetcher := NewFetcher(nil, 5*time.Second, "test-agent", 1<<20)
	_, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 404, got nil")
	}
	if got := err.Error(); got != "unexpected status: 404 404 Not Found" {
		t.Errorf("unexpected error: %s", got)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_AllRetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()
	noSleep(t)

	fetcher := NewFetcher(nil, 5*time.Second, "test-agent", 1<<20)
	if _, err := fetcher.FetchWithRetry(context.Background(), server.URL); err == nil {
		t.Fatal("expected error after all retries exhausted")
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"503", &statusError{code: 503, status: "503 Service Unavailable"}, true},
		{"500", &statusError{code: 500, status: "500 Internal Server Error"}, true},
		{"429", &statusError{code: 429, status: "429 Too Many Requests"}, true},
		{"404", &statusError{code: 404, status: "404 Not Found"}, false},
		{"403", &statusError{code: 403, status: "403 Forbidden"}, false},
		{"transport", fmt.Errorf("%w: %w", errTransport, fmt.Errorf("connection refused")), true},
		{"request", fmt.Errorf("create request: invalid URL"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableFetchError(tt.err); got != tt.retryable {
				t.Errorf("isRetryableFetchError(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}

func TestOpen_LocalFileAndLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.json")
	if err := os.WriteFile(path, []byte(`[{"text":"a"}]`), 0644); err != nil {
		t.Fatal(err)
	}

	body, err := NewFetcher(nil, time.Second, "", 1<<20).Open(context.Background(), path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(body) != `[{"text":"a"}]` {
		t.Errorf("unexpected body: %s", body)
	}

	if _, err := NewFetcher(nil, time.Second, "", 4).Open(context.Background(), path); err == nil {
		t.Error("expected size limit error")
	}
	if _, err := NewFetcher(nil, time.Second, "", 1<<20).Open(context.Background(), path+".missing"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIsRemote(t *testing.T) {
	cases := map[string]bool{
		"https://example.com/claims.json": true,
		"http://localhost:8080/a":         true,
		"claims.json":                     false,
		"/tmp/claims.json":                false,
		"file:///tmp/claims.json":         false,
		"-":                               false,
	}
	for src, want := range cases {
		if got := IsRemote(src); got != want {
			t.Errorf("IsRemote(%q) = %v, want %v", src, got, want)
		}
	}
}

func TestFetchWithRetry_RobotsDisallowed(t *testing.T) {
	var dataHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: claimsynth\nDisallow: /private\n")
			return
		}
		dataHits.Add(1)
		_, _ = fmt.Fprint(w, "[]")
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), 5*time.Second, "claimsynth/0.1", 1<<20).
		WithRobots(util.NewRobotsChecker(server.Client(), "claimsynth/0.1"))

	if _, err := fetcher.FetchWithRetry(context.Background(), server.URL+"/private/a.json"); !errors.Is(err, util.ErrRobotsDisallowed) {
		t.Fatalf("expected ErrRobotsDisallowed, got %v", err)
	}
	if _, err := fetcher.FetchWithRetry(context.Background(), server.URL+"/public/a.json"); err != nil {
		t.Fatalf("expected allowed fetch, got %v", err)
	}
	if dataHits.Load() != 1 {
		t.Errorf("expected 1 data request, got %d", dataHits.Load())
	}
}

func TestFetch_DecodesDeclaredCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=windows-1252")
		_, _ = w.Write([]byte("[{\"text\":\"caf\xe9\"}]"))
	}))
	defer server.Close()

	fetcher := NewFetcher(nil, 5*time.Second, "test-agent", 1<<20)
	body, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(body) != `[{"text":"café"}]` {
		t.Errorf("unexpected body: %q", body)
	}
}

func TestDecodeCharset(t *testing.T) {
	utf8Body := []byte(`["Hà Nội"]`)

	tests := []struct {
		name        string
		contentType string
		wantErr     bool
	}{
		{"no content type", "", false},
		{"no charset", "application/json", false},
		{"explicit utf-8", "application/json; charset=UTF-8", false},
		{"unknown charset", "application/json; charset=x-nope", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeCharset(utf8Body, tt.contentType)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if string(got) != string(utf8Body) {
				t.Errorf("body changed: %q", got)
			}
		})
	}
}

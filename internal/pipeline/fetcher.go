package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/ppiankov/claimsynth/internal/util"
)

// fetchSleepFunc is replaced in tests to skip backoff delays
var fetchSleepFunc = time.Sleep

const maxFetchAttempts = 3

var errTransport = errors.New("fetch")

// Fetcher reads pipeline inputs from local files or http(s) URLs
type Fetcher struct {
	httpClient *http.Client
	robots     *util.RobotsChecker // nil skips robots.txt checks
	userAgent  string
	maxBytes   int64
}

// NewFetcher creates a Fetcher on top of client. A nil client gets a plain
// client with the given timeout.
func NewFetcher(client *http.Client, timeout time.Duration, userAgent string, maxBytes int64) *Fetcher {
	c := &http.Client{Timeout: timeout}
	if client != nil {
		copied := *client
		c = &copied
	}
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("stopped after 3 redirects")
		}
		return nil
	}
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	return &Fetcher{httpClient: c, userAgent: userAgent, maxBytes: maxBytes}
}

type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.code, e.status)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// WithRobots makes remote fetches honor robots.txt rules and crawl delays
func (f *Fetcher) WithRobots(r *util.RobotsChecker) *Fetcher {
	f.robots = r
	return f
}

// IsRemote reports whether src is an http(s) URL
func IsRemote(src string) bool {
	u, err := url.Parse(src)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Open returns the content of src: a URL, "-" for stdin, or a file path
func (f *Fetcher) Open(ctx context.Context, src string) ([]byte, error) {
	switch {
	case IsRemote(src):
		return f.FetchWithRetry(ctx, src)
	case src == "-":
		return f.readLimited(os.Stdin)
	default:
		file, err := os.Open(src)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return f.readLimited(file)
	}
}

// Fetch retrieves the body at rawURL
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "application/json, */*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, status: resp.Status}
	}
	body, err := f.readLimited(resp.Body)
	if err != nil {
		return nil, err
	}
	return decodeCharset(body, resp.Header.Get("Content-Type"))
}

// decodeCharset converts a body with an explicitly declared non-UTF-8
// charset to UTF-8. Bodies without a charset parameter are left alone.
func decodeCharset(body []byte, contentType string) ([]byte, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil || params["charset"] == "" {
		return body, nil
	}
	enc, name := charset.Lookup(params["charset"])
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", params["charset"])
	}
	if name == "utf-8" {
		return body, nil
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s body: %w", name, err)
	}
	return out, nil
}

// FetchWithRetry retries transport failures, 429 and 5xx responses with
// exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	backoff := time.Second
	if f.robots != nil {
		delay, err := f.robots.Check(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		backoff = max(backoff, delay)
	}
	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		body, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !isRetryableFetchError(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < maxFetchAttempts {
			fetchSleepFunc(backoff)
			backoff *= 2
		}
	}
	return nil, lastErr
}

// isRetryableFetchError reports whether err is a transport failure or a
// 429/5xx response
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	return errors.Is(err, errTransport)
}

func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("input exceeds %d bytes", f.maxBytes)
	}
	return body, nil
}

// sourceName shortens a URL or path for progress output
func sourceName(src string) string {
	if !IsRemote(src) {
		return src
	}
	u, _ := url.Parse(src)
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return u.Host
	}
	segments := strings.Split(path, "/")
	return u.Host + "/" + segments[len(segments)-1]
}

package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// Endpoint holds the connection settings shared by every backend
type Endpoint struct {
	Model   string
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Client  *http.Client // nil uses a client with Timeout
}

func (e Endpoint) httpClient() *http.Client {
	if e.Client != nil {
		return e.Client
	}
	timeout := e.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func (e Endpoint) baseURL(fallback string) string {
	if e.BaseURL == "" {
		return fallback
	}
	return strings.TrimSuffix(e.BaseURL, "/")
}

// withTimeout bounds a single call when the endpoint sets a timeout
func (e Endpoint) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.Timeout)
}

// postJSON sends in as a JSON body and decodes the response into out.
// Transport failures and 5xx/429 statuses map to ErrUnavailable, other
// non-2xx statuses and undecodable bodies to ErrBadResponse.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		sentinel := ErrBadResponse
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			sentinel = ErrUnavailable
		}
		return fmt.Errorf("%w: %s returned %d: %s", sentinel, url, resp.StatusCode, truncate(strings.TrimSpace(string(respBody)), 200))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: unmarshal response: %v", ErrBadResponse, err)
	}
	return nil
}

// unitNormalize scales v to unit length in place. Zero vectors are left as is.
func unitNormalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// checkVectors validates the one-vector-per-input contract
func checkVectors(vecs [][]float32, n int) error {
	if len(vecs) != n {
		return fmt.Errorf("%w: got %d vectors for %d inputs", ErrBadResponse, len(vecs), n)
	}
	dim := -1
	for i, v := range vecs {
		if len(v) == 0 {
			return fmt.Errorf("%w: empty vector at %d", ErrBadResponse, i)
		}
		if dim >= 0 && len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrBadResponse, i, len(v), dim)
		}
		dim = len(v)
	}
	return nil
}

package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropic_Summarize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("expected x-api-key test-key, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("expected anthropic-version header")
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "Hà Nội mưa lớn") {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"  Hà Nội có mưa lớn.  "}],"model":"claude","stop_reason":"end_turn"}`))
	}))
	defer server.Close()

	p, err := NewAnthropic(Endpoint{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	summary, err := p.Summarize(context.Background(), "Hà Nội mưa lớn suốt đêm.", SummaryOptions{MaxLength: 40})
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if summary != "Hà Nội có mưa lớn." {
		t.Errorf("unexpected summary: %q", summary)
	}
}

func TestAnthropic_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer server.Close()

	p, err := NewAnthropic(Endpoint{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	_, err = p.ClassifyPair(context.Background(), "a", "b")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

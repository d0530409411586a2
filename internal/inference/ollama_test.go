package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllama_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("expected path /api/embed, got %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "bge-m3" || len(req.Input) != 2 {
			t.Errorf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Model:      "bge-m3",
			Embeddings: [][]float32{{2, 0}, {0, 5}},
		})
	}))
	defer server.Close()

	p := NewOllama(Endpoint{BaseURL: server.URL}, "bge-m3")
	vecs, err := p.Embed(context.Background(), []string{"một", "hai"})
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("expected unit vectors, got %v", vecs)
	}
}

func TestOllama_Embed_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1, 0}}})
	}))
	defer server.Close()

	p := NewOllama(Endpoint{BaseURL: server.URL}, "bge-m3")
	if _, err := p.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected error for vector count mismatch")
	}
}

func TestOllama_Classify_UsesJSONFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("expected path /api/generate, got %s", r.URL.Path)
		}
		var req ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Format != "json" {
			t.Errorf("expected json format, got %q", req.Format)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Model:    "qwen2.5",
			Response: `{"scores": {"Thể thao": 0.9, "Sức khỏe & Y tế": 0.2}}`,
			Done:     true,
		})
	}))
	defer server.Close()

	p := NewOllama(Endpoint{BaseURL: server.URL, Model: "qwen2.5"}, "")
	c, err := p.Classify(context.Background(), "Đội tuyển thắng 2-0", []string{"Sức khỏe & Y tế", "Thể thao"})
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	label, score, ok := c.Top()
	if !ok || label != "Thể thao" || score != 0.9 {
		t.Errorf("expected Thể thao 0.9, got %s %v", label, score)
	}
	if c.Labels[0] != "Thể thao" {
		t.Errorf("expected ranked labels, got %v", c.Labels)
	}
}

func TestOllama_RequiresModelForTextTasks(t *testing.T) {
	p := NewOllama(Endpoint{BaseURL: "http://127.0.0.1:1"}, "")
	if _, err := p.Summarize(context.Background(), "x", SummaryOptions{}); err == nil {
		t.Error("expected error when no model is configured")
	}
}

package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/claimsynth/internal/model"
)

// ModelServer talks to a self-hosted model server exposing one JSON endpoint
// per task:
//
//	POST /embed      {"texts": [...]}                        -> {"embeddings": [[...], ...]}
//	POST /classify   {"text": "...", "candidate_labels": [...]} -> {"labels": [...], "scores": [...]}
//	POST /ner        {"text": "..."}                         -> {"entities": [{"label", "text", "score", "start", "end"}]}
//	POST /summarize  {"text": "...", "max_length", ...}      -> {"summary": "..."}
//	POST /nli        {"premise": "...", "hypothesis": "..."}  -> {"class": 0|1|2} or {"label": "contradiction"}
type ModelServer struct {
	endpoint Endpoint
	baseURL  string
}

type embedRequest struct {
	Model string   `json:"model,omitempty"`
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type classifyRequest struct {
	Text            string   `json:"text"`
	CandidateLabels []string `json:"candidate_labels"`
}

type nerRequest struct {
	Text string `json:"text"`
}

type nerResponse struct {
	Entities []model.Entity `json:"entities"`
}

type summarizeRequest struct {
	Text string `json:"text"`
	SummaryOptions
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

type nliRequest struct {
	Premise    string `json:"premise"`
	Hypothesis string `json:"hypothesis"`
}

type nliResponse struct {
	Class *int   `json:"class"`
	Label string `json:"label"`
}

// NewModelServer creates a client for the generic model server
func NewModelServer(endpoint Endpoint) *ModelServer {
	return &ModelServer{
		endpoint: endpoint,
		baseURL:  endpoint.baseURL("http://localhost:8000"),
	}
}

// Name returns the provider name
func (s *ModelServer) Name() string {
	return "http"
}

func (s *ModelServer) post(ctx context.Context, path string, in, out any) error {
	ctx, cancel := s.endpoint.withTimeout(ctx)
	defer cancel()

	var headers map[string]string
	if s.endpoint.APIKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + s.endpoint.APIKey}
	}
	if err := postJSON(ctx, s.endpoint.httpClient(), s.baseURL+path, headers, in, out); err != nil {
		return fmt.Errorf("model server %s: %w", strings.TrimPrefix(path, "/"), err)
	}
	return nil
}

// Embed implements Embedder
func (s *ModelServer) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp embedResponse
	if err := s.post(ctx, "/embed", embedRequest{Model: s.endpoint.Model, Texts: texts}, &resp); err != nil {
		return nil, err
	}
	if err := checkVectors(resp.Embeddings, len(texts)); err != nil {
		return nil, err
	}
	for _, v := range resp.Embeddings {
		unitNormalize(v)
	}
	return resp.Embeddings, nil
}

// Classify implements TopicClassifier
func (s *ModelServer) Classify(ctx context.Context, text string, labels []string) (Classification, error) {
	var resp Classification
	if err := s.post(ctx, "/classify", classifyRequest{Text: text, CandidateLabels: labels}, &resp); err != nil {
		return Classification{}, err
	}
	if len(resp.Labels) != len(resp.Scores) {
		return Classification{}, fmt.Errorf("%w: %d labels but %d scores", ErrBadResponse, len(resp.Labels), len(resp.Scores))
	}
	return resp, nil
}

// Recognize implements EntityRecognizer
func (s *ModelServer) Recognize(ctx context.Context, text string) ([]model.Entity, error) {
	var resp nerResponse
	if err := s.post(ctx, "/ner", nerRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return resp.Entities, nil
}

// Summarize implements Summarizer
func (s *ModelServer) Summarize(ctx context.Context, text string, opts SummaryOptions) (string, error) {
	var resp summarizeResponse
	if err := s.post(ctx, "/summarize", summarizeRequest{Text: text, SummaryOptions: opts}, &resp); err != nil {
		return "", err
	}
	summary := strings.TrimSpace(resp.Summary)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary", ErrBadResponse)
	}
	return summary, nil
}

// ClassifyPair implements PairClassifier
func (s *ModelServer) ClassifyPair(ctx context.Context, premise, hypothesis string) (NLIClass, error) {
	var resp nliResponse
	if err := s.post(ctx, "/nli", nliRequest{Premise: premise, Hypothesis: hypothesis}, &resp); err != nil {
		return Neutral, err
	}
	if resp.Class != nil {
		c := NLIClass(*resp.Class)
		if c < Contradiction || c > Entailment {
			return Neutral, fmt.Errorf("%w: NLI class %d out of range", ErrBadResponse, *resp.Class)
		}
		return c, nil
	}
	return ParseNLIClass(resp.Label)
}

// Package enrich annotates the sentences of news articles with a topic,
// named entities, dates and keywords, producing the flat claim records that
// synthesis consumes.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/claimsynth/internal/inference"
	"github.com/ppiankov/claimsynth/internal/model"
)

// Stats summarizes one enrichment run
type Stats struct {
	Articles        int
	ArticlesKept    int
	ClaimsIn        int
	ClaimsKept      int
	EmptyClaims     int
	LowConfidence   int
	ClassifyErrors  int
	RecognizeErrors int
}

func (s *Stats) add(o Stats) {
	s.Articles += o.Articles
	s.ArticlesKept += o.ArticlesKept
	s.ClaimsIn += o.ClaimsIn
	s.ClaimsKept += o.ClaimsKept
	s.EmptyClaims += o.EmptyClaims
	s.LowConfidence += o.LowConfidence
	s.ClassifyErrors += o.ClassifyErrors
	s.RecognizeErrors += o.RecognizeErrors
}

// Enricher runs topic assignment, entity annotation and keyword extraction
// over articles
type Enricher struct {
	topics   *TopicAssigner
	entities *EntityAnnotator
	keywords *KeywordExtractor
	workers  int
	logger   *zap.Logger
}

// New creates an enricher backed by the given model services
func New(cfg *model.Config, services inference.Services, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.Concurrency.EnrichWorkers
	if workers <= 0 {
		workers = 1
	}
	return &Enricher{
		topics:   NewTopicAssigner(services.Classifier, cfg.Enrichment),
		entities: NewEntityAnnotator(services.Recognizer, logger.Named("ner")),
		keywords: NewKeywordExtractor(services.Embedder, cfg.Enrichment),
		workers:  workers,
		logger:   logger,
	}
}

// Enrich annotates every claim of every article and flattens the kept claims
// into records, in article then claim order. Claims below the topic confidence
// threshold are dropped, as are articles left without claims. A keyword
// embedding failure aborts the run.
func (e *Enricher) Enrich(ctx context.Context, articles []model.Article) ([]model.ClaimRecord, Stats, error) {
	results := make([][]model.ClaimRecord, len(articles))
	stats := make([]Stats, len(articles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range articles {
		g.Go(func() error {
			recs, st, err := e.enrichArticle(gctx, articles[i])
			results[i], stats[i] = recs, st
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}

	var total Stats
	records := []model.ClaimRecord{}
	for i := range articles {
		total.add(stats[i])
		records = append(records, results[i]...)
	}
	e.logger.Info("enrichment complete",
		zap.Int("articles", total.Articles),
		zap.Int("articles_kept", total.ArticlesKept),
		zap.Int("claims_in", total.ClaimsIn),
		zap.Int("claims_kept", total.ClaimsKept),
		zap.Int("low_confidence", total.LowConfidence))
	return records, total, nil
}

func (e *Enricher) enrichArticle(ctx context.Context, art model.Article) ([]model.ClaimRecord, Stats, error) {
	st := Stats{Articles: 1}
	var records []model.ClaimRecord
	for _, c := range art.Claims {
		st.ClaimsIn++
		text := strings.TrimSpace(c.Text)
		if text == "" {
			st.EmptyClaims++
			continue
		}

		topic, confidence, ok, err := e.topics.Assign(ctx, text)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, st, ctxErr
			}
			st.ClassifyErrors++
			e.logger.Warn("topic classification failed, dropping claim",
				zap.String("article_id", string(art.ID)), zap.Error(err))
			continue
		}
		if !ok {
			st.LowConfidence++
			e.logger.Debug("low topic confidence",
				zap.String("article_id", string(art.ID)),
				zap.String("topic", topic),
				zap.Float64("confidence", confidence))
			continue
		}

		entities, failed := e.entities.Annotate(ctx, text)
		if failed {
			st.RecognizeErrors++
		}
		keywords, err := e.keywords.Extract(ctx, text)
		if err != nil {
			return nil, st, fmt.Errorf("article %s: rank keywords: %w", art.ID, err)
		}

		conf := confidence
		records = append(records, model.ClaimRecord{
			ArticleID:  art.ID,
			URL:        art.URL,
			Title:      art.Title,
			Text:       text,
			Topic:      topic,
			Confidence: &conf,
			Entities:   entities,
			Keywords:   keywords,
		})
		st.ClaimsKept++
	}
	if len(records) > 0 {
		st.ArticlesKept = 1
	}
	return records, st, nil
}

// ReadArticles decodes either a JSON array of articles or a single article
// object
func ReadArticles(r io.Reader) ([]model.Article, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read articles: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("read articles: empty input")
	}
	if data[0] == '{' {
		var art model.Article
		if err := json.Unmarshal(data, &art); err != nil {
			return nil, fmt.Errorf("decode article: %w", err)
		}
		return []model.Article{art}, nil
	}
	var arts []model.Article
	if err := json.Unmarshal(data, &arts); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	return arts, nil
}

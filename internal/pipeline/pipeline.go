// Package pipeline wires input loading, enrichment, synthesis, rendering and
// the group index into the runs exposed by the CLI.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/claimsynth/internal/enrich"
	"github.com/ppiankov/claimsynth/internal/inference"
	"github.com/ppiankov/claimsynth/internal/model"
	"github.com/ppiankov/claimsynth/internal/store"
	"github.com/ppiankov/claimsynth/internal/synth"
)

// Pipeline orchestrates enrichment and synthesis runs
type Pipeline struct {
	fetcher     *Fetcher
	enricher    *enrich.Enricher
	synthesizer *synth.Synthesizer
	renderer    *Renderer
	store       *store.Store // Optional group index (nil if disabled)
	config      *model.Config
	logger      *zap.Logger
	progress    io.Writer
}

// Options carries the optional collaborators of a Pipeline
type Options struct {
	Fetcher  *Fetcher
	Store    *store.Store
	Logger   *zap.Logger
	Progress io.Writer // Progress banners, os.Stderr by default
}

// NewPipeline creates a pipeline backed by the given model services
func NewPipeline(cfg *model.Config, services inference.Services, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	progress := opts.Progress
	if progress == nil {
		progress = os.Stderr
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher(nil, cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes)
	}
	return &Pipeline{
		fetcher:     fetcher,
		enricher:    enrich.New(cfg, services, logger.Named("enrich")),
		synthesizer: synth.New(cfg, services, logger.Named("synth")),
		renderer:    NewRenderer(progress),
		store:       opts.Store,
		config:      cfg,
		logger:      logger,
		progress:    progress,
	}
}

// SynthesisResult is a synthesis run with its input statistics and run id
type SynthesisResult struct {
	*synth.Result
	RunID uuid.UUID
	Load  synth.LoadStats
}

// Outputs names the files a run writes. Empty paths are skipped.
type Outputs struct {
	Claims string // Enriched claim records
	Groups string // Group records
	Report string // Markdown report
}

// LoadArticles reads enrichment input from a path or URL
func (p *Pipeline) LoadArticles(ctx context.Context, src string) ([]model.Article, error) {
	data, err := p.fetcher.Open(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("stage load: %w", err)
	}
	arts, err := enrich.ReadArticles(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("stage load: %w", err)
	}
	return arts, nil
}

// LoadRecords reads enriched claim records from a path or URL
func (p *Pipeline) LoadRecords(ctx context.Context, src string) ([]model.ClaimRecord, error) {
	data, err := p.fetcher.Open(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("stage load: %w", err)
	}
	recs, err := synth.ReadClaimRecords(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("stage load: %w", err)
	}
	return recs, nil
}

// Enrich annotates articles into claim records
func (p *Pipeline) Enrich(ctx context.Context, articles []model.Article) ([]model.ClaimRecord, enrich.Stats, error) {
	fmt.Fprintf(p.progress, "Enriching %d articles...\n", len(articles))
	records, stats, err := p.enricher.Enrich(ctx, articles)
	if err != nil {
		return nil, stats, fmt.Errorf("stage enrich: %w", err)
	}
	return records, stats, nil
}

// Synthesize filters records into claims and groups them
func (p *Pipeline) Synthesize(ctx context.Context, records []model.ClaimRecord) (*SynthesisResult, error) {
	claims, load := synth.LoadClaims(records, p.config.Synthesis.ConfidenceThreshold)
	fmt.Fprintf(p.progress, "Synthesizing %d of %d claims...\n", load.Kept, load.Total)

	res, err := p.synthesizer.Run(ctx, claims)
	if err != nil {
		return nil, err
	}
	return &SynthesisResult{Result: res, RunID: uuid.New(), Load: load}, nil
}

// Index saves the groups of a run to the store, if one is configured
func (p *Pipeline) Index(ctx context.Context, res *SynthesisResult) error {
	if p.store == nil {
		return nil
	}
	entries := make([]store.Entry, len(res.Groups))
	for i, g := range res.Groups {
		entries[i] = store.Entry{Group: g}
		if i < len(res.Details) {
			entries[i].Method = res.Details[i].Method
			entries[i].Cohesion = res.Details[i].Cohesion
		}
	}
	run := store.Run{
		ID:        res.RunID,
		CreatedAt: time.Now(),
		Claims:    res.Stats.Claims,
		Groups:    res.Stats.Groups,
		Conflicts: res.Stats.Conflicts,
	}
	if err := p.store.SaveRun(ctx, run, entries); err != nil {
		return fmt.Errorf("stage index: %w", err)
	}
	p.logger.Debug("indexed run", zap.String("run_id", res.RunID.String()), zap.Int("groups", len(entries)))
	return nil
}

// WriteRecords writes enriched claim records
func (p *Pipeline) WriteRecords(records []model.ClaimRecord, path string) error {
	if path == "" {
		return nil
	}
	if err := p.renderer.RenderJSON(records, path); err != nil {
		return fmt.Errorf("stage write: %w", err)
	}
	fmt.Fprintf(p.progress, "✓ Wrote claims: %s\n", path)
	return nil
}

// WriteGroups writes the group array and, optionally, the Markdown report
func (p *Pipeline) WriteGroups(res *SynthesisResult, out Outputs) error {
	if out.Groups != "" {
		if err := p.renderer.RenderJSON(res.Groups, out.Groups); err != nil {
			return fmt.Errorf("stage write: %w", err)
		}
		fmt.Fprintf(p.progress, "✓ Wrote groups: %s\n", out.Groups)
	}
	if out.Report != "" {
		if err := p.renderer.RenderMarkdown(res, out.Report); err != nil {
			return fmt.Errorf("stage write: %w", err)
		}
		fmt.Fprintf(p.progress, "✓ Wrote report: %s\n", out.Report)
	}
	return nil
}

// RunEnrich loads articles from src, enriches them and writes the records
func (p *Pipeline) RunEnrich(ctx context.Context, src string, out Outputs) ([]model.ClaimRecord, error) {
	fmt.Fprintf(p.progress, "Loading articles from %s\n", sourceName(src))
	arts, err := p.LoadArticles(ctx, src)
	if err != nil {
		return nil, err
	}
	records, stats, err := p.Enrich(ctx, arts)
	if err != nil {
		return nil, err
	}
	if err := p.WriteRecords(records, out.Claims); err != nil {
		return nil, err
	}
	if p.config.Output.Verbose {
		p.renderer.RenderEnrichSummary(stats)
	}
	return records, nil
}

// RunSynthesize loads records from src, groups them and writes the results
func (p *Pipeline) RunSynthesize(ctx context.Context, src string, out Outputs) (*SynthesisResult, error) {
	fmt.Fprintf(p.progress, "Loading claims from %s\n", sourceName(src))
	records, err := p.LoadRecords(ctx, src)
	if err != nil {
		return nil, err
	}
	return p.finish(ctx, records, out)
}

// Run enriches articles and synthesizes the resulting records in one pass
func (p *Pipeline) Run(ctx context.Context, src string, out Outputs) (*SynthesisResult, error) {
	records, err := p.RunEnrich(ctx, src, out)
	if err != nil {
		return nil, err
	}
	return p.finish(ctx, records, out)
}

func (p *Pipeline) finish(ctx context.Context, records []model.ClaimRecord, out Outputs) (*SynthesisResult, error) {
	res, err := p.Synthesize(ctx, records)
	if err != nil {
		return nil, err
	}
	if err := p.WriteGroups(res, out); err != nil {
		return nil, err
	}
	if err := p.Index(ctx, res); err != nil {
		return nil, err
	}
	p.renderer.RenderSynthesisSummary(res)
	return res, nil
}

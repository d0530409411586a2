package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimsynth/internal/pipeline"
	"github.com/ppiankov/claimsynth/internal/store"
	"github.com/ppiankov/claimsynth/internal/util"
)

var (
	claimsOut string
	groupsOut string
	reportOut string
	dbPath    string
	timeout   time.Duration
	threshold float64
)

// enrichCmd represents the enrich command
var enrichCmd = &cobra.Command{
	Use:   "enrich <articles.json|url>",
	Short: "Annotate article sentences with topic, entities, dates and keywords",
	Long: `Enrich reads articles (a JSON array, or a single article object) whose
"claims" are split sentences, and writes one flat claim record per sentence
that passed the topic-confidence filter.

Example:
  claimsynth enrich articles.json -o claims_enriched.json
  claimsynth enrich https://example.com/articles.json --provider openai`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrich,
}

func init() {
	rootCmd.AddCommand(enrichCmd)

	enrichCmd.Flags().StringVarP(&claimsOut, "output", "o", "claims_enriched.json", "output claim records path")
	enrichCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "overall run timeout")
}

func runEnrich(cmd *cobra.Command, args []string) error {
	p, cleanup, err := newPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := runContext()
	defer cancel()

	if _, err := p.RunEnrich(ctx, args[0], pipeline.Outputs{Claims: claimsOut}); err != nil {
		return fmt.Errorf("enrich failed: %w", err)
	}
	return nil
}

// runContext bounds a run by --timeout and cancels it on interrupt
func runContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// newPipeline resolves the configuration and builds a pipeline. The group
// index is opened when --db or output.db_path is set.
func newPipeline() (*pipeline.Pipeline, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if threshold > 0 {
		cfg.Synthesis.ConfidenceThreshold = threshold
	}
	if dbPath != "" {
		cfg.Output.DBPath = dbPath
	}

	services, err := buildServices(cfg)
	if err != nil {
		return nil, nil, err
	}

	client := util.NewHTTPClient(cfg.HTTP)
	fetcher := pipeline.NewFetcher(client, cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes)
	if cfg.HTTP.RespectRobots {
		fetcher.WithRobots(util.NewRobotsChecker(client, cfg.HTTP.UserAgent))
	}
	opts := pipeline.Options{Fetcher: fetcher, Logger: logger}
	cleanup := func() {}
	if cfg.Output.DBPath != "" {
		db, err := store.Open(cfg.Output.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open group index: %w", err)
		}
		opts.Store = db
		cleanup = func() { _ = db.Close() }
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Provider: %s (embeddings: %s)\n", cfg.Inference.Provider, embedProviderName(cfg.Embedding.Provider, cfg.Inference.Provider))
		fmt.Fprintf(os.Stderr, "Workers: %d\n", cfg.Concurrency.Workers)
		fmt.Fprintln(os.Stderr)
	}
	return pipeline.NewPipeline(cfg, services, opts), cleanup, nil
}

func embedProviderName(embed, text string) string {
	if embed == "" {
		return text
	}
	return embed
}

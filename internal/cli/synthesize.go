package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimsynth/internal/pipeline"
)

// runClaimsOut is separate from claimsOut so the two commands keep their
// own defaults
var runClaimsOut string

// synthesizeCmd represents the synthesize command
var synthesizeCmd = &cobra.Command{
	Use:   "synthesize <claims_enriched.json|url>",
	Short: "Group enriched claims into coherent, contradiction-checked groups",
	Long: `Synthesize loads enriched claim records, drops claims below the confidence
threshold, clusters the rest per topic and writes one record per accepted
group: summary, majority topic, top keywords and entities, member claims,
sources, mean reliability and a conflict flag.

Example:
  claimsynth synthesize claims_enriched.json -o groups.json
  claimsynth synthesize claims_enriched.json --db groups.db --report groups.md`,
	Args: cobra.ExactArgs(1),
	RunE: runSynthesize,
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <articles.json|url>",
	Short: "Enrich articles and synthesize groups in one pass",
	Long: `Run performs enrich followed by synthesize. The intermediate claim records
are written only when --claims is given.

Example:
  claimsynth run articles.json -o groups.json --claims claims_enriched.json`,
	Args: cobra.ExactArgs(1),
	RunE: runAll,
}

func init() {
	rootCmd.AddCommand(synthesizeCmd)
	rootCmd.AddCommand(runCmd)

	for _, c := range []*cobra.Command{synthesizeCmd, runCmd} {
		c.Flags().StringVarP(&groupsOut, "output", "o", "groups.json", "output groups path")
		c.Flags().StringVar(&reportOut, "report", "", "output Markdown report path (optional)")
		c.Flags().StringVar(&dbPath, "db", "", "SQLite group index path (optional)")
		c.Flags().Float64Var(&threshold, "threshold", 0, "minimum claim confidence (default from config)")
		c.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "overall run timeout")
	}
	runCmd.Flags().StringVar(&runClaimsOut, "claims", "", "also write enriched claim records to this path")
}

func runSynthesize(cmd *cobra.Command, args []string) error {
	p, cleanup, err := newPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := runContext()
	defer cancel()

	out := pipeline.Outputs{Groups: groupsOut, Report: reportOut}
	if _, err := p.RunSynthesize(ctx, args[0], out); err != nil {
		return fmt.Errorf("synthesize failed: %w", err)
	}
	return nil
}

func runAll(cmd *cobra.Command, args []string) error {
	p, cleanup, err := newPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := runContext()
	defer cancel()

	out := pipeline.Outputs{Claims: runClaimsOut, Groups: groupsOut, Report: reportOut}
	if _, err := p.Run(ctx, args[0], out); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	return nil
}

package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ppiankov/claimsynth/internal/enrich"
	"github.com/ppiankov/claimsynth/internal/util"
)

// Renderer writes result files and prints run summaries
type Renderer struct {
	out io.Writer
}

// NewRenderer creates a renderer printing summaries to out
func NewRenderer(out io.Writer) *Renderer {
	if out == nil {
		out = io.Discard
	}
	return &Renderer{out: out}
}

// EncodeJSON encodes v as indented JSON without HTML escaping
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderJSON writes v to path atomically
func (r *Renderer) RenderJSON(v any, path string) error {
	data, err := EncodeJSON(v)
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	return util.WriteFileAtomic(path, data, 0644)
}

// RenderMarkdown writes the human-readable group report to path atomically
func (r *Renderer) RenderMarkdown(res *SynthesisResult, path string) error {
	return util.WriteFileAtomic(path, []byte(MarkdownReport(res)), 0644)
}

// MarkdownReport formats groups with their run statistics
func MarkdownReport(res *SynthesisResult) string {
	var b strings.Builder
	st := res.Stats

	b.WriteString("# Claim Groups\n\n")
	fmt.Fprintf(&b, "Run: `%s`\n\n", res.RunID)
	b.WriteString("| Claims loaded | Partitions | Groups | Conflicts | Rejected | Noise |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d / %d | %d | %d | %d | %d | %d |\n\n",
		res.Load.Kept, res.Load.Total, st.Partitions, st.Groups, st.Conflicts, st.Rejected, st.Noise)

	for i, g := range res.Groups {
		fmt.Fprintf(&b, "## Group %d: %s", g.GroupID, g.Topic)
		if g.Conflict {
			b.WriteString(" ⚠ conflicting")
		}
		b.WriteString("\n\n")
		if g.Summary != "" {
			fmt.Fprintf(&b, "%s\n\n", g.Summary)
		}
		if i < len(res.Details) {
			d := res.Details[i]
			fmt.Fprintf(&b, "- Method: %s, cohesion %.3f\n", d.Method, d.Cohesion)
			fmt.Fprintf(&b, "- Contradictions: %d of %d pairs\n", d.Verdict.Contradictions, d.Verdict.Pairs)
		}
		if g.AvgReliability != nil {
			fmt.Fprintf(&b, "- Reliability: %.3f\n", *g.AvgReliability)
		}
		if len(g.Keywords) > 0 {
			fmt.Fprintf(&b, "- Keywords: %s\n", strings.Join(g.Keywords, ", "))
		}
		if len(g.Entities) > 0 {
			fmt.Fprintf(&b, "- Entities: %s\n", strings.Join(g.Entities, ", "))
		}
		b.WriteString("\n### Claims\n\n")
		for _, c := range g.Claims {
			fmt.Fprintf(&b, "- %s\n", c)
		}
		if len(g.Sources) > 0 {
			b.WriteString("\n### Sources\n\n")
			for _, s := range g.Sources {
				fmt.Fprintf(&b, "- <%s>\n", s)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderEnrichSummary prints enrichment counters
func (r *Renderer) RenderEnrichSummary(st enrich.Stats) {
	fmt.Fprintf(r.out, "\nEnrichment\n")
	fmt.Fprintf(r.out, "  Articles:        %d (%d with claims)\n", st.Articles, st.ArticlesKept)
	fmt.Fprintf(r.out, "  Claims kept:     %d of %d\n", st.ClaimsKept, st.ClaimsIn)
	fmt.Fprintf(r.out, "  Low confidence:  %d\n", st.LowConfidence)
	if st.ClassifyErrors > 0 || st.RecognizeErrors > 0 {
		fmt.Fprintf(r.out, "  Model errors:    %d classify, %d ner\n", st.ClassifyErrors, st.RecognizeErrors)
	}
}

// RenderSynthesisSummary prints synthesis counters
func (r *Renderer) RenderSynthesisSummary(res *SynthesisResult) {
	st := res.Stats
	fmt.Fprintf(r.out, "\nSynthesis\n")
	fmt.Fprintf(r.out, "  Claims:          %d kept of %d (%d missing text, %d low confidence)\n",
		res.Load.Kept, res.Load.Total, res.Load.MissingText, res.Load.LowConfidence)
	fmt.Fprintf(r.out, "  Partitions:      %d (%d too small, %d failed, %d fallback)\n",
		st.Partitions, st.SmallPartitions, st.FailedPartitions, st.FallbackPartitions)
	fmt.Fprintf(r.out, "  Groups:          %d (%d conflicting)\n", st.Groups, st.Conflicts)
	fmt.Fprintf(r.out, "  Rejected:        %d clusters below cohesion, %d noise claims\n", st.Rejected, st.Noise)
	fmt.Fprintf(r.out, "  Duration:        %s\n", st.Duration.Round(time.Millisecond))
}

package synth

import (
	"context"

	"go.uber.org/zap"

	"github.com/ppiankov/claimsynth/internal/inference"
)

// Verdict is the pairwise NLI tally of one group
type Verdict struct {
	Pairs          int  `json:"pairs"`
	Contradictions int  `json:"contradictions"`
	Failed         int  `json:"failed"` // Pairs whose NLI call errored, counted as non-contradicting
	Conflict       bool `json:"conflict"`
}

// Rate is the share of pairs classified as contradicting
func (v Verdict) Rate() float64 {
	if v.Pairs == 0 {
		return 0
	}
	return float64(v.Contradictions) / float64(v.Pairs)
}

// ContradictionDetector flags groups whose members contradict each other
type ContradictionDetector struct {
	nli       inference.PairClassifier
	threshold float64
	logger    *zap.Logger
}

// NewContradictionDetector creates a detector with the given conflict threshold
func NewContradictionDetector(nli inference.PairClassifier, threshold float64, logger *zap.Logger) *ContradictionDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContradictionDetector{nli: nli, threshold: threshold, logger: logger}
}

// Detect classifies every unordered pair (i<j) with texts[i] as premise and
// texts[j] as hypothesis. The group conflicts when the contradiction rate
// strictly exceeds the threshold.
func (d *ContradictionDetector) Detect(ctx context.Context, texts []string) Verdict {
	var v Verdict
	for i := 0; i < len(texts); i++ {
		for j := i + 1; j < len(texts); j++ {
			v.Pairs++
			class, err := d.nli.ClassifyPair(ctx, texts[i], texts[j])
			if err != nil {
				v.Failed++
				d.logger.Warn("nli pair failed", zap.Int("i", i), zap.Int("j", j), zap.Error(err))
				continue
			}
			if class == inference.Contradiction {
				v.Contradictions++
			}
		}
	}
	v.Conflict = v.Pairs > 0 && v.Rate() > d.threshold
	return v
}

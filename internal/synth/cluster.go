package synth

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/claimsynth/internal/inference"
	"github.com/ppiankov/claimsynth/internal/model"
)

const entitySuffix = " | Thực thể: "

// Candidate is an accepted cluster of one topic partition, before it gets a
// run-wide group id
type Candidate struct {
	Topic    string            `json:"topic"`
	Index    int               `json:"index"` // Discovery order within the partition
	Method   model.GroupMethod `json:"method"`
	Claims   []model.Claim     `json:"claims"`
	Cohesion float64           `json:"cohesion"`
}

// PartitionResult is the outcome of clustering one topic partition
type PartitionResult struct {
	Topic           string
	Size            int
	Radius          float64
	DensityClusters int
	Noise           int
	Rejected        int
	Fallback        bool
	Candidates      []Candidate
}

// Clusterer groups the claims of one topic partition by semantic similarity
type Clusterer struct {
	embedder inference.Embedder
	cfg      model.SynthesisConfig
	radius   RadiusPolicy
	logger   *zap.Logger
}

// NewClusterer creates a clusterer. A nil logger discards output.
func NewClusterer(embedder inference.Embedder, cfg model.SynthesisConfig, logger *zap.Logger) *Clusterer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Clusterer{
		embedder: embedder,
		cfg:      cfg,
		radius:   NewRadiusPolicy(cfg.Radius),
		logger:   logger,
	}
}

// NormalizeAliases applies the alias table in order
func NormalizeAliases(text string, aliases []model.Alias) string {
	for _, a := range aliases {
		if a.From != "" {
			text = strings.ReplaceAll(text, a.From, a.To)
		}
	}
	return text
}

// Represent builds the text that is embedded for clustering: the
// alias-normalized claim plus its entity texts
func (c *Clusterer) Represent(claim model.Claim) string {
	text := NormalizeAliases(claim.Text, c.cfg.Aliases)
	if ents := claim.EntityTexts(); len(ents) > 0 {
		text += entitySuffix + strings.Join(ents, ", ")
	}
	return text
}

// Weight boosts claims carrying more annotations
func (c *Clusterer) Weight(claim model.Claim) float64 {
	return 1 + c.cfg.EntityWeight*float64(len(claim.Entities)) + c.cfg.KeywordWeight*float64(len(claim.Keywords))
}

// Partition runs the density pass, the cohesion filter and, when the
// density pass fails to split a large enough partition, the centroid
// fallback. Embedding failures are wrapped in ErrEmbeddingUnavailable.
func (c *Clusterer) Partition(ctx context.Context, topic string, claims []model.Claim) (*PartitionResult, error) {
	minClaims := max(c.cfg.MinClaimsPerGroup, 2)
	radius, category := c.radius.Lookup(topic)
	res := &PartitionResult{Topic: topic, Size: len(claims), Radius: radius}
	if len(claims) < minClaims {
		return res, nil
	}

	texts := make([]string, len(claims))
	for i, claim := range claims {
		texts[i] = c.Represent(claim)
	}
	vecs, err := c.embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("topic %q: %w", topic, err)
	}

	weighted := make([][]float32, len(vecs))
	for i, v := range vecs {
		weighted[i] = Scale(v, c.Weight(claims[i]))
	}

	minSamples := c.cfg.MinSamples
	if minSamples <= 0 {
		minSamples = 2
	}
	labels := DBSCAN(DistanceMatrix(weighted), radius, minSamples)
	clusters := groupLabels(labels)
	res.DensityClusters = ClusterCount(labels)
	for _, l := range labels {
		if l == Noise {
			res.Noise++
		}
	}

	c.logger.Debug("density pass",
		zap.String("topic", topic),
		zap.String("category", category),
		zap.Float64("eps", radius),
		zap.Int("claims", len(claims)),
		zap.Int("clusters", res.DensityClusters),
		zap.Int("noise", res.Noise))

	for _, members := range clusters {
		if len(members) < minClaims {
			continue
		}
		if err := c.accept(ctx, res, pick(claims, members), model.MethodDensity, true); err != nil {
			return nil, err
		}
	}

	fb := c.cfg.Fallback
	if fb.Enabled && res.DensityClusters <= 1 && len(claims) >= max(fb.MinPartition, minClaims) {
		k := min(max(fb.MaxK, 1), len(claims)/3+1)
		res.Fallback = true
		c.logger.Debug("centroid fallback", zap.String("topic", topic), zap.Int("k", k))

		kmLabels := KMeans(weighted, KMeansOptions{K: k, NInit: fb.NInit, MaxIter: fb.MaxIter, Seed: fb.Seed})
		for _, members := range groupLabels(kmLabels) {
			if len(members) < minClaims {
				continue
			}
			if err := c.accept(ctx, res, pick(claims, members), model.MethodCentroid, fb.CheckCohesion); err != nil {
				return nil, err
			}
		}
	}

	return res, nil
}

// accept runs the cohesion check on members and records the outcome
func (c *Clusterer) accept(ctx context.Context, res *PartitionResult, members []model.Claim, method model.GroupMethod, check bool) error {
	cohesion := 1.0
	if check {
		var err error
		cohesion, err = c.Cohesion(ctx, members)
		if err != nil {
			return fmt.Errorf("topic %q: %w", res.Topic, err)
		}
		if cohesion < c.cfg.CohesionThreshold {
			res.Rejected++
			c.logger.Debug("cluster rejected",
				zap.String("topic", res.Topic),
				zap.String("method", string(method)),
				zap.Int("size", len(members)),
				zap.Float64("cohesion", cohesion))
			return nil
		}
	}

	res.Candidates = append(res.Candidates, Candidate{
		Topic:    res.Topic,
		Index:    len(res.Candidates),
		Method:   method,
		Claims:   members,
		Cohesion: cohesion,
	})
	return nil
}

// Cohesion embeds the raw claim texts afresh, unweighted and without entity
// context, and returns their mean pairwise similarity
func (c *Clusterer) Cohesion(ctx context.Context, claims []model.Claim) (float64, error) {
	texts := make([]string, len(claims))
	for i, claim := range claims {
		texts[i] = claim.Text
	}
	vecs, err := c.embed(ctx, texts)
	if err != nil {
		return 0, err
	}
	return MeanPairwiseSimilarity(vecs), nil
}

func (c *Clusterer) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingUnavailable, len(vecs), len(texts))
	}
	return vecs, nil
}

func pick(claims []model.Claim, idx []int) []model.Claim {
	out := make([]model.Claim, len(idx))
	for i, j := range idx {
		out[i] = claims[j]
	}
	return out
}

// Package synth consolidates enriched claims into topic-scoped groups of
// mutually similar, cohesion-checked statements, each with a summary, a
// reliability score and a contradiction flag.
package synth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/claimsynth/internal/inference"
	"github.com/ppiankov/claimsynth/internal/model"
	"github.com/ppiankov/claimsynth/internal/worker"
)

// ErrEmbeddingUnavailable aborts a synthesis run: clustering on partial
// embeddings would change group identity
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

// Stats summarizes one synthesis run
type Stats struct {
	Claims             int           `json:"claims"`
	Partitions         int           `json:"partitions"`
	SmallPartitions    int           `json:"small_partitions"`
	FailedPartitions   int           `json:"failed_partitions"`
	DensityClusters    int           `json:"density_clusters"`
	Noise              int           `json:"noise"`
	Rejected           int           `json:"rejected"`
	FallbackPartitions int           `json:"fallback_partitions"`
	Groups             int           `json:"groups"`
	Conflicts          int           `json:"conflicts"`
	Duration           time.Duration `json:"duration"`
}

// GroupDetail keeps the provenance of one group for reports and the index
type GroupDetail struct {
	GroupID  int               `json:"group_id"`
	Method   model.GroupMethod `json:"method"`
	Cohesion float64           `json:"cohesion"`
	Verdict  Verdict           `json:"verdict"`
}

// Result is the output of a synthesis run. Groups are ordered by GroupID.
type Result struct {
	Groups  []model.Group `json:"groups"`
	Details []GroupDetail `json:"details"`
	Stats   Stats         `json:"stats"`
}

// Assignment binds a candidate to its run-wide group id
type Assignment struct {
	GroupID   int
	Candidate Candidate
}

// AssignGroupIDs gives candidates dense ids ordered by topic label, then by
// discovery order within the topic, so ids do not depend on worker timing
func AssignGroupIDs(cands []Candidate) []Assignment {
	sorted := append([]Candidate(nil), cands...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Topic != sorted[j].Topic {
			return sorted[i].Topic < sorted[j].Topic
		}
		return sorted[i].Index < sorted[j].Index
	})

	out := make([]Assignment, len(sorted))
	for i, c := range sorted {
		out[i] = Assignment{GroupID: i, Candidate: c}
	}
	return out
}

// Synthesizer runs clustering, contradiction detection and aggregation
type Synthesizer struct {
	cfg        model.SynthesisConfig
	workers    int
	logger     *zap.Logger
	clusterer  *Clusterer
	detector   *ContradictionDetector
	aggregator *Aggregator
}

// New creates a synthesizer over the given model services
func New(cfg *model.Config, services inference.Services, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	sc := cfg.Synthesis
	return &Synthesizer{
		cfg:        sc,
		workers:    max(cfg.Concurrency.Workers, 1),
		logger:     logger,
		clusterer:  NewClusterer(services.Embedder, sc, logger.Named("cluster")),
		detector:   NewContradictionDetector(services.NLI, sc.ContradictionThreshold, logger.Named("nli")),
		aggregator: NewAggregator(services.Summarizer, sc, logger.Named("aggregate")),
	}
}

// Run groups claims. Partitions are clustered concurrently; an embedding
// failure in any of them cancels the rest and fails the run.
func (s *Synthesizer) Run(ctx context.Context, claims []model.Claim) (*Result, error) {
	start := time.Now()
	res := &Result{Groups: []model.Group{}, Details: []GroupDetail{}}
	res.Stats.Claims = len(claims)

	parts := PartitionByTopic(claims)
	res.Stats.Partitions = len(parts)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var jobs []worker.Job
	for _, topic := range SortedTopics(parts) {
		if len(parts[topic]) < max(s.cfg.MinClaimsPerGroup, 2) {
			res.Stats.SmallPartitions++
			continue
		}
		jobs = append(jobs, &partitionJob{clusterer: s.clusterer, topic: topic, claims: parts[topic], abort: cancel})
	}

	var cands []Candidate
	var fatal error
	for i, r := range worker.Run(runCtx, s.workers, jobs) {
		topic := jobs[i].(*partitionJob).topic
		if err := r.GetError(); err != nil {
			if errors.Is(err, ErrEmbeddingUnavailable) {
				// Partitions cancelled by the first failure report context errors
				if fatal == nil || errors.Is(fatal, context.Canceled) {
					fatal = err
				}
				continue
			}
			if runCtx.Err() != nil {
				continue
			}
			res.Stats.FailedPartitions++
			s.logger.Warn("partition failed", zap.String("topic", topic), zap.Error(err))
			continue
		}

		pr := r.(*partitionResult).res
		res.Stats.DensityClusters += pr.DensityClusters
		res.Stats.Noise += pr.Noise
		res.Stats.Rejected += pr.Rejected
		if pr.Fallback {
			res.Stats.FallbackPartitions++
		}
		cands = append(cands, pr.Candidates...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fatal != nil {
		return nil, fmt.Errorf("stage embed: %w", fatal)
	}

	assignments := AssignGroupIDs(cands)
	groupJobs := make([]worker.Job, len(assignments))
	for i, a := range assignments {
		groupJobs[i] = &groupJob{s: s, assignment: a}
	}

	for _, r := range worker.Run(ctx, s.workers, groupJobs) {
		if err := r.GetError(); err != nil {
			return nil, fmt.Errorf("stage aggregate: %w", err)
		}
		gr := r.(*groupResult)
		res.Groups = append(res.Groups, gr.group)
		res.Details = append(res.Details, gr.detail)
		if gr.group.Conflict {
			res.Stats.Conflicts++
		}
	}

	res.Stats.Groups = len(res.Groups)
	res.Stats.Duration = time.Since(start)
	s.logger.Info("synthesis complete",
		zap.Int("claims", res.Stats.Claims),
		zap.Int("partitions", res.Stats.Partitions),
		zap.Int("groups", res.Stats.Groups),
		zap.Int("conflicts", res.Stats.Conflicts),
		zap.Duration("duration", res.Stats.Duration))
	return res, nil
}

type partitionJob struct {
	clusterer *Clusterer
	topic     string
	claims    []model.Claim
	abort     context.CancelFunc
}

func (j *partitionJob) Execute(ctx context.Context) worker.Result {
	res, err := j.clusterer.Partition(ctx, j.topic, j.claims)
	if errors.Is(err, ErrEmbeddingUnavailable) {
		j.abort()
	}
	return &partitionResult{res: res, err: err}
}

type partitionResult struct {
	res *PartitionResult
	err error
}

func (r *partitionResult) GetError() error {
	return r.err
}

type groupJob struct {
	s          *Synthesizer
	assignment Assignment
}

func (j *groupJob) Execute(ctx context.Context) worker.Result {
	if err := ctx.Err(); err != nil {
		return &groupResult{err: err}
	}
	cand := j.assignment.Candidate
	texts := make([]string, len(cand.Claims))
	for i, c := range cand.Claims {
		texts[i] = c.Text
	}

	verdict := j.s.detector.Detect(ctx, texts)
	group := j.s.aggregator.Aggregate(ctx, j.assignment.GroupID, cand.Claims)
	group.Conflict = verdict.Conflict

	return &groupResult{
		group: group,
		detail: GroupDetail{
			GroupID:  group.GroupID,
			Method:   cand.Method,
			Cohesion: round3(cand.Cohesion),
			Verdict:  verdict,
		},
	}
}

type groupResult struct {
	group  model.Group
	detail GroupDetail
	err    error
}

func (r *groupResult) GetError() error {
	return r.err
}

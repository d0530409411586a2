package synth

import (
	"sort"

	"github.com/ppiankov/claimsynth/internal/model"
)

// PartitionByTopic buckets claims by exact topic label, keeping input order
// inside each bucket
func PartitionByTopic(claims []model.Claim) map[string][]model.Claim {
	parts := make(map[string][]model.Claim)
	for _, c := range claims {
		topic := model.NormalizeTopic(c.Topic)
		parts[topic] = append(parts[topic], c)
	}
	return parts
}

// SortedTopics returns the partition labels in a deterministic order
func SortedTopics(parts map[string][]model.Claim) []string {
	topics := make([]string, 0, len(parts))
	for t := range parts {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

package model

// Group is the persisted record for one accepted cluster of corroborating
// claims. Downstream stages look groups up strictly by GroupID.
type Group struct {
	GroupID        int      `json:"group_id"`        // Dense, unique within one run
	Summary        string   `json:"summary"`         // Neutral generated summary
	Topic          string   `json:"topic"`           // Majority topic label
	Keywords       []string `json:"keywords"`        // Top keywords by frequency (<= 8)
	Entities       []string `json:"entities"`        // Top entity texts by frequency (<= 6)
	Claims         []string `json:"claims"`          // Member claim texts, verbatim
	Sources        []string `json:"sources"`         // Deduplicated source URLs
	AvgReliability *float64 `json:"avg_reliability"` // Null when no member carried a score
	Conflict       bool     `json:"conflict"`        // Contradiction rate above threshold
}

// GroupMethod records which clustering pass produced a group
type GroupMethod string

const (
	MethodDensity  GroupMethod = "dbscan" // Adaptive-radius density pass
	MethodCentroid GroupMethod = "kmeans" // Fixed-cardinality fallback pass
)

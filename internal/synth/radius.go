package synth

import (
	"strings"

	"github.com/ppiankov/claimsynth/internal/model"
)

// RadiusPolicy picks the DBSCAN neighborhood radius for a topic label from
// an ordered category table. Broad topics get a slightly larger radius.
type RadiusPolicy struct {
	def        float64
	categories []model.RadiusCategory
}

// NewRadiusPolicy builds a policy from configuration
func NewRadiusPolicy(cfg model.RadiusConfig) RadiusPolicy {
	def := cfg.Default
	if def <= 0 {
		def = 0.44
	}
	return RadiusPolicy{def: def, categories: cfg.Categories}
}

// Radius returns the radius of the first category with a substring
// contained in topic, or the default
func (p RadiusPolicy) Radius(topic string) float64 {
	r, _ := p.Lookup(topic)
	return r
}

// Lookup is Radius plus the matched category name ("" for the default)
func (p RadiusPolicy) Lookup(topic string) (float64, string) {
	for _, c := range p.categories {
		for _, sub := range c.Substrings {
			if sub != "" && strings.Contains(topic, sub) {
				return c.Radius, c.Name
			}
		}
	}
	return p.def, ""
}

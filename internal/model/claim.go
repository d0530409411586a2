package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// UnclassifiedTopic is the topic assigned to claims that arrive without one
const UnclassifiedTopic = "Chưa xác định"

// Claim is a single enriched factual statement taken from a news article.
// Claims are read-only once enrichment has produced them.
type Claim struct {
	ArticleID   string   `json:"article_id"`            // Source article identifier
	URL         string   `json:"url"`                   // Source article URL
	Title       string   `json:"title"`                 // Source article title
	Text        string   `json:"text"`                  // The claim text itself
	Topic       string   `json:"topic"`                 // Assigned topic label
	Confidence  float64  `json:"confidence"`            // Topic-assignment confidence (0-1)
	Reliability *float64 `json:"reliability,omitempty"` // Nil when the source carried no score
	Entities    []Entity `json:"entities"`
	Keywords    []string `json:"keywords"`
}

// EntityTexts returns the non-empty entity texts in annotation order
func (c Claim) EntityTexts() []string {
	texts := make([]string, 0, len(c.Entities))
	for _, e := range c.Entities {
		if e.Text != "" {
			texts = append(texts, e.Text)
		}
	}
	return texts
}

// Entity is a named-entity or date annotation attached to a claim
type Entity struct {
	Label string  `json:"label"`           // PER, LOC, ORG, DATE, ...
	Text  string  `json:"text"`            // Surface text of the span
	Start *int    `json:"start,omitempty"` // Rune offset, optional
	End   *int    `json:"end,omitempty"`   // Rune offset, optional
	Score float64 `json:"score"`
}

// EntityLabelDate labels spans produced by the date-pattern matcher
const EntityLabelDate = "DATE"

// ClaimRecord is the flat wire shape produced by the enrichment stage and
// consumed by synthesis. Optional fields are pointers so that "missing" and
// "zero" can be told apart.
type ClaimRecord struct {
	ArticleID  ArticleID `json:"article_id"`
	URL        string    `json:"url"`
	Title      string    `json:"title,omitempty"`
	Text       string    `json:"text"`
	Topic      string    `json:"topic,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	Entities   []Entity  `json:"entities"`
	Keywords   []string  `json:"keywords"`
}

// ArticleID accepts either a JSON string or a JSON number
type ArticleID string

// UnmarshalJSON implements json.Unmarshaler
func (a *ArticleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = ArticleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("article_id: %w", err)
	}
	*a = ArticleID(n.String())
	return nil
}

// MarshalJSON keeps numeric identifiers numeric on the way out
func (a ArticleID) MarshalJSON() ([]byte, error) {
	if a == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(a), 10, 64); err == nil {
		return []byte(a), nil
	}
	return json.Marshal(string(a))
}

// Article is the enrichment input: an article with its split sentences
type Article struct {
	ID     ArticleID      `json:"id"`
	URL    string         `json:"url"`
	Title  string         `json:"title,omitempty"`
	Claims []ArticleClaim `json:"claims"`
}

// ArticleClaim accepts both a bare string and an object with a "text" key
type ArticleClaim struct {
	Text string `json:"text"`
}

// UnmarshalJSON implements json.Unmarshaler
func (c *ArticleClaim) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &c.Text)
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	c.Text = obj.Text
	return nil
}

// NormalizeTopic maps an empty label to the unclassified sentinel. Other
// labels are compared verbatim, so " A" and "A" are different topics.
func NormalizeTopic(topic string) string {
	if topic == "" {
		return UnclassifiedTopic
	}
	return topic
}

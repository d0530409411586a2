package synth

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/claimsynth/internal/model"
)

// LoadStats counts what the loader kept and why it dropped the rest
type LoadStats struct {
	Total         int `json:"total"`
	Kept          int `json:"kept"`
	MissingText   int `json:"missing_text"`
	LowConfidence int `json:"low_confidence"`
}

// ReadClaimRecords decodes a JSON array of claim records. A record that
// does not match the expected shape is salvaged field by field instead of
// failing the whole file; only a non-array document is an error.
func ReadClaimRecords(r io.Reader) ([]model.ClaimRecord, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode claim records: %w", err)
	}

	records := make([]model.ClaimRecord, 0, len(raw))
	for _, msg := range raw {
		var rec model.ClaimRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			rec = salvageRecord(msg)
		}
		records = append(records, rec)
	}
	return records, nil
}

// salvageRecord keeps every field of a malformed record that has the right type
func salvageRecord(msg json.RawMessage) model.ClaimRecord {
	var rec model.ClaimRecord
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg, &fields); err != nil {
		return rec
	}

	_ = json.Unmarshal(fields["article_id"], &rec.ArticleID)
	_ = json.Unmarshal(fields["url"], &rec.URL)
	_ = json.Unmarshal(fields["title"], &rec.Title)
	_ = json.Unmarshal(fields["text"], &rec.Text)
	_ = json.Unmarshal(fields["topic"], &rec.Topic)

	var conf float64
	if err := json.Unmarshal(fields["confidence"], &conf); err == nil {
		rec.Confidence = &conf
	}

	var entities []model.Entity
	if err := json.Unmarshal(fields["entities"], &entities); err == nil {
		rec.Entities = entities
	}
	var keywords []string
	if err := json.Unmarshal(fields["keywords"], &keywords); err == nil {
		rec.Keywords = keywords
	}
	return rec
}

// LoadClaims filters records to non-empty, sufficiently confident claims and
// normalizes them. A record without a confidence counts as 0 and is dropped.
func LoadClaims(records []model.ClaimRecord, threshold float64) ([]model.Claim, LoadStats) {
	stats := LoadStats{Total: len(records)}
	claims := make([]model.Claim, 0, len(records))

	for _, rec := range records {
		text := NormalizeText(rec.Text)
		if text == "" {
			stats.MissingText++
			continue
		}

		var conf float64
		if rec.Confidence != nil {
			conf = *rec.Confidence
		}
		if conf < threshold {
			stats.LowConfidence++
			continue
		}

		reliability := conf
		claim := model.Claim{
			ArticleID:   string(rec.ArticleID),
			URL:         rec.URL,
			Title:       rec.Title,
			Text:        text,
			Topic:       model.NormalizeTopic(rec.Topic),
			Confidence:  conf,
			Reliability: &reliability,
			Entities:    rec.Entities,
			Keywords:    rec.Keywords,
		}
		if claim.Entities == nil {
			claim.Entities = []model.Entity{}
		}
		if claim.Keywords == nil {
			claim.Keywords = []string{}
		}
		claims = append(claims, claim)
	}

	stats.Kept = len(claims)
	return claims, stats
}

// NormalizeText applies NFC and trims surrounding whitespace. Claim text is
// otherwise kept verbatim, markup-like characters included.
func NormalizeText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

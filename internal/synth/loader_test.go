package synth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimsynth/internal/model"
)

const recordsJSON = `[
  {"article_id": 12, "url": "https://a.vn/1", "title": "T", "text": "  Giá xăng tăng mạnh.  ", "topic": "Kinh tế", "confidence": 0.91,
   "entities": [{"label": "MISC", "text": "xăng", "score": 0.8}], "keywords": ["giá xăng"]},
  {"article_id": "x-2", "url": "https://a.vn/2", "text": "Thấp", "topic": "Kinh tế", "confidence": 0.3},
  {"article_id": "x-3", "text": "", "confidence": 0.99},
  {"article_id": "x-4", "text": "Không có độ tin cậy", "topic": "Kinh tế"},
  {"article_id": "x-5", "text": "Hồ sơ lỗi <b>đậm</b> &amp; rõ", "confidence": 0.8, "entities": "oops", "keywords": [1, 2]},
  {"article_id": "x-6", "text": "Độ tin cậy dạng chuỗi", "confidence": "0.9"}
]`

func TestReadClaimRecords_SalvagesMalformedRecords(t *testing.T) {
	records, err := ReadClaimRecords(strings.NewReader(recordsJSON))
	require.NoError(t, err)
	require.Len(t, records, 6)

	assert.Equal(t, model.ArticleID("12"), records[0].ArticleID)
	require.NotNil(t, records[0].Confidence)
	assert.Equal(t, 0.91, *records[0].Confidence)

	salvaged := records[4]
	assert.Equal(t, model.ArticleID("x-5"), salvaged.ArticleID)
	require.NotNil(t, salvaged.Confidence)
	assert.Nil(t, salvaged.Entities)
	assert.Nil(t, salvaged.Keywords)

	assert.Nil(t, records[5].Confidence, "a string confidence is treated as missing")
}

func TestReadClaimRecords_RejectsNonArray(t *testing.T) {
	_, err := ReadClaimRecords(strings.NewReader(`{"text": "x"}`))
	assert.Error(t, err)
}

func TestLoadClaims_FiltersAndNormalizes(t *testing.T) {
	records, err := ReadClaimRecords(strings.NewReader(recordsJSON))
	require.NoError(t, err)

	claims, stats := LoadClaims(records, 0.65)
	assert.Equal(t, LoadStats{Total: 6, Kept: 2, MissingText: 1, LowConfidence: 3}, stats)
	require.Len(t, claims, 2)

	first := claims[0]
	assert.Equal(t, "Giá xăng tăng mạnh.", first.Text)
	assert.Equal(t, "12", first.ArticleID)
	require.NotNil(t, first.Reliability)
	assert.Equal(t, 0.91, *first.Reliability)

	second := claims[1]
	assert.Equal(t, "Hồ sơ lỗi <b>đậm</b> &amp; rõ", second.Text)
	assert.Equal(t, model.UnclassifiedTopic, second.Topic)
	assert.Equal(t, "", second.URL)
	assert.NotNil(t, second.Entities)
	assert.NotNil(t, second.Keywords)

	for _, c := range claims {
		assert.GreaterOrEqual(t, c.Confidence, 0.65)
	}
}

func TestNormalizeText_NFC(t *testing.T) {
	decomposed := "Vie\u0323\u0302t Nam"
	assert.Equal(t, "Vi\u1ec7t Nam", NormalizeText(decomposed))
	assert.Equal(t, "a < b", NormalizeText(" a < b "))
}

func TestNormalizeText_KeepsAngleBrackets(t *testing.T) {
	for _, text := range []string{
		"Số ca x<y nhưng vẫn tăng",
		"Tỷ lệ nhiễm ở nhóm tuổi<a và nhóm khác tăng gấp đôi",
		"Giá <b>xăng</b> &amp; dầu",
	} {
		assert.Equal(t, text, NormalizeText("  "+text+"\n"))
	}
}

func TestPartitionByTopic(t *testing.T) {
	claims := []model.Claim{
		{Text: "1", Topic: "B"},
		{Text: "2", Topic: "A"},
		{Text: "3", Topic: ""},
		{Text: "4", Topic: "B"},
	}
	parts := PartitionByTopic(claims)
	assert.Equal(t, []string{"A", "B", model.UnclassifiedTopic}, SortedTopics(parts))
	require.Len(t, parts["B"], 2)
	assert.Equal(t, "1", parts["B"][0].Text)
	assert.Equal(t, "4", parts["B"][1].Text)
}

func TestPartitionByTopic_ExactLabels(t *testing.T) {
	claims := []model.Claim{
		{Text: "1", Topic: "A"},
		{Text: "2", Topic: " A"},
		{Text: "3", Topic: "A "},
	}
	parts := PartitionByTopic(claims)
	assert.Len(t, parts, 3)
	assert.Len(t, parts["A"], 1)
	assert.Len(t, parts[" A"], 1)
}

package model

import (
	"runtime"
	"time"
)

// Config is the complete claimsynth configuration.
// Fields carry both yaml (config show/init) and mapstructure (viper) tags.
type Config struct {
	Synthesis    SynthesisConfig   `yaml:"synthesis" mapstructure:"synthesis"`
	Enrichment   EnrichmentConfig  `yaml:"enrichment" mapstructure:"enrichment"`
	Inference    InferenceConfig   `yaml:"inference" mapstructure:"inference"`
	Embedding    EmbeddingConfig   `yaml:"embedding" mapstructure:"embedding"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	Output       OutputConfig      `yaml:"output" mapstructure:"output"`
}

// SynthesisConfig tunes grouping, cohesion, contradiction and aggregation
type SynthesisConfig struct {
	ConfidenceThreshold    float64        `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	MinClaimsPerGroup      int            `yaml:"min_claims_per_group" mapstructure:"min_claims_per_group"`
	CohesionThreshold      float64        `yaml:"cohesion_threshold" mapstructure:"cohesion_threshold"`
	ContradictionThreshold float64        `yaml:"contradiction_threshold" mapstructure:"contradiction_threshold"`
	MinSamples             int            `yaml:"min_samples" mapstructure:"min_samples"`
	EntityWeight           float64        `yaml:"entity_weight" mapstructure:"entity_weight"`
	KeywordWeight          float64        `yaml:"keyword_weight" mapstructure:"keyword_weight"`
	Radius                 RadiusConfig   `yaml:"radius" mapstructure:"radius"`
	Fallback               FallbackConfig `yaml:"fallback" mapstructure:"fallback"`
	Aliases                []Alias        `yaml:"aliases" mapstructure:"aliases"`
	MaxKeywords            int            `yaml:"max_keywords" mapstructure:"max_keywords"`
	MaxEntities            int            `yaml:"max_entities" mapstructure:"max_entities"`
	DefaultTopic           string         `yaml:"default_topic" mapstructure:"default_topic"`
	Summary                SummaryConfig  `yaml:"summary" mapstructure:"summary"`
}

// RadiusConfig maps topic-label categories to DBSCAN neighborhood radii.
// Categories are checked in order; the first one with a matching substring wins.
type RadiusConfig struct {
	Default    float64          `yaml:"default" mapstructure:"default"`
	Categories []RadiusCategory `yaml:"categories" mapstructure:"categories"`
}

// RadiusCategory is one row of the radius lookup table
type RadiusCategory struct {
	Name       string   `yaml:"name" mapstructure:"name"`
	Substrings []string `yaml:"substrings" mapstructure:"substrings"`
	Radius     float64  `yaml:"radius" mapstructure:"radius"`
}

// FallbackConfig controls the centroid-based fallback clustering
type FallbackConfig struct {
	Enabled       bool  `yaml:"enabled" mapstructure:"enabled"`
	MinPartition  int   `yaml:"min_partition" mapstructure:"min_partition"`
	MaxK          int   `yaml:"max_k" mapstructure:"max_k"`
	NInit         int   `yaml:"n_init" mapstructure:"n_init"`
	MaxIter       int   `yaml:"max_iter" mapstructure:"max_iter"`
	Seed          int64 `yaml:"seed" mapstructure:"seed"`
	CheckCohesion bool  `yaml:"check_cohesion" mapstructure:"check_cohesion"` // Cohesion-filter fallback clusters too
}

// Alias canonicalizes an abbreviation before embedding
type Alias struct {
	From string `yaml:"from" mapstructure:"from"`
	To   string `yaml:"to" mapstructure:"to"`
}

// SummaryConfig holds summarization prompt and generation bounds
type SummaryConfig struct {
	Prefix            string `yaml:"prefix" mapstructure:"prefix"`
	MaxLength         int    `yaml:"max_length" mapstructure:"max_length"`
	MinLength         int    `yaml:"min_length" mapstructure:"min_length"`
	NumBeams          int    `yaml:"num_beams" mapstructure:"num_beams"`
	NoRepeatNgramSize int    `yaml:"no_repeat_ngram_size" mapstructure:"no_repeat_ngram_size"`
	EarlyStopping     bool   `yaml:"early_stopping" mapstructure:"early_stopping"`
}

// EnrichmentConfig tunes topic assignment, NER and keyword extraction
type EnrichmentConfig struct {
	TopicLabels        []string `yaml:"topic_labels" mapstructure:"topic_labels"`
	MinTopicConfidence float64  `yaml:"min_topic_confidence" mapstructure:"min_topic_confidence"`
	TopicPrompt        string   `yaml:"topic_prompt" mapstructure:"topic_prompt"`
	MaxKeywords        int      `yaml:"max_keywords" mapstructure:"max_keywords"`
	MaxNgram           int      `yaml:"max_ngram" mapstructure:"max_ngram"`
	Stopwords          []string `yaml:"stopwords" mapstructure:"stopwords"`
}

// InferenceConfig selects the model-service backend for text tasks
type InferenceConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // http, openai, anthropic, ollama, mock
	Model    string `yaml:"model" mapstructure:"model"`
	APIKey   string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL  string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout  int    `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// EmbeddingConfig selects the embedding backend. An empty provider reuses
// the inference provider.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider,omitempty" mapstructure:"provider"`
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
	Dimension int    `yaml:"dimension" mapstructure:"dimension"`
}

// CacheConfig configures the layered embedding cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig bounds the worker pools
type ConcurrencyConfig struct {
	Workers       int `yaml:"workers" mapstructure:"workers"`
	EnrichWorkers int `yaml:"enrich_workers" mapstructure:"enrich_workers"`
}

// RateLimitConfig limits calls per model service
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// HTTPConfig is shared by every outbound HTTP client
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"` // Check robots.txt before fetching remote inputs
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// OutputConfig controls rendering and persistence of results
type OutputConfig struct {
	Verbose    bool   `yaml:"verbose" mapstructure:"verbose"`
	DBPath     string `yaml:"db_path,omitempty" mapstructure:"db_path"`
	ReportPath string `yaml:"report_path,omitempty" mapstructure:"report_path"`
}

// DefaultTopicLabels is the fixed topic taxonomy
var DefaultTopicLabels = []string{
	"Sức khỏe & Y tế",
	"Dinh dưỡng & Thực phẩm",
	"Tai nạn & An toàn",
	"Lối sống & Thói quen",
	"Trẻ em & Giáo dục",
	"Thể thao",
	"Công nghệ & Khoa học",
	"Xã hội & Pháp luật",
	"Giải trí & Văn hóa",
}

// DefaultStopwords are the Vietnamese function words ignored by keyword cleaning
var DefaultStopwords = []string{
	"là", "ở", "của", "và", "hoặc", "với", "cho", "này", "kia", "đó",
	"trong", "khi", "để", "các", "những", "một", "được", "bị", "tại", "theo",
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Synthesis: SynthesisConfig{
			ConfidenceThreshold:    0.65,
			MinClaimsPerGroup:      2,
			CohesionThreshold:      0.30,
			ContradictionThreshold: 0.30,
			MinSamples:             2,
			EntityWeight:           0.05,
			KeywordWeight:          0.02,
			Radius: RadiusConfig{
				Default: 0.44,
				Categories: []RadiusCategory{
					{Name: "health", Substrings: []string{"Sức khỏe", "Y tế"}, Radius: 0.48},
					{Name: "lifestyle", Substrings: []string{"Lối sống", "Thói quen"}, Radius: 0.46},
				},
			},
			Fallback: FallbackConfig{
				Enabled:       true,
				MinPartition:  4,
				MaxK:          3,
				NInit:         5,
				MaxIter:       300,
				Seed:          42,
				CheckCohesion: true,
			},
			Aliases: []Alias{
				{From: "WHO", To: "Tổ chức Y tế Thế giới"},
				{From: "TP HCM", To: "TP.HCM"},
				{From: "VN", To: "Việt Nam"},
			},
			MaxKeywords:  8,
			MaxEntities:  6,
			DefaultTopic: "Chung",
			Summary: SummaryConfig{
				Prefix:            "Tóm tắt ngắn gọn, trung lập, không thêm suy diễn: ",
				MaxLength:         80,
				MinLength:         15,
				NumBeams:          3,
				NoRepeatNgramSize: 2,
				EarlyStopping:     true,
			},
		},
		Enrichment: EnrichmentConfig{
			TopicLabels:        append([]string(nil), DefaultTopicLabels...),
			MinTopicConfidence: 0.5,
			TopicPrompt:        "Đây là một câu trong bài báo tiếng Việt: '%s'. Hãy xác định chủ đề phù hợp nhất trong danh sách sau.",
			MaxKeywords:        10,
			MaxNgram:           4,
			Stopwords:          append([]string(nil), DefaultStopwords...),
		},
		Inference: InferenceConfig{
			Provider: "http",
			Timeout:  60,
		},
		Embedding: EmbeddingConfig{
			Model:     "intfloat/multilingual-e5-base",
			BatchSize: 32,
			Dimension: 768,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "",
			MemoryTTL: time.Hour,
			DiskTTL:   30 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:       runtime.NumCPU(),
			EnrichWorkers: 4,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 20,
			BurstSize:         5,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "claimsynth/0.1",
			MaxBodyBytes:  64 << 20,
			RespectRobots: true,
		},
	}
}

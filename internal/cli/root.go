package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimsynth/internal/cache"
	"github.com/ppiankov/claimsynth/internal/inference"
	"github.com/ppiankov/claimsynth/internal/model"
	"github.com/ppiankov/claimsynth/internal/synth"
	"github.com/ppiankov/claimsynth/internal/util"
	"github.com/ppiankov/claimsynth/internal/worker"
)

// Version is the claimsynth release
const Version = "0.1.0"

var (
	cfgFile  string
	verbose  bool
	provider string
	workers  int
	logger   = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "claimsynth",
	Short: "Claimsynth - enrich news claims and consolidate them into groups",
	Long: `Claimsynth turns short statements extracted from news articles into a
small number of topically coherent, mutually consistent groups.

Each claim is annotated with a topic, named entities, dates and keywords,
then claims are clustered per topic, checked for cohesion and contradiction,
and aggregated into group records with a neutral summary and a reliability
score.

Model services (embeddings, classification, NER, summarization, NLI) are
reached over HTTP: a generic model server, OpenAI, Anthropic or Ollama.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && errors.Is(err, synth.ErrEmbeddingUnavailable) {
		fmt.Fprintln(os.Stderr, "Embedding service unavailable; no output was written.")
	}
	return err
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of claimsynth.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("claimsynth v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.claimsynth/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "model service provider (http, openai, anthropic, ollama, mock)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "worker pool size (default: number of CPUs)")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("inference.provider", rootCmd.PersistentFlags().Lookup("provider"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig loads .env, then reads the config file and ENV variables
func initConfig() {
	_ = godotenv.Load(".env")

	if err := setDefaults(model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".claimsynth"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match CLAIMSYNTH_*, with nested keys
	// joined by underscores (CLAIMSYNTH_INFERENCE_PROVIDER)
	viper.SetEnvPrefix("CLAIMSYNTH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every default as a viper key so that env variables
// can override nested values
func setDefaults(cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	registerDefaults("", tree)
	return nil
}

func registerDefaults(prefix string, tree map[string]any) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			registerDefaults(key, sub)
			continue
		}
		viper.SetDefault(key, v)
	}
}

// loadConfig resolves the effective configuration: defaults, config file,
// env variables, then flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyProviderEnv(cfg)
	if workers > 0 {
		cfg.Concurrency.Workers = workers
	}
	cfg.Output.Verbose = cfg.Output.Verbose || verbose
	return cfg, nil
}

// applyProviderEnv fills credentials from the providers' conventional env
// variables when the config leaves them empty
func applyProviderEnv(cfg *model.Config) {
	fill := func(provider string, apiKey, baseURL *string) {
		switch strings.ToLower(provider) {
		case "openai":
			if *apiKey == "" {
				*apiKey = os.Getenv("OPENAI_API_KEY")
			}
		case "anthropic", "claude":
			if *apiKey == "" {
				*apiKey = os.Getenv("ANTHROPIC_API_KEY")
			}
		case "ollama":
			if *baseURL == "" {
				*baseURL = os.Getenv("OLLAMA_BASE_URL")
			}
		case "http", "":
			if *baseURL == "" {
				*baseURL = os.Getenv("MODEL_SERVER_URL")
			}
		}
	}
	fill(cfg.Inference.Provider, &cfg.Inference.APIKey, &cfg.Inference.BaseURL)
	if cfg.Embedding.Provider != "" {
		fill(cfg.Embedding.Provider, &cfg.Embedding.APIKey, &cfg.Embedding.BaseURL)
	}
}

// buildServices wires the shared HTTP client, rate limiter and embedding
// cache around the configured model backends
func buildServices(cfg *model.Config) (inference.Services, error) {
	services, err := inference.NewServices(cfg, inference.Options{
		Cache:   cache.New(cfg.Cache),
		Limiter: worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize),
		Client:  util.NewHTTPClient(cfg.HTTP),
		Workers: cfg.Concurrency.Workers,
	})
	if err != nil {
		return inference.Services{}, fmt.Errorf("init model services: %w", err)
	}
	return services, nil
}

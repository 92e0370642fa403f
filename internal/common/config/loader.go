// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges configs/config.<APP_ENVIRONMENT>.yaml and
// applies environment overrides. A missing base file is not an error.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets that are conventionally provided as bare env vars.
func overrideEmptyConfig(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "anthropic":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "genai":
			cfg.LLM.APIKey = os.Getenv("GENAI_API_KEY")
		}
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "frete-nlq"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":8080"
	}

	if cfg.Workers == nil {
		cfg.Workers = map[string]WorkerConfig{}
	}
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	applyLLMDefaults(&cfg.LLM)
	cfg.Pipeline = cfg.Pipeline.WithDefaults()
	applyKnowledgeDefaults(&cfg.Knowledge)
}

func applyLLMDefaults(l *LLMConfig) {
	if l.Provider == "" {
		l.Provider = "none"
	}
	if l.Timeout == 0 {
		l.Timeout = 20000
	}
	if l.MaxTokens == 0 {
		l.MaxTokens = 800
	}
	if l.Temperature == 0 {
		l.Temperature = 0.2
	}
	if l.MaxRetries == 0 {
		l.MaxRetries = 2
	}
	if l.RequestsPerSecond == 0 {
		l.RequestsPerSecond = 5
	}
	if l.Burst == 0 {
		l.Burst = 5
	}
}

func applyKnowledgeDefaults(k *KnowledgeConfig) {
	if k.Backend == "" {
		k.Backend = "memory"
	}
	if k.LearningRate == 0 {
		k.LearningRate = 0.1
	}
	if k.InitialConfidence == 0 {
		k.InitialConfidence = 0.5
	}
	if k.TopK == 0 {
		k.TopK = 5
	}
	if k.CacheTTL == 0 {
		k.CacheTTL = 300
	}
	if k.QueueSize == 0 {
		k.QueueSize = 256
	}
}

// WithDefaults returns a copy with every zero field replaced by its default.
func (p PipelineConfig) WithDefaults() PipelineConfig {
	setF := func(v *float64, d float64) {
		if *v == 0 {
			*v = d
		}
	}
	setF(&p.PatternWeight, 2.0)
	setF(&p.KeywordWeight, 1.0)
	setF(&p.EntityBoost, 1.5)
	setF(&p.LocationDiscount, 0.01)
	setF(&p.IntentWeight, 0.5)
	setF(&p.EntityWeight, 0.3)
	setF(&p.TemporalWeight, 0.2)
	setF(&p.ClarificationThreshold, 0.6)
	setF(&p.RefinementTarget, 0.9)
	setF(&p.RelevanceThreshold, 0.3)
	setF(&p.CriticPenalty, 0.2)
	setF(&p.ApprovalThreshold, 0.7)
	setF(&p.FootnoteThreshold, 0.8)
	setF(&p.SecondaryConfidence, 0.6)
	if p.MaxIterations == 0 {
		p.MaxIterations = 3
	}
	if p.AgentTimeout == 0 {
		p.AgentTimeout = 30000
	}
	if p.ExcerptLength == 0 {
		p.ExcerptLength = 280
	}
	if p.DefaultWindowDays == 0 {
		p.DefaultWindowDays = 30
	}
	return p
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}

	switch cfg.Knowledge.Backend {
	case "memory", "none":
	case "postgres":
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	default:
		return fmt.Errorf("knowledge.backend %q is not supported", cfg.Knowledge.Backend)
	}

	if cfg.Database.Redis.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when redis is enabled")
	}

	switch cfg.LLM.Provider {
	case "none":
	case "anthropic", "openai":
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key is required for provider %s", cfg.LLM.Provider)
		}
	case "genai":
		if cfg.LLM.BaseURL == "" {
			return fmt.Errorf("llm.base_url is required for provider genai")
		}
	default:
		return fmt.Errorf("llm.provider %q is not supported", cfg.LLM.Provider)
	}

	if cfg.Knowledge.LearningRate <= 0 || cfg.Knowledge.LearningRate > 0.5 {
		return fmt.Errorf("knowledge.learning_rate must be in (0, 0.5]")
	}
	if cfg.Knowledge.InitialConfidence < 0.1 || cfg.Knowledge.InitialConfidence > 1.0 {
		return fmt.Errorf("knowledge.initial_confidence must be in [0.1, 1.0]")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}

// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Camunda   CamundaConfig           `mapstructure:"camunda"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
	LLM       LLMConfig               `mapstructure:"llm"`
	Pipeline  PipelineConfig          `mapstructure:"pipeline"`
	Knowledge KnowledgeConfig         `mapstructure:"knowledge"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	Metrics   MetricsConfig           `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LLMConfig selects and tunes the text-completion collaborator used by specialists.
type LLMConfig struct {
	Provider          string  `mapstructure:"provider"` // anthropic | openai | genai | none
	Model             string  `mapstructure:"model"`
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	Timeout           int     `mapstructure:"timeout"` // milliseconds
	MaxTokens         int     `mapstructure:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxRetries        int     `mapstructure:"max_retries"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// PipelineConfig carries the heuristic weights and thresholds of the query pipeline.
// The defaults are an initial calibration.
type PipelineConfig struct {
	PatternWeight          float64 `mapstructure:"pattern_weight"`
	KeywordWeight          float64 `mapstructure:"keyword_weight"`
	EntityBoost            float64 `mapstructure:"entity_boost"`
	LocationDiscount       float64 `mapstructure:"location_discount"`
	IntentWeight           float64 `mapstructure:"intent_weight"`
	EntityWeight           float64 `mapstructure:"entity_weight"`
	TemporalWeight         float64 `mapstructure:"temporal_weight"`
	ClarificationThreshold float64 `mapstructure:"clarification_threshold"`
	RefinementTarget       float64 `mapstructure:"refinement_target"`
	MaxIterations          int     `mapstructure:"max_iterations"`
	RelevanceThreshold     float64 `mapstructure:"relevance_threshold"`
	AgentTimeout           int     `mapstructure:"agent_timeout"` // milliseconds
	CriticPenalty          float64 `mapstructure:"critic_penalty"`
	ApprovalThreshold      float64 `mapstructure:"approval_threshold"`
	FootnoteThreshold      float64 `mapstructure:"footnote_threshold"`
	SecondaryConfidence    float64 `mapstructure:"secondary_confidence"`
	ExcerptLength          int     `mapstructure:"excerpt_length"`
	DefaultWindowDays      int     `mapstructure:"default_window_days"`
}

// KnowledgeConfig configures the learning feedback store.
type KnowledgeConfig struct {
	Backend           string  `mapstructure:"backend"` // memory | postgres
	LearningRate      float64 `mapstructure:"learning_rate"`
	InitialConfidence float64 `mapstructure:"initial_confidence"`
	TopK              int     `mapstructure:"top_k"`
	CacheTTL          int     `mapstructure:"cache_ttl"` // seconds
	QueueSize         int     `mapstructure:"queue_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig holds the health/metrics HTTP server settings.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// internal/workers/nlp/analyze-query/config.go
package analyzequery

import "time"

type Config struct {
	Timeout time.Duration
}

// LoadConfig converts the worker timeout in milliseconds, defaulting to 10s.
func LoadConfig(timeoutMs int) *Config {
	timeout := 10 * time.Second
	if timeoutMs > 0 {
		timeout = time.Duration(timeoutMs) * time.Millisecond
	}
	return &Config{Timeout: timeout}
}

// internal/workers/nlp/orchestrate-query/config.go
package orchestratequery

import "time"

type Config struct {
	Timeout time.Duration
}

// LoadConfig converts the worker timeout in milliseconds. The default leaves
// room for the specialist fan-out.
func LoadConfig(timeoutMs int) *Config {
	timeout := 60 * time.Second
	if timeoutMs > 0 {
		timeout = time.Duration(timeoutMs) * time.Millisecond
	}
	return &Config{Timeout: timeout}
}

// internal/workers/nlp/record-feedback/config.go
package recordfeedback

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig(timeoutMs int) *Config {
	timeout := 10 * time.Second
	if timeoutMs > 0 {
		timeout = time.Duration(timeoutMs) * time.Millisecond
	}
	return &Config{Timeout: timeout}
}

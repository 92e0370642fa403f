// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/validation"
)

//go:embed activities.json
var embedded []byte

var (
	defaultOnce sync.Once
	defaultReg  *ActivityRegistry
	defaultErr  error
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and checks a registry document.
func Parse(data []byte) (*ActivityRegistry, error) {
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Default returns the registry compiled into the binary.
func Default() (*ActivityRegistry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = Parse(embedded)
	})
	return defaultReg, defaultErr
}

// Validate checks naming and uniqueness of every activity.
func (r *ActivityRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Activities))
	for _, a := range r.Activities {
		if err := validation.ValidateActivityNaming(a.ID); err != nil {
			return fmt.Errorf("activity %q: %w", a.ID, err)
		}
		if a.TaskType == "" {
			return fmt.Errorf("activity %q: missing task type", a.ID)
		}
		if _, err := a.TimeoutDuration(); err != nil {
			return fmt.Errorf("activity %q: invalid timeout: %w", a.ID, err)
		}
		if seen[a.TaskType] {
			return fmt.Errorf("duplicate task type %q", a.TaskType)
		}
		seen[a.TaskType] = true
	}
	return nil
}

// Find looks up an activity by its Zeebe task type.
func (r *ActivityRegistry) Find(taskType string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}

// InputValidator compiles the input schema of a task type.
func (r *ActivityRegistry) InputValidator(taskType string) (*validation.Validator, error) {
	a, ok := r.Find(taskType)
	if !ok {
		return nil, fmt.Errorf("task type %q not registered", taskType)
	}
	return validation.Compile(a.InputSchema)
}

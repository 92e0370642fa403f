// Package agents runs the domain specialists concurrently, cross-checks their
// answers and merges them into one response.
package agents

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
)

//go:embed profiles.yaml
var defaultProfiles []byte

// Profile is the fixed domain description of one specialist.
type Profile struct {
	ID              string        `yaml:"id"`
	Name            string        `yaml:"name"`
	Domain          models.Domain `yaml:"domain"`
	PrimaryEntities []string      `yaml:"primary_entities"`
	KeyFields       []string      `yaml:"key_fields"`
	KPIs            []string      `yaml:"kpis"`
	Keywords        []string      `yaml:"keywords"`
	Examples        []string      `yaml:"examples"`
	SystemPrompt    string        `yaml:"system_prompt"`

	keywordPatterns []*regexp.Regexp
}

type profileFile struct {
	Specialists []Profile `yaml:"specialists"`
}

var (
	loadOnce sync.Once
	loaded   []Profile
	loadErr  error
)

// DefaultProfiles returns the embedded specialist profiles in declaration order.
func DefaultProfiles() ([]Profile, error) {
	loadOnce.Do(func() {
		loaded, loadErr = ParseProfiles(defaultProfiles)
	})
	return loaded, loadErr
}

// ParseProfiles decodes and validates a profile document.
func ParseProfiles(data []byte) ([]Profile, error) {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	if len(f.Specialists) == 0 {
		return nil, fmt.Errorf("no specialists declared")
	}

	seen := map[string]bool{}
	for i := range f.Specialists {
		p := &f.Specialists[i]
		if p.ID == "" {
			return nil, fmt.Errorf("specialist %d has no id", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate specialist id %q", p.ID)
		}
		seen[p.ID] = true
		if len(p.Keywords) == 0 {
			return nil, fmt.Errorf("specialist %q has no keywords", p.ID)
		}
		p.SystemPrompt = strings.TrimSpace(p.SystemPrompt)
		for _, kw := range p.Keywords {
			re, err := keywordPattern(kw)
			if err != nil {
				return nil, fmt.Errorf("specialist %q: %w", p.ID, err)
			}
			p.keywordPatterns = append(p.keywordPatterns, re)
		}
	}
	return f.Specialists, nil
}

// keywordPattern matches any of the "|"-separated stems as a word prefix.
func keywordPattern(kw string) (*regexp.Regexp, error) {
	var alts []string
	for _, stem := range strings.Split(kw, "|") {
		if stem = strings.TrimSpace(strings.ToLower(stem)); stem != "" {
			alts = append(alts, regexp.QuoteMeta(stem))
		}
	}
	if len(alts) == 0 {
		return nil, fmt.Errorf("empty keyword %q", kw)
	}
	return regexp.Compile(`\b(?:` + strings.Join(alts, "|") + `)`)
}

// Relevance is the share of profile keywords found in the normalized text.
// Keywords carry no cedilla, so the text is matched with ç folded to c.
func (p Profile) Relevance(text string) float64 {
	if len(p.keywordPatterns) == 0 {
		return 0
	}
	text = strings.ReplaceAll(text, "ç", "c")
	matched := 0
	for _, re := range p.keywordPatterns {
		if re.MatchString(text) {
			matched++
		}
	}
	r := float64(matched) / float64(len(p.keywordPatterns))
	if r > 1 {
		return 1
	}
	return r
}

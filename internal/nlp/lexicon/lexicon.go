// Package lexicon holds the static vocabulary of the freight query pipeline:
// typo and abbreviation maps, stop-words, synonyms, entity dictionaries and the
// keyword sets used by the classifier and the context analyzer.
package lexicon

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexiconYAML []byte

// IntentLexicon is the pattern and keyword set of one intent category.
type IntentLexicon struct {
	Patterns []string `yaml:"patterns"`
	Keywords []string `yaml:"keywords"`
}

// OverrideRule forces an intent when any of its patterns matches.
type OverrideRule struct {
	Intent   string   `yaml:"intent"`
	Patterns []string `yaml:"patterns"`
}

// Lexicon is immutable after Parse and safe for concurrent use.
type Lexicon struct {
	Typos            map[string]string        `yaml:"typos"`
	Abbreviations    map[string]string        `yaml:"abbreviations"`
	StopWords        []string                 `yaml:"stopwords"`
	Synonyms         map[string][]string      `yaml:"synonyms"`
	Clients          map[string]string        `yaml:"clients"`
	Places           map[string]string        `yaml:"places"`
	States           []string                 `yaml:"states"`
	Intents          map[string]IntentLexicon `yaml:"intents"`
	Overrides        []OverrideRule           `yaml:"overrides"`
	PlaceLexemes     []string                 `yaml:"place_lexemes"`
	FinancialLexemes []string                 `yaml:"financial_lexemes"`
	StatusLexemes    map[string][]string      `yaml:"status_lexemes"`
	Interrogatives   []string                 `yaml:"interrogatives"`
	ClientLexemes    []string                 `yaml:"client_lexemes"`
	OrderLexemes     []string                 `yaml:"order_lexemes"`
	InvoiceLexemes   []string                 `yaml:"invoice_lexemes"`
	Urgency          map[string][]string      `yaml:"urgency"`
	Domains          map[string][]string      `yaml:"domains"`
	Months           map[string]int           `yaml:"months"`
	Examples         map[string][]string      `yaml:"examples"`

	stopSet    map[string]struct{}
	vocabulary map[string]struct{}
	canonical  map[string]string
}

var (
	cachedDefault *Lexicon
	defaultOnce   sync.Once
	defaultErr    error
)

// Load parses the embedded lexicon once and caches it.
func Load() (*Lexicon, error) {
	defaultOnce.Do(func() {
		cachedDefault, defaultErr = Parse(defaultLexiconYAML)
	})
	return cachedDefault, defaultErr
}

// Default returns the embedded lexicon and panics if it does not parse.
func Default() *Lexicon {
	lex, err := Load()
	if err != nil {
		panic(fmt.Sprintf("lexicon: embedded lexicon.yaml is invalid: %v", err))
	}
	return lex
}

// Parse builds a Lexicon from YAML and validates it.
func Parse(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parsing lexicon: %w", err)
	}
	if err := lex.validate(); err != nil {
		return nil, err
	}
	lex.index()
	return &lex, nil
}

// validate rejects substitution maps whose output could be rewritten again,
// which would break idempotent normalization.
func (l *Lexicon) validate() error {
	for _, m := range []map[string]string{l.Typos, l.Abbreviations} {
		for from, to := range m {
			if from == to {
				return fmt.Errorf("lexicon: identity substitution %q", from)
			}
			for _, w := range strings.Fields(to) {
				if _, ok := l.Typos[w]; ok {
					return fmt.Errorf("lexicon: substitution %q -> %q produces rewritable word %q", from, to, w)
				}
				if _, ok := l.Abbreviations[w]; ok {
					return fmt.Errorf("lexicon: substitution %q -> %q produces rewritable word %q", from, to, w)
				}
			}
		}
	}

	for name, il := range l.Intents {
		for _, p := range il.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("lexicon: intent %s pattern %q: %w", name, p, err)
			}
		}
	}
	for _, o := range l.Overrides {
		for _, p := range o.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("lexicon: override %s pattern %q: %w", o.Intent, p, err)
			}
		}
	}
	return nil
}

func (l *Lexicon) index() {
	l.stopSet = make(map[string]struct{}, len(l.StopWords))
	for _, w := range l.StopWords {
		l.stopSet[w] = struct{}{}
	}

	l.canonical = map[string]string{}
	for canon, variants := range l.Synonyms {
		for _, v := range variants {
			l.canonical[v] = canon
		}
	}

	l.vocabulary = map[string]struct{}{}
	add := func(phrases ...string) {
		for _, p := range phrases {
			for _, w := range strings.Fields(p) {
				l.vocabulary[w] = struct{}{}
			}
		}
	}
	for _, il := range l.Intents {
		add(il.Keywords...)
	}
	for _, kws := range l.Domains {
		add(kws...)
	}
	for _, kws := range l.Urgency {
		add(kws...)
	}
	for _, kws := range l.StatusLexemes {
		add(kws...)
	}
	for k := range l.Clients {
		add(k)
	}
	for k := range l.Places {
		add(k)
	}
	for k := range l.Months {
		add(k)
	}
	for canon := range l.Synonyms {
		add(canon)
	}
	add(l.PlaceLexemes...)
	add(l.FinancialLexemes...)
	add(l.Interrogatives...)
	add(l.ClientLexemes...)
	add(l.OrderLexemes...)
	add(l.InvoiceLexemes...)
	add("hoje", "ontem", "amanha", "anteontem", "dia", "dias", "semana", "semanas", "mes", "meses", "ano", "ultimos", "ultimas", "ultimo", "ultima")
}

// IsStopWord reports whether w is removed by the tokenizer.
func (l *Lexicon) IsStopWord(w string) bool {
	_, ok := l.stopSet[w]
	return ok
}

// Known reports whether w belongs to the domain vocabulary. A word is also
// known when it extends a known stem ("atrasadas" for "atrasad").
func (l *Lexicon) Known(w string) bool {
	if _, ok := l.vocabulary[w]; ok {
		return true
	}
	for v := range l.vocabulary {
		if len(v) >= 5 && strings.HasPrefix(w, v) {
			return true
		}
	}
	return false
}

// Canonical returns the canonical term for a synonym variant.
func (l *Lexicon) Canonical(w string) (string, bool) {
	c, ok := l.canonical[w]
	return c, ok
}

// SortedKeys returns the keys of m ordered longest first, then alphabetically,
// so alternations built from them prefer the longest match.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Alternation builds a non-capturing, word-bounded regexp alternation of the
// quoted phrases.
func Alternation(phrases []string) string {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return `\b(?:` + strings.Join(quoted, "|") + `)\b`
}

// StemPattern compiles phrases as word-start prefixes: "atrasad" matches "atrasadas".
func StemPattern(phrases []string) *regexp.Regexp {
	if len(phrases) == 0 {
		return regexp.MustCompile(`$^`)
	}
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)`)
}

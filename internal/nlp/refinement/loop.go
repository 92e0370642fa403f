// Package refinement re-analyzes a query with small rewrites until its
// confidence is high enough or the iteration budget runs out.
package refinement

import (
	"context"
	"regexp"
	"strings"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/lexicon"
)

const (
	DefaultTarget        = 0.9
	DefaultMaxIterations = 3
)

// Rewrite strategies.
const (
	StrategyNone             = "none"
	StrategySynonymExpansion = "synonym_expansion"
	StrategyTemporalContext  = "temporal_context"
	StrategyDomainContext    = "domain_context"
)

var wordPattern = regexp.MustCompile(`[\p{L}]+`)

// Analyzer is the single-pass pipeline the loop drives.
type Analyzer interface {
	Analyze(ctx context.Context, query string, qc *models.QueryContext) models.NLPResult
}

type Iteration struct {
	Index      int      `json:"index"`
	Query      string   `json:"query"`
	Confidence float64  `json:"confidence"`
	Coverage   float64  `json:"coverage"`
	Strategy   string   `json:"strategy"`
	Unmapped   []string `json:"unmapped,omitempty"`
}

type Result struct {
	Trace      []Iteration      `json:"trace"`
	FinalQuery string           `json:"finalQuery"`
	Trajectory []float64        `json:"trajectory"`
	Analysis   models.NLPResult `json:"analysis"`
	Converged  bool             `json:"converged"`
}

type Loop struct {
	analyzer Analyzer
	lex      *lexicon.Lexicon
	target   float64
	maxIter  int
}

func New(analyzer Analyzer, lex *lexicon.Lexicon, target float64, maxIterations int) *Loop {
	if lex == nil {
		lex = lexicon.Default()
	}
	if target <= 0 {
		target = DefaultTarget
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Loop{analyzer: analyzer, lex: lex, target: target, maxIter: maxIterations}
}

// Run alternates analysis and rewriting. It performs at most maxIterations
// analyses and stops early when a rewrite would not change the query.
func (l *Loop) Run(ctx context.Context, query string, qc *models.QueryContext) (*Result, error) {
	res := &Result{FinalQuery: query}
	current := query

	for i := 0; i < l.maxIter; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		analysis := l.analyzer.Analyze(ctx, current, qc)
		coverage, unmapped := l.Coverage(analysis)
		conf := (coverage + analysis.ConfidenceScore) / 2

		it := Iteration{Index: i, Query: current, Confidence: conf, Coverage: coverage, Strategy: StrategyNone, Unmapped: unmapped}
		res.Analysis = analysis
		res.FinalQuery = current
		res.Trajectory = append(res.Trajectory, conf)

		if conf >= l.target {
			res.Trace = append(res.Trace, it)
			res.Converged = true
			return res, nil
		}
		if i == l.maxIter-1 {
			res.Trace = append(res.Trace, it)
			return res, nil
		}

		next, strategy := l.refine(analysis, unmapped, qc)
		it.Strategy = strategy
		res.Trace = append(res.Trace, it)
		if strategy == StrategyNone || next == analysis.NormalizedText {
			return res, nil
		}
		current = next
	}
	return res, nil
}

// Coverage is the share of word tokens the lexicon or an entity accounts for.
func (l *Loop) Coverage(analysis models.NLPResult) (float64, []string) {
	var words, mapped int
	var unmapped []string
	for _, tok := range analysis.Tokens {
		if !wordPattern.MatchString(tok.Text) {
			continue
		}
		words++
		if l.lex.Known(tok.Text) || inEntity(tok.Text, analysis.Entities) {
			mapped++
			continue
		}
		unmapped = append(unmapped, tok.Text)
	}
	if words == 0 {
		return 0, unmapped
	}
	return float64(mapped) / float64(words), unmapped
}

func inEntity(word string, entities []models.Entity) bool {
	for _, e := range entities {
		for _, w := range strings.Fields(e.RawText) {
			if w == word {
				return true
			}
		}
	}
	return false
}

// learnedTerms maps words to their learned replacement.
func learnedTerms(hints []models.KnowledgePattern) map[string]string {
	out := map[string]string{}
	for _, h := range hints {
		if h.PatternType == models.PatternTerm && h.Confidence >= models.MinHintConfidence && h.Interpretation != "" {
			if _, seen := out[h.PatternText]; !seen {
				out[h.PatternText] = h.Interpretation
			}
		}
	}
	return out
}

// refine picks the first applicable strategy: replace unmapped synonyms,
// name the default period, or add the caller's domain hint.
func (l *Loop) refine(analysis models.NLPResult, unmapped []string, qc *models.QueryContext) (string, string) {
	text := analysis.NormalizedText

	terms := learnedTerms(analysis.KnowledgeHints)
	replace := map[string]string{}
	for _, w := range unmapped {
		if canon, ok := l.lex.Canonical(w); ok {
			replace[w] = canon
		} else if learned, ok := terms[w]; ok {
			replace[w] = learned
		}
	}
	if len(replace) > 0 {
		out := wordPattern.ReplaceAllStringFunc(text, func(w string) string {
			if c, ok := replace[w]; ok {
				return c
			}
			return w
		})
		return out, StrategySynonymExpansion
	}

	scope := analysis.Context.TemporalScope
	if !scope.Explicit && scope.Label != "" {
		return strings.TrimSpace(text + " nos " + scope.Label), StrategyTemporalContext
	}

	if analysis.Context.BusinessDomain == models.DomainGeneral && qc != nil && qc.DomainHint != "" {
		if stems := l.lex.Domains[string(qc.DomainHint)]; len(stems) > 0 {
			return strings.TrimSpace(text + " " + stems[0]), StrategyDomainContext
		}
	}
	return text, StrategyNone
}

// Package pipeline chains normalization, extraction, classification, context
// analysis and confidence scoring into one synchronous pass.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/config"
	apperrors "github.com/Rafael-2109/frete-sistema-sub002/internal/common/errors"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/logger"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/metrics"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/analyzer"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/confidence"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/extractor"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/intent"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/lexicon"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/normalizer"
)

// HintSource returns learned patterns relevant to a normalized query.
type HintSource interface {
	Hints(ctx context.Context, text string) ([]models.KnowledgePattern, error)
}

type Pipeline struct {
	lex        *lexicon.Lexicon
	normalizer *normalizer.Normalizer
	extractor  *extractor.Extractor
	classifier *intent.Classifier
	analyzer   *analyzer.Analyzer
	scorer     *confidence.Scorer
	hints      HintSource
	log        logger.Logger
}

type options struct {
	lex   *lexicon.Lexicon
	now   func() time.Time
	hints HintSource
}

type Option func(*options)

func WithLexicon(lex *lexicon.Lexicon) Option {
	return func(o *options) { o.lex = lex }
}

// WithClock fixes the clock used to resolve dates and windows.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithHints attaches a knowledge source consulted on every query.
func WithHints(h HintSource) Option {
	return func(o *options) { o.hints = h }
}

func New(cfg config.PipelineConfig, log logger.Logger, opts ...Option) *Pipeline {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.lex == nil {
		o.lex = lexicon.Default()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	cfg = cfg.WithDefaults()

	return &Pipeline{
		lex:        o.lex,
		normalizer: normalizer.New(o.lex),
		extractor:  extractor.New(o.lex, extractor.WithClock(o.now)),
		classifier: intent.New(o.lex, intent.Weights{
			Pattern:          cfg.PatternWeight,
			Keyword:          cfg.KeywordWeight,
			EntityBoost:      cfg.EntityBoost,
			LocationDiscount: cfg.LocationDiscount,
		}),
		analyzer: analyzer.New(o.lex, analyzer.WithClock(o.now), analyzer.WithDefaultWindow(cfg.DefaultWindowDays)),
		scorer: confidence.New(o.lex, confidence.Config{
			IntentWeight:   cfg.IntentWeight,
			EntityWeight:   cfg.EntityWeight,
			TemporalWeight: cfg.TemporalWeight,
			Threshold:      cfg.ClarificationThreshold,
		}),
		hints: o.hints,
		log:   log.With(map[string]interface{}{"component": "pipeline"}),
	}
}

func (p *Pipeline) Lexicon() *lexicon.Lexicon { return p.lex }

func (p *Pipeline) Normalizer() *normalizer.Normalizer { return p.normalizer }

// Analyze interprets one query. It never fails: an ambiguous query yields a
// result with ClarificationNeeded set and an AMBIGUOUS_QUERY error attached.
func (p *Pipeline) Analyze(ctx context.Context, query string, qc *models.QueryContext) models.NLPResult {
	text := p.normalizer.Normalize(query)
	tokens := p.normalizer.Tokenize(text)
	entities := p.extractor.Extract(text)
	for _, e := range entities {
		if e.NormalizedValue == nil {
			p.log.Debug("Entity kept without value", map[string]interface{}{
				"error": apperrors.NewParseFailureError(string(e.Type), e.RawText, nil),
			})
		}
	}

	var hints []models.KnowledgePattern
	if p.hints != nil && text != "" {
		found, err := p.hints.Hints(ctx, text)
		if err != nil {
			p.log.Warn("Knowledge hints unavailable", map[string]interface{}{"error": err})
		} else {
			hints = found
		}
	}

	in := p.classifier.Classify(text, tokens, entities, hints)
	actx := p.analyzer.Analyze(text, entities, qc, hints)
	score := p.scorer.Score(in, entities, actx)

	result := models.NLPResult{
		RequestID:       uuid.New().String(),
		Query:           query,
		NormalizedText:  text,
		Tokens:          tokens,
		Intent:          in,
		Entities:        entities,
		Context:         actx,
		ConfidenceScore: score,
		KnowledgeHints:  hints,
	}

	if p.scorer.NeedsClarification(score, entities) {
		result.ClarificationNeeded = true
		result.Clarification = p.scorer.Clarify(text, in, entities, actx)
		result.Error = apperrors.NewAmbiguousQueryError(score)
		metrics.ClarificationsRequested.Inc()
	} else {
		result.Suggestions = p.scorer.Suggestions(entities, actx)
	}
	metrics.QueriesAnalyzed.WithLabelValues(string(in.Type)).Inc()

	p.log.Debug("Query analyzed", map[string]interface{}{
		"requestId":     result.RequestID,
		"intent":        in.Type,
		"entities":      len(entities),
		"confidence":    score,
		"clarification": result.ClarificationNeeded,
	})
	return result
}

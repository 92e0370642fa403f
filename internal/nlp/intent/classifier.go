// Package intent scores intent categories for a normalized query.
package intent

import (
	"regexp"
	"sort"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/lexicon"
)

const (
	// OverrideConfidence is reported when a domain-critical rule fires.
	OverrideConfidence = 0.9
	// DefaultConfidence is reported when nothing in the query scored.
	DefaultConfidence = 0.3
	maxSubIntents     = 3
)

// Weights are the scoring heuristics. Zero fields fall back to DefaultWeights.
type Weights struct {
	Pattern          float64
	Keyword          float64
	EntityBoost      float64
	LocationDiscount float64
}

func DefaultWeights() Weights {
	return Weights{Pattern: 2.0, Keyword: 1.0, EntityBoost: 1.5, LocationDiscount: 0.01}
}

func (w Weights) withDefaults() Weights {
	d := DefaultWeights()
	if w.Pattern == 0 {
		w.Pattern = d.Pattern
	}
	if w.Keyword == 0 {
		w.Keyword = d.Keyword
	}
	if w.EntityBoost == 0 {
		w.EntityBoost = d.EntityBoost
	}
	if w.LocationDiscount == 0 {
		w.LocationDiscount = d.LocationDiscount
	}
	return w
}

// entityBoosts lists which intents an entity type makes more likely.
var entityBoosts = map[models.EntityType][]models.IntentType{
	models.EntityDate:   {models.IntentHistory},
	models.EntityMoney:  {models.IntentSum},
	models.EntityStatus: {models.IntentStatus, models.IntentIssue},
}

type override struct {
	intent   models.IntentType
	patterns []*regexp.Regexp
}

// Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	weights        Weights
	patterns       map[models.IntentType][]*regexp.Regexp
	keywords       map[models.IntentType]map[string]struct{}
	overrides      []override
	placeRe        *regexp.Regexp
	statusRe       *regexp.Regexp
	financialRe    *regexp.Regexp
	interrogatives map[string]struct{}
}

func New(lex *lexicon.Lexicon, w Weights) *Classifier {
	if lex == nil {
		lex = lexicon.Default()
	}
	c := &Classifier{
		weights:        w.withDefaults(),
		patterns:       map[models.IntentType][]*regexp.Regexp{},
		keywords:       map[models.IntentType]map[string]struct{}{},
		placeRe:        lexicon.StemPattern(lex.PlaceLexemes),
		financialRe:    lexicon.StemPattern(lex.FinancialLexemes),
		interrogatives: map[string]struct{}{},
	}

	for _, it := range models.AllIntents {
		il, ok := lex.Intents[string(it)]
		if !ok {
			continue
		}
		for _, p := range il.Patterns {
			c.patterns[it] = append(c.patterns[it], regexp.MustCompile(p))
		}
		set := make(map[string]struct{}, len(il.Keywords))
		for _, k := range il.Keywords {
			set[k] = struct{}{}
		}
		c.keywords[it] = set
	}

	for _, o := range lex.Overrides {
		it, ok := models.ParseIntentType(o.Intent)
		if !ok {
			continue
		}
		rule := override{intent: it}
		for _, p := range o.Patterns {
			rule.patterns = append(rule.patterns, regexp.MustCompile(p))
		}
		c.overrides = append(c.overrides, rule)
	}

	var stems []string
	for _, s := range lex.StatusLexemes {
		stems = append(stems, s...)
	}
	sort.Strings(stems)
	c.statusRe = lexicon.StemPattern(stems)

	for _, w := range lex.Interrogatives {
		c.interrogatives[w] = struct{}{}
	}
	return c
}

// Classify returns the best intent for the query. It always sets Type.
func (c *Classifier) Classify(text string, tokens []models.Token, entities []models.Entity, hints []models.KnowledgePattern) models.Intent {
	for _, o := range c.overrides {
		for _, re := range o.patterns {
			if re.MatchString(text) {
				return models.Intent{Type: o.intent, Confidence: OverrideConfidence}
			}
		}
	}

	scores := c.Scores(text, tokens, entities, hints)

	var total float64
	for _, it := range models.AllIntents {
		total += scores[it]
	}
	if total <= 0 {
		return c.fallback(tokens)
	}

	ranked := rank(scores)
	top := ranked[0]
	intent := models.Intent{Type: top, Confidence: clamp(scores[top] / total)}
	for _, it := range ranked[1:] {
		if len(intent.SubIntents) == maxSubIntents {
			break
		}
		intent.SubIntents = append(intent.SubIntents, it)
	}
	return intent
}

// Scores returns the non-zero score of every intent on the general path.
func (c *Classifier) Scores(text string, tokens []models.Token, entities []models.Entity, hints []models.KnowledgePattern) map[models.IntentType]float64 {
	scores := map[models.IntentType]float64{}

	for it, res := range c.patterns {
		for _, re := range res {
			if re.MatchString(text) {
				scores[it] += c.weights.Pattern
			}
		}
	}
	for _, tok := range tokens {
		for it, set := range c.keywords {
			if _, ok := set[tok.Text]; ok {
				scores[it] += c.weights.Keyword
			}
		}
	}

	seen := map[models.EntityType]bool{}
	for _, e := range entities {
		if seen[e.Type] {
			continue
		}
		seen[e.Type] = true
		for _, it := range entityBoosts[e.Type] {
			scores[it] += c.weights.EntityBoost
		}
	}

	for _, h := range hints {
		if h.PatternType != models.PatternIntent {
			continue
		}
		if it, ok := models.ParseIntentType(h.Interpretation); ok {
			scores[it] += c.weights.Keyword * h.Confidence
		}
	}

	if _, ok := scores[models.IntentLocation]; ok {
		switch {
		case c.statusRe.MatchString(text) || c.financialRe.MatchString(text):
			delete(scores, models.IntentLocation)
		case !c.placeRe.MatchString(text):
			scores[models.IntentLocation] *= c.weights.LocationDiscount
		}
	}

	for it, s := range scores {
		if s <= 0 {
			delete(scores, it)
		}
	}
	return scores
}

func (c *Classifier) fallback(tokens []models.Token) models.Intent {
	for _, tok := range tokens {
		if tok.Text == "?" {
			return models.Intent{Type: models.IntentStatus, Confidence: DefaultConfidence}
		}
		if _, ok := c.interrogatives[tok.Text]; ok {
			return models.Intent{Type: models.IntentStatus, Confidence: DefaultConfidence}
		}
	}
	return models.Intent{Type: models.IntentListing, Confidence: DefaultConfidence}
}

// rank orders intents by score, breaking ties by declaration order.
func rank(scores map[models.IntentType]float64) []models.IntentType {
	order := make(map[models.IntentType]int, len(models.AllIntents))
	for i, it := range models.AllIntents {
		order[it] = i
	}
	out := make([]models.IntentType, 0, len(scores))
	for it := range scores {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if scores[out[i]] != scores[out[j]] {
			return scores[out[i]] > scores[out[j]]
		}
		return order[out[i]] < order[out[j]]
	})
	return out
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

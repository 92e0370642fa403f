// Package confidence blends intent, entity and temporal signals into one score
// and builds the clarification payload when that score is too low.
package confidence

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/lexicon"
)

const maxExamples = 3

// Clarification questions, in the order they are asked.
const (
	QuestionClient  = "Qual cliente você deseja consultar?"
	QuestionOrder   = "Qual o número do pedido?"
	QuestionInvoice = "Qual o número da nota fiscal?"
	QuestionPeriod  = "Qual período você deseja consultar (por exemplo: hoje, ontem ou últimos 7 dias)?"
	QuestionGeneric = "Pode detalhar o que deseja consultar (cliente, pedido, período ou status)?"
)

type Config struct {
	IntentWeight   float64
	EntityWeight   float64
	TemporalWeight float64
	Threshold      float64
}

func DefaultConfig() Config {
	return Config{IntentWeight: 0.5, EntityWeight: 0.3, TemporalWeight: 0.2, Threshold: 0.6}
}

// Scorer is immutable after construction and safe for concurrent use.
type Scorer struct {
	cfg       Config
	examples  map[string][]string
	clientRe  *regexp.Regexp
	orderRe   *regexp.Regexp
	invoiceRe *regexp.Regexp
}

func New(lex *lexicon.Lexicon, cfg Config) *Scorer {
	if lex == nil {
		lex = lexicon.Default()
	}
	d := DefaultConfig()
	if cfg.IntentWeight == 0 && cfg.EntityWeight == 0 && cfg.TemporalWeight == 0 {
		cfg.IntentWeight, cfg.EntityWeight, cfg.TemporalWeight = d.IntentWeight, d.EntityWeight, d.TemporalWeight
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = d.Threshold
	}
	return &Scorer{
		cfg:       cfg,
		examples:  lex.Examples,
		clientRe:  regexp.MustCompile(lexicon.Alternation(lex.ClientLexemes)),
		orderRe:   regexp.MustCompile(lexicon.Alternation(lex.OrderLexemes)),
		invoiceRe: regexp.MustCompile(lexicon.Alternation(lex.InvoiceLexemes)),
	}
}

// TemporalBonus rewards specific periods: a day over a range over an explicit
// window. The implicit default window earns nothing.
func TemporalBonus(scope models.TemporalScope) float64 {
	switch {
	case scope.Kind == models.TemporalSpecificDate:
		return 1.0
	case scope.Kind == models.TemporalRange:
		return 0.7
	case scope.Kind == models.TemporalRelativeWindow && scope.Explicit:
		return 0.5
	default:
		return 0
	}
}

// Score returns the overall confidence in [0, 1].
func (s *Scorer) Score(intent models.Intent, entities []models.Entity, ctx models.AnalysisContext) float64 {
	var mean float64
	if len(entities) > 0 {
		for _, e := range entities {
			mean += e.Confidence
		}
		mean /= float64(len(entities))
	}
	overall := s.cfg.IntentWeight*intent.Confidence +
		s.cfg.EntityWeight*mean +
		s.cfg.TemporalWeight*TemporalBonus(ctx.TemporalScope)
	return clamp(overall)
}

// NeedsClarification is true below the threshold or when nothing was extracted.
func (s *Scorer) NeedsClarification(score float64, entities []models.Entity) bool {
	return score < s.cfg.Threshold || len(entities) == 0
}

// Clarify lists what was understood, asks for what is missing and offers
// example queries for the detected domain.
func (s *Scorer) Clarify(text string, intent models.Intent, entities []models.Entity, ctx models.AnalysisContext) *models.ClarificationRequest {
	req := &models.ClarificationRequest{
		Understood: s.understood(intent, entities, ctx),
		Questions:  []string{},
		Examples:   s.Examples(ctx.BusinessDomain),
	}

	if s.clientRe.MatchString(text) && !models.HasEntity(entities, models.EntityClient) {
		req.Questions = append(req.Questions, QuestionClient)
	}
	if s.orderRe.MatchString(text) && !models.HasEntity(entities, models.EntityOrder) {
		req.Questions = append(req.Questions, QuestionOrder)
	}
	if s.invoiceRe.MatchString(text) && !models.HasEntity(entities, models.EntityInvoice) {
		req.Questions = append(req.Questions, QuestionInvoice)
	}
	specific := len(req.Questions)
	if !ctx.TemporalScope.Explicit {
		req.Questions = append(req.Questions, QuestionPeriod)
	}
	if len(req.Questions) == 0 || specific == 0 && len(entities) == 0 {
		req.Questions = append(req.Questions, QuestionGeneric)
	}
	return req
}

func (s *Scorer) understood(intent models.Intent, entities []models.Entity, ctx models.AnalysisContext) []string {
	out := []string{fmt.Sprintf("Intenção: %s (%.0f%%)", intent.Type, intent.Confidence*100)}
	for _, e := range entities {
		value := e.RawText
		if e.NormalizedValue != nil {
			value = e.NormalizedValue.Text
		}
		out = append(out, fmt.Sprintf("%s: %s", strings.ToLower(string(e.Type)), value))
	}
	if ctx.TemporalScope.Explicit {
		out = append(out, "Período: "+ctx.TemporalScope.Label)
	}
	if ctx.BusinessDomain != "" && ctx.BusinessDomain != models.DomainGeneral {
		out = append(out, "Domínio: "+string(ctx.BusinessDomain))
	}
	return out
}

// Examples returns up to three example queries for a domain.
func (s *Scorer) Examples(domain models.Domain) []string {
	ex := s.examples[string(domain)]
	if len(ex) == 0 {
		ex = s.examples[string(models.DomainGeneral)]
	}
	if len(ex) > maxExamples {
		ex = ex[:maxExamples]
	}
	out := make([]string, len(ex))
	copy(out, ex)
	return out
}

// Suggestions are hints to sharpen a query that was understood.
func (s *Scorer) Suggestions(entities []models.Entity, ctx models.AnalysisContext) []string {
	var out []string
	if !ctx.TemporalScope.Explicit {
		out = append(out, fmt.Sprintf("Informe um período para refinar a consulta (padrão: %s).", ctx.TemporalScope.Label))
	}
	if !models.HasEntity(entities, models.EntityClient) && ctx.BusinessDomain != models.DomainFreight {
		out = append(out, "Filtre por cliente para resultados mais precisos.")
	}
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

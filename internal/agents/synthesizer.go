package agents

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
)

// FallbackText is returned when no specialist produced usable text.
const FallbackText = "Não encontrei informações suficientes para responder a esta consulta. " +
	"Nenhum especialista retornou dados para os critérios informados; " +
	"tente detalhar o cliente, o período ou o número do pedido."

const (
	DefaultFootnoteThreshold   = 0.8
	DefaultSecondaryConfidence = 0.6
	DefaultExcerptLength       = 280

	insightPrefix = "Insight complementar"
	ellipsis      = "..."
)

// Synthesizer merges validated specialist answers deterministically.
type Synthesizer struct {
	relevance float64
	footnote  float64
	secondary float64
	excerpt   int
}

func NewSynthesizer(relevanceThreshold, footnoteThreshold, secondaryConfidence float64, excerptLength int) *Synthesizer {
	s := &Synthesizer{
		relevance: relevanceThreshold,
		footnote:  footnoteThreshold,
		secondary: secondaryConfidence,
		excerpt:   excerptLength,
	}
	if s.relevance <= 0 {
		s.relevance = DefaultRelevanceThreshold
	}
	if s.footnote <= 0 {
		s.footnote = DefaultFootnoteThreshold
	}
	if s.secondary <= 0 {
		s.secondary = DefaultSecondaryConfidence
	}
	if s.excerpt <= len(ellipsis) {
		s.excerpt = DefaultExcerptLength
	}
	return s
}

// Rank returns the usable responses ordered by mean of relevance and
// confidence, keeping input order among equals.
func (s *Synthesizer) Rank(responses []models.AgentResponse) []models.AgentResponse {
	valid := make([]models.AgentResponse, 0, len(responses))
	for _, r := range responses {
		if r.Usable(s.relevance) {
			valid = append(valid, r)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return score(valid[i]) > score(valid[j])
	})
	return valid
}

func score(r models.AgentResponse) float64 {
	return (r.Relevance + r.Confidence) / 2
}

// Synthesize builds the final answer. The text is never empty.
func (s *Synthesizer) Synthesize(responses []models.AgentResponse, v models.ValidationResult) models.ConvergedResponse {
	ranked := s.Rank(responses)
	if len(ranked) == 0 {
		return models.ConvergedResponse{
			Text:               FallbackText,
			ContributingAgents: []string{},
			Insufficient:       true,
		}
	}

	base := ranked[0]
	var b strings.Builder
	b.WriteString(base.Text.OrElse(FallbackText))
	contributors := []string{base.AgentID}

	for _, r := range ranked[1:] {
		if r.Confidence <= s.secondary {
			continue
		}
		text, ok := r.Text.Get()
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n\n%s (%s): %s", insightPrefix, r.AgentID, Excerpt(text, s.excerpt))
		contributors = append(contributors, r.AgentID)
	}

	out := models.ConvergedResponse{ContributingAgents: contributors}
	if v.Score < s.footnote {
		out.ValidationNote = validationNote(v)
		b.WriteString("\n\n")
		b.WriteString(out.ValidationNote)
	}
	out.Text = b.String()
	return out
}

func validationNote(v models.ValidationResult) string {
	cats := make([]string, 0, len(v.Inconsistencies))
	for _, inc := range v.Inconsistencies {
		cats = append(cats, string(inc.Category))
	}
	note := fmt.Sprintf("Observação: validação cruzada com pontuação %.2f", v.Score)
	if len(cats) > 0 {
		note += " (inconsistências: " + strings.Join(cats, ", ") + ")"
	}
	return note + "; confira os dados antes de tomar decisões."
}

// Excerpt cuts text to at most max runes, at a word boundary when possible,
// ending with "...".
func Excerpt(text string, max int) string {
	if max <= len(ellipsis) {
		max = DefaultExcerptLength
	}
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	cut := runes[:max-len(ellipsis)]
	for i := len(cut) - 1; i > 0; i-- {
		if unicode.IsSpace(cut[i]) {
			cut = cut[:i]
			break
		}
	}
	return strings.TrimRightFunc(string(cut), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) + ellipsis
}

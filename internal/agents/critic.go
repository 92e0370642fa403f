package agents

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
)

const (
	DefaultCriticPenalty     = 0.2
	DefaultApprovalThreshold = 0.7

	minDateMentions  = 3
	maxDistinctShare = 0.5
)

var (
	datePattern = regexp.MustCompile(`\b(?:\d{1,2}/\d{1,2}(?:/\d{2,4})?|\d{4}-\d{2}-\d{2})\b`)

	noDataPattern = regexp.MustCompile(`(?i)(nenhum registro|nenhum dado|sem dados|sem registros|n[aã]o (?:foram |foi )?encontrad|n[aã]o h[aá] dados|no data)`)
	dataPattern   = regexp.MustCompile(`(?i)(\bencontrad[oa]s?\b|\bidentificad[oa]s?\b|\bregistrad[oa]s?\b|\btotal de\b|\d+ (?:entregas|pedidos|embarques|notas|fretes))`)
)

// Critic cross-checks the specialists' answers against each other.
type Critic struct {
	penalty  float64
	approval float64
}

func NewCritic(penalty, approval float64) *Critic {
	if penalty <= 0 {
		penalty = DefaultCriticPenalty
	}
	if approval <= 0 {
		approval = DefaultApprovalThreshold
	}
	return &Critic{penalty: penalty, approval: approval}
}

// Validate inspects every answered response with text. Each flagged category
// costs one penalty, however many times it occurs.
func (c *Critic) Validate(responses []models.AgentResponse) models.ValidationResult {
	var texts []answered
	for _, r := range responses {
		if r.Err != nil {
			continue
		}
		if t, ok := r.Text.Get(); ok {
			texts = append(texts, answered{agent: r.AgentID, text: t})
		}
	}

	var found []models.Inconsistency
	if inc, ok := dateConsistency(texts); ok {
		found = append(found, inc)
	}
	if inc, ok := dataPresence(texts); ok {
		found = append(found, inc)
	}

	score := 1.0 - c.penalty*float64(len(found))
	if score < 0 {
		score = 0
	}
	if found == nil {
		found = []models.Inconsistency{}
	}
	return models.ValidationResult{
		Score:           score,
		Inconsistencies: found,
		Approved:        score >= c.approval,
	}
}

type answered struct {
	agent string
	text  string
}

func dateConsistency(texts []answered) (models.Inconsistency, bool) {
	total := 0
	distinct := map[string]bool{}
	for _, a := range texts {
		for _, d := range datePattern.FindAllString(a.text, -1) {
			total++
			distinct[d] = true
		}
	}
	if total < minDateMentions || float64(len(distinct))/float64(total) <= maxDistinctShare {
		return models.Inconsistency{}, false
	}
	dates := make([]string, 0, len(distinct))
	for d := range distinct {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return models.Inconsistency{
		Category: models.InconsistencyDateMentions,
		Detail:   fmt.Sprintf("%d datas distintas em %d menções: %s", len(distinct), total, strings.Join(dates, ", ")),
	}, true
}

func dataPresence(texts []answered) (models.Inconsistency, bool) {
	var withData, without []string
	for _, a := range texts {
		switch {
		case noDataPattern.MatchString(a.text):
			without = append(without, a.agent)
		case dataPattern.MatchString(a.text):
			withData = append(withData, a.agent)
		}
	}
	if len(withData) == 0 || len(without) == 0 {
		return models.Inconsistency{}, false
	}
	return models.Inconsistency{
		Category: models.InconsistencyDataPresence,
		Detail:   fmt.Sprintf("com dados: %s; sem dados: %s", strings.Join(withData, ", "), strings.Join(without, ", ")),
		Agents:   append(append([]string{}, withData...), without...),
	}, true
}

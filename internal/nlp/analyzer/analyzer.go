// Package analyzer derives the temporal scope, implicit filters, business
// domain and urgency of a normalized query.
package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/lexicon"
)

const (
	DefaultWindowDays = 30
	dateLayout        = "2006-01-02"
)

var (
	lastNPattern      = regexp.MustCompile(`\bultim[oa]s (\d{1,3}) (dias?|semanas?|mes(?:es)?)\b`)
	lastWeekPattern   = regexp.MustCompile(`\bultima semana\b`)
	lastMonthPattern  = regexp.MustCompile(`\bultimo mes\b`)
	thisMonthPattern  = regexp.MustCompile(`\b(?:este|neste|deste|esse|nesse|desse) mes\b|\bmes atual\b`)
	thisWeekPattern   = regexp.MustCompile(`\b(?:esta|nesta|desta|essa|nessa|dessa) semana\b`)
	orderedDomains    = []models.Domain{models.DomainDeliveries, models.DomainFreight, models.DomainOrders, models.DomainShipments, models.DomainFinance}
	orderedUrgencies  = []models.Urgency{models.UrgencyCritical, models.UrgencyHigh, models.UrgencyMedium}
	statusFilterOrder = []string{"delayed", "completed"}
)

type stemSet struct {
	stems []*regexp.Regexp
}

func newStemSet(stems []string) stemSet {
	s := stemSet{}
	for _, st := range stems {
		s.stems = append(s.stems, regexp.MustCompile(`\b`+regexp.QuoteMeta(st)))
	}
	return s
}

// hits counts distinct stems present in text.
func (s stemSet) hits(text string) int {
	n := 0
	for _, re := range s.stems {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}

// Analyzer is immutable after construction and safe for concurrent use.
type Analyzer struct {
	now          func() time.Time
	windowDays   int
	months       map[string]int
	monthPattern *regexp.Regexp
	domains      map[models.Domain]stemSet
	urgency      map[models.Urgency]*regexp.Regexp
	statusFilter map[string]*regexp.Regexp
}

type Option func(*Analyzer)

// WithClock overrides the clock used for relative windows.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithDefaultWindow sets the rolling window used when the query names no period.
func WithDefaultWindow(days int) Option {
	return func(a *Analyzer) {
		if days > 0 {
			a.windowDays = days
		}
	}
}

func New(lex *lexicon.Lexicon, opts ...Option) *Analyzer {
	if lex == nil {
		lex = lexicon.Default()
	}
	a := &Analyzer{
		now:          time.Now,
		windowDays:   DefaultWindowDays,
		months:       lex.Months,
		domains:      map[models.Domain]stemSet{},
		urgency:      map[models.Urgency]*regexp.Regexp{},
		statusFilter: map[string]*regexp.Regexp{},
	}

	monthNames := make([]string, 0, len(lex.Months))
	for name := range lex.Months {
		monthNames = append(monthNames, name)
	}
	sort.Strings(monthNames)
	// \b is ASCII-only in RE2, so "março" needs an explicit right boundary.
	a.monthPattern = regexp.MustCompile(`\b(` + strings.Join(monthNames, "|") + `)(?: de (\d{4}))?(?:[^\p{L}\p{N}]|$)`)

	for _, d := range orderedDomains {
		a.domains[d] = newStemSet(lex.Domains[string(d)])
	}
	for _, u := range orderedUrgencies {
		if words := lex.Urgency[string(u)]; len(words) > 0 {
			a.urgency[u] = regexp.MustCompile(lexicon.Alternation(words))
		}
	}
	for _, k := range statusFilterOrder {
		if stems := lex.StatusLexemes[k]; len(stems) > 0 {
			a.statusFilter[k] = lexicon.StemPattern(stems)
		}
	}

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze builds the context for one query. Filters in qc take precedence.
// Learned hints only fill what the text left open: a client alias when no
// client was extracted, and a domain when keywords give no single winner.
func (a *Analyzer) Analyze(text string, entities []models.Entity, qc *models.QueryContext, hints []models.KnowledgePattern) models.AnalysisContext {
	ctx := models.AnalysisContext{
		TemporalScope:   a.TemporalScope(text, entities),
		ImplicitFilters: a.Filters(text, entities),
		BusinessDomain:  a.Domain(text),
		UrgencyLevel:    a.Urgency(text),
	}
	if _, ok := ctx.ImplicitFilters[models.FilterClient]; !ok {
		if alias, ok := strongestHint(hints, models.PatternClientAlias); ok {
			ctx.ImplicitFilters[models.FilterClient] = alias.Interpretation
		}
	}
	if qc != nil {
		for k, v := range qc.Filters {
			ctx.ImplicitFilters[k] = v
		}
		if ctx.BusinessDomain == models.DomainGeneral && qc.DomainHint != "" {
			ctx.BusinessDomain = qc.DomainHint
		}
	}
	if ctx.BusinessDomain == models.DomainGeneral {
		ctx.BusinessDomain = a.learnedDomain(text, hints)
	}
	return ctx
}

// strongestHint returns the first usable hint of a type; hints arrive ranked.
func strongestHint(hints []models.KnowledgePattern, patternType string) (models.KnowledgePattern, bool) {
	for _, h := range hints {
		if h.PatternType == patternType && h.Confidence >= models.MinHintConfidence && h.Interpretation != "" {
			return h, true
		}
	}
	return models.KnowledgePattern{}, false
}

// learnedDomain resolves a general query from domain hints. A hint may only
// pick one of the domains tied at the top keyword score, or any domain when
// no keyword matched.
func (a *Analyzer) learnedDomain(text string, hints []models.KnowledgePattern) models.Domain {
	scores := a.DomainScores(text)
	top := 0
	for _, s := range scores {
		if s > top {
			top = s
		}
	}
	for _, h := range hints {
		if h.PatternType != models.PatternDomain || h.Confidence < models.MinHintConfidence {
			continue
		}
		d := models.Domain(h.Interpretation)
		if score, known := scores[d]; known && score == top {
			return d
		}
	}
	return models.DomainGeneral
}

func (a *Analyzer) today() time.Time {
	now := a.now()
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// TemporalScope resolves the period of the query; the first matching rule wins:
// dated entities, explicit relative windows, named months, then the default window.
func (a *Analyzer) TemporalScope(text string, entities []models.Entity) models.TemporalScope {
	if scope, ok := a.fromDates(entities); ok {
		return scope
	}
	if scope, ok := a.relativeWindow(text); ok {
		return scope
	}
	if scope, ok := a.namedMonth(text); ok {
		return scope
	}
	return a.DefaultScope()
}

// DefaultScope is the implicit rolling window ending today.
func (a *Analyzer) DefaultScope() models.TemporalScope {
	today := a.today()
	return models.TemporalScope{
		Kind:  models.TemporalRelativeWindow,
		Start: today.AddDate(0, 0, -a.windowDays),
		End:   today,
		Label: fmt.Sprintf("ultimos %d dias", a.windowDays),
	}
}

func (a *Analyzer) fromDates(entities []models.Entity) (models.TemporalScope, bool) {
	seen := map[string]time.Time{}
	for _, e := range entities {
		if e.Type != models.EntityDate || e.NormalizedValue == nil || e.NormalizedValue.Date.IsZero() {
			continue
		}
		seen[e.NormalizedValue.Text] = e.NormalizedValue.Date
	}
	if len(seen) == 0 {
		return models.TemporalScope{}, false
	}

	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	first, last := dates[0], dates[len(dates)-1]
	if len(dates) == 1 {
		return models.TemporalScope{
			Kind: models.TemporalSpecificDate, Start: first, End: first,
			Label: first.Format(dateLayout), Explicit: true,
		}, true
	}
	return models.TemporalScope{
		Kind: models.TemporalRange, Start: first, End: last,
		Label: first.Format(dateLayout) + ".." + last.Format(dateLayout), Explicit: true,
	}, true
}

func (a *Analyzer) relativeWindow(text string) (models.TemporalScope, bool) {
	today := a.today()
	window := func(start time.Time, label string) (models.TemporalScope, bool) {
		return models.TemporalScope{
			Kind: models.TemporalRelativeWindow, Start: start, End: today, Label: label, Explicit: true,
		}, true
	}

	if m := lastNPattern.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			switch {
			case strings.HasPrefix(m[2], "dia"):
				return window(today.AddDate(0, 0, -n), m[0])
			case strings.HasPrefix(m[2], "semana"):
				return window(today.AddDate(0, 0, -7*n), m[0])
			default:
				return window(today.AddDate(0, -n, 0), m[0])
			}
		}
	}
	if m := lastWeekPattern.FindString(text); m != "" {
		return window(today.AddDate(0, 0, -7), m)
	}
	if m := lastMonthPattern.FindString(text); m != "" {
		return window(today.AddDate(0, -1, 0), m)
	}
	if m := thisWeekPattern.FindString(text); m != "" {
		offset := (int(today.Weekday()) + 6) % 7
		return window(today.AddDate(0, 0, -offset), m)
	}
	if m := thisMonthPattern.FindString(text); m != "" {
		return window(time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()), m)
	}
	return models.TemporalScope{}, false
}

// namedMonth resolves "outubro" or "outubro de 2024". Without a year, a month
// later than the current one refers to the previous year.
func (a *Analyzer) namedMonth(text string) (models.TemporalScope, bool) {
	m := a.monthPattern.FindStringSubmatch(text)
	if m == nil {
		return models.TemporalScope{}, false
	}
	month, ok := a.months[m[1]]
	if !ok {
		return models.TemporalScope{}, false
	}
	today := a.today()
	year := today.Year()
	if m[2] != "" {
		year, _ = strconv.Atoi(m[2])
	} else if time.Month(month) > today.Month() {
		year--
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, today.Location())
	end := start.AddDate(0, 1, -1)
	return models.TemporalScope{
		Kind: models.TemporalRange, Start: start, End: end,
		Label: fmt.Sprintf("%s de %d", m[1], year), Explicit: true,
	}, true
}

// Filters derives implicit filters from urgency and status words and from
// client and place entities.
func (a *Analyzer) Filters(text string, entities []models.Entity) map[string]string {
	filters := map[string]string{}

	switch a.Urgency(text) {
	case models.UrgencyCritical, models.UrgencyHigh:
		filters[models.FilterPriority] = "high"
	}

	for _, k := range statusFilterOrder {
		if re, ok := a.statusFilter[k]; ok && re.MatchString(text) {
			filters[models.FilterStatus] = k
			break
		}
	}

	if e, ok := models.FirstEntity(entities, models.EntityClient); ok && e.NormalizedValue != nil {
		filters[models.FilterClient] = e.NormalizedValue.Text
	}
	if e, ok := models.FirstEntity(entities, models.EntityPlace); ok && e.NormalizedValue != nil {
		filters[models.FilterPlace] = e.NormalizedValue.Text
	}
	return filters
}

// Domain picks the domain with most distinct keyword stems. A tie for the top
// score, or no hit at all, yields general.
func (a *Analyzer) Domain(text string) models.Domain {
	scores := a.DomainScores(text)
	best, bestScore, tie := models.DomainGeneral, 0, false
	for _, d := range orderedDomains {
		score := scores[d]
		switch {
		case score > bestScore:
			best, bestScore, tie = d, score, false
		case score == bestScore && score > 0:
			tie = true
		}
	}
	if bestScore == 0 || tie {
		return models.DomainGeneral
	}
	return best
}

// DomainScores reports the distinct stem hits per domain.
func (a *Analyzer) DomainScores(text string) map[models.Domain]int {
	out := make(map[models.Domain]int, len(orderedDomains))
	for _, d := range orderedDomains {
		out[d] = a.domains[d].hits(text)
	}
	return out
}

// Urgency returns the first matching level of the severity ladder.
func (a *Analyzer) Urgency(text string) models.Urgency {
	for _, u := range orderedUrgencies {
		if re, ok := a.urgency[u]; ok && re.MatchString(text) {
			return u
		}
	}
	return models.UrgencyNormal
}

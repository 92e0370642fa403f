// Package extractor finds typed entities in normalized query text.
package extractor

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/lexicon"
)

// Base confidence per match class.
const (
	ConfidenceDictionary = 0.95
	ConfidenceLexeme     = 0.9
	ConfidenceAnchored   = 0.85
	ConfidenceRegex      = 0.75
	ConfidenceBareNumber = 0.6
)

const dateLayout = "2006-01-02"

var (
	relativeDayPattern = regexp.MustCompile(`\b(anteontem|ontem|hoje|amanha)\b`)
	slashDatePattern   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2}|\d{4}))?\b`)
	dayOfMonthPattern  = regexp.MustCompile(`\bdia (\d{1,2})\b`)
	currencyPattern    = regexp.MustCompile(`r\$ ?(\d{1,3}(?:\.\d{3})+(?:,\d{1,2})?|\d+(?:,\d{1,2})?)`)
	reaisPattern       = regexp.MustCompile(`\b(\d{1,3}(?:\.\d{3})+(?:,\d{1,2})?|\d+(?:,\d{1,2})?) reais\b`)
	percentPattern     = regexp.MustCompile(`\b(\d+(?:[.,]\d+)?) ?(?:%|por cento\b)`)
	unitPattern        = regexp.MustCompile(`\b(\d+(?:[.,]\d+)?) ?(kg|quilos?|toneladas?|caixas?|volumes?|unidades?|paletes?|pallets?|itens|m3)\b`)
	bareNumberPattern  = regexp.MustCompile(`\b\d+\b`)
	orderPattern       = regexp.MustCompile(`\bpedidos? (?:n(?:umero)? ?)?#?(\d{3,})\b`)
	invoicePattern     = regexp.MustCompile(`\bnotas? fisca(?:l|is) (?:n(?:umero)? ?)?#?(\d{3,})\b`)
	clientNamePattern  = regexp.MustCompile(`\bcliente ([\p{L}\p{N}]{3,})`)

	relativeDayOffset = map[string]int{"anteontem": -2, "ontem": -1, "hoje": 0, "amanha": 1}
)

// Extractor is immutable after construction and safe for concurrent use.
type Extractor struct {
	lex         *lexicon.Lexicon
	now         func() time.Time
	clientDict  *regexp.Regexp
	placeDict   *regexp.Regexp
	statePrep   *regexp.Regexp
	statusRules []statusRule
}

type statusRule struct {
	value   string
	pattern *regexp.Regexp
}

type Option func(*Extractor)

// WithClock overrides the clock used to resolve relative dates.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

func New(lex *lexicon.Lexicon, opts ...Option) *Extractor {
	if lex == nil {
		lex = lexicon.Default()
	}
	e := &Extractor{
		lex:        lex,
		now:        time.Now,
		clientDict: dictionaryPattern(lexicon.SortedKeys(lex.Clients)),
		placeDict:  dictionaryPattern(lexicon.SortedKeys(lex.Places)),
		statePrep:  regexp.MustCompile(`\b(?:em|para|de|no|na|do|da) (` + strings.Join(lex.States, "|") + `)\b`),
	}

	keys := make([]string, 0, len(lex.StatusLexemes))
	for k := range lex.StatusLexemes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stems := lex.StatusLexemes[k]
		quoted := make([]string, len(stems))
		for i, s := range stems {
			quoted[i] = regexp.QuoteMeta(s)
		}
		e.statusRules = append(e.statusRules, statusRule{
			value:   k,
			pattern: regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\p{L}*`),
		})
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

func dictionaryPattern(keys []string) *regexp.Regexp {
	if len(keys) == 0 {
		return nil
	}
	return regexp.MustCompile(lexicon.Alternation(keys))
}

// Extract returns non-overlapping entities ordered by offset. Spans index the
// given normalized text.
func (e *Extractor) Extract(text string) []models.Entity {
	if strings.TrimSpace(text) == "" {
		return []models.Entity{}
	}

	var candidates []models.Entity
	candidates = append(candidates, e.dates(text)...)
	candidates = append(candidates, e.money(text)...)
	candidates = append(candidates, e.percentages(text)...)
	candidates = append(candidates, e.quantities(text)...)
	candidates = append(candidates, e.references(text)...)
	candidates = append(candidates, e.clients(text)...)
	candidates = append(candidates, e.places(text)...)
	candidates = append(candidates, e.statuses(text)...)

	return Resolve(candidates)
}

// Resolve keeps a non-overlapping subset of candidates. Candidates are scanned
// by start offset; one that overlaps the last accepted entity replaces it only
// with strictly higher confidence.
func Resolve(candidates []models.Entity) []models.Entity {
	sorted := make([]models.Entity, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.Span.Len() > b.Span.Len()
	})

	accepted := make([]models.Entity, 0, len(sorted))
	cursor := 0
	for _, c := range sorted {
		if len(accepted) == 0 || c.Span.Start >= cursor {
			accepted = append(accepted, c)
			cursor = c.Span.End
			continue
		}
		last := len(accepted) - 1
		if c.Confidence > accepted[last].Confidence {
			accepted[last] = c
			cursor = c.Span.End
		}
	}
	return accepted
}

func (e *Extractor) today() time.Time {
	now := e.now()
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

func newEntity(t models.EntityType, text string, start, end int, conf float64, v *models.Value) models.Entity {
	return models.Entity{
		Type:            t,
		RawText:         text[start:end],
		Span:            models.Span{Start: start, End: end},
		NormalizedValue: v,
		Confidence:      conf,
	}
}

func dateValue(d time.Time) *models.Value {
	return &models.Value{Kind: models.ValueDate, Text: d.Format(dateLayout), Date: d}
}

func (e *Extractor) dates(text string) []models.Entity {
	var out []models.Entity
	today := e.today()

	for _, m := range relativeDayPattern.FindAllStringSubmatchIndex(text, -1) {
		word := text[m[2]:m[3]]
		d := today.AddDate(0, 0, relativeDayOffset[word])
		out = append(out, newEntity(models.EntityDate, text, m[0], m[1], ConfidenceDictionary, dateValue(d)))
	}

	for _, m := range slashDatePattern.FindAllStringSubmatchIndex(text, -1) {
		day, _ := strconv.Atoi(text[m[2]:m[3]])
		month, _ := strconv.Atoi(text[m[4]:m[5]])
		year := today.Year()
		if m[6] >= 0 {
			year, _ = strconv.Atoi(text[m[6]:m[7]])
			if year < 100 {
				year += 2000
			}
		}
		var v *models.Value
		if d, ok := calendarDate(year, month, day, today.Location()); ok {
			v = dateValue(d)
		}
		out = append(out, newEntity(models.EntityDate, text, m[0], m[1], ConfidenceRegex, v))
	}

	for _, m := range dayOfMonthPattern.FindAllStringSubmatchIndex(text, -1) {
		day, _ := strconv.Atoi(text[m[2]:m[3]])
		var v *models.Value
		if d, ok := calendarDate(today.Year(), int(today.Month()), day, today.Location()); ok {
			v = dateValue(d)
		}
		out = append(out, newEntity(models.EntityDate, text, m[0], m[1], ConfidenceRegex, v))
	}
	return out
}

// calendarDate rejects days time.Date would silently roll over.
func calendarDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	return d, true
}

func (e *Extractor) money(text string) []models.Entity {
	var out []models.Entity
	for _, re := range []*regexp.Regexp{currencyPattern, reaisPattern} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			var v *models.Value
			if amount, err := ParseDecimal(text[m[2]:m[3]]); err == nil {
				v = &models.Value{Kind: models.ValueDecimal, Text: strconv.FormatFloat(amount, 'f', 2, 64), Number: amount}
			}
			out = append(out, newEntity(models.EntityMoney, text, m[0], m[1], ConfidenceAnchored, v))
		}
	}
	return out
}

// ParseDecimal reads a pt-BR number: "." groups thousands, "," marks decimals.
func ParseDecimal(s string) (float64, error) {
	clean := strings.ReplaceAll(s, ".", "")
	clean = strings.Replace(clean, ",", ".", 1)
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing decimal %q: %w", s, err)
	}
	return f, nil
}

func (e *Extractor) percentages(text string) []models.Entity {
	var out []models.Entity
	for _, m := range percentPattern.FindAllStringSubmatchIndex(text, -1) {
		var v *models.Value
		raw := strings.Replace(text[m[2]:m[3]], ",", ".", 1)
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			ratio := f / 100
			v = &models.Value{Kind: models.ValueFloat, Text: strconv.FormatFloat(ratio, 'f', -1, 64), Number: ratio}
		}
		out = append(out, newEntity(models.EntityPercentage, text, m[0], m[1], ConfidenceAnchored, v))
	}
	return out
}

func (e *Extractor) quantities(text string) []models.Entity {
	var out []models.Entity
	for _, m := range unitPattern.FindAllStringSubmatchIndex(text, -1) {
		var v *models.Value
		raw := strings.Replace(text[m[2]:m[3]], ",", ".", 1)
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			v = &models.Value{Kind: models.ValueFloat, Text: raw + " " + text[m[4]:m[5]], Number: f}
		}
		out = append(out, newEntity(models.EntityQuantity, text, m[0], m[1], ConfidenceRegex, v))
	}
	for _, m := range bareNumberPattern.FindAllStringIndex(text, -1) {
		var v *models.Value
		if n, err := strconv.Atoi(text[m[0]:m[1]]); err == nil {
			v = &models.Value{Kind: models.ValueInteger, Text: strconv.Itoa(n), Number: float64(n)}
		}
		out = append(out, newEntity(models.EntityQuantity, text, m[0], m[1], ConfidenceBareNumber, v))
	}
	return out
}

func (e *Extractor) references(text string) []models.Entity {
	var out []models.Entity
	for _, r := range []struct {
		t  models.EntityType
		re *regexp.Regexp
	}{
		{models.EntityOrder, orderPattern},
		{models.EntityInvoice, invoicePattern},
	} {
		for _, m := range r.re.FindAllStringSubmatchIndex(text, -1) {
			id := text[m[2]:m[3]]
			v := &models.Value{Kind: models.ValueText, Text: id}
			out = append(out, newEntity(r.t, text, m[0], m[1], ConfidenceAnchored, v))
		}
	}
	return out
}

func (e *Extractor) clients(text string) []models.Entity {
	var out []models.Entity
	if e.clientDict != nil {
		for _, m := range e.clientDict.FindAllStringIndex(text, -1) {
			name := e.lex.Clients[text[m[0]:m[1]]]
			out = append(out, newEntity(models.EntityClient, text, m[0], m[1], ConfidenceDictionary,
				&models.Value{Kind: models.ValueText, Text: name}))
		}
	}
	for _, m := range clientNamePattern.FindAllStringSubmatchIndex(text, -1) {
		word := text[m[2]:m[3]]
		if e.lex.IsStopWord(word) || e.lex.Known(word) || isNumeric(word) {
			continue
		}
		out = append(out, newEntity(models.EntityClient, text, m[2], m[3], ConfidenceRegex,
			&models.Value{Kind: models.ValueText, Text: titleCase(word)}))
	}
	return out
}

func (e *Extractor) places(text string) []models.Entity {
	var out []models.Entity
	if e.placeDict != nil {
		for _, m := range e.placeDict.FindAllStringIndex(text, -1) {
			name := e.lex.Places[text[m[0]:m[1]]]
			out = append(out, newEntity(models.EntityPlace, text, m[0], m[1], ConfidenceDictionary,
				&models.Value{Kind: models.ValueText, Text: name}))
		}
	}
	if len(e.lex.States) > 0 {
		for _, m := range e.statePrep.FindAllStringSubmatchIndex(text, -1) {
			uf := text[m[2]:m[3]]
			out = append(out, newEntity(models.EntityPlace, text, m[2], m[3], ConfidenceRegex,
				&models.Value{Kind: models.ValueText, Text: strings.ToUpper(uf)}))
		}
	}
	return out
}

func (e *Extractor) statuses(text string) []models.Entity {
	var out []models.Entity
	for _, rule := range e.statusRules {
		for _, m := range rule.pattern.FindAllStringIndex(text, -1) {
			out = append(out, newEntity(models.EntityStatus, text, m[0], m[1], ConfidenceLexeme,
				&models.Value{Kind: models.ValueText, Text: rule.value}))
		}
	}
	return out
}

// titleCase builds a Caser per call since Casers keep state.
func titleCase(s string) string {
	return cases.Title(language.BrazilianPortuguese).String(s)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Package normalizer cleans raw query text and splits it into tokens.
package normalizer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/lexicon"
)

const combiningCedilla = '\u0327'

var (
	wordPattern  = regexp.MustCompile(`[\p{L}\p{N}]+`)
	tokenPattern = regexp.MustCompile(`r\$|\d+(?:[.,/]\d+)*%?|[\p{L}\p{N}]+|[^\s\p{L}\p{N}]`)
)

// Normalizer is stateless and safe for concurrent use.
type Normalizer struct {
	lex *lexicon.Lexicon
}

func New(lex *lexicon.Lexicon) *Normalizer {
	if lex == nil {
		lex = lexicon.Default()
	}
	return &Normalizer{lex: lex}
}

// Normalize lower-cases text, folds accents (the cedilla survives), rewrites
// known typos and abbreviations word by word and collapses whitespace.
// It is idempotent and never fails.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}
	s := strings.ToLower(strings.ToValidUTF8(text, " "))
	s = Fold(s)
	s = wordPattern.ReplaceAllStringFunc(s, n.substitute)
	// a kept cedilla can land after an expanded word and compose with it
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

func (n *Normalizer) substitute(word string) string {
	if fixed, ok := n.lex.Typos[word]; ok {
		word = fixed
	}
	if expanded, ok := n.lex.Abbreviations[word]; ok {
		word = expanded
	}
	return word
}

// Tokenize splits normalized text into words, numbers and punctuation and drops
// stop-words. Index is the position in the returned slice.
func (n *Normalizer) Tokenize(text string) []models.Token {
	raw := tokenPattern.FindAllString(text, -1)
	tokens := make([]models.Token, 0, len(raw))
	for _, t := range raw {
		if n.lex.IsStopWord(t) {
			continue
		}
		tokens = append(tokens, models.Token{Text: t, Index: len(tokens)})
	}
	return tokens
}

// Fold strips combining marks except the cedilla.
func Fold(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.Predicate(func(r rune) bool {
			return unicode.Is(unicode.Mn, r) && r != combiningCedilla
		})),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Texts returns the token texts.
func Texts(tokens []models.Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}

package lexicon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Parses(t *testing.T) {
	lex, err := Load()
	require.NoError(t, err)
	require.NotNil(t, lex)

	assert.Same(t, lex, Default())
	assert.Equal(t, "Assai", lex.Clients["assai"])
	assert.Equal(t, 3, lex.Months["março"])
	assert.Len(t, lex.Domains, 5)
	assert.NotEmpty(t, lex.Examples["general"])
}

func TestLexicon_Lookups(t *testing.T) {
	lex := Default()

	assert.True(t, lex.IsStopWord("do"))
	assert.False(t, lex.IsStopWord("entregas"))

	canon, ok := lex.Canonical("remessas")
	assert.True(t, ok)
	assert.Equal(t, "entregas", canon)

	_, ok = lex.Canonical("entregas")
	assert.False(t, ok)

	assert.True(t, lex.Known("atrasadas"))
	assert.True(t, lex.Known("quantas"))
	assert.False(t, lex.Known("abacaxi"))
}

func TestParse_RejectsChainedSubstitution(t *testing.T) {
	_, err := Parse([]byte(`
typos:
  pedio: ped
abbreviations:
  ped: pedido
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rewritable")
}

func TestParse_RejectsIdentity(t *testing.T) {
	_, err := Parse([]byte("typos:\n  frete: frete\n"))
	require.Error(t, err)
}

func TestParse_RejectsBadPattern(t *testing.T) {
	_, err := Parse([]byte(`
intents:
  count:
    patterns: ['(unclosed']
`))
	require.Error(t, err)
}

func TestSortedKeys_LongestFirst(t *testing.T) {
	keys := SortedKeys(map[string]string{"sao": "x", "sao paulo": "y", "rio": "z"})
	assert.Equal(t, []string{"sao paulo", "rio", "sao"}, keys)
}

func TestStemPattern(t *testing.T) {
	re := StemPattern([]string{"atrasad", "pendente"})
	assert.True(t, re.MatchString("entregas atrasadas"))
	assert.False(t, re.MatchString("desatrasado"))

	empty := StemPattern(nil)
	assert.False(t, empty.MatchString("qualquer coisa"))
}

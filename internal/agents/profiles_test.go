package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/lexicon"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/normalizer"
)

func TestDefaultProfiles(t *testing.T) {
	profiles, err := DefaultProfiles()
	require.NoError(t, err)
	require.Len(t, profiles, 5)

	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
		assert.NotEmpty(t, p.SystemPrompt, p.ID)
		assert.NotEmpty(t, p.KPIs, p.ID)
		assert.NotEmpty(t, p.Examples, p.ID)
	}
	assert.Equal(t, []string{"deliveries", "freight", "orders", "shipments", "finance"}, ids)
	assert.Equal(t, models.DomainDeliveries, profiles[0].Domain)
}

func TestProfile_Relevance(t *testing.T) {
	profiles, err := DefaultProfiles()
	require.NoError(t, err)
	deliveries, freight, orders := profiles[0], profiles[1], profiles[2]

	text := "quantas entregas do assai estao atrasadas hoje ?"
	assert.InDelta(t, 2.0/6.0, deliveries.Relevance(text), 1e-9)
	assert.Equal(t, 0.0, freight.Relevance(text))

	assert.InDelta(t, 2.0/6.0, orders.Relevance("pedidos em separaçao"), 1e-9)
	assert.Equal(t, 0.0, deliveries.Relevance(""))

	// alternatives in one entry count once
	assert.InDelta(t, 1.0/6.0, freight.Relevance("custo preco valor"), 1e-9)
	assert.InDelta(t, 2.0/6.0, freight.Relevance("transportadora com menor cotaçao"), 1e-9)
}

func TestProfile_ExamplesReachOwnSpecialist(t *testing.T) {
	profiles, err := DefaultProfiles()
	require.NoError(t, err)
	lex := lexicon.Default()
	n := normalizer.New(lex)

	for _, p := range profiles {
		queries := append(append([]string{}, p.Examples...), lex.Examples[string(p.Domain)]...)
		require.NotEmpty(t, queries, p.ID)
		for _, q := range queries {
			assert.GreaterOrEqual(t, p.Relevance(n.Normalize(q)), DefaultRelevanceThreshold, "%s: %q", p.ID, q)
		}
	}

	for _, q := range lex.Examples[string(models.DomainGeneral)] {
		text := n.Normalize(q)
		reached := false
		for _, p := range profiles {
			if p.Relevance(text) >= DefaultRelevanceThreshold {
				reached = true
			}
		}
		assert.True(t, reached, q)
	}
}

func TestProfile_WeakTermAloneIsNotRelevant(t *testing.T) {
	profiles, err := DefaultProfiles()
	require.NoError(t, err)
	byID := map[string]Profile{}
	for _, p := range profiles {
		byID[p.ID] = p
	}

	tests := []struct {
		profile string
		text    string
	}{
		{"finance", "resumo de setembro"},
		{"orders", "qual o status"},
		{"shipments", "saiu hoje"},
		{"freight", "qual o valor"},
		{"deliveries", "pendente"},
	}
	for _, tt := range tests {
		t.Run(tt.profile, func(t *testing.T) {
			assert.Less(t, byID[tt.profile].Relevance(tt.text), DefaultRelevanceThreshold)
		})
	}
}

func TestParseProfiles_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "specialists: ["},
		{"empty", "specialists: []"},
		{"missing id", "specialists:\n  - keywords: [frete]\n"},
		{"no keywords", "specialists:\n  - id: a\n"},
		{"empty keyword", "specialists:\n  - id: a\n    keywords: [\"|\"]\n"},
		{"duplicate", "specialists:\n  - id: a\n    keywords: [x]\n  - id: a\n    keywords: [y]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfiles([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

package extractor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/normalizer"
)

var fixedNow = time.Date(2025, time.October, 15, 14, 30, 0, 0, time.UTC)

func newTestExtractor() *Extractor {
	return New(nil, WithClock(func() time.Time { return fixedNow }))
}

func byType(entities []models.Entity, t models.EntityType) []models.Entity {
	var out []models.Entity
	for _, e := range entities {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func TestExtract_ScenarioA(t *testing.T) {
	n := normalizer.New(nil)
	text := n.Normalize("Quantas entregas do Assai estão atrasadas hoje?")
	entities := newTestExtractor().Extract(text)

	client, ok := models.FirstEntity(entities, models.EntityClient)
	require.True(t, ok)
	assert.Equal(t, "Assai", client.NormalizedValue.Text)
	assert.Equal(t, ConfidenceDictionary, client.Confidence)

	date, ok := models.FirstEntity(entities, models.EntityDate)
	require.True(t, ok)
	require.NotNil(t, date.NormalizedValue)
	assert.Equal(t, "2025-10-15", date.NormalizedValue.Text)

	status, ok := models.FirstEntity(entities, models.EntityStatus)
	require.True(t, ok)
	assert.Equal(t, "delayed", status.NormalizedValue.Text)
}

func TestExtract_TodayMatchesClock(t *testing.T) {
	now := time.Now()
	entities := New(nil).Extract("entregas de hoje")

	date, ok := models.FirstEntity(entities, models.EntityDate)
	require.True(t, ok)
	assert.Equal(t, now.Format("2006-01-02"), date.NormalizedValue.Text)
}

func TestExtract_RelativeDays(t *testing.T) {
	entities := newTestExtractor().Extract("ontem e amanha e anteontem")
	dates := byType(entities, models.EntityDate)
	require.Len(t, dates, 3)
	assert.Equal(t, "2025-10-14", dates[0].NormalizedValue.Text)
	assert.Equal(t, "2025-10-16", dates[1].NormalizedValue.Text)
	assert.Equal(t, "2025-10-13", dates[2].NormalizedValue.Text)
}

func TestExtract_Dates(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"day and month", "entregas em 03/09", "2025-09-03"},
		{"full year", "pedidos de 01/02/2024", "2024-02-01"},
		{"short year", "pedidos de 01/02/24", "2024-02-01"},
		{"day of month", "embarques do dia 5", "2025-10-05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, ok := models.FirstEntity(newTestExtractor().Extract(tt.text), models.EntityDate)
			require.True(t, ok)
			require.NotNil(t, date.NormalizedValue)
			assert.Equal(t, tt.want, date.NormalizedValue.Text)
		})
	}
}

func TestExtract_MalformedDateKeepsEntityWithoutValue(t *testing.T) {
	for _, text := range []string{"entregas em 31/02", "entregas em 12/13", "entregas do dia 45"} {
		date, ok := models.FirstEntity(newTestExtractor().Extract(text), models.EntityDate)
		require.True(t, ok, text)
		assert.Nil(t, date.NormalizedValue, text)
	}
}

func TestExtract_Money(t *testing.T) {
	entities := newTestExtractor().Extract("frete acima de r$ 1.500,50 e 300 reais")
	money := byType(entities, models.EntityMoney)
	require.Len(t, money, 2)
	assert.InDelta(t, 1500.50, money[0].NormalizedValue.Number, 1e-9)
	assert.Equal(t, "1500.50", money[0].NormalizedValue.Text)
	assert.InDelta(t, 300.0, money[1].NormalizedValue.Number, 1e-9)
	assert.Empty(t, byType(entities, models.EntityQuantity))
}

func TestExtract_PercentageAndQuantity(t *testing.T) {
	entities := newTestExtractor().Extract("aumento de 12,5% em 40 caixas")

	pct, ok := models.FirstEntity(entities, models.EntityPercentage)
	require.True(t, ok)
	assert.InDelta(t, 0.125, pct.NormalizedValue.Number, 1e-9)

	qty := byType(entities, models.EntityQuantity)
	require.Len(t, qty, 1)
	assert.Equal(t, "40 caixas", qty[0].RawText)
	assert.Equal(t, ConfidenceRegex, qty[0].Confidence)
}

func TestExtract_OrderAndInvoice(t *testing.T) {
	entities := newTestExtractor().Extract("status do pedido 45678 e da nota fiscal 998877")

	order, ok := models.FirstEntity(entities, models.EntityOrder)
	require.True(t, ok)
	assert.Equal(t, "45678", order.NormalizedValue.Text)

	invoice, ok := models.FirstEntity(entities, models.EntityInvoice)
	require.True(t, ok)
	assert.Equal(t, "998877", invoice.NormalizedValue.Text)

	assert.Empty(t, byType(entities, models.EntityQuantity))
}

func TestExtract_ClientByAnchor(t *testing.T) {
	entities := newTestExtractor().Extract("pedidos do cliente zaffari")
	client, ok := models.FirstEntity(entities, models.EntityClient)
	require.True(t, ok)
	assert.Equal(t, "Zaffari", client.NormalizedValue.Text)
	assert.Equal(t, "zaffari", client.RawText)
	assert.Equal(t, ConfidenceRegex, client.Confidence)
}

func TestExtract_VagueClientWordYieldsNothing(t *testing.T) {
	assert.Empty(t, newTestExtractor().Extract("cliente"))
	assert.Empty(t, newTestExtractor().Extract(""))
}

func TestExtract_Places(t *testing.T) {
	entities := newTestExtractor().Extract("embarques para sao paulo e para rj")
	places := byType(entities, models.EntityPlace)
	require.Len(t, places, 2)
	assert.Equal(t, "São Paulo", places[0].NormalizedValue.Text)
	assert.Equal(t, "RJ", places[1].NormalizedValue.Text)
}

func TestExtract_SpansAreNonOverlappingAndFaithful(t *testing.T) {
	n := normalizer.New(nil)
	queries := []string{
		"Quantas entregas do Assai estão atrasadas hoje?",
		"pedido 12345 do cliente Carrefour em 15/10/2025 por R$ 2.300,00",
		"nota fiscal 5566 com 10% de desconto para Belo Horizonte",
		"dia 12 dia 13 14/10 hoje ontem 200 kg 30 reais",
		"cliente dia a dia em sp atrasado pendente",
	}
	for _, q := range queries {
		text := n.Normalize(q)
		entities := newTestExtractor().Extract(text)
		require.NotEmpty(t, entities, q)
		for i, e := range entities {
			assert.Equal(t, text[e.Span.Start:e.Span.End], e.RawText, q)
			assert.GreaterOrEqual(t, e.Confidence, 0.0)
			assert.LessOrEqual(t, e.Confidence, 1.0)
			if i > 0 {
				assert.False(t, entities[i-1].Span.Overlaps(e.Span), "%q: %v overlaps %v", q, entities[i-1], e)
			}
		}
	}
}

func TestResolve(t *testing.T) {
	cands := []models.Entity{
		{Type: models.EntityQuantity, Span: models.Span{Start: 0, End: 2}, Confidence: 0.6},
		{Type: models.EntityDate, Span: models.Span{Start: 0, End: 5}, Confidence: 0.75},
		{Type: models.EntityClient, Span: models.Span{Start: 3, End: 9}, Confidence: 0.95},
		{Type: models.EntityStatus, Span: models.Span{Start: 8, End: 12}, Confidence: 0.5},
		{Type: models.EntityPlace, Span: models.Span{Start: 12, End: 15}, Confidence: 0.5},
	}
	got := Resolve(cands)
	require.Len(t, got, 2)
	assert.Equal(t, models.EntityClient, got[0].Type)
	assert.Equal(t, models.EntityPlace, got[1].Type)
}

func TestParseDecimal(t *testing.T) {
	v, err := ParseDecimal("1.234.567,89")
	require.NoError(t, err)
	assert.InDelta(t, 1234567.89, v, 1e-6)

	_, err = ParseDecimal("abc")
	assert.Error(t, err)
}

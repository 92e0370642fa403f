package knowledge

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
)

func TestMemoryRepository_UpsertLifecycle(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	created, err := repo.UpsertPattern(ctx, PatternUpdate{
		Type: models.PatternIntent, Text: "assai", Interpretation: "count", Delta: 0.1, Initial: 0.5,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 0.5, created.Confidence)
	assert.Equal(t, 1, created.UsageCount)

	reinforced, err := repo.UpsertPattern(ctx, PatternUpdate{
		Type: models.PatternIntent, Text: "assai", Interpretation: "trend", Delta: 0.1, Initial: 0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, reinforced.ID)
	assert.InDelta(t, 0.6, reinforced.Confidence, 1e-9)
	assert.Equal(t, 2, reinforced.UsageCount)
	assert.Equal(t, "trend", reinforced.Interpretation)

	contradicted, err := repo.UpsertPattern(ctx, PatternUpdate{
		Type: models.PatternIntent, Text: "assai", Interpretation: "listing", Delta: -0.2, Initial: 0.5,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.4, contradicted.Confidence, 1e-9)
	assert.Equal(t, "trend", contradicted.Interpretation)
}

func TestMemoryRepository_ConfidenceBounds(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	up := PatternUpdate{Type: models.PatternTerm, Text: "remessa", Interpretation: "entrega", Initial: 0.5}

	up.Delta = 0.3
	for i := 0; i < 5; i++ {
		p, err := repo.UpsertPattern(ctx, up)
		require.NoError(t, err)
		assert.LessOrEqual(t, p.Confidence, MaxConfidence)
	}

	up.Delta = -0.6
	for i := 0; i < 5; i++ {
		p, err := repo.UpsertPattern(ctx, up)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p.Confidence, MinConfidence)
	}
	got, err := repo.QueryPatterns(ctx, "remessa", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, MinConfidence, got[0].Confidence)
}

func TestMemoryRepository_ConcurrentUpdatesAreNotLost(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	const writers = 50
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_, err := repo.UpsertPattern(ctx, PatternUpdate{
				Type: models.PatternClientAlias, Text: "atacadao", Interpretation: "Atacadão", Delta: 0.001, Initial: 0.5,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.QueryPatterns(ctx, "entregas do atacadao", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, writers, got[0].UsageCount)
	assert.InDelta(t, 0.5+float64(writers-1)*0.001, got[0].Confidence, 1e-9)
}

func TestMemoryRepository_QueryRanking(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	seed := func(text string, initial float64, extra int) {
		for i := 0; i <= extra; i++ {
			_, err := repo.UpsertPattern(ctx, PatternUpdate{Type: models.PatternTerm, Text: text, Initial: initial})
			require.NoError(t, err)
		}
	}
	seed("frete", 0.5, 0)
	seed("frete caro", 0.9, 0)
	seed("caro", 0.5, 3)
	seed("pedido", 1.0, 0)

	got, err := repo.QueryPatterns(ctx, "frete caro em setembro", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "frete caro", got[0].PatternText)
	assert.Equal(t, "caro", got[1].PatternText)
	assert.Equal(t, "frete", got[2].PatternText)

	limited, err := repo.QueryPatterns(ctx, "frete caro em setembro", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemoryRepository_CancelledContext(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.UpsertPattern(ctx, PatternUpdate{Type: "term", Text: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = repo.QueryPatterns(ctx, "x", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

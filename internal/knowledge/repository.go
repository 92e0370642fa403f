// Package knowledge persists learned query patterns and the feedback that
// adjusts their confidence.
package knowledge

import (
	"context"
	"sort"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
)

// Confidence bounds for every stored pattern.
const (
	MinConfidence = 0.1
	MaxConfidence = 1.0
)

// PatternUpdate creates the (Type, Text) pattern at Initial confidence, or
// shifts an existing one by Delta. A positive Delta also replaces the
// interpretation.
type PatternUpdate struct {
	Type           string
	Text           string
	Interpretation string
	Delta          float64
	Initial        float64
}

// Repository is the storage behind the feedback store. UpsertPattern must be
// an atomic read-modify-write per (Type, Text) key.
type Repository interface {
	Open(ctx context.Context) error
	Close() error
	UpsertPattern(ctx context.Context, u PatternUpdate) (models.KnowledgePattern, error)
	QueryPatterns(ctx context.Context, text string, limit int) ([]models.KnowledgePattern, error)
	AppendFeedback(ctx context.Context, rec models.FeedbackRecord) error
}

func clampConfidence(c float64) float64 {
	if c < MinConfidence {
		return MinConfidence
	}
	if c > MaxConfidence {
		return MaxConfidence
	}
	return c
}

// rankPatterns orders by confidence, then usage, then text.
func rankPatterns(ps []models.KnowledgePattern) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].Confidence != ps[j].Confidence {
			return ps[i].Confidence > ps[j].Confidence
		}
		if ps[i].UsageCount != ps[j].UsageCount {
			return ps[i].UsageCount > ps[j].UsageCount
		}
		return ps[i].PatternText < ps[j].PatternText
	})
}

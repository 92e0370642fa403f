package knowledge

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
)

type patternKey struct {
	typ  string
	text string
}

// MemoryRepository keeps patterns in process. Updates to one key are
// serialized by that key's lock.
type MemoryRepository struct {
	mu       sync.Mutex
	patterns map[patternKey]models.KnowledgePattern
	locks    map[patternKey]*sync.Mutex
	feedback []models.FeedbackRecord
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patterns: map[patternKey]models.KnowledgePattern{},
		locks:    map[patternKey]*sync.Mutex{},
		now:      time.Now,
	}
}

func (r *MemoryRepository) Open(context.Context) error { return nil }

func (r *MemoryRepository) Close() error { return nil }

func (r *MemoryRepository) keyLock(k patternKey) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[k]
	if !ok {
		l = &sync.Mutex{}
		r.locks[k] = l
	}
	return l
}

func (r *MemoryRepository) UpsertPattern(ctx context.Context, u PatternUpdate) (models.KnowledgePattern, error) {
	if err := ctx.Err(); err != nil {
		return models.KnowledgePattern{}, err
	}
	k := patternKey{typ: u.Type, text: u.Text}
	l := r.keyLock(k)
	l.Lock()
	defer l.Unlock()

	r.mu.Lock()
	p, ok := r.patterns[k]
	r.mu.Unlock()

	now := r.now().UTC()
	if !ok {
		p = models.KnowledgePattern{
			ID:             uuid.New().String(),
			PatternType:    u.Type,
			PatternText:    u.Text,
			Interpretation: u.Interpretation,
			Confidence:     clampConfidence(u.Initial),
			UsageCount:     1,
			CreatedAt:      now,
		}
	} else {
		p.Confidence = clampConfidence(p.Confidence + u.Delta)
		p.UsageCount++
		if u.Delta > 0 && u.Interpretation != "" {
			p.Interpretation = u.Interpretation
		}
	}
	p.UpdatedAt = now

	r.mu.Lock()
	r.patterns[k] = p
	r.mu.Unlock()
	return p, nil
}

// QueryPatterns returns patterns whose text occurs in text.
func (r *MemoryRepository) QueryPatterns(ctx context.Context, text string, limit int) ([]models.KnowledgePattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	var out []models.KnowledgePattern
	for _, p := range r.patterns {
		if p.PatternText != "" && strings.Contains(text, p.PatternText) {
			out = append(out, p)
		}
	}
	r.mu.Unlock()

	rankPatterns(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) AppendFeedback(ctx context.Context, rec models.FeedbackRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.feedback = append(r.feedback, rec)
	r.mu.Unlock()
	return nil
}

// Feedback returns a copy of the recorded feedback in append order.
func (r *MemoryRepository) Feedback() []models.FeedbackRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.FeedbackRecord(nil), r.feedback...)
}

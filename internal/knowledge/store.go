package knowledge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/config"
	apperrors "github.com/Rafael-2109/frete-sistema-sub002/internal/common/errors"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/logger"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/metrics"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
)

const (
	DefaultLearningRate      = 0.1
	DefaultInitialConfidence = 0.5
	DefaultTopK              = 5
	DefaultQueueSize         = 256

	recordTimeout = 5 * time.Second
)

// Store applies feedback to the pattern repository. Feedback may be recorded
// synchronously or queued for a background writer.
type Store struct {
	repo   Repository
	rate   float64
	init   float64
	topK   int
	log    logger.Logger
	now    func() time.Time
	queue  chan models.FeedbackInput
	mu     sync.RWMutex
	closed bool
	opened bool
	wg     sync.WaitGroup
}

func NewStore(repo Repository, cfg config.KnowledgeConfig, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	s := &Store{
		repo:  repo,
		rate:  cfg.LearningRate,
		init:  cfg.InitialConfidence,
		topK:  cfg.TopK,
		log:   log.With(map[string]interface{}{"component": "knowledge"}),
		now:   time.Now,
		queue: make(chan models.FeedbackInput, positiveOr(cfg.QueueSize, DefaultQueueSize)),
	}
	if s.rate <= 0 {
		s.rate = DefaultLearningRate
	}
	if s.init <= 0 {
		s.init = DefaultInitialConfidence
	}
	if s.topK <= 0 {
		s.topK = DefaultTopK
	}
	return s
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// Open prepares the repository and starts the background writer.
func (s *Store) Open(ctx context.Context) error {
	if err := s.repo.Open(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil
	}
	s.opened = true
	s.wg.Add(1)
	go s.drain()
	return nil
}

// Close stops accepting feedback, flushes the queue and closes the repository.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	return s.repo.Close()
}

func (s *Store) drain() {
	defer s.wg.Done()
	for in := range s.queue {
		metrics.FeedbackQueueDepth.Set(float64(len(s.queue)))
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if _, err := s.Record(ctx, in); err != nil {
			s.log.Warn("Queued feedback not recorded", map[string]interface{}{
				"error":       err.Error(),
				"patternType": in.PatternType,
			})
		}
		cancel()
	}
}

// Enqueue hands feedback to the background writer. It never blocks and
// reports false when the queue is full or the store is closed.
func (s *Store) Enqueue(in models.FeedbackInput) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || !s.opened {
		return false
	}
	select {
	case s.queue <- in:
		metrics.FeedbackQueueDepth.Set(float64(len(s.queue)))
		return true
	default:
		metrics.FeedbackEvents.WithLabelValues(string(in.Outcome), "dropped").Inc()
		return false
	}
}

// Record appends the feedback and adjusts the pattern it names.
func (s *Store) Record(ctx context.Context, in models.FeedbackInput) (models.FeedbackRecord, error) {
	if err := validateFeedback(in); err != nil {
		return models.FeedbackRecord{}, err
	}

	rec := models.FeedbackRecord{
		ID:             uuid.New().String(),
		Query:          in.Query,
		PatternType:    in.PatternType,
		PatternText:    in.PatternText,
		Interpretation: in.Interpretation,
		Outcome:        in.Outcome,
		Comment:        in.Comment,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.AppendFeedback(ctx, rec); err != nil {
		metrics.FeedbackEvents.WithLabelValues(string(in.Outcome), "error").Inc()
		return models.FeedbackRecord{}, err
	}

	p, err := s.repo.UpsertPattern(ctx, PatternUpdate{
		Type:           in.PatternType,
		Text:           in.PatternText,
		Interpretation: in.Interpretation,
		Delta:          s.delta(in.Outcome),
		Initial:        s.init,
	})
	if err != nil {
		metrics.FeedbackEvents.WithLabelValues(string(in.Outcome), "error").Inc()
		return rec, err
	}
	metrics.FeedbackEvents.WithLabelValues(string(in.Outcome), "ok").Inc()

	s.log.Debug("Feedback recorded", map[string]interface{}{
		"feedbackId": rec.ID,
		"pattern":    p.PatternText,
		"confidence": p.Confidence,
		"usage":      p.UsageCount,
	})
	return rec, nil
}

func (s *Store) delta(o models.FeedbackOutcome) float64 {
	if o == models.FeedbackContradict {
		return -2 * s.rate
	}
	return s.rate
}

// Hints returns the top patterns whose text occurs in the normalized query.
func (s *Store) Hints(ctx context.Context, text string) ([]models.KnowledgePattern, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return s.repo.QueryPatterns(ctx, text, s.topK)
}

func validateFeedback(in models.FeedbackInput) error {
	switch {
	case in.Outcome != models.FeedbackReinforce && in.Outcome != models.FeedbackContradict:
		return apperrors.NewInvalidInputError(fmt.Sprintf("unknown outcome %q", in.Outcome))
	case strings.TrimSpace(in.PatternType) == "":
		return apperrors.NewInvalidInputError("patternType is required")
	case strings.TrimSpace(in.PatternText) == "":
		return apperrors.NewInvalidInputError("patternText is required")
	}
	return nil
}

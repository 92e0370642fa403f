package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/Rafael-2109/frete-sistema-sub002/internal/common/errors"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/llm"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
)

const (
	DefaultRelevanceThreshold = 0.3
	defaultMaxTokens          = 600
	defaultTemperature        = 0.2
)

// Specialist answers queries for one domain profile.
type Specialist struct {
	profile     Profile
	llm         llm.Completer
	threshold   float64
	maxTokens   int
	temperature float64
}

type SpecialistOption func(*Specialist)

func WithRelevanceThreshold(t float64) SpecialistOption {
	return func(s *Specialist) {
		if t > 0 {
			s.threshold = t
		}
	}
}

func WithGeneration(maxTokens int, temperature float64) SpecialistOption {
	return func(s *Specialist) {
		if maxTokens > 0 {
			s.maxTokens = maxTokens
		}
		if temperature > 0 {
			s.temperature = temperature
		}
	}
}

func NewSpecialist(p Profile, c llm.Completer, opts ...SpecialistOption) *Specialist {
	if c == nil {
		c = llm.Unavailable{}
	}
	s := &Specialist{
		profile:     p,
		llm:         c,
		threshold:   DefaultRelevanceThreshold,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSpecialists builds one specialist per profile, sharing the completer.
func NewSpecialists(profiles []Profile, c llm.Completer, opts ...SpecialistOption) []*Specialist {
	out := make([]*Specialist, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, NewSpecialist(p, c, opts...))
	}
	return out
}

func (s *Specialist) ID() string { return s.profile.ID }

func (s *Specialist) Profile() Profile { return s.profile }

// Respond scores relevance and, when relevant, asks the completer for an
// analysis. Completer failures come back as a failed response, never as an error.
func (s *Specialist) Respond(ctx context.Context, analysis models.NLPResult) models.AgentResponse {
	start := time.Now()
	rel := s.profile.Relevance(analysis.NormalizedText)
	resp := models.AgentResponse{
		AgentID:    s.profile.ID,
		Relevance:  rel,
		Confidence: 0.5 + 0.5*rel,
		Text:       models.NoResponse,
	}
	if rel < s.threshold {
		resp.Status = models.AgentNotRelevant
		resp.Confidence = 0
		return resp
	}

	out, err := s.llm.Complete(ctx, llm.Request{
		SystemPrompt: s.profile.SystemPrompt,
		UserMessage:  s.prompt(analysis),
		MaxTokens:    s.maxTokens,
		Temperature:  s.temperature,
	})
	resp.Latency = time.Since(start)
	if err == nil && strings.TrimSpace(out) == "" {
		err = llm.ErrEmptyResponse
	}
	if err != nil {
		return failed(resp, err)
	}

	resp.Status = models.AgentAnswered
	resp.Text = models.TextOf(out)
	return resp
}

func failed(resp models.AgentResponse, err error) models.AgentResponse {
	stdErr := apperrors.NewAgentFailureError(resp.AgentID, err)
	resp.Status = models.AgentFailed
	resp.Text = models.NoResponse
	resp.Err = stdErr
	resp.Error = stdErr.Details
	return resp
}

// prompt renders the structured interpretation the specialist must stay within.
func (s *Specialist) prompt(a models.NLPResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Consulta: %s\n", a.Query)
	fmt.Fprintf(&b, "Intenção: %s\n", a.Intent.Type)

	if len(a.Entities) > 0 {
		parts := make([]string, 0, len(a.Entities))
		for _, e := range a.Entities {
			val := e.RawText
			if e.NormalizedValue != nil {
				val = e.NormalizedValue.Text
			}
			parts = append(parts, fmt.Sprintf("%s=%s", e.Type, val))
		}
		fmt.Fprintf(&b, "Entidades: %s\n", strings.Join(parts, "; "))
	}

	if label := a.Context.TemporalScope.Label; label != "" {
		fmt.Fprintf(&b, "Período: %s\n", label)
	}

	if len(a.Context.ImplicitFilters) > 0 {
		keys := make([]string, 0, len(a.Context.ImplicitFilters))
		for k := range a.Context.ImplicitFilters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+a.Context.ImplicitFilters[k])
		}
		fmt.Fprintf(&b, "Filtros: %s\n", strings.Join(parts, ", "))
	}

	if len(s.profile.KPIs) > 0 {
		fmt.Fprintf(&b, "Indicadores do domínio: %s\n", strings.Join(s.profile.KPIs, ", "))
	}
	if len(s.profile.KeyFields) > 0 {
		fmt.Fprintf(&b, "Campos-chave: %s\n", strings.Join(s.profile.KeyFields, ", "))
	}
	return b.String()
}

// internal/workers/nlp/analyze-query/models.go
package analyzequery

import "github.com/Rafael-2109/frete-sistema-sub002/internal/models"

type Input struct {
	Query   string               `json:"query"`
	Context *models.QueryContext `json:"context,omitempty"`
}

// Output leaves the caller's "context" variable untouched; the analysis
// context goes under "analysisContext".
type Output struct {
	RequestID           string                       `json:"requestId"`
	NormalizedText      string                       `json:"normalizedText"`
	IntentType          string                       `json:"intentType"`
	IntentConfidence    float64                      `json:"intentConfidence"`
	SubIntents          []models.IntentType          `json:"subIntents,omitempty"`
	BusinessDomain      string                       `json:"businessDomain"`
	Entities            []models.Entity              `json:"entities"`
	AnalysisContext     models.AnalysisContext       `json:"analysisContext"`
	ConfidenceScore     float64                      `json:"confidenceScore"`
	ClarificationNeeded bool                         `json:"clarificationNeeded"`
	Clarification       *models.ClarificationRequest `json:"clarification,omitempty"`
	Suggestions         []string                     `json:"suggestions,omitempty"`
	KnowledgeHints      []models.KnowledgePattern    `json:"knowledgeHints,omitempty"`
}

func newOutput(r models.NLPResult) *Output {
	entities := r.Entities
	if entities == nil {
		entities = []models.Entity{}
	}
	return &Output{
		RequestID:           r.RequestID,
		NormalizedText:      r.NormalizedText,
		IntentType:          string(r.Intent.Type),
		IntentConfidence:    r.Intent.Confidence,
		SubIntents:          r.Intent.SubIntents,
		BusinessDomain:      string(r.Context.BusinessDomain),
		Entities:            entities,
		AnalysisContext:     r.Context,
		ConfidenceScore:     r.ConfidenceScore,
		ClarificationNeeded: r.ClarificationNeeded,
		Clarification:       r.Clarification,
		Suggestions:         r.Suggestions,
		KnowledgeHints:      r.KnowledgeHints,
	}
}
